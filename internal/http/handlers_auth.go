package http

import (
	"errors"
	"net/http"
	"strings"

	"bilancio/internal/auth"
	"bilancio/internal/log"
	"bilancio/internal/storage"
)

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Expires      int64  `json:"expires"`
}

func (s *Server) issueTokenPair(w http.ResponseWriter, r *http.Request, userID int64) {
	access, err := s.issuer.IssueAccess(userID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not issue token")
		return
	}
	refresh, err := s.issuer.IssueRefresh(userID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, r, http.StatusOK, tokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		Expires:      int64(s.issuer.AccessTTL().Seconds()),
	})
}

// handleLogin exchanges username-or-email + password for a token pair.
// Logging into a deactivated account reactivates it.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	user, err := s.repo.GetUserByLogin(r.Context(), body.Username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusUnauthorized, "Wrong username or password")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "login failed")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, body.Password) {
		writeError(w, r, http.StatusUnauthorized, "Wrong username or password")
		return
	}

	if !user.Active {
		user.Active = true
		if err := s.repo.UpdateUser(r.Context(), user); err != nil {
			writeError(w, r, http.StatusInternalServerError, "login failed")
			return
		}
		log.FromContext(r.Context()).InfoContext(r.Context(), "account reactivated on login", "user_id", user.ID)
	}

	s.issueTokenPair(w, r, user.ID)
}

// handleRefresh exchanges a Bearer refresh token for a new pair.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		writeJSON(w, r, http.StatusBadRequest, map[string]string{"token": "Token is invalid"})
		return
	}

	userID, err := s.issuer.ParseRefresh(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			writeJSON(w, r, http.StatusUnauthorized, map[string]string{"token": "Token has expired"})
			return
		}
		writeJSON(w, r, http.StatusBadRequest, map[string]string{"token": "Token is invalid"})
		return
	}

	s.issueTokenPair(w, r, userID)
}
