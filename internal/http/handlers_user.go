package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"bilancio/internal/auth"
	"bilancio/internal/core"
	"bilancio/internal/storage"
)

type userPayload struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Active   bool   `json:"active"`
}

func serializeUser(u *core.User) userPayload {
	return userPayload{ID: u.ID, Username: u.Username, Email: u.Email, Active: u.Active}
}

func (s *Server) handleUserGetSelf(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	s.writeActiveUser(w, r, userID)
}

func (s *Server) handleUserGet(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid user id")
		return
	}
	if id != userID {
		writeError(w, r, http.StatusUnauthorized, "It is not possible to change data of other users")
		return
	}
	s.writeActiveUser(w, r, id)
}

func (s *Server) writeActiveUser(w http.ResponseWriter, r *http.Request, id int64) {
	user, err := s.repo.GetActiveUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "User is disabled or does not exist")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "could not load user")
		return
	}
	writeJSON(w, r, http.StatusOK, serializeUser(user))
}

type userBody struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (b userBody) fieldErrors() map[string]string {
	missing := make(map[string]string)
	for field, value := range map[string]string{
		"username": b.Username,
		"email":    b.Email,
		"password": b.Password,
	} {
		if strings.TrimSpace(value) == "" {
			missing[field] = "Missing data for required field."
		}
	}
	return missing
}

// handleUserSave creates a user when called without a token and
// updates the authenticated user otherwise. All fields are required on
// both paths; PATCH is the partial-update variant.
func (s *Server) handleUserSave(w http.ResponseWriter, r *http.Request) {
	var body userBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if missing := body.fieldErrors(); len(missing) > 0 {
		writeFieldErrors(w, r, missing)
		return
	}

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not save user")
		return
	}

	// a valid access token switches this endpoint to update mode
	if header := r.Header.Get("Authorization"); header != "" {
		token, _ := strings.CutPrefix(header, "Bearer ")
		userID, err := s.issuer.ParseAccess(token)
		if err != nil {
			writeJSON(w, r, http.StatusBadRequest, map[string]string{"token": "Token is invalid"})
			return
		}
		if body.ID != 0 && body.ID != userID {
			writeError(w, r, http.StatusUnauthorized, "It is not possible to change data of other users")
			return
		}

		user, err := s.repo.GetUser(r.Context(), userID)
		if err != nil {
			writeError(w, r, http.StatusNotFound, "User is disabled or does not exist")
			return
		}
		user.Username = body.Username
		user.Email = body.Email
		user.PasswordHash = hash
		if err := s.saveUser(w, r, user, false); err != nil {
			return
		}
		writeJSON(w, r, http.StatusOK, serializeUser(user))
		return
	}

	user := &core.User{
		Username:     body.Username,
		Email:        body.Email,
		PasswordHash: hash,
		Active:       true,
	}
	if err := s.saveUser(w, r, user, true); err != nil {
		return
	}
	writeJSON(w, r, http.StatusCreated, serializeUser(user))
}

// saveUser persists the user, answering duplicate email/username with
// the conflict body. The 200 status on conflict is deliberate.
func (s *Server) saveUser(w http.ResponseWriter, r *http.Request, u *core.User, create bool) error {
	var err error
	if create {
		err = s.repo.CreateUser(r.Context(), u)
	} else {
		err = s.repo.UpdateUser(r.Context(), u)
	}
	if errors.Is(err, storage.ErrConflict) {
		writeError(w, r, http.StatusOK, "Email or username already exists")
		return err
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not save user")
		return err
	}
	return nil
}

// handleUserPatch updates only the non-empty submitted fields.
func (s *Server) handleUserPatch(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var body userBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.ID != 0 && body.ID != userID {
		writeError(w, r, http.StatusUnauthorized, "It is not possible to change data of other users")
		return
	}

	user, err := s.repo.GetUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "User is disabled or does not exist")
		return
	}

	if strings.TrimSpace(body.Username) != "" {
		user.Username = body.Username
	}
	if strings.TrimSpace(body.Email) != "" {
		user.Email = body.Email
	}
	if strings.TrimSpace(body.Password) != "" {
		hash, err := auth.HashPassword(body.Password)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "could not save user")
			return
		}
		user.PasswordHash = hash
	}

	if err := s.saveUser(w, r, user, false); err != nil {
		return
	}
	writeJSON(w, r, http.StatusOK, serializeUser(user))
}

// handleUserDeactivate soft-disables the authenticated user.
func (s *Server) handleUserDeactivate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	user, err := s.repo.GetUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "User is disabled or does not exist")
		return
	}

	user.Active = false
	if err := s.repo.UpdateUser(r.Context(), user); err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not save user")
		return
	}
	writeJSON(w, r, http.StatusOK, serializeUser(user))
}
