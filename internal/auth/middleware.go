package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

type contextKey string

const userIDContextKey contextKey = "user_id"

// UserID extracts the authenticated user's id from the request context.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDContextKey).(int64)
	return id, ok
}

// Middleware authenticates requests with a Bearer access token and
// stores the user id in the request context. A missing or invalid
// token is a 400; a well-formed but expired token is a 401.
func (i *TokenIssuer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeTokenError(w, http.StatusBadRequest, "Token is invalid")
			return
		}

		userID, err := i.ParseAccess(token)
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				writeTokenError(w, http.StatusUnauthorized, "Token has expired")
				return
			}
			writeTokenError(w, http.StatusBadRequest, "Token is invalid")
			return
		}

		ctx := context.WithValue(r.Context(), userIDContextKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}

func writeTokenError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"token": msg})
}
