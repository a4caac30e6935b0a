package http

import (
	"encoding/json"
	"net/http"

	"bilancio/internal/log"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "encode response", "error", err, "url", r.URL.Path)
	}
}

// writeError writes the flat {"error": "<message>"} body.
func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}

// writeFieldErrors writes the per-field validation body
// {"message": {"<field>": "<message>", ...}}.
func writeFieldErrors(w http.ResponseWriter, r *http.Request, fields map[string]string) {
	writeJSON(w, r, http.StatusBadRequest, map[string]any{"message": fields})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
