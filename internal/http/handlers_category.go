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

const categoryNotFoundMsg = "Category is disabled, does not exist or does not belong to user"

type categoryPayload struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Limit     float64 `json:"limit"`
	Color     string  `json:"color"`
	TextColor string  `json:"text_color"`
	Active    bool    `json:"active"`
}

func serializeCategory(c *core.Category) categoryPayload {
	return categoryPayload{
		ID:        c.ID,
		Name:      c.Name,
		Limit:     c.Limit,
		Color:     c.Color,
		TextColor: c.TextColor,
		Active:    c.Active,
	}
}

// handleCategoryList returns the user's categories; only_actives
// (default 1) filters out disabled ones.
func (s *Server) handleCategoryList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	onlyActives := true
	switch r.URL.Query().Get("only_actives") {
	case "0", "false":
		onlyActives = false
	}

	categories, err := s.repo.ListCategories(r.Context(), userID, onlyActives)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not load categories")
		return
	}

	payload := make([]categoryPayload, 0, len(categories))
	for i := range categories {
		payload = append(payload, serializeCategory(&categories[i]))
	}
	writeJSON(w, r, http.StatusOK, payload)
}

func (s *Server) handleCategoryGet(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid category id")
		return
	}

	category, err := s.repo.GetActiveCategory(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, categoryNotFoundMsg)
			return
		}
		writeError(w, r, http.StatusInternalServerError, "could not load category")
		return
	}
	writeJSON(w, r, http.StatusOK, serializeCategory(category))
}

// handleCategorySave creates a category, or updates one when the path
// carries an id. The stored color is normalized to a leading '#' and
// the text color derived from its luminance.
func (s *Server) handleCategorySave(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var body struct {
		Name  string  `json:"name"`
		Limit float64 `json:"limit"`
		Color string  `json:"color"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	fields := make(map[string]string)
	if strings.TrimSpace(body.Name) == "" {
		fields["name"] = "Missing data for required field."
	}
	if body.Limit < 0 {
		fields["limit"] = "Limit cannot be lower than 0"
	}
	if len(strings.TrimPrefix(body.Color, "#")) > 6 {
		fields["color"] = "Color must be in hexadecimal format"
	}
	if len(fields) > 0 {
		writeFieldErrors(w, r, fields)
		return
	}

	color := core.NormalizeColor(body.Color)

	if idValue := r.PathValue("id"); idValue != "" {
		id, err := strconv.ParseInt(idValue, 10, 64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid category id")
			return
		}

		category, err := s.repo.GetCategory(r.Context(), id, userID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, r, http.StatusNotFound, categoryNotFoundMsg)
				return
			}
			writeError(w, r, http.StatusInternalServerError, "could not save category")
			return
		}

		category.Name = body.Name
		category.Limit = body.Limit
		category.Color = color
		category.TextColor = core.DeriveTextColor(color)
		if err := s.repo.UpdateCategory(r.Context(), category); err != nil {
			writeError(w, r, http.StatusInternalServerError, "could not save category")
			return
		}
		// cached charts embed the category's name, color and limit
		s.invalidateCharts(userID)
		writeJSON(w, r, http.StatusOK, serializeCategory(category))
		return
	}

	category := &core.Category{
		Name:      body.Name,
		Limit:     body.Limit,
		Color:     color,
		TextColor: core.DeriveTextColor(color),
		Active:    true,
		UserID:    userID,
	}
	if err := s.repo.CreateCategory(r.Context(), category); err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not save category")
		return
	}
	writeJSON(w, r, http.StatusCreated, serializeCategory(category))
}

// handleCategoryDisable soft-disables a category; its expenses stay.
func (s *Server) handleCategoryDisable(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid category id")
		return
	}

	category, err := s.repo.GetCategory(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, categoryNotFoundMsg)
			return
		}
		writeError(w, r, http.StatusInternalServerError, "could not disable category")
		return
	}

	category.Active = false
	if err := s.repo.UpdateCategory(r.Context(), category); err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not disable category")
		return
	}
	s.invalidateCharts(userID)
	writeJSON(w, r, http.StatusOK, serializeCategory(category))
}
