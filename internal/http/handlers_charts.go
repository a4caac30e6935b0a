package http

import (
	"net/http"
	"strconv"
	"time"

	"bilancio/internal/auth"
	"bilancio/internal/charts"
)

func parseISODate(v string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05", v)
}

// handleHistoryChart serves the rolling per-category monthly spending
// datasets for the last {months} calendar months.
func (s *Server) handleHistoryChart(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	months, err := strconv.Atoi(r.PathValue("months"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid month count")
		return
	}

	key := chartKey(userID, "history", strconv.Itoa(months))
	if cached, ok := s.chartCache.Get(key); ok {
		writeJSON(w, r, http.StatusOK, cached)
		return
	}

	chart, err := charts.BuildHistoryChart(r.Context(), s.repo, userID, months, time.Now().UTC())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not build chart")
		return
	}

	s.chartCache.Set(key, chart)
	writeJSON(w, r, http.StatusOK, chart)
}

// chartInterval parses the optional {start}/{end}/{category} path
// values shared by the categories chart and the dated datatables.
// Missing dates stay nil (the builder defaults to the current month);
// category 0 or absent means no filter.
func chartInterval(r *http.Request) (start, end *time.Time, categoryID int64, fieldErrs map[string]string) {
	fieldErrs = make(map[string]string)

	if v := r.PathValue("start"); v != "" {
		t, err := parseISODate(v)
		if err != nil {
			fieldErrs["start"] = "Not a valid date."
		} else {
			start = &t
		}
	}
	if v := r.PathValue("end"); v != "" {
		t, err := parseISODate(v)
		if err != nil {
			fieldErrs["end"] = "Not a valid date."
		} else {
			end = &t
		}
	}
	if v := r.PathValue("category"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			fieldErrs["category"] = "Not a valid category."
		} else {
			categoryID = id
		}
	}
	return start, end, categoryID, fieldErrs
}

// handleCategoriesChart serves per-category totals over an interval,
// largest first, with the rounded grand total.
func (s *Server) handleCategoriesChart(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	start, end, categoryID, fieldErrs := chartInterval(r)
	if len(fieldErrs) > 0 {
		writeFieldErrors(w, r, fieldErrs)
		return
	}

	key := chartKey(userID, "totals", r.PathValue("start"), r.PathValue("end"), r.PathValue("category"))
	if cached, ok := s.chartCache.Get(key); ok {
		writeJSON(w, r, http.StatusOK, cached)
		return
	}

	chart, err := charts.BuildCategoriesChart(r.Context(), s.repo, userID, start, end, categoryID, time.Now().UTC())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not build chart")
		return
	}

	s.chartCache.Set(key, chart)
	writeJSON(w, r, http.StatusOK, chart)
}
