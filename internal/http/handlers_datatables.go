package http

import (
	"database/sql"
	"net/http"
	"time"

	"bilancio/internal/auth"
	"bilancio/internal/charts"
	"bilancio/internal/core"
	"bilancio/internal/datatable"
	"bilancio/internal/storage"
)

// Column index maps, one per datatable resource. Label columns exist
// only in the client's rendering ("Options" buttons and computed
// cells) and are skipped by filtering and ordering.
var (
	expensesColumns = datatable.Columns{
		0: datatable.Col("expenses.description"),
		1: datatable.Col("categories.name"),
		2: datatable.Col("expenses.timestamp"),
		3: datatable.Col("expenses.amount"),
		4: datatable.Label("Options"),
		5: datatable.Label("Shared"),
		6: datatable.Col("expenses.paid"),
	}
	categoriesColumns = datatable.Columns{
		0: datatable.Col("categories.name"),
		1: datatable.Col("categories.spending_limit"),
		2: datatable.Label("Options"),
	}
	balanceColumns = datatable.Columns{
		0: datatable.Col("categories.name"),
		1: datatable.Label("Limit"),
		2: datatable.Label("Balance"),
		3: datatable.Label("Spent"),
	}
	favoritesColumns = datatable.Columns{
		0: datatable.Col("expenses.description"),
		1: datatable.Col("expenses.amount"),
		2: datatable.Label("Options"),
		3: datatable.Col("expenses.favorite_order"),
	}
	sharesColumns = datatable.Columns{
		0: datatable.Col("users.username"),
		1: datatable.Label("Options"),
	}
)

func (s *Server) handleExpensesDatatable(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	start, end, categoryID, fieldErrs := chartInterval(r)
	if len(fieldErrs) > 0 {
		writeFieldErrors(w, r, fieldErrs)
		return
	}
	from, to := core.Interval(start, end, time.Now().UTC())

	req := datatable.Parse(r.URL.Query())
	q := s.repo.ExpensesIntervalQuery(userID, from, to, categoryID)
	q.OrderBy = "expenses.timestamp DESC"
	req.Apply(expensesColumns, &q)

	var expenses []core.Expense
	total, err := s.repo.Paginate(r.Context(), q, req.Page(), req.PageLength, func(rows *sql.Rows) error {
		e, err := storage.ScanExpenseRow(rows)
		if err != nil {
			return err
		}
		expenses = append(expenses, *e)
		return nil
	})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not load expenses")
		return
	}

	payload, err := s.newExpenseSerializer().serializeList(r.Context(), expenses)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not load expenses")
		return
	}
	writeJSON(w, r, http.StatusOK, req.NewEnvelope(payload, total))
}

func (s *Server) handleCategoriesDatatable(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	req := datatable.Parse(r.URL.Query())
	q := s.repo.CategoriesQuery(userID)
	q.OrderBy = "categories.name"
	req.Apply(categoriesColumns, &q)

	payload := []categoryPayload{}
	total, err := s.repo.Paginate(r.Context(), q, req.Page(), req.PageLength, func(rows *sql.Rows) error {
		c, err := storage.ScanCategoryRow(rows)
		if err != nil {
			return err
		}
		payload = append(payload, serializeCategory(c))
		return nil
	})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not load categories")
		return
	}
	writeJSON(w, r, http.StatusOK, req.NewEnvelope(payload, total))
}

type balanceCategoryPayload struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type balancePayload struct {
	Category balanceCategoryPayload `json:"category"`
	Limit    float64                `json:"limit"`
	Balance  float64                `json:"balance"`
	Spent    float64                `json:"spent"`
}

func (s *Server) handleBalanceDatatable(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	start, end, categoryID, fieldErrs := chartInterval(r)
	if len(fieldErrs) > 0 {
		writeFieldErrors(w, r, fieldErrs)
		return
	}
	from, to := core.Interval(start, end, time.Now().UTC())

	req := datatable.Parse(r.URL.Query())
	q := s.repo.CategoriesBalanceQuery(userID, from, to, categoryID)
	req.Apply(balanceColumns, &q)

	payload := []balancePayload{}
	total, err := s.repo.Paginate(r.Context(), q, req.Page(), req.PageLength, func(rows *sql.Rows) error {
		row, err := storage.ScanBalanceRow(rows)
		if err != nil {
			return err
		}
		b := charts.NewBalance(*row, from, to)
		payload = append(payload, balancePayload{
			Category: balanceCategoryPayload{Name: b.Category.Name, Color: b.Category.Color},
			Limit:    b.Limit,
			Balance:  b.Balance,
			Spent:    b.Spent,
		})
		return nil
	})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not load balance")
		return
	}
	writeJSON(w, r, http.StatusOK, req.NewEnvelope(payload, total))
}

func (s *Server) handleFavoritesDatatable(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	req := datatable.Parse(r.URL.Query())
	q := s.repo.FavoritesQuery(userID)
	q.OrderBy = "expenses.favorite_order"
	req.Apply(favoritesColumns, &q)

	var expenses []core.Expense
	total, err := s.repo.Paginate(r.Context(), q, req.Page(), req.PageLength, func(rows *sql.Rows) error {
		e, err := storage.ScanExpenseRow(rows)
		if err != nil {
			return err
		}
		expenses = append(expenses, *e)
		return nil
	})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not load favorites")
		return
	}

	payload, err := s.newExpenseSerializer().serializeList(r.Context(), expenses)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not load favorites")
		return
	}
	writeJSON(w, r, http.StatusOK, req.NewEnvelope(payload, total))
}

type shareRowPayload struct {
	SharedByUserID   int64  `json:"shared_by_user_id"`
	SharedWithUserID int64  `json:"shared_with_user_id"`
	Username         string `json:"username"`
}

func (s *Server) handleSharesDatatable(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	req := datatable.Parse(r.URL.Query())
	q := s.repo.SharesQuery(userID)
	q.OrderBy = "users.username"
	req.Apply(sharesColumns, &q)

	payload := []shareRowPayload{}
	total, err := s.repo.Paginate(r.Context(), q, req.Page(), req.PageLength, func(rows *sql.Rows) error {
		row, err := storage.ScanShareRow(rows)
		if err != nil {
			return err
		}
		payload = append(payload, shareRowPayload{
			SharedByUserID:   row.Share.SharedByUserID,
			SharedWithUserID: row.Share.SharedWithUserID,
			Username:         row.Username,
		})
		return nil
	})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not load shares")
		return
	}
	writeJSON(w, r, http.StatusOK, req.NewEnvelope(payload, total))
}
