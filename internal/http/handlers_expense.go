package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bilancio/internal/auth"
	"bilancio/internal/core"
	"bilancio/internal/services"
	"bilancio/internal/storage"
)

const expenseNotFoundMsg = "Expense does not exist or does not belong to user"

type sharePayload struct {
	UserID int64   `json:"user_id"`
	Amount float64 `json:"amount"`
	Paid   bool    `json:"paid"`
}

type expensePayload struct {
	ID            int64            `json:"id"`
	Description   string           `json:"description"`
	Date          string           `json:"date"`
	Time          string           `json:"time"`
	Timestamp     string           `json:"timestamp"`
	Amount        float64          `json:"amount"`
	Paid          bool             `json:"paid"`
	IsFavorite    bool             `json:"is_favorite"`
	FavoriteOrder *int64           `json:"favorite_order"`
	Category      *categoryPayload `json:"category"`
	Shares        []sharePayload   `json:"shares"`
	IsOwner       bool             `json:"is_owner"`
}

// expenseSerializer resolves the categories and shared children an
// expense payload embeds, memoizing category lookups across a list.
type expenseSerializer struct {
	repo       *storage.Repository
	categories map[int64]*core.Category
}

func (s *Server) newExpenseSerializer() *expenseSerializer {
	return &expenseSerializer{repo: s.repo, categories: make(map[int64]*core.Category)}
}

func (es *expenseSerializer) category(ctx context.Context, id int64) (*core.Category, error) {
	if c, ok := es.categories[id]; ok {
		return c, nil
	}
	c, err := es.repo.GetCategoryByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			es.categories[id] = nil
			return nil, nil
		}
		return nil, err
	}
	es.categories[id] = c
	return c, nil
}

func (es *expenseSerializer) serialize(ctx context.Context, e *core.Expense, children []core.Expense) (expensePayload, error) {
	p := expensePayload{
		ID:            e.ID,
		Description:   e.Description,
		Date:          e.Timestamp.Format("2006-01-02"),
		Time:          e.Timestamp.Format("15:04:05"),
		Timestamp:     e.Timestamp.Format("2006-01-02T15:04:05"),
		Amount:        e.Amount,
		Paid:          e.Paid,
		IsFavorite:    e.IsFavorite,
		FavoriteOrder: e.FavoriteOrder,
		Shares:        []sharePayload{},
		IsOwner:       e.IsOwner(),
	}

	category, err := es.category(ctx, e.CategoryID)
	if err != nil {
		return p, err
	}
	if category != nil {
		cp := serializeCategory(category)
		p.Category = &cp
	}

	for _, child := range children {
		p.Shares = append(p.Shares, sharePayload{UserID: child.UserID, Amount: child.Amount, Paid: child.Paid})
	}
	return p, nil
}

func (es *expenseSerializer) serializeOne(ctx context.Context, e *core.Expense) (expensePayload, error) {
	var children []core.Expense
	if e.IsOwner() {
		var err error
		children, err = es.repo.ListChildren(ctx, e.ID)
		if err != nil {
			return expensePayload{}, err
		}
	}
	return es.serialize(ctx, e, children)
}

func (es *expenseSerializer) serializeList(ctx context.Context, expenses []core.Expense) ([]expensePayload, error) {
	var parentIDs []int64
	for i := range expenses {
		if expenses[i].IsOwner() {
			parentIDs = append(parentIDs, expenses[i].ID)
		}
	}
	children, err := es.repo.ChildrenByParents(ctx, parentIDs)
	if err != nil {
		return nil, err
	}

	payload := make([]expensePayload, 0, len(expenses))
	for i := range expenses {
		e := &expenses[i]
		p, err := es.serialize(ctx, e, children[e.ID])
		if err != nil {
			return nil, err
		}
		payload = append(payload, p)
	}
	return payload, nil
}

func (s *Server) handleExpenseList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	expenses, err := s.repo.ListExpenses(r.Context(), userID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not load expenses")
		return
	}

	payload, err := s.newExpenseSerializer().serializeList(r.Context(), expenses)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not load expenses")
		return
	}
	writeJSON(w, r, http.StatusOK, payload)
}

func (s *Server) handleExpenseGet(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid expense id")
		return
	}

	expense, err := s.repo.GetExpense(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, expenseNotFoundMsg)
			return
		}
		writeError(w, r, http.StatusInternalServerError, "could not load expense")
		return
	}

	payload, err := s.newExpenseSerializer().serializeOne(r.Context(), expense)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not load expense")
		return
	}
	writeJSON(w, r, http.StatusOK, payload)
}

// Amount and Paid are pointers so an absent key is told apart from a
// zero value: amount is required, paid defaults to true.
type expenseBody struct {
	Description   string         `json:"description"`
	Category      int64          `json:"category"`
	Date          string         `json:"date"`
	Time          string         `json:"time"`
	Amount        *float64       `json:"amount"`
	Paid          *bool          `json:"paid"`
	IsFavorite    bool           `json:"is_favorite"`
	FavoriteOrder *int64         `json:"favorite_order"`
	Shares        []sharePayload `json:"shares"`
}

func parseTimeOfDay(v string) (time.Time, error) {
	if t, err := time.Parse("15:04:05", v); err == nil {
		return t, nil
	}
	return time.Parse("15:04", v)
}

// handleExpenseSave creates or updates an expense and reconciles its
// shares.
func (s *Server) handleExpenseSave(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var body expenseBody
	if !decodeJSON(w, r, &body) {
		return
	}

	fields := make(map[string]string)
	if strings.TrimSpace(body.Description) == "" {
		fields["description"] = "Missing data for required field."
	}
	if body.Amount == nil {
		fields["amount"] = "Missing data for required field."
	} else if *body.Amount < 0 {
		fields["amount"] = "Amount cannot be lower than 0"
	}
	date, err := time.Parse("2006-01-02", body.Date)
	if err != nil {
		fields["date"] = "Not a valid date."
	}
	timeOfDay, err := parseTimeOfDay(body.Time)
	if err != nil {
		fields["time"] = "Not a valid time."
	}
	if len(fields) > 0 {
		writeFieldErrors(w, r, fields)
		return
	}

	paid := true
	if body.Paid != nil {
		paid = *body.Paid
	}

	expense := &core.Expense{
		Description:   body.Description,
		Timestamp:     core.CombineDateTime(date, timeOfDay),
		Amount:        *body.Amount,
		Paid:          paid,
		IsFavorite:    body.IsFavorite,
		FavoriteOrder: body.FavoriteOrder,
		UserID:        userID,
		CategoryID:    body.Category,
	}
	if idValue := r.PathValue("id"); idValue != "" {
		id, err := strconv.ParseInt(idValue, 10, 64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid expense id")
			return
		}
		expense.ID = id
	}

	shares := make([]core.ShareEntry, 0, len(body.Shares))
	touched := []int64{userID}
	for _, entry := range body.Shares {
		shares = append(shares, core.ShareEntry{UserID: entry.UserID, Amount: entry.Amount, Paid: entry.Paid})
		touched = append(touched, entry.UserID)
	}

	created, err := s.expenses.SaveExpense(r.Context(), expense, shares)
	if err != nil {
		s.writeExpenseError(w, r, err)
		return
	}
	s.invalidateCharts(touched...)

	payload, err := s.newExpenseSerializer().serializeOne(r.Context(), expense)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not load expense")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, r, status, payload)
}

func (s *Server) writeExpenseError(w http.ResponseWriter, r *http.Request, err error) {
	var denied *services.ShareNotAllowedError
	switch {
	case errors.As(err, &denied):
		writeError(w, r, http.StatusBadRequest, denied.Error())
	case errors.Is(err, services.ErrCategoryNotFound):
		writeError(w, r, http.StatusNotFound, categoryNotFoundMsg)
	case errors.Is(err, services.ErrExpenseNotFound):
		writeError(w, r, http.StatusNotFound, expenseNotFoundMsg)
	case errors.Is(err, services.ErrChildAmountChanged):
		writeError(w, r, http.StatusBadRequest, services.ErrChildAmountChanged.Error())
	case errors.Is(err, core.ErrEmptyDescription), errors.Is(err, core.ErrInvalidAmount):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "could not save expense")
	}
}

// handleExpenseDelete removes an expense; shared children go with it.
func (s *Server) handleExpenseDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid expense id")
		return
	}

	expense, err := s.repo.GetExpense(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, expenseNotFoundMsg)
			return
		}
		writeError(w, r, http.StatusInternalServerError, "could not delete expense")
		return
	}

	children, err := s.repo.ListChildren(r.Context(), expense.ID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not delete expense")
		return
	}

	payload, err := s.newExpenseSerializer().serialize(r.Context(), expense, children)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not delete expense")
		return
	}

	if err := s.expenses.DeleteExpense(r.Context(), id, userID); err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not delete expense")
		return
	}

	touched := []int64{userID}
	for _, child := range children {
		touched = append(touched, child.UserID)
	}
	s.invalidateCharts(touched...)

	writeJSON(w, r, http.StatusOK, payload)
}
