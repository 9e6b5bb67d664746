package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/k4rnaj1k/finance-tracker/internal/core"
)

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// --- expenses ---

// expenseRequest carries raw user-entered fields; amounts arrive as
// text and are parsed here, at the boundary.
type expenseRequest struct {
	Amount      string    `json:"amount"`
	Description string    `json:"description"`
	CategoryID  string    `json:"categoryId"`
	Date        time.Time `json:"date"`
	Currency    string    `json:"currency"`
}

func (s *Server) expenseFromRequest(r *http.Request, id string) (core.Expense, error) {
	var req expenseRequest
	if err := decodeBody(r, &req); err != nil {
		return core.Expense{}, err
	}
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return core.Expense{}, err
	}
	currency, err := core.ParseCurrency(req.Currency)
	if err != nil {
		return core.Expense{}, err
	}
	date := req.Date
	if date.IsZero() {
		date = s.now().UTC()
	}
	e := core.Expense{
		ID:          id,
		Amount:      amount,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		Date:        date,
		Currency:    currency,
	}
	return e, e.Validate()
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.store.ListExpenses(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}
	writeJSON(w, http.StatusOK, expenses)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.expenseFromRequest(r, uuid.NewString())
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.PutExpense(r.Context(), e); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// handleUpdateExpense is a full replacement of the record, not a patch.
func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetExpense(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	e, err := s.expenseFromRequest(r, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.PutExpense(r.Context(), e); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteExpense(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- categories ---

type categoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.store.ListCategories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if categories == nil {
		categories = []core.Category{}
	}
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	c := core.Category{ID: uuid.NewString(), Name: req.Name, Color: req.Color}
	if err := c.Validate(); err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.PutCategory(r.Context(), c); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetCategory(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	var req categoryRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	c := core.Category{ID: id, Name: req.Name, Color: req.Color}
	if err := c.Validate(); err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.PutCategory(r.Context(), c); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleDeleteCategory removes only the category. Expenses that
// reference it keep the dangling id and show up as "Unknown".
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteCategory(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- exchange rates ---

type rateRequest struct {
	Rate string    `json:"rate"`
	Date time.Time `json:"date"`
}

func (s *Server) handleListRates(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListRates(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []core.ExchangeRate{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateRate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	value, err := core.ParseRate(req.Rate)
	if err != nil {
		writeError(w, err)
		return
	}
	date := req.Date
	if date.IsZero() {
		date = s.now().UTC()
	}
	rate := core.ExchangeRate{ID: uuid.NewString(), Date: date, Rate: value}
	if err := rate.Validate(); err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.PutRate(r.Context(), rate); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rate)
}

func (s *Server) handleDeleteRate(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteRate(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- settings ---

type settingsRequest struct {
	Income          string `json:"income"`
	IncomeCurrency  string `json:"incomeCurrency"`
	DefaultCurrency string `json:"defaultCurrency"`
}

type settingsResponse struct {
	Income                   string     `json:"income"`
	IncomeCurrency           string     `json:"incomeCurrency"`
	DefaultCurrency          string     `json:"defaultCurrency"`
	IncomeMonthStart         *time.Time `json:"incomeMonthStart"`
	PreviousIncomeMonthStart *time.Time `json:"previousIncomeMonthStart"`
}

func settingsToResponse(s core.Settings) settingsResponse {
	return settingsResponse{
		Income:                   s.Income.String(),
		IncomeCurrency:           string(s.IncomeCurrency),
		DefaultCurrency:          string(s.DefaultCurrency),
		IncomeMonthStart:         s.IncomeMonthStart,
		PreviousIncomeMonthStart: s.PreviousIncomeMonthStart,
	}
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.Settings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsToResponse(settings))
}

// handlePutSettings updates income and currency choices. Period starts
// are owned by the tracker and only move through /api/period.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	income, err := core.ParseAmount(req.Income)
	if err != nil {
		writeError(w, err)
		return
	}
	incomeCurrency, err := core.ParseCurrency(req.IncomeCurrency)
	if err != nil {
		writeError(w, err)
		return
	}
	defaultCurrency, err := core.ParseCurrency(req.DefaultCurrency)
	if err != nil {
		writeError(w, err)
		return
	}

	settings, err := s.store.Settings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	settings.Income = income
	settings.IncomeCurrency = incomeCurrency
	settings.DefaultCurrency = defaultCurrency
	if err := s.store.SaveSettings(r.Context(), settings); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsToResponse(settings))
}

// --- totals, conversion, period ---

type totalsResponse struct {
	TotalExpenses    string `json:"totalExpenses"`
	RemainingBalance string `json:"remainingBalance"`
	Currency         string `json:"currency"`
	OverBudget       bool   `json:"overBudget"`
	Skipped          int    `json:"skipped"`
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	settings, err := s.store.Settings(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	start, err := s.tracker.CurrentStart(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	expenses, err := s.store.ListExpenses(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	totals, err := s.engine.ComputeTotals(ctx, expenses,
		settings.Income, settings.IncomeCurrency, settings.DefaultCurrency, &start)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, totalsResponse{
		TotalExpenses:    core.DisplayAmount(totals.TotalExpenses),
		RemainingBalance: core.DisplayAmount(totals.RemainingBalance),
		Currency:         string(totals.Currency),
		OverBudget:       totals.OverBudget(),
		Skipped:          totals.Skipped,
	})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := core.ParseAmount(q.Get("amount"))
	if err != nil {
		writeError(w, err)
		return
	}
	from, err := core.ParseCurrency(q.Get("from"))
	if err != nil {
		writeError(w, err)
		return
	}
	to, err := core.ParseCurrency(q.Get("to"))
	if err != nil {
		writeError(w, err)
		return
	}

	converted, err := s.converter.Convert(r.Context(), amount, from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"amount":   core.DisplayAmount(converted),
		"currency": string(to),
	})
}

type periodRequest struct {
	Start time.Time `json:"start"`
}

func (s *Server) handleStartPeriod(w http.ResponseWriter, r *http.Request) {
	var req periodRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if req.Start.IsZero() {
		writeError(w, core.ErrInvalidDate)
		return
	}
	if err := s.tracker.StartNewPeriod(r.Context(), req.Start); err != nil {
		writeError(w, err)
		return
	}
	settings, err := s.store.Settings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsToResponse(settings))
}
