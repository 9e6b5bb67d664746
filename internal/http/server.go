// Package http hosts the display-layer surface: a thin JSON API that
// parses requests, calls into the core and encodes results. No business
// rules live here.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/k4rnaj1k/finance-tracker/internal/backup"
	"github.com/k4rnaj1k/finance-tracker/internal/core"
	"github.com/k4rnaj1k/finance-tracker/internal/ledger"
	"github.com/k4rnaj1k/finance-tracker/internal/period"
	"github.com/k4rnaj1k/finance-tracker/internal/rates"
	"github.com/k4rnaj1k/finance-tracker/internal/storage"
)

type Server struct {
	http.Server

	store      storage.Store
	converter  *rates.Converter
	tracker    *period.Tracker
	engine     *ledger.Engine
	reconciler *backup.Reconciler
	now        func() time.Time
}

func NewServer(addr string, store storage.Store, converter *rates.Converter, tracker *period.Tracker, engine *ledger.Engine, reconciler *backup.Reconciler) *Server {
	s := &Server{
		store:      store,
		converter:  converter,
		tracker:    tracker,
		engine:     engine,
		reconciler: reconciler,
		now:        time.Now,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("PUT /api/expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("PUT /api/categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	mux.HandleFunc("GET /api/rates", s.handleListRates)
	mux.HandleFunc("POST /api/rates", s.handleCreateRate)
	mux.HandleFunc("DELETE /api/rates/{id}", s.handleDeleteRate)

	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handlePutSettings)

	mux.HandleFunc("GET /api/totals", s.handleTotals)
	mux.HandleFunc("GET /api/convert", s.handleConvert)
	mux.HandleFunc("POST /api/period", s.handleStartPeriod)

	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("POST /api/import", s.handleImport)

	s.Addr = addr
	s.Handler = mux
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

var errMalformedBody = errors.New("malformed request body")

// writeError maps core failures to HTTP statuses. Single-record
// operations surface their errors directly; only the status varies.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var partial *backup.PartialError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrClosed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, errMalformedBody),
		errors.Is(err, backup.ErrInvalidFormat),
		errors.Is(err, core.ErrUnsupportedCurrency),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidRate),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrEmptyID),
		errors.Is(err, core.ErrEmptyName):
		status = http.StatusBadRequest
	case errors.Is(err, rates.ErrRateUnavailable):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &partial):
		// Mixed store state: the user should re-export and inspect.
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return errMalformedBody
	}
	return nil
}
