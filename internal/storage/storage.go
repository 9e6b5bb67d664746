// Package storage defines the persistence ports of the finance tracker
// and the error taxonomy shared by its backends.
//
// Four record collections are kept: expenses, categories, exchange rates
// and the singleton settings. Backends must serialize conflicting writes
// within one collection; cross-collection sequences (bulk import) are
// deliberately not transactional.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/k4rnaj1k/finance-tracker/internal/core"
)

var (
	// ErrNotFound is returned when a record id has no match.
	ErrNotFound = errors.New("record not found")

	// ErrClosed is returned when the store is accessed before it finished
	// initializing or after Close. Callers must surface it, not retry.
	ErrClosed = errors.New("store unavailable")
)

// IOError wraps a failure of the underlying storage substrate on a
// single operation. The operation is not retried automatically.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

type ExpenseStore interface {
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	GetExpense(ctx context.Context, id string) (core.Expense, error)
	// PutExpense inserts or fully replaces the record with the same id.
	PutExpense(ctx context.Context, e core.Expense) error
	DeleteExpense(ctx context.Context, id string) error
	// ReplaceExpenses clears the collection and inserts the given set.
	ReplaceExpenses(ctx context.Context, expenses []core.Expense) error
}

type CategoryStore interface {
	ListCategories(ctx context.Context) ([]core.Category, error)
	GetCategory(ctx context.Context, id string) (core.Category, error)
	PutCategory(ctx context.Context, c core.Category) error
	// DeleteCategory removes the category only. Expenses referencing it
	// keep their now-dangling categoryId.
	DeleteCategory(ctx context.Context, id string) error
	ReplaceCategories(ctx context.Context, categories []core.Category) error
}

type RateStore interface {
	ListRates(ctx context.Context) ([]core.ExchangeRate, error)
	// LatestRate returns the rate with the most recent date, or
	// ErrNotFound when no rate has ever been recorded.
	LatestRate(ctx context.Context) (core.ExchangeRate, error)
	PutRate(ctx context.Context, r core.ExchangeRate) error
	DeleteRate(ctx context.Context, id string) error
	ReplaceRates(ctx context.Context, rates []core.ExchangeRate) error
}

type SettingsStore interface {
	Settings(ctx context.Context) (core.Settings, error)
	// SaveSettings writes the full snapshot in one serialized step.
	SaveSettings(ctx context.Context, s core.Settings) error
}

// Store is the full persistence surface. Core components take the
// narrow interface they need; the reconciler and wiring code take Store.
type Store interface {
	ExpenseStore
	CategoryStore
	RateStore
	SettingsStore
	Close() error
}
