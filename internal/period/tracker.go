// Package period maintains the rolling income-month boundary that scopes
// "current" expenses and balance.
package period

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/k4rnaj1k/finance-tracker/internal/storage"
)

// Tracker is the single source of truth for the current and previous
// income period start dates, persisted in settings.
type Tracker struct {
	store storage.SettingsStore
	now   func() time.Time
}

type Option func(*Tracker)

// WithClock overrides wall-clock time, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func New(store storage.SettingsStore, opts ...Option) *Tracker {
	t := &Tracker{store: store, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// CurrentStart returns the active period start. On first use, when no
// start has been configured, it defaults to the first calendar day of
// the current month and persists that immediately.
func (t *Tracker) CurrentStart(ctx context.Context) (time.Time, error) {
	s, err := t.store.Settings(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("load settings: %w", err)
	}
	if s.IncomeMonthStart != nil {
		return *s.IncomeMonthStart, nil
	}

	now := t.now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	s.IncomeMonthStart = &start
	if err := t.store.SaveSettings(ctx, s); err != nil {
		return time.Time{}, fmt.Errorf("persist default period start: %w", err)
	}
	slog.InfoContext(ctx, "income period initialized", "start", start)
	return start, nil
}

// PreviousStart returns the previous period start, or nil when no
// rollover has happened yet.
func (t *Tracker) PreviousStart(ctx context.Context) (*time.Time, error) {
	s, err := t.store.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return s.PreviousIncomeMonthStart, nil
}

// StartNewPeriod rolls the boundary: the current start becomes the
// previous one and newStart becomes current, written as one settings
// snapshot. Backdating is allowed; users correct period boundaries.
func (t *Tracker) StartNewPeriod(ctx context.Context, newStart time.Time) error {
	s, err := t.store.Settings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	s.PreviousIncomeMonthStart = s.IncomeMonthStart
	ns := newStart.UTC()
	s.IncomeMonthStart = &ns

	if err := t.store.SaveSettings(ctx, s); err != nil {
		return fmt.Errorf("persist period rollover: %w", err)
	}
	slog.InfoContext(ctx, "income period rolled over",
		"current_start", ns, "previous_start", s.PreviousIncomeMonthStart)
	return nil
}

// Contains reports whether a date falls in the period beginning at
// start. The lower bound is inclusive and the period is open-ended; a
// nil start means "no period configured", which includes everything.
func Contains(start *time.Time, date time.Time) bool {
	if start == nil {
		return true
	}
	return !date.Before(*start)
}
