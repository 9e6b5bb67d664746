// Package ledger aggregates expenses into period totals in the user's
// reporting currency.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/k4rnaj1k/finance-tracker/internal/core"
	"github.com/k4rnaj1k/finance-tracker/internal/period"
	"github.com/k4rnaj1k/finance-tracker/internal/rates"
)

// RateSource supplies the authoritative latest rate. rates.Converter
// implements it.
type RateSource interface {
	LatestRate(ctx context.Context) (core.ExchangeRate, error)
}

// Engine computes period totals. One aggregation pass reads the latest
// rate at most once and applies that snapshot to every item, so a rate
// update landing mid-pass cannot split the sum across two rates.
type Engine struct {
	src RateSource
}

func New(src RateSource) *Engine {
	return &Engine{src: src}
}

// Totals is the outcome of one aggregation pass. Amounts are unrounded;
// rounding belongs to the display edge. Skipped counts expenses whose
// contribution degraded to zero because they could not be converted.
type Totals struct {
	TotalExpenses    decimal.Decimal
	RemainingBalance decimal.Decimal
	Currency         core.Currency
	Skipped          int
}

// OverBudget reports whether spending exceeded income. A zero balance
// still counts as within budget.
func (t Totals) OverBudget() bool { return t.RemainingBalance.IsNegative() }

// ComputeTotals sums the expenses dated at or after periodStart
// (nil start includes everything) in the reporting currency and derives
// the remaining balance from the converted income.
//
// Per-item conversion failures never abort the pass: the item
// contributes zero and the event is logged as recoverable. A failed
// income conversion degrades to the unconverted figure. Only structural
// failures (unknown reporting currency, store unavailable) surface as
// errors.
func (g *Engine) ComputeTotals(ctx context.Context, expenses []core.Expense, income decimal.Decimal, incomeCurrency, reporting core.Currency, periodStart *time.Time) (Totals, error) {
	if !reporting.Known() {
		return Totals{}, fmt.Errorf("reporting currency %q: %w", reporting, core.ErrUnsupportedCurrency)
	}

	snap, err := g.snapshotRate(ctx, expenses, incomeCurrency, reporting, periodStart)
	if err != nil {
		return Totals{}, err
	}

	totals := Totals{Currency: reporting}
	total := decimal.Zero
	for _, e := range expenses {
		if !period.Contains(periodStart, e.Date) {
			continue
		}
		if e.Currency == reporting {
			total = total.Add(e.Amount)
			continue
		}
		converted, err := snap.convert(e.Amount, e.Currency, reporting)
		if err != nil {
			totals.Skipped++
			slog.WarnContext(ctx, "expense excluded from totals",
				"expense_id", e.ID, "currency", e.Currency, "error", err)
			continue
		}
		total = total.Add(converted)
	}
	totals.TotalExpenses = total

	convertedIncome, err := snap.convert(income, incomeCurrency, reporting)
	if err != nil {
		slog.WarnContext(ctx, "income conversion failed, using unconverted figure",
			"income_currency", incomeCurrency, "reporting_currency", reporting, "error", err)
		convertedIncome = income
	}
	totals.RemainingBalance = convertedIncome.Sub(total)

	return totals, nil
}

// rateSnapshot is the one-per-pass view of the latest rate. missing
// records why the rate could not be read so every item degrades the
// same way.
type rateSnapshot struct {
	rate    decimal.Decimal
	missing error
}

func (s rateSnapshot) convert(amount decimal.Decimal, from, to core.Currency) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	if s.missing != nil {
		return decimal.Decimal{}, s.missing
	}
	return rates.ConvertAt(amount, s.rate, from, to)
}

// snapshotRate reads the latest rate once, and only when the pass will
// actually need a conversion. An empty rate log degrades per item; a
// broken store aborts the pass.
func (g *Engine) snapshotRate(ctx context.Context, expenses []core.Expense, incomeCurrency, reporting core.Currency, periodStart *time.Time) (rateSnapshot, error) {
	needed := incomeCurrency != reporting
	for _, e := range expenses {
		if needed {
			break
		}
		if period.Contains(periodStart, e.Date) && e.Currency != reporting {
			needed = true
		}
	}
	if !needed {
		return rateSnapshot{}, nil
	}

	rate, err := g.src.LatestRate(ctx)
	if errors.Is(err, rates.ErrRateUnavailable) {
		return rateSnapshot{missing: err}, nil
	}
	if err != nil {
		return rateSnapshot{}, fmt.Errorf("snapshot exchange rate: %w", err)
	}
	return rateSnapshot{rate: rate.Rate}, nil
}
