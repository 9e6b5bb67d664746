package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k4rnaj1k/finance-tracker/internal/core"
	"github.com/k4rnaj1k/finance-tracker/internal/rates"
	"github.com/k4rnaj1k/finance-tracker/internal/storage/memory"
)

type staticRate struct {
	rate string
	err  error
}

func (s staticRate) LatestRate(context.Context) (core.ExchangeRate, error) {
	if s.err != nil {
		return core.ExchangeRate{}, s.err
	}
	return core.ExchangeRate{ID: "r", Date: time.Now(), Rate: decimal.RequireFromString(s.rate)}, nil
}

// countingRate verifies the snapshot rule: at most one lookup per pass.
type countingRate struct {
	staticRate
	calls *int
}

func (c countingRate) LatestRate(ctx context.Context) (core.ExchangeRate, error) {
	*c.calls++
	return c.staticRate.LatestRate(ctx)
}

func expense(id, amount string, currency core.Currency, date time.Time) core.Expense {
	return core.Expense{
		ID:       id,
		Amount:   decimal.RequireFromString(amount),
		Date:     date,
		Currency: currency,
	}
}

var noon = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func TestComputeTotalsZeroCase(t *testing.T) {
	calls := 0
	engine := New(countingRate{staticRate{rate: "38.5"}, &calls})
	income := decimal.NewFromInt(1000)

	totals, err := engine.ComputeTotals(context.Background(), nil, income, core.USD, core.USD, &noon)
	require.NoError(t, err)
	assert.True(t, totals.TotalExpenses.IsZero())
	assert.True(t, totals.RemainingBalance.Equal(income))
	assert.False(t, totals.OverBudget())
	assert.Equal(t, 0, calls, "no conversion needed, no rate lookup expected")
}

func TestComputeTotalsScenario(t *testing.T) {
	// Income 1000 USD, one expense of 500 UAH at 1 USD = 38.5 UAH,
	// reporting in USD.
	engine := New(staticRate{rate: "38.5"})
	expenses := []core.Expense{expense("e1", "500", core.UAH, noon)}

	totals, err := engine.ComputeTotals(context.Background(), expenses,
		decimal.NewFromInt(1000), core.USD, core.USD, nil)
	require.NoError(t, err)

	assert.Equal(t, "12.99", core.DisplayAmount(totals.TotalExpenses))
	assert.Equal(t, "987.01", core.DisplayAmount(totals.RemainingBalance))
	assert.Equal(t, 0, totals.Skipped)
	assert.False(t, totals.OverBudget())
}

func TestComputeTotalsSumsBeforeRounding(t *testing.T) {
	// Three thirds of a UAH must not round per term.
	engine := New(staticRate{rate: "3"})
	expenses := []core.Expense{
		expense("e1", "1", core.UAH, noon),
		expense("e2", "1", core.UAH, noon),
		expense("e3", "1", core.UAH, noon),
	}

	totals, err := engine.ComputeTotals(context.Background(), expenses,
		decimal.NewFromInt(10), core.USD, core.USD, nil)
	require.NoError(t, err)
	assert.Equal(t, "1.00", core.DisplayAmount(totals.TotalExpenses),
		"1/3+1/3+1/3 must sum to 1.00, not 0.99 from per-term rounding")
}

func TestComputeTotalsPeriodFilter(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	engine := New(staticRate{rate: "38.5"})
	expenses := []core.Expense{
		expense("at-boundary", "10", core.USD, start),
		expense("just-before", "20", core.USD, start.Add(-time.Microsecond)),
		expense("later", "5", core.USD, start.AddDate(0, 0, 10)),
	}

	totals, err := engine.ComputeTotals(context.Background(), expenses,
		decimal.NewFromInt(100), core.USD, core.USD, &start)
	require.NoError(t, err)
	assert.True(t, totals.TotalExpenses.Equal(decimal.NewFromInt(15)),
		"expected boundary+later only, got %s", totals.TotalExpenses)

	// Nil start means no period configured: include everything.
	totals, err = engine.ComputeTotals(context.Background(), expenses,
		decimal.NewFromInt(100), core.USD, core.USD, nil)
	require.NoError(t, err)
	assert.True(t, totals.TotalExpenses.Equal(decimal.NewFromInt(35)))
}

func TestComputeTotalsDegradesWithoutRate(t *testing.T) {
	engine := New(staticRate{err: rates.ErrRateUnavailable})
	expenses := []core.Expense{
		expense("unconvertible", "500", core.UAH, noon),
		expense("direct", "30", core.USD, noon),
	}

	totals, err := engine.ComputeTotals(context.Background(), expenses,
		decimal.NewFromInt(1000), core.USD, core.USD, nil)
	require.NoError(t, err, "missing rate must degrade, not abort the pass")
	assert.True(t, totals.TotalExpenses.Equal(decimal.NewFromInt(30)),
		"unconvertible expense contributes zero, got %s", totals.TotalExpenses)
	assert.Equal(t, 1, totals.Skipped)
	assert.True(t, totals.RemainingBalance.Equal(decimal.NewFromInt(970)))
}

func TestComputeTotalsIncomeFallback(t *testing.T) {
	engine := New(staticRate{err: rates.ErrRateUnavailable})

	totals, err := engine.ComputeTotals(context.Background(), nil,
		decimal.NewFromInt(1000), core.UAH, core.USD, nil)
	require.NoError(t, err)
	assert.True(t, totals.RemainingBalance.Equal(decimal.NewFromInt(1000)),
		"income falls back to the unconverted figure")
}

func TestComputeTotalsSkipsBadCurrencyRecord(t *testing.T) {
	engine := New(staticRate{rate: "38.5"})
	expenses := []core.Expense{
		expense("corrupt", "50", "EUR", noon),
		expense("good", "10", core.USD, noon),
	}

	totals, err := engine.ComputeTotals(context.Background(), expenses,
		decimal.NewFromInt(100), core.USD, core.USD, nil)
	require.NoError(t, err)
	assert.True(t, totals.TotalExpenses.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 1, totals.Skipped)
}

func TestComputeTotalsUnknownReportingCurrency(t *testing.T) {
	engine := New(staticRate{rate: "38.5"})
	_, err := engine.ComputeTotals(context.Background(), nil,
		decimal.NewFromInt(100), core.USD, "EUR", nil)
	assert.ErrorIs(t, err, core.ErrUnsupportedCurrency)
}

func TestComputeTotalsSingleRateLookupPerPass(t *testing.T) {
	calls := 0
	engine := New(countingRate{staticRate{rate: "38.5"}, &calls})
	expenses := []core.Expense{
		expense("a", "100", core.UAH, noon),
		expense("b", "200", core.UAH, noon),
		expense("c", "300", core.UAH, noon),
	}

	_, err := engine.ComputeTotals(context.Background(), expenses,
		decimal.NewFromInt(1000), core.UAH, core.USD, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "one pass must snapshot the rate exactly once")
}

func TestComputeTotalsOverBudget(t *testing.T) {
	engine := New(staticRate{rate: "38.5"})
	expenses := []core.Expense{expense("big", "150", core.USD, noon)}

	totals, err := engine.ComputeTotals(context.Background(), expenses,
		decimal.NewFromInt(100), core.USD, core.USD, nil)
	require.NoError(t, err)
	assert.True(t, totals.OverBudget())
	assert.True(t, totals.RemainingBalance.Equal(decimal.NewFromInt(-50)))
}

func TestComputeTotalsWithConverterAndStore(t *testing.T) {
	// End to end against the real converter over the memory store.
	store := memory.NewSeeded()
	engine := New(rates.New(store))
	expenses := []core.Expense{expense("e1", "500", core.UAH, noon)}

	totals, err := engine.ComputeTotals(context.Background(), expenses,
		decimal.NewFromInt(1000), core.USD, core.USD, nil)
	require.NoError(t, err)
	assert.Equal(t, "12.99", core.DisplayAmount(totals.TotalExpenses))
	assert.Equal(t, "987.01", core.DisplayAmount(totals.RemainingBalance))
}
