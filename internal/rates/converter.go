// Package rates converts amounts between the two supported currencies
// using the latest recorded exchange rate.
package rates

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/k4rnaj1k/finance-tracker/internal/core"
	"github.com/k4rnaj1k/finance-tracker/internal/storage"
)

// ErrRateUnavailable is returned when a cross-currency conversion is
// requested but no exchange rate has ever been recorded.
var ErrRateUnavailable = errors.New("no exchange rate available")

// divScale keeps secondary->base divisions precise enough that a
// round-trip conversion stays within 1e-9 of the input.
const divScale = 12

// Converter resolves conversions against a rate source. It holds no
// cache: every cross-currency call reads the current latest rate, so
// batch callers wanting one consistent rate must snapshot it via
// LatestRate and use ConvertAt.
type Converter struct {
	src storage.RateStore
}

func New(src storage.RateStore) *Converter {
	return &Converter{src: src}
}

// Convert converts amount from one currency to another at the latest
// recorded rate.
//
// Same-currency conversions return the amount unchanged without touching
// the store. Unknown currency codes fail with
// core.ErrUnsupportedCurrency; they are a caller defect and the original
// amount is never passed through. A missing rate fails with
// ErrRateUnavailable.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, from, to core.Currency) (decimal.Decimal, error) {
	if from == to {
		if !from.Known() {
			return decimal.Decimal{}, fmt.Errorf("currency %q: %w", from, core.ErrUnsupportedCurrency)
		}
		return amount, nil
	}
	if !from.Known() || !to.Known() {
		return decimal.Decimal{}, fmt.Errorf("convert %s->%s: %w", from, to, core.ErrUnsupportedCurrency)
	}

	rate, err := c.LatestRate(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return ConvertAt(amount, rate.Rate, from, to)
}

// LatestRate returns the authoritative rate, mapping an empty rate log
// to ErrRateUnavailable. Storage failures pass through unchanged.
func (c *Converter) LatestRate(ctx context.Context) (core.ExchangeRate, error) {
	rate, err := c.src.LatestRate(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return core.ExchangeRate{}, ErrRateUnavailable
	}
	if err != nil {
		return core.ExchangeRate{}, fmt.Errorf("read latest rate: %w", err)
	}
	return rate, nil
}

// ConvertAt converts amount at an explicit rate, without store access.
// The aggregation engine uses it to apply one rate snapshot across a
// whole pass.
func ConvertAt(amount, rate decimal.Decimal, from, to core.Currency) (decimal.Decimal, error) {
	if from == to {
		if !from.Known() {
			return decimal.Decimal{}, fmt.Errorf("currency %q: %w", from, core.ErrUnsupportedCurrency)
		}
		return amount, nil
	}
	perFrom, err := core.UnitsPerBase(from, rate)
	if err != nil {
		return decimal.Decimal{}, err
	}
	perTo, err := core.UnitsPerBase(to, rate)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return amount.Mul(perTo).DivRound(perFrom, divScale), nil
}
