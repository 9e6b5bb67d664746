// Money parsing and formatting helpers.
//
// Amounts arrive from the display layer as raw text ("12.34", "12,34")
// and are carried internally as decimals. Rounding to two places happens
// only at the display edge; sums are accumulated unrounded.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts user-entered amount text to a positive decimal.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// Returns ErrInvalidAmount for empty, malformed, zero or negative input.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		// Only positive values allowed
		return decimal.Decimal{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	return d, nil
}

// ParseRate converts user-entered rate text to a positive decimal.
// Rates share amount syntax but map malformed input to ErrInvalidRate.
func ParseRate(s string) (decimal.Decimal, error) {
	d, err := ParseAmount(s)
	if err != nil {
		return decimal.Decimal{}, ErrInvalidRate
	}
	return d, nil
}

// DisplayAmount formats a decimal for presentation with two fractional
// digits, half-up rounded.
func DisplayAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
