// Package core holds the domain types of the finance tracker: expenses,
// categories, exchange rates, settings and the currency table.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is an ISO-4217 style code. Exactly two codes are supported;
// every other code is rejected, never silently passed through.
type Currency string

const (
	USD Currency = "USD"
	UAH Currency = "UAH"
)

// BaseCurrency is the currency exchange rates are quoted against:
// a rate r means "1 BaseCurrency = r units of the secondary currency".
const BaseCurrency = USD

// Currencies lists the supported codes in display order.
func Currencies() []Currency {
	return []Currency{USD, UAH}
}

func (c Currency) Known() bool {
	switch c {
	case USD, UAH:
		return true
	}
	return false
}

func (c Currency) String() string { return string(c) }

// ParseCurrency normalizes and validates a currency code.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Known() {
		return "", fmt.Errorf("parse currency %q: %w", s, ErrUnsupportedCurrency)
	}
	return c, nil
}

// UnitsPerBase returns how many units of c one unit of BaseCurrency buys
// at the given rate. This is the single place that knows the shape of the
// rate quote; adding a currency means adding a row here, not touching
// call sites.
func UnitsPerBase(c Currency, rate decimal.Decimal) (decimal.Decimal, error) {
	switch c {
	case USD:
		return decimal.NewFromInt(1), nil
	case UAH:
		return rate, nil
	}
	return decimal.Decimal{}, fmt.Errorf("currency %q: %w", c, ErrUnsupportedCurrency)
}
