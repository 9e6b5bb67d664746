package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidRate         = errors.New("invalid exchange rate")
	ErrInvalidDate         = errors.New("invalid date")
	ErrEmptyID             = errors.New("empty id")
	ErrEmptyName           = errors.New("empty name")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
)

type (
	// Expense is a single recorded spending. CategoryID may reference a
	// category that no longer exists; dangling references are tolerated
	// and rendered as "Unknown" by display layers.
	Expense struct {
		ID          string          `json:"id"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
		CategoryID  string          `json:"categoryId"`
		Date        time.Time       `json:"date"`
		Currency    Currency        `json:"currency"`
	}

	Category struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Color string `json:"color"` // RGB hex, e.g. "#FF6384"
	}

	// ExchangeRate records that 1 unit of the base currency bought Rate
	// units of the secondary currency at Date. The latest rate by date is
	// authoritative for all conversions; older rates are kept as history.
	ExchangeRate struct {
		ID   string          `json:"id"`
		Date time.Time       `json:"date"`
		Rate decimal.Decimal `json:"rate"`
	}

	// Settings is the singleton configuration snapshot. Nil period starts
	// mean "not configured yet".
	Settings struct {
		Income                   decimal.Decimal
		IncomeCurrency           Currency
		DefaultCurrency          Currency
		IncomeMonthStart         *time.Time
		PreviousIncomeMonthStart *time.Time
	}
)

func (e Expense) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return ErrEmptyID
	}
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	if !e.Currency.Known() {
		return ErrUnsupportedCurrency
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (r ExchangeRate) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrEmptyID
	}
	if !r.Rate.IsPositive() {
		return ErrInvalidRate
	}
	if r.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// DefaultCategories returns the five categories seeded on first
// initialization of a fresh store.
func DefaultCategories() []Category {
	return []Category{
		{ID: "seed-food", Name: "Food", Color: "#FF6384"},
		{ID: "seed-transport", Name: "Transport", Color: "#36A2EB"},
		{ID: "seed-entertainment", Name: "Entertainment", Color: "#FFCE56"},
		{ID: "seed-health", Name: "Health", Color: "#4BC0C0"},
		{ID: "seed-other", Name: "Other", Color: "#9966FF"},
	}
}

// DefaultExchangeRate returns the rate seeded on first initialization:
// 1 USD = 38.5 UAH.
func DefaultExchangeRate(now time.Time) ExchangeRate {
	return ExchangeRate{
		ID:   "seed-rate",
		Date: now,
		Rate: decimal.RequireFromString("38.5"),
	}
}

// DefaultSettings returns the settings written on first initialization.
// The income period start is established lazily by the period tracker.
func DefaultSettings() Settings {
	return Settings{
		Income:          decimal.Zero,
		IncomeCurrency:  USD,
		DefaultCurrency: USD,
	}
}
