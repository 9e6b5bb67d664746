// Package backup serializes the full data set to a portable JSON
// document and restores it by bulk replace.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/k4rnaj1k/finance-tracker/internal/core"
	"github.com/k4rnaj1k/finance-tracker/internal/storage"
)

// ErrInvalidFormat is returned when an import document fails structural
// validation. The store has not been touched.
var ErrInvalidFormat = errors.New("invalid import format")

// PartialError reports a bulk replace that failed partway. Collections
// imported before the failing one stay replaced; the store is in a
// mixed state and the user should re-export and inspect before
// retrying.
type PartialError struct {
	Collection string
	Err        error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("import failed while replacing %s: %v", e.Collection, e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }

// Document is the export wire format. Dates are ISO-8601 strings and
// amounts are JSON numbers; the document round-trips the entire store
// state.
type Document struct {
	Expenses      []ExpenseRecord  `json:"expenses"`
	Categories    []CategoryRecord `json:"categories"`
	ExchangeRates []RateRecord     `json:"exchangeRates"`
	Settings      SettingsRecord   `json:"settings"`
}

type ExpenseRecord struct {
	ID          string      `json:"id"`
	Amount      json.Number `json:"amount"`
	Description string      `json:"description"`
	CategoryID  string      `json:"categoryId"`
	Date        time.Time   `json:"date"`
	Currency    string      `json:"currency"`
}

type CategoryRecord struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type RateRecord struct {
	ID   string      `json:"id"`
	Date time.Time   `json:"date"`
	Rate json.Number `json:"rate"`
}

type SettingsRecord struct {
	Income                   json.Number `json:"income"`
	IncomeCurrency           string      `json:"incomeCurrency"`
	DefaultCurrency          string      `json:"defaultCurrency"`
	IncomeMonthStart         *time.Time  `json:"incomeMonthStart"`
	PreviousIncomeMonthStart *time.Time  `json:"previousIncomeMonthStart"`
}

// Filename returns the conventional export file name for the given day,
// e.g. "finance-tracker-export-2024-06-01.json".
func Filename(t time.Time) string {
	return fmt.Sprintf("finance-tracker-export-%s.json", t.Format("2006-01-02"))
}

// Reconciler moves the whole data set between the store and the wire
// document, bypassing the incremental mutation paths.
type Reconciler struct {
	store storage.Store
}

func New(store storage.Store) *Reconciler {
	return &Reconciler{store: store}
}

// Export snapshots every collection plus settings into a document.
func (r *Reconciler) Export(ctx context.Context) (Document, error) {
	expenses, err := r.store.ListExpenses(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("export expenses: %w", err)
	}
	categories, err := r.store.ListCategories(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("export categories: %w", err)
	}
	rates, err := r.store.ListRates(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("export rates: %w", err)
	}
	settings, err := r.store.Settings(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("export settings: %w", err)
	}

	doc := Document{
		Expenses:      make([]ExpenseRecord, 0, len(expenses)),
		Categories:    make([]CategoryRecord, 0, len(categories)),
		ExchangeRates: make([]RateRecord, 0, len(rates)),
		Settings: SettingsRecord{
			Income:                   json.Number(settings.Income.String()),
			IncomeCurrency:           string(settings.IncomeCurrency),
			DefaultCurrency:          string(settings.DefaultCurrency),
			IncomeMonthStart:         settings.IncomeMonthStart,
			PreviousIncomeMonthStart: settings.PreviousIncomeMonthStart,
		},
	}
	for _, e := range expenses {
		doc.Expenses = append(doc.Expenses, ExpenseRecord{
			ID:          e.ID,
			Amount:      json.Number(e.Amount.String()),
			Description: e.Description,
			CategoryID:  e.CategoryID,
			Date:        e.Date,
			Currency:    string(e.Currency),
		})
	}
	for _, c := range categories {
		doc.Categories = append(doc.Categories, CategoryRecord{ID: c.ID, Name: c.Name, Color: c.Color})
	}
	for _, rate := range rates {
		doc.ExchangeRates = append(doc.ExchangeRates, RateRecord{
			ID:   rate.ID,
			Date: rate.Date,
			Rate: json.Number(rate.Rate.String()),
		})
	}
	return doc, nil
}

// ExportJSON renders the snapshot as indented JSON.
func (r *Reconciler) ExportJSON(ctx context.Context) ([]byte, error) {
	doc, err := r.Export(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export document: %w", err)
	}
	return data, nil
}

// Import validates the raw document and replaces the store contents
// with it. Validation happens entirely before the first write: a
// malformed document leaves the store untouched and reports
// ErrInvalidFormat.
//
// Collections are replaced in a fixed order (settings, categories,
// exchange rates, expenses), each as one clear-then-bulk-insert. There
// is no rollback across collections; a failure partway surfaces as
// *PartialError.
func (r *Reconciler) Import(ctx context.Context, data []byte) error {
	doc, err := Parse(data)
	if err != nil {
		return err
	}

	settings, categories, exchangeRates, expenses, err := decode(doc)
	if err != nil {
		return err
	}

	if err := r.store.SaveSettings(ctx, settings); err != nil {
		return &PartialError{Collection: "settings", Err: err}
	}
	if err := r.store.ReplaceCategories(ctx, categories); err != nil {
		return &PartialError{Collection: "categories", Err: err}
	}
	if err := r.store.ReplaceRates(ctx, exchangeRates); err != nil {
		return &PartialError{Collection: "exchangeRates", Err: err}
	}
	if err := r.store.ReplaceExpenses(ctx, expenses); err != nil {
		return &PartialError{Collection: "expenses", Err: err}
	}
	return nil
}

// Parse checks the document structure: all four top-level fields must
// be present with the correct container types.
func Parse(data []byte) (Document, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	for _, field := range []string{"expenses", "categories", "exchangeRates", "settings"} {
		if _, ok := raw[field]; !ok {
			return Document{}, fmt.Errorf("%w: missing field %q", ErrInvalidFormat, field)
		}
	}

	var doc Document
	if err := json.Unmarshal(raw["expenses"], &doc.Expenses); err != nil {
		return Document{}, fmt.Errorf("%w: expenses: %v", ErrInvalidFormat, err)
	}
	if err := json.Unmarshal(raw["categories"], &doc.Categories); err != nil {
		return Document{}, fmt.Errorf("%w: categories: %v", ErrInvalidFormat, err)
	}
	if err := json.Unmarshal(raw["exchangeRates"], &doc.ExchangeRates); err != nil {
		return Document{}, fmt.Errorf("%w: exchangeRates: %v", ErrInvalidFormat, err)
	}
	if err := json.Unmarshal(raw["settings"], &doc.Settings); err != nil {
		return Document{}, fmt.Errorf("%w: settings: %v", ErrInvalidFormat, err)
	}
	return doc, nil
}

// decode maps wire records to domain records, still before any write.
// Amounts must be valid decimals; everything else is carried as-is,
// including category references that no longer resolve.
func decode(doc Document) (core.Settings, []core.Category, []core.ExchangeRate, []core.Expense, error) {
	income, err := decimal.NewFromString(doc.Settings.Income.String())
	if err != nil {
		return core.Settings{}, nil, nil, nil, fmt.Errorf("%w: settings.income %q", ErrInvalidFormat, doc.Settings.Income)
	}
	settings := core.Settings{
		Income:                   income,
		IncomeCurrency:           core.Currency(doc.Settings.IncomeCurrency),
		DefaultCurrency:          core.Currency(doc.Settings.DefaultCurrency),
		IncomeMonthStart:         doc.Settings.IncomeMonthStart,
		PreviousIncomeMonthStart: doc.Settings.PreviousIncomeMonthStart,
	}

	categories := make([]core.Category, 0, len(doc.Categories))
	for _, c := range doc.Categories {
		categories = append(categories, core.Category{ID: c.ID, Name: c.Name, Color: c.Color})
	}

	exchangeRates := make([]core.ExchangeRate, 0, len(doc.ExchangeRates))
	for _, rec := range doc.ExchangeRates {
		rate, err := decimal.NewFromString(rec.Rate.String())
		if err != nil {
			return core.Settings{}, nil, nil, nil, fmt.Errorf("%w: rate %q for %q", ErrInvalidFormat, rec.Rate, rec.ID)
		}
		exchangeRates = append(exchangeRates, core.ExchangeRate{ID: rec.ID, Date: rec.Date, Rate: rate})
	}

	expenses := make([]core.Expense, 0, len(doc.Expenses))
	for _, rec := range doc.Expenses {
		amount, err := decimal.NewFromString(rec.Amount.String())
		if err != nil {
			return core.Settings{}, nil, nil, nil, fmt.Errorf("%w: amount %q for %q", ErrInvalidFormat, rec.Amount, rec.ID)
		}
		expenses = append(expenses, core.Expense{
			ID:          rec.ID,
			Amount:      amount,
			Description: rec.Description,
			CategoryID:  rec.CategoryID,
			Date:        rec.Date,
			Currency:    core.Currency(rec.Currency),
		})
	}

	return settings, categories, exchangeRates, expenses, nil
}
