package backup

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k4rnaj1k/finance-tracker/internal/core"
	"github.com/k4rnaj1k/finance-tracker/internal/storage/memory"
)

func populatedStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.NewSeeded()

	require.NoError(t, store.PutExpense(ctx, core.Expense{
		ID:          "e1",
		Amount:      decimal.RequireFromString("250.75"),
		Description: "rent share",
		CategoryID:  "seed-other",
		Date:        time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC),
		Currency:    core.UAH,
	}))
	require.NoError(t, store.PutExpense(ctx, core.Expense{
		ID:         "e2",
		Amount:     decimal.RequireFromString("12.40"),
		CategoryID: "ghost-category", // dangling on purpose
		Date:       time.Date(2024, 6, 5, 8, 30, 0, 0, time.UTC),
		Currency:   core.USD,
	}))
	require.NoError(t, store.PutRate(ctx, core.ExchangeRate{
		ID:   "r2",
		Date: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Rate: decimal.RequireFromString("40.1"),
	}))

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	prev := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveSettings(ctx, core.Settings{
		Income:                   decimal.RequireFromString("1800"),
		IncomeCurrency:           core.USD,
		DefaultCurrency:          core.UAH,
		IncomeMonthStart:         &start,
		PreviousIncomeMonthStart: &prev,
	}))
	return store
}

func expensesByID(t *testing.T, store *memory.Store) map[string]core.Expense {
	t.Helper()
	out := map[string]core.Expense{}
	list, err := store.ListExpenses(context.Background())
	require.NoError(t, err)
	for _, e := range list {
		out[e.ID] = e
	}
	return out
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	source := populatedStore(t)

	data, err := New(source).ExportJSON(ctx)
	require.NoError(t, err)

	// Import into a store holding unrelated records; they must all be
	// replaced, not merged.
	target := memory.New()
	require.NoError(t, target.PutExpense(ctx, core.Expense{
		ID:       "stale",
		Amount:   decimal.NewFromInt(1),
		Date:     time.Now().UTC(),
		Currency: core.USD,
	}))
	require.NoError(t, target.PutCategory(ctx, core.Category{ID: "stale-cat", Name: "Stale"}))

	require.NoError(t, New(target).Import(ctx, data))

	wantExpenses := expensesByID(t, source)
	gotExpenses := expensesByID(t, target)
	require.Len(t, gotExpenses, len(wantExpenses))
	for id, want := range wantExpenses {
		got, ok := gotExpenses[id]
		require.True(t, ok, "expense %s missing after import", id)
		assert.True(t, got.Amount.Equal(want.Amount), "%s amount: %s", id, got.Amount)
		assert.True(t, got.Date.Equal(want.Date), "%s date: %s", id, got.Date)
		assert.Equal(t, want.Currency, got.Currency)
		assert.Equal(t, want.CategoryID, got.CategoryID, "dangling references survive the trip")
	}

	wantCats, err := source.ListCategories(ctx)
	require.NoError(t, err)
	gotCats, err := target.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, wantCats, gotCats)

	wantRates, err := source.ListRates(ctx)
	require.NoError(t, err)
	gotRates, err := target.ListRates(ctx)
	require.NoError(t, err)
	require.Len(t, gotRates, len(wantRates))
	for i := range wantRates {
		assert.Equal(t, wantRates[i].ID, gotRates[i].ID)
		assert.True(t, gotRates[i].Rate.Equal(wantRates[i].Rate))
		assert.True(t, gotRates[i].Date.Equal(wantRates[i].Date))
	}

	wantSettings, err := source.Settings(ctx)
	require.NoError(t, err)
	gotSettings, err := target.Settings(ctx)
	require.NoError(t, err)
	assert.True(t, gotSettings.Income.Equal(wantSettings.Income))
	assert.Equal(t, wantSettings.IncomeCurrency, gotSettings.IncomeCurrency)
	assert.Equal(t, wantSettings.DefaultCurrency, gotSettings.DefaultCurrency)
	require.NotNil(t, gotSettings.IncomeMonthStart)
	assert.True(t, gotSettings.IncomeMonthStart.Equal(*wantSettings.IncomeMonthStart))
	require.NotNil(t, gotSettings.PreviousIncomeMonthStart)
	assert.True(t, gotSettings.PreviousIncomeMonthStart.Equal(*wantSettings.PreviousIncomeMonthStart))
}

func TestExportDocumentShape(t *testing.T) {
	data, err := New(populatedStore(t)).ExportJSON(context.Background())
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, field := range []string{"expenses", "categories", "exchangeRates", "settings"} {
		assert.Contains(t, raw, field)
	}

	// Amounts must be JSON numbers, not strings.
	var doc struct {
		Expenses []struct {
			Amount float64 `json:"amount"`
		} `json:"expenses"`
		Settings struct {
			Income float64 `json:"income"`
		} `json:"settings"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 1800.0, doc.Settings.Income)
}

func TestImportInvalidFormatLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name string
		data string
	}{
		{"not json", `{"expenses": [`},
		{"not an object", `[1, 2, 3]`},
		{"missing expenses", `{"categories":[],"exchangeRates":[],"settings":{}}`},
		{"missing settings", `{"expenses":[],"categories":[],"exchangeRates":[]}`},
		{"expenses wrong type", `{"expenses":{},"categories":[],"exchangeRates":[],"settings":{}}`},
		{"settings wrong type", `{"expenses":[],"categories":[],"exchangeRates":[],"settings":[]}`},
		{"bad amount", `{"expenses":[{"id":"x","amount":"abc","date":"2024-06-01T00:00:00Z","currency":"USD"}],"categories":[],"exchangeRates":[],"settings":{"income":0,"incomeCurrency":"USD","defaultCurrency":"USD","incomeMonthStart":null,"previousIncomeMonthStart":null}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := populatedStore(t)
			before := expensesByID(t, store)

			err := New(store).Import(ctx, []byte(tc.data))
			assert.ErrorIs(t, err, ErrInvalidFormat)

			after := expensesByID(t, store)
			assert.Equal(t, before, after, "store mutated by rejected import")
		})
	}
}

// failAfterCategories makes the exchange-rate replace fail to exercise
// the documented mixed-state outcome.
type failAfterCategories struct {
	*memory.Store
}

var errDiskFull = errors.New("disk full")

func (f failAfterCategories) ReplaceRates(context.Context, []core.ExchangeRate) error {
	return errDiskFull
}

func TestImportPartialFailure(t *testing.T) {
	ctx := context.Background()
	data, err := New(populatedStore(t)).ExportJSON(ctx)
	require.NoError(t, err)

	target := failAfterCategories{memory.New()}
	err = New(target).Import(ctx, data)

	var partial *PartialError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, "exchangeRates", partial.Collection)
	assert.ErrorIs(t, err, errDiskFull)

	// Earlier collections stay replaced: best effort, no rollback.
	cats, listErr := target.ListCategories(ctx)
	require.NoError(t, listErr)
	assert.Len(t, cats, 5, "categories imported before the failure must remain")
}

func TestFilename(t *testing.T) {
	d := time.Date(2024, 6, 1, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "finance-tracker-export-2024-06-01.json", Filename(d))
}
