package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k4rnaj1k/finance-tracker/internal/core"
	"github.com/k4rnaj1k/finance-tracker/internal/storage"
)

func TestSeededMatchesSQLiteDefaults(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	cats, err := s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 5)

	rate, err := s.LatestRate(ctx)
	require.NoError(t, err)
	assert.True(t, rate.Rate.Equal(decimal.RequireFromString("38.5")))
}

func TestLatestRatePicksNewestDate(t *testing.T) {
	ctx := context.Background()
	s := New()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, r := range []string{"36.6", "41.2", "39.0"} {
		require.NoError(t, s.PutRate(ctx, core.ExchangeRate{
			ID:   string(rune('a' + i)),
			Date: base.AddDate(0, i, 0),
			Rate: decimal.RequireFromString(r),
		}))
	}

	latest, err := s.LatestRate(ctx)
	require.NoError(t, err)
	assert.True(t, latest.Rate.Equal(decimal.RequireFromString("39.0")),
		"latest by date wins, got %s", latest.Rate)
}

func TestEmptyStoreHasNoRate(t *testing.T) {
	_, err := New().LatestRate(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestClosedStore(t *testing.T) {
	s := New()
	require.NoError(t, s.Close())
	_, err := s.Settings(context.Background())
	assert.ErrorIs(t, err, storage.ErrClosed)
}
