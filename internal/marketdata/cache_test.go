package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundpilot/internal/calendar"
)

func TestCachedProviderServesFromCacheWithinTTL(t *testing.T) {
	mock := NewMockProvider()
	mock.SetNAV(NavQuote{
		FundCode:      "000001",
		NAV:           decimal.RequireFromString("1.7645"),
		PublishedDate: calendar.MustDate("2025-08-22"),
	})

	cached := NewCachedProvider(mock, 5*time.Minute)
	clock := time.Date(2025, 8, 25, 10, 0, 0, 0, time.UTC)
	cached.now = func() time.Time { return clock }

	ctx := context.Background()
	q1, err := cached.LatestNAV(ctx, "000001")
	require.NoError(t, err)
	q2, err := cached.LatestNAV(ctx, "000001")
	require.NoError(t, err)

	assert.True(t, q1.NAV.Equal(q2.NAV))
	assert.Equal(t, 1, mock.Calls("000001"), "second read must come from cache")
}

func TestCachedProviderRefetchesAfterTTL(t *testing.T) {
	mock := NewMockProvider()
	mock.SetNAV(NavQuote{
		FundCode:      "000001",
		NAV:           decimal.NewFromInt(1),
		PublishedDate: calendar.MustDate("2025-08-22"),
	})

	cached := NewCachedProvider(mock, 5*time.Minute)
	clock := time.Date(2025, 8, 25, 10, 0, 0, 0, time.UTC)
	cached.now = func() time.Time { return clock }

	ctx := context.Background()
	_, err := cached.LatestNAV(ctx, "000001")
	require.NoError(t, err)

	clock = clock.Add(6 * time.Minute)
	_, err = cached.LatestNAV(ctx, "000001")
	require.NoError(t, err)
	assert.Equal(t, 2, mock.Calls("000001"))
}

func TestCachedProviderDoesNotCacheErrors(t *testing.T) {
	mock := NewMockProvider()
	cached := NewCachedProvider(mock, 5*time.Minute)
	ctx := context.Background()

	_, err := cached.LatestNAV(ctx, "000001")
	require.ErrorIs(t, err, ErrNotFound)

	// The quote appears upstream; the next call must see it.
	mock.SetNAV(NavQuote{
		FundCode:      "000001",
		NAV:           decimal.NewFromInt(1),
		PublishedDate: calendar.MustDate("2025-08-22"),
	})
	_, err = cached.LatestNAV(ctx, "000001")
	require.NoError(t, err)
}

func TestCachedProviderHistoryBypassesCache(t *testing.T) {
	mock := NewMockProvider()
	mock.SetHistory("000001", []NavPoint{
		{Date: calendar.MustDate("2025-08-21"), NAV: decimal.NewFromInt(1)},
		{Date: calendar.MustDate("2025-08-22"), NAV: decimal.NewFromInt(2)},
	})
	cached := NewCachedProvider(mock, 5*time.Minute)
	ctx := context.Background()

	from, to := calendar.MustDate("2025-08-01"), calendar.MustDate("2025-08-25")
	_, err := cached.HistoricalNAV(ctx, "000001", from, to)
	require.NoError(t, err)
	_, err = cached.HistoricalNAV(ctx, "000001", from, to)
	require.NoError(t, err)
	assert.Equal(t, 2, mock.Calls("000001"))
}

func TestCachedProviderCachesPerFund(t *testing.T) {
	mock := NewMockProvider()
	for _, code := range []string{"000001", "000002"} {
		mock.SetNAV(NavQuote{
			FundCode:      code,
			NAV:           decimal.NewFromInt(1),
			PublishedDate: calendar.MustDate("2025-08-22"),
		})
	}
	cached := NewCachedProvider(mock, 5*time.Minute)
	ctx := context.Background()

	_, err := cached.LatestNAV(ctx, "000001")
	require.NoError(t, err)
	_, err = cached.LatestNAV(ctx, "000002")
	require.NoError(t, err)
	assert.Equal(t, 1, mock.Calls("000001"))
	assert.Equal(t, 1, mock.Calls("000002"))
}
