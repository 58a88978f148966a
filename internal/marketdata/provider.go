// Package marketdata is the boundary to the fund NAV collaborator: latest
// published NAV, intraday estimate, historical series. Prices here are
// read-only inputs; short-lived caching is fine for valuation but cached
// estimates are never presented as confirmed settlement prices (the
// confirmation poller talks to the uncached provider).
package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"fundpilot/internal/calendar"
)

// ErrNotFound means the collaborator has no data for the instrument (or
// none published yet). Recoverable: the caller degrades or retries later.
var ErrNotFound = errors.New("marketdata: not found")

// NavQuote is the latest officially published NAV for a fund.
type NavQuote struct {
	FundCode      string
	NAV           decimal.Decimal
	PublishedDate calendar.Date
	FetchedAt     time.Time
}

// Estimate is an intraday valuation approximation, pending official
// publication. Always corroborating context, never authoritative.
type Estimate struct {
	FundCode string
	Value    decimal.Decimal
	AsOf     time.Time
}

// NavPoint is one day of a historical NAV series.
type NavPoint struct {
	Date calendar.Date
	NAV  decimal.Decimal
}

// Provider is the market-data collaborator contract.
type Provider interface {
	LatestNAV(ctx context.Context, fundCode string) (NavQuote, error)
	IntradayEstimate(ctx context.Context, fundCode string) (Estimate, error)
	// HistoricalNAV returns the (date, nav) series for [from, to], oldest
	// first.
	HistoricalNAV(ctx context.Context, fundCode string, from, to calendar.Date) ([]NavPoint, error)
}
