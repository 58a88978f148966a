// Package portfolio folds the ledger into positions and a dual valuation:
// net (latest published NAV, authoritative) and estimated (intraday
// approximation, corroborating only).
package portfolio

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"fundpilot/internal/calendar"
	"fundpilot/internal/config"
	"fundpilot/internal/ledger"
	"fundpilot/internal/marketdata"
	"fundpilot/internal/observ"
)

// Position is the derived per-fund holding. Recomputed every cycle from the
// transaction set; never persisted as source of truth.
type Position struct {
	FundCode   string
	Name       string
	AssetClass string

	Shares    decimal.Decimal
	CostBasis decimal.Decimal

	NAV           decimal.Decimal
	NavDate       calendar.Date
	EstimateValue decimal.Decimal
	EstimateAsOf  time.Time

	MarketValueNet decimal.Decimal
	MarketValueEst decimal.Decimal

	// Stale means no usable price: the position is excluded from both
	// valuation totals and surfaced as a warning, never silently zeroed.
	Stale bool
}

// Snapshot is one aggregation cycle's view of the portfolio.
type Snapshot struct {
	GeneratedAt time.Time

	Positions map[string]Position

	TotalNet decimal.Decimal
	TotalEst decimal.Decimal

	// Weights by asset class, per valuation track.
	WeightsNet map[string]decimal.Decimal
	WeightsEst map[string]decimal.Decimal

	// Warnings lists funds whose price was unavailable this cycle.
	Warnings []string
}

// Aggregator computes snapshots from ledger content and live prices.
type Aggregator struct {
	provider marketdata.Provider
	funds    map[string]config.Fund
}

func NewAggregator(provider marketdata.Provider, funds map[string]config.Fund) *Aggregator {
	return &Aggregator{provider: provider, funds: funds}
}

// Snapshot aggregates confirmed transactions into valued positions.
// Skipped and void rows never contribute shares; pending rows are cash in
// flight and carry no shares yet either.
func (a *Aggregator) Snapshot(ctx context.Context, led ledger.Snapshot, now time.Time) (Snapshot, error) {
	type holding struct {
		shares decimal.Decimal
		cost   decimal.Decimal
	}
	holdings := map[string]*holding{}
	for _, tx := range led.Transactions {
		if tx.Status != ledger.StatusConfirmed {
			continue
		}
		h := holdings[tx.FundCode]
		if h == nil {
			h = &holding{}
			holdings[tx.FundCode] = h
		}
		h.shares = h.shares.Add(tx.Shares)
		h.cost = h.cost.Add(tx.Amount)
	}

	snap := Snapshot{
		GeneratedAt: now,
		Positions:   map[string]Position{},
		WeightsNet:  map[string]decimal.Decimal{},
		WeightsEst:  map[string]decimal.Decimal{},
	}
	classNet := map[string]decimal.Decimal{}
	classEst := map[string]decimal.Decimal{}

	for code, h := range holdings {
		fund := a.funds[code]
		pos := Position{
			FundCode:   code,
			Name:       fund.Name,
			AssetClass: fund.AssetClass,
			Shares:     h.shares,
			CostBasis:  h.cost,
		}
		if h.shares.IsZero() {
			// Fully exited; zero weight is fine, not an error.
			snap.Positions[code] = pos
			continue
		}

		quote, err := a.provider.LatestNAV(ctx, code)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Snapshot{}, ctxErr
			}
			// Price unavailable is recoverable: flag, exclude, move on.
			pos.Stale = true
			snap.Positions[code] = pos
			snap.Warnings = append(snap.Warnings, code)
			observ.Log("position_price_unavailable", map[string]any{
				"fund": code, "error": err.Error(),
			})
			observ.IncCounter("aggregate_stale_positions_total", map[string]string{"fund": code})
			continue
		}

		pos.NAV = quote.NAV
		pos.NavDate = quote.PublishedDate
		pos.MarketValueNet = h.shares.Mul(quote.NAV)
		pos.MarketValueEst = pos.MarketValueNet

		if est, err := a.provider.IntradayEstimate(ctx, code); err == nil {
			pos.EstimateValue = est.Value
			pos.EstimateAsOf = est.AsOf
			// Use the estimate only when it postdates the published NAV.
			if calendar.DateOf(est.AsOf).After(quote.PublishedDate) {
				pos.MarketValueEst = h.shares.Mul(est.Value)
			}
		} else if !errors.Is(err, marketdata.ErrNotFound) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Snapshot{}, ctxErr
			}
			observ.Log("position_estimate_unavailable", map[string]any{
				"fund": code, "error": err.Error(),
			})
		}

		snap.Positions[code] = pos
		snap.TotalNet = snap.TotalNet.Add(pos.MarketValueNet)
		snap.TotalEst = snap.TotalEst.Add(pos.MarketValueEst)
		classNet[pos.AssetClass] = classNet[pos.AssetClass].Add(pos.MarketValueNet)
		classEst[pos.AssetClass] = classEst[pos.AssetClass].Add(pos.MarketValueEst)
	}

	if snap.TotalNet.IsPositive() {
		for class, v := range classNet {
			snap.WeightsNet[class] = v.Div(snap.TotalNet)
		}
	}
	if snap.TotalEst.IsPositive() {
		for class, v := range classEst {
			snap.WeightsEst[class] = v.Div(snap.TotalEst)
		}
	}
	return snap, nil
}
