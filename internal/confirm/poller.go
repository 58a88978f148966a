// Package confirm back-fills pending ledger entries once their settlement
// prices are published.
package confirm

import (
	"context"
	"errors"
	"fmt"

	"fundpilot/internal/calendar"
	"fundpilot/internal/gateway"
	"fundpilot/internal/ledger"
	"fundpilot/internal/marketdata"
	"fundpilot/internal/observ"
)

// Poller is the periodic confirmation job. It must hold an uncached
// provider: a cached estimate is never acceptable as a settlement price.
type Poller struct {
	store    ledger.Store
	gw       *gateway.Gateway
	provider marketdata.Provider
}

func NewPoller(store ledger.Store, gw *gateway.Gateway, provider marketdata.Provider) *Poller {
	return &Poller{store: store, gw: gw, provider: provider}
}

// Run performs one polling pass as of today and returns how many
// transactions it confirmed. A NAV not yet published leaves the row
// pending for the next pass; a replay against an already-confirmed row is
// a gateway no-op.
func (p *Poller) Run(ctx context.Context, today calendar.Date) (int, error) {
	snap, _, err := p.store.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("confirm poll: %w", err)
	}

	confirmed := 0
	for _, tx := range snap.Pending() {
		if tx.ExpectedConfirmDate.IsZero() || tx.ExpectedConfirmDate.After(today) {
			continue
		}

		op, ok, err := p.buildConfirm(ctx, tx)
		if err != nil {
			return confirmed, err
		}
		if !ok {
			continue
		}

		outcome, err := p.gw.Apply(ctx, op)
		if err != nil {
			var ite *ledger.InvalidTransitionError
			if errors.As(err, &ite) {
				// Someone settled the row by hand between our read and
				// write; the ledger already has the truth.
				observ.Log("confirm_row_already_settled", map[string]any{"tx": tx.ID})
				continue
			}
			return confirmed, fmt.Errorf("confirm %s: %w", tx.ID, err)
		}
		switch outcome {
		case gateway.OutcomeApplied:
			confirmed++
			observ.Log("transaction_confirmed", map[string]any{
				"tx": tx.ID, "fund": tx.FundCode,
				"shares": op.Shares.String(), "nav": op.NAV.String(),
			})
		case gateway.OutcomeConflictExhausted:
			observ.Log("confirm_conflict_exhausted", map[string]any{"tx": tx.ID})
		}
	}

	observ.Log("confirm_poll_done", map[string]any{"confirmed": confirmed})
	return confirmed, nil
}

// buildConfirm decides whether tx can be confirmed yet and with what fill.
// ok=false means the price is not published yet; try again next pass.
func (p *Poller) buildConfirm(ctx context.Context, tx ledger.Transaction) (gateway.ConfirmOp, bool, error) {
	// Logged skips settle without a price.
	if tx.Kind == ledger.KindSkip {
		return gateway.ConfirmOp{ID: tx.ID, ConfirmDate: tx.ExpectedConfirmDate}, true, nil
	}

	quote, err := p.provider.LatestNAV(ctx, tx.FundCode)
	if errors.Is(err, marketdata.ErrNotFound) {
		return gateway.ConfirmOp{}, false, nil
	}
	if err != nil {
		return gateway.ConfirmOp{}, false, fmt.Errorf("fetch nav for %s: %w", tx.FundCode, err)
	}
	if quote.PublishedDate.Before(tx.ExpectedNavDate) {
		// Published NAV predates the trade's pricing date: not ours yet.
		return gateway.ConfirmOp{}, false, nil
	}
	if !quote.NAV.IsPositive() {
		return gateway.ConfirmOp{}, false, fmt.Errorf("fund %s: non-positive nav %s", tx.FundCode, quote.NAV)
	}

	shares := tx.Amount.Div(quote.NAV).Round(2)
	return gateway.ConfirmOp{
		ID:          tx.ID,
		Shares:      shares,
		NAV:         quote.NAV,
		ConfirmDate: quote.PublishedDate,
	}, true, nil
}
