package gateway

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fundpilot/internal/calendar"
	"fundpilot/internal/ledger"
)

// NewTransaction builds a pending ledger row for an order submitted at
// submit time: effective trade date per the unknown-price cutoff, expected
// NAV and confirmation dates per the fund's settlement schedule. The id, if
// not supplied, is generated and becomes the operation's idempotency key,
// so callers that retry must pass the id from the first attempt.
func NewTransaction(cal *calendar.Calendar, id, fundCode string, fundType calendar.FundType,
	kind ledger.Kind, amount decimal.Decimal, submit time.Time) (ledger.Transaction, error) {

	tradeDate, err := cal.EffectiveTradeDate(submit, calendar.Domestic)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("derive trade date: %w", err)
	}
	navDate, confirmDate, err := cal.ConfirmSchedule(tradeDate, fundType)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("derive confirm schedule: %w", err)
	}
	if id == "" {
		id = "tx-" + uuid.NewString()
	}

	tx := ledger.Transaction{
		ID:                  id,
		Date:                tradeDate,
		FundCode:            fundCode,
		Amount:              amount,
		Kind:                kind,
		Status:              ledger.StatusPending,
		ExpectedNavDate:     navDate,
		ExpectedConfirmDate: confirmDate,
	}
	if err := tx.Validate(); err != nil {
		return ledger.Transaction{}, err
	}
	return tx, nil
}
