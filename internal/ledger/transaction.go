// Package ledger owns the transaction record type and the versioned,
// conditionally-written stores that persist the ledger. All mutation goes
// through the gateway package; nothing here writes unconditionally.
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fundpilot/internal/calendar"
)

// Kind is the economic direction of a transaction.
type Kind string

const (
	KindBuy  Kind = "buy"
	KindSell Kind = "sell"
	KindSkip Kind = "skip" // a logged decision not to invest; amount zero
)

func (k Kind) Valid() bool {
	switch k {
	case KindBuy, KindSell, KindSkip:
		return true
	}
	return false
}

// Status is the settlement lifecycle state of a transaction. Transitions
// move strictly forward: pending is the only non-terminal state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusSkipped   Status = "skipped"
	StatusVoid      Status = "void" // soft-deleted, kept for audit
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusSkipped, StatusVoid:
		return true
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusSkipped || s == StatusVoid
}

// CanTransition reports whether a status change is legal.
func CanTransition(from, to Status) bool {
	return from == StatusPending && to.Terminal()
}

// InvalidTransitionError names the invariant that blocked a status change,
// so chat-driven callers get an explanation rather than a silent coercion.
type InvalidTransitionError struct {
	ID   string
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("transaction %s is %s, cannot transition to %s", e.ID, e.From, e.To)
}

// Transaction is one ledger row. IDs are unique across the ledger's entire
// lifetime, voided rows included: the ID doubles as the idempotency key for
// mutations, so it is never reused.
type Transaction struct {
	ID       string          `json:"id"`
	Date     calendar.Date   `json:"date"`
	FundCode string          `json:"fund_code"`
	Amount   decimal.Decimal `json:"amount"` // signed: buy > 0, sell < 0, skip 0
	Shares   decimal.Decimal `json:"shares"` // zero until confirmed
	NAV      decimal.Decimal `json:"nav"`    // fill price, set on confirmation
	Kind     Kind            `json:"kind"`
	Status   Status          `json:"status"`

	ConfirmDate         calendar.Date `json:"confirm_date,omitempty"`
	ExpectedNavDate     calendar.Date `json:"expected_nav_date,omitempty"`
	ExpectedConfirmDate calendar.Date `json:"expected_confirm_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks structural invariants of a single row.
func (t *Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("transaction missing id")
	}
	if t.FundCode == "" {
		return fmt.Errorf("transaction %s missing fund_code", t.ID)
	}
	if t.Date.IsZero() {
		return fmt.Errorf("transaction %s missing date", t.ID)
	}
	if !t.Kind.Valid() {
		return fmt.Errorf("transaction %s has unknown kind %q", t.ID, t.Kind)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("transaction %s has unknown status %q", t.ID, t.Status)
	}
	switch t.Kind {
	case KindBuy:
		if t.Amount.IsNegative() {
			return fmt.Errorf("transaction %s: buy amount must be positive", t.ID)
		}
	case KindSell:
		if t.Amount.IsPositive() {
			return fmt.Errorf("transaction %s: sell amount must be negative", t.ID)
		}
	case KindSkip:
		if !t.Amount.IsZero() {
			return fmt.Errorf("transaction %s: skip amount must be zero", t.ID)
		}
	}
	if t.Status == StatusConfirmed && t.Kind != KindSkip && t.Shares.IsZero() {
		return fmt.Errorf("transaction %s: confirmed without shares", t.ID)
	}
	return nil
}
