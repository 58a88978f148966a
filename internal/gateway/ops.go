// Package gateway is the single choke point for ledger mutations. Every
// writer (confirmation poller, chat-driven command, manual job) expresses
// its change as a structured Operation and the gateway applies it with
// idempotency-key dedup and optimistic-concurrency retry.
package gateway

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fundpilot/internal/calendar"
	"fundpilot/internal/ledger"
)

// Operation is one logical ledger change. Apply mutates the snapshot in
// place against whatever base content the gateway just read; it must be
// safe to re-apply against a newer base after a conflict rebase.
// changed == false with a nil error means the ledger already reflects the
// operation (idempotent replay).
type Operation interface {
	// Key is the idempotency key, stable across retries of the same
	// logical operation.
	Key() string
	Apply(s *ledger.Snapshot, now time.Time) (changed bool, err error)
	Describe() string
}

// AppendOp adds a new transaction. Replaying the same transaction id is a
// no-op regardless of what state the row has since moved to.
type AppendOp struct {
	Tx ledger.Transaction
}

func (op AppendOp) Key() string      { return op.Tx.ID }
func (op AppendOp) Describe() string { return "append " + op.Tx.ID }

func (op AppendOp) Apply(s *ledger.Snapshot, now time.Time) (bool, error) {
	if _, ok := s.Find(op.Tx.ID); ok {
		return false, nil
	}
	tx := op.Tx
	if err := tx.Validate(); err != nil {
		return false, err
	}
	tx.CreatedAt = now
	tx.UpdatedAt = now
	s.Transactions = append(s.Transactions, tx)
	return true, nil
}

// ConfirmOp back-fills a pending transaction once its settlement price is
// published. Buy/sell rows become confirmed with shares and NAV; skip rows
// close out as skipped with zero shares.
type ConfirmOp struct {
	ID          string
	Shares      decimal.Decimal
	NAV         decimal.Decimal
	ConfirmDate calendar.Date
}

func (op ConfirmOp) Key() string      { return op.ID + ":confirm" }
func (op ConfirmOp) Describe() string { return "confirm " + op.ID }

func (op ConfirmOp) Apply(s *ledger.Snapshot, now time.Time) (bool, error) {
	i, ok := s.Find(op.ID)
	if !ok {
		return false, fmt.Errorf("transaction %s not found", op.ID)
	}
	tx := &s.Transactions[i]

	target := ledger.StatusConfirmed
	if tx.Kind == ledger.KindSkip {
		target = ledger.StatusSkipped
	}
	if tx.Status == target {
		return false, nil
	}
	if !ledger.CanTransition(tx.Status, target) {
		return false, &ledger.InvalidTransitionError{ID: tx.ID, From: tx.Status, To: target}
	}
	if target == ledger.StatusConfirmed && op.Shares.IsZero() {
		return false, fmt.Errorf("transaction %s: confirm requires shares", op.ID)
	}

	tx.Shares = op.Shares
	tx.NAV = op.NAV
	tx.ConfirmDate = op.ConfirmDate
	tx.Status = target
	tx.UpdatedAt = now
	return true, nil
}

// SkipOp marks a pending scheduled investment as skipped. The row may be
// addressed by id, or by fund code and trade date when the caller (a chat
// command) doesn't know the id.
type SkipOp struct {
	ID       string
	FundCode string
	Date     calendar.Date
}

func (op SkipOp) Key() string {
	if op.ID != "" {
		return op.ID + ":skip"
	}
	return op.FundCode + "@" + op.Date.String() + ":skip"
}

func (op SkipOp) Describe() string { return "skip " + op.Key() }

func (op SkipOp) Apply(s *ledger.Snapshot, now time.Time) (bool, error) {
	i, ok := op.find(s)
	if !ok {
		return false, fmt.Errorf("no transaction matching %s", op.Describe())
	}
	tx := &s.Transactions[i]
	if tx.Status == ledger.StatusSkipped {
		return false, nil
	}
	if !ledger.CanTransition(tx.Status, ledger.StatusSkipped) {
		return false, &ledger.InvalidTransitionError{ID: tx.ID, From: tx.Status, To: ledger.StatusSkipped}
	}
	tx.Status = ledger.StatusSkipped
	tx.UpdatedAt = now
	return true, nil
}

func (op SkipOp) find(s *ledger.Snapshot) (int, bool) {
	if op.ID != "" {
		return s.Find(op.ID)
	}
	for i := range s.Transactions {
		t := &s.Transactions[i]
		if t.FundCode == op.FundCode && t.Date == op.Date && t.Status != ledger.StatusVoid {
			return i, true
		}
	}
	return -1, false
}

// VoidOp soft-deletes a transaction: the row transitions to void and stays
// in the ledger for audit. Nothing is ever physically removed.
type VoidOp struct {
	ID string
}

func (op VoidOp) Key() string      { return op.ID + ":void" }
func (op VoidOp) Describe() string { return "void " + op.ID }

func (op VoidOp) Apply(s *ledger.Snapshot, now time.Time) (bool, error) {
	i, ok := s.Find(op.ID)
	if !ok {
		return false, fmt.Errorf("transaction %s not found", op.ID)
	}
	tx := &s.Transactions[i]
	if tx.Status == ledger.StatusVoid {
		return false, nil
	}
	if !ledger.CanTransition(tx.Status, ledger.StatusVoid) {
		return false, &ledger.InvalidTransitionError{ID: tx.ID, From: tx.Status, To: ledger.StatusVoid}
	}
	tx.Status = ledger.StatusVoid
	tx.UpdatedAt = now
	return true, nil
}
