package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fundpilot/internal/calendar"
)

func validBuy(id string) Transaction {
	return Transaction{
		ID:        id,
		Date:      calendar.MustDate("2025-06-10"),
		FundCode:  "000001",
		Amount:    decimal.NewFromInt(1000),
		Kind:      KindBuy,
		Status:    StatusPending,
		CreatedAt: time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestTransactionValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Transaction)
		wantOK bool
	}{
		{"valid buy", func(tx *Transaction) {}, true},
		{"missing id", func(tx *Transaction) { tx.ID = "" }, false},
		{"missing fund", func(tx *Transaction) { tx.FundCode = "" }, false},
		{"missing date", func(tx *Transaction) { tx.Date = calendar.Date{} }, false},
		{"unknown kind", func(tx *Transaction) { tx.Kind = "short" }, false},
		{"unknown status", func(tx *Transaction) { tx.Status = "limbo" }, false},
		{"negative buy", func(tx *Transaction) { tx.Amount = decimal.NewFromInt(-5) }, false},
		{"positive sell", func(tx *Transaction) {
			tx.Kind = KindSell
			tx.Amount = decimal.NewFromInt(5)
		}, false},
		{"nonzero skip", func(tx *Transaction) {
			tx.Kind = KindSkip
			tx.Amount = decimal.NewFromInt(1)
		}, false},
		{"confirmed without shares", func(tx *Transaction) {
			tx.Status = StatusConfirmed
		}, false},
		{"confirmed with shares", func(tx *Transaction) {
			tx.Status = StatusConfirmed
			tx.Shares = decimal.RequireFromString("566.73")
			tx.NAV = decimal.RequireFromString("1.7645")
		}, true},
		{"confirmed skip without shares", func(tx *Transaction) {
			tx.Kind = KindSkip
			tx.Amount = decimal.Zero
			tx.Status = StatusSkipped
		}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := validBuy("tx-1")
			tc.mutate(&tx)
			err := tx.Validate()
			if tc.wantOK && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.wantOK && err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	for _, to := range []Status{StatusConfirmed, StatusSkipped, StatusVoid} {
		if !CanTransition(StatusPending, to) {
			t.Fatalf("pending -> %s should be legal", to)
		}
	}
	terminal := []Status{StatusConfirmed, StatusSkipped, StatusVoid}
	for _, from := range terminal {
		for _, to := range append(terminal, StatusPending) {
			if CanTransition(from, to) {
				t.Fatalf("%s -> %s should be illegal", from, to)
			}
		}
	}
}

func TestSnapshotValidateDuplicateID(t *testing.T) {
	s := Snapshot{Transactions: []Transaction{validBuy("tx-1"), validBuy("tx-1")}}
	if err := s.Validate(); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestSnapshotCloneIsolation(t *testing.T) {
	s := Snapshot{Transactions: []Transaction{validBuy("tx-1")}}
	c := s.Clone()
	c.Transactions[0].Status = StatusVoid
	if s.Transactions[0].Status != StatusPending {
		t.Fatalf("clone mutated the base snapshot")
	}
}

func TestSnapshotPending(t *testing.T) {
	confirmed := validBuy("tx-2")
	confirmed.Status = StatusConfirmed
	confirmed.Shares = decimal.RequireFromString("100")
	s := Snapshot{Transactions: []Transaction{validBuy("tx-1"), confirmed, validBuy("tx-3")}}
	got := s.Pending()
	if len(got) != 2 || got[0].ID != "tx-1" || got[1].ID != "tx-3" {
		t.Fatalf("pending: got %v", got)
	}
}

func TestDecodeSnapshotRejectsUnknownFields(t *testing.T) {
	_, err := DecodeSnapshot([]byte(`{"transactions":[],"surprise":1}`))
	if err == nil {
		t.Fatalf("expected unknown-field error")
	}
}

func TestInvalidTransitionErrorAs(t *testing.T) {
	var target *InvalidTransitionError
	err := error(&InvalidTransitionError{ID: "tx-1", From: StatusVoid, To: StatusConfirmed})
	if !errors.As(err, &target) {
		t.Fatalf("errors.As failed")
	}
	if target.ID != "tx-1" {
		t.Fatalf("got %q", target.ID)
	}
}
