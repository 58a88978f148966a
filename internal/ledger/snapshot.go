package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Snapshot is the full ledger content as read from or written to a store.
// It is a plain value: stores hand out copies, the gateway mutates a copy
// and writes it back conditionally.
type Snapshot struct {
	Transactions []Transaction `json:"transactions"`
}

// Find returns the index of the transaction with the given id.
func (s *Snapshot) Find(id string) (int, bool) {
	for i := range s.Transactions {
		if s.Transactions[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

// Pending returns the pending transactions, in ledger order.
func (s *Snapshot) Pending() []Transaction {
	var out []Transaction
	for _, t := range s.Transactions {
		if t.Status == StatusPending {
			out = append(out, t)
		}
	}
	return out
}

// Clone deep-copies the snapshot so a rebase-and-retry never mutates the
// base content it read.
func (s *Snapshot) Clone() Snapshot {
	out := Snapshot{Transactions: make([]Transaction, len(s.Transactions))}
	copy(out.Transactions, s.Transactions)
	return out
}

// Validate checks row invariants and id uniqueness across the whole ledger,
// voided rows included.
func (s *Snapshot) Validate() error {
	seen := make(map[string]bool, len(s.Transactions))
	for i := range s.Transactions {
		t := &s.Transactions[i]
		if err := t.Validate(); err != nil {
			return err
		}
		if seen[t.ID] {
			return fmt.Errorf("duplicate transaction id %s", t.ID)
		}
		seen[t.ID] = true
	}
	return nil
}

// DecodeSnapshot parses ledger content, rejecting unknown fields so a
// loosely-typed store cannot smuggle malformed rows past the boundary.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("decode ledger: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Snapshot{}, fmt.Errorf("validate ledger: %w", err)
	}
	return s, nil
}
