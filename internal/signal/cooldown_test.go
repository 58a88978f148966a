package signal

import (
	"os"
	"path/filepath"
	"testing"

	"fundpilot/internal/calendar"
)

func TestRegistryActiveBoundary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signal_state.json")
	reg, err := NewRegistry(path)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	fired := calendar.MustDate("2025-08-25")
	if err := reg.Stamp([]FiredPair{{TypeRebalanceLight, "equity_cn"}}, fired); err != nil {
		t.Fatalf("stamp: %v", err)
	}

	cases := []struct {
		asOf string
		want bool
	}{
		{"2025-08-25", true},  // same day
		{"2025-09-23", true},  // day 29 of 30
		{"2025-09-24", false}, // day 30, eligible
		{"2025-10-01", false},
	}
	for _, tc := range cases {
		got, err := reg.Active(TypeRebalanceLight, "equity_cn", calendar.MustDate(tc.asOf), 30)
		if err != nil {
			t.Fatalf("%s: %v", tc.asOf, err)
		}
		if got != tc.want {
			t.Fatalf("%s: active=%v want %v", tc.asOf, got, tc.want)
		}
	}

	// Unstamped pairs are never active.
	got, err := reg.Active(TypeTacticalBuy, "equity_cn", fired, 30)
	if err != nil || got {
		t.Fatalf("unstamped pair active=%v err=%v", got, err)
	}
}

func TestRegistryPersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signal_state.json")
	reg1, err := NewRegistry(path)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	fired := calendar.MustDate("2025-08-25")
	if err := reg1.Stamp([]FiredPair{{TypeRebalanceForced, "bond_cn"}}, fired); err != nil {
		t.Fatalf("stamp: %v", err)
	}

	// A fresh process reading the same file sees the stamp.
	reg2, err := NewRegistry(path)
	if err != nil {
		t.Fatalf("second registry: %v", err)
	}
	active, err := reg2.Active(TypeRebalanceForced, "bond_cn", fired.AddDays(10), 90)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if !active {
		t.Fatalf("stamp not visible to a fresh registry")
	}
}

func TestRegistryStampMergesWithExistingEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signal_state.json")
	reg, err := NewRegistry(path)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	d1 := calendar.MustDate("2025-08-01")
	d2 := calendar.MustDate("2025-08-25")
	if err := reg.Stamp([]FiredPair{{TypeRebalanceLight, "equity_cn"}}, d1); err != nil {
		t.Fatalf("stamp 1: %v", err)
	}
	if err := reg.Stamp([]FiredPair{{TypeTacticalBuy, "gold"}}, d2); err != nil {
		t.Fatalf("stamp 2: %v", err)
	}

	// Both entries survive.
	if active, _ := reg.Active(TypeRebalanceLight, "equity_cn", d2, 60); !active {
		t.Fatalf("earlier stamp lost")
	}
	if active, _ := reg.Active(TypeTacticalBuy, "gold", d2, 30); !active {
		t.Fatalf("later stamp missing")
	}
}

func TestRegistryEmptyStampIsNoWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signal_state.json")
	reg, err := NewRegistry(path)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if err := reg.Stamp(nil, calendar.MustDate("2025-08-25")); err != nil {
		t.Fatalf("empty stamp: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("empty stamp created the state file")
	}
}

func TestRegistryRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signal_state.json")
	if err := os.WriteFile(path, []byte(`{"version":1,"last_fired":{},"extra":true}`), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	reg, err := NewRegistry(path)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if _, err := reg.Active(TypeRebalanceLight, "equity_cn", calendar.MustDate("2025-08-25"), 30); err == nil {
		t.Fatalf("expected decode error for unknown field")
	}
}
