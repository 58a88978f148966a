package signal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fundpilot/internal/calendar"
	"fundpilot/internal/observ"
)

// Registry persists the cooldown state: for each (signal type, asset
// class) pair, the date it last fired. It follows the same versioned
// conditional-write discipline as the ledger, since a manual evaluation can
// race a scheduled one. Like FileStore, the check-and-set holds under the
// process mutex on a single host; evaluators spread across hosts would
// need the state behind the Redis backend instead.
type Registry struct {
	mu   sync.Mutex
	path string
}

type cooldownState struct {
	Version   int64                    `json:"version"`
	UpdatedAt string                   `json:"updated_at"`
	LastFired map[string]calendar.Date `json:"last_fired"` // "type|class" -> date
}

const stampRetries = 3

func NewRegistry(path string) (*Registry, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create signal state dir: %w", err)
	}
	return &Registry{path: path}, nil
}

func cooldownKey(t Type, assetClass string) string {
	return string(t) + "|" + assetClass
}

// Active reports whether the pair is still cooling down as of asOf.
func (r *Registry) Active(t Type, assetClass string, asOf calendar.Date, cooldownDays int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, err := r.read()
	if err != nil {
		return false, err
	}
	last, ok := state.LastFired[cooldownKey(t, assetClass)]
	if !ok {
		return false, nil
	}
	return asOf.DaysSince(last) < cooldownDays, nil
}

// Stamp records asOf as the fire date for every pair, using a bounded
// check-and-set retry so overlapping evaluation runs merge instead of
// clobbering each other.
func (r *Registry) Stamp(pairs []FiredPair, asOf calendar.Date) error {
	if len(pairs) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for attempt := 0; attempt < stampRetries; attempt++ {
		state, err := r.read()
		if err != nil {
			return err
		}
		base := state.Version
		if state.LastFired == nil {
			state.LastFired = map[string]calendar.Date{}
		}
		for _, p := range pairs {
			state.LastFired[cooldownKey(p.Type, p.AssetClass)] = asOf
		}
		ok, err := r.writeIfVersion(state, base)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		observ.IncCounter("cooldown_stamp_conflicts_total", nil)
	}
	return fmt.Errorf("cooldown registry: conflict after %d retries", stampRetries)
}

// FiredPair identifies one stamped cooldown entry.
type FiredPair struct {
	Type       Type
	AssetClass string
}

func (r *Registry) read() (cooldownState, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return cooldownState{Version: 0, LastFired: map[string]calendar.Date{}}, nil
		}
		return cooldownState{}, fmt.Errorf("read signal state: %w", err)
	}
	var state cooldownState
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&state); err != nil {
		return cooldownState{}, fmt.Errorf("decode signal state %s: %w", r.path, err)
	}
	return state, nil
}

// writeIfVersion commits iff the on-disk version still equals base.
func (r *Registry) writeIfVersion(state cooldownState, base int64) (bool, error) {
	cur, err := r.read()
	if err != nil {
		return false, err
	}
	if cur.Version != base {
		return false, nil
	}

	state.Version = base + 1
	state.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return false, fmt.Errorf("marshal signal state: %w", err)
	}
	tempPath := r.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return false, fmt.Errorf("write temp signal state: %w", err)
	}
	if err := os.Rename(tempPath, r.path); err != nil {
		os.Remove(tempPath)
		return false, fmt.Errorf("rename signal state: %w", err)
	}
	return true, nil
}
