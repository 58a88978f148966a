package marketdata

import (
	"context"
	"fmt"
	"sync"

	"fundpilot/internal/calendar"
)

// MockProvider is the in-memory provider used by tests and dry runs.
type MockProvider struct {
	mu        sync.Mutex
	navs      map[string]NavQuote
	estimates map[string]Estimate
	history   map[string][]NavPoint
	errs      map[string]error
	calls     map[string]int
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		navs:      map[string]NavQuote{},
		estimates: map[string]Estimate{},
		history:   map[string][]NavPoint{},
		errs:      map[string]error{},
		calls:     map[string]int{},
	}
}

func (m *MockProvider) SetNAV(q NavQuote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.navs[q.FundCode] = q
}

func (m *MockProvider) SetEstimate(e Estimate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.estimates[e.FundCode] = e
}

func (m *MockProvider) SetHistory(fundCode string, points []NavPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[fundCode] = points
}

// FailWith makes every call for fundCode return err.
func (m *MockProvider) FailWith(fundCode string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[fundCode] = err
}

// Calls reports how many provider calls were made for fundCode.
func (m *MockProvider) Calls(fundCode string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[fundCode]
}

func (m *MockProvider) LatestNAV(ctx context.Context, fundCode string) (NavQuote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[fundCode]++
	if err := m.errs[fundCode]; err != nil {
		return NavQuote{}, err
	}
	q, ok := m.navs[fundCode]
	if !ok {
		return NavQuote{}, fmt.Errorf("fund %s: %w", fundCode, ErrNotFound)
	}
	return q, nil
}

func (m *MockProvider) IntradayEstimate(ctx context.Context, fundCode string) (Estimate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[fundCode]++
	if err := m.errs[fundCode]; err != nil {
		return Estimate{}, err
	}
	e, ok := m.estimates[fundCode]
	if !ok {
		return Estimate{}, fmt.Errorf("fund %s estimate: %w", fundCode, ErrNotFound)
	}
	return e, nil
}

func (m *MockProvider) HistoricalNAV(ctx context.Context, fundCode string, from, to calendar.Date) ([]NavPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[fundCode]++
	if err := m.errs[fundCode]; err != nil {
		return nil, err
	}
	points, ok := m.history[fundCode]
	if !ok {
		return nil, fmt.Errorf("fund %s history: %w", fundCode, ErrNotFound)
	}
	var out []NavPoint
	for _, p := range points {
		if !p.Date.Before(from) && !p.Date.After(to) {
			out = append(out, p)
		}
	}
	return out, nil
}
