package signal

import (
	"github.com/shopspring/decimal"

	"fundpilot/internal/calendar"
	"fundpilot/internal/marketdata"
)

// WindowStats summarizes a NAV series over the trailing lookback window.
// Drawdown is current vs. window peak (zero or negative); Excess is the
// return from the window's first observation to the current one.
type WindowStats struct {
	Peak     decimal.Decimal
	Current  decimal.Decimal
	Drawdown decimal.Decimal
	Excess   decimal.Decimal
}

// windowStats computes trailing-window stats as of ref. Returns ok=false
// when the window holds fewer than two observations; the tactical rules
// skip rather than guess on thin data.
func windowStats(series []marketdata.NavPoint, lookbackDays int, ref calendar.Date) (WindowStats, bool) {
	start := ref.AddDays(-lookbackDays)
	var window []marketdata.NavPoint
	for _, p := range series {
		if !p.Date.Before(start) && !p.Date.After(ref) {
			window = append(window, p)
		}
	}
	if len(window) < 2 {
		return WindowStats{}, false
	}

	peak := window[0].NAV
	for _, p := range window[1:] {
		if p.NAV.GreaterThan(peak) {
			peak = p.NAV
		}
	}
	current := window[len(window)-1].NAV
	first := window[0].NAV

	stats := WindowStats{Peak: peak, Current: current}
	if peak.IsPositive() {
		stats.Drawdown = current.Sub(peak).Div(peak)
	}
	if first.IsPositive() {
		stats.Excess = current.Sub(first).Div(first)
	}
	return stats, true
}
