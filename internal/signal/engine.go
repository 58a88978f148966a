// Package signal evaluates the rebalance and tactical rules against a
// portfolio snapshot and emits a prioritized, cooldown-gated signal list.
package signal

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"fundpilot/internal/calendar"
	"fundpilot/internal/config"
	"fundpilot/internal/marketdata"
	"fundpilot/internal/observ"
	"fundpilot/internal/portfolio"
)

// Type names a signal family. Priority: forced > light > tactical.
type Type string

const (
	TypeRebalanceForced Type = "rebalance_forced"
	TypeRebalanceLight  Type = "rebalance_light"
	TypeTacticalBuy     Type = "tactical_buy"
	TypeTacticalSell    Type = "tactical_sell"
)

func (t Type) priority() int {
	switch t {
	case TypeRebalanceForced:
		return 3
	case TypeRebalanceLight:
		return 2
	case TypeTacticalBuy, TypeTacticalSell:
		return 1
	default:
		return 0
	}
}

// Signal is one actionable recommendation. Ephemeral: only the cooldown
// stamp persists.
type Signal struct {
	Type        Type            `json:"signal_type"`
	AssetClass  string          `json:"asset_class"`
	Action      string          `json:"action"` // buy | sell
	AmountHint  decimal.Decimal `json:"amount_hint"`
	Reason      string          `json:"reason"`
	Urgency     string          `json:"urgency"` // low | medium | high
	TriggeredAt calendar.Date   `json:"triggered_at"`

	magnitude decimal.Decimal // deviation size, for tie-breaking
}

// Engine evaluates the rule set. One evaluation per call; the cooldown
// registry is stamped before the signal list is returned.
type Engine struct {
	thresholds config.Thresholds
	registry   *Registry
}

func NewEngine(thresholds config.Thresholds, registry *Registry) *Engine {
	return &Engine{thresholds: thresholds, registry: registry}
}

// Evaluate runs every rule against the net-track deviations (the estimated
// track is context for the reader, never a trigger). histories carries one
// representative NAV series per asset class for the tactical window rules;
// classes without history simply skip the tactical rules.
func (e *Engine) Evaluate(snap portfolio.Snapshot, devs []portfolio.Deviation,
	histories map[string][]marketdata.NavPoint, today calendar.Date) ([]Signal, error) {

	var signals []Signal
	var fired []FiredPair
	forcedFired := map[string]bool{}

	light := decimal.NewFromFloat(e.thresholds.RebalanceLightAbs)
	forced := decimal.NewFromFloat(e.thresholds.RebalanceForcedRel)
	ddThreshold := decimal.NewFromFloat(e.thresholds.TacticalDrawdown)
	excessThreshold := decimal.NewFromFloat(e.thresholds.TacticalExcess)
	tacticalAmount := decimal.NewFromFloat(e.thresholds.TacticalAmount)

	for _, dev := range devs {
		// Forced rebalance: relative deviation, highest priority.
		if dev.Rel.Abs().GreaterThanOrEqual(forced) {
			ok, err := e.allow(TypeRebalanceForced, dev.AssetClass, today, e.thresholds.Cooldowns.RebalanceForced)
			if err != nil {
				return nil, err
			}
			if ok {
				s := e.rebalanceSignal(TypeRebalanceForced, dev, snap.TotalNet, today)
				s.Urgency = "high"
				s.Reason = fmt.Sprintf("relative deviation %s%% breaches forced threshold %s%%",
					pct(dev.Rel.Abs()), pct(forced))
				signals = append(signals, s)
				fired = append(fired, FiredPair{TypeRebalanceForced, dev.AssetClass})
				forcedFired[dev.AssetClass] = true
			}
		}

		// Light rebalance: absolute deviation; forced for the same class
		// this cycle suppresses it.
		if !forcedFired[dev.AssetClass] && dev.Abs.Abs().GreaterThanOrEqual(light) {
			ok, err := e.allow(TypeRebalanceLight, dev.AssetClass, today, e.thresholds.Cooldowns.RebalanceLight)
			if err != nil {
				return nil, err
			}
			if ok {
				s := e.rebalanceSignal(TypeRebalanceLight, dev, snap.TotalNet, today)
				s.Urgency = "medium"
				s.Reason = fmt.Sprintf("absolute deviation %s%% breaches light threshold %s%%",
					pct(dev.Abs.Abs()), pct(light))
				signals = append(signals, s)
				fired = append(fired, FiredPair{TypeRebalanceLight, dev.AssetClass})
			}
		}

		// Tactical rules need a NAV history for the class.
		series, ok := histories[dev.AssetClass]
		if !ok {
			continue
		}
		stats, ok := windowStats(series, e.thresholds.LookbackDays, today)
		if !ok {
			observ.Log("tactical_skipped_thin_history", map[string]any{"asset_class": dev.AssetClass})
			continue
		}

		if stats.Drawdown.LessThanOrEqual(ddThreshold.Neg()) && !dev.Overweight() {
			ok, err := e.allow(TypeTacticalBuy, dev.AssetClass, today, e.thresholds.Cooldowns.Tactical)
			if err != nil {
				return nil, err
			}
			if ok {
				signals = append(signals, Signal{
					Type:       TypeTacticalBuy,
					AssetClass: dev.AssetClass,
					Action:     "buy",
					AmountHint: tacticalAmount,
					Reason: fmt.Sprintf("%d-day drawdown %s%% breaches %s%% and class is not overweight",
						e.thresholds.LookbackDays, pct(stats.Drawdown.Abs()), pct(ddThreshold)),
					Urgency:     "medium",
					TriggeredAt: today,
					magnitude:   stats.Drawdown.Abs(),
				})
				fired = append(fired, FiredPair{TypeTacticalBuy, dev.AssetClass})
			}
		}

		if stats.Excess.GreaterThan(excessThreshold) && dev.Overweight() {
			ok, err := e.allow(TypeTacticalSell, dev.AssetClass, today, e.thresholds.Cooldowns.Tactical)
			if err != nil {
				return nil, err
			}
			if ok {
				signals = append(signals, Signal{
					Type:       TypeTacticalSell,
					AssetClass: dev.AssetClass,
					Action:     "sell",
					AmountHint: tacticalAmount,
					Reason: fmt.Sprintf("%d-day excess return %s%% exceeds %s%% and class is overweight",
						e.thresholds.LookbackDays, pct(stats.Excess), pct(excessThreshold)),
					Urgency:     "low",
					TriggeredAt: today,
					magnitude:   stats.Excess,
				})
				fired = append(fired, FiredPair{TypeTacticalSell, dev.AssetClass})
			}
		}
	}

	sort.SliceStable(signals, func(i, j int) bool {
		if signals[i].Type.priority() != signals[j].Type.priority() {
			return signals[i].Type.priority() > signals[j].Type.priority()
		}
		return signals[i].magnitude.GreaterThan(signals[j].magnitude)
	})

	// Stamp before returning: a signal the caller sees is a signal whose
	// cooldown has started.
	if err := e.registry.Stamp(fired, today); err != nil {
		return nil, err
	}
	for _, p := range fired {
		observ.IncCounter("signals_fired_total", map[string]string{
			"type": string(p.Type), "asset_class": p.AssetClass,
		})
	}
	return signals, nil
}

func (e *Engine) allow(t Type, assetClass string, today calendar.Date, cooldownDays int) (bool, error) {
	active, err := e.registry.Active(t, assetClass, today, cooldownDays)
	if err != nil {
		return false, err
	}
	if active {
		observ.Log("signal_cooldown_active", map[string]any{
			"type": string(t), "asset_class": assetClass,
		})
	}
	return !active, nil
}

func (e *Engine) rebalanceSignal(t Type, dev portfolio.Deviation, total decimal.Decimal, today calendar.Date) Signal {
	adjust := dev.Target.Sub(dev.Actual).Mul(total)
	action := "buy"
	if adjust.IsNegative() {
		action = "sell"
	}
	return Signal{
		Type:        t,
		AssetClass:  dev.AssetClass,
		Action:      action,
		AmountHint:  adjust.Abs(),
		TriggeredAt: today,
		magnitude:   dev.Abs.Abs(),
	}
}

func pct(d decimal.Decimal) string {
	return d.Mul(decimal.NewFromInt(100)).Round(2).String()
}
