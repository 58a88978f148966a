// Command report runs one evaluation cycle: ledger -> positions ->
// deviations -> signals, emitted as JSON for the downstream notifier.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"fundpilot/internal/app"
	"fundpilot/internal/calendar"
	"fundpilot/internal/config"
	"fundpilot/internal/marketdata"
	"fundpilot/internal/observ"
	"fundpilot/internal/portfolio"
	"fundpilot/internal/signal"
)

type report struct {
	GeneratedAt time.Time                     `json:"generated_at"`
	TotalNet    string                        `json:"total_net"`
	TotalEst    string                        `json:"total_est"`
	WeightsNet  map[string]string             `json:"weights_net"`
	WeightsEst  map[string]string             `json:"weights_est"`
	Deviations  []deviationRow                `json:"deviations"`
	DeviationsE []deviationRow                `json:"deviations_estimated"`
	Signals     []signal.Signal               `json:"signals"`
	Stale       []string                      `json:"stale_funds,omitempty"`
	Positions   map[string]portfolio.Position `json:"positions"`
}

type deviationRow struct {
	AssetClass string `json:"asset_class"`
	Actual     string `json:"actual"`
	Target     string `json:"target"`
	Abs        string `json:"absolute"`
	Rel        string `json:"relative"`
}

func main() {
	configPath := flag.String("config", "config.yaml", "config file path")
	flag.Parse()

	if err := run(*configPath); err != nil {
		observ.Log("report_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx := context.Background()
	now := time.Now().In(loc)
	today := calendar.DateOf(now)

	store, err := app.OpenStore(cfg)
	if err != nil {
		return err
	}
	provider := app.NewCachedProvider(cfg)

	led, _, err := store.Read(ctx)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}

	agg := portfolio.NewAggregator(provider, cfg.Funds)
	snap, err := agg.Snapshot(ctx, led, now)
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}
	totalNet, _ := snap.TotalNet.Float64()
	observ.SetGauge("portfolio_total_net", totalNet, nil)
	observ.SetGauge("ledger_pending_rows", float64(len(led.Pending())), nil)

	devs := portfolio.Deviations(snap.WeightsNet, cfg.Targets)
	devsEst := portfolio.Deviations(snap.WeightsEst, cfg.Targets)

	histories, err := classHistories(ctx, cfg, provider, snap, today)
	if err != nil {
		return err
	}

	registry, err := signal.NewRegistry(cfg.Store.SignalStatePath)
	if err != nil {
		return err
	}
	engine := signal.NewEngine(cfg.Thresholds, registry)
	signals, err := engine.Evaluate(snap, devs, histories, today)
	if err != nil {
		return fmt.Errorf("evaluate signals: %w", err)
	}

	return json.NewEncoder(os.Stdout).Encode(buildReport(snap, devs, devsEst, signals))
}

// classHistories fetches one representative NAV series per held asset
// class (lowest fund code wins, for determinism). A failed fetch drops the
// class's tactical rules for this run, with a warning; it never aborts the
// report.
func classHistories(ctx context.Context, cfg config.Root, provider marketdata.Provider,
	snap portfolio.Snapshot, today calendar.Date) (map[string][]marketdata.NavPoint, error) {

	representative := map[string]string{}
	for code, pos := range snap.Positions {
		if pos.Stale || pos.Shares.IsZero() {
			continue
		}
		if cur, ok := representative[pos.AssetClass]; !ok || code < cur {
			representative[pos.AssetClass] = code
		}
	}

	from := today.AddDays(-cfg.Thresholds.LookbackDays)
	histories := map[string][]marketdata.NavPoint{}
	for class, code := range representative {
		series, err := provider.HistoricalNAV(ctx, code, from, today)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			observ.Log("history_unavailable", map[string]any{
				"asset_class": class, "fund": code, "error": err.Error(),
			})
			continue
		}
		histories[class] = series
	}
	return histories, nil
}

func buildReport(snap portfolio.Snapshot, devs, devsEst []portfolio.Deviation, signals []signal.Signal) report {
	r := report{
		GeneratedAt: snap.GeneratedAt,
		TotalNet:    snap.TotalNet.StringFixed(2),
		TotalEst:    snap.TotalEst.StringFixed(2),
		WeightsNet:  map[string]string{},
		WeightsEst:  map[string]string{},
		Signals:     signals,
		Stale:       snap.Warnings,
		Positions:   snap.Positions,
	}
	if r.Signals == nil {
		r.Signals = []signal.Signal{}
	}
	for class, w := range snap.WeightsNet {
		r.WeightsNet[class] = w.StringFixed(4)
	}
	for class, w := range snap.WeightsEst {
		r.WeightsEst[class] = w.StringFixed(4)
	}
	r.Deviations = deviationRows(devs)
	r.DeviationsE = deviationRows(devsEst)
	return r
}

// deviationRows formats deviations for output; input arrives sorted by
// asset class already.
func deviationRows(devs []portfolio.Deviation) []deviationRow {
	rows := make([]deviationRow, 0, len(devs))
	for _, d := range devs {
		rows = append(rows, deviationRow{
			AssetClass: d.AssetClass,
			Actual:     d.Actual.StringFixed(4),
			Target:     d.Target.StringFixed(4),
			Abs:        d.Abs.StringFixed(4),
			Rel:        d.Rel.StringFixed(4),
		})
	}
	return rows
}
