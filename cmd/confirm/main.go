// Command confirm runs one confirmation-poll pass. Scheduled (cron /
// Actions) invocation; nonzero exit signals the scheduler to alert.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"fundpilot/internal/app"
	"fundpilot/internal/calendar"
	"fundpilot/internal/config"
	"fundpilot/internal/confirm"
	"fundpilot/internal/observ"
)

func main() {
	configPath := flag.String("config", "config.yaml", "config file path")
	flag.Parse()

	if err := run(*configPath); err != nil {
		observ.Log("confirm_failed", map[string]any{"error": err.Error()})
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

	store, err := app.OpenStore(cfg)
	if err != nil {
		return err
	}
	gw := app.NewGateway(cfg, store)

	// Uncached provider on purpose: settlement prices must be fresh reads.
	poller := confirm.NewPoller(store, gw, app.NewProvider(cfg))

	today := calendar.DateOf(time.Now().In(loc))
	count, err := poller.Run(context.Background(), today)
	if err != nil {
		return err
	}
	observ.Log("confirm_run_done", map[string]any{"confirmed": count})
	return nil
}
