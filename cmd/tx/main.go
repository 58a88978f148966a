// Command tx applies one structured ledger mutation. This is the surface a
// chat-command handler calls after turning free text into flags; the
// natural-language step itself lives outside this repo.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"fundpilot/internal/app"
	"fundpilot/internal/calendar"
	"fundpilot/internal/config"
	"fundpilot/internal/gateway"
	"fundpilot/internal/ledger"
	"fundpilot/internal/observ"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "config file path")
		opName     = flag.String("op", "", "add | confirm | skip | void")
		id         = flag.String("id", "", "transaction id (idempotency key; generated for add when empty)")
		fund       = flag.String("fund", "", "fund code")
		amountStr  = flag.String("amount", "", "signed amount (add)")
		kindStr    = flag.String("kind", "buy", "buy | sell | skip (add)")
		dateStr    = flag.String("date", "", "trade date yyyy-mm-dd (skip by fund+date)")
		sharesStr  = flag.String("shares", "", "confirmed shares (confirm)")
		navStr     = flag.String("nav", "", "settlement nav (confirm)")
	)
	flag.Parse()

	if err := run(*configPath, *opName, *id, *fund, *amountStr, *kindStr, *dateStr, *sharesStr, *navStr); err != nil {
		observ.Log("tx_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

func run(configPath, opName, id, fund, amountStr, kindStr, dateStr, sharesStr, navStr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := app.OpenStore(cfg)
	if err != nil {
		return err
	}
	gw := app.NewGateway(cfg, store)

	op, err := buildOp(cfg, opName, id, fund, amountStr, kindStr, dateStr, sharesStr, navStr)
	if err != nil {
		return err
	}

	outcome, err := gw.Apply(context.Background(), op)
	if err != nil {
		return err
	}
	fmt.Printf("{\"op\":%q,\"outcome\":%q}\n", op.Describe(), outcome)
	if outcome == gateway.OutcomeConflictExhausted {
		os.Exit(2)
	}
	return nil
}

func buildOp(cfg config.Root, opName, id, fund, amountStr, kindStr, dateStr, sharesStr, navStr string) (gateway.Operation, error) {
	switch opName {
	case "add":
		fundCfg, ok := cfg.Funds[fund]
		if !ok {
			return nil, fmt.Errorf("unknown fund %q", fund)
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("bad amount %q: %w", amountStr, err)
		}
		kind := ledger.Kind(kindStr)
		cal, err := cfg.NewCalendar()
		if err != nil {
			return nil, err
		}
		tx, err := gateway.NewTransaction(cal, id, fund, fundCfg.FundType, kind, amount, time.Now())
		if err != nil {
			return nil, err
		}
		return gateway.AppendOp{Tx: tx}, nil

	case "confirm":
		if id == "" {
			return nil, fmt.Errorf("confirm needs -id")
		}
		shares, err := decimal.NewFromString(sharesStr)
		if err != nil {
			return nil, fmt.Errorf("bad shares %q: %w", sharesStr, err)
		}
		nav, err := decimal.NewFromString(navStr)
		if err != nil {
			return nil, fmt.Errorf("bad nav %q: %w", navStr, err)
		}
		confirmDate := calendar.Date{}
		if dateStr != "" {
			if confirmDate, err = calendar.ParseDate(dateStr); err != nil {
				return nil, err
			}
		}
		return gateway.ConfirmOp{ID: id, Shares: shares, NAV: nav, ConfirmDate: confirmDate}, nil

	case "skip":
		if id != "" {
			return gateway.SkipOp{ID: id}, nil
		}
		if fund == "" || dateStr == "" {
			return nil, fmt.Errorf("skip needs -id, or -fund with -date")
		}
		d, err := calendar.ParseDate(dateStr)
		if err != nil {
			return nil, err
		}
		return gateway.SkipOp{FundCode: fund, Date: d}, nil

	case "void":
		if id == "" {
			return nil, fmt.Errorf("void needs -id")
		}
		return gateway.VoidOp{ID: id}, nil

	default:
		return nil, fmt.Errorf("unknown op %q", opName)
	}
}
