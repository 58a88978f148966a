package config

import (
	"os"
	"path/filepath"
	"testing"

	"fundpilot/internal/calendar"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
targets:
  equity_cn: 0.5
  bond_cn: 0.3
  equity_us: 0.2
funds:
  "000001":
    name: CSI 300 Index
    asset_class: equity_cn
    fund_type: domestic
  "000003":
    name: S&P 500 QDII
    asset_class: equity_us
    fund_type: qdii
calendar:
  holidays:
    2025:
      - 2025-10-01
      - 2025-10-02
  workdays:
    2025:
      - 2025-09-28
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Calendar.Timezone != "Asia/Shanghai" {
		t.Fatalf("timezone default: got %q", cfg.Calendar.Timezone)
	}
	if cfg.Calendar.Cutoff != "15:00" {
		t.Fatalf("cutoff default: got %q", cfg.Calendar.Cutoff)
	}
	if cfg.Thresholds.RebalanceLightAbs != 0.05 || cfg.Thresholds.RebalanceForcedRel != 0.20 {
		t.Fatalf("rebalance threshold defaults: %+v", cfg.Thresholds)
	}
	if cfg.Thresholds.Cooldowns.RebalanceForced != 90 ||
		cfg.Thresholds.Cooldowns.RebalanceLight != 60 ||
		cfg.Thresholds.Cooldowns.Tactical != 30 {
		t.Fatalf("cooldown defaults: %+v", cfg.Thresholds.Cooldowns)
	}
	if cfg.Store.Backend != "file" {
		t.Fatalf("store backend default: got %q", cfg.Store.Backend)
	}
	if cfg.Gateway.MaxRetries != 5 {
		t.Fatalf("gateway retries default: got %d", cfg.Gateway.MaxRetries)
	}
}

func TestLoadOverridesKeepData(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
thresholds:
  rebalance_light_abs: 0.03
  lookback_days: 120
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Thresholds.RebalanceLightAbs != 0.03 {
		t.Fatalf("override lost: %v", cfg.Thresholds.RebalanceLightAbs)
	}
	if cfg.Thresholds.LookbackDays != 120 {
		t.Fatalf("override lost: %v", cfg.Thresholds.LookbackDays)
	}
	// Unset fields still get defaults.
	if cfg.Thresholds.RebalanceForcedRel != 0.20 {
		t.Fatalf("default lost: %v", cfg.Thresholds.RebalanceForcedRel)
	}
}

func TestValidateWeightSum(t *testing.T) {
	cases := []struct {
		name    string
		targets string
		wantOK  bool
	}{
		{"exact", "targets:\n  a: 0.5\n  b: 0.5\n", true},
		{"inside tolerance", "targets:\n  a: 0.5\n  b: 0.5005\n", true},
		{"outside tolerance", "targets:\n  a: 0.5\n  b: 0.52\n", false},
		{"empty", "targets: {}\n", false},
		{"negative", "targets:\n  a: -0.2\n  b: 1.2\n", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.targets))
			if tc.wantOK && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.wantOK && err == nil {
				t.Fatalf("expected load to fail")
			}
		})
	}
}

func TestValidateFundRequiresTarget(t *testing.T) {
	_, err := Load(writeConfig(t, `
targets:
  equity_cn: 1.0
funds:
  "000009":
    name: Gold ETF
    asset_class: gold
    fund_type: domestic
`))
	if err == nil {
		t.Fatalf("fund with untargeted asset class must be rejected")
	}
}

func TestValidateFundType(t *testing.T) {
	_, err := Load(writeConfig(t, `
targets:
  equity_cn: 1.0
funds:
  "000001":
    name: CSI 300 Index
    asset_class: equity_cn
    fund_type: offshore
`))
	if err == nil {
		t.Fatalf("unknown fund_type must be rejected")
	}
}

func TestValidateRedisBackendNeedsAddr(t *testing.T) {
	_, err := Load(writeConfig(t, `
targets:
  equity_cn: 1.0
store:
  backend: redis
`))
	if err == nil {
		t.Fatalf("redis backend without addr must be rejected")
	}
}

func TestDomesticTableRegistersYearsWithEmptyLists(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
targets:
  equity_cn: 1.0
calendar:
  holidays:
    2025: []
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cal, err := cfg.NewCalendar()
	if err != nil {
		t.Fatalf("new calendar: %v", err)
	}
	// A year listed with no holidays is covered data, not missing data.
	ok, err := cal.IsTradingDay(calendar.Domestic, calendar.MustDate("2025-06-10"))
	if err != nil {
		t.Fatalf("is trading day: %v", err)
	}
	if !ok {
		t.Fatalf("ordinary weekday should trade")
	}
}

func TestNewCalendarFromConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cal, err := cfg.NewCalendar()
	if err != nil {
		t.Fatalf("new calendar: %v", err)
	}
	ok, err := cal.IsTradingDay(calendar.Domestic, calendar.MustDate("2025-10-01"))
	if err != nil {
		t.Fatalf("is trading day: %v", err)
	}
	if ok {
		t.Fatalf("configured holiday should not trade")
	}
	ok, err = cal.IsTradingDay(calendar.Domestic, calendar.MustDate("2025-09-28"))
	if err != nil {
		t.Fatalf("is trading day: %v", err)
	}
	if !ok {
		t.Fatalf("configured makeup workday should trade")
	}
}
