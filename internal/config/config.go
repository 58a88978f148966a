package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"fundpilot/internal/calendar"
)

// WeightSumTolerance is the slack allowed when target weights are checked
// against 1.0. Policies that miss by more are rejected at load instead of
// silently renormalized.
const WeightSumTolerance = 0.001

// Fund maps an instrument code to its classification.
type Fund struct {
	Name       string            `yaml:"name"`
	AssetClass string            `yaml:"asset_class"`
	FundType   calendar.FundType `yaml:"fund_type"` // domestic | qdii
}

// Cooldowns are the minimum days between re-fires per signal family.
type Cooldowns struct {
	RebalanceForced int `yaml:"rebalance_forced"`
	RebalanceLight  int `yaml:"rebalance_light"`
	Tactical        int `yaml:"tactical"`
}

type Thresholds struct {
	RebalanceLightAbs  float64   `yaml:"rebalance_light_abs"`  // absolute deviation
	RebalanceForcedRel float64   `yaml:"rebalance_forced_rel"` // relative deviation
	TacticalDrawdown   float64   `yaml:"tactical_drawdown"`
	TacticalExcess     float64   `yaml:"tactical_excess"`
	LookbackDays       int       `yaml:"lookback_days"`
	TacticalAmount     float64   `yaml:"tactical_amount"` // suggested tactical order size
	Cooldowns          Cooldowns `yaml:"cooldown_days"`
}

type Store struct {
	Backend         string `yaml:"backend"` // file | redis
	Path            string `yaml:"path"`
	RedisAddr       string `yaml:"redis_addr"`
	RedisKey        string `yaml:"redis_key"`
	SignalStatePath string `yaml:"signal_state_path"`
}

type Gateway struct {
	MaxRetries    int `yaml:"max_retries"`
	BackoffBaseMs int `yaml:"backoff_base_ms"`
	BackoffMaxMs  int `yaml:"backoff_max_ms"`
}

type MarketData struct {
	BaseURL         string  `yaml:"base_url"`
	TimeoutMs       int     `yaml:"timeout_ms"`
	RatePerSec      float64 `yaml:"rate_per_sec"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// Calendar carries the cutoff convention and the data-driven domestic
// holiday tables, keyed by year. The offshore calendar is computed and
// needs no data.
type Calendar struct {
	Timezone string                  `yaml:"timezone"`
	Cutoff   string                  `yaml:"cutoff"`
	Holidays map[int][]calendar.Date `yaml:"holidays"`
	Workdays map[int][]calendar.Date `yaml:"workdays"` // makeup workdays on weekends
}

type Root struct {
	Calendar   Calendar           `yaml:"calendar"`
	Funds      map[string]Fund    `yaml:"funds"`
	Targets    map[string]float64 `yaml:"targets"` // asset class -> target weight
	Thresholds Thresholds         `yaml:"thresholds"`
	Store      Store              `yaml:"store"`
	Gateway    Gateway            `yaml:"gateway"`
	MarketData MarketData         `yaml:"market_data"`
}

func Load(path string) (Root, error) {
	var c Root
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, err
	}
	applyDefaults(&c)
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func applyDefaults(c *Root) {
	if c.Calendar.Timezone == "" {
		c.Calendar.Timezone = "Asia/Shanghai"
	}
	if c.Calendar.Cutoff == "" {
		c.Calendar.Cutoff = "15:00"
	}
	t := &c.Thresholds
	if t.RebalanceLightAbs == 0 {
		t.RebalanceLightAbs = 0.05
	}
	if t.RebalanceForcedRel == 0 {
		t.RebalanceForcedRel = 0.20
	}
	if t.TacticalDrawdown == 0 {
		t.TacticalDrawdown = 0.10
	}
	if t.TacticalExcess == 0 {
		t.TacticalExcess = 0.15
	}
	if t.LookbackDays == 0 {
		t.LookbackDays = 90
	}
	if t.TacticalAmount == 0 {
		t.TacticalAmount = 200
	}
	if t.Cooldowns.RebalanceForced == 0 {
		t.Cooldowns.RebalanceForced = 90
	}
	if t.Cooldowns.RebalanceLight == 0 {
		t.Cooldowns.RebalanceLight = 60
	}
	if t.Cooldowns.Tactical == 0 {
		t.Cooldowns.Tactical = 30
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "file"
	}
	if c.Store.Path == "" {
		c.Store.Path = "data/ledger.json"
	}
	if c.Store.RedisKey == "" {
		c.Store.RedisKey = "fundpilot:ledger"
	}
	if c.Store.SignalStatePath == "" {
		c.Store.SignalStatePath = "data/signal_state.json"
	}
	if c.Gateway.MaxRetries == 0 {
		c.Gateway.MaxRetries = 5
	}
	if c.Gateway.BackoffBaseMs == 0 {
		c.Gateway.BackoffBaseMs = 100
	}
	if c.Gateway.BackoffMaxMs == 0 {
		c.Gateway.BackoffMaxMs = 2000
	}
	if c.MarketData.TimeoutMs == 0 {
		c.MarketData.TimeoutMs = 5000
	}
	if c.MarketData.RatePerSec == 0 {
		c.MarketData.RatePerSec = 4
	}
	if c.MarketData.CacheTTLSeconds == 0 {
		c.MarketData.CacheTTLSeconds = 300
	}
}

// Validate rejects policies the engines would otherwise misread.
func (c *Root) Validate() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("config: no target weights")
	}
	sum := 0.0
	for class, w := range c.Targets {
		if w < 0 || w > 1 {
			return fmt.Errorf("config: target weight for %s out of range: %v", class, w)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > WeightSumTolerance {
		return fmt.Errorf("config: target weights sum to %.4f, want 1.0 ± %.3f", sum, WeightSumTolerance)
	}
	for code, f := range c.Funds {
		if f.AssetClass == "" {
			return fmt.Errorf("config: fund %s missing asset_class", code)
		}
		if _, ok := c.Targets[f.AssetClass]; !ok {
			return fmt.Errorf("config: fund %s asset_class %q has no target weight", code, f.AssetClass)
		}
		switch f.FundType {
		case calendar.FundDomestic, calendar.FundQDII:
		default:
			return fmt.Errorf("config: fund %s has unknown fund_type %q", code, f.FundType)
		}
	}
	switch c.Store.Backend {
	case "file", "redis":
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Backend == "redis" && c.Store.RedisAddr == "" {
		return fmt.Errorf("config: redis backend needs redis_addr")
	}
	t := c.Thresholds
	if t.RebalanceLightAbs <= 0 || t.RebalanceForcedRel <= 0 ||
		t.TacticalDrawdown <= 0 || t.TacticalExcess <= 0 || t.LookbackDays <= 0 {
		return fmt.Errorf("config: thresholds must be positive")
	}
	return nil
}

// Location resolves the configured timezone.
func (c *Root) Location() (*time.Location, error) {
	return time.LoadLocation(c.Calendar.Timezone)
}

// DomesticTable flattens the per-year holiday lists into a calendar table.
// Year keys count as covered even when their lists are empty.
func (c *Root) DomesticTable() calendar.DomesticTable {
	var years []int
	var holidays, workdays []calendar.Date
	for year, days := range c.Calendar.Holidays {
		years = append(years, year)
		holidays = append(holidays, days...)
	}
	for year, days := range c.Calendar.Workdays {
		years = append(years, year)
		workdays = append(workdays, days...)
	}
	return calendar.NewDomesticTable(years, holidays, workdays)
}

// NewCalendar assembles the calendar oracle from config.
func (c *Root) NewCalendar() (*calendar.Calendar, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, fmt.Errorf("config: timezone: %w", err)
	}
	return calendar.New(c.DomesticTable(), loc, c.Calendar.Cutoff)
}
