// Package app wires configuration into concrete components for the
// command binaries.
package app

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fundpilot/internal/config"
	"fundpilot/internal/gateway"
	"fundpilot/internal/ledger"
	"fundpilot/internal/marketdata"
)

// OpenStore builds the configured ledger backend.
func OpenStore(cfg config.Root) (ledger.Store, error) {
	switch cfg.Store.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Store.RedisAddr})
		return ledger.NewRedisStore(client, cfg.Store.RedisKey), nil
	case "file":
		return ledger.NewFileStore(cfg.Store.Path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// NewGateway builds the mutation gateway with the configured retry policy.
func NewGateway(cfg config.Root, store ledger.Store) *gateway.Gateway {
	return gateway.New(store, gateway.RetryPolicy{
		MaxRetries:  cfg.Gateway.MaxRetries,
		BackoffBase: time.Duration(cfg.Gateway.BackoffBaseMs) * time.Millisecond,
		BackoffMax:  time.Duration(cfg.Gateway.BackoffMaxMs) * time.Millisecond,
	})
}

// NewProvider builds the live market-data client, uncached. Settlement
// consumers (the confirmation poller) use this directly.
func NewProvider(cfg config.Root) *marketdata.Client {
	return marketdata.NewClient(
		cfg.MarketData.BaseURL,
		time.Duration(cfg.MarketData.TimeoutMs)*time.Millisecond,
		cfg.MarketData.RatePerSec,
	)
}

// NewCachedProvider wraps the live client in the valuation-grade TTL cache.
func NewCachedProvider(cfg config.Root) marketdata.Provider {
	return marketdata.NewCachedProvider(
		NewProvider(cfg),
		time.Duration(cfg.MarketData.CacheTTLSeconds)*time.Second,
	)
}
