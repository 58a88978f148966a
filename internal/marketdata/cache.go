package marketdata

import (
	"context"
	"sync"
	"time"

	"fundpilot/internal/calendar"
	"fundpilot/internal/observ"
)

// CachedProvider decorates a Provider with a TTL cache over the realtime
// calls. Valuation cycles tolerate minutes of staleness; history is not
// cached (the signal engine pulls it once per evaluation), and anything
// that needs a settlement-grade price must hold the inner provider.
type CachedProvider struct {
	inner Provider
	ttl   time.Duration

	mu        sync.RWMutex
	navs      map[string]cachedNav
	estimates map[string]cachedEstimate

	now func() time.Time
}

type cachedNav struct {
	quote     NavQuote
	expiresAt time.Time
}

type cachedEstimate struct {
	estimate  Estimate
	expiresAt time.Time
}

func NewCachedProvider(inner Provider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		inner:     inner,
		ttl:       ttl,
		navs:      map[string]cachedNav{},
		estimates: map[string]cachedEstimate{},
		now:       time.Now,
	}
}

func (c *CachedProvider) LatestNAV(ctx context.Context, fundCode string) (NavQuote, error) {
	c.mu.RLock()
	entry, ok := c.navs[fundCode]
	c.mu.RUnlock()
	if ok && c.now().Before(entry.expiresAt) {
		observ.IncCounter("marketdata_cache_hits_total", map[string]string{"call": "nav"})
		return entry.quote, nil
	}
	observ.IncCounter("marketdata_cache_misses_total", map[string]string{"call": "nav"})

	quote, err := c.inner.LatestNAV(ctx, fundCode)
	if err != nil {
		return NavQuote{}, err
	}
	c.mu.Lock()
	c.navs[fundCode] = cachedNav{quote: quote, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return quote, nil
}

func (c *CachedProvider) IntradayEstimate(ctx context.Context, fundCode string) (Estimate, error) {
	c.mu.RLock()
	entry, ok := c.estimates[fundCode]
	c.mu.RUnlock()
	if ok && c.now().Before(entry.expiresAt) {
		observ.IncCounter("marketdata_cache_hits_total", map[string]string{"call": "estimate"})
		return entry.estimate, nil
	}
	observ.IncCounter("marketdata_cache_misses_total", map[string]string{"call": "estimate"})

	est, err := c.inner.IntradayEstimate(ctx, fundCode)
	if err != nil {
		return Estimate{}, err
	}
	c.mu.Lock()
	c.estimates[fundCode] = cachedEstimate{estimate: est, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return est, nil
}

func (c *CachedProvider) HistoricalNAV(ctx context.Context, fundCode string, from, to calendar.Date) ([]NavPoint, error) {
	return c.inner.HistoricalNAV(ctx, fundCode, from, to)
}
