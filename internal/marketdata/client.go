package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"fundpilot/internal/calendar"
	"fundpilot/internal/observ"
)

// Client fetches fund data from an EastMoney-style endpoint pair: a JSONP
// realtime quote (published NAV plus intraday estimate in one payload) and
// a JSON historical NAV series. Requests are rate limited so scheduled
// polls can't hammer the free endpoint.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient builds a client. ratePerSec bounds outgoing request rate;
// timeout applies per request and fails fast into the caller's retry
// policy rather than hanging a scheduled run.
func NewClient(baseURL string, timeout time.Duration, ratePerSec float64) *Client {
	if ratePerSec <= 0 {
		ratePerSec = 4
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), 1),
	}
}

// realtimeQuote is the jsonpgz payload: dwjz/jzrq are the latest published
// NAV and its date, gsz/gztime the intraday estimate.
type realtimeQuote struct {
	FundCode     string `json:"fundcode"`
	NAV          string `json:"dwjz"`
	NavDate      string `json:"jzrq"`
	Estimate     string `json:"gsz"`
	EstimateTime string `json:"gztime"`
}

func (c *Client) LatestNAV(ctx context.Context, fundCode string) (NavQuote, error) {
	q, err := c.fetchRealtime(ctx, fundCode)
	if err != nil {
		return NavQuote{}, err
	}
	nav, err := decimal.NewFromString(q.NAV)
	if err != nil {
		return NavQuote{}, fmt.Errorf("fund %s: bad nav %q: %w", fundCode, q.NAV, err)
	}
	navDate, err := calendar.ParseDate(q.NavDate)
	if err != nil {
		return NavQuote{}, fmt.Errorf("fund %s: %w", fundCode, err)
	}
	return NavQuote{
		FundCode:      fundCode,
		NAV:           nav,
		PublishedDate: navDate,
		FetchedAt:     time.Now().UTC(),
	}, nil
}

func (c *Client) IntradayEstimate(ctx context.Context, fundCode string) (Estimate, error) {
	q, err := c.fetchRealtime(ctx, fundCode)
	if err != nil {
		return Estimate{}, err
	}
	if q.Estimate == "" {
		// QDII funds publish no intraday estimate.
		return Estimate{}, fmt.Errorf("fund %s estimate: %w", fundCode, ErrNotFound)
	}
	value, err := decimal.NewFromString(q.Estimate)
	if err != nil {
		return Estimate{}, fmt.Errorf("fund %s: bad estimate %q: %w", fundCode, q.Estimate, err)
	}
	asOf, err := time.Parse("2006-01-02 15:04", q.EstimateTime)
	if err != nil {
		return Estimate{}, fmt.Errorf("fund %s: bad estimate time %q: %w", fundCode, q.EstimateTime, err)
	}
	return Estimate{FundCode: fundCode, Value: value, AsOf: asOf}, nil
}

type historyResponse struct {
	Data []struct {
		Date string `json:"date"`
		NAV  string `json:"nav"`
	} `json:"data"`
}

func (c *Client) HistoricalNAV(ctx context.Context, fundCode string, from, to calendar.Date) ([]NavPoint, error) {
	u := fmt.Sprintf("%s/history?code=%s&start=%s&end=%s",
		c.baseURL, url.QueryEscape(fundCode), from, to)
	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	var resp historyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("fund %s: decode history: %w", fundCode, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("fund %s history: %w", fundCode, ErrNotFound)
	}
	points := make([]NavPoint, 0, len(resp.Data))
	for _, row := range resp.Data {
		d, err := calendar.ParseDate(row.Date)
		if err != nil {
			return nil, fmt.Errorf("fund %s history: %w", fundCode, err)
		}
		nav, err := decimal.NewFromString(row.NAV)
		if err != nil {
			return nil, fmt.Errorf("fund %s history: bad nav %q: %w", fundCode, row.NAV, err)
		}
		points = append(points, NavPoint{Date: d, NAV: nav})
	}
	// Series arrives oldest-first; trust but keep the invariant visible.
	for i := 1; i < len(points); i++ {
		if points[i].Date.Before(points[i-1].Date) {
			return nil, fmt.Errorf("fund %s history: series out of order at %s", fundCode, points[i].Date)
		}
	}
	return points, nil
}

// fetchRealtime pulls the jsonpgz quote: jsonpgz({...});
func (c *Client) fetchRealtime(ctx context.Context, fundCode string) (realtimeQuote, error) {
	u := fmt.Sprintf("%s/fundgz/%s.js", c.baseURL, url.PathEscape(fundCode))
	body, err := c.get(ctx, u)
	if err != nil {
		return realtimeQuote{}, err
	}
	s := strings.TrimSpace(string(body))
	const prefix, suffix = "jsonpgz(", ");"
	if !strings.HasPrefix(s, prefix) || !strings.HasSuffix(s, suffix) {
		return realtimeQuote{}, fmt.Errorf("fund %s: unexpected quote payload", fundCode)
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, prefix), suffix)

	var q realtimeQuote
	if err := json.Unmarshal([]byte(s), &q); err != nil {
		return realtimeQuote{}, fmt.Errorf("fund %s: decode quote: %w", fundCode, err)
	}
	if q.NAV == "" {
		return realtimeQuote{}, fmt.Errorf("fund %s: %w", fundCode, ErrNotFound)
	}
	return q, nil
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		observ.IncCounter("marketdata_request_errors_total", nil)
		return nil, fmt.Errorf("marketdata request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		observ.IncCounter("marketdata_request_errors_total", nil)
		return nil, fmt.Errorf("marketdata request: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
