package marketdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
	drepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/service/ratelimit"
	xhttp "MarketPulse/pkg/http"
	applogger "MarketPulse/pkg/logger"
)

const (
	maxAttempts = 3

	freshnessWindow = 10 * time.Minute
	requestTimeout  = 30 * time.Second

	serverErrBackoff = 1 * time.Second
	serverErrCap     = 30 * time.Second
	timeoutBackoff   = 2 * time.Second
	timeoutCap       = 10 * time.Second

	throttleDefault  = 5 * time.Minute // explicit 429 without retry-after
	exhaustedBackoff = 1 * time.Minute // retries exhausted

	paceKey        = "upstream"
	paceCapacity   = 10
	paceRefillRate = 0.5
)

// fetch outcomes for metrics/logging.
const (
	outcomeSuccess   = "success"
	outcomeThrottled = "throttled"
	outcomeExhausted = "exhausted"
	outcomePermanent = "permanent"
	outcomeCached    = "cached"
	outcomeEmpty     = "empty"
)

// Client is the resilient market-data fetcher. It owns the process-wide
// rate-limit state and a freshness-aware cache, and never surfaces an error
// to its callers: every call returns the best available data.
type Client struct {
	http     *xhttp.Client
	baseURL  string
	currency string
	fresh    time.Duration
	pace     *ratelimit.Limiter
	store    drepo.StateStore
	metrics  drepo.Metrics
	log      *applogger.Logger

	mu          sync.Mutex
	limited     bool
	resetAt     time.Time
	requests    int64
	cache       map[string]models.FetchCacheEntry
	lastSuccess map[string]time.Time
	lastSource  models.FetchSource

	// injectable for tests
	now   func() time.Time
	sleep func(context.Context, time.Duration)
}

// Option configures the Client.
type Option func(*Client)

// WithFreshness overrides the cache freshness window.
func WithFreshness(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.fresh = d
		}
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = xhttp.NewClient(xhttp.WithTimeout(d))
		}
	}
}

// New creates a fetcher for the given upstream base URL.
func New(baseURL, currency string, store drepo.StateStore, metrics drepo.Metrics, log *applogger.Logger, opts ...Option) *Client {
	c := &Client{
		http:        xhttp.NewClient(xhttp.WithTimeout(requestTimeout)),
		baseURL:     baseURL,
		currency:    currency,
		fresh:       freshnessWindow,
		pace:        ratelimit.New(),
		store:       store,
		metrics:     metrics,
		log:         log,
		cache:       make(map[string]models.FetchCacheEntry),
		lastSuccess: make(map[string]time.Time),
		lastSource:  models.SourceEmpty,
		now:         time.Now,
		sleep:       sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RestoreCache loads persisted cache entries so a restart does not force an
// immediate upstream call. Entry timestamps become the freshness markers.
func (c *Client) RestoreCache(ctx context.Context) {
	if c.store == nil {
		return
	}
	var state map[string]models.FetchCacheEntry
	ok, err := c.store.Load(ctx, drepo.StateFetchCache, &state)
	if err != nil {
		c.log.Warn("fetch cache restore failed", applogger.Error(err))
		return
	}
	if !ok {
		return
	}
	c.mu.Lock()
	for key, entry := range state {
		c.cache[key] = entry
		c.lastSuccess[key] = entry.Timestamp
	}
	c.mu.Unlock()
}

// Fetch returns snapshots for the top assetCount assets. On total failure it
// returns an empty slice, never an error.
func (c *Client) Fetch(ctx context.Context, assetCount int) []models.AssetSnapshot {
	key := fmt.Sprintf("markets:%d", assetCount)
	body, at, source := c.fetchPayload(ctx, key, c.marketsURL(assetCount))
	c.setSource(source)
	if len(body) == 0 {
		return nil
	}
	snaps, err := decodeMarkets(body, at)
	if err != nil {
		c.log.Error("markets payload decode failed", applogger.Error(err), applogger.String("key", key))
		c.metrics.RecordError("decode")
		return nil
	}
	return snaps
}

// FetchGlobal returns the aggregate market snapshot for the follow-up index
// computation. It shares throttle and cache machinery with Fetch.
func (c *Client) FetchGlobal(ctx context.Context) (models.GlobalSnapshot, bool) {
	body, at, _ := c.fetchPayload(ctx, "global", c.baseURL+"/global")
	if len(body) == 0 {
		return models.GlobalSnapshot{}, false
	}
	g, err := decodeGlobal(body, c.currency, at)
	if err != nil {
		c.log.Error("global payload decode failed", applogger.Error(err))
		c.metrics.RecordError("decode")
		return models.GlobalSnapshot{}, false
	}
	return g, true
}

// Status reports the current rate-limit state and provenance of the most
// recent fetch.
func (c *Client) Status() models.FetchStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := models.FetchStatus{
		Limited:  c.limited,
		Requests: c.requests,
		Source:   c.lastSource,
	}
	if c.limited {
		st.ResetAt = c.resetAt
	}
	for _, t := range c.lastSuccess {
		if t.After(st.LastSuccess) {
			st.LastSuccess = t
		}
	}
	return st
}

// fetchPayload runs the full state machine for one endpoint-shape key and
// returns the payload bytes, their fetch time, and the provenance.
func (c *Client) fetchPayload(ctx context.Context, key, url string) ([]byte, time.Time, models.FetchSource) {
	c.mu.Lock()
	// lazy recovery: the throttle clears at call time, not on a timer
	if c.limited && c.now().After(c.resetAt) {
		c.limited = false
		c.log.Info("rate limit window elapsed, resuming fetches")
		c.metrics.RecordRateLimited(false)
	}
	limited := c.limited
	entry, hasCache := c.cache[key]
	fresh := hasCache && c.now().Sub(c.lastSuccess[key]) < c.fresh
	c.mu.Unlock()

	if limited || fresh {
		if hasCache {
			c.metrics.RecordFetchOutcome(key, outcomeCached)
			return entry.Data, entry.Timestamp, models.SourceCached
		}
		c.metrics.RecordFetchOutcome(key, outcomeEmpty)
		return nil, time.Time{}, models.SourceEmpty
	}

	// client-side pacing guard in front of the upstream budget
	if !c.pace.Allow(paceKey, paceCapacity, paceRefillRate) {
		c.log.Warn("client pacing engaged, serving cache", applogger.String("key", key))
		return c.serveFallback(key)
	}

	body, outcome := c.request(ctx, key, url)
	c.metrics.RecordFetchOutcome(key, outcome)
	if outcome == outcomeSuccess {
		at := c.now()
		c.storeSuccess(ctx, key, body, at)
		return body, at, models.SourceLive
	}
	return c.serveFallback(key)
}

// request performs the network attempts with per-class backoff. It returns
// the response body on success, or the terminal outcome otherwise.
func (c *Client) request(ctx context.Context, key, url string) ([]byte, string) {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		c.mu.Lock()
		c.requests++
		c.mu.Unlock()
		c.metrics.RecordFetchAttempt(key)

		resp, err := c.http.SendRequest(ctx, &xhttp.RequestOptions{Method: xhttp.MethodGet, URL: url})
		if err != nil {
			c.log.Warn("fetch attempt failed",
				applogger.String("key", key),
				applogger.Int("attempt", attempt),
				applogger.Error(err))
			if attempt == maxAttempts {
				c.throttle(c.now().Add(exhaustedBackoff), key, "retries exhausted")
				return nil, outcomeExhausted
			}
			c.sleep(ctx, backoff(backoffBase(err), attempt, backoffCap(err)))
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			body, rerr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if rerr != nil {
				c.log.Warn("fetch body read failed", applogger.Error(rerr))
				if attempt == maxAttempts {
					c.throttle(c.now().Add(exhaustedBackoff), key, "retries exhausted")
					return nil, outcomeExhausted
				}
				c.sleep(ctx, backoff(timeoutBackoff, attempt, timeoutCap))
				continue
			}
			return body, outcomeSuccess

		case resp.StatusCode == http.StatusTooManyRequests:
			reset := c.now().Add(throttleDefault)
			if ra := retryAfter(resp); ra > 0 {
				reset = c.now().Add(ra)
			}
			resp.Body.Close()
			c.throttle(reset, key, "upstream throttling")
			return nil, outcomeThrottled

		case resp.StatusCode >= 500:
			resp.Body.Close()
			c.log.Warn("upstream server error",
				applogger.String("key", key),
				applogger.Int("status", resp.StatusCode),
				applogger.Int("attempt", attempt))
			if attempt == maxAttempts {
				c.throttle(c.now().Add(exhaustedBackoff), key, "retries exhausted")
				return nil, outcomeExhausted
			}
			c.sleep(ctx, backoff(serverErrBackoff, attempt, serverErrCap))

		default: // non-retriable 4xx
			resp.Body.Close()
			c.log.Error("permanent upstream failure",
				applogger.String("key", key),
				applogger.Int("status", resp.StatusCode))
			return nil, outcomePermanent
		}
	}
	return nil, outcomeExhausted
}

func (c *Client) throttle(resetAt time.Time, key, why string) {
	c.mu.Lock()
	c.limited = true
	c.resetAt = resetAt
	c.mu.Unlock()
	c.metrics.RecordRateLimited(true)
	c.log.Warn("fetcher throttled",
		applogger.String("key", key),
		applogger.String("reason", why),
		applogger.String("reset_at", resetAt.Format(time.RFC3339)))
}

// storeSuccess overwrites the cache entry with strictly newer data and
// persists the cache.
func (c *Client) storeSuccess(ctx context.Context, key string, body []byte, at time.Time) {
	c.mu.Lock()
	if prev, ok := c.cache[key]; ok && !at.After(prev.Timestamp) {
		c.mu.Unlock()
		return
	}
	c.cache[key] = models.FetchCacheEntry{Data: body, Timestamp: at}
	c.lastSuccess[key] = at
	state := make(map[string]models.FetchCacheEntry, len(c.cache))
	for k, v := range c.cache {
		state[k] = v
	}
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Save(ctx, drepo.StateFetchCache, state); err != nil {
			c.log.Warn("fetch cache persist failed", applogger.Error(err))
		}
	}
}

func (c *Client) serveFallback(key string) ([]byte, time.Time, models.FetchSource) {
	c.mu.Lock()
	entry, ok := c.cache[key]
	c.mu.Unlock()
	if ok {
		return entry.Data, entry.Timestamp, models.SourceCached
	}
	return nil, time.Time{}, models.SourceEmpty
}

func (c *Client) setSource(s models.FetchSource) {
	c.mu.Lock()
	c.lastSource = s
	c.mu.Unlock()
}

func (c *Client) marketsURL(assetCount int) string {
	return fmt.Sprintf(
		"%s/coins/markets?vs_currency=%s&order=market_cap_desc&per_page=%d&page=1&sparkline=true&price_change_percentage=1h,24h,7d,30d",
		c.baseURL, c.currency, assetCount)
}

func backoff(base time.Duration, attempt int, cap time.Duration) time.Duration {
	d := base << (attempt - 1)
	if d > cap {
		d = cap
	}
	return d
}

func backoffBase(err error) time.Duration {
	if isTimeout(err) {
		return timeoutBackoff
	}
	return serverErrBackoff
}

func backoffCap(err error) time.Duration {
	if isTimeout(err) {
		return timeoutCap
	}
	return serverErrCap
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
