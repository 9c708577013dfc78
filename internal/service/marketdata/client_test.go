package marketdata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
	applogger "MarketPulse/pkg/logger"
)

const marketsBody = `[{"id":"bitcoin","symbol":"btc","name":"Bitcoin","current_price":50000,"market_cap":1000000000000,"market_cap_rank":1,"total_volume":30000000000,"high_24h":51000,"low_24h":49000,"price_change_percentage_1h_in_currency":0.5,"price_change_percentage_24h_in_currency":2.1,"price_change_percentage_7d_in_currency":5.0,"price_change_percentage_30d_in_currency":12.0,"sparkline_in_7d":{"price":[49000,49500,50000]}}]`

type nopMetrics struct{}

func (nopMetrics) RecordCycle(string, float64) {}
func (nopMetrics) RecordFetchAttempt(string) {}
func (nopMetrics) RecordFetchOutcome(string, string) {}
func (nopMetrics) RecordRateLimited(bool) {}
func (nopMetrics) RecordAssetCount(int) {}
func (nopMetrics) RecordError(string) {}
func (nopMetrics) RecordLastScore(string, string, float64) {}

type memStateStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStateStore() *memStateStore {
	return &memStateStore{data: make(map[string][]byte)}
}

func (s *memStateStore) Load(_ context.Context, key string, dest interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (s *memStateStore) Save(_ context.Context, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data[key] = raw
	s.mu.Unlock()
	return nil
}

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	log, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

// testClient builds a fetcher against srv with a stubbed clock and recorded
// backoff sleeps.
func testClient(t *testing.T, srv *httptest.Server) (*Client, *time.Time, *[]time.Duration) {
	t.Helper()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	var sleeps []time.Duration
	c := New(srv.URL, "usd", newMemStateStore(), nopMetrics{}, testLogger(t))
	c.now = func() time.Time { return now }
	c.sleep = func(_ context.Context, d time.Duration) { sleeps = append(sleeps, d) }
	return c, &now, &sleeps
}

func TestFetchSuccessThenFreshnessServesCache(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(marketsBody))
	}))
	defer srv.Close()

	c, now, _ := testClient(t, srv)
	ctx := context.Background()

	snaps := c.Fetch(ctx, 100)
	if len(snaps) != 1 || snaps[0].Symbol != "btc" {
		t.Fatalf("unexpected snapshots: %+v", snaps)
	}
	if hits != 1 {
		t.Fatalf("expected 1 upstream hit, got %d", hits)
	}
	if st := c.Status(); st.Source != models.SourceLive {
		t.Fatalf("expected live provenance, got %s", st.Source)
	}

	// Within the freshness window the cache answers and the upstream is
	// left alone.
	*now = now.Add(5 * time.Minute)
	snaps = c.Fetch(ctx, 100)
	if len(snaps) != 1 {
		t.Fatalf("expected cached snapshots, got %d", len(snaps))
	}
	if hits != 1 {
		t.Fatalf("expected no second upstream hit, got %d", hits)
	}
	if st := c.Status(); st.Source != models.SourceCached {
		t.Fatalf("expected cached provenance, got %s", st.Source)
	}

	// Past the window the upstream is asked again.
	*now = now.Add(6 * time.Minute)
	c.Fetch(ctx, 100)
	if hits != 2 {
		t.Fatalf("expected refetch after freshness expiry, got %d hits", hits)
	}
}

func TestThrottleRetryAfterAndLazyRecovery(t *testing.T) {
	hits := 0
	mode := "ok"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if mode == "throttle" {
			w.Header().Set("Retry-After", "120")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(marketsBody))
	}))
	defer srv.Close()

	c, now, _ := testClient(t, srv)
	ctx := context.Background()
	start := *now

	if got := c.Fetch(ctx, 100); len(got) != 1 {
		t.Fatalf("seed fetch failed")
	}

	// Next upstream call gets throttled with an explicit reset.
	mode = "throttle"
	*now = start.Add(11 * time.Minute)
	throttledAt := *now
	got := c.Fetch(ctx, 100)
	if len(got) != 1 {
		t.Fatalf("throttled fetch must fall back to cache, got %d snapshots", len(got))
	}
	st := c.Status()
	if !st.Limited {
		t.Fatalf("expected limited state after 429")
	}
	if want := throttledAt.Add(120 * time.Second); !st.ResetAt.Equal(want) {
		t.Fatalf("reset at %v, want %v", st.ResetAt, want)
	}
	if hits != 2 {
		t.Fatalf("expected 2 upstream hits, got %d", hits)
	}

	// Before the reset the upstream is never contacted.
	*now = throttledAt.Add(60 * time.Second)
	if got := c.Fetch(ctx, 100); len(got) != 1 {
		t.Fatalf("limited fetch must serve cache")
	}
	if hits != 2 {
		t.Fatalf("expected no upstream contact while limited, got %d hits", hits)
	}

	// After the reset the limit clears on the next call and a live attempt
	// is made.
	mode = "ok"
	*now = throttledAt.Add(121 * time.Second)
	c.Fetch(ctx, 100)
	if hits != 3 {
		t.Fatalf("expected live attempt after reset, got %d hits", hits)
	}
	if st := c.Status(); st.Limited {
		t.Fatalf("expected limit cleared after reset elapsed")
	}
}

func TestServerErrorsExhaustRetries(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, now, sleeps := testClient(t, srv)
	ctx := context.Background()

	got := c.Fetch(ctx, 100)
	if got != nil {
		t.Fatalf("expected nil snapshots with no cache, got %+v", got)
	}
	if hits != 3 {
		t.Fatalf("expected 3 attempts, got %d", hits)
	}
	// 5xx backoff doubles from a 1 second base between attempts.
	if len(*sleeps) != 2 || (*sleeps)[0] != time.Second || (*sleeps)[1] != 2*time.Second {
		t.Fatalf("unexpected backoff schedule: %v", *sleeps)
	}

	st := c.Status()
	if !st.Limited {
		t.Fatalf("expected limited state after exhausted retries")
	}
	if want := now.Add(time.Minute); !st.ResetAt.Equal(want) {
		t.Fatalf("reset at %v, want default 60s backoff %v", st.ResetAt, want)
	}
	if st.Requests != 3 {
		t.Fatalf("expected request counter 3, got %d", st.Requests)
	}
	if st.Source != models.SourceEmpty {
		t.Fatalf("expected empty provenance, got %s", st.Source)
	}
}

func TestPermanentClientErrorStopsRetrying(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, _, sleeps := testClient(t, srv)
	if got := c.Fetch(context.Background(), 100); got != nil {
		t.Fatalf("expected nil snapshots, got %+v", got)
	}
	if hits != 1 {
		t.Fatalf("4xx must not be retried, got %d hits", hits)
	}
	if len(*sleeps) != 0 {
		t.Fatalf("4xx must not back off, slept %v", *sleeps)
	}
	if st := c.Status(); st.Limited {
		t.Fatalf("permanent failure must not set the limit")
	}
}

func TestRestoreCacheSkipsUpstream(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(marketsBody))
	}))
	defer srv.Close()

	store := newMemStateStore()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	first := New(srv.URL, "usd", store, nopMetrics{}, testLogger(t))
	first.now = func() time.Time { return now }
	first.Fetch(ctx, 100)
	if hits != 1 {
		t.Fatalf("seed fetch expected 1 hit, got %d", hits)
	}

	// A restarted client with the persisted cache must not refetch while
	// the entries are still fresh.
	second := New(srv.URL, "usd", store, nopMetrics{}, testLogger(t))
	second.now = func() time.Time { return now.Add(5 * time.Minute) }
	second.RestoreCache(ctx)
	snaps := second.Fetch(ctx, 100)
	if len(snaps) != 1 {
		t.Fatalf("expected restored cache to answer, got %d snapshots", len(snaps))
	}
	if hits != 1 {
		t.Fatalf("restored fresh cache must not contact upstream, got %d hits", hits)
	}
}

func TestStoreSuccessKeepsNewerEntry(t *testing.T) {
	c := New("http://unused", "usd", newMemStateStore(), nopMetrics{}, testLogger(t))
	ctx := context.Background()
	newer := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	c.storeSuccess(ctx, "markets:100", []byte("new"), newer)
	c.storeSuccess(ctx, "markets:100", []byte("stale"), newer.Add(-time.Minute))

	entry := c.cache["markets:100"]
	if string(entry.Data) != "new" {
		t.Fatalf("older payload overwrote newer cache entry: %q", entry.Data)
	}
	if !entry.Timestamp.Equal(newer) {
		t.Fatalf("cache timestamp regressed to %v", entry.Timestamp)
	}
}

func TestBackoffSchedule(t *testing.T) {
	cases := []struct {
		base    time.Duration
		attempt int
		cap     time.Duration
		want    time.Duration
	}{
		{time.Second, 1, 30 * time.Second, time.Second},
		{time.Second, 2, 30 * time.Second, 2 * time.Second},
		{time.Second, 3, 30 * time.Second, 4 * time.Second},
		{2 * time.Second, 3, 10 * time.Second, 8 * time.Second},
		{2 * time.Second, 4, 10 * time.Second, 10 * time.Second}, // capped
	}
	for _, tc := range cases {
		if got := backoff(tc.base, tc.attempt, tc.cap); got != tc.want {
			t.Fatalf("backoff(%v, %d, %v) = %v, want %v", tc.base, tc.attempt, tc.cap, got, tc.want)
		}
	}
}

func TestRetryAfterParsing(t *testing.T) {
	mk := func(v string) *http.Response {
		h := http.Header{}
		if v != "" {
			h.Set("Retry-After", v)
		}
		return &http.Response{Header: h}
	}
	if d := retryAfter(mk("120")); d != 120*time.Second {
		t.Fatalf("expected 120s, got %v", d)
	}
	if d := retryAfter(mk("")); d != 0 {
		t.Fatalf("expected 0 for missing header, got %v", d)
	}
	if d := retryAfter(mk("soon")); d != 0 {
		t.Fatalf("expected 0 for malformed header, got %v", d)
	}
}
