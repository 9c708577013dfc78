package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	drepo "MarketPulse/internal/domain/repository"
)

type countingStateStore struct {
	docs  map[string][]byte
	loads int
	saves int
}

func newCountingStateStore() *countingStateStore {
	return &countingStateStore{docs: map[string][]byte{}}
}

func (s *countingStateStore) Load(_ context.Context, key string, dest interface{}) (bool, error) {
	s.loads++
	raw, ok := s.docs[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (s *countingStateStore) Save(_ context.Context, key string, v interface{}) error {
	s.saves++
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.docs[key] = raw
	return nil
}

type fakeCache struct {
	docs map[string][]byte
	down bool
}

func newFakeCache() *fakeCache { return &fakeCache{docs: map[string][]byte{}} }

func (c *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if c.down {
		return errors.New("cache down")
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.docs[key] = raw
	return nil
}

func (c *fakeCache) Get(_ context.Context, key string, dest interface{}) error {
	if c.down {
		return errors.New("cache down")
	}
	raw, ok := c.docs[key]
	if !ok {
		return errors.New("cache miss")
	}
	return json.Unmarshal(raw, dest)
}

func (c *fakeCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.docs, k)
	}
	return nil
}

func (c *fakeCache) DeleteByPattern(context.Context, string) error { return nil }
func (c *fakeCache) Exists(context.Context, ...string) (bool, error) {
	return false, nil
}
func (c *fakeCache) Increment(context.Context, string) (int64, error) { return 0, nil }
func (c *fakeCache) Expire(context.Context, string, time.Duration) (bool, error) {
	return false, nil
}
func (c *fakeCache) MSet(context.Context, map[string]interface{}, time.Duration) error {
	return nil
}
func (c *fakeCache) MGet(context.Context, ...string) (map[string]string, error) {
	return nil, nil
}
func (c *fakeCache) TryLock(context.Context, string, time.Duration) (bool, error) {
	return false, nil
}
func (c *fakeCache) Unlock(context.Context, string) error { return nil }

func hotKeys() map[string]time.Duration {
	return map[string]time.Duration{drepo.StateFetchCache: 10 * time.Minute}
}

func TestCachedStateStoreSaveWritesThrough(t *testing.T) {
	inner := newCountingStateStore()
	fc := newFakeCache()
	store := NewCachedStateStore(inner, fc, hotKeys())
	ctx := context.Background()

	if err := store.Save(ctx, drepo.StateFetchCache, map[string]int{"n": 1}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if inner.saves != 1 {
		t.Fatalf("expected durable write, got %d", inner.saves)
	}
	if _, ok := fc.docs["state:"+drepo.StateFetchCache]; !ok {
		t.Fatalf("expected hot key to land in cache")
	}

	var out map[string]int
	found, err := store.Load(ctx, drepo.StateFetchCache, &out)
	if err != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, err)
	}
	if out["n"] != 1 {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if inner.loads != 0 {
		t.Fatalf("hot load should not touch the inner store, got %d loads", inner.loads)
	}
}

func TestCachedStateStoreColdKeyBypassesCache(t *testing.T) {
	inner := newCountingStateStore()
	fc := newFakeCache()
	store := NewCachedStateStore(inner, fc, hotKeys())
	ctx := context.Background()

	if err := store.Save(ctx, drepo.StatePriceHistory, []float64{1, 2}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(fc.docs) != 0 {
		t.Fatalf("cold key must not be cached: %v", fc.docs)
	}

	var out []float64
	found, err := store.Load(ctx, drepo.StatePriceHistory, &out)
	if err != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, err)
	}
	if inner.loads != 1 {
		t.Fatalf("cold load must hit the inner store")
	}
}

func TestCachedStateStoreMissBackfillsCache(t *testing.T) {
	inner := newCountingStateStore()
	fc := newFakeCache()
	store := NewCachedStateStore(inner, fc, hotKeys())
	ctx := context.Background()

	// Seed the durable tier only, as after a Redis restart.
	if err := inner.Save(ctx, drepo.StateFetchCache, map[string]int{"n": 7}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var out map[string]int
	found, err := store.Load(ctx, drepo.StateFetchCache, &out)
	if err != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, err)
	}
	if out["n"] != 7 {
		t.Fatalf("unexpected value: %+v", out)
	}
	if _, ok := fc.docs["state:"+drepo.StateFetchCache]; !ok {
		t.Fatalf("expected backfill after durable hit")
	}
}

func TestCachedStateStoreSurvivesCacheOutage(t *testing.T) {
	inner := newCountingStateStore()
	fc := newFakeCache()
	fc.down = true
	store := NewCachedStateStore(inner, fc, hotKeys())
	ctx := context.Background()

	if err := store.Save(ctx, drepo.StateFetchCache, map[string]int{"n": 3}); err != nil {
		t.Fatalf("save should ignore cache errors: %v", err)
	}

	var out map[string]int
	found, err := store.Load(ctx, drepo.StateFetchCache, &out)
	if err != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, err)
	}
	if out["n"] != 3 {
		t.Fatalf("unexpected value: %+v", out)
	}
}
