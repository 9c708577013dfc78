package repository

import (
	"context"
	"time"

	"MarketPulse/internal/domain/repository"
	"MarketPulse/pkg/cache"
)

// CachedStateStore puts a Redis-backed hot tier in front of another
// StateStore for a chosen set of keys. Saves always write through to the
// durable store first; the cache is best-effort and a miss or Redis outage
// just falls back to the inner store.
type CachedStateStore struct {
	inner repository.StateStore
	cache cache.Service
	hot   map[string]time.Duration // cached key -> TTL
}

// NewCachedStateStore wraps inner with a cache tier for the given keys.
func NewCachedStateStore(inner repository.StateStore, c cache.Service, hot map[string]time.Duration) *CachedStateStore {
	return &CachedStateStore{inner: inner, cache: c, hot: hot}
}

func (s *CachedStateStore) Load(ctx context.Context, key string, dest interface{}) (bool, error) {
	ttl, hot := s.hot[key]
	if hot {
		if err := s.cache.Get(ctx, s.cacheKey(key), dest); err == nil {
			return true, nil
		}
	}

	found, err := s.inner.Load(ctx, key, dest)
	if err != nil || !found {
		return found, err
	}
	if hot {
		_ = s.cache.Set(ctx, s.cacheKey(key), dest, ttl)
	}
	return true, nil
}

func (s *CachedStateStore) Save(ctx context.Context, key string, v interface{}) error {
	if err := s.inner.Save(ctx, key, v); err != nil {
		return err
	}
	if ttl, hot := s.hot[key]; hot {
		_ = s.cache.Set(ctx, s.cacheKey(key), v, ttl)
	}
	return nil
}

func (s *CachedStateStore) cacheKey(key string) string {
	return cache.GenerateKey("state", key)
}
