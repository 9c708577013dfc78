package history

import "sync"

// DefaultCapacity bounds each asset's stored series.
const DefaultCapacity = 50

// Store is the append-only, capped price history for all tracked assets.
// Only the ingestion step mutates it; oldest observations are evicted first.
type Store struct {
	mu     sync.RWMutex
	series map[string][]float64
	cap    int
}

// NewStore creates an empty history store with the given per-asset capacity.
// A non-positive capacity falls back to DefaultCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{series: make(map[string][]float64), cap: capacity}
}

// Append records one observed price for the asset, evicting the oldest
// observation once the capacity is reached.
func (s *Store) Append(assetID string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ser := append(s.series[assetID], price)
	if len(ser) > s.cap {
		ser = ser[len(ser)-s.cap:]
	}
	s.series[assetID] = ser
}

// Series returns a copy of the asset's stored series, oldest first.
func (s *Store) Series(assetID string) []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ser := s.series[assetID]
	if len(ser) == 0 {
		return nil
	}
	out := make([]float64, len(ser))
	copy(out, ser)
	return out
}

// Len reports the number of stored observations for the asset.
func (s *Store) Len(assetID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series[assetID])
}

// Snapshot copies the full state for persistence.
func (s *Store) Snapshot() map[string][]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]float64, len(s.series))
	for id, ser := range s.series {
		cp := make([]float64, len(ser))
		copy(cp, ser)
		out[id] = cp
	}
	return out
}

// Restore replaces the state from persisted data, truncating any series
// that exceeds capacity to its newest observations.
func (s *Store) Restore(state map[string][]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series = make(map[string][]float64, len(state))
	for id, ser := range state {
		if len(ser) > s.cap {
			ser = ser[len(ser)-s.cap:]
		}
		cp := make([]float64, len(ser))
		copy(cp, ser)
		s.series[id] = cp
	}
}
