package repository

import "context"

// Keys for persisted engine state. One key maps to one durable document.
const (
	StatePriceHistory   = "price_history"
	StateHTFChannels    = "htf_channels"
	StateSegmentChannel = "segment_channel"
	StateCycleChannel   = "cycle_channel"
	StateFetchCache     = "fetch_cache"
)

// StateStore persists engine state between runs. Load reports (false, nil)
// when the key has never been saved.
type StateStore interface {
	Load(ctx context.Context, key string, dest interface{}) (bool, error)
	Save(ctx context.Context, key string, v interface{}) error
}
