package models

import "time"

// AssetSnapshot is one asset's state for one fetch cycle. It is produced once
// by the fetcher and never mutated afterwards.
type AssetSnapshot struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Change1h  float64   `json:"change_1h"`
	Change24h float64   `json:"change_24h"`
	Change7d  float64   `json:"change_7d"`
	Change30d float64   `json:"change_30d"`
	Volume24h float64   `json:"volume_24h"`
	MarketCap float64   `json:"market_cap"`
	Rank      int       `json:"rank"`
	High24h   float64   `json:"high_24h"`
	Low24h    float64   `json:"low_24h"`
	Sparkline []float64 `json:"sparkline,omitempty"` // short embedded price series
	FetchedAt time.Time `json:"fetched_at"`
}

// RangePosition returns where the price sits inside its daily range,
// 0 at the low and 1 at the high. Degenerate ranges report 0.5.
func (a *AssetSnapshot) RangePosition() float64 {
	span := a.High24h - a.Low24h
	if span <= 0 {
		return 0.5
	}
	return (a.Price - a.Low24h) / span
}

// GlobalSnapshot is the follow-up aggregate-index fetch result.
type GlobalSnapshot struct {
	TotalMarketCap    float64   `json:"total_market_cap"`
	TotalVolume       float64   `json:"total_volume"`
	MarketCapChange24 float64   `json:"market_cap_change_24h"`
	BTCDominance      float64   `json:"btc_dominance"`
	FetchedAt         time.Time `json:"fetched_at"`
}

// FetchCacheEntry holds the last successfully fetched payload for one query
// shape. Replaced only by strictly newer successful data.
type FetchCacheEntry struct {
	Data      []byte    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// FetchSource tags where a fetch result came from.
type FetchSource string

const (
	SourceLive   FetchSource = "live"
	SourceCached FetchSource = "cached"
	SourceEmpty  FetchSource = "empty"
)

// FetchStatus reports the fetcher's rate-limit state to consumers.
type FetchStatus struct {
	Limited     bool        `json:"limited"`
	ResetAt     time.Time   `json:"reset_at,omitempty"`
	Requests    int64       `json:"requests"`
	LastSuccess time.Time   `json:"last_success,omitempty"`
	Source      FetchSource `json:"source"`
}
