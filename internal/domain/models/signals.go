package models

import "time"

// SignalKind identifies which classifier produced a score.
type SignalKind string

const (
	SignalBullish SignalKind = "bullish"
	SignalBearish SignalKind = "bearish"
	SignalHTF     SignalKind = "htf" // long-horizon candidate
)

// ScoredSignal is one classifier's verdict for one asset on one cycle.
type ScoredSignal struct {
	Kind      SignalKind `json:"kind"`
	AssetID   string     `json:"asset_id"`
	Symbol    string     `json:"symbol"`
	Name      string     `json:"name"`
	Price     float64    `json:"price"`
	Score     float64    `json:"score"`
	Reasons   []string   `json:"reasons"`
	Timestamp time.Time  `json:"timestamp"`
}

// RegimeObservation is one raw tick fed into a stabilizer channel. The
// stabilizer persists these between runs so smoothing survives a restart.
type RegimeObservation struct {
	Time    time.Time          `json:"timestamp"`
	Label   string             `json:"label"`
	Score   float64            `json:"score"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
	Reasons []string           `json:"reasons,omitempty"`
}

// StabilityMetrics describes how settled a stabilized channel is.
type StabilityMetrics struct {
	DominancePct float64 `json:"dominance_pct"`
	Flips        int     `json:"flips"`
	MeanScore    float64 `json:"mean_score"`
	Deviation    float64 `json:"deviation"`
	Variance     float64 `json:"variance"`
}

// RegimeState is a stabilizer channel's published output for one tick.
type RegimeState struct {
	Label      string           `json:"label"`
	Score      float64          `json:"score"`
	Stabilized bool             `json:"stabilized"`
	Stability  StabilityMetrics `json:"stability"`
	Reasons    []string         `json:"reasons,omitempty"`
	Time       time.Time        `json:"timestamp"`
}
