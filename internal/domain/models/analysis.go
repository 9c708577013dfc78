package models

import "time"

// CyclePhaseState is the stabilized market cycle classification.
type CyclePhaseState struct {
	Phase       string           `json:"phase"`
	Risk        float64          `json:"risk"`
	Opportunity float64          `json:"opportunity"`
	Stabilized  bool             `json:"stabilized"`
	Stability   StabilityMetrics `json:"stability"`
}

// SegmentScore is one market segment's aggregate reading for a cycle.
type SegmentScore struct {
	Label    string  `json:"label"`
	Change24 float64 `json:"change_24h"`
	Weight   float64 `json:"weight"` // share of universe market cap
}

// DominantSegmentState is the stabilized dominant-segment classification.
type DominantSegmentState struct {
	Label      string           `json:"label"`
	Margin     float64          `json:"margin"`
	Segments   []SegmentScore   `json:"segments"`
	Stabilized bool             `json:"stabilized"`
	Stability  StabilityMetrics `json:"stability"`
}

// AssetAnalysis is the per-asset detail view served by the API.
type AssetAnalysis struct {
	Asset      AssetSnapshot   `json:"asset"`
	Indicators IndicatorResult `json:"indicators"`
	Bullish    ScoredSignal    `json:"bullish"`
	Bearish    ScoredSignal    `json:"bearish"`
	HTF        RegimeState     `json:"htf"`
}

// Analysis is the snapshot published after each cycle. It is the only thing
// external consumers (HTTP, WS, Kafka) ever see, and a failed cycle never
// replaces the previous one with anything but a degraded marker.
type Analysis struct {
	GeneratedAt time.Time            `json:"generated_at"`
	Degraded    bool                 `json:"degraded"`
	AssetCount  int                  `json:"asset_count"`
	CyclePhase  CyclePhaseState      `json:"cycle_phase"`
	Segment     DominantSegmentState `json:"dominant_segment"`
	Bullish     []ScoredSignal       `json:"bullish"`
	Bearish     []ScoredSignal       `json:"bearish"`
	HTF         []ScoredSignal       `json:"htf"`
	Fetch       FetchStatus          `json:"fetch"`
}
