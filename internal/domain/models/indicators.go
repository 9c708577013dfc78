package models

// IndicatorValue carries a computed indicator or an explicit
// insufficient-data marker. A zero value means "unavailable".
type IndicatorValue struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// ConvergenceResult is the convergence/divergence triple.
type ConvergenceResult struct {
	Line      float64 `json:"line"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
	Valid     bool    `json:"valid"`
}

// BandsResult is the volatility band triple plus relative width.
type BandsResult struct {
	Upper     float64 `json:"upper"`
	Middle    float64 `json:"middle"`
	Lower     float64 `json:"lower"`
	Bandwidth float64 `json:"bandwidth"`
	Valid     bool    `json:"valid"`
}

// LevelStrength is the qualitative tier for support/resistance levels.
type LevelStrength string

const (
	StrengthWeak     LevelStrength = "weak"
	StrengthModerate LevelStrength = "moderate"
	StrengthStrong   LevelStrength = "strong"
)

// LevelsResult holds pivot-based support/resistance.
type LevelsResult struct {
	Support    float64       `json:"support"`
	Resistance float64       `json:"resistance"`
	Strength   LevelStrength `json:"strength"`
}

// IndicatorResult is the full derived view for one asset at one cycle.
// Recomputed every cycle, never persisted.
type IndicatorResult struct {
	Oscillator  IndicatorValue    `json:"oscillator"`
	ShortAvg    IndicatorValue    `json:"short_avg"`  // simple average, 20
	LongAvg     IndicatorValue    `json:"long_avg"`   // simple average, 50
	FastExpAvg  IndicatorValue    `json:"fast_exp"`   // exponential, 12
	SlowExpAvg  IndicatorValue    `json:"slow_exp"`   // exponential, 26
	Convergence ConvergenceResult `json:"convergence"`
	Bands       BandsResult       `json:"bands"`
	Levels      LevelsResult      `json:"levels"`
	Signals     []string          `json:"signals"`
}
