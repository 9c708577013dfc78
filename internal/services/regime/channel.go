package regime

import (
	"math"

	"MarketPulse/internal/domain/models"
)

// meanWindow is the number of recent scores averaged for the hysteresis
// reference value.
const meanWindow = 5

// FloorRule raises the published score when an asset has repeatedly
// qualified, so one weak reading cannot eject it.
type FloorRule struct {
	Qualify    float64 // score that counts as a qualifying reading
	MinCount   int     // qualifying readings required within the history
	CurrentMin float64 // minimum current raw score for the floor to apply
	Floor      float64 // published score is raised to at least this
}

// Config parameterizes one stabilizer channel.
type Config struct {
	Capacity  int     // bounded history length K
	Window    int     // recent window W used for dominance, W <= K
	Dominance float64 // fraction of the window that must agree
	Tolerance float64 // hysteresis closeness band

	// Keys, when set, applies the tolerance check to each named entry of
	// Observation.Metrics instead of the score. Every key must pass.
	Keys []string

	Floor *FloorRule
}

// Channel smooths one stream of raw classifications into a stable label.
// Not safe for concurrent use; the cycle owner serializes access.
type Channel struct {
	cfg  Config
	hist []models.RegimeObservation
}

// NewChannel creates a channel with the given parameters.
func NewChannel(cfg Config) *Channel {
	if cfg.Window <= 0 || cfg.Window > cfg.Capacity {
		cfg.Window = cfg.Capacity
	}
	return &Channel{cfg: cfg}
}

// History returns the raw observation history, oldest first, for persistence.
func (c *Channel) History() []models.RegimeObservation {
	out := make([]models.RegimeObservation, len(c.hist))
	copy(out, c.hist)
	return out
}

// Restore replaces the history from persisted state, keeping the newest
// Capacity entries.
func (c *Channel) Restore(hist []models.RegimeObservation) {
	if len(hist) > c.cfg.Capacity {
		hist = hist[len(hist)-c.cfg.Capacity:]
	}
	c.hist = make([]models.RegimeObservation, len(hist))
	copy(c.hist, hist)
}

// Observe appends one raw observation and returns the published state.
//
// The dominant label over the recent window wins only when it is dominant
// enough and the current reading sits close to the recent mean; a decisive
// new reading overrides it immediately and is published raw.
func (c *Channel) Observe(o models.RegimeObservation) models.RegimeState {
	c.hist = append(c.hist, o)
	if len(c.hist) > c.cfg.Capacity {
		c.hist = c.hist[len(c.hist)-c.cfg.Capacity:]
	}

	window := c.hist
	if len(window) > c.cfg.Window {
		window = window[len(window)-c.cfg.Window:]
	}

	dominant, count := dominantLabel(window)
	ratio := float64(count) / float64(len(window))
	mean := c.meanScore()

	state := models.RegimeState{
		Label:   o.Label,
		Score:   o.Score,
		Reasons: o.Reasons,
		Time:    o.Time,
	}

	if ratio > c.cfg.Dominance && c.withinTolerance(o) {
		state.Label = dominant
		state.Stabilized = true
		state.Stability = models.StabilityMetrics{
			DominancePct: ratio * 100,
			Flips:        flips(window),
			MeanScore:    mean,
			Deviation:    math.Abs(o.Score - mean),
			Variance:     c.scoreVariance(window),
		}
	} else {
		// raw publication: the newest reading speaks for itself
		state.Stability = models.StabilityMetrics{
			DominancePct: 100,
			MeanScore:    o.Score,
			Variance:     c.scoreVariance(window),
		}
	}

	if f := c.cfg.Floor; f != nil {
		qualified := 0
		for _, h := range c.hist {
			if h.Score >= f.Qualify {
				qualified++
			}
		}
		if qualified >= f.MinCount && o.Score >= f.CurrentMin && state.Score < f.Floor {
			state.Score = f.Floor
		}
	}
	return state
}

// dominantLabel picks the most frequent label in the window. Ties break to
// the label first seen scanning oldest to newest, which keeps the result
// deterministic across runs.
func dominantLabel(window []models.RegimeObservation) (string, int) {
	counts := make(map[string]int, len(window))
	order := make([]string, 0, len(window))
	for _, o := range window {
		if _, seen := counts[o.Label]; !seen {
			order = append(order, o.Label)
		}
		counts[o.Label]++
	}
	best, bestCount := "", 0
	for _, label := range order {
		if counts[label] > bestCount {
			best, bestCount = label, counts[label]
		}
	}
	return best, bestCount
}

func flips(window []models.RegimeObservation) int {
	n := 0
	for i := 1; i < len(window); i++ {
		if window[i].Label != window[i-1].Label {
			n++
		}
	}
	return n
}

func (c *Channel) meanScore() float64 {
	return c.meanMetric(func(o models.RegimeObservation) float64 { return o.Score })
}

func (c *Channel) meanMetric(get func(models.RegimeObservation) float64) float64 {
	recent := c.hist
	if len(recent) > meanWindow {
		recent = recent[len(recent)-meanWindow:]
	}
	if len(recent) == 0 {
		return 0
	}
	sum := 0.0
	for _, o := range recent {
		sum += get(o)
	}
	return sum / float64(len(recent))
}

// withinTolerance checks the hysteresis band: the score (or every keyed
// metric) must be within Tolerance of its own recent mean.
func (c *Channel) withinTolerance(o models.RegimeObservation) bool {
	if len(c.cfg.Keys) == 0 {
		return math.Abs(o.Score-c.meanScore()) <= c.cfg.Tolerance
	}
	for _, key := range c.cfg.Keys {
		k := key
		mean := c.meanMetric(func(h models.RegimeObservation) float64 { return h.Metrics[k] })
		if math.Abs(o.Metrics[k]-mean) > c.cfg.Tolerance {
			return false
		}
	}
	return true
}

func (c *Channel) scoreVariance(window []models.RegimeObservation) float64 {
	if len(window) == 0 {
		return 0
	}
	sum := 0.0
	for _, o := range window {
		sum += o.Score
	}
	mean := sum / float64(len(window))
	ss := 0.0
	for _, o := range window {
		d := o.Score - mean
		ss += d * d
	}
	return ss / float64(len(window))
}
