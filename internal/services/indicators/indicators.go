package indicators

import (
	"fmt"
	"math"

	"MarketPulse/internal/domain/models"
)

// Default windows. Callers can pass their own periods to the primitives;
// Compute uses these.
const (
	OscillatorPeriod = 14
	ShortAvgPeriod   = 20
	LongAvgPeriod    = 50
	FastExpPeriod    = 12
	SlowExpPeriod    = 26
	BandsPeriod      = 20
	BandsMultiplier  = 2.0
	LevelsWindow     = 20
)

// Oscillator computes an RSI-style oscillator over the most recent period
// deltas using simple averages of gains and losses. The value is in [0,100]
// and is exactly 100 whenever the average loss is zero.
// Returns (0, false) when fewer than period+1 prices are available.
func Oscillator(prices []float64, period int) (float64, bool) {
	if period <= 0 || len(prices) < period+1 {
		return 0, false
	}
	var gains, losses float64
	for i := len(prices) - period; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// SimpleAverage computes the mean over the most recent period prices.
func SimpleAverage(prices []float64, period int) (float64, bool) {
	if period <= 0 || len(prices) < period {
		return 0, false
	}
	sum := 0.0
	for _, p := range prices[len(prices)-period:] {
		sum += p
	}
	return sum / float64(period), true
}

// ExponentialAverage computes an EMA seeded from the simple average of the
// first period prices, then the standard 2/(period+1) recurrence.
func ExponentialAverage(prices []float64, period int) (float64, bool) {
	if period <= 0 || len(prices) < period {
		return 0, false
	}
	seed := 0.0
	for _, p := range prices[:period] {
		seed += p
	}
	ema := seed / float64(period)
	k := 2.0 / float64(period+1)
	for _, p := range prices[period:] {
		ema = (p-ema)*k + ema
	}
	return ema, true
}

// Convergence computes the convergence/divergence triple. The signal line is
// a fixed 80/20 damping of the primary line rather than an independent
// moving average of it; downstream output depends on that exact shape.
func Convergence(prices []float64) models.ConvergenceResult {
	fast, okF := ExponentialAverage(prices, FastExpPeriod)
	slow, okS := ExponentialAverage(prices, SlowExpPeriod)
	if !okF || !okS {
		return models.ConvergenceResult{}
	}
	line := fast - slow
	signal := line * 0.8
	return models.ConvergenceResult{
		Line:      line,
		Signal:    signal,
		Histogram: line - signal,
		Valid:     true,
	}
}

// Bands computes volatility bands: SMA centerline ± multiplier × population
// standard deviation over the same window, plus relative bandwidth percent.
func Bands(prices []float64, period int, multiplier float64) models.BandsResult {
	middle, ok := SimpleAverage(prices, period)
	if !ok {
		return models.BandsResult{}
	}
	window := prices[len(prices)-period:]
	var sumSq float64
	for _, p := range window {
		d := p - middle
		sumSq += d * d
	}
	sigma := math.Sqrt(sumSq / float64(period))
	half := multiplier * sigma
	upper := middle + half
	lower := middle - half
	bandwidth := 0.0
	if middle != 0 {
		bandwidth = (upper - lower) / middle * 100
	}
	return models.BandsResult{
		Upper:     upper,
		Middle:    middle,
		Lower:     lower,
		Bandwidth: bandwidth,
		Valid:     true,
	}
}

// Levels computes pivot-based support/resistance from the last LevelsWindow
// prices. With fewer than LevelsWindow points it falls back to the current
// cycle's daily high/low with weak strength.
func Levels(prices []float64, current, dailyHigh, dailyLow float64) models.LevelsResult {
	if len(prices) < LevelsWindow {
		return models.LevelsResult{
			Support:    dailyLow,
			Resistance: dailyHigh,
			Strength:   models.StrengthWeak,
		}
	}
	window := prices[len(prices)-LevelsWindow:]
	high, low := window[0], window[0]
	for _, p := range window[1:] {
		if p > high {
			high = p
		}
		if p < low {
			low = p
		}
	}
	pivot := (high + low + current) / 3
	resistance := 2*pivot - low
	support := 2*pivot - high

	touches := 0
	for _, p := range window {
		if withinPct(p, support, 2) || withinPct(p, resistance, 2) {
			touches++
		}
	}
	strength := models.StrengthWeak
	switch {
	case touches >= 3:
		strength = models.StrengthStrong
	case touches >= 2:
		strength = models.StrengthModerate
	}
	return models.LevelsResult{Support: support, Resistance: resistance, Strength: strength}
}

// SeriesFor picks the price series to compute indicators from: the stored
// history when long enough, else the snapshot's embedded sparkline if it
// carries at least LevelsWindow usable points. The sparkline is never
// written back into the store.
func SeriesFor(stored []float64, sparkline []float64) []float64 {
	if len(stored) >= LevelsWindow {
		return stored
	}
	usable := make([]float64, 0, len(sparkline))
	for _, p := range sparkline {
		if !math.IsNaN(p) {
			usable = append(usable, p)
		}
	}
	if len(usable) >= LevelsWindow {
		return usable
	}
	return stored
}

// Compute derives the full indicator view for one asset from its snapshot
// and stored history.
func Compute(asset models.AssetSnapshot, stored []float64) models.IndicatorResult {
	series := SeriesFor(stored, asset.Sparkline)

	var r models.IndicatorResult
	r.Oscillator.Value, r.Oscillator.Valid = Oscillator(series, OscillatorPeriod)
	r.ShortAvg.Value, r.ShortAvg.Valid = SimpleAverage(series, ShortAvgPeriod)
	r.LongAvg.Value, r.LongAvg.Valid = SimpleAverage(series, LongAvgPeriod)
	r.FastExpAvg.Value, r.FastExpAvg.Valid = ExponentialAverage(series, FastExpPeriod)
	r.SlowExpAvg.Value, r.SlowExpAvg.Valid = ExponentialAverage(series, SlowExpPeriod)
	r.Convergence = Convergence(series)
	r.Bands = Bands(series, BandsPeriod, BandsMultiplier)
	r.Levels = Levels(series, asset.Price, asset.High24h, asset.Low24h)
	r.Signals = buildSignals(asset.Price, r)
	return r
}

func buildSignals(price float64, r models.IndicatorResult) []string {
	var out []string
	if r.ShortAvg.Valid && r.LongAvg.Valid {
		switch {
		case price > r.ShortAvg.Value && r.ShortAvg.Value > r.LongAvg.Value:
			out = append(out, "bullish alignment: price above short and long averages")
		case price < r.ShortAvg.Value && r.ShortAvg.Value < r.LongAvg.Value:
			out = append(out, "bearish alignment: price below short and long averages")
		}
	}
	if r.Oscillator.Valid {
		switch {
		case r.Oscillator.Value >= 70:
			out = append(out, "oscillator overbought")
		case r.Oscillator.Value <= 30:
			out = append(out, "oscillator oversold")
		}
	}
	if r.Convergence.Valid {
		if r.Convergence.Histogram > 0 {
			out = append(out, "momentum positive")
		} else if r.Convergence.Histogram < 0 {
			out = append(out, "momentum negative")
		}
	}
	if r.Bands.Valid {
		if price > r.Bands.Upper {
			out = append(out, "above upper volatility band")
		} else if price < r.Bands.Lower {
			out = append(out, "below lower volatility band")
		}
	}
	if withinPct(price, r.Levels.Support, 2) {
		out = append(out, fmt.Sprintf("near %s support", r.Levels.Strength))
	}
	if withinPct(price, r.Levels.Resistance, 2) {
		out = append(out, fmt.Sprintf("near %s resistance", r.Levels.Strength))
	}
	return out
}

func withinPct(v, target, pct float64) bool {
	if target == 0 {
		return false
	}
	return math.Abs(v-target)/math.Abs(target)*100 <= pct
}
