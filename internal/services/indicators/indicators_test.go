package indicators

import (
	"math"
	"strings"
	"testing"

	"MarketPulse/internal/domain/models"
)

func approx(a, b, eps float64) bool { return math.Abs(a-b) <= eps }

func rising(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestOscillatorInsufficientData(t *testing.T) {
	for n := 0; n <= OscillatorPeriod; n++ {
		if _, ok := Oscillator(rising(n, 1, 1), OscillatorPeriod); ok {
			t.Fatalf("expected insufficient data at n=%d", n)
		}
	}
}

func TestOscillatorBounds(t *testing.T) {
	cases := [][]float64{
		rising(30, 100, 1),
		rising(30, 100, -1),
		{10, 11, 10, 12, 9, 14, 8, 15, 7, 16, 6, 17, 5, 18, 4, 19},
	}
	for i, prices := range cases {
		v, ok := Oscillator(prices, OscillatorPeriod)
		if !ok {
			t.Fatalf("case %d: expected value", i)
		}
		if v < 0 || v > 100 {
			t.Fatalf("case %d: out of range: %v", i, v)
		}
	}
}

func TestOscillatorNoLossesIsExactly100(t *testing.T) {
	v, ok := Oscillator(rising(20, 50, 0.5), OscillatorPeriod)
	if !ok || v != 100 {
		t.Fatalf("expected exactly 100, got %v ok=%v", v, ok)
	}
	// all-flat series has zero average loss too
	v, ok = Oscillator(make([]float64, 20), OscillatorPeriod)
	if !ok || v != 100 {
		t.Fatalf("flat series: expected 100, got %v", v)
	}
}

func TestOscillatorBalanced(t *testing.T) {
	// equal gains and losses over the window -> rs=1 -> 50
	prices := []float64{10, 11, 10, 11, 10}
	v, ok := Oscillator(prices, 4)
	if !ok || !approx(v, 50, 1e-9) {
		t.Fatalf("expected 50, got %v", v)
	}
}

func TestSimpleAverage(t *testing.T) {
	v, ok := SimpleAverage([]float64{1, 2, 3, 4, 5, 6}, 3)
	if !ok || !approx(v, 5, 1e-9) {
		t.Fatalf("expected 5, got %v", v)
	}
	if _, ok := SimpleAverage([]float64{1, 2}, 3); ok {
		t.Fatalf("expected insufficient data")
	}
}

func TestExponentialAverageSeedAndRecurrence(t *testing.T) {
	// seed = sma(2,4) = 3, k = 2/3, next = (8-3)*2/3 + 3
	v, ok := ExponentialAverage([]float64{2, 4, 8}, 2)
	if !ok || !approx(v, 3+5.0*2/3, 1e-9) {
		t.Fatalf("unexpected ema %v", v)
	}
	// exactly period points returns the seed
	v, ok = ExponentialAverage([]float64{2, 4}, 2)
	if !ok || !approx(v, 3, 1e-9) {
		t.Fatalf("expected seed 3, got %v", v)
	}
}

func TestConvergenceSelfBlend(t *testing.T) {
	prices := rising(40, 100, 2)
	c := Convergence(prices)
	if !c.Valid {
		t.Fatalf("expected valid result")
	}
	if !approx(c.Signal, c.Line*0.8, 1e-9) {
		t.Fatalf("signal should be 0.8x line: line=%v signal=%v", c.Line, c.Signal)
	}
	if !approx(c.Histogram, c.Line-c.Signal, 1e-9) {
		t.Fatalf("histogram mismatch")
	}
	if Convergence(rising(SlowExpPeriod-1, 1, 1)).Valid {
		t.Fatalf("expected insufficient data below slow period")
	}
}

func TestBands(t *testing.T) {
	flat := make([]float64, BandsPeriod)
	for i := range flat {
		flat[i] = 10
	}
	b := Bands(flat, BandsPeriod, BandsMultiplier)
	if !b.Valid {
		t.Fatalf("expected valid bands")
	}
	if !approx(b.Upper, 10, 1e-9) || !approx(b.Lower, 10, 1e-9) || !approx(b.Bandwidth, 0, 1e-9) {
		t.Fatalf("flat series should collapse bands: %+v", b)
	}

	prices := rising(BandsPeriod, 1, 1) // 1..20
	b = Bands(prices, BandsPeriod, BandsMultiplier)
	sigma := math.Sqrt(33.25) // population stddev of 1..20
	if !approx(b.Middle, 10.5, 1e-9) {
		t.Fatalf("middle: %v", b.Middle)
	}
	if !approx(b.Upper, 10.5+2*sigma, 1e-9) || !approx(b.Lower, 10.5-2*sigma, 1e-9) {
		t.Fatalf("bands: %+v", b)
	}
	if Bands(rising(BandsPeriod-1, 1, 1), BandsPeriod, BandsMultiplier).Valid {
		t.Fatalf("expected insufficient data")
	}
}

func TestLevelsFallback(t *testing.T) {
	l := Levels(rising(5, 1, 1), 10, 12, 8)
	if l.Resistance != 12 || l.Support != 8 || l.Strength != models.StrengthWeak {
		t.Fatalf("unexpected fallback levels: %+v", l)
	}
}

func TestLevelsPivot(t *testing.T) {
	prices := rising(LevelsWindow, 100, 1) // 100..119
	current := 119.0
	l := Levels(prices, current, 0, 0)
	pivot := (119.0 + 100.0 + current) / 3
	if !approx(l.Resistance, 2*pivot-100, 1e-9) {
		t.Fatalf("resistance: %v", l.Resistance)
	}
	if !approx(l.Support, 2*pivot-119, 1e-9) {
		t.Fatalf("support: %v", l.Support)
	}
}

func TestSeriesForSparklineFallback(t *testing.T) {
	stored := rising(10, 1, 1)
	spark := rising(30, 50, 1)
	got := SeriesFor(stored, spark)
	if len(got) != 30 {
		t.Fatalf("expected sparkline fallback, got %d points", len(got))
	}

	// NaN points don't count as usable
	short := append(rising(10, 1, 1), math.NaN(), math.NaN())
	got = SeriesFor(stored, short)
	if len(got) != len(stored) {
		t.Fatalf("expected stored series, got %d points", len(got))
	}

	// long stored history wins even with a sparkline present
	long := rising(25, 1, 1)
	got = SeriesFor(long, spark)
	if len(got) != 25 {
		t.Fatalf("expected stored series, got %d points", len(got))
	}
}

func TestComputeBullishAlignment(t *testing.T) {
	series := rising(60, 100, 1)
	asset := models.AssetSnapshot{Price: 161, High24h: 162, Low24h: 155}
	r := Compute(asset, series)

	if !r.ShortAvg.Valid || !r.LongAvg.Valid {
		t.Fatalf("expected both averages on a 60 point series")
	}
	if r.ShortAvg.Value < r.LongAvg.Value {
		t.Fatalf("short avg should lead long avg on a strict uptrend")
	}
	found := false
	for _, s := range r.Signals {
		if strings.Contains(s, "bullish alignment") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected bullish alignment signal, got %v", r.Signals)
	}
}

func TestComputeShortHistoryIsUnavailableNotError(t *testing.T) {
	asset := models.AssetSnapshot{Price: 10, High24h: 11, Low24h: 9}
	r := Compute(asset, rising(3, 1, 1))
	if r.Oscillator.Valid || r.ShortAvg.Valid || r.LongAvg.Valid || r.Convergence.Valid || r.Bands.Valid {
		t.Fatalf("expected unavailable indicators on 3 points: %+v", r)
	}
	if r.Levels.Strength != models.StrengthWeak {
		t.Fatalf("expected weak fallback levels")
	}
}
