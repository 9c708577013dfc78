package usecase

import (
	"math"
	"testing"

	"MarketPulse/internal/domain/models"
)

func segAsset(rank int, cap, change24, change7 float64) models.AssetSnapshot {
	return models.AssetSnapshot{
		Rank:      rank,
		MarketCap: cap,
		Change24h: change24,
		Change7d:  change7,
	}
}

func TestScoreSegmentsCapWeighting(t *testing.T) {
	assets := []models.AssetSnapshot{
		segAsset(1, 300, 1, 0),  // majors
		segAsset(2, 100, 5, 0),  // majors: weighted mean (300*1+100*5)/400 = 2
		segAsset(20, 100, 4, 0), // large-caps: 4
		segAsset(80, 100, -2, 0),
	}

	label, margin, scores := scoreSegments(assets)
	if label != SegmentLargeCaps {
		t.Fatalf("expected large-caps dominant, got %s", label)
	}
	if math.Abs(margin-2) > 1e-9 {
		t.Fatalf("expected margin 2 (4 vs 2), got %v", margin)
	}
	if math.Abs(scores[0].Change24-2) > 1e-9 {
		t.Fatalf("majors cap-weighted change: got %v, want 2", scores[0].Change24)
	}
	if math.Abs(scores[0].Weight-400.0/600.0) > 1e-9 {
		t.Fatalf("majors weight: got %v", scores[0].Weight)
	}
}

func TestScoreSegmentsEmptyBucket(t *testing.T) {
	assets := []models.AssetSnapshot{
		segAsset(1, 100, 3, 0),
	}
	label, _, scores := scoreSegments(assets)
	if label != SegmentMajors {
		t.Fatalf("expected majors, got %s", label)
	}
	for _, s := range scores[1:] {
		if s.Change24 != 0 || s.Weight != 0 {
			t.Fatalf("empty bucket must stay zero: %+v", s)
		}
	}
}

func TestClassifyCyclePhases(t *testing.T) {
	mk := func(n int, up24, up7 int, change24 float64) []models.AssetSnapshot {
		out := make([]models.AssetSnapshot, n)
		for i := range out {
			c24, c7 := -1.0, -1.0
			if i < up24 {
				c24 = change24
			}
			if i < up7 {
				c7 = 1.0
			}
			out[i] = segAsset(i+1, 100, c24, c7)
		}
		return out
	}

	cases := []struct {
		name   string
		assets []models.AssetSnapshot
		want   string
	}{
		{"broad strong gains overheat", mk(20, 16, 16, 5), PhaseOverheat},
		{"broad mild gains expand", mk(20, 12, 12, 1), PhaseExpansion},
		{"short-term strength recovers", mk(20, 12, 4, 1), PhaseRecovery},
		{"broad losses contract", mk(20, 4, 4, 1), PhaseContraction},
	}
	for _, tc := range cases {
		phase, risk, opportunity, _ := classifyCycle(tc.assets)
		if phase != tc.want {
			t.Fatalf("%s: got %s, want %s", tc.name, phase, tc.want)
		}
		if risk < 0 || risk > 100 || opportunity < 0 || opportunity > 100 {
			t.Fatalf("%s: scores out of range: risk=%v opportunity=%v", tc.name, risk, opportunity)
		}
	}
}

func TestClassifyCycleEmptyUniverse(t *testing.T) {
	phase, risk, opportunity, reasons := classifyCycle(nil)
	if phase != PhaseContraction || risk != 0 || opportunity != 0 || reasons != nil {
		t.Fatalf("empty universe: got %s %v %v %v", phase, risk, opportunity, reasons)
	}
}
