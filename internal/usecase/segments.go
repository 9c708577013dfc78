package usecase

import (
	"fmt"

	"MarketPulse/internal/domain/models"
)

// Segment labels for the dominant-segment aggregate.
const (
	SegmentMajors    = "majors"     // rank 1..10
	SegmentLargeCaps = "large-caps" // rank 11..50
	SegmentSmallCaps = "small-caps" // rank 51+
)

// Cycle phase labels.
const (
	PhaseExpansion   = "expansion"
	PhaseOverheat    = "overheat"
	PhaseContraction = "contraction"
	PhaseRecovery    = "recovery"
)

// scoreSegments buckets the fetched universe into three rank tiers and
// scores each by its cap-weighted mean 24h change. The dominant label is the
// top-scoring bucket; the margin is its lead over the runner-up.
func scoreSegments(assets []models.AssetSnapshot) (string, float64, []models.SegmentScore) {
	type bucket struct {
		label    string
		capSum   float64
		weighted float64
	}
	buckets := []*bucket{
		{label: SegmentMajors},
		{label: SegmentLargeCaps},
		{label: SegmentSmallCaps},
	}

	totalCap := 0.0
	for _, a := range assets {
		b := buckets[2]
		switch {
		case a.Rank > 0 && a.Rank <= 10:
			b = buckets[0]
		case a.Rank > 10 && a.Rank <= 50:
			b = buckets[1]
		}
		b.capSum += a.MarketCap
		b.weighted += a.MarketCap * a.Change24h
		totalCap += a.MarketCap
	}

	scores := make([]models.SegmentScore, len(buckets))
	for i, b := range buckets {
		s := models.SegmentScore{Label: b.label}
		if b.capSum > 0 {
			s.Change24 = b.weighted / b.capSum
		}
		if totalCap > 0 {
			s.Weight = b.capSum / totalCap
		}
		scores[i] = s
	}

	top, second := 0, -1
	for i := 1; i < len(scores); i++ {
		if scores[i].Change24 > scores[top].Change24 {
			second = top
			top = i
		} else if second < 0 || scores[i].Change24 > scores[second].Change24 {
			second = i
		}
	}
	margin := scores[top].Change24
	if second >= 0 {
		margin = scores[top].Change24 - scores[second].Change24
	}
	return scores[top].Label, margin, scores
}

// classifyCycle derives a cycle-phase label plus risk and opportunity scores
// (both 0-100) from market breadth and mean 24h change. The weights are
// heuristic; the value comes from running the result through the stabilizer,
// not from the formula itself.
func classifyCycle(assets []models.AssetSnapshot) (string, float64, float64, []string) {
	if len(assets) == 0 {
		return PhaseContraction, 0, 0, nil
	}

	var up24, up7, sum24 float64
	for _, a := range assets {
		if a.Change24h > 0 {
			up24++
		}
		if a.Change7d > 0 {
			up7++
		}
		sum24 += a.Change24h
	}
	n := float64(len(assets))
	breadth24 := up24 / n
	breadth7 := up7 / n
	mean24 := sum24 / n

	var phase string
	switch {
	case breadth24 >= 0.75 && mean24 >= 3:
		phase = PhaseOverheat
	case breadth24 >= 0.5 && breadth7 >= 0.5:
		phase = PhaseExpansion
	case breadth24 >= 0.5:
		// short-term strength against a weak week
		phase = PhaseRecovery
	default:
		phase = PhaseContraction
	}

	// normalize mean24 into [0,1] over a +-10% band
	normMean := clamp01((mean24 + 10) / 20)
	risk := 100 * (0.6*breadth24 + 0.4*normMean)
	opportunity := 100 * (0.5*(1-breadth7) + 0.3*breadth24 + 0.2*(1-normMean))

	reasons := []string{
		fmt.Sprintf("24h breadth %.0f%%", breadth24*100),
		fmt.Sprintf("7d breadth %.0f%%", breadth7*100),
		fmt.Sprintf("mean 24h change %.2f%%", mean24),
	}
	return phase, risk, opportunity, reasons
}

func segmentReason(s models.SegmentScore) string {
	return fmt.Sprintf("%s %+.2f%% (%.0f%% of cap)", s.Label, s.Change24, s.Weight*100)
}

func globalReason(g models.GlobalSnapshot) string {
	return fmt.Sprintf("global cap %+.2f%% 24h, btc dominance %.1f%%", g.MarketCapChange24, g.BTCDominance)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
