package signals

import (
	"testing"

	"MarketPulse/internal/domain/models"
)

func liquidAsset() models.AssetSnapshot {
	return models.AssetSnapshot{
		ID: "testcoin", Symbol: "tst", Name: "Testcoin",
		Price: 100, High24h: 105, Low24h: 95,
		MarketCap: 500_000_000, Volume24h: 50_000_000,
		Rank: 20,
	}
}

func TestBullishScoresMomentum(t *testing.T) {
	asset := liquidAsset()
	asset.Change1h = 3
	asset.Change24h = 8
	asset.Change7d = 12
	asset.Price = 104 // near the daily high

	sig := ClassifyBullish(asset, nil)
	// 1h +2, 24h +3, 7d +2, turnover +2, range +1
	if sig.Score != 10 {
		t.Fatalf("expected score 10, got %v (reasons %v)", sig.Score, sig.Reasons)
	}
	if len(sig.Reasons) != 5 {
		t.Fatalf("expected 5 reasons, got %v", sig.Reasons)
	}
}

func TestBullishIsPure(t *testing.T) {
	asset := liquidAsset()
	asset.Change24h = 6
	a := ClassifyBullish(asset, nil)
	b := ClassifyBullish(asset, nil)
	if a.Score != b.Score || len(a.Reasons) != len(b.Reasons) {
		t.Fatalf("classifier must be deterministic: %v vs %v", a, b)
	}
}

func TestBearishScoresBreakdown(t *testing.T) {
	asset := liquidAsset()
	asset.Change1h = -3
	asset.Change24h = -7
	asset.Change7d = -15
	asset.Price = 95.5 // pinned near the low
	asset.Volume24h = 100_000_000

	sig := ClassifyBearish(asset, nil)
	// 1h +2, 24h +3, 7d +2, volume into decline +2, range +1
	if sig.Score != 10 {
		t.Fatalf("expected score 10, got %v (reasons %v)", sig.Score, sig.Reasons)
	}
}

func TestShortHorizonLiquidityFloor(t *testing.T) {
	asset := liquidAsset()
	asset.MarketCap = 1_000_000
	asset.Volume24h = 10_000
	asset.Change1h = 3 // +2, then -3 liquidity penalty -> floored

	sig := ClassifyBullish(asset, nil)
	if sig.Score != 0 {
		t.Fatalf("expected floor at 0, got %v", sig.Score)
	}
	found := false
	for _, r := range sig.Reasons {
		if r == "thin liquidity" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected thin liquidity reason, got %v", sig.Reasons)
	}
}

func TestHTFPenaltyIsExact(t *testing.T) {
	base := liquidAsset()
	base.Change30d = 20
	base.Change7d = 6
	before := ClassifyHTF(base, nil)

	thin := base
	thin.MarketCap = 5_000_000
	thin.Volume24h = 50_000
	after := ClassifyHTF(thin, nil)

	if before.Score-after.Score != HTFPenalty {
		t.Fatalf("expected exact penalty of %v, got %v -> %v", HTFPenalty, before.Score, after.Score)
	}
}

func TestHTFPenaltyFloorsAtZero(t *testing.T) {
	asset := liquidAsset()
	asset.MarketCap = 5_000_000
	asset.Volume24h = 50_000
	asset.Change30d = 0
	asset.Change7d = 0
	asset.Rank = 500

	sig := ClassifyHTF(asset, nil)
	if sig.Score != 0 {
		t.Fatalf("expected 0, got %v", sig.Score)
	}
}

func TestHTFQualifierAboveThreshold(t *testing.T) {
	asset := liquidAsset()
	asset.Change30d = 45 // +3 +2
	asset.Change7d = 8   // +2
	// rank +1, turnover 0.1 >= 0.05 +1

	sig := ClassifyHTF(asset, nil)
	if sig.Score < HTFQualifyScore {
		t.Fatalf("expected a qualifying score, got %v (reasons %v)", sig.Score, sig.Reasons)
	}
}

func TestReasonOrderIsStable(t *testing.T) {
	asset := liquidAsset()
	asset.Change1h = 3
	asset.Change24h = 8
	sig := ClassifyBullish(asset, nil)
	if len(sig.Reasons) < 2 {
		t.Fatalf("expected at least two reasons, got %v", sig.Reasons)
	}
	if sig.Reasons[0][:2] != "1h" || sig.Reasons[1][:3] != "24h" {
		t.Fatalf("reasons must keep rule order: %v", sig.Reasons)
	}
}
