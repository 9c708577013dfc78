package signals

import (
	"fmt"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/services/indicators"
)

// Liquidity minimums and penalties. The long-horizon classifier demands
// deeper markets than the short-horizon pair.
const (
	MinMarketCap     = 10_000_000
	MinVolume        = 500_000
	LiquidityPenalty = 3

	HTFMinMarketCap = 100_000_000
	HTFMinVolume    = 5_000_000
	HTFPenalty      = 4
)

// HTFQualifyScore is the threshold at which a long-horizon score counts as
// a qualifying reading for the stabilizer's floor rule.
const HTFQualifyScore = 5

// ClassifyBullish scores short-horizon upside momentum. Pure: same snapshot
// and series always produce the same score and reason list.
func ClassifyBullish(asset models.AssetSnapshot, series []float64) models.ScoredSignal {
	sig := newSignal(models.SignalBullish, asset)
	score := 0.0

	if asset.Change1h >= 2 {
		score += 2
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("1h momentum +%.1f%%", asset.Change1h))
	}
	if asset.Change24h >= 5 {
		score += 3
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("24h momentum +%.1f%%", asset.Change24h))
	}
	if asset.Change7d >= 10 {
		score += 2
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("7d uptrend +%.1f%%", asset.Change7d))
	}
	if turnover(asset) >= 0.1 {
		score += 2
		sig.Reasons = append(sig.Reasons, "high turnover vs market cap")
	}
	if asset.RangePosition() >= 0.8 {
		score += 1
		sig.Reasons = append(sig.Reasons, "trading near daily high")
	}
	if osc, ok := indicators.Oscillator(series, indicators.OscillatorPeriod); ok {
		if osc >= 55 && osc <= 70 {
			score += 2
			sig.Reasons = append(sig.Reasons, "oscillator in bullish band")
		} else if osc > 80 {
			score -= 2
			sig.Reasons = append(sig.Reasons, "oscillator overbought")
		}
	}

	score = applyLiquidityFilter(asset, &sig, score, MinMarketCap, MinVolume, LiquidityPenalty)
	sig.Score = score
	return sig
}

// ClassifyBearish scores short-horizon downside pressure.
func ClassifyBearish(asset models.AssetSnapshot, series []float64) models.ScoredSignal {
	sig := newSignal(models.SignalBearish, asset)
	score := 0.0

	if asset.Change1h <= -2 {
		score += 2
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("1h drop %.1f%%", asset.Change1h))
	}
	if asset.Change24h <= -5 {
		score += 3
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("24h drop %.1f%%", asset.Change24h))
	}
	if asset.Change7d <= -10 {
		score += 2
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("7d downtrend %.1f%%", asset.Change7d))
	}
	if asset.Change24h < 0 && turnover(asset) >= 0.15 {
		score += 2
		sig.Reasons = append(sig.Reasons, "heavy volume into the decline")
	}
	if asset.RangePosition() <= 0.2 {
		score += 1
		sig.Reasons = append(sig.Reasons, "pinned to daily low")
	}
	if osc, ok := indicators.Oscillator(series, indicators.OscillatorPeriod); ok && osc <= 35 {
		score += 2
		sig.Reasons = append(sig.Reasons, "oscillator exhausted")
	}

	score = applyLiquidityFilter(asset, &sig, score, MinMarketCap, MinVolume, LiquidityPenalty)
	sig.Score = score
	return sig
}

// ClassifyHTF scores an asset as a long-horizon holding candidate based on
// multi-week trend stability. Scores at or above HTFQualifyScore mark a
// qualifying cycle for the stabilizer.
func ClassifyHTF(asset models.AssetSnapshot, series []float64) models.ScoredSignal {
	sig := newSignal(models.SignalHTF, asset)
	score := 0.0

	if asset.Change30d >= 15 {
		score += 3
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("sustained 30d trend +%.1f%%", asset.Change30d))
		if asset.Change30d >= 40 {
			score += 2
			sig.Reasons = append(sig.Reasons, "exceptional 30d strength")
		}
	}
	if asset.Change7d >= 5 {
		score += 2
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("7d trend intact +%.1f%%", asset.Change7d))
	}
	if long, ok := indicators.SimpleAverage(series, indicators.LongAvgPeriod); ok && asset.Price > long {
		score += 2
		sig.Reasons = append(sig.Reasons, "price above long average")
	}
	if osc, ok := indicators.Oscillator(series, indicators.OscillatorPeriod); ok && osc >= 45 && osc <= 65 {
		score += 1
		sig.Reasons = append(sig.Reasons, "oscillator in healthy range")
	}
	if asset.Rank > 0 && asset.Rank <= 100 {
		score += 1
		sig.Reasons = append(sig.Reasons, "established market rank")
	}
	if turnover(asset) >= 0.05 {
		score += 1
		sig.Reasons = append(sig.Reasons, "sustained turnover")
	}

	score = applyLiquidityFilter(asset, &sig, score, HTFMinMarketCap, HTFMinVolume, HTFPenalty)
	sig.Score = score
	return sig
}

func newSignal(kind models.SignalKind, asset models.AssetSnapshot) models.ScoredSignal {
	return models.ScoredSignal{
		Kind:      kind,
		AssetID:   asset.ID,
		Symbol:    asset.Symbol,
		Name:      asset.Name,
		Price:     asset.Price,
		Timestamp: asset.FetchedAt,
	}
}

func turnover(asset models.AssetSnapshot) float64 {
	if asset.MarketCap <= 0 {
		return 0
	}
	return asset.Volume24h / asset.MarketCap
}

// applyLiquidityFilter subtracts the penalty when the asset trades below the
// given minimums, flooring the result at zero.
func applyLiquidityFilter(asset models.AssetSnapshot, sig *models.ScoredSignal, score, minCap, minVol, penalty float64) float64 {
	if asset.MarketCap < minCap || asset.Volume24h < minVol {
		score -= penalty
		sig.Reasons = append(sig.Reasons, "thin liquidity")
	}
	if score < 0 {
		score = 0
	}
	return score
}
