package marketdata

import (
	"encoding/json"
	"time"

	"MarketPulse/internal/domain/models"
)

// wire types for the upstream market-data API.

type marketRow struct {
	ID        string  `json:"id"`
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Price     float64 `json:"current_price"`
	MarketCap float64 `json:"market_cap"`
	Rank      int     `json:"market_cap_rank"`
	Volume    float64 `json:"total_volume"`
	High24h   float64 `json:"high_24h"`
	Low24h    float64 `json:"low_24h"`
	Change1h  float64 `json:"price_change_percentage_1h_in_currency"`
	Change24h float64 `json:"price_change_percentage_24h_in_currency"`
	Change7d  float64 `json:"price_change_percentage_7d_in_currency"`
	Change30d float64 `json:"price_change_percentage_30d_in_currency"`
	Sparkline *struct {
		Price []float64 `json:"price"`
	} `json:"sparkline_in_7d"`
}

type globalPayload struct {
	Data struct {
		TotalMarketCap  map[string]float64 `json:"total_market_cap"`
		TotalVolume     map[string]float64 `json:"total_volume"`
		MarketCapChange float64            `json:"market_cap_change_percentage_24h_usd"`
		MarketCapPct    map[string]float64 `json:"market_cap_percentage"`
	} `json:"data"`
}

func decodeMarkets(body []byte, at time.Time) ([]models.AssetSnapshot, error) {
	var rows []marketRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, err
	}
	out := make([]models.AssetSnapshot, 0, len(rows))
	for _, r := range rows {
		a := models.AssetSnapshot{
			ID:        r.ID,
			Symbol:    r.Symbol,
			Name:      r.Name,
			Price:     r.Price,
			Change1h:  r.Change1h,
			Change24h: r.Change24h,
			Change7d:  r.Change7d,
			Change30d: r.Change30d,
			Volume24h: r.Volume,
			MarketCap: r.MarketCap,
			Rank:      r.Rank,
			High24h:   r.High24h,
			Low24h:    r.Low24h,
			FetchedAt: at,
		}
		if r.Sparkline != nil {
			a.Sparkline = r.Sparkline.Price
		}
		out = append(out, a)
	}
	return out, nil
}

func decodeGlobal(body []byte, currency string, at time.Time) (models.GlobalSnapshot, error) {
	var p globalPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return models.GlobalSnapshot{}, err
	}
	return models.GlobalSnapshot{
		TotalMarketCap:    p.Data.TotalMarketCap[currency],
		TotalVolume:       p.Data.TotalVolume[currency],
		MarketCapChange24: p.Data.MarketCapChange,
		BTCDominance:      p.Data.MarketCapPct["btc"],
		FetchedAt:         at,
	}, nil
}
