package models

// Requests for the analysis HTTP endpoints.

type TopSignalsRequest struct {
	Kind string `query:"kind" json:"kind" default:"bullish" validate:"oneof=bullish bearish htf"`
	Top  int    `query:"top" json:"top" default:"25" validate:"gte=1,lte=250"`
}

type AssetRequest struct {
	ID string `param:"id" json:"id" validate:"required"`
}

type MoversRequest struct {
	Window string `query:"window" json:"window"`
	Top    int    `query:"top" json:"top" default:"10" validate:"gte=1,lte=50"`
}

// MoversResponse pairs the normalized window with its ranked extremes.
type MoversResponse struct {
	Window  string          `json:"window"`
	Gainers []AssetSnapshot `json:"gainers"`
	Losers  []AssetSnapshot `json:"losers"`
}

type ArchiveRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	Kind   string `query:"kind" json:"kind" default:"htf" validate:"oneof=bullish bearish htf"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	Limit  int    `query:"limit" json:"limit" default:"200" validate:"gte=1,lte=5000"`
}
