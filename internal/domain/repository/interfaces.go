package repository

import (
	"context"
	"time"

	"MarketPulse/internal/domain/models"
)

// SnapshotSource supplies per-cycle market data. Implementations never fail
// to the caller: on total failure they return an empty slice and the Status
// provenance reflects it.
type SnapshotSource interface {
	Fetch(ctx context.Context, assetCount int) []models.AssetSnapshot
	FetchGlobal(ctx context.Context) (models.GlobalSnapshot, bool)
	Status() models.FetchStatus
}

// SnapshotPublisher pushes a published analysis to an external sink.
type SnapshotPublisher interface {
	Publish(ctx context.Context, a *models.Analysis) error
	Close() error
}

// SignalArchive stores per-cycle scored signals for offline study.
type SignalArchive interface {
	Init(ctx context.Context) error
	StoreBatch(ctx context.Context, at time.Time, signals []models.ScoredSignal) error
	Query(ctx context.Context, symbol string, kind models.SignalKind, from, to time.Time, limit int) ([]models.ScoredSignal, error)
	Health(ctx context.Context) error
	Close() error
}

// Metrics abstracts the engine's observability counters.
type Metrics interface {
	RecordCycle(status string, seconds float64)
	RecordFetchAttempt(key string)
	RecordFetchOutcome(key, outcome string)
	RecordRateLimited(limited bool)
	RecordAssetCount(n int)
	RecordError(kind string)
	RecordLastScore(kind, symbol string, score float64)
}
