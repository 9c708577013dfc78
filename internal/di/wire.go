//go:build wireinject
// +build wireinject

package di

import (
	"MarketPulse/pkg/config"
	"MarketPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Storage
		ProvideStateStore,
		ProvideHistoryStore,

		// Upstream client
		ProvideFetcher,

		// Optional sinks
		ProvideKafkaProducer,
		ProvideSnapshotPublisher,
		ProvideClickHouseClient,
		ProvideSignalArchive,
		ProvideCache,

		// Engine
		ProvideStreamHub,
		ProvideAnalyzer,

		// HTTP surface
		ProvideHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
