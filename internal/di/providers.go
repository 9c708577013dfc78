package di

import (
	"fmt"
	"time"

	"MarketPulse/internal/domain/repository"
	"MarketPulse/internal/handler/api"
	internalrepo "MarketPulse/internal/repository"
	"MarketPulse/internal/service/history"
	"MarketPulse/internal/service/marketdata"
	"MarketPulse/internal/usecase"
	"MarketPulse/pkg/cache"
	pkgch "MarketPulse/pkg/clickhouse"
	"MarketPulse/pkg/config"
	pkgkafka "MarketPulse/pkg/kafka"
	applogger "MarketPulse/pkg/logger"
	"MarketPulse/pkg/metrics"
	"MarketPulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	log, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return log, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideStateStore creates the on-disk engine state store, fronted by the
// Redis tier for the raw fetch payload when caching is enabled.
func ProvideStateStore(cfg *config.Config, log *applogger.Logger, c cache.Service) (repository.StateStore, error) {
	store, err := internalrepo.NewFileStateStore(cfg.Storage.StateDir, log)
	if err != nil {
		return nil, fmt.Errorf("state store: %w", err)
	}
	if c == nil {
		return store, nil
	}
	freshness := cfg.Market.Freshness
	if freshness <= 0 {
		freshness = 10 * time.Minute
	}
	return internalrepo.NewCachedStateStore(store, c, map[string]time.Duration{
		repository.StateFetchCache: freshness,
	}), nil
}

// ProvideHistoryStore creates the bounded per-asset price history.
func ProvideHistoryStore() *history.Store {
	return history.NewStore(history.DefaultCapacity)
}

// ProvideFetcher creates the resilient market data client.
func ProvideFetcher(cfg *config.Config, state repository.StateStore, m repository.Metrics, log *applogger.Logger) *marketdata.Client {
	opts := []marketdata.Option{}
	if cfg.Market.Freshness > 0 {
		opts = append(opts, marketdata.WithFreshness(cfg.Market.Freshness))
	}
	if cfg.Market.Timeout > 0 {
		opts = append(opts, marketdata.WithTimeout(cfg.Market.Timeout))
	}
	return marketdata.New(cfg.Market.BaseURL, cfg.Market.Currency, state, m, log, opts...)
}

// ProvideKafkaProducer creates a Kafka producer when the sink is enabled.
// Returns nil when Kafka is disabled in config.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideSnapshotPublisher wraps the Kafka producer as an analysis sink.
func ProvideSnapshotPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.SnapshotPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSnapshotPublisher(producer, cfg.Kafka.Topic)
}

// ProvideClickHouseClient creates a ClickHouse client when the archive is
// enabled. Returns nil when ClickHouse is disabled in config.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideSignalArchive wraps the ClickHouse client as a signal archive.
func ProvideSignalArchive(chClient *pkgch.Client, cfg *config.Config, log *applogger.Logger) repository.SignalArchive {
	if chClient == nil {
		return nil
	}
	return internalrepo.NewClickHouseSignalArchive(chClient, cfg.ClickHouse.Table, log)
}

// ProvideCache creates the layered response cache when Redis is enabled.
// Returns nil when Redis is disabled; the API layer then serves uncached.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	redisCache, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(redisCache), nil
}

// ProvideStreamHub creates the WebSocket broadcast hub.
func ProvideStreamHub(log *applogger.Logger) *api.StreamHub {
	return api.NewStreamHub(log)
}

// ProvideAnalyzer creates the analysis orchestrator with all optional sinks.
func ProvideAnalyzer(
	fetcher *marketdata.Client,
	hist *history.Store,
	state repository.StateStore,
	m repository.Metrics,
	log *applogger.Logger,
	publisher repository.SnapshotPublisher,
	archive repository.SignalArchive,
	hub *api.StreamHub,
	cfg *config.Config,
) *usecase.Analyzer {
	opts := []usecase.AnalyzerOption{
		usecase.WithAssetCount(cfg.Market.AssetCount),
		usecase.WithInterval(cfg.Market.Interval),
		usecase.OnPublish(hub.Broadcast),
	}
	if publisher != nil {
		opts = append(opts, usecase.WithPublisher(publisher))
	}
	if archive != nil {
		opts = append(opts, usecase.WithArchive(archive))
	}
	return usecase.NewAnalyzer(fetcher, hist, state, m, log, opts...)
}

// ProvideHandler creates the HTTP API handler.
func ProvideHandler(log *applogger.Logger, analyzer *usecase.Analyzer, archive repository.SignalArchive, c cache.Service) *api.AnalysisEchoHandler {
	return api.NewAnalysisEchoHandler(log, analyzer, archive, c)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	analyzer *usecase.Analyzer,
	fetcher *marketdata.Client,
	handler *api.AnalysisEchoHandler,
	hub *api.StreamHub,
	archive repository.SignalArchive,
	publisher repository.SnapshotPublisher,
	chClient *pkgch.Client,
) *server.App {
	return server.New(cfg, log, analyzer, fetcher, handler, hub, archive, publisher, chClient)
}
