package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	drepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/handler/api"
	"MarketPulse/internal/service/marketdata"
	"MarketPulse/internal/usecase"
	pkgch "MarketPulse/pkg/clickhouse"
	"MarketPulse/pkg/config"
	xhttp "MarketPulse/pkg/http"
	applogger "MarketPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg      *config.Config
	log      *applogger.Logger
	analyzer *usecase.Analyzer
	fetcher  *marketdata.Client
	handler  *api.AnalysisEchoHandler
	hub      *api.StreamHub

	archive   drepo.SignalArchive     // nil when disabled
	publisher drepo.SnapshotPublisher // nil when disabled
	chClient  *pkgch.Client           // nil when disabled

	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	analyzer *usecase.Analyzer,
	fetcher *marketdata.Client,
	handler *api.AnalysisEchoHandler,
	hub *api.StreamHub,
	archive drepo.SignalArchive,
	publisher drepo.SnapshotPublisher,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		analyzer:  analyzer,
		fetcher:   fetcher,
		handler:   handler,
		hub:       hub,
		archive:   archive,
		publisher: publisher,
		chClient:  chClient,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.fetcher.RestoreCache(ctx)
	a.analyzer.LoadState(ctx)

	// Repeated error lines ride the snapshot producer, aggregated, on a
	// side topic.
	if sink, ok := a.publisher.(applogger.Publisher); ok {
		a.log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          a.cfg.Kafka.Topic + ".logs",
			Publisher:      sink,
		})
	}

	if a.archive != nil {
		if err := a.archive.Init(ctx); err != nil {
			a.log.Error("signal archive init failed", applogger.Error(err))
		}
	}

	a.httpServer = xhttp.NewServer(a,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	go a.analyzer.Start(ctx)
	a.log.Info("analysis scheduler started",
		applogger.Duration("interval", a.cfg.Market.Interval),
		applogger.Int("assets", a.cfg.Market.AssetCount))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel() // stops the scheduler; an in-flight cycle finishes on its own
	return a.shutdown()
}

// RegisterRoutes wires the API surface onto the Echo server.
func (a *App) RegisterRoutes(e *echo.Echo) {
	a.handler.RegisterRoutes(e)
	a.hub.RegisterRoutes(e)
	e.GET("/healthz", a.health)
}

func (a *App) health(c echo.Context) error {
	components := map[string]string{"engine": "ok"}
	if a.analyzer.Analysis() == nil {
		components["engine"] = "warming_up"
	}
	if a.archive != nil {
		components["archive"] = "ok"
		if err := a.archive.Health(c.Request().Context()); err != nil {
			components["archive"] = "unreachable"
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"components":     components,
		"stream_clients": a.hub.ClientCount(),
	})
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	a.hub.Close()
	a.log.RemoveCollector()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("publisher close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
