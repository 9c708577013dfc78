package api

import (
	"net/http"
	"time"

	models "MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/usecase"
	"MarketPulse/pkg/cache"
	xhttp "MarketPulse/pkg/http"
	xlogger "MarketPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

var analysisCacheKey = cache.GenerateKey("api", "analysis")

const analysisCacheTTL = 15 * time.Second

// AnalysisEchoHandler serves the published analysis over Echo.
type AnalysisEchoHandler struct {
	logger   *xlogger.Logger
	analyzer *usecase.Analyzer
	archive  domrepo.SignalArchive // nil when archival is disabled
	cache    cache.Service         // nil when response caching is disabled
}

func NewAnalysisEchoHandler(logger *xlogger.Logger, analyzer *usecase.Analyzer, archive domrepo.SignalArchive, c cache.Service) *AnalysisEchoHandler {
	return &AnalysisEchoHandler{logger: logger, analyzer: analyzer, archive: archive, cache: c}
}

func (h *AnalysisEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/analysis", h.Analysis)
	g.GET("/signals", h.Signals)
	g.GET("/movers", h.Movers)
	g.GET("/assets/:id", h.Asset)
	g.GET("/status", h.Status)
	g.POST("/refresh", h.Refresh)
	if h.archive != nil {
		g.GET("/archive", h.Archive)
	}
}

// Analysis returns the latest published snapshot, behind a short-TTL cache
// so dashboard polling does not hammer the analyzer lock.
func (h *AnalysisEchoHandler) Analysis(c echo.Context) error {
	ctx := c.Request().Context()

	if h.cache != nil {
		var cached models.Analysis
		if err := h.cache.Get(ctx, analysisCacheKey, &cached); err == nil {
			return xhttp.SuccessResponse(c, &cached)
		}
	}

	a := h.analyzer.Analysis()
	if a == nil {
		return xhttp.NotFoundResponse(c, xhttp.NotFoundError("no analysis published yet"))
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, analysisCacheKey, a, analysisCacheTTL); err != nil {
			h.logger.Warn("analysis response cache set failed", xlogger.Error(err))
		}
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, a)
}

// Signals returns one scored list (bullish, bearish or htf), truncated.
func (h *AnalysisEchoHandler) Signals(c echo.Context) error {
	req := &models.TopSignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	a := h.analyzer.Analysis()
	if a == nil {
		return xhttp.NotFoundResponse(c, xhttp.NotFoundError("no analysis published yet"))
	}

	var list []models.ScoredSignal
	switch models.SignalKind(req.Kind) {
	case models.SignalBearish:
		list = a.Bearish
	case models.SignalHTF:
		list = a.HTF
	default:
		list = a.Bullish
	}
	if len(list) > req.Top {
		list = list[:req.Top]
	}
	return xhttp.ListResponse(c, list, int64(len(list)))
}

// Movers returns the strongest gainers and losers over a change window.
func (h *AnalysisEchoHandler) Movers(c echo.Context) error {
	req := &models.MoversRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.analyzer.Analysis() == nil {
		return xhttp.NotFoundResponse(c, xhttp.NotFoundError("no analysis published yet"))
	}

	window := domrepo.NormalizeWindow(req.Window)
	gainers, losers := h.analyzer.Movers(window, req.Top)
	return xhttp.SuccessResponse(c, &models.MoversResponse{
		Window:  string(window),
		Gainers: gainers,
		Losers:  losers,
	})
}

// Asset returns the per-asset detail view.
func (h *AnalysisEchoHandler) Asset(c echo.Context) error {
	req := &models.AssetRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	aa, ok := h.analyzer.Asset(req.ID)
	if !ok {
		return xhttp.NotFoundResponse(c, xhttp.NotFoundErrorf("asset %q not analyzed", req.ID))
	}
	return xhttp.SuccessResponse(c, aa)
}

// Status reports fetcher rate-limit state and provenance.
func (h *AnalysisEchoHandler) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.analyzer.Status())
}

// Refresh triggers an on-demand cycle. The request is handed to the
// scheduler loop; a request arriving while one is already queued coalesces
// with it.
func (h *AnalysisEchoHandler) Refresh(c echo.Context) error {
	status := "triggered"
	if !h.analyzer.RequestRun() {
		status = "already_pending"
	}
	if h.cache != nil {
		_ = h.cache.Delete(c.Request().Context(), analysisCacheKey)
	}
	return xhttp.DataResponse(c, http.StatusAccepted, map[string]string{"status": status})
}

// Archive queries historical scored signals from the archive store.
func (h *AnalysisEchoHandler) Archive(c echo.Context) error {
	req := &models.ArchiveRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	to := time.Now()
	from := to.Add(-24 * time.Hour)
	if req.From != "" {
		t, ok := xhttp.ParseTime(req.From)
		if !ok {
			return xhttp.BadRequestResponse(c, xhttp.BadRequestError("from must be RFC3339 or unix seconds"))
		}
		from = t
	}
	if req.To != "" {
		t, ok := xhttp.ParseTime(req.To)
		if !ok {
			return xhttp.BadRequestResponse(c, xhttp.BadRequestError("to must be RFC3339 or unix seconds"))
		}
		to = t
	}

	rows, err := h.archive.Query(c.Request().Context(), req.Symbol, models.SignalKind(req.Kind), from, to, req.Limit)
	if err != nil {
		h.logger.Error("archive query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}
