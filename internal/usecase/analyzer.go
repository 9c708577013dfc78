package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
	drepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/service/history"
	"MarketPulse/internal/services/indicators"
	"MarketPulse/internal/services/regime"
	"MarketPulse/internal/services/signals"
	applogger "MarketPulse/pkg/logger"
)

// ErrCycleRunning is returned when an on-demand run overlaps an active one.
var ErrCycleRunning = errors.New("analysis cycle already running")

const (
	defaultAssetCount = 100
	defaultInterval   = 5 * time.Minute
)

func htfChannelConfig() regime.Config {
	return regime.Config{
		Capacity:  10,
		Window:    10,
		Dominance: 0.6,
		Tolerance: 2,
		Floor: &regime.FloorRule{
			Qualify:    signals.HTFQualifyScore,
			MinCount:   3,
			CurrentMin: 4,
			Floor:      signals.HTFQualifyScore,
		},
	}
}

func segmentChannelConfig() regime.Config {
	return regime.Config{Capacity: 15, Window: 10, Dominance: 0.6, Tolerance: 3}
}

func cycleChannelConfig() regime.Config {
	return regime.Config{
		Capacity:  12,
		Window:    8,
		Dominance: 0.6,
		Tolerance: 2,
		Keys:      []string{"risk", "opportunity"},
	}
}

// Analyzer drives one analysis cycle at a time: fetch, history update,
// per-asset classification, channel stabilization, publication. It owns all
// mutable engine state; nothing else writes the history or the channels.
type Analyzer struct {
	source  drepo.SnapshotSource
	history *history.Store
	state   drepo.StateStore
	metrics drepo.Metrics
	log     *applogger.Logger

	publisher drepo.SnapshotPublisher
	archive   drepo.SignalArchive
	onPublish func(*models.Analysis)

	assetCount int
	interval   time.Duration

	run     sync.Mutex    // single-run-at-a-time guard
	trigger chan struct{} // coalesced on-demand run requests

	mu        sync.RWMutex
	htf       map[string]*regime.Channel
	segment   *regime.Channel
	cycle     *regime.Channel
	published *models.Analysis
	perAsset  map[string]models.AssetAnalysis

	now func() time.Time
}

// AnalyzerOption configures the Analyzer.
type AnalyzerOption func(*Analyzer)

// WithPublisher attaches an external snapshot sink.
func WithPublisher(p drepo.SnapshotPublisher) AnalyzerOption {
	return func(a *Analyzer) { a.publisher = p }
}

// WithArchive attaches a per-cycle signal archive.
func WithArchive(ar drepo.SignalArchive) AnalyzerOption {
	return func(a *Analyzer) { a.archive = ar }
}

// WithAssetCount sets how many top assets each cycle fetches.
func WithAssetCount(n int) AnalyzerOption {
	return func(a *Analyzer) {
		if n > 0 {
			a.assetCount = n
		}
	}
}

// WithInterval overrides the scheduler interval.
func WithInterval(d time.Duration) AnalyzerOption {
	return func(a *Analyzer) {
		if d > 0 {
			a.interval = d
		}
	}
}

// OnPublish registers a callback invoked with every published analysis.
func OnPublish(fn func(*models.Analysis)) AnalyzerOption {
	return func(a *Analyzer) { a.onPublish = fn }
}

// NewAnalyzer creates the orchestrator.
func NewAnalyzer(source drepo.SnapshotSource, hist *history.Store, state drepo.StateStore, metrics drepo.Metrics, log *applogger.Logger, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		source:     source,
		history:    hist,
		state:      state,
		metrics:    metrics,
		log:        log,
		assetCount: defaultAssetCount,
		interval:   defaultInterval,
		htf:        make(map[string]*regime.Channel),
		segment:    regime.NewChannel(segmentChannelConfig()),
		cycle:      regime.NewChannel(cycleChannelConfig()),
		perAsset:   make(map[string]models.AssetAnalysis),
		trigger:    make(chan struct{}, 1),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// LoadState restores persisted engine state. Missing or unreadable documents
// simply leave the corresponding state empty.
func (a *Analyzer) LoadState(ctx context.Context) {
	if a.state == nil {
		return
	}

	var prices map[string][]float64
	if ok, err := a.state.Load(ctx, drepo.StatePriceHistory, &prices); err != nil {
		a.log.Warn("price history restore failed", applogger.Error(err))
	} else if ok {
		a.history.Restore(prices)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var htf map[string][]models.RegimeObservation
	if ok, err := a.state.Load(ctx, drepo.StateHTFChannels, &htf); err != nil {
		a.log.Warn("htf channel restore failed", applogger.Error(err))
	} else if ok {
		for id, hist := range htf {
			ch := regime.NewChannel(htfChannelConfig())
			ch.Restore(hist)
			a.htf[id] = ch
		}
	}

	var seg []models.RegimeObservation
	if ok, err := a.state.Load(ctx, drepo.StateSegmentChannel, &seg); err != nil {
		a.log.Warn("segment channel restore failed", applogger.Error(err))
	} else if ok {
		a.segment.Restore(seg)
	}

	var cyc []models.RegimeObservation
	if ok, err := a.state.Load(ctx, drepo.StateCycleChannel, &cyc); err != nil {
		a.log.Warn("cycle channel restore failed", applogger.Error(err))
	} else if ok {
		a.cycle.Restore(cyc)
	}
}

// Start runs one immediate cycle and then the fixed-interval scheduler until
// ctx is cancelled.
func (a *Analyzer) Start(ctx context.Context) {
	if err := a.RunCycle(ctx); err != nil && !errors.Is(err, ErrCycleRunning) {
		a.log.Error("initial analysis cycle failed", applogger.Error(err))
	}

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.RunCycle(ctx); err != nil && !errors.Is(err, ErrCycleRunning) {
				a.log.Error("scheduled analysis cycle failed", applogger.Error(err))
			}
		case <-a.trigger:
			if err := a.RunCycle(ctx); err != nil && !errors.Is(err, ErrCycleRunning) {
				a.log.Error("on-demand analysis cycle failed", applogger.Error(err))
			}
		}
	}
}

// RequestRun schedules an on-demand cycle on the scheduler loop. Requests
// arriving while one is already pending coalesce into it; reports whether
// this call enqueued the run.
func (a *Analyzer) RequestRun() bool {
	select {
	case a.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// RunCycle performs one full analysis cycle. Overlapping calls return
// ErrCycleRunning instead of queueing; a panic inside the cycle is contained
// and logged, never propagated.
func (a *Analyzer) RunCycle(ctx context.Context) (err error) {
	if !a.run.TryLock() {
		return ErrCycleRunning
	}
	defer a.run.Unlock()

	start := a.now()
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("analysis cycle panicked", applogger.Any("panic", r))
			a.metrics.RecordError("panic")
			a.metrics.RecordCycle("panic", a.now().Sub(start).Seconds())
			err = nil // a failed cycle never propagates
		}
	}()

	assets := a.source.Fetch(ctx, a.assetCount)
	if len(assets) == 0 {
		a.publishDegraded(start)
		a.metrics.RecordCycle("degraded", a.now().Sub(start).Seconds())
		return nil
	}

	global, hasGlobal := a.source.FetchGlobal(ctx)

	analysis := a.analyze(start, assets, global, hasGlobal)
	a.publish(ctx, analysis)
	a.saveState(ctx)

	a.metrics.RecordAssetCount(len(assets))
	a.metrics.RecordCycle("ok", a.now().Sub(start).Seconds())
	return nil
}

// analyze runs the scoring pipeline over one fetched batch.
func (a *Analyzer) analyze(at time.Time, assets []models.AssetSnapshot, global models.GlobalSnapshot, hasGlobal bool) *models.Analysis {
	a.mu.Lock()
	defer a.mu.Unlock()

	var bullish, bearish, htf []models.ScoredSignal
	perAsset := make(map[string]models.AssetAnalysis, len(assets))

	for _, asset := range assets {
		a.history.Append(asset.ID, asset.Price)
		series := a.history.Series(asset.ID)

		ind := indicators.Compute(asset, series)
		bull := signals.ClassifyBullish(asset, series)
		bear := signals.ClassifyBearish(asset, series)
		long := signals.ClassifyHTF(asset, series)

		ch, ok := a.htf[asset.ID]
		if !ok {
			ch = regime.NewChannel(htfChannelConfig())
			a.htf[asset.ID] = ch
		}
		longState := ch.Observe(models.RegimeObservation{
			Time:    at,
			Label:   htfLabel(long.Score),
			Score:   long.Score,
			Reasons: long.Reasons,
		})

		perAsset[asset.ID] = models.AssetAnalysis{
			Asset:      asset,
			Indicators: ind,
			Bullish:    bull,
			Bearish:    bear,
			HTF:        longState,
		}

		if bull.Score > 0 {
			bullish = append(bullish, bull)
		}
		if bear.Score > 0 {
			bearish = append(bearish, bear)
		}
		if longState.Score >= signals.HTFQualifyScore {
			stabilized := long
			stabilized.Score = longState.Score
			htf = append(htf, stabilized)
		}
	}

	sortSignals(bullish)
	sortSignals(bearish)
	sortSignals(htf)

	segLabel, margin, segScores := scoreSegments(assets)
	segState := a.segment.Observe(models.RegimeObservation{
		Time:    at,
		Label:   segLabel,
		Score:   margin,
		Reasons: segmentReasons(segScores),
	})

	phase, risk, opportunity, reasons := classifyCycle(assets)
	if hasGlobal {
		reasons = append(reasons, globalReason(global))
	}
	cycleState := a.cycle.Observe(models.RegimeObservation{
		Time:    at,
		Label:   phase,
		Score:   risk,
		Metrics: map[string]float64{"risk": risk, "opportunity": opportunity},
		Reasons: reasons,
	})

	analysis := &models.Analysis{
		GeneratedAt: at,
		AssetCount:  len(assets),
		CyclePhase: models.CyclePhaseState{
			Phase:       cycleState.Label,
			Risk:        risk,
			Opportunity: opportunity,
			Stabilized:  cycleState.Stabilized,
			Stability:   cycleState.Stability,
		},
		Segment: models.DominantSegmentState{
			Label:      segState.Label,
			Margin:     margin,
			Segments:   segScores,
			Stabilized: segState.Stabilized,
			Stability:  segState.Stability,
		},
		Bullish: bullish,
		Bearish: bearish,
		HTF:     htf,
		Fetch:   a.source.Status(),
	}

	a.perAsset = perAsset
	a.published = analysis
	return analysis
}

// publishDegraded handles the zero-asset cycle: previously published
// analysis is kept untouched; only a first-ever cycle publishes a marked
// placeholder.
func (a *Analyzer) publishDegraded(at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.published != nil {
		a.log.Warn("cycle fetched no assets, keeping last analysis",
			applogger.String("generated_at", a.published.GeneratedAt.Format(time.RFC3339)))
		return
	}
	a.published = &models.Analysis{
		GeneratedAt: at,
		Degraded:    true,
		Fetch:       a.source.Status(),
	}
	a.log.Warn("first cycle fetched no assets, publishing degraded placeholder")
}

func (a *Analyzer) publish(ctx context.Context, analysis *models.Analysis) {
	for _, sig := range analysis.Bullish {
		a.metrics.RecordLastScore(string(sig.Kind), sig.Symbol, sig.Score)
	}
	for _, sig := range analysis.Bearish {
		a.metrics.RecordLastScore(string(sig.Kind), sig.Symbol, sig.Score)
	}
	for _, sig := range analysis.HTF {
		a.metrics.RecordLastScore(string(sig.Kind), sig.Symbol, sig.Score)
	}

	if a.archive != nil {
		all := make([]models.ScoredSignal, 0, len(analysis.Bullish)+len(analysis.Bearish)+len(analysis.HTF))
		all = append(all, analysis.Bullish...)
		all = append(all, analysis.Bearish...)
		all = append(all, analysis.HTF...)
		if err := a.archive.StoreBatch(ctx, analysis.GeneratedAt, all); err != nil {
			a.log.Error("signal archive write failed", applogger.Error(err))
			a.metrics.RecordError("archive")
		}
	}

	if a.publisher != nil {
		if err := a.publisher.Publish(ctx, analysis); err != nil {
			a.log.Error("analysis publication failed", applogger.Error(err))
			a.metrics.RecordError("publish")
		}
	}

	if a.onPublish != nil {
		a.onPublish(analysis)
	}
}

func (a *Analyzer) saveState(ctx context.Context) {
	if a.state == nil {
		return
	}

	a.mu.RLock()
	htf := make(map[string][]models.RegimeObservation, len(a.htf))
	for id, ch := range a.htf {
		htf[id] = ch.History()
	}
	seg := a.segment.History()
	cyc := a.cycle.History()
	a.mu.RUnlock()

	saves := []struct {
		key string
		v   interface{}
	}{
		{drepo.StatePriceHistory, a.history.Snapshot()},
		{drepo.StateHTFChannels, htf},
		{drepo.StateSegmentChannel, seg},
		{drepo.StateCycleChannel, cyc},
	}
	for _, s := range saves {
		if err := a.state.Save(ctx, s.key, s.v); err != nil {
			a.log.Warn("state save failed",
				applogger.String("key", s.key),
				applogger.Error(err))
		}
	}
}

// Analysis returns the last published analysis, or nil before the first
// cycle completes.
func (a *Analyzer) Analysis() *models.Analysis {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.published
}

// Asset returns the per-asset detail for the given id.
func (a *Analyzer) Asset(id string) (models.AssetAnalysis, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	aa, ok := a.perAsset[id]
	return aa, ok
}

// Status reports the fetcher's rate-limit state.
func (a *Analyzer) Status() models.FetchStatus {
	return a.source.Status()
}

// Movers returns the strongest gainers and losers of the last cycle over the
// given change window.
func (a *Analyzer) Movers(w drepo.ChangeWindow, top int) (gainers, losers []models.AssetSnapshot) {
	a.mu.RLock()
	all := make([]models.AssetSnapshot, 0, len(a.perAsset))
	for _, aa := range a.perAsset {
		all = append(all, aa.Asset)
	}
	a.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool {
		return windowChange(all[i], w) > windowChange(all[j], w)
	})
	if top > len(all) {
		top = len(all)
	}
	gainers = all[:top:top]
	losers = make([]models.AssetSnapshot, 0, top)
	for i := len(all) - 1; i >= len(all)-top; i-- {
		losers = append(losers, all[i])
	}
	return gainers, losers
}

func windowChange(s models.AssetSnapshot, w drepo.ChangeWindow) float64 {
	switch w {
	case drepo.Win1h:
		return s.Change1h
	case drepo.Win7d:
		return s.Change7d
	case drepo.Win30d:
		return s.Change30d
	default:
		return s.Change24h
	}
}

func sortSignals(list []models.ScoredSignal) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Score > list[j].Score
	})
}

func htfLabel(score float64) string {
	if score >= signals.HTFQualifyScore {
		return "candidate"
	}
	return "watch"
}

func segmentReasons(scores []models.SegmentScore) []string {
	out := make([]string, len(scores))
	for i, s := range scores {
		out[i] = segmentReason(s)
	}
	return out
}
