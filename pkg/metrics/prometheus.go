package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	cycles        *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
	fetchAttempts *prometheus.CounterVec
	fetchOutcomes *prometheus.CounterVec
	rateLimited   prometheus.Gauge
	assetCount    prometheus.Gauge
	errorsTotal   *prometheus.CounterVec
	lastScore     *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		cycles: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_cycles_total",
				Help: "Analysis cycles by terminal status",
			},
			[]string{"status"},
		),
		cycleDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketpulse_cycle_duration_seconds",
				Help:    "Duration of analysis cycles in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		fetchAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_fetch_attempts_total",
				Help: "Upstream fetch attempts by endpoint key",
			},
			[]string{"key"},
		),
		fetchOutcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_fetch_outcomes_total",
				Help: "Terminal fetch outcomes by endpoint key",
			},
			[]string{"key", "outcome"},
		),
		rateLimited: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "marketpulse_rate_limited",
				Help: "1 while the fetcher is throttled, 0 otherwise",
			},
		),
		assetCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "marketpulse_assets_analyzed",
				Help: "Assets analyzed in the last completed cycle",
			},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastScore: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketpulse_last_signal_score",
				Help: "Last published score per signal kind and symbol",
			},
			[]string{"kind", "symbol"},
		),
	}
}

// RecordCycle records one finished analysis cycle.
func (r *Recorder) RecordCycle(status string, seconds float64) {
	r.cycles.WithLabelValues(status).Inc()
	r.cycleDuration.WithLabelValues(status).Observe(seconds)
}

// RecordFetchAttempt counts one upstream request attempt.
func (r *Recorder) RecordFetchAttempt(key string) {
	r.fetchAttempts.WithLabelValues(key).Inc()
}

// RecordFetchOutcome counts the terminal outcome of one fetch call.
func (r *Recorder) RecordFetchOutcome(key, outcome string) {
	r.fetchOutcomes.WithLabelValues(key, outcome).Inc()
}

// RecordRateLimited tracks the throttle state.
func (r *Recorder) RecordRateLimited(limited bool) {
	if limited {
		r.rateLimited.Set(1)
		return
	}
	r.rateLimited.Set(0)
}

// RecordAssetCount tracks the size of the analyzed universe.
func (r *Recorder) RecordAssetCount(n int) {
	r.assetCount.Set(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastScore records the last published score for a signal.
func (r *Recorder) RecordLastScore(kind, symbol string, score float64) {
	r.lastScore.WithLabelValues(kind, symbol).Set(score)
}
