// Package metrics provides Prometheus metrics for the sync pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wavewarz"

// Metrics holds all sync pipeline metrics. A nil *Metrics records nothing.
type Metrics struct {
	RunsTotal        *prometheus.CounterVec
	BattlesSynced    prometheus.Counter
	LedgerRoundTrips prometheus.Counter
	DecodeFailures   prometheus.Counter
	StaleRunsFailed  prometheus.Counter
	LockContention   prometheus.Counter

	RunDuration prometheus.Histogram

	LastSuccessTimestamp prometheus.Gauge
	CachedBattles        prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers the pipeline metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Sync runs by outcome",
		},
		[]string{"outcome"}, // "no_work", "synced", "partial", "failed"
	)
	m.BattlesSynced = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "battles_synced_total",
		Help:      "Battles written to the cache",
	})
	m.LedgerRoundTrips = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_round_trips_total",
		Help:      "Solana getMultipleAccounts round trips",
	})
	m.DecodeFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_decode_failures_total",
		Help:      "Battle accounts that could not be decoded",
	})
	m.StaleRunsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stale_runs_failed_total",
		Help:      "Abandoned in_progress runs marked failed by the sweeper",
	})
	m.LockContention = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sync_lock_contention_total",
		Help:      "Sync triggers rejected because a run was in progress",
	})
	m.RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sync_run_duration_seconds",
		Help:      "Wall time of a sync run",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
	})
	m.LastSuccessTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_successful_sync_timestamp_seconds",
		Help:      "Unix time of the last successful sync run",
	})
	m.CachedBattles = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cached_battles",
		Help:      "Battles currently in the cache",
	})

	m.registry.MustRegister(
		m.RunsTotal,
		m.BattlesSynced,
		m.LedgerRoundTrips,
		m.DecodeFailures,
		m.StaleRunsFailed,
		m.LockContention,
		m.RunDuration,
		m.LastSuccessTimestamp,
		m.CachedBattles,
	)
	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Handler returns an HTTP handler for metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRun records the outcome of one sync run.
func (m *Metrics) RecordRun(outcome string, success bool, synced, roundTrips, decodeFailures int, duration time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.BattlesSynced.Add(float64(synced))
	m.LedgerRoundTrips.Add(float64(roundTrips))
	m.DecodeFailures.Add(float64(decodeFailures))
	m.RunDuration.Observe(duration.Seconds())
	if success {
		m.LastSuccessTimestamp.SetToCurrentTime()
	}
}

// RecordStaleRuns records runs failed by the stale run sweeper.
func (m *Metrics) RecordStaleRuns(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.StaleRunsFailed.Add(float64(n))
}

// RecordLockContention records a rejected sync trigger.
func (m *Metrics) RecordLockContention() {
	if m == nil {
		return
	}
	m.LockContention.Inc()
}

// SetCachedBattles sets the cache size gauge.
func (m *Metrics) SetCachedBattles(n int64) {
	if m == nil {
		return
	}
	m.CachedBattles.Set(float64(n))
}
