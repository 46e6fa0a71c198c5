package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments exported by a running review
// service. One Metrics is created per process and threaded through the
// orchestrator, executor, and cache layers so everything reports to the
// same registry.
type Metrics struct {
	registry *prometheus.Registry

	reviewsTotal   *prometheus.CounterVec
	reviewDuration *prometheus.HistogramVec
	findingsTotal  *prometheus.CounterVec

	providerCallsTotal   *prometheus.CounterVec
	providerCallDuration *prometheus.HistogramVec
	providerCostTotal    *prometheus.CounterVec
	providerTokensTotal  *prometheus.CounterVec

	cacheHitsTotal   *prometheus.CounterVec
	cacheMissesTotal *prometheus.CounterVec

	skippedTotal *prometheus.CounterVec
}

// durationBuckets covers sub-second tool calls up through multi-minute
// batched reviews.
var durationBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300}

// NewMetrics builds and registers a fresh metrics set against a new
// registry. Each call is independent, which keeps tests from colliding
// over the global default registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		reviewsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewd_reviews_total",
			Help: "Total reviews completed, by outcome.",
		}, []string{"outcome"}),
		reviewDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reviewd_review_duration_seconds",
			Help:    "Wall-clock duration of a full review run.",
			Buckets: durationBuckets,
		}, []string{"intensity"}),
		findingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewd_findings_total",
			Help: "Findings reported, by severity and category.",
		}, []string{"severity", "category"}),
		providerCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewd_provider_calls_total",
			Help: "LLM provider calls, by provider and status.",
		}, []string{"provider", "status"}),
		providerCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reviewd_provider_call_duration_seconds",
			Help:    "Duration of a single provider call.",
			Buckets: durationBuckets,
		}, []string{"provider"}),
		providerCostTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewd_provider_cost_usd_total",
			Help: "Cumulative spend per provider in USD.",
		}, []string{"provider"}),
		providerTokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewd_provider_tokens_total",
			Help: "Tokens consumed per provider, by direction.",
		}, []string{"provider", "direction"}),
		cacheHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewd_cache_hits_total",
			Help: "Cache hits, by cache name.",
		}, []string{"cache"}),
		cacheMissesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewd_cache_misses_total",
			Help: "Cache misses, by cache name.",
		}, []string{"cache"}),
		skippedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewd_skipped_reviews_total",
			Help: "PRs skipped before any LLM dispatch, by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		m.reviewsTotal, m.reviewDuration, m.findingsTotal,
		m.providerCallsTotal, m.providerCallDuration, m.providerCostTotal, m.providerTokensTotal,
		m.cacheHitsTotal, m.cacheMissesTotal, m.skippedTotal,
	)

	return m
}

// Registry returns the underlying Prometheus registry for exposition.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordReview records a completed review's outcome and duration.
func (m *Metrics) RecordReview(outcome, intensity string, d time.Duration) {
	m.reviewsTotal.WithLabelValues(outcome).Inc()
	m.reviewDuration.WithLabelValues(intensity).Observe(d.Seconds())
}

// RecordFinding records a single reported finding.
func (m *Metrics) RecordFinding(severity, category string) {
	m.findingsTotal.WithLabelValues(severity, category).Inc()
}

// RecordProviderCall records one provider call's outcome, latency, cost and tokens.
func (m *Metrics) RecordProviderCall(provider, status string, d time.Duration, cost float64, tokensIn, tokensOut int) {
	m.providerCallsTotal.WithLabelValues(provider, status).Inc()
	m.providerCallDuration.WithLabelValues(provider).Observe(d.Seconds())
	m.providerCostTotal.WithLabelValues(provider).Add(cost)
	m.providerTokensTotal.WithLabelValues(provider, "in").Add(float64(tokensIn))
	m.providerTokensTotal.WithLabelValues(provider, "out").Add(float64(tokensOut))
}

// RecordCacheHit records a cache hit for the named cache (graph, incremental, result).
func (m *Metrics) RecordCacheHit(cache string) {
	m.cacheHitsTotal.WithLabelValues(cache).Inc()
}

// RecordCacheMiss records a cache miss for the named cache.
func (m *Metrics) RecordCacheMiss(cache string) {
	m.cacheMissesTotal.WithLabelValues(cache).Inc()
}

// RecordSkip records a PR skipped before dispatch, tagged with the skip reason.
func (m *Metrics) RecordSkip(reason string) {
	m.skippedTotal.WithLabelValues(reason).Inc()
}
