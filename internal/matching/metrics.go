package matching

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	findRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_find_requests_total",
			Help: "Total number of find-match requests by outcome",
		},
		[]string{"result"},
	)

	matchesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_matches_created_total",
			Help: "Total number of matches created",
		},
	)

	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_decisions_total",
			Help: "Total number of recorded decisions",
		},
		[]string{"decision"},
	)

	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_transitions_total",
			Help: "Total number of matches reaching a final status",
		},
		[]string{"status"},
	)

	compatibilityScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matching_compatibility_scores",
			Help:    "Distribution of compatibility scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	candidatesConsidered = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matching_candidates_considered",
			Help:    "Candidates surviving the filter per request",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 200, 500},
		},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "matching_operation_duration_seconds",
			Help: "Duration of engine operations",
		},
		[]string{"operation"},
	)

	precomputedScores = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_precomputed_scores_total",
			Help: "Total number of scores computed ahead of demand",
		},
	)

	healthGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "matching_health",
			Help: "Last collected health snapshot by metric",
		},
		[]string{"metric"},
	)

	alertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_alerts_total",
			Help: "Total number of threshold breaches",
		},
		[]string{"metric"},
	)
)

func RecordFindResult(result string) {
	findRequestsTotal.WithLabelValues(result).Inc()
}

func RecordMatchCreated(score int) {
	matchesCreated.Inc()
	compatibilityScores.Observe(float64(score))
}

func RecordDecision(decision Decision) {
	decisionsTotal.WithLabelValues(string(decision)).Inc()
}

func RecordTransition(status Status, n int) {
	if n > 0 {
		transitionsTotal.WithLabelValues(string(status)).Add(float64(n))
	}
}

func RecordCandidates(n int) {
	candidatesConsidered.Observe(float64(n))
}

func RecordOperation(operation string, duration time.Duration) {
	operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func RecordPrecomputed(n int) {
	precomputedScores.Add(float64(n))
}

func recordSnapshot(s *Snapshot) {
	healthGauge.WithLabelValues(MetricAvgQueryTime).Set(s.AvgQueryTime.Seconds())
	healthGauge.WithLabelValues(MetricCacheHitRate).Set(s.CacheHitRate)
	healthGauge.WithLabelValues(MetricMemory).Set(s.MemoryMB)
	healthGauge.WithLabelValues(MetricErrorRate).Set(s.ErrorRate)
	healthGauge.WithLabelValues(MetricEngagement).Set(s.Engagement)
	healthGauge.WithLabelValues(MetricMatchSuccessRate).Set(s.MatchSuccessRate)
}

func recordAlert(metric string) {
	alertsTotal.WithLabelValues(metric).Inc()
}
