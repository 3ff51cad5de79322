package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_cache_lookups_total",
			Help: "Cache lookups by kind and result",
		},
		[]string{"kind", "result"},
	)

	evictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_cache_evictions_total",
			Help: "Cache entries removed by reason",
		},
		[]string{"reason"},
	)

	storeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_cache_store_errors_total",
			Help: "Cache backend failures, treated as misses",
		},
		[]string{"op"},
	)
)

func recordLookup(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	lookupsTotal.WithLabelValues(kind, result).Inc()
}

func recordEvictions(reason string, n int) {
	evictionsTotal.WithLabelValues(reason).Add(float64(n))
}

func recordStoreError(op string) {
	storeErrorsTotal.WithLabelValues(op).Inc()
}
