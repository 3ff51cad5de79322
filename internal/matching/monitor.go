// internal/matching/monitor.go

package matching

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/imadgeboyega/kiekky-matching/internal/cache"
	"github.com/imadgeboyega/kiekky-matching/internal/config"
	"github.com/imadgeboyega/kiekky-matching/internal/profile"
)

// Health metric names, also used as alert metrics
const (
	MetricAvgQueryTime     = "avg_query_time"
	MetricCacheHitRate     = "cache_hit_rate"
	MetricMemory           = "memory_mb"
	MetricErrorRate        = "error_rate"
	MetricEngagement       = "engagement"
	MetricMatchSuccessRate = "match_success_rate"
)

// Snapshot is one collection of engine health figures. Rates are in [0, 1].
type Snapshot struct {
	TakenAt          time.Time     `json:"taken_at"`
	Operations       int64         `json:"operations"`
	AvgQueryTime     time.Duration `json:"avg_query_time_ns"`
	ErrorRate        float64       `json:"error_rate"`
	CacheHitRate     float64       `json:"cache_hit_rate"`
	CacheLookups     uint64        `json:"cache_lookups"`
	MemoryMB         float64       `json:"memory_mb"`
	Engagement       float64       `json:"engagement"`
	MatchSuccessRate float64       `json:"match_success_rate"`

	matches *Stats
}

// Monitor aggregates operation timings between collections and turns
// breached thresholds into persisted alerts
type Monitor struct {
	mu         sync.Mutex
	operations int64
	failures   int64
	elapsed    time.Duration
	lastHits   uint64
	lastMisses uint64
	last       *Snapshot

	thresholds config.AlertThresholds
	alerts     AlertRepository
	now        func() time.Time
}

func NewMonitor(thresholds config.AlertThresholds, alerts AlertRepository) *Monitor {
	return &Monitor{
		thresholds: thresholds,
		alerts:     alerts,
		now:        time.Now,
	}
}

// Track records one engine operation. Caller mistakes such as deciding
// twice do not count as failures.
func (m *Monitor) Track(operation string, start time.Time, err error) {
	elapsed := m.now().Sub(start)
	RecordOperation(operation, elapsed)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations++
	m.elapsed += elapsed
	if err != nil && !isCallerError(err) {
		m.failures++
	}
}

// Last returns the most recent snapshot, or nil before the first collection
func (m *Monitor) Last() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return nil
	}
	s := *m.last
	return &s
}

// Collect closes the current window, publishes the snapshot and stores an
// alert for every threshold it breaches
func (m *Monitor) Collect(ctx context.Context, matches *Stats, cacheStats cache.Stats) (*Snapshot, []*Alert, error) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	m.mu.Lock()
	snapshot := &Snapshot{
		TakenAt:    m.now().UTC(),
		Operations: m.operations,
		MemoryMB:   float64(mem.HeapAlloc) / (1024 * 1024),
		matches:    matches,
	}
	if m.operations > 0 {
		snapshot.AvgQueryTime = m.elapsed / time.Duration(m.operations)
		snapshot.ErrorRate = float64(m.failures) / float64(m.operations)
	}
	hits, misses := cacheStats.Hits, cacheStats.Misses
	if hits >= m.lastHits && misses >= m.lastMisses {
		hits, misses = hits-m.lastHits, misses-m.lastMisses
	}
	snapshot.CacheLookups = hits + misses
	if snapshot.CacheLookups > 0 {
		snapshot.CacheHitRate = float64(hits) / float64(snapshot.CacheLookups)
	}
	if matches != nil {
		if matches.Total > 0 {
			snapshot.Engagement = float64(matches.WithDecision) / float64(matches.Total)
		}
		if resolved := matches.MutualMatch + matches.Rejected + matches.Expired; resolved > 0 {
			snapshot.MatchSuccessRate = float64(matches.MutualMatch) / float64(resolved)
		}
	}

	m.operations, m.failures, m.elapsed = 0, 0, 0
	m.lastHits, m.lastMisses = cacheStats.Hits, cacheStats.Misses
	m.last = snapshot
	m.mu.Unlock()

	recordSnapshot(snapshot)

	alerts := m.evaluate(snapshot)
	for _, alert := range alerts {
		recordAlert(alert.Metric)
		log.Printf("⚠️  Performance alert: %s", alert.Message)
		if m.alerts == nil {
			continue
		}
		if err := m.alerts.CreateAlert(ctx, alert); err != nil {
			return snapshot, alerts, fmt.Errorf("store alert: %w", err)
		}
	}
	return snapshot, alerts, nil
}

func (m *Monitor) evaluate(s *Snapshot) []*Alert {
	var alerts []*Alert
	add := func(metric string, value, threshold float64, format string) {
		alerts = append(alerts, &Alert{
			ID:        uuid.NewString(),
			Metric:    metric,
			Value:     value,
			Threshold: threshold,
			Message:   fmt.Sprintf(format, value, threshold),
			CreatedAt: s.TakenAt,
		})
	}

	t := m.thresholds
	if s.Operations > 0 && t.MaxAvgQueryTime > 0 && s.AvgQueryTime > t.MaxAvgQueryTime {
		add(MetricAvgQueryTime, s.AvgQueryTime.Seconds()*1000, float64(t.MaxAvgQueryTime.Milliseconds()),
			"average query time %.0fms exceeds %.0fms")
	}
	if s.CacheLookups > 0 && s.CacheHitRate < t.MinCacheHitRate {
		add(MetricCacheHitRate, s.CacheHitRate, t.MinCacheHitRate, "cache hit rate %.2f below %.2f")
	}
	if t.MaxMemoryMB > 0 && s.MemoryMB > float64(t.MaxMemoryMB) {
		add(MetricMemory, s.MemoryMB, float64(t.MaxMemoryMB), "heap usage %.0fMB exceeds %.0fMB")
	}
	if s.Operations > 0 && s.ErrorRate > t.MaxErrorRate {
		add(MetricErrorRate, s.ErrorRate, t.MaxErrorRate, "error rate %.2f exceeds %.2f")
	}
	if s.matches != nil && s.matches.Total > 0 && s.Engagement < t.MinEngagement {
		add(MetricEngagement, s.Engagement, t.MinEngagement, "engagement %.2f below %.2f")
	}
	if s.matches != nil && s.matches.MutualMatch+s.matches.Rejected+s.matches.Expired > 0 &&
		s.MatchSuccessRate < t.MinMatchSuccessRate {
		add(MetricMatchSuccessRate, s.MatchSuccessRate, t.MinMatchSuccessRate, "match success rate %.2f below %.2f")
	}
	return alerts
}

var callerErrors = []error{
	profile.ErrProfileNotFound,
	profile.ErrProfileIncomplete,
	ErrMatchNotFound,
	ErrMatchNotActive,
	ErrMatchExpired,
	ErrNotParticipant,
	ErrInvalidDecision,
	ErrInvalidStatus,
	ErrAlreadyDecided,
	ErrSelfMatch,
}

func isCallerError(err error) bool {
	for _, target := range callerErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
