package matching

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/kiekky-matching/internal/cache"
	"github.com/imadgeboyega/kiekky-matching/internal/config"
)

var testMaintenance = config.MaintenanceConfig{
	PrecomputeInterval: 30 * time.Minute,
	PrecomputeBatch:    10,
	PrecomputeBudget:   time.Hour,
	CacheSweepInterval: 5 * time.Minute,
	MatchSweepInterval: time.Minute,
	MetricsInterval:    time.Minute,
	TaskTimeout:        30 * time.Second,
}

// steppingClock advances by step on every reading
type steppingClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func TestMaintainerTasks(t *testing.T) {
	te := newTestEngine(t, nil)
	m := NewMaintainer(te.Engine, testMaintenance, 7*24*time.Hour)

	tasks := m.Tasks()
	names := make([]string, 0, len(tasks))
	for _, task := range tasks {
		names = append(names, task.Name)
		assert.Positive(t, task.Interval, task.Name)
		assert.Equal(t, testMaintenance.TaskTimeout, task.Timeout, task.Name)
		assert.NoError(t, task.Run(context.Background()), task.Name)
	}
	assert.Equal(t, []string{"precompute_scores", "sweep_cache", "sweep_matches", "collect_metrics"}, names)
}

func TestPrecomputeScores(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, nil)
	saveProfiles(t, te.profiles,
		newProfile(1, 30, "female", "Lagos", "music"),
		newProfile(2, 31, "male", "Lagos", "music"),
		newProfile(3, 29, "male", "Abuja", "chess"),
		newProfile(4, 35, "non-binary", "Lagos", "hiking"),
	)
	m := NewMaintainer(te.Engine, testMaintenance, 7*24*time.Hour)

	n, err := m.PrecomputeScores(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, n, "every pair of four users")
	assert.True(t, te.cache.HasCompatibility(ctx, 4, 1))

	n, err = m.PrecomputeScores(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "cached pairs are skipped")
}

func TestPrecomputeScoresStopsAtBudget(t *testing.T) {
	te := newTestEngine(t, nil)
	saveProfiles(t, te.profiles,
		newProfile(1, 30, "female", "Lagos", "music"),
		newProfile(2, 31, "male", "Lagos", "music"),
		newProfile(3, 29, "male", "Abuja", "chess"),
		newProfile(4, 35, "non-binary", "Lagos", "hiking"),
	)
	cfg := testMaintenance
	cfg.PrecomputeBudget = 2500 * time.Millisecond
	m := NewMaintainer(te.Engine, cfg, 7*24*time.Hour)
	clock := &steppingClock{now: time.Now(), step: time.Second}
	m.now = clock.Now

	n, err := m.PrecomputeScores(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPrecomputeScoresNeedsTwoUsers(t *testing.T) {
	te := newTestEngine(t, nil)
	saveProfiles(t, te.profiles, newProfile(1, 30, "female", "Lagos", "music"))
	m := NewMaintainer(te.Engine, testMaintenance, 7*24*time.Hour)

	n, err := m.PrecomputeScores(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, te.profiles.CallCount("GetProfiles"))
}

func TestSweepCache(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, nil)
	clock := time.Now()
	te.cache = cache.New(cache.NewMemoryStoreWithClock(func() time.Time { return clock }), cache.TTLs{Compatibility: time.Minute})
	te.cache.SetCompatibility(ctx, 1, 2, testResult)
	te.cache.SetCompatibility(ctx, 1, 3, testResult)
	m := NewMaintainer(te.Engine, testMaintenance, 7*24*time.Hour)

	n, err := m.SweepCache(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	clock = clock.Add(2 * time.Minute)
	n, err = m.SweepCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSweepMatches(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, nil)
	m := NewMaintainer(te.Engine, testMaintenance, 7*24*time.Hour)

	te.lifecycle.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	_, err := te.lifecycle.Create(ctx, 1, 2, testResult)
	require.NoError(t, err)
	te.lifecycle.now = time.Now
	_, err = te.lifecycle.Create(ctx, 3, 4, testResult)
	require.NoError(t, err)

	n, err := m.SweepMatches(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats, err := te.matches.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Expired)
	assert.Equal(t, 1, stats.Pending)
}

func TestCollectMetricsStoresAlerts(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, nil)
	te.monitor = NewMonitor(config.AlertThresholds{MinMatchSuccessRate: 0.5}, te.alerts)
	m := NewMaintainer(te.Engine, testMaintenance, 7*24*time.Hour)

	for _, pair := range [][2]int64{{1, 2}, {3, 4}} {
		match, err := te.lifecycle.Create(ctx, pair[0], pair[1], testResult)
		require.NoError(t, err)
		_, err = te.lifecycle.Decide(ctx, match.ID, pair[0], DecisionRejected)
		require.NoError(t, err)
		_, err = te.lifecycle.Decide(ctx, match.ID, pair[1], DecisionAccepted)
		require.NoError(t, err)
	}

	snapshot, err := m.CollectMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, snapshot.Engagement)
	assert.Zero(t, snapshot.MatchSuccessRate)

	alerts, err := te.alerts.GetRecentAlerts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, MetricMatchSuccessRate, alerts[0].Metric)
	assert.Equal(t, 0.5, alerts[0].Threshold)

	stats, err := te.Stats(ctx)
	require.NoError(t, err)
	require.NotNil(t, stats.Health)
	assert.Len(t, stats.Alerts, 1)
}
