// internal/matching/maintenance.go

package matching

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/imadgeboyega/kiekky-matching/internal/config"
	"github.com/imadgeboyega/kiekky-matching/internal/scheduler"
)

// Maintainer holds the engine's periodic background work
type Maintainer struct {
	engine       *Engine
	cfg          config.MaintenanceConfig
	activeWindow time.Duration
	now          func() time.Time
}

func NewMaintainer(engine *Engine, cfg config.MaintenanceConfig, activeWindow time.Duration) *Maintainer {
	return &Maintainer{
		engine:       engine,
		cfg:          cfg,
		activeWindow: activeWindow,
		now:          time.Now,
	}
}

// Tasks returns the maintenance jobs for a scheduler.Supervisor
func (m *Maintainer) Tasks() []scheduler.Task {
	return []scheduler.Task{
		{
			Name:     "precompute_scores",
			Interval: m.cfg.PrecomputeInterval,
			Timeout:  m.cfg.TaskTimeout,
			Run: func(ctx context.Context) error {
				_, err := m.PrecomputeScores(ctx)
				return err
			},
		},
		{
			Name:     "sweep_cache",
			Interval: m.cfg.CacheSweepInterval,
			Timeout:  m.cfg.TaskTimeout,
			Run: func(ctx context.Context) error {
				_, err := m.SweepCache(ctx)
				return err
			},
		},
		{
			Name:     "sweep_matches",
			Interval: m.cfg.MatchSweepInterval,
			Timeout:  m.cfg.TaskTimeout,
			Run: func(ctx context.Context) error {
				_, err := m.SweepMatches(ctx)
				return err
			},
		},
		{
			Name:     "collect_metrics",
			Interval: m.cfg.MetricsInterval,
			Timeout:  m.cfg.TaskTimeout,
			Run: func(ctx context.Context) error {
				_, err := m.CollectMetrics(ctx)
				return err
			},
		},
	}
}

// PrecomputeScores warms the cache with pairwise scores among recently
// active users. It stops once the wall-clock budget is spent and reports
// how many pairs it scored.
func (m *Maintainer) PrecomputeScores(ctx context.Context) (int, error) {
	start := m.now()
	deadline := start.Add(m.cfg.PrecomputeBudget)

	ids, err := m.engine.profiles.RecentlyActiveUserIDs(ctx, start.Add(-m.activeWindow), m.cfg.PrecomputeBatch)
	if err != nil {
		return 0, fmt.Errorf("load active users: %w", err)
	}
	if len(ids) < 2 {
		return 0, nil
	}

	profiles, err := m.engine.profiles.GetProfiles(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("load profiles: %w", err)
	}

	computed := 0
	defer func() { RecordPrecomputed(computed) }()

	for i := 0; i < len(profiles); i++ {
		for j := i + 1; j < len(profiles); j++ {
			if ctx.Err() != nil || !m.now().Before(deadline) {
				log.Printf("Precompute stopped after %d scores: budget of %v spent", computed, m.cfg.PrecomputeBudget)
				return computed, nil
			}
			a, b := profiles[i], profiles[j]
			if m.engine.cache.HasCompatibility(ctx, a.UserID, b.UserID) {
				continue
			}
			m.engine.cache.SetCompatibility(ctx, a.UserID, b.UserID, m.engine.scorer.Score(a, b))
			computed++
		}
	}

	log.Printf("Precomputed %d scores for %d active users in %v", computed, len(profiles), m.now().Sub(start))
	return computed, nil
}

// SweepCache evicts expired cache entries
func (m *Maintainer) SweepCache(ctx context.Context) (int, error) {
	n, err := m.engine.cache.Sweep(ctx)
	if err != nil {
		return 0, fmt.Errorf("sweep cache: %w", err)
	}
	if n > 0 {
		log.Printf("Cache sweep evicted %d entries", n)
	}
	return n, nil
}

// SweepMatches expires pending matches past their deadline
func (m *Maintainer) SweepMatches(ctx context.Context) (int, error) {
	n, err := m.engine.lifecycle.SweepExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("sweep matches: %w", err)
	}
	if n > 0 {
		log.Printf("Expired %d pending matches", n)
	}
	return n, nil
}

// CollectMetrics snapshots engine health and stores alerts for breaches
func (m *Maintainer) CollectMetrics(ctx context.Context) (*Snapshot, error) {
	stats, err := m.engine.matches.GetStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("match stats: %w", err)
	}

	snapshot, _, err := m.engine.monitor.Collect(ctx, stats, m.engine.cache.Stats(ctx))
	return snapshot, err
}
