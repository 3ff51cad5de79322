package matching

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/kiekky-matching/internal/common/database/dbtest"
)

func newStoredMatch(a, b int64, createdAt time.Time) *Match {
	return &Match{
		ID:            uuid.NewString(),
		User1ID:       a,
		User2ID:       b,
		Score:         64,
		Reasons:       Reasons{"You both enjoy music"},
		Breakdown:     Breakdown{CategoryInterests: 10, CategoryAge: 20},
		User1Decision: DecisionPending,
		User2Decision: DecisionPending,
		Status:        StatusPending,
		Version:       1,
		CreatedAt:     createdAt,
		ExpiresAt:     createdAt.Add(24 * time.Hour),
	}
}

func TestIntegration_PostgresRepository(t *testing.T) {
	db := dbtest.StartPostgres(t)
	repo := NewPostgresRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	first := newStoredMatch(1, 2, now.Add(-48*time.Hour))
	second := newStoredMatch(1, 3, now)
	third := newStoredMatch(2, 3, now.Add(-time.Hour))
	for _, m := range []*Match{first, second, third} {
		require.NoError(t, repo.CreateMatch(ctx, m))
	}

	t.Run("pair is unique", func(t *testing.T) {
		err := repo.CreateMatch(ctx, newStoredMatch(1, 2, now))
		assert.ErrorIs(t, err, ErrMatchExists)
	})

	t.Run("get match", func(t *testing.T) {
		got, err := repo.GetMatch(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.User1ID)
		assert.Equal(t, int64(3), got.User2ID)
		assert.Equal(t, second.Reasons, got.Reasons)
		assert.Equal(t, second.Breakdown, got.Breakdown)
		assert.Equal(t, 1, got.Version)
		assert.WithinDuration(t, second.ExpiresAt, got.ExpiresAt, time.Second)
		assert.Nil(t, got.CompletedAt)

		_, err = repo.GetMatch(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrMatchNotFound)

		_, err = repo.GetMatch(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, ErrMatchNotFound)
	})

	t.Run("update checks version", func(t *testing.T) {
		current, err := repo.GetMatch(ctx, third.ID)
		require.NoError(t, err)
		stale := current.Clone()

		current.User1Decision = DecisionAccepted
		require.NoError(t, repo.UpdateMatch(ctx, current))
		assert.Equal(t, 2, current.Version)

		stale.User2Decision = DecisionRejected
		assert.ErrorIs(t, repo.UpdateMatch(ctx, stale), ErrConcurrentUpdate)

		got, err := repo.GetMatch(ctx, third.ID)
		require.NoError(t, err)
		assert.Equal(t, DecisionAccepted, got.User1Decision)
		assert.Equal(t, DecisionPending, got.User2Decision)
	})

	t.Run("user matches and partners", func(t *testing.T) {
		all, err := repo.GetUserMatches(ctx, 1, "")
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, second.ID, all[0].ID, "newest first")

		partners, err := repo.PartnerIDs(ctx, 3)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{1, 2}, partners)

		none, err := repo.GetUserMatches(ctx, 1, StatusMutualMatch)
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("expire pending", func(t *testing.T) {
		n, err := repo.ExpirePending(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := repo.GetMatch(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusExpired, got.Status)
		assert.Equal(t, 2, got.Version)
		require.NotNil(t, got.CompletedAt)

		n, err = repo.ExpirePending(ctx, now)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("stats", func(t *testing.T) {
		stats, err := repo.GetStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, &Stats{Total: 3, Pending: 2, Expired: 1, WithDecision: 1}, stats)
	})
}

func TestIntegration_PostgresAlertRepository(t *testing.T) {
	db := dbtest.StartPostgres(t)
	repo := NewPostgresAlertRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	for i, metric := range []string{MetricErrorRate, MetricCacheHitRate} {
		require.NoError(t, repo.CreateAlert(ctx, &Alert{
			ID:        uuid.NewString(),
			Metric:    metric,
			Value:     0.1,
			Threshold: 0.5,
			Message:   metric + " breached",
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
		}))
	}

	alerts, err := repo.GetRecentAlerts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, MetricCacheHitRate, alerts[0].Metric)
}
