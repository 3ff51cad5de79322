package matching

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu      sync.Mutex
	created []*Match
	mutual  []*Match
	err     error
}

func (n *recordingNotifier) MatchCreated(ctx context.Context, match *Match) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, match.Clone())
	return n.err
}

func (n *recordingNotifier) MutualMatch(ctx context.Context, match *Match) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.mutual = append(n.mutual, match.Clone())
	return n.err
}

func (n *recordingNotifier) counts() (created, mutual int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.created), len(n.mutual)
}

var testResult = &CompatibilityResult{
	Score:     72,
	Tier:      TierGood,
	Reasons:   Reasons{"You both enjoy music"},
	Breakdown: Breakdown{CategoryInterests: 10},
}

func newTestLifecycle(clock time.Time) (*Lifecycle, *MemoryRepository, *recordingNotifier) {
	repo := NewMemoryRepository()
	notifier := &recordingNotifier{}
	l := NewLifecycle(repo, notifier, 24*time.Hour)
	l.now = func() time.Time { return clock }
	return l, repo, notifier
}

func TestLifecycleCreate(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l, repo, notifier := newTestLifecycle(clock)

	match, err := l.Create(ctx, 9, 4, testResult)
	require.NoError(t, err)

	assert.Equal(t, int64(4), match.User1ID)
	assert.Equal(t, int64(9), match.User2ID)
	assert.Equal(t, StatusPending, match.Status)
	assert.Equal(t, DecisionPending, match.User1Decision)
	assert.Equal(t, DecisionPending, match.User2Decision)
	assert.Equal(t, 72, match.Score)
	assert.Equal(t, clock.Add(24*time.Hour), match.ExpiresAt)
	assert.Nil(t, match.CompletedAt)

	stored, err := repo.GetMatch(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, match.Breakdown, stored.Breakdown)

	created, _ := notifier.counts()
	assert.Equal(t, 1, created)

	_, err = l.Create(ctx, 4, 9, testResult)
	assert.ErrorIs(t, err, ErrMatchExists, "pair order does not matter")

	_, err = l.Create(ctx, 4, 4, testResult)
	assert.ErrorIs(t, err, ErrSelfMatch)
}

func TestLifecycleCreateSurvivesNotifierFailure(t *testing.T) {
	l, repo, notifier := newTestLifecycle(time.Now())
	notifier.err = errors.New("push gateway down")

	match, err := l.Create(context.Background(), 1, 2, testResult)
	require.NoError(t, err)

	_, err = repo.GetMatch(context.Background(), match.ID)
	assert.NoError(t, err)
}

func TestLifecycleDecide(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("both accept resolves to a mutual match", func(t *testing.T) {
		l, _, notifier := newTestLifecycle(clock)
		match, err := l.Create(ctx, 1, 2, testResult)
		require.NoError(t, err)

		first, err := l.Decide(ctx, match.ID, 2, DecisionAccepted)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, first.Status)
		assert.Equal(t, DecisionAccepted, first.User2Decision)

		second, err := l.Decide(ctx, match.ID, 1, DecisionAccepted)
		require.NoError(t, err)
		assert.Equal(t, StatusMutualMatch, second.Status)
		require.NotNil(t, second.CompletedAt)
		assert.Equal(t, clock, *second.CompletedAt)

		_, mutual := notifier.counts()
		assert.Equal(t, 1, mutual)
	})

	t.Run("any rejection resolves to rejected", func(t *testing.T) {
		l, _, notifier := newTestLifecycle(clock)
		match, err := l.Create(ctx, 1, 2, testResult)
		require.NoError(t, err)

		_, err = l.Decide(ctx, match.ID, 1, DecisionAccepted)
		require.NoError(t, err)
		resolved, err := l.Decide(ctx, match.ID, 2, DecisionRejected)
		require.NoError(t, err)
		assert.Equal(t, StatusRejected, resolved.Status)
		assert.NotNil(t, resolved.CompletedAt)

		_, mutual := notifier.counts()
		assert.Zero(t, mutual)

		_, err = l.Decide(ctx, match.ID, 1, DecisionRejected)
		assert.ErrorIs(t, err, ErrMatchNotActive)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		l, _, _ := newTestLifecycle(clock)
		match, err := l.Create(ctx, 1, 2, testResult)
		require.NoError(t, err)

		_, err = l.Decide(ctx, match.ID, 1, DecisionPending)
		assert.ErrorIs(t, err, ErrInvalidDecision)

		_, err = l.Decide(ctx, match.ID, 1, Decision("maybe"))
		assert.ErrorIs(t, err, ErrInvalidDecision)

		_, err = l.Decide(ctx, match.ID, 3, DecisionAccepted)
		assert.ErrorIs(t, err, ErrNotParticipant)

		_, err = l.Decide(ctx, "missing", 1, DecisionAccepted)
		assert.ErrorIs(t, err, ErrMatchNotFound)

		_, err = l.Decide(ctx, match.ID, 1, DecisionAccepted)
		require.NoError(t, err)
		_, err = l.Decide(ctx, match.ID, 1, DecisionRejected)
		assert.ErrorIs(t, err, ErrAlreadyDecided)
	})

	t.Run("late decision expires the match", func(t *testing.T) {
		l, repo, _ := newTestLifecycle(clock)
		match, err := l.Create(ctx, 1, 2, testResult)
		require.NoError(t, err)

		late := clock.Add(25 * time.Hour)
		l.now = func() time.Time { return late }

		_, err = l.Decide(ctx, match.ID, 1, DecisionAccepted)
		assert.ErrorIs(t, err, ErrMatchExpired)

		stored, err := repo.GetMatch(ctx, match.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusExpired, stored.Status)
		assert.Equal(t, DecisionPending, stored.User1Decision)
		require.NotNil(t, stored.CompletedAt)
		assert.Equal(t, late, *stored.CompletedAt)

		_, err = l.Decide(ctx, match.ID, 2, DecisionAccepted)
		assert.ErrorIs(t, err, ErrMatchExpired)
	})
}

func TestLifecycleConcurrentDecisions(t *testing.T) {
	ctx := context.Background()
	l, repo, notifier := newTestLifecycle(time.Now())

	const pairs = 25
	ids := make([]string, pairs)
	for i := range ids {
		match, err := l.Create(ctx, int64(2*i+1), int64(2*i+2), testResult)
		require.NoError(t, err)
		ids[i] = match.ID
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2*pairs)
	for i, id := range ids {
		for _, user := range []int64{int64(2*i + 1), int64(2*i + 2)} {
			wg.Add(1)
			go func(id string, user int64) {
				defer wg.Done()
				if _, err := l.Decide(ctx, id, user, DecisionAccepted); err != nil {
					errs <- err
				}
			}(id, user)
		}
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected decide error: %v", err)
	}
	for _, id := range ids {
		stored, err := repo.GetMatch(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StatusMutualMatch, stored.Status)
		assert.Equal(t, 3, stored.Version, "one write per participant")
	}
	_, mutual := notifier.counts()
	assert.Equal(t, pairs, mutual, "exactly one mutual notification per match")
}

func TestLifecycleSweepExpired(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l, repo, _ := newTestLifecycle(clock)

	stale, err := l.Create(ctx, 1, 2, testResult)
	require.NoError(t, err)
	decided, err := l.Create(ctx, 3, 4, testResult)
	require.NoError(t, err)
	_, err = l.Decide(ctx, decided.ID, 3, DecisionRejected)
	require.NoError(t, err)
	_, err = l.Decide(ctx, decided.ID, 4, DecisionRejected)
	require.NoError(t, err)

	l.now = func() time.Time { return clock.Add(12 * time.Hour) }
	fresh, err := l.Create(ctx, 5, 6, testResult)
	require.NoError(t, err)

	l.now = func() time.Time { return clock.Add(30 * time.Hour) }
	n, err := l.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := repo.GetMatch(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, stored.Status)
	assert.NotNil(t, stored.CompletedAt)

	stored, err = repo.GetMatch(ctx, decided.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, stored.Status)

	stored, err = repo.GetMatch(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)

	n, err = l.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "sweeping twice is a no-op")
}
