// internal/matching/lifecycle.go

package matching

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// Notifier is told about match events. Failures are logged by the caller
// and never undo a transition.
type Notifier interface {
	MatchCreated(ctx context.Context, match *Match) error
	MutualMatch(ctx context.Context, match *Match) error
}

const maxUpdateAttempts = 3

// Lifecycle owns every state change of a match
type Lifecycle struct {
	repo     Repository
	notifier Notifier
	ttl      time.Duration
	now      func() time.Time
}

func NewLifecycle(repo Repository, notifier Notifier, ttl time.Duration) *Lifecycle {
	return &Lifecycle{
		repo:     repo,
		notifier: notifier,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create stores a pending match between a and b. Returns ErrMatchExists
// when the pair already has a match in any status.
func (l *Lifecycle) Create(ctx context.Context, a, b int64, result *CompatibilityResult) (*Match, error) {
	if a == b {
		return nil, ErrSelfMatch
	}
	if a > b {
		a, b = b, a
	}

	now := l.now().UTC()
	match := &Match{
		ID:            uuid.NewString(),
		User1ID:       a,
		User2ID:       b,
		Score:         result.Score,
		Reasons:       append(Reasons{}, result.Reasons...),
		Breakdown:     make(Breakdown, len(result.Breakdown)),
		User1Decision: DecisionPending,
		User2Decision: DecisionPending,
		Status:        StatusPending,
		Version:       1,
		CreatedAt:     now,
		ExpiresAt:     now.Add(l.ttl),
	}
	for k, v := range result.Breakdown {
		match.Breakdown[k] = v
	}

	if err := l.repo.CreateMatch(ctx, match); err != nil {
		return nil, err
	}
	RecordMatchCreated(match.Score)

	if l.notifier != nil {
		if err := l.notifier.MatchCreated(ctx, match); err != nil {
			log.Printf("Match %s: created notification failed: %v", match.ID, err)
		}
	}
	return match, nil
}

// Decide records userID's decision on a pending match and resolves the
// match once both sides have answered. Concurrent writers are detected by
// the version check and retried against a fresh read.
func (l *Lifecycle) Decide(ctx context.Context, matchID string, userID int64, decision Decision) (*Match, error) {
	if !decision.Valid() {
		return nil, ErrInvalidDecision
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		match, err := l.repo.GetMatch(ctx, matchID)
		if err != nil {
			return nil, err
		}
		if !match.IsParticipant(userID) {
			return nil, ErrNotParticipant
		}

		switch match.Status {
		case StatusPending:
		case StatusExpired:
			return nil, ErrMatchExpired
		default:
			return nil, ErrMatchNotActive
		}

		now := l.now().UTC()
		if now.After(match.ExpiresAt) {
			match.Status = StatusExpired
			match.CompletedAt = &now
			err := l.repo.UpdateMatch(ctx, match)
			if errors.Is(err, ErrConcurrentUpdate) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("expire match: %w", err)
			}
			RecordTransition(StatusExpired, 1)
			return nil, ErrMatchExpired
		}

		if match.DecisionOf(userID) != DecisionPending {
			return nil, ErrAlreadyDecided
		}

		if match.User1ID == userID {
			match.User1Decision = decision
		} else {
			match.User2Decision = decision
		}
		resolve(match, now)

		err = l.repo.UpdateMatch(ctx, match)
		if errors.Is(err, ErrConcurrentUpdate) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("record decision: %w", err)
		}

		RecordDecision(decision)
		if match.Status.IsFinal() {
			RecordTransition(match.Status, 1)
		}
		if match.Status == StatusMutualMatch && l.notifier != nil {
			if err := l.notifier.MutualMatch(ctx, match); err != nil {
				log.Printf("Match %s: mutual notification failed: %v", match.ID, err)
			}
		}
		return match, nil
	}

	return nil, ErrConcurrentUpdate
}

// resolve settles the status once both decisions are in
func resolve(match *Match, now time.Time) {
	if match.User1Decision == DecisionPending || match.User2Decision == DecisionPending {
		return
	}
	if match.User1Decision == DecisionAccepted && match.User2Decision == DecisionAccepted {
		match.Status = StatusMutualMatch
	} else {
		match.Status = StatusRejected
	}
	match.CompletedAt = &now
}

// SweepExpired forces every pending match past its expiry to expired
func (l *Lifecycle) SweepExpired(ctx context.Context) (int, error) {
	n, err := l.repo.ExpirePending(ctx, l.now().UTC())
	if err != nil {
		return 0, err
	}
	RecordTransition(StatusExpired, n)
	return n, nil
}
