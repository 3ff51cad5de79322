// internal/matching/memory.go
// In-memory Repository used by tests and local runs without Postgres

package matching

import (
	"context"
	"sort"
	"sync"
	"time"
)

type pairKey struct{ lo, hi int64 }

// MemoryRepository implements Repository over maps with the same
// version-checked update semantics as the Postgres store
type MemoryRepository struct {
	mu      sync.RWMutex
	matches map[string]*Match
	pairs   map[pairKey]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		matches: make(map[string]*Match),
		pairs:   make(map[pairKey]string),
	}
}

func (r *MemoryRepository) CreateMatch(ctx context.Context, match *Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey{match.User1ID, match.User2ID}
	if _, exists := r.pairs[key]; exists {
		return ErrMatchExists
	}
	r.matches[match.ID] = match.Clone()
	r.pairs[key] = match.ID
	return nil
}

func (r *MemoryRepository) GetMatch(ctx context.Context, id string) (*Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	match, ok := r.matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return match.Clone(), nil
}

func (r *MemoryRepository) GetUserMatches(ctx context.Context, userID int64, status Status) ([]*Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := []*Match{}
	for _, m := range r.matches {
		if !m.IsParticipant(userID) || (status != "" && m.Status != status) {
			continue
		}
		matches = append(matches, m.Clone())
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
		return matches[i].ID < matches[j].ID
	})
	return matches, nil
}

func (r *MemoryRepository) UpdateMatch(ctx context.Context, match *Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.matches[match.ID]
	if !ok || stored.Version != match.Version {
		return ErrConcurrentUpdate
	}

	stored.User1Decision = match.User1Decision
	stored.User2Decision = match.User2Decision
	stored.Status = match.Status
	stored.CompletedAt = nil
	if match.CompletedAt != nil {
		t := *match.CompletedAt
		stored.CompletedAt = &t
	}
	stored.Version++
	match.Version = stored.Version
	return nil
}

func (r *MemoryRepository) PartnerIDs(ctx context.Context, userID int64) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := []int64{}
	for _, m := range r.matches {
		if m.IsParticipant(userID) {
			ids = append(ids, m.PartnerOf(userID))
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *MemoryRepository) ExpirePending(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, m := range r.matches {
		if m.Status == StatusPending && m.ExpiresAt.Before(now) {
			completed := now
			m.Status = StatusExpired
			m.CompletedAt = &completed
			m.Version++
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) GetStats(ctx context.Context) (*Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &Stats{}
	for _, m := range r.matches {
		stats.Total++
		switch m.Status {
		case StatusPending:
			stats.Pending++
		case StatusMutualMatch:
			stats.MutualMatch++
		case StatusRejected:
			stats.Rejected++
		case StatusExpired:
			stats.Expired++
		}
		if m.User1Decision != DecisionPending || m.User2Decision != DecisionPending {
			stats.WithDecision++
		}
	}
	return stats, nil
}
