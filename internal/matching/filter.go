// internal/matching/filter.go

package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/graph-gophers/dataloader/v7"

	"github.com/imadgeboyega/kiekky-matching/internal/profile"
)

// Candidate pool size by number of recently active users
var candidateLimits = []struct {
	below int
	limit int
}{
	{1_000, 50},
	{10_000, 100},
	{100_000, 200},
}

const maxCandidateLimit = 500

// CandidateLimit returns how many candidates to pull for a population of
// active users
func CandidateLimit(activeUsers int) int {
	for _, tier := range candidateLimits {
		if activeUsers < tier.below {
			return tier.limit
		}
	}
	return maxCandidateLimit
}

// CandidateFilter selects the profiles a requester may be paired with
type CandidateFilter struct {
	profiles     profile.Repository
	matches      Repository
	activeWindow time.Duration
	batchWait    time.Duration
	now          func() time.Time
}

func NewCandidateFilter(profiles profile.Repository, matches Repository, activeWindow time.Duration) *CandidateFilter {
	return &CandidateFilter{
		profiles:     profiles,
		matches:      matches,
		activeWindow: activeWindow,
		batchWait:    2 * time.Millisecond,
		now:          time.Now,
	}
}

// FilterCandidates returns complete profiles that satisfy prefs and have
// never been paired with the requester, with interests loaded. Hard
// constraints run in the store; the shared-interest minimum runs here.
// No candidates is an empty slice, not an error.
func (f *CandidateFilter) FilterCandidates(ctx context.Context, requester *profile.Profile, prefs *profile.SearchPreference) ([]*profile.Profile, error) {
	active, err := f.profiles.CountActiveUsers(ctx, f.now().Add(-f.activeWindow))
	if err != nil {
		return nil, fmt.Errorf("count active users: %w", err)
	}

	filter := &profile.SearchFilter{
		RequesterID:  requester.UserID,
		CompleteOnly: true,
		MinAge:       prefs.MinAge,
		MaxAge:       prefs.MaxAge,
		Cities:       prefs.PreferredCities,
		Limit:        CandidateLimit(active),
	}

	if len(prefs.Genders) > 0 {
		ids, err := f.profiles.GenderIDsByLabels(ctx, prefs.Genders)
		if err != nil {
			return nil, fmt.Errorf("resolve genders: %w", err)
		}
		for _, id := range ids {
			filter.GenderIDs = append(filter.GenderIDs, id)
		}
		// Only unknown labels requested: nobody can satisfy them
		if len(filter.GenderIDs) == 0 {
			return []*profile.Profile{}, nil
		}
	}

	if prefs.MaxDistanceKm > 0 && requester.Location != nil {
		origin := *requester.Location
		filter.Origin = &origin
		filter.MaxDistanceKm = prefs.MaxDistanceKm
	}

	filter.ExcludeIDs, err = f.matches.PartnerIDs(ctx, requester.UserID)
	if err != nil {
		return nil, fmt.Errorf("load previous partners: %w", err)
	}

	candidates, err := f.profiles.SearchProfiles(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("search profiles: %w", err)
	}
	if len(candidates) == 0 {
		return []*profile.Profile{}, nil
	}

	if err := f.loadInterests(ctx, candidates); err != nil {
		return nil, err
	}

	if prefs.MinSharedInterests <= 0 {
		return candidates, nil
	}

	wanted := make(map[string]bool, len(requester.Interests))
	for _, label := range normalizeLabels(requester.Interests) {
		wanted[label] = true
	}
	kept := make([]*profile.Profile, 0, len(candidates))
	for _, c := range candidates {
		if countShared(wanted, c.Interests) >= prefs.MinSharedInterests {
			kept = append(kept, c)
		}
	}
	return kept, nil
}

// loadInterests fills every candidate's interests through one batched
// store round trip
func (f *CandidateFilter) loadInterests(ctx context.Context, candidates []*profile.Profile) error {
	loader := dataloader.NewBatchedLoader(
		interestBatchFn(f.profiles),
		dataloader.WithWait[int64, []string](f.batchWait),
	)

	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.UserID
	}

	interests, errs := loader.LoadMany(ctx, ids)()
	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("load interests: %w", err)
		}
	}
	for i, c := range candidates {
		c.Interests = interests[i]
	}
	return nil
}

func interestBatchFn(repo profile.Repository) dataloader.BatchFunc[int64, []string] {
	return func(ctx context.Context, keys []int64) []*dataloader.Result[[]string] {
		results := make([]*dataloader.Result[[]string], len(keys))

		byUser, err := repo.InterestsByUserIDs(ctx, keys)
		for i, key := range keys {
			if err != nil {
				results[i] = &dataloader.Result[[]string]{Error: err}
				continue
			}
			results[i] = &dataloader.Result[[]string]{Data: byUser[key]}
		}
		return results
	}
}

func countShared(wanted map[string]bool, interests []string) int {
	n := 0
	seen := make(map[string]bool, len(interests))
	for _, label := range normalizeLabels(interests) {
		if wanted[label] && !seen[label] {
			seen[label] = true
			n++
		}
	}
	return n
}
