package matching

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/kiekky-matching/internal/profile"
)

func saveProfiles(t *testing.T, repo *profile.MemoryRepository, profiles ...*profile.Profile) {
	t.Helper()
	for _, p := range profiles {
		require.NoError(t, repo.SaveProfile(context.Background(), p))
	}
}

func userIDs(profiles []*profile.Profile) []int64 {
	out := make([]int64, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p.UserID)
	}
	return out
}

func TestCandidateLimit(t *testing.T) {
	tests := []struct {
		active int
		want   int
	}{
		{0, 50},
		{999, 50},
		{1_000, 100},
		{9_999, 100},
		{10_000, 200},
		{99_999, 200},
		{100_000, 500},
		{5_000_000, 500},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CandidateLimit(tt.active), "active %d", tt.active)
	}
}

func TestFilterCandidates(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	profiles := profile.NewMemoryRepository()
	saveProfiles(t, profiles,
		&profile.Profile{UserID: 1, Age: 30, Gender: "female", City: "Lagos", IsComplete: true, Interests: []string{"music", "hiking"}, Location: &profile.Coordinates{Lat: 6.52, Lng: 3.37}},
		&profile.Profile{UserID: 2, Age: 31, Gender: "male", City: "Lagos", IsComplete: true, Interests: []string{"Music", "chess"}, LastActive: now},
		&profile.Profile{UserID: 3, Age: 29, Gender: "male", City: "Lagos", IsComplete: true, Interests: []string{"hiking", "music"}, LastActive: now.Add(-time.Minute)},
		&profile.Profile{UserID: 4, Age: 52, Gender: "male", City: "Lagos", IsComplete: true, Interests: []string{"music"}, LastActive: now},
		&profile.Profile{UserID: 5, Age: 30, Gender: "female", City: "Lagos", IsComplete: true, Interests: []string{"music"}, LastActive: now},
		&profile.Profile{UserID: 6, Age: 30, Gender: "male", City: "Lagos", IsComplete: false, Interests: []string{"music"}, LastActive: now},
		&profile.Profile{UserID: 7, Age: 33, Gender: "male", City: "Kano", IsComplete: true, Location: &profile.Coordinates{Lat: 12.0, Lng: 8.52}, LastActive: now},
	)
	requester, err := profiles.GetProfile(ctx, 1)
	require.NoError(t, err)

	t.Run("applies hard constraints and loads interests", func(t *testing.T) {
		matches := NewMemoryRepository()
		filter := NewCandidateFilter(profiles, matches, 7*24*time.Hour)
		before := profiles.CallCount("InterestsByUserIDs")

		got, err := filter.FilterCandidates(ctx, requester, &profile.SearchPreference{
			MinAge:        25,
			MaxAge:        40,
			Genders:       []string{"male"},
			MaxDistanceKm: 100,
		})
		require.NoError(t, err)

		assert.Equal(t, []int64{2, 3}, userIDs(got), "profile 7 is too far, 4 too old, 5 wrong gender, 6 incomplete")
		assert.Equal(t, []string{"Music", "chess"}, got[0].Interests)
		assert.Equal(t, 1, profiles.CallCount("InterestsByUserIDs")-before, "interests load in one round trip")
	})

	t.Run("excludes previous partners", func(t *testing.T) {
		matches := NewMemoryRepository()
		require.NoError(t, matches.CreateMatch(ctx, &Match{ID: "m-1", User1ID: 1, User2ID: 2, Status: StatusRejected, Version: 1}))
		filter := NewCandidateFilter(profiles, matches, 7*24*time.Hour)

		got, err := filter.FilterCandidates(ctx, requester, &profile.SearchPreference{MinAge: 25, MaxAge: 40, Genders: []string{"male"}})
		require.NoError(t, err)
		assert.Equal(t, []int64{7, 3}, userIDs(got), "most recently active first")
	})

	t.Run("enforces minimum shared interests", func(t *testing.T) {
		filter := NewCandidateFilter(profiles, NewMemoryRepository(), 7*24*time.Hour)

		got, err := filter.FilterCandidates(ctx, requester, &profile.SearchPreference{MinAge: 18, MaxAge: 120, MinSharedInterests: 2})
		require.NoError(t, err)
		assert.Equal(t, []int64{3}, userIDs(got))
	})

	t.Run("no candidates is an empty result", func(t *testing.T) {
		filter := NewCandidateFilter(profiles, NewMemoryRepository(), 7*24*time.Hour)

		got, err := filter.FilterCandidates(ctx, requester, &profile.SearchPreference{MinAge: 90, MaxAge: 120})
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("unknown genders match nobody", func(t *testing.T) {
		filter := NewCandidateFilter(profiles, NewMemoryRepository(), 7*24*time.Hour)
		searches := profiles.CallCount("SearchProfiles")

		got, err := filter.FilterCandidates(ctx, requester, &profile.SearchPreference{MinAge: 18, MaxAge: 120, Genders: []string{"centaur"}})
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.Equal(t, searches, profiles.CallCount("SearchProfiles"), "store is not searched")
	})
}
