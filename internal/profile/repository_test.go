package profile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/kiekky-matching/internal/common/database/dbtest"
)

func TestIntegration_PostgresRepository(t *testing.T) {
	db := dbtest.StartPostgres(t)
	repo := NewPostgresRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	seed := []*Profile{
		{UserID: 1, DisplayName: "Ada", Age: 30, Gender: "male", City: "Lagos", Location: &Coordinates{Lat: 6.52, Lng: 3.37}, IsComplete: true, Interests: []string{"music", "hiking"}, LastActive: now},
		{UserID: 2, DisplayName: "Bisi", Age: 28, Gender: "female", City: "Lagos", Location: &Coordinates{Lat: 6.60, Lng: 3.35}, IsComplete: true, Interests: []string{"music"}, LastActive: now.Add(-time.Hour)},
		{UserID: 3, DisplayName: "Chi", Age: 45, Gender: "female", City: "Abuja", Location: &Coordinates{Lat: 9.07, Lng: 7.39}, IsComplete: true, LastActive: now.Add(-2 * time.Hour)},
		{UserID: 4, DisplayName: "Dayo", Age: 29, Gender: "female", City: "Lagos", IsComplete: false, LastActive: now},
		{UserID: 5, DisplayName: "Efe", Age: 31, Gender: "non-binary", City: "lagos", IsComplete: true, LastActive: now.Add(-3 * time.Hour)},
	}
	for _, p := range seed {
		require.NoError(t, repo.SaveProfile(ctx, p))
	}

	t.Run("get profile", func(t *testing.T) {
		p, err := repo.GetProfile(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "male", p.Gender)
		assert.Equal(t, []string{"hiking", "music"}, p.Interests)
		require.NotNil(t, p.Location)
		assert.InDelta(t, 6.52, p.Location.Lat, 1e-9)

		_, err = repo.GetProfile(ctx, 404)
		assert.ErrorIs(t, err, ErrProfileNotFound)
	})

	t.Run("search applies hard filters", func(t *testing.T) {
		genders, err := repo.GenderIDsByLabels(ctx, []string{"female"})
		require.NoError(t, err)
		require.Contains(t, genders, "female")

		got, err := repo.SearchProfiles(ctx, &SearchFilter{
			RequesterID:   1,
			CompleteOnly:  true,
			MinAge:        18,
			MaxAge:        40,
			GenderIDs:     []int{genders["female"]},
			Cities:        []string{"LAGOS"},
			ExcludeIDs:    []int64{99},
			Origin:        &Coordinates{Lat: 6.52, Lng: 3.37},
			MaxDistanceKm: 50,
			Limit:         10,
		})
		require.NoError(t, err)
		assert.Equal(t, []int64{2}, ids(got))
	})

	t.Run("interests in one batch", func(t *testing.T) {
		interests, err := repo.InterestsByUserIDs(ctx, []int64{1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, []string{"hiking", "music"}, interests[1])
		assert.Equal(t, []string{"music"}, interests[2])
		assert.NotContains(t, interests, int64(3))
	})

	t.Run("preferences round trip", func(t *testing.T) {
		pref, err := repo.GetPreferences(ctx, 2)
		require.NoError(t, err)
		assert.Nil(t, pref)

		require.NoError(t, repo.SavePreferences(ctx, 2, &SearchPreference{MinAge: 25, MaxAge: 35, Genders: []string{"male"}}))
		pref, err = repo.GetPreferences(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"male"}, pref.Genders)
		assert.Empty(t, pref.PreferredCities)
	})

	t.Run("activity", func(t *testing.T) {
		n, err := repo.CountActiveUsers(ctx, now.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 4, n)

		active, err := repo.RecentlyActiveUserIDs(ctx, now.Add(-24*time.Hour), 2)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2}, active)
	})
}
