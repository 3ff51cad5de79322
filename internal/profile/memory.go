// internal/profile/memory.go
// In-memory Repository used by tests and local runs without Postgres

package profile

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepository implements Repository over maps
type MemoryRepository struct {
	mu          sync.RWMutex
	profiles    map[int64]*Profile
	preferences map[int64]*SearchPreference
	genders     map[string]int

	calls map[string]int // round trips per method
}

// NewMemoryRepository creates a repository seeded with the default gender table
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		profiles:    make(map[int64]*Profile),
		preferences: make(map[int64]*SearchPreference),
		genders: map[string]int{
			GenderMale:      1,
			GenderFemale:    2,
			GenderNonBinary: 3,
		},
		calls: make(map[string]int),
	}
}

func (r *MemoryRepository) count(method string) {
	r.calls[method]++
}

// CallCount returns how often method was invoked
func (r *MemoryRepository) CallCount(method string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.calls[method]
}

func cloneProfile(p *Profile, withInterests bool) *Profile {
	c := *p
	if p.Location != nil {
		loc := *p.Location
		c.Location = &loc
	}
	c.Interests = nil
	if withInterests {
		c.Interests = append([]string(nil), p.Interests...)
	}
	return &c
}

func (r *MemoryRepository) GetProfile(ctx context.Context, userID int64) (*Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count("GetProfile")

	p, ok := r.profiles[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return cloneProfile(p, true), nil
}

func (r *MemoryRepository) GetProfiles(ctx context.Context, userIDs []int64) ([]*Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count("GetProfiles")

	var out []*Profile
	for _, id := range userIDs {
		if p, ok := r.profiles[id]; ok {
			out = append(out, cloneProfile(p, true))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (r *MemoryRepository) GetPreferences(ctx context.Context, userID int64) (*SearchPreference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count("GetPreferences")

	pref, ok := r.preferences[userID]
	if !ok {
		return nil, nil
	}
	c := *pref
	c.Genders = append([]string(nil), pref.Genders...)
	c.PreferredCities = append([]string(nil), pref.PreferredCities...)
	return &c, nil
}

func (r *MemoryRepository) SearchProfiles(ctx context.Context, filter *SearchFilter) ([]*Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count("SearchProfiles")

	excluded := make(map[int64]bool, len(filter.ExcludeIDs))
	for _, id := range filter.ExcludeIDs {
		excluded[id] = true
	}
	genderOK := make(map[int]bool, len(filter.GenderIDs))
	for _, id := range filter.GenderIDs {
		genderOK[id] = true
	}
	cityOK := make(map[string]bool, len(filter.Cities))
	for _, c := range filter.Cities {
		cityOK[strings.ToLower(c)] = true
	}

	var out []*Profile
	for id, p := range r.profiles {
		switch {
		case id == filter.RequesterID, excluded[id]:
			continue
		case filter.CompleteOnly && !p.IsComplete:
			continue
		case filter.MinAge > 0 && p.Age < filter.MinAge:
			continue
		case filter.MaxAge > 0 && p.Age > filter.MaxAge:
			continue
		case len(genderOK) > 0 && !genderOK[r.genders[strings.ToLower(p.Gender)]]:
			continue
		case len(cityOK) > 0 && !cityOK[strings.ToLower(p.City)]:
			continue
		}
		if filter.Origin != nil && filter.MaxDistanceKm > 0 && p.Location != nil {
			if DistanceKm(*filter.Origin, *p.Location) > filter.MaxDistanceKm {
				continue
			}
		}
		out = append(out, cloneProfile(p, false))
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActive.Equal(out[j].LastActive) {
			return out[i].LastActive.After(out[j].LastActive)
		}
		return out[i].UserID < out[j].UserID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *MemoryRepository) InterestsByUserIDs(ctx context.Context, userIDs []int64) (map[int64][]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count("InterestsByUserIDs")

	result := make(map[int64][]string, len(userIDs))
	for _, id := range userIDs {
		if p, ok := r.profiles[id]; ok && len(p.Interests) > 0 {
			result[id] = append([]string(nil), p.Interests...)
		}
	}
	return result, nil
}

func (r *MemoryRepository) GenderIDsByLabels(ctx context.Context, labels []string) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count("GenderIDsByLabels")

	result := make(map[string]int, len(labels))
	for _, label := range labels {
		if id, ok := r.genders[label]; ok {
			result[label] = id
		}
	}
	return result, nil
}

func (r *MemoryRepository) CountActiveUsers(ctx context.Context, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count("CountActiveUsers")

	n := 0
	for _, p := range r.profiles {
		if p.IsComplete && !p.LastActive.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) RecentlyActiveUserIDs(ctx context.Context, since time.Time, limit int) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count("RecentlyActiveUserIDs")

	var active []*Profile
	for _, p := range r.profiles {
		if p.IsComplete && !p.LastActive.Before(since) {
			active = append(active, p)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if !active[i].LastActive.Equal(active[j].LastActive) {
			return active[i].LastActive.After(active[j].LastActive)
		}
		return active[i].UserID < active[j].UserID
	})

	ids := make([]int64, 0, len(active))
	for _, p := range active {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, p.UserID)
	}
	return ids, nil
}

func (r *MemoryRepository) SaveProfile(ctx context.Context, p *Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count("SaveProfile")

	if p.Gender != "" {
		if _, ok := r.genders[strings.ToLower(p.Gender)]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownGender, p.Gender)
		}
	}
	c := cloneProfile(p, true)
	c.Gender = strings.ToLower(c.Gender)
	if c.LastActive.IsZero() {
		c.LastActive = time.Now()
	}
	r.profiles[p.UserID] = c
	return nil
}

func (r *MemoryRepository) SavePreferences(ctx context.Context, userID int64, pref *SearchPreference) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count("SavePreferences")

	c := *pref
	c.Genders = append([]string(nil), pref.Genders...)
	c.PreferredCities = append([]string(nil), pref.PreferredCities...)
	r.preferences[userID] = &c
	return nil
}
