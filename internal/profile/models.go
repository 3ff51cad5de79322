// internal/profile/models.go

package profile

import (
	"errors"
	"math"
	"time"
)

var (
	ErrProfileNotFound    = errors.New("profile not found")
	ErrProfileIncomplete  = errors.New("profile is incomplete")
	ErrInvalidPreferences = errors.New("invalid search preferences")
	ErrUnknownGender      = errors.New("unknown gender label")
)

// Gender labels stored in the genders lookup table
const (
	GenderMale      = "male"
	GenderFemale    = "female"
	GenderNonBinary = "non-binary"
)

// Permissive bounds used when a user has no usable preferences
const (
	DefaultMinAge = 18
	DefaultMaxAge = 120
)

// Coordinates is a WGS84 position in degrees
type Coordinates struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

// Profile is the engine's read-only view of a user profile
type Profile struct {
	UserID      int64        `json:"user_id"`
	DisplayName string       `json:"display_name"`
	Age         int          `json:"age"`
	Gender      string       `json:"gender"`
	City        string       `json:"city"`
	Location    *Coordinates `json:"location,omitempty"`
	Bio         string       `json:"bio"`
	Interests   []string     `json:"interests"`
	IsComplete  bool         `json:"is_complete"`
	LastActive  time.Time    `json:"last_active"`
}

// SearchPreference holds per-user hard constraints for candidate selection
type SearchPreference struct {
	MinAge             int      `json:"min_age" validate:"gte=18,lte=120"`
	MaxAge             int      `json:"max_age" validate:"gte=18,lte=120,gtefield=MinAge"`
	Genders            []string `json:"genders" validate:"dive,oneof=male female non-binary"`
	MaxDistanceKm      float64  `json:"max_distance_km" validate:"gte=0"`
	MinSharedInterests int      `json:"min_shared_interests" validate:"gte=0,lte=50"`
	PreferredCities    []string `json:"preferred_cities"`
}

// DefaultPreferences accepts every complete profile
func DefaultPreferences() *SearchPreference {
	return &SearchPreference{
		MinAge: DefaultMinAge,
		MaxAge: DefaultMaxAge,
	}
}

// SearchFilter is the store-side query for candidate profiles
type SearchFilter struct {
	RequesterID   int64
	CompleteOnly  bool
	MinAge        int
	MaxAge        int
	GenderIDs     []int    // empty means any gender
	Cities        []string // empty means any city; compared case-insensitively
	ExcludeIDs    []int64
	Origin        *Coordinates
	MaxDistanceKm float64 // applied only with an Origin
	Limit         int
}

// DistanceKm is the great-circle distance between two points
func DistanceKm(a, b Coordinates) float64 {
	const earthRadius = 6371 // km

	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return earthRadius * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
