// internal/profile/preferences.go

package profile

import (
	"fmt"
	"log"
	"strings"

	"github.com/imadgeboyega/kiekky-matching/internal/common/utils"
)

// Validate checks a preference record against its struct tags
func (p *SearchPreference) Validate() error {
	if err := utils.ValidateStruct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPreferences, err)
	}
	return nil
}

// Normalize lowercases and de-duplicates set valued fields
func (p *SearchPreference) Normalize() {
	p.Genders = normalizeSet(p.Genders)
	p.PreferredCities = normalizeSet(p.PreferredCities)
}

// ResolvePreferences returns pref when it is usable and the permissive
// defaults otherwise. A malformed record never fails a match request.
func ResolvePreferences(userID int64, pref *SearchPreference) *SearchPreference {
	if pref == nil {
		return DefaultPreferences()
	}

	resolved := *pref
	resolved.Genders = append([]string(nil), pref.Genders...)
	resolved.PreferredCities = append([]string(nil), pref.PreferredCities...)
	resolved.Normalize()

	if err := resolved.Validate(); err != nil {
		log.Printf("Preferences for user %d rejected, using defaults: %v", userID, err)
		return DefaultPreferences()
	}
	return &resolved
}

func normalizeSet(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
