// Package cache memoizes compatibility results and profile snapshots.
// Entries carry a TTL and are indexed by the users they belong to so a
// profile or preference change can drop everything derived from it.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Store is a byte oriented key/value store with TTL expiry and per-user
// invalidation. Expired entries must never be returned by Get.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// InvalidateUser removes every entry owned by userID and returns how many were dropped
	InvalidateUser(ctx context.Context, userID int64) (int, error)
	// Sweep evicts expired entries and returns how many were removed
	Sweep(ctx context.Context) (int, error)
	Len(ctx context.Context) (int, error)
}

// Key prefixes
const (
	compatibilityPrefix = "compat"
	profilePrefix       = "profile"
	preferencesPrefix   = "prefs"
)

// CompatibilityKey is order independent: (a, b) and (b, a) share one entry
func CompatibilityKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%s:%d:%d", compatibilityPrefix, a, b)
}

// ProfileKey addresses a profile snapshot
func ProfileKey(userID int64) string {
	return fmt.Sprintf("%s:%d", profilePrefix, userID)
}

// PreferencesKey addresses a preference snapshot
func PreferencesKey(userID int64) string {
	return fmt.Sprintf("%s:%d", preferencesPrefix, userID)
}

// Owners returns the user ids a key belongs to
func Owners(key string) []int64 {
	parts := strings.Split(key, ":")
	if len(parts) < 2 {
		return nil
	}

	owners := make([]int64, 0, len(parts)-1)
	for _, part := range parts[1:] {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil
		}
		owners = append(owners, id)
	}
	return owners
}
