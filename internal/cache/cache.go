package cache

import (
	"context"
	"encoding/json"
	"log"
	"sync/atomic"
	"time"
)

// TTLs per entry kind
type TTLs struct {
	Compatibility time.Duration
	Profile       time.Duration
	Preferences   time.Duration
}

// DefaultTTLs are used for any zero field
var DefaultTTLs = TTLs{
	Compatibility: time.Hour,
	Profile:       30 * time.Minute,
	Preferences:   time.Hour,
}

// Stats is a snapshot of lookup counters
type Stats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
	Entries int     `json:"entries"`
}

// Cache stores JSON encoded values on top of a Store. It is best effort:
// backend failures are logged and reported as misses so a broken cache
// only costs recomputation.
type Cache struct {
	store  Store
	ttl    TTLs
	hits   atomic.Uint64
	misses atomic.Uint64
}

// New wraps store. Zero TTLs fall back to DefaultTTLs.
func New(store Store, ttl TTLs) *Cache {
	if ttl.Compatibility <= 0 {
		ttl.Compatibility = DefaultTTLs.Compatibility
	}
	if ttl.Profile <= 0 {
		ttl.Profile = DefaultTTLs.Profile
	}
	if ttl.Preferences <= 0 {
		ttl.Preferences = DefaultTTLs.Preferences
	}
	return &Cache{store: store, ttl: ttl}
}

// Get decodes the entry at key into dst and reports whether it was found
func (c *Cache) Get(ctx context.Context, kind, key string, dst interface{}) bool {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		log.Printf("Cache get %s failed: %v", key, err)
		recordStoreError("get")
		ok = false
	}
	if ok {
		if err := json.Unmarshal(raw, dst); err != nil {
			log.Printf("Cache entry %s is corrupt: %v", key, err)
			ok = false
		}
	}

	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	recordLookup(kind, ok)
	return ok
}

// Set encodes v and stores it under key
func (c *Cache) Set(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		log.Printf("Cache encode %s failed: %v", key, err)
		return
	}
	if err := c.store.Set(ctx, key, raw, ttl); err != nil {
		log.Printf("Cache set %s failed: %v", key, err)
		recordStoreError("set")
	}
}

// GetCompatibility looks up the result for an unordered pair
func (c *Cache) GetCompatibility(ctx context.Context, a, b int64, dst interface{}) bool {
	return c.Get(ctx, compatibilityPrefix, CompatibilityKey(a, b), dst)
}

// HasCompatibility reports whether a pair is cached without counting a lookup
func (c *Cache) HasCompatibility(ctx context.Context, a, b int64) bool {
	_, ok, err := c.store.Get(ctx, CompatibilityKey(a, b))
	return err == nil && ok
}

// SetCompatibility caches the result for an unordered pair
func (c *Cache) SetCompatibility(ctx context.Context, a, b int64, v interface{}) {
	c.Set(ctx, CompatibilityKey(a, b), v, c.ttl.Compatibility)
}

// GetProfile looks up a profile snapshot
func (c *Cache) GetProfile(ctx context.Context, userID int64, dst interface{}) bool {
	return c.Get(ctx, profilePrefix, ProfileKey(userID), dst)
}

// SetProfile caches a profile snapshot
func (c *Cache) SetProfile(ctx context.Context, userID int64, v interface{}) {
	c.Set(ctx, ProfileKey(userID), v, c.ttl.Profile)
}

// GetPreferences looks up a preference snapshot
func (c *Cache) GetPreferences(ctx context.Context, userID int64, dst interface{}) bool {
	return c.Get(ctx, preferencesPrefix, PreferencesKey(userID), dst)
}

// SetPreferences caches a preference snapshot
func (c *Cache) SetPreferences(ctx context.Context, userID int64, v interface{}) {
	c.Set(ctx, PreferencesKey(userID), v, c.ttl.Preferences)
}

// Invalidate drops the user's snapshots and every pair result involving them
func (c *Cache) Invalidate(ctx context.Context, userID int64) (int, error) {
	n, err := c.store.InvalidateUser(ctx, userID)
	if err != nil {
		recordStoreError("invalidate")
		return 0, err
	}
	recordEvictions("invalidate", n)
	return n, nil
}

// Sweep evicts expired entries
func (c *Cache) Sweep(ctx context.Context) (int, error) {
	n, err := c.store.Sweep(ctx)
	if err != nil {
		recordStoreError("sweep")
		return n, err
	}
	recordEvictions("expired", n)
	return n, nil
}

// Stats returns lookup counters since start
func (c *Cache) Stats(ctx context.Context) Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	s := Stats{Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	if n, err := c.store.Len(ctx); err == nil {
		s.Entries = n
	}
	return s
}
