package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/imadgeboyega/kiekky-matching/internal/common/database"
)

const (
	defaultNamespace = "kiekky:match"
	scanBatch        = 500
)

// RedisStore keeps entries in Redis with native expiry. Each user has an
// index set listing the keys they own; Sweep prunes members that expired.
type RedisStore struct {
	client    *redis.Client
	namespace string
}

// NewRedisStore creates a store under the default key namespace
func NewRedisStore(client *redis.Client) *RedisStore {
	return NewRedisStoreWithNamespace(client, defaultNamespace)
}

// NewRedisStoreWithNamespace isolates keys under namespace, e.g. per environment
func NewRedisStoreWithNamespace(client *redis.Client, namespace string) *RedisStore {
	return &RedisStore{client: client, namespace: namespace}
}

func (s *RedisStore) entryKey(key string) string {
	return s.namespace + ":entry:" + key
}

func (s *RedisStore) indexKey(userID int64) string {
	return fmt.Sprintf("%s:owner:%d", s.namespace, userID)
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, s.entryKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", key, database.Classify(err))
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.entryKey(key), value, ttl)
		for _, owner := range Owners(key) {
			pipe.SAdd(ctx, s.indexKey(owner), key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache set %s: %w", key, database.Classify(err))
	}
	return nil
}

func (s *RedisStore) InvalidateUser(ctx context.Context, userID int64) (int, error) {
	index := s.indexKey(userID)
	keys, err := s.client.SMembers(ctx, index).Result()
	if err != nil {
		return 0, fmt.Errorf("cache index %d: %w", userID, database.Classify(err))
	}

	entryKeys := make([]string, 0, len(keys))
	for _, key := range keys {
		entryKeys = append(entryKeys, s.entryKey(key))
	}

	var deleted *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(entryKeys) > 0 {
			deleted = pipe.Del(ctx, entryKeys...)
		}
		pipe.Del(ctx, index)
		// the partner's index would otherwise keep pointing at dropped pairs
		for _, key := range keys {
			for _, owner := range Owners(key) {
				if owner != userID {
					pipe.SRem(ctx, s.indexKey(owner), key)
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("cache invalidate %d: %w", userID, database.Classify(err))
	}
	if deleted == nil {
		return 0, nil
	}
	return int(deleted.Val()), nil
}

// Sweep removes index members whose entries Redis has already expired.
// The count is of stale index references, not entries.
func (s *RedisStore) Sweep(ctx context.Context) (int, error) {
	pruned := 0
	iter := s.client.Scan(ctx, 0, s.namespace+":owner:*", scanBatch).Iterator()
	for iter.Next(ctx) {
		index := iter.Val()
		keys, err := s.client.SMembers(ctx, index).Result()
		if err != nil {
			return pruned, fmt.Errorf("cache sweep %s: %w", index, database.Classify(err))
		}

		for _, key := range keys {
			exists, err := s.client.Exists(ctx, s.entryKey(key)).Result()
			if err != nil {
				return pruned, fmt.Errorf("cache sweep %s: %w", key, database.Classify(err))
			}
			if exists == 0 {
				if err := s.client.SRem(ctx, index, key).Err(); err != nil {
					return pruned, fmt.Errorf("cache sweep %s: %w", key, database.Classify(err))
				}
				pruned++
			}
		}
	}
	if err := iter.Err(); err != nil {
		return pruned, fmt.Errorf("cache sweep: %w", database.Classify(err))
	}
	return pruned, nil
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	n := 0
	iter := s.client.Scan(ctx, 0, s.namespace+":entry:*", scanBatch).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("cache len: %w", database.Classify(err))
	}
	return n, nil
}
