// Package store wraps the KV backend operations the authoritative
// filters need: hash field lookup (LocalDB), set membership (DenySet,
// AllowSet), and the active-probe filter's queue/classification sets.
// It is grounded on original_source/Plugins/Authoritative.py, which
// drives aioredis the same way (hget/sismember/sadd/spop/smembers),
// backed here by github.com/go-redis/redis/v8 — picked because the
// spec's AuthoritativeRecord shapes (§3) are literally Redis hash and
// set semantics.
package store

import (
	"context"

	"github.com/go-redis/redis/v8"
)

// Store is the subset of Redis commands the filters use. It is safe
// for concurrent use by every filter sharing one client, matching
// spec §5's "shared resources" requirement.
type Store interface {
	// HGet returns a hash field's value. found is false on a cache
	// miss (redis.Nil), not on error.
	HGet(ctx context.Context, key, field string) (value string, found bool, err error)
	// SIsMember reports set membership.
	SIsMember(ctx context.Context, key, member string) (found bool, err error)
	// SAdd adds members to a set.
	SAdd(ctx context.Context, key string, members ...string) error
	// SPop removes and returns an arbitrary set member, or found=false
	// if the set is empty.
	SPop(ctx context.Context, key string) (member string, found bool, err error)
	// SMembers returns every member of a set.
	SMembers(ctx context.Context, key string) ([]string, error)
	// Close releases the underlying connection pool.
	Close() error
}

// RedisStore adapts a *redis.Client to Store.
type RedisStore struct {
	Client *redis.Client
}

// NewRedisStore dials uri (a redis:// URI as produced by the config
// registry's redis_uri option) and returns a ready-to-use Store.
func NewRedisStore(uri string) (*RedisStore, error) {
	opt, err := redis.ParseURL(uri)
	if err != nil {
		return nil, err
	}
	return &RedisStore{Client: redis.NewClient(opt)}, nil
}

func (s *RedisStore) HGet(ctx context.Context, key, field string) (string, bool, error) {
	v, err := s.Client.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) SIsMember(ctx context.Context, key, member string) (bool, error) {
	return s.Client.SIsMember(ctx, key, member).Result()
}

func (s *RedisStore) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return s.Client.SAdd(ctx, key, args...).Err()
}

func (s *RedisStore) SPop(ctx context.Context, key string) (string, bool, error) {
	v, err := s.Client.SPop(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	return s.Client.SMembers(ctx, key).Result()
}

func (s *RedisStore) Close() error {
	return s.Client.Close()
}
