package query

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/authapp/zitadel/internal/zerrors"
)

// Cache is the read-through cache OrgByID and UserByID consult before
// hitting the projection tables, per SPEC_FULL.md §4.5 (get_by_id
// results are cacheable; searches are not). No teacher file wires
// redis directly, but go-redis is a dependency of the retrieved pack
// (DESIGN.md's internal/query entry) and a read-through cache in front
// of get_by_id is the natural place to exercise it.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// RedisCache implements Cache on top of a *redis.Client.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache wires a go-redis client as the Query Façade's
// read-through cache with a fixed TTL for every entry.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, zerrors.ThrowTransientStorage(err, "QUERY-Cach1", "Errors.Internal")
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, zerrors.ThrowInternal(err, "QUERY-Cach2", "Errors.Internal")
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return zerrors.ThrowInternal(err, "QUERY-Cach3", "Errors.Internal")
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return zerrors.ThrowTransientStorage(err, "QUERY-Cach4", "Errors.Internal")
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return zerrors.ThrowTransientStorage(err, "QUERY-Cach5", "Errors.Internal")
	}
	return nil
}
