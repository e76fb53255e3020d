package redisad

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"trackfeed/internal/adapters/observability"
)

// Cache is the durable client cache: origin-wide, namespaced string keys
// (`content:...`, `reaction:...`, `liked:...`), JSON-serialized values that
// only this engine understands. Survives reloads, which is what makes the
// pending-reaction recovery path work.
type Cache struct {
	c      *redis.Client
	prefix string
}

// New connects a cache. prefix is prepended to every key, isolating this
// surface from other tenants of the same redis.
func New(addr, pass string, db int, prefix string) *Cache {
	return &Cache{
		c:      redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}),
		prefix: prefix,
	}
}

func (r *Cache) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }

func (r *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	v, err := r.c.Get(ctx, r.prefix+key).Bytes()
	if err == redis.Nil {
		observability.ObserveCache("client", "miss")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	observability.ObserveCache("client", "hit")
	return true, json.Unmarshal(v, dst)
}

// Set persists v as JSON. ttlSec <= 0 stores without expiry, which the
// reaction marks rely on.
func (r *Cache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, _ := json.Marshal(v)
	observability.ObserveCache("client", "set")
	var ttl time.Duration
	if ttlSec > 0 {
		ttl = time.Duration(ttlSec) * time.Second
	}
	return r.c.Set(ctx, r.prefix+key, b, ttl).Err()
}

func (r *Cache) Del(ctx context.Context, key string) error {
	observability.ObserveCache("client", "del")
	return r.c.Del(ctx, r.prefix+key).Err()
}
