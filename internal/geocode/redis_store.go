package geocode

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs the geocode cache with Redis so replicas share
// resolved addresses. Redis trouble degrades to cache misses.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(addr, password string, ttl time.Duration) *RedisStore {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisStore{client: c, ttl: ttl}
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool) {
	v, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	return v, true
}

func (r *RedisStore) Set(ctx context.Context, key, value string) {
	_ = r.client.Set(ctx, key, value, r.ttl).Err()
}
