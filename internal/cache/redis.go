package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const quoteTTL = 24 * time.Hour

// RedisCache backs the quote cache with Redis. Entries expire after a day;
// quotes are deterministic so staleness only costs a recomputation.
type RedisCache struct {
	client *redis.Client
	ctx    context.Context
}

func NewRedisCache(addr string) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &RedisCache{
		client: rdb,
		ctx:    context.Background(),
	}
}

func (r *RedisCache) Get(key string) (string, bool) {
	val, err := r.client.Get(r.ctx, key).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

func (r *RedisCache) Set(key string, value string) error {
	return r.client.Set(r.ctx, key, value, quoteTTL).Err()
}
