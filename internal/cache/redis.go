package cache

import (
	"context"
	"errors"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

type redisCache struct {
	c          *rdb.Client
	prefix     string
	defaultTTL time.Duration
}

// NewRedis builds a redis-backed cache. Keys get the configured prefix.
func NewRedis(cfg Config) Client {
	ttl := cfg.DefaultTTL
	if ttl == 0 {
		ttl = time.Hour
	}
	return &redisCache{
		c:          rdb.NewClient(&rdb.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB}),
		prefix:     cfg.Prefix,
		defaultTTL: ttl,
	}
}

func (r *redisCache) key(k string) string { return r.prefix + k }

func (r *redisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.c.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, rdb.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = r.defaultTTL
	}
	return r.c.Set(ctx, r.key(key), value, ttl).Err()
}

func (r *redisCache) Delete(ctx context.Context, key string) error {
	return r.c.Del(ctx, r.key(key)).Err()
}

func (r *redisCache) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }
func (r *redisCache) Close() error                   { return r.c.Close() }
