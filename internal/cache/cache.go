// Package cache provides the read-path cache with memory and redis backends.
//
// The dashboard's data reads were cached for an hour; this package keeps
// that behavior server-side. Memory is the default (single instance),
// redis serves multi-replica deployments.
package cache

import (
	"context"
	"errors"
	"time"
)

// Client is the cache surface consumed by the HTTP layer.
type Client interface {
	// Get returns the cached payload. ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a payload. ttl 0 means the backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key (no error when absent).
	Delete(ctx context.Context, key string) error

	// Ping checks the backend connection.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// ErrNotFound signals a cache miss.
var ErrNotFound = errors.New("cache: key not found")

// Config selects and tunes a backend.
type Config struct {
	Kind       string // "memory" | "redis"
	RedisAddr  string
	RedisDB    int
	Prefix     string
	DefaultTTL time.Duration
}

// New builds a Client from config. Unknown kinds fall back to memory.
func New(cfg Config) (Client, error) {
	switch cfg.Kind {
	case "redis":
		return NewRedis(cfg), nil
	case "memory", "":
		return NewMemory(cfg.DefaultTTL), nil
	default:
		return NewMemory(cfg.DefaultTTL), nil
	}
}
