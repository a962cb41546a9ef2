// Package store persists paper positions behind a small key-value port with
// memory, file and Redis backends.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("store: key not found")

// KV is the only persistence contract the engine needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys lists every key starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend string // memory | file | redis
	Path    string
	Redis   RedisConfig
}

// Open builds the configured backend.
func Open(ctx context.Context, cfg Config) (KV, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return NewMemoryKV(), nil
	case "file":
		return OpenFileKV(cfg.Path)
	case "redis":
		return NewRedisKV(ctx, cfg.Redis)
	}
	return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
}
