package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/miradorstack/mirador-drift/internal/config"
)

// Provider defines the cache operations used for diagnostics and the run lock.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
	Close() error
}

// ErrCacheMiss signals that a cache key was not found.
var ErrCacheMiss = errors.New("cache miss")

// New returns the Valkey provider when it is enabled and reachable, an
// in-memory provider when it is enabled without an address, and the noop
// provider otherwise.
func New(cfg config.CacheConfig, logger *slog.Logger) Provider {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled {
		return NoopProvider{}
	}
	if cfg.Addr == "" {
		return NewMemoryProvider()
	}
	provider, err := NewValkeyProvider(ValkeyConfig{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   cfg.MaxRetries,
		TLS:          cfg.TLS,
	})
	if err != nil {
		logger.Warn("valkey cache unavailable, falling back to noop", slog.String("addr", cfg.Addr), slog.Any("error", err))
		return NoopProvider{}
	}
	return provider
}

// NoopProvider implements Provider but never stores data.
type NoopProvider struct{}

// Get always returns ErrCacheMiss.
func (NoopProvider) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheMiss
}

// Set discards the value.
func (NoopProvider) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

// SetNX reports success without storing anything, so locks always succeed.
func (NoopProvider) SetNX(context.Context, string, []byte, time.Duration) (bool, error) {
	return true, nil
}

func (NoopProvider) Del(context.Context, string) error { return nil }

func (NoopProvider) Close() error { return nil }
