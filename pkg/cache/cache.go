// Package cache stores rendered artifacts keyed by a hash of their input.
//
// Graphviz layout of a few thousand nodes takes long enough that repeated
// requests for an unchanged graph should not pay for it twice. The HTTP
// server keeps rendered SVGs in a [MemoryCache] or, when several viewers
// share one feed, in a [RedisCache]; the CLI keeps them in a [FileCache].
//
// All implementations are safe for concurrent use.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry expiry.
type Cache interface {
	// Get returns the value for key. A missing or expired entry is a miss,
	// not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// Prefixed returns a view of c that prepends prefix to every key, so
// unrelated artifacts can share one backend.
func Prefixed(c Cache, prefix string) Cache {
	if p, ok := c.(*prefixed); ok {
		return &prefixed{inner: p.inner, prefix: p.prefix + prefix}
	}
	return &prefixed{inner: c, prefix: prefix}
}

type prefixed struct {
	inner  Cache
	prefix string
}

func (p *prefixed) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return p.inner.Get(ctx, p.prefix+key)
}

func (p *prefixed) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return p.inner.Set(ctx, p.prefix+key, data, ttl)
}

func (p *prefixed) Delete(ctx context.Context, key string) error {
	return p.inner.Delete(ctx, p.prefix+key)
}

// Close closes the underlying cache.
func (p *prefixed) Close() error { return p.inner.Close() }

// GetOrCompute returns the cached value for key, or calls compute, stores
// its result and returns it. Cache read and write failures are not fatal;
// compute's error is.
func GetOrCompute(ctx context.Context, c Cache, key string, ttl time.Duration, compute func() ([]byte, error)) ([]byte, bool, error) {
	if data, ok, err := c.Get(ctx, key); err == nil && ok {
		return data, true, nil
	}
	data, err := compute()
	if err != nil {
		return nil, false, err
	}
	_ = c.Set(ctx, key, data, ttl)
	return data, false, nil
}
