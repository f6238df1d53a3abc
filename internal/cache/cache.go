// Package cache is the process-wide key/value layer the repository reads
// through. Entries are opaque bytes with a TTL; the relational store stays the
// source of truth, so every backend error degrades to a miss.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Producer computes the value for a missing key. It must be an idempotent
// read: concurrent misses on the same key may each call it.
type Producer func(ctx context.Context) ([]byte, error)

// Cache is implemented by Memory, Redis and Nop.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value for ttl. A ttl <= 0 stores without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
	// Remember returns the cached value or computes, stores and returns it.
	// A producer error is returned as-is and nothing is stored.
	Remember(ctx context.Context, key string, ttl time.Duration, produce Producer) ([]byte, error)
}

func remember(ctx context.Context, c Cache, key string, ttl time.Duration, produce Producer) ([]byte, error) {
	if v, err := c.Get(ctx, key); err == nil {
		return v, nil
	}
	v, err := produce(ctx)
	if err != nil {
		return nil, err
	}
	// A failed Set only costs the next reader a miss.
	_ = c.Set(ctx, key, v, ttl)
	return v, nil
}

// Nop never stores anything. Useful to switch caching off.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, error)              { return nil, ErrMiss }
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Nop) Delete(context.Context, ...string) error                  { return nil }
func (Nop) DeletePrefix(context.Context, string) error               { return nil }
func (Nop) Remember(ctx context.Context, _ string, _ time.Duration, produce Producer) ([]byte, error) {
	return produce(ctx)
}
