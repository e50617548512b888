// Package cache keeps expensive lookups, such as the account details, for a
// bounded time. Freshness is judged against an injectable clock so callers
// can test expiry without sleeping.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultTTL is how long a cached value stays fresh.
const DefaultTTL = 5 * time.Minute

// ErrMiss is returned by a Store that has no entry for a key.
var ErrMiss = errors.New("cache miss")

// Clock tells the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Entry is a stored value together with the time it was stored.
type Entry struct {
	Value    json.RawMessage `json:"value"`
	StoredAt time.Time       `json:"stored_at"`
}

// Store persists entries. Get returns ErrMiss for unknown keys. ttl is a
// hint for stores that can expire entries on their own.
type Store interface {
	Get(ctx context.Context, key string) (Entry, error)
	Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Loader produces a fresh value on a miss.
type Loader[T any] func(ctx context.Context) (T, error)

// Cache is a typed read-through cache over a Store.
type Cache[T any] struct {
	store  Store
	clock  Clock
	ttl    time.Duration
	logger *zap.Logger
}

// New returns a cache. A nil clock uses the wall clock and ttl <= 0 uses
// DefaultTTL.
func New[T any](store Store, clock Clock, ttl time.Duration, logger *zap.Logger) *Cache[T] {
	if clock == nil {
		clock = SystemClock{}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache[T]{store: store, clock: clock, ttl: ttl, logger: logger}
}

// Get returns the cached value for key when it is younger than the TTL and
// force is false. Otherwise it calls load and stores the result. Store
// failures are logged and never fail the call.
func (c *Cache[T]) Get(ctx context.Context, key string, force bool, load Loader[T]) (T, error) {
	if !force {
		if v, ok := c.lookup(ctx, key); ok {
			return v, nil
		}
	}

	v, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	c.put(ctx, key, v)
	return v, nil
}

// Invalidate drops key from the store.
func (c *Cache[T]) Invalidate(ctx context.Context, key string) error {
	if err := c.store.Delete(ctx, key); err != nil && !errors.Is(err, ErrMiss) {
		return fmt.Errorf("failed to invalidate %s: %w", key, err)
	}
	return nil
}

func (c *Cache[T]) lookup(ctx context.Context, key string) (T, bool) {
	var zero T

	entry, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		}
		return zero, false
	}

	age := c.clock.Now().Sub(entry.StoredAt)
	if age < 0 || age >= c.ttl {
		return zero, false
	}

	var v T
	if err := json.Unmarshal(entry.Value, &v); err != nil {
		c.logger.Warn("Cache entry is corrupt", zap.String("key", key), zap.Error(err))
		return zero, false
	}
	return v, true
}

func (c *Cache[T]) put(ctx context.Context, key string, v T) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("Cache value cannot be encoded", zap.String("key", key), zap.Error(err))
		return
	}

	entry := Entry{Value: data, StoredAt: c.clock.Now()}
	if err := c.store.Set(ctx, key, entry, c.ttl); err != nil {
		c.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}
