package cache

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type account struct {
	Email string `json:"email"`
	Plan  string `json:"plan"`
}

type counter struct {
	calls int
	value account
	err   error
}

func (c *counter) load(context.Context) (account, error) {
	c.calls++
	return c.value, c.err
}

func newTestCache(store Store) (*Cache[account], *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return New[account](store, clock, DefaultTTL, zap.NewNop()), clock
}

func TestCache_FreshWithinTTL(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache(NewMemoryStore())
	src := &counter{value: account{Email: "a@example.com", Plan: "pro"}}

	v, err := c.Get(ctx, "user", false, src.load)
	require.NoError(t, err)
	assert.Equal(t, "pro", v.Plan)

	clock.Advance(4*time.Minute + 59*time.Second)
	src.value.Plan = "trial"

	v, err = c.Get(ctx, "user", false, src.load)
	require.NoError(t, err)
	assert.Equal(t, "pro", v.Plan)
	assert.Equal(t, 1, src.calls)
}

func TestCache_StaleAfterTTL(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache(NewMemoryStore())
	src := &counter{value: account{Plan: "pro"}}

	_, err := c.Get(ctx, "user", false, src.load)
	require.NoError(t, err)

	clock.Advance(DefaultTTL)
	src.value.Plan = "trial"

	v, err := c.Get(ctx, "user", false, src.load)
	require.NoError(t, err)
	assert.Equal(t, "trial", v.Plan)
	assert.Equal(t, 2, src.calls)
}

func TestCache_ForceRefresh(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(NewMemoryStore())
	src := &counter{value: account{Plan: "pro"}}

	_, err := c.Get(ctx, "user", false, src.load)
	require.NoError(t, err)

	src.value.Plan = "enterprise"
	v, err := c.Get(ctx, "user", true, src.load)
	require.NoError(t, err)
	assert.Equal(t, "enterprise", v.Plan)

	v, err = c.Get(ctx, "user", false, src.load)
	require.NoError(t, err)
	assert.Equal(t, "enterprise", v.Plan)
	assert.Equal(t, 2, src.calls)
}

func TestCache_LoadErrorNotCached(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(NewMemoryStore())
	src := &counter{err: errors.New("upstream down")}

	_, err := c.Get(ctx, "user", false, src.load)
	assert.EqualError(t, err, "upstream down")

	src.err = nil
	src.value = account{Plan: "pro"}
	v, err := c.Get(ctx, "user", false, src.load)
	require.NoError(t, err)
	assert.Equal(t, "pro", v.Plan)
	assert.Equal(t, 2, src.calls)
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (Entry, error) {
	return Entry{}, errors.New("connection refused")
}

func (brokenStore) Set(context.Context, string, Entry, time.Duration) error {
	return errors.New("connection refused")
}

func (brokenStore) Delete(context.Context, string) error {
	return errors.New("connection refused")
}

func TestCache_StoreFailureFallsBackToLoad(t *testing.T) {
	c, _ := newTestCache(brokenStore{})
	src := &counter{value: account{Plan: "pro"}}

	v, err := c.Get(context.Background(), "user", false, src.load)
	require.NoError(t, err)
	assert.Equal(t, "pro", v.Plan)

	assert.Error(t, c.Invalidate(context.Background(), "user"))
}

func TestCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(NewMemoryStore())
	src := &counter{value: account{Plan: "pro"}}

	_, err := c.Get(ctx, "user", false, src.load)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, "user"))

	_, err = c.Get(ctx, "user", false, src.load)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	ctx := context.Background()
	client := NewRedisClient(url)
	defer client.Close()

	store := NewRedisStore(client, "test:cache:")
	c, clock := newTestCache(store)
	src := &counter{value: account{Plan: "pro"}}

	require.NoError(t, c.Invalidate(ctx, "user"))

	_, err := c.Get(ctx, "user", false, src.load)
	require.NoError(t, err)
	_, err = c.Get(ctx, "user", false, src.load)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	clock.Advance(DefaultTTL)
	_, err = c.Get(ctx, "user", false, src.load)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)
}
