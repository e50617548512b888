package queue

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leozw/uptime-dashboard/internal/cache"
	"github.com/leozw/uptime-dashboard/internal/checks"
)

func TestMemoryQueue_Order(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	first := NewSiteCheck("a", "https://a.example.com", []checks.Kind{checks.KindUptime})
	second := NewSiteCheck("b", "https://b.example.com", nil)
	urgent := NewSiteCheck("c", "https://c.example.com", nil)
	urgent.Priority = 1

	require.NoError(t, q.Push(ctx, first))
	require.NoError(t, q.Push(ctx, second))
	require.NoError(t, q.Push(ctx, urgent))

	n, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	var got []string
	for i := 0; i < 3; i++ {
		job, err := q.Pop(ctx, time.Second)
		require.NoError(t, err)
		got = append(got, job.SiteID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, got)
}

func TestMemoryQueue_Timeout(t *testing.T) {
	q := NewMemoryQueue()
	_, err := q.Pop(context.Background(), 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestMemoryQueue_Cancelled(t *testing.T) {
	q := NewMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Pop(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryQueue_BlockingPop(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan string, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := q.Pop(ctx, 2*time.Second)
			if err == nil {
				results <- job.SiteID
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Push(ctx, NewSiteCheck("x", "https://x.example.com", nil)))
	require.NoError(t, q.Push(ctx, NewSiteCheck("y", "https://y.example.com", nil)))
	wg.Wait()
	close(results)

	var got []string
	for id := range results {
		got = append(got, id)
	}
	assert.ElementsMatch(t, []string{"x", "y"}, got)
}

func TestRedisQueue(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	client := cache.NewRedisClient(url)
	defer client.Close()

	ctx := context.Background()
	q := NewRedisQueue(client, "test_site_checks")
	require.NoError(t, client.Del(ctx, "test_site_checks").Err())

	job := NewSiteCheck("site-1", "https://example.com", []checks.Kind{checks.KindSSL})
	require.NoError(t, q.Push(ctx, job))

	n, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, []checks.Kind{checks.KindSSL}, got.Kinds)

	_, err = q.Pop(ctx, 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}
