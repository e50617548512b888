package timeseries

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func f(v float64) *float64 { return &v }

func points(n int) []Point {
	out := make([]Point, n)
	for i := range out {
		out[i] = Point{Timestamp: int64(i), ResponseTime: f(float64(i))}
	}
	return out
}

func TestDownsample(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		maxPoints int
		want      int
	}{
		{name: "empty", n: 0, maxPoints: 10, want: 0},
		{name: "under budget", n: 5, maxPoints: 10, want: 5},
		{name: "exact budget", n: 10, maxPoints: 10, want: 10},
		{name: "stride two", n: 11, maxPoints: 10, want: 6},
		{name: "default budget", n: 2500, maxPoints: 0, want: 834},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Downsample(points(tt.n), tt.maxPoints)
			assert.Len(t, got, tt.want)
			if tt.n > 0 {
				assert.Equal(t, int64(0), got[0].Timestamp)
			}
		})
	}
}

func TestDownsample_DoesNotAlias(t *testing.T) {
	in := points(3)
	out := Downsample(in, 10)
	out[0].Timestamp = 99
	assert.Equal(t, int64(0), in[0].Timestamp)
}

func TestDownsample_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("never exceeds the budget and keeps order", prop.ForAll(
		func(n, maxPoints int) bool {
			got := Downsample(points(n), maxPoints)
			if len(got) > maxPoints {
				return false
			}
			if n > 0 && got[0].Timestamp != 0 {
				return false
			}
			for i := 1; i < len(got); i++ {
				if got[i].Timestamp <= got[i-1].Timestamp {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 5000),
		gen.IntRange(1, 1200),
	))

	properties.TestingRun(t)
}

func TestAggregate(t *testing.T) {
	series := map[string]Series{
		"us-east":  {Avg: f(100), Max: f(300), Min: f(20)},
		"eu-west":  {Avg: f(200), Max: f(500), Min: f(50)},
		"ap-south": {},
	}

	stats := Aggregate(series, nil)
	assert.InDelta(t, 150.0, stats.Avg, 1e-9)
	assert.Equal(t, 500.0, stats.Max)
	assert.Equal(t, 20.0, stats.Min)

	v := NewVisibility()
	v.Toggle("eu-west")
	stats = Aggregate(series, v)
	assert.InDelta(t, 100.0, stats.Avg, 1e-9)
	assert.Equal(t, 300.0, stats.Max)
	assert.Equal(t, 20.0, stats.Min)
}

func TestAggregate_NothingVisible(t *testing.T) {
	series := map[string]Series{"us-east": {Avg: f(100), Max: f(300), Min: f(20)}}
	v := NewVisibility()
	v.Toggle("us-east")

	assert.Equal(t, Stats{}, Aggregate(series, v))
	assert.Equal(t, Stats{}, Aggregate(nil, nil))
}

func TestVisibility_Toggle(t *testing.T) {
	v := NewVisibility()
	assert.True(t, v.IsVisible("a"))

	assert.False(t, v.Toggle("a"))
	assert.False(t, v.IsVisible("a"))
	assert.Equal(t, []string{"a"}, v.Hidden())

	assert.True(t, v.Toggle("a"))
	assert.True(t, v.IsVisible("a"))
	assert.Empty(t, v.Hidden())

	v.Toggle("b")
	assert.Equal(t, []string{"a", "c"}, v.Filter([]string{"a", "b", "c"}))

	var zero Visibility
	assert.False(t, zero.Toggle("x"))
}

func TestMerge(t *testing.T) {
	series := map[string]Series{
		"a": {ChartData: []Point{{Timestamp: 10, ResponseTime: f(1)}, {Timestamp: 20, ResponseTime: f(2)}}},
		"b": {ChartData: []Point{{Timestamp: 20, ResponseTime: f(3)}, {Timestamp: 30}}},
	}

	rows := Merge(series)
	require.Len(t, rows, 3)

	assert.Equal(t, int64(10), rows[0].Timestamp)
	assert.Equal(t, 1.0, *rows[0].Values["a"])
	assert.Nil(t, rows[0].Values["b"])

	assert.Equal(t, 2.0, *rows[1].Values["a"])
	assert.Equal(t, 3.0, *rows[1].Values["b"])

	assert.Nil(t, rows[2].Values["a"])
	assert.Nil(t, rows[2].Values["b"])
}

func TestRangeWindow(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	from, to := RangeWindow("7d", now)
	assert.Equal(t, now, to)
	assert.Equal(t, now.Add(-7*24*time.Hour), from)

	from, _ = RangeWindow("bogus", now)
	assert.Equal(t, now.Add(-24*time.Hour), from)
}

func TestAccumulator_GenerationGuard(t *testing.T) {
	var snapshots []Snapshot
	acc := NewAccumulator(func(s Snapshot) { snapshots = append(snapshots, s) })

	old := acc.Reset([]string{"a", "b"})
	current := acc.Reset([]string{"a"})
	assert.Greater(t, current, old)

	assert.False(t, acc.Add(old, "a", Series{Avg: f(1)}))
	assert.False(t, acc.Add(current, "b", Series{Avg: f(1)}))
	assert.True(t, acc.Add(current, "a", Series{Avg: f(2)}))

	snap := acc.Snapshot()
	assert.True(t, snap.Complete)
	assert.Empty(t, snap.Pending)
	require.Contains(t, snap.Series, "a")
	assert.Equal(t, 2.0, *snap.Series["a"].Avg)

	// two resets and one accepted add
	assert.Len(t, snapshots, 3)
}

func TestAccumulator_ReplaceNotDuplicate(t *testing.T) {
	acc := NewAccumulator(nil)
	g := acc.Reset([]string{"a", "b"})

	acc.Add(g, "a", Series{Avg: f(1)})
	acc.Add(g, "a", Series{Avg: f(5)})

	snap := acc.Snapshot()
	assert.Len(t, snap.Series, 1)
	assert.Equal(t, 5.0, *snap.Series["a"].Avg)
	assert.Equal(t, []string{"b"}, snap.Pending)
	assert.False(t, snap.Complete)
}

func TestAccumulator_Fail(t *testing.T) {
	acc := NewAccumulator(nil)
	g := acc.Reset([]string{"a", "b"})

	assert.True(t, acc.Fail(g, "a", errors.New("boom")))
	assert.True(t, acc.Add(g, "b", Series{}))
	assert.False(t, acc.Fail(g, "b", errors.New("late")))

	snap := acc.Snapshot()
	assert.True(t, snap.Complete)
	assert.Equal(t, map[string]string{"a": "boom"}, snap.Failed)
	assert.Contains(t, snap.Series, "b")
}

type fakeFetcher struct {
	mu     sync.Mutex
	calls  []string
	fail   map[string]error
	hold   map[string]bool
	called chan string
}

func (f *fakeFetcher) ResponseTime(ctx context.Context, monitorID, region string, from, to time.Time) (Series, error) {
	f.mu.Lock()
	f.calls = append(f.calls, region)
	f.mu.Unlock()

	if f.called != nil {
		f.called <- region
	}
	if f.hold[region] {
		<-ctx.Done()
		return Series{}, ctx.Err()
	}
	if err := f.fail[region]; err != nil {
		return Series{}, err
	}
	avg := float64(len(region))
	return Series{Avg: &avg, ChartData: points(3)}, nil
}

func TestLoader_Sequential(t *testing.T) {
	fetcher := &fakeFetcher{fail: map[string]error{"eu": errors.New("unavailable")}}
	loader := NewLoader(fetcher, NewAccumulator(nil), zap.NewNop(), 0)

	snap, err := loader.Load(context.Background(), Window{MonitorID: "m1", Regions: []string{"us", "eu", "ap-south"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"us", "eu", "ap-south"}, fetcher.calls)
	assert.True(t, snap.Complete)
	assert.Len(t, snap.Series, 2)
	assert.Equal(t, "unavailable", snap.Failed["eu"])
}

func TestLoader_Parallel(t *testing.T) {
	fetcher := &fakeFetcher{}
	loader := NewLoader(fetcher, NewAccumulator(nil), zap.NewNop(), 4)

	regions := []string{"a", "b", "c", "d", "e", "f"}
	snap, err := loader.Load(context.Background(), Window{MonitorID: "m1", Regions: regions})
	require.NoError(t, err)

	assert.ElementsMatch(t, regions, fetcher.calls)
	assert.Len(t, snap.Series, len(regions))
	assert.True(t, snap.Complete)
}

func TestLoader_SupersededLoad(t *testing.T) {
	fetcher := &fakeFetcher{hold: map[string]bool{"old": true}, called: make(chan string, 4)}
	acc := NewAccumulator(nil)
	loader := NewLoader(fetcher, acc, zap.NewNop(), 0)

	errCh := make(chan error, 1)
	go func() {
		_, err := loader.Load(context.Background(), Window{MonitorID: "m1", Regions: []string{"old"}})
		errCh <- err
	}()
	<-fetcher.called

	snap, err := loader.Load(context.Background(), Window{MonitorID: "m1", Regions: []string{"new"}})
	require.NoError(t, err)

	assert.ErrorIs(t, <-errCh, ErrSuperseded)
	assert.Contains(t, snap.Series, "new")
	assert.NotContains(t, snap.Series, "old")
}

func TestLoader_ConcurrentLoadsKeepTheirWindow(t *testing.T) {
	loader := NewLoader(&fakeFetcher{}, NewAccumulator(nil), zap.NewNop(), 2)

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			regions := []string{"shared", string(rune('a' + i%26))}

			snap, err := loader.Load(context.Background(), Window{MonitorID: "m1", Regions: regions})
			if errors.Is(err, ErrSuperseded) {
				assert.Empty(t, snap.Series)
				return
			}
			for region := range snap.Series {
				assert.Contains(t, regions, region)
			}
			for _, region := range snap.Pending {
				assert.Contains(t, regions, region)
			}
		}(i)
	}
	wg.Wait()
}
