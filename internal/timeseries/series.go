// Package timeseries aggregates per-region response time series for charts.
package timeseries

import (
	"math"
	"sort"
	"time"
)

// DefaultMaxPoints is the chart point budget per series.
const DefaultMaxPoints = 1000

// Point is one response time sample. ResponseTime is nil when the probe got
// no answer in that slot.
type Point struct {
	Timestamp    int64    `json:"timestamp"`
	ResponseTime *float64 `json:"response_time"`
}

// Series is the response time history of one region over a time window.
type Series struct {
	ChartData []Point  `json:"chart_data"`
	Avg       *float64 `json:"avg_response_time"`
	Max       *float64 `json:"max_response_time"`
	Min       *float64 `json:"min_response_time"`
}

// Stats are the aggregate figures shown above the chart.
type Stats struct {
	Avg float64 `json:"avg"`
	Max float64 `json:"max"`
	Min float64 `json:"min"`
}

// Downsample keeps every ceil(len/maxPoints)-th point. The first point is
// always kept and order is preserved. maxPoints <= 0 uses DefaultMaxPoints.
func Downsample(points []Point, maxPoints int) []Point {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}

	if len(points) <= maxPoints {
		out := make([]Point, len(points))
		copy(out, points)
		return out
	}

	stride := (len(points) + maxPoints - 1) / maxPoints
	out := make([]Point, 0, (len(points)+stride-1)/stride)
	for i := 0; i < len(points); i += stride {
		out = append(out, points[i])
	}
	return out
}

// Downsampled returns a copy of s with its chart data down-sampled. The
// precomputed stats are kept as they describe the full window.
func (s Series) Downsampled(maxPoints int) Series {
	s.ChartData = Downsample(s.ChartData, maxPoints)
	return s
}

// Aggregate computes stats over the regions of series that are visible.
// Regions without figures are skipped; with nothing to aggregate every stat
// is 0.
func Aggregate(series map[string]Series, visible *Visibility) Stats {
	var (
		sum      float64
		withAvg  int
		max      = math.Inf(-1)
		min      = math.Inf(1)
		foundMax bool
	)

	for _, id := range sortedKeys(series) {
		if !visible.IsVisible(id) {
			continue
		}
		s := series[id]

		if v, ok := finite(s.Avg); ok {
			sum += v
			withAvg++
		}
		if v, ok := finite(s.Max); ok && v > max {
			max = v
			foundMax = true
		}
		if v, ok := finite(s.Min); ok && v < min {
			min = v
		}
	}

	var stats Stats
	if withAvg > 0 {
		stats.Avg = sum / float64(withAvg)
	}
	if foundMax {
		stats.Max = max
	}
	if !math.IsInf(min, 1) {
		stats.Min = min
	}
	return stats
}

// Row is one timestamp across every region; regions without a sample at
// that timestamp hold nil.
type Row struct {
	Timestamp int64               `json:"timestamp"`
	Values    map[string]*float64 `json:"values"`
}

// Merge aligns the chart data of several regions by timestamp.
func Merge(series map[string]Series) []Row {
	regions := sortedKeys(series)
	byTimestamp := make(map[int64]map[string]*float64)

	for _, id := range regions {
		for _, p := range series[id].ChartData {
			values, ok := byTimestamp[p.Timestamp]
			if !ok {
				values = make(map[string]*float64, len(regions))
				for _, r := range regions {
					values[r] = nil
				}
				byTimestamp[p.Timestamp] = values
			}
			values[id] = p.ResponseTime
		}
	}

	rows := make([]Row, 0, len(byTimestamp))
	for ts, values := range byTimestamp {
		rows = append(rows, Row{Timestamp: ts, Values: values})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Timestamp < rows[j].Timestamp })
	return rows
}

// RangeWindow converts a range parameter (1h, 24h, 7d, 30d) into a window
// ending at now. Unknown values fall back to 24h.
func RangeWindow(rangeParam string, now time.Time) (time.Time, time.Time) {
	var start time.Time

	switch rangeParam {
	case "1h":
		start = now.Add(-1 * time.Hour)
	case "24h":
		start = now.Add(-24 * time.Hour)
	case "7d":
		start = now.Add(-7 * 24 * time.Hour)
	case "30d":
		start = now.Add(-30 * 24 * time.Hour)
	default:
		start = now.Add(-24 * time.Hour)
	}

	return start, now
}

func finite(v *float64) (float64, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	return *v, true
}

func sortedKeys(series map[string]Series) []string {
	keys := make([]string, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
