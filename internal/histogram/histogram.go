// Package histogram turns uptime samples into the fixed-size colored bars
// of the uptime history strip.
package histogram

import (
	"fmt"
	"math"
	"time"
)

// Color classifies one bucket.
type Color string

const (
	ColorNoData  Color = "no-data"
	ColorUp      Color = "up"
	ColorDown    Color = "down"
	ColorPartial Color = "partial"
)

const (
	// DefaultSize is the number of buckets of the 24 hour strip.
	DefaultSize = 24
	// DefaultWidth is the time covered by one bucket.
	DefaultWidth = time.Hour
)

// Bucket is the uptime ratio of one time slot. Uptime is nil when the slot
// has no samples, which is distinct from 0 (down for the whole slot).
type Bucket struct {
	Timestamp int64    `json:"timestamp"`
	Uptime    *float64 `json:"uptime"`
}

// Cell is a bucket ready to draw.
type Cell struct {
	Timestamp int64    `json:"timestamp"`
	Uptime    *float64 `json:"uptime"`
	Color     Color    `json:"color"`
	Label     string   `json:"label"`
}

// Sample is one stored check outcome.
type Sample struct {
	CheckedAt time.Time `db:"checked_at"`
	Up        bool      `db:"up"`
}

// ColorOf classifies an uptime ratio.
func ColorOf(uptime *float64) Color {
	switch {
	case uptime == nil || math.IsNaN(*uptime):
		return ColorNoData
	case *uptime >= 1:
		return ColorUp
	case *uptime <= 0:
		return ColorDown
	default:
		return ColorPartial
	}
}

// Label renders an uptime ratio as a rounded percentage; no data reads "0%".
func Label(uptime *float64) string {
	if uptime == nil || math.IsNaN(*uptime) {
		return "0%"
	}
	return fmt.Sprintf("%d%%", int(math.Round(*uptime*100)))
}

// Render attaches color and label to every bucket.
func Render(buckets []Bucket) []Cell {
	cells := make([]Cell, len(buckets))
	for i, b := range buckets {
		cells[i] = Cell{
			Timestamp: b.Timestamp,
			Uptime:    b.Uptime,
			Color:     ColorOf(b.Uptime),
			Label:     Label(b.Uptime),
		}
	}
	return cells
}

// Build groups samples into size consecutive buckets of width, the last one
// ending at end. Samples outside the window are ignored. A bucket's uptime is
// the share of its samples that were up.
func Build(samples []Sample, end time.Time, size int, width time.Duration) []Bucket {
	if size <= 0 {
		size = DefaultSize
	}
	if width <= 0 {
		width = DefaultWidth
	}

	start := end.Add(-time.Duration(size) * width)
	total := make([]int, size)
	up := make([]int, size)

	for _, s := range samples {
		if s.CheckedAt.Before(start) || !s.CheckedAt.Before(end) {
			continue
		}
		i := int(s.CheckedAt.Sub(start) / width)
		if i >= size {
			i = size - 1
		}
		total[i]++
		if s.Up {
			up[i]++
		}
	}

	buckets := make([]Bucket, size)
	for i := range buckets {
		buckets[i].Timestamp = start.Add(time.Duration(i) * width).Unix()
		if total[i] == 0 {
			continue
		}
		ratio := float64(up[i]) / float64(total[i])
		buckets[i].Uptime = &ratio
	}
	return buckets
}
