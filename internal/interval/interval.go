// Package interval maps monitoring intervals onto a logarithmic slider.
package interval

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var ErrInvalidPartitions = errors.New("partitions must be strictly increasing")

// Partition is a labeled tick on the slider.
type Partition struct {
	Label   string `json:"label" mapstructure:"label"`
	Seconds int64  `json:"seconds" mapstructure:"seconds"`
}

// Tick is a partition positioned on a scale.
type Tick struct {
	Label    string  `json:"label"`
	Seconds  int64   `json:"seconds"`
	Position float64 `json:"position"`
	Disabled bool    `json:"disabled"`
}

// MonitoringPartitions are the ticks of the check interval slider.
var MonitoringPartitions = []Partition{
	{Label: "1m", Seconds: 60},
	{Label: "2m", Seconds: 120},
	{Label: "5m", Seconds: 300},
	{Label: "30m", Seconds: 1800},
	{Label: "1h", Seconds: 3600},
	{Label: "12h", Seconds: 43200},
	{Label: "24h", Seconds: 86400},
}

// ExpiryPartitions are the ticks of the expiry reminder slider.
var ExpiryPartitions = []Partition{
	{Label: "1d", Seconds: 86400},
	{Label: "3d", Seconds: 3 * 86400},
	{Label: "7d", Seconds: 7 * 86400},
	{Label: "14d", Seconds: 14 * 86400},
	{Label: "30d", Seconds: 30 * 86400},
	{Label: "60d", Seconds: 60 * 86400},
	{Label: "90d", Seconds: 90 * 86400},
}

// Validate checks that partitions are non-empty, positive and strictly
// increasing.
func Validate(partitions []Partition) error {
	if len(partitions) == 0 {
		return fmt.Errorf("%w: no partitions", ErrInvalidPartitions)
	}
	for i, p := range partitions {
		if p.Seconds <= 0 {
			return fmt.Errorf("%w: %q has non-positive seconds", ErrInvalidPartitions, p.Label)
		}
		if i > 0 && p.Seconds <= partitions[i-1].Seconds {
			return fmt.Errorf("%w: %q (%ds) after %q (%ds)",
				ErrInvalidPartitions, p.Label, p.Seconds, partitions[i-1].Label, partitions[i-1].Seconds)
		}
	}
	return nil
}

// Scale is a logarithmic mapping between a 0-100 slider position and a
// number of seconds in [Min, Max]. Floor is the plan minimum; computed
// values below it are replaced by it.
type Scale struct {
	Min   int64
	Max   int64
	Floor int64

	partitions []Partition
}

// NewScale builds a scale spanning the given partitions.
func NewScale(partitions []Partition, floor int64) (*Scale, error) {
	if err := Validate(partitions); err != nil {
		return nil, err
	}

	ps := make([]Partition, len(partitions))
	copy(ps, partitions)

	return &Scale{
		Min:        ps[0].Seconds,
		Max:        ps[len(ps)-1].Seconds,
		Floor:      floor,
		partitions: ps,
	}, nil
}

// WithFloor returns a copy of the scale using a different plan floor.
func (s *Scale) WithFloor(floor int64) *Scale {
	c := *s
	c.Floor = floor
	return &c
}

func (s *Scale) logSpan() (float64, float64) {
	lo := math.Log(float64(s.Min))
	hi := math.Log(float64(s.Max))
	return lo, hi
}

// SecondsToSlider returns the slider position of seconds. Values outside
// [Min, Max] are clamped.
func (s *Scale) SecondsToSlider(seconds int64) float64 {
	if s.Max <= s.Min {
		return 0
	}
	seconds = clamp(seconds, s.Min, s.Max)

	lo, hi := s.logSpan()
	return (math.Log(float64(seconds)) - lo) / (hi - lo) * 100
}

// SliderToSeconds returns the seconds for a slider position, clamped to the
// scale and raised to the floor.
func (s *Scale) SliderToSeconds(position float64) int64 {
	if math.IsNaN(position) {
		position = 0
	}
	position = math.Max(0, math.Min(100, position))

	seconds := s.Min
	if s.Max > s.Min {
		lo, hi := s.logSpan()
		seconds = int64(math.Round(math.Exp(lo + position/100*(hi-lo))))
	}

	return s.Clamp(seconds)
}

// Clamp bounds seconds to the scale and the plan floor.
func (s *Scale) Clamp(seconds int64) int64 {
	seconds = clamp(seconds, s.Min, s.Max)
	if seconds < s.Floor {
		seconds = s.Floor
	}
	return seconds
}

// Ticks positions every partition on the scale. Partitions below the floor
// are flagged disabled; they stay on the scale.
func (s *Scale) Ticks() []Tick {
	ticks := make([]Tick, 0, len(s.partitions))
	for _, p := range s.partitions {
		ticks = append(ticks, Tick{
			Label:    p.Label,
			Seconds:  p.Seconds,
			Position: s.SecondsToSlider(p.Seconds),
			Disabled: p.Seconds < s.Floor,
		})
	}
	return ticks
}

// Snap returns the enabled partition closest to seconds on the log scale.
// When every partition is disabled the clamped value is returned unlabeled.
func (s *Scale) Snap(seconds int64) Partition {
	target := s.SecondsToSlider(seconds)

	best := Partition{Label: Format(s.Clamp(seconds)), Seconds: s.Clamp(seconds)}
	bestDist := math.Inf(1)
	for _, t := range s.Ticks() {
		if t.Disabled {
			continue
		}
		if d := math.Abs(t.Position - target); d < bestDist {
			bestDist = d
			best = Partition{Label: t.Label, Seconds: t.Seconds}
		}
	}
	return best
}

// Format renders seconds the way partition labels are written.
func Format(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	switch {
	case seconds > 86400 && seconds%86400 == 0:
		return fmt.Sprintf("%dd", seconds/86400)
	case seconds >= 3600 && seconds%3600 == 0:
		return fmt.Sprintf("%dh", int64(d.Hours()))
	case seconds >= 60 && seconds%60 == 0:
		return fmt.Sprintf("%dm", int64(d.Minutes()))
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// Plans maps a plan name to its minimum interval in seconds.
type Plans map[string]int64

// Floor returns the minimum interval of plan, 0 for unknown plans.
func (p Plans) Floor(plan string) int64 {
	return p[plan]
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
