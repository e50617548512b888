package timeseries

import (
	"sort"
	"sync"
)

// Generation identifies one load of a set of regions. Results tagged with an
// older generation are discarded.
type Generation uint64

// Snapshot is the state of a load as seen by the chart.
type Snapshot struct {
	Generation Generation        `json:"generation"`
	Series     map[string]Series `json:"series"`
	Pending    []string          `json:"pending"`
	Failed     map[string]string `json:"failed,omitempty"`
	Complete   bool              `json:"complete"`
}

// Accumulator collects region series as they arrive. Each region is stored
// at most once per generation; a late duplicate replaces the earlier value.
type Accumulator struct {
	mu       sync.Mutex
	gen      Generation
	regions  map[string]struct{}
	pending  map[string]struct{}
	series   map[string]Series
	failed   map[string]string
	onUpdate func(Snapshot)
}

// NewAccumulator returns an empty accumulator. onUpdate, when set, is called
// with the lock held after every accepted change, so snapshots arrive in
// order; it must not call back into the accumulator.
func NewAccumulator(onUpdate func(Snapshot)) *Accumulator {
	return &Accumulator{
		regions:  make(map[string]struct{}),
		pending:  make(map[string]struct{}),
		series:   make(map[string]Series),
		failed:   make(map[string]string),
		onUpdate: onUpdate,
	}
}

// Reset starts a new generation expecting regions and drops all prior data.
func (a *Accumulator) Reset(regions []string) Generation {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.gen++
	a.regions = make(map[string]struct{}, len(regions))
	a.pending = make(map[string]struct{}, len(regions))
	for _, r := range regions {
		a.regions[r] = struct{}{}
		a.pending[r] = struct{}{}
	}
	a.series = make(map[string]Series, len(regions))
	a.failed = make(map[string]string)

	a.notifyLocked()
	return a.gen
}

// Add stores the series of region. It reports false when gen is stale or
// region was not requested.
func (a *Accumulator) Add(gen Generation, region string, s Series) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.acceptLocked(gen, region) {
		return false
	}
	a.series[region] = s
	delete(a.failed, region)
	delete(a.pending, region)

	a.notifyLocked()
	return true
}

// Fail records that region could not be loaded.
func (a *Accumulator) Fail(gen Generation, region string, err error) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.acceptLocked(gen, region) {
		return false
	}
	if _, ok := a.series[region]; ok {
		// a successful result wins over a later failure
		return false
	}
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	a.failed[region] = msg
	delete(a.pending, region)

	a.notifyLocked()
	return true
}

// Generation returns the current generation.
func (a *Accumulator) Generation() Generation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gen
}

func (a *Accumulator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Accumulator) acceptLocked(gen Generation, region string) bool {
	if gen != a.gen {
		return false
	}
	_, ok := a.regions[region]
	return ok
}

func (a *Accumulator) notifyLocked() {
	if a.onUpdate != nil {
		a.onUpdate(a.snapshotLocked())
	}
}

func (a *Accumulator) snapshotLocked() Snapshot {
	series := make(map[string]Series, len(a.series))
	for k, v := range a.series {
		series[k] = v
	}

	pending := make([]string, 0, len(a.pending))
	for k := range a.pending {
		pending = append(pending, k)
	}
	sort.Strings(pending)

	var failed map[string]string
	if len(a.failed) > 0 {
		failed = make(map[string]string, len(a.failed))
		for k, v := range a.failed {
			failed[k] = v
		}
	}

	return Snapshot{
		Generation: a.gen,
		Series:     series,
		Pending:    pending,
		Failed:     failed,
		Complete:   len(a.pending) == 0,
	}
}
