package histogram

import (
	"context"
	"time"
)

const (
	// LoadingCells is the length of the loading strip.
	LoadingCells = 24
	// LoadingTick is how long each cell stays active.
	LoadingTick = 200 * time.Millisecond
)

// LoadingCell is one cell of the loading strip.
type LoadingCell struct {
	Index  int  `json:"index"`
	Active bool `json:"active"`
}

// Frame returns the loading strip at tick. Exactly one cell is active and
// the active cell wraps around after the last one.
func Frame(tick int) []LoadingCell {
	active := tick % LoadingCells
	if active < 0 {
		active += LoadingCells
	}

	cells := make([]LoadingCell, LoadingCells)
	for i := range cells {
		cells[i] = LoadingCell{Index: i, Active: i == active}
	}
	return cells
}

// ActiveAt returns the active cell after elapsed time.
func ActiveAt(elapsed time.Duration) int {
	if elapsed < 0 {
		return 0
	}
	return int(elapsed/LoadingTick) % LoadingCells
}

// Animate sends a frame every LoadingTick until ctx is done. The channel is
// closed on return; slow receivers miss frames instead of blocking.
func Animate(ctx context.Context) <-chan []LoadingCell {
	frames := make(chan []LoadingCell, 1)

	go func() {
		defer close(frames)

		ticker := time.NewTicker(LoadingTick)
		defer ticker.Stop()

		tick := 0
		frames <- Frame(tick)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tick++
				select {
				case frames <- Frame(tick):
				default:
				}
			}
		}
	}()

	return frames
}
