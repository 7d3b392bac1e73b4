package beat

import "math"

// Grid is the resolved beat grid: evenly spaced beats every Interval
// seconds, placed so that one beat lands exactly on FirstBeat. Phase is
// FirstBeat folded into [0, Interval), which keeps the two consistent by
// construction. Grids are recomputed whole on any input change, never
// patched in place.
type Grid struct {
	Interval    float64 `json:"interval"` // seconds per beat, 60/tempo
	Phase       float64 `json:"phase"`
	FirstBeat   float64 `json:"firstBeat"`
	UserDefined bool    `json:"userDefined"`
}

// ComputeGrid builds the grid for a tempo in BPM. A non-positive tempo
// yields the zero grid, which disables scheduling. A non-nil override pins
// FirstBeat and takes precedence over the peak-derived estimate; passing
// nil again recomputes the estimate from scratch.
func ComputeGrid(tempo float64, peaks []float64, override *float64, p Params) Grid {
	if tempo <= 0 {
		return Grid{}
	}
	interval := 60 / tempo

	if override != nil {
		return Grid{
			Interval:    interval,
			Phase:       posMod(*override, interval),
			FirstBeat:   *override,
			UserDefined: true,
		}
	}

	// The histogram locates the beat cluster; the earliest on-grid onset
	// then anchors the grid so clicks land on real audio events.
	phase := EstimatePhase(peaks, interval, p)
	first := firstBeatFrom(peaks, phase, interval)
	return Grid{
		Interval:  interval,
		Phase:     posMod(first, interval),
		FirstBeat: first,
	}
}

// Valid reports whether the grid can place beats.
func (g Grid) Valid() bool { return g.Interval > 0 }

// IndexAfter returns the index of the first beat at or after song time t,
// where beat k falls at Phase + k*Interval. Call only on a valid grid.
func (g Grid) IndexAfter(t float64) int64 {
	return int64(math.Ceil((t - g.Phase) / g.Interval))
}

// TimeAt returns the song time of beat k. Beat times always come from this
// closed form; summing Interval click over click would compound rounding
// error into drift.
func (g Grid) TimeAt(k int64) float64 {
	return g.Phase + float64(k)*g.Interval
}
