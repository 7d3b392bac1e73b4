package beat

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// EstimatePhase locates where beats fall inside one beat interval. The
// fractional positions of the early peaks are folded into a circular
// histogram; the fullest neighborhood wins and its bin center is the phase.
//
// Degenerate inputs (no usable interval, no peaks) return 0; a single peak
// is its own phase evidence.
func EstimatePhase(peaks []float64, interval float64, p Params) float64 {
	if interval <= 0 || len(peaks) == 0 {
		return 0
	}
	if len(peaks) < 2 {
		return posMod(peaks[0], interval)
	}

	limit := p.PhaseWindow
	if limit < 1 {
		limit = 1
	}
	window := peaks
	if len(window) > limit {
		window = window[:limit]
	}

	n := p.PhaseBins
	if n < 1 {
		n = 1
	}
	bins := make([]float64, n)
	for _, peak := range window {
		fraction := posMod(peak, interval) / interval
		idx := int(fraction * float64(n))
		if idx >= n {
			idx = n - 1
		}
		bins[idx]++
	}

	// Half-weight neighbor smoothing: a cluster split across two adjacent
	// bins still outweighs a lone spike one cell over.
	smoothed := make([]float64, n)
	for i := range bins {
		smoothed[i] = bins[i] + 0.5*bins[(i+1)%n] + 0.5*bins[(i-1+n)%n]
	}

	best := floats.MaxIdx(smoothed)
	return (float64(best) + 0.5) / float64(n) * interval
}

// firstBeatFrom scans peaks in order and returns the earliest one sitting on
// the estimated grid, accepting a distance to the nearest grid line under a
// quarter interval. With no qualifying peak the first peak anchors the grid
// as-is; with no peaks at all the grid starts at zero.
func firstBeatFrom(peaks []float64, phase, interval float64) float64 {
	if len(peaks) == 0 {
		return 0
	}
	if interval <= 0 {
		return peaks[0]
	}
	for _, peak := range peaks {
		r := posMod(peak-phase, interval)
		if math.Min(r, interval-r) < interval/4 {
			return peak
		}
	}
	return peaks[0]
}

// posMod returns x mod m in [0, m).
func posMod(x, m float64) float64 {
	r := math.Mod(x, m)
	if r < 0 {
		r += m
	}
	return r
}
