// Package beat resolves a tempo and a beat grid from onset analysis: ranked
// tempo candidates are scored against detected peak timestamps, the beat
// phase is located with a circular histogram, and the result is combined
// into an immutable Grid consumed by the click scheduler.
package beat

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Candidate is one tempo hypothesis from the analyzer. Count is the number
// of inter-onset intervals supporting it; candidates arrive sorted by
// descending count, and that order feeds the rank bias below.
type Candidate struct {
	Tempo float64 `json:"tempo"` // beats per minute
	Count int     `json:"count"`
}

// Params holds the scoring and phase-estimation tuning. The defaults are
// carried over unchanged; they decide which side wins in ambiguous
// half/double-tempo cases, so they are named knobs rather than literals.
// Window and bin counts below one are read as one.
type Params struct {
	ScoreWindow int     // peaks evaluated per candidate
	Tolerance   float64 // alignment tolerance, fraction of a beat interval
	BoostWeight float64 // weight of the rank-order confidence boost
	PhaseWindow int     // peaks folded into the phase histogram
	PhaseBins   int     // circular histogram resolution
}

// DefaultParams returns the standard tuning.
func DefaultParams() Params {
	return Params{
		ScoreWindow: 64,
		Tolerance:   0.15,
		BoostWeight: 0.1,
		PhaseWindow: 150,
		PhaseBins:   32,
	}
}

// SelectTempo picks the single most plausible tempo. Each candidate earns a
// triangular alignment credit for every early peak that lands near its beat
// grid, plus its raw support count, plus a small bias toward the analyzer's
// own ranking. Pure: same inputs, same answer.
//
// No candidates yields 0 ("no confident tempo"). With candidates but no
// peaks there is no alignment evidence, so the top-ranked candidate wins.
func SelectTempo(candidates []Candidate, peaks []float64, p Params) float64 {
	if len(candidates) == 0 {
		return 0
	}
	if len(peaks) == 0 {
		return candidates[0].Tempo
	}

	limit := p.ScoreWindow
	if limit < 1 {
		limit = 1
	}
	window := peaks
	if len(window) > limit {
		window = window[:limit]
	}

	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		secondsPerBeat := 60 / c.Tempo
		tolerance := p.Tolerance * secondsPerBeat

		// The first peak anchors the grid and aligns trivially; skip it.
		alignment := 0.0
		for _, peak := range window[1:] {
			expected := math.Round(peak/secondsPerBeat) * secondsPerBeat
			deviation := math.Abs(expected - peak)
			if deviation < tolerance {
				alignment += 1 - deviation/tolerance
			}
		}

		boost := float64(len(candidates) - i)
		scores[i] = alignment + float64(c.Count) + p.BoostWeight*boost
	}

	// MaxIdx returns the first maximal index, so equal scores keep the
	// earlier-ranked candidate.
	return candidates[floats.MaxIdx(scores)].Tempo
}
