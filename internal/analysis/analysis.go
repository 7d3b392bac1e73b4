// Package analysis carries the output of the external onset analyzer into
// the process: an ordered list of peak timestamps plus ranked tempo
// candidates. Results come from a JSON file on disk or from an analyzer
// service over HTTP; this package never runs onset detection itself.
package analysis

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/soren-b/clicktrack/internal/beat"
)

// Result is one analyzed recording.
type Result struct {
	Peaks      []float64        `json:"peaks"`      // seconds from song start, ascending
	Candidates []beat.Candidate `json:"candidates"` // sorted by descending count
}

// Load reads and validates an analysis file.
func Load(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read analysis %s: %w", path, err)
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("parse analysis %s: %w", path, err)
	}
	if err := res.Validate(); err != nil {
		return nil, fmt.Errorf("analysis %s: %w", path, err)
	}
	return &res, nil
}

// Validate checks the analyzer contract: non-negative ascending peaks and
// positive candidate tempos.
func (r *Result) Validate() error {
	for i, p := range r.Peaks {
		if p < 0 {
			return fmt.Errorf("peak %d is negative (%v)", i, p)
		}
		if i > 0 && p < r.Peaks[i-1] {
			return fmt.Errorf("peaks not ascending at index %d (%v after %v)", i, p, r.Peaks[i-1])
		}
	}
	for i, c := range r.Candidates {
		if c.Tempo <= 0 {
			return fmt.Errorf("candidate %d has non-positive tempo %v", i, c.Tempo)
		}
		if c.Count < 0 {
			return fmt.Errorf("candidate %d has negative count %d", i, c.Count)
		}
	}
	return nil
}

// Summary is a coarse tempo sanity check derived from the peaks alone.
type Summary struct {
	MedianInterval float64 // seconds between consecutive onsets
	ImpliedTempo   float64 // BPM from the median interval, folded into 60-180
}

// Summary computes the median inter-onset interval and the tempo it
// implies. Logged next to the scored tempo at load time; a large
// disagreement usually points at a half/double-tempo ambiguity.
func (r *Result) Summary() Summary {
	if len(r.Peaks) < 2 {
		return Summary{}
	}
	intervals := make([]float64, 0, len(r.Peaks)-1)
	for i := 1; i < len(r.Peaks); i++ {
		if d := r.Peaks[i] - r.Peaks[i-1]; d > 0 {
			intervals = append(intervals, d)
		}
	}
	if len(intervals) == 0 {
		return Summary{}
	}
	sort.Float64s(intervals)
	median := stat.Quantile(0.5, stat.Empirical, intervals, nil)

	tempo := 60 / median
	for tempo < 60 {
		tempo *= 2
	}
	for tempo > 180 {
		tempo /= 2
	}
	return Summary{MedianInterval: median, ImpliedTempo: tempo}
}
