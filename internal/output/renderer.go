package output

import (
	"math"
	"sort"
	"sync"

	"github.com/soren-b/clicktrack/internal/audio"
)

// renderer mixes the current track with queued clicks into fixed output
// blocks and keeps the rendered-frame clock. It is shared by Device and
// Pacer; render is driven by exactly one goroutine per sink.
type renderer struct {
	mu          sync.Mutex
	track       *audio.Track
	cursor      int64   // frames into the track
	clockFrames int64   // frames rendered since the sink opened
	click       []float64
	tones       []int64 // pending click start frames, ascending

	tap    func([]int16)
	tapBuf []int16
}

func (r *renderer) init(click []float64, tap func([]int16)) {
	r.click = click
	r.tap = tap
}

func (r *renderer) Now() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return float64(r.clockFrames) / audio.SampleRate
}

func (r *renderer) Start(t *audio.Track, offset float64) float64 {
	cursor := int64(math.Round(offset * audio.SampleRate))
	if cursor < 0 {
		cursor = 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.track = t
	r.cursor = cursor
	return float64(r.clockFrames) / audio.SampleRate
}

func (r *renderer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.track = nil
	r.cursor = 0
}

func (r *renderer) ScheduleTone(at float64) {
	start := int64(math.Round(at * audio.SampleRate))
	r.mu.Lock()
	defer r.mu.Unlock()
	if start+int64(len(r.click)) <= r.clockFrames {
		return
	}
	idx := sort.Search(len(r.tones), func(i int) bool { return r.tones[i] >= start })
	r.tones = append(r.tones, 0)
	copy(r.tones[idx+1:], r.tones[idx:])
	r.tones[idx] = start
}

func (r *renderer) CancelTones() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tones = r.tones[:0]
}

// render fills dst with the next block of the mix and advances the clock,
// then feeds complete 20ms frames to the tap.
func (r *renderer) render(dst []int16) {
	r.mix(dst)
	if r.tap == nil {
		return
	}
	r.tapBuf = append(r.tapBuf, dst...)
	for len(r.tapBuf) >= audio.FrameSamples {
		frame := make([]int16, audio.FrameSamples)
		copy(frame, r.tapBuf[:audio.FrameSamples])
		r.tap(frame)
		n := copy(r.tapBuf, r.tapBuf[audio.FrameSamples:])
		r.tapBuf = r.tapBuf[:n]
	}
}

func (r *renderer) mix(dst []int16) {
	for i := range dst {
		dst[i] = 0
	}
	frames := int64(len(dst) / audio.Channels)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.track != nil {
		if avail := r.track.Frames() - r.cursor; avail > 0 {
			n := frames
			if avail < n {
				n = avail
			}
			from := r.cursor * audio.Channels
			copy(dst[:n*audio.Channels], r.track.Samples[from:from+n*audio.Channels])
		}
		r.cursor += frames
	}

	kept := r.tones[:0]
	for _, start := range r.tones {
		end := start + int64(len(r.click))
		if end <= r.clockFrames {
			continue
		}
		if start >= r.clockFrames+frames {
			kept = append(kept, start)
			continue
		}
		audio.MixTone(dst, r.click, int(start-r.clockFrames))
		if end > r.clockFrames+frames {
			kept = append(kept, start)
		}
	}
	r.tones = kept

	r.clockFrames += frames
}
