package playback

import (
	"sync"
	"testing"
	"time"

	"github.com/soren-b/clicktrack/internal/analysis"
	"github.com/soren-b/clicktrack/internal/audio"
	"github.com/soren-b/clicktrack/internal/beat"
)

// fakeSink records sink calls and lets tests move the clock by hand.
type fakeSink struct {
	mu      sync.Mutex
	now     float64
	tones   []float64 // currently queued
	history []float64 // every tone ever scheduled
	starts  []float64 // offsets passed to Start
	stops   int
	cancels int
}

func (s *fakeSink) Now() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *fakeSink) advance(d float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now += d
}

func (s *fakeSink) Start(t *audio.Track, offset float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts = append(s.starts, offset)
	return s.now
}

func (s *fakeSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
}

func (s *fakeSink) ScheduleTone(at float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tones = append(s.tones, at)
	s.history = append(s.history, at)
}

func (s *fakeSink) CancelTones() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels++
	s.tones = nil
}

func (s *fakeSink) Close() error { return nil }

func (s *fakeSink) queued() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.tones...)
}

func (s *fakeSink) scheduled() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.history...)
}

func (s *fakeSink) counts() (starts, stops, cancels int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.starts), s.stops, s.cancels
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal(msg)
}

func testTrack(seconds float64) *audio.Track {
	frames := int(seconds * audio.SampleRate)
	return &audio.Track{Path: "test.wav", Samples: make([]int16, frames*audio.Channels)}
}

// testResult describes a recording with onsets every 0.5s and a clear
// 120 BPM candidate, which resolves to a grid of interval 0.5 and phase 0.
func testResult(peakCount int) *analysis.Result {
	peaks := make([]float64, peakCount)
	for i := range peaks {
		peaks[i] = float64(i) * 0.5
	}
	return &analysis.Result{
		Peaks:      peaks,
		Candidates: []beat.Candidate{{Tempo: 120, Count: 40}},
	}
}

func newTestEngine(t *testing.T, sink *fakeSink, seconds float64) *Engine {
	t.Helper()
	e, err := NewEngine(sink, testTrack(seconds), testResult(int(seconds*2)), beat.DefaultParams(), Config{
		Tick:         time.Millisecond,
		PositionTick: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}
