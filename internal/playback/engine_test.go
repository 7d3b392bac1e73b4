package playback

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/soren-b/clicktrack/internal/analysis"
	"github.com/soren-b/clicktrack/internal/beat"
)

func TestNewEngineRequiresTrack(t *testing.T) {
	if _, err := NewEngine(&fakeSink{}, nil, testResult(4), beat.DefaultParams(), Config{}); err == nil {
		t.Error("NewEngine(nil track) error = nil, want error")
	}
}

func TestEnginePlayPause(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(t, sink, 10)

	if e.Status().Playing {
		t.Fatal("Playing = true before Play")
	}
	if err := e.Play(); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	st := e.Status()
	if !st.Playing || st.SessionID == "" {
		t.Errorf("Status after Play = %+v, want playing with session id", st)
	}

	waitFor(t, func() bool { return len(sink.scheduled()) >= 1 }, "no clicks scheduled")
	if got := sink.scheduled()[0]; got != 0 {
		t.Errorf("first click at %v, want 0 (beat at position 0)", got)
	}

	if err := e.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	st = e.Status()
	if st.Playing || st.SessionID != "" {
		t.Errorf("Status after Pause = %+v, want stopped", st)
	}
	if _, stops, cancels := sink.counts(); stops != 1 || cancels < 1 {
		t.Errorf("stops = %d, cancels = %d, want 1 and >= 1", stops, cancels)
	}
	if q := sink.queued(); len(q) != 0 {
		t.Errorf("queued clicks after Pause = %v, want none", q)
	}
}

func TestEnginePlayWhilePlayingIsNoop(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(t, sink, 10)

	e.Play()
	id := e.Status().SessionID
	if err := e.Play(); err != nil {
		t.Fatalf("second Play() error = %v", err)
	}
	if starts, _, _ := sink.counts(); starts != 1 {
		t.Errorf("starts = %d, want 1", starts)
	}
	if got := e.Status().SessionID; got != id {
		t.Errorf("session id changed from %s to %s", id, got)
	}
}

func TestEnginePauseWhilePausedIsNoop(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(t, sink, 10)

	if err := e.Pause(); err != nil {
		t.Fatalf("Pause() on idle engine error = %v", err)
	}
	if _, stops, _ := sink.counts(); stops != 0 {
		t.Errorf("stops = %d, want 0", stops)
	}
}

func TestEnginePlayAtRestartsSession(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(t, sink, 10)

	e.Play()
	first := e.Status().SessionID
	sink.advance(1.0)

	if err := e.PlayAt(2.0); err != nil {
		t.Fatalf("PlayAt() error = %v", err)
	}
	st := e.Status()
	if !st.Playing || st.SessionID == first {
		t.Errorf("Status after PlayAt = %+v, want new session", st)
	}
	if math.Abs(st.Position-2.0) > 1e-9 {
		t.Errorf("Position = %v, want 2.0", st.Position)
	}
	if starts, stops, _ := sink.counts(); starts != 2 || stops != 1 {
		t.Errorf("starts = %d, stops = %d, want 2 and 1", starts, stops)
	}

	// Beat at exactly 2.0 maps to the new anchor, sink time 1.0.
	waitFor(t, func() bool { return len(sink.queued()) >= 1 }, "no clicks after restart")
	if q := sink.queued(); math.Abs(q[0]-1.0) > 1e-9 {
		t.Errorf("first click after restart at %v, want 1.0", q[0])
	}
}

func TestEnginePlayAtClamps(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(t, sink, 10)

	e.PlayAt(99)
	if pos := e.Status().Position; pos != 10 {
		t.Errorf("Position after PlayAt(99) = %v, want 10", pos)
	}
	e.PlayAt(-5)
	if pos := e.Status().Position; pos != 0 {
		t.Errorf("Position after PlayAt(-5) = %v, want 0", pos)
	}
}

func TestEngineSeekWhilePaused(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(t, sink, 10)

	if err := e.Seek(1.5); err != nil {
		t.Fatalf("Seek() error = %v", err)
	}
	if pos := e.Status().Position; pos != 1.5 {
		t.Errorf("Position = %v, want 1.5", pos)
	}
	if starts, _, _ := sink.counts(); starts != 0 {
		t.Errorf("Seek while paused started a session (starts = %d)", starts)
	}

	// Within the epsilon the seek is dropped.
	if err := e.Seek(1.505); err != nil {
		t.Fatalf("Seek() error = %v", err)
	}
	if pos := e.Status().Position; pos != 1.5 {
		t.Errorf("Position after micro-seek = %v, want 1.5", pos)
	}
}

func TestEngineSeekWhilePlaying(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(t, sink, 10)

	e.Play()
	first := e.Status().SessionID
	sink.advance(0.3)

	// A seek inside the epsilon must not restart the session.
	if err := e.Seek(0.305); err != nil {
		t.Fatalf("Seek() error = %v", err)
	}
	if starts, _, _ := sink.counts(); starts != 1 {
		t.Errorf("micro-seek restarted session (starts = %d)", starts)
	}

	if err := e.Seek(3.0); err != nil {
		t.Fatalf("Seek() error = %v", err)
	}
	st := e.Status()
	if !st.Playing || st.SessionID == first {
		t.Errorf("Status after seek = %+v, want new playing session", st)
	}
	if math.Abs(st.Position-3.0) > 1e-9 {
		t.Errorf("Position = %v, want 3.0", st.Position)
	}
	if starts, _, _ := sink.counts(); starts != 2 {
		t.Errorf("starts = %d, want 2", starts)
	}
}

func TestEngineSetMultiplierValidation(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(t, sink, 10)

	for _, m := range []float64{0, -1, 0.75, 3, 1.5} {
		if err := e.SetMultiplier(m); err == nil {
			t.Errorf("SetMultiplier(%v) error = nil, want error", m)
		}
	}
	for _, m := range []float64{0.5, 1, 2} {
		if err := e.SetMultiplier(m); err != nil {
			t.Errorf("SetMultiplier(%v) error = %v", m, err)
		}
	}
}

func TestEngineSetMultiplierRescalesGrid(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(t, sink, 10)

	if err := e.SetMultiplier(2); err != nil {
		t.Fatalf("SetMultiplier(2) error = %v", err)
	}
	st := e.Status()
	if st.Tempo != 240 || st.Multiplier != 2 {
		t.Errorf("Tempo = %v, Multiplier = %v, want 240 and 2", st.Tempo, st.Multiplier)
	}
	if math.Abs(st.Grid.Interval-0.25) > 1e-9 {
		t.Errorf("Grid.Interval = %v, want 0.25", st.Grid.Interval)
	}
	if st.BaseTempo != 120 {
		t.Errorf("BaseTempo = %v, want 120 (unchanged)", st.BaseTempo)
	}
}

// Changing the multiplier mid-session swaps the click schedule without
// touching track audio: no new sink start, no stop, just a tone cancel
// and a refill on the new grid.
func TestEngineMultiplierSwapsScheduleInPlace(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(t, sink, 10)

	e.Play()
	waitFor(t, func() bool { return len(sink.scheduled()) >= 1 }, "no clicks before swap")

	if err := e.SetMultiplier(0.5); err != nil {
		t.Fatalf("SetMultiplier(0.5) error = %v", err)
	}
	if starts, stops, cancels := sink.counts(); starts != 1 || stops != 0 || cancels < 1 {
		t.Errorf("starts = %d, stops = %d, cancels = %d, want 1, 0, >= 1", starts, stops, cancels)
	}
	if !e.Status().Playing {
		t.Error("Playing = false after multiplier change")
	}

	waitFor(t, func() bool { return len(sink.queued()) >= 1 }, "no clicks after swap")
	if q := sink.queued(); q[0] != 0 {
		t.Errorf("first click after swap at %v, want 0", q[0])
	}
	sink.advance(0.95) // interval is now 1.0; next beat enters the window
	waitFor(t, func() bool { return len(sink.queued()) >= 2 }, "second click not scheduled")
	if q := sink.queued(); math.Abs(q[1]-1.0) > 1e-9 {
		t.Errorf("second click at %v, want 1.0", q[1])
	}
}

func TestEngineFirstBeatOverride(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(t, sink, 10)
	auto := e.Status().Grid

	if err := e.SetFirstBeat(-0.1); err == nil {
		t.Error("SetFirstBeat(-0.1) error = nil, want error")
	}
	if err := e.SetFirstBeat(11); err == nil {
		t.Error("SetFirstBeat past end error = nil, want error")
	}

	if err := e.SetFirstBeat(0.123); err != nil {
		t.Fatalf("SetFirstBeat() error = %v", err)
	}
	g := e.Status().Grid
	if !g.UserDefined || g.FirstBeat != 0.123 {
		t.Errorf("Grid after override = %+v, want user-defined first beat 0.123", g)
	}
	if math.Abs(g.Phase-0.123) > 1e-9 {
		t.Errorf("Grid.Phase = %v, want 0.123", g.Phase)
	}

	if err := e.ResetFirstBeat(); err != nil {
		t.Fatalf("ResetFirstBeat() error = %v", err)
	}
	if g := e.Status().Grid; g != auto {
		t.Errorf("Grid after reset = %+v, want detected grid %+v", g, auto)
	}
	if err := e.ResetFirstBeat(); err != nil {
		t.Errorf("second ResetFirstBeat() error = %v", err)
	}
}

func TestEngineOverrideDuringPlaybackKeepsAudio(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(t, sink, 10)

	e.Play()
	waitFor(t, func() bool { return len(sink.scheduled()) >= 1 }, "no clicks before override")

	if err := e.SetFirstBeat(0.2); err != nil {
		t.Fatalf("SetFirstBeat() error = %v", err)
	}
	if starts, stops, _ := sink.counts(); starts != 1 || stops != 0 {
		t.Errorf("starts = %d, stops = %d, want 1 and 0", starts, stops)
	}

	sink.advance(0.15) // moves the 0.2 beat inside the look-ahead window
	waitFor(t, func() bool { return len(sink.queued()) >= 1 }, "no clicks on new grid")
	if q := sink.queued(); math.Abs(q[0]-0.2) > 1e-9 {
		t.Errorf("first click on new grid at %v, want 0.2", q[0])
	}
}

func TestEngineStopsAtEndOfTrack(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(t, sink, 0.5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	e.Play()
	sink.advance(0.6)

	waitFor(t, func() bool { return !e.Status().Playing }, "engine still playing past end")
	if pos := e.Status().Position; pos != 0.5 {
		t.Errorf("Position after end = %v, want 0.5", pos)
	}
	if _, stops, _ := sink.counts(); stops != 1 {
		t.Errorf("stops = %d, want 1", stops)
	}
}

func TestEngineNoTempoPlaysWithoutClicks(t *testing.T) {
	sink := &fakeSink{}
	e, err := NewEngine(sink, testTrack(5), &analysis.Result{}, beat.DefaultParams(), Config{
		Tick: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	defer e.Close()

	if err := e.Play(); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if !e.Status().Playing {
		t.Error("Playing = false, want audio without clicks")
	}
	time.Sleep(30 * time.Millisecond)
	if got := sink.scheduled(); len(got) != 0 {
		t.Errorf("scheduled clicks with no grid: %v", got)
	}
}

func TestEngineClosedRejectsOperations(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(t, sink, 10)

	if err := e.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	ops := map[string]error{
		"Play":           e.Play(),
		"PlayAt":         e.PlayAt(1),
		"Pause":          e.Pause(),
		"Seek":           e.Seek(1),
		"SetMultiplier":  e.SetMultiplier(2),
		"SetFirstBeat":   e.SetFirstBeat(1),
		"ResetFirstBeat": e.ResetFirstBeat(),
	}
	for name, err := range ops {
		if !errors.Is(err, errClosed) {
			t.Errorf("%s after Close error = %v, want errClosed", name, err)
		}
	}
}

// The documented end-to-end case: beats every 0.5s from 0, playback from
// 0.2, so the first click lands 0.3s after the session anchor.
func TestEngineFirstClickFromMidTrackOffset(t *testing.T) {
	sink := &fakeSink{now: 42.0}
	e := newTestEngine(t, sink, 10)

	if err := e.PlayAt(0.2); err != nil {
		t.Fatalf("PlayAt() error = %v", err)
	}
	sink.advance(0.25) // window now reaches 42.35
	waitFor(t, func() bool { return len(sink.scheduled()) >= 1 }, "no click scheduled")
	if got := sink.scheduled()[0]; math.Abs(got-42.3) > 1e-9 {
		t.Errorf("first click at sink time %v, want 42.3", got)
	}
}
