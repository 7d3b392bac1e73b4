// Package playback drives click-accompanied playback of an analyzed track:
// a clock derived from rendered audio, a look-ahead scheduler that queues
// clicks on the beat grid, and an engine that owns sessions and applies
// transport and grid changes.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soren-b/clicktrack/internal/analysis"
	"github.com/soren-b/clicktrack/internal/audio"
	"github.com/soren-b/clicktrack/internal/beat"
	"github.com/soren-b/clicktrack/internal/output"
)

var errClosed = errors.New("engine closed")

// Config holds engine timing knobs.
type Config struct {
	Tick         time.Duration // scheduler top-up cadence
	Horizon      float64       // seconds of clicks kept queued ahead of the clock
	SeekEpsilon  float64       // seeks closer than this to the current position are ignored
	PositionTick time.Duration // end-of-track watchdog cadence
}

// DefaultConfig returns the standard engine timing.
func DefaultConfig() Config {
	return Config{
		Tick:         25 * time.Millisecond,
		Horizon:      0.1,
		SeekEpsilon:  0.01,
		PositionTick: 20 * time.Millisecond,
	}
}

// session is one playback run: track audio plus a click scheduler bound to
// a fixed (position, sink time) anchor. At most one session exists at a
// time, and a session is fully torn down before its successor starts.
type session struct {
	id      string
	offset  float64
	startHW float64

	cancelSched context.CancelFunc
	schedDone   chan struct{}
}

// Engine owns the track, the beat grid and the active session. Grid edits
// during playback replace only the click schedule; track audio keeps its
// anchor so nothing audible skips.
type Engine struct {
	sink  output.Sink
	track *audio.Track
	clock *Clock
	cfg   Config

	mu         sync.Mutex
	peaks      []float64
	params     beat.Params
	baseTempo  float64
	multiplier float64
	override   *float64
	grid       beat.Grid
	sess       *session
	closed     bool
}

// NewEngine builds an engine for one decoded track and its analysis. When
// no tempo can be resolved the engine still plays audio, with clicks
// disabled.
func NewEngine(sink output.Sink, track *audio.Track, res *analysis.Result, params beat.Params, cfg Config) (*Engine, error) {
	if track == nil || len(track.Samples) == 0 {
		return nil, errors.New("no track loaded")
	}
	def := DefaultConfig()
	if cfg.Tick <= 0 {
		cfg.Tick = def.Tick
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = def.Horizon
	}
	if cfg.SeekEpsilon <= 0 {
		cfg.SeekEpsilon = def.SeekEpsilon
	}
	if cfg.PositionTick <= 0 {
		cfg.PositionTick = def.PositionTick
	}

	e := &Engine{
		sink:       sink,
		track:      track,
		clock:      NewClock(sink, track.Duration()),
		cfg:        cfg,
		peaks:      res.Peaks,
		params:     params,
		baseTempo:  beat.SelectTempo(res.Candidates, res.Peaks, params),
		multiplier: 1,
	}
	e.grid = beat.ComputeGrid(e.baseTempo, e.peaks, nil, e.params)
	if e.grid.Valid() {
		log.Printf("[playback] tempo %.1f BPM, interval %.3fs, first beat %.3fs",
			e.baseTempo, e.grid.Interval, e.grid.FirstBeat)
	} else {
		log.Println("[playback] no usable tempo, clicks disabled")
	}
	return e, nil
}

// Play resumes playback from the current position. Calling Play while
// already playing is a no-op.
func (e *Engine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errClosed
	}
	if e.sess != nil {
		return nil
	}
	e.startSessionLocked(e.clock.Position())
	return nil
}

// PlayAt restarts playback from pos, tearing down any active session
// first. Out-of-range positions clamp to the track bounds.
func (e *Engine) PlayAt(pos float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errClosed
	}
	e.stopSessionLocked()
	e.startSessionLocked(pos)
	return nil
}

// Pause stops the active session and holds the position. Pausing while
// paused is a no-op.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errClosed
	}
	e.stopSessionLocked()
	return nil
}

// Seek moves playback to pos, preserving the play state. Seeks within
// SeekEpsilon of the current position are ignored so repeated scrub events
// do not restart the session.
func (e *Engine) Seek(pos float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errClosed
	}
	pos = e.clampLocked(pos)
	if math.Abs(pos-e.clock.Position()) < e.cfg.SeekEpsilon {
		return nil
	}
	if e.sess != nil {
		e.stopSessionLocked()
		e.startSessionLocked(pos)
		return nil
	}
	e.clock.SetPosition(pos)
	return nil
}

// SetMultiplier switches the click rate to 0.5, 1 or 2 times the detected
// tempo.
func (e *Engine) SetMultiplier(m float64) error {
	if m != 0.5 && m != 1 && m != 2 {
		return fmt.Errorf("invalid multiplier %v (want 0.5, 1 or 2)", m)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errClosed
	}
	if m == e.multiplier {
		return nil
	}
	e.multiplier = m
	e.regridLocked()
	return nil
}

// SetFirstBeat pins the grid to a user-chosen first beat time, overriding
// the detected one.
func (e *Engine) SetFirstBeat(t float64) error {
	if t < 0 {
		return fmt.Errorf("first beat %v is negative", t)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errClosed
	}
	if d := e.clock.Duration(); t > d {
		return fmt.Errorf("first beat %v past end of track (%.3fs)", t, d)
	}
	e.override = &t
	e.regridLocked()
	return nil
}

// ResetFirstBeat returns the grid to the detected first beat.
func (e *Engine) ResetFirstBeat() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errClosed
	}
	if e.override == nil {
		return nil
	}
	e.override = nil
	e.regridLocked()
	return nil
}

// Status is a point-in-time snapshot for the HTTP API.
type Status struct {
	Track      string    `json:"track"`
	Playing    bool      `json:"playing"`
	Position   float64   `json:"position"`
	Duration   float64   `json:"duration"`
	BaseTempo  float64   `json:"baseTempo"`
	Multiplier float64   `json:"multiplier"`
	Tempo      float64   `json:"tempo"`
	Grid       beat.Grid `json:"grid"`
	SessionID  string    `json:"sessionId,omitempty"`
}

// Status reports the engine state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := Status{
		Track:      e.track.Path,
		Playing:    e.sess != nil,
		Position:   e.clock.Position(),
		Duration:   e.clock.Duration(),
		BaseTempo:  e.baseTempo,
		Multiplier: e.multiplier,
		Tempo:      e.baseTempo * e.multiplier,
		Grid:       e.grid,
	}
	if e.sess != nil {
		st.SessionID = e.sess.id
	}
	return st
}

// Run watches for the end of the track until ctx is cancelled. When the
// position reaches the end of the buffer the session stops and the
// position holds at the track duration.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.PositionTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.checkEnd()
		}
	}
}

// Close stops any active session and rejects further operations.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.stopSessionLocked()
	e.closed = true
	return nil
}

func (e *Engine) checkEnd() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return
	}
	if e.clock.Position() >= e.clock.Duration() {
		log.Printf("[playback] end of track at %.3fs", e.clock.Duration())
		e.stopSessionLocked()
	}
}

func (e *Engine) startSessionLocked(pos float64) {
	pos = e.clampLocked(pos)
	hw := e.sink.Start(e.track, pos)
	e.clock.StartAt(pos, hw)
	s := &session{id: uuid.NewString(), offset: pos, startHW: hw}
	e.sess = s
	e.startSchedulerLocked(s, pos)
	log.Printf("[playback] session %s started at %.3fs", s.id, pos)
}

// stopSessionLocked tears the session down in order: scheduler joined,
// queued clicks cancelled, track silenced, clock paused.
func (e *Engine) stopSessionLocked() {
	if e.sess == nil {
		return
	}
	s := e.sess
	e.stopSchedulerLocked(s)
	e.sink.Stop()
	pos := e.clock.Pause()
	e.sess = nil
	log.Printf("[playback] session %s stopped at %.3fs", s.id, pos)
}

// regridLocked recomputes the grid from the current tempo, multiplier and
// override, then swaps the click schedule of any active session in place.
func (e *Engine) regridLocked() {
	e.grid = beat.ComputeGrid(e.baseTempo*e.multiplier, e.peaks, e.override, e.params)
	if e.sess != nil {
		e.stopSchedulerLocked(e.sess)
		e.startSchedulerLocked(e.sess, e.clock.Position())
	}
	if e.grid.Valid() {
		log.Printf("[playback] grid: interval %.3fs, first beat %.3fs (x%g)",
			e.grid.Interval, e.grid.FirstBeat, e.multiplier)
	}
}

// startSchedulerLocked spawns a scheduler for s covering beats from track
// position from onward. Invalid grids get no scheduler; audio still plays.
func (e *Engine) startSchedulerLocked(s *session, from float64) {
	if !e.grid.Valid() {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancelSched = cancel
	s.schedDone = done
	sched := &scheduler{
		sink:     e.sink,
		grid:     e.grid,
		tick:     e.cfg.Tick,
		horizon:  e.cfg.Horizon,
		offset:   s.offset,
		startHW:  s.startHW,
		duration: e.clock.Duration(),
		next:     e.grid.IndexAfter(from),
	}
	go func() {
		defer close(done)
		sched.run(ctx)
	}()
}

func (e *Engine) stopSchedulerLocked(s *session) {
	if s.cancelSched != nil {
		s.cancelSched()
		<-s.schedDone
		s.cancelSched = nil
		s.schedDone = nil
	}
	e.sink.CancelTones()
}

func (e *Engine) clampLocked(pos float64) float64 {
	if pos < 0 {
		return 0
	}
	if d := e.clock.Duration(); pos > d {
		return d
	}
	return pos
}
