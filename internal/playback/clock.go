package playback

import (
	"sync"

	"github.com/soren-b/clicktrack/internal/output"
)

// Clock maps sink time to a position inside the track. Position is derived
// from rendered frames, so it never runs ahead of audible audio and shares
// a timebase with the click schedule.
type Clock struct {
	out output.Clock

	mu       sync.Mutex
	playing  bool
	offset   float64 // position when playback started or was last set
	startHW  float64 // sink time matching offset
	duration float64
}

// NewClock creates a paused clock at position 0 for a track of the given
// duration.
func NewClock(out output.Clock, duration float64) *Clock {
	return &Clock{out: out, duration: duration}
}

// StartAt marks the clock playing from offset, anchored at sink time hw.
func (c *Clock) StartAt(offset, hw float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = c.clamp(offset)
	c.startHW = hw
	c.playing = true
}

// Pause freezes the clock and returns the position it stopped at. Pausing
// a paused clock returns the held position unchanged.
func (c *Clock) Pause() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		c.offset = c.clamp(c.offset + c.out.Now() - c.startHW)
		c.playing = false
	}
	return c.offset
}

// SetPosition moves the clock to pos without changing play state.
func (c *Clock) SetPosition(pos float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = c.clamp(pos)
	c.startHW = c.out.Now()
}

// Position returns the current position, clamped to the track bounds.
func (c *Clock) Position() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing {
		return c.offset
	}
	return c.clamp(c.offset + c.out.Now() - c.startHW)
}

// Playing reports whether the clock is advancing.
func (c *Clock) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Duration returns the track length the clock was created with.
func (c *Clock) Duration() float64 {
	return c.duration
}

func (c *Clock) clamp(pos float64) float64 {
	if pos < 0 {
		return 0
	}
	if pos > c.duration {
		return c.duration
	}
	return pos
}
