package playback

import (
	"context"
	"time"

	"github.com/soren-b/clicktrack/internal/beat"
	"github.com/soren-b/clicktrack/internal/output"
)

// scheduler queues clicks ahead of the rendered clock for one playback
// session. Click times come from the absolute beat grid mapped through the
// session anchor, never from accumulating intervals, so a late tick can
// delay scheduling but cannot shift where a click lands.
type scheduler struct {
	sink     output.Sink
	grid     beat.Grid
	tick     time.Duration // how often the queue is topped up
	horizon  float64       // seconds of look-ahead to keep queued
	offset   float64       // track position at session start
	startHW  float64       // sink time at session start
	duration float64       // no clicks are queued past this track time

	next int64 // beat index of the next click to queue
}

// run tops up the click queue every tick until ctx is cancelled.
func (s *scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		s.fill()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// fill queues every remaining click that falls inside the look-ahead
// window. Each beat index is queued exactly once.
func (s *scheduler) fill() {
	limit := s.sink.Now() + s.horizon
	for {
		song := s.grid.TimeAt(s.next)
		if song > s.duration {
			return
		}
		hw := s.startHW + (song - s.offset)
		if hw > limit {
			return
		}
		s.sink.ScheduleTone(hw)
		s.next++
	}
}
