// Package output renders the playback mix and delivers it to a sink: a
// hardware device through malgo when one is available, or a wall-clock
// pacer that keeps timing and the network monitor alive when none is.
//
// Both sinks share one renderer. The renderer owns a sample-accurate clock
// that counts rendered frames, so time reported by Now never runs ahead of
// audio that has actually been produced.
package output

import (
	"github.com/soren-b/clicktrack/internal/audio"
)

// Clock reports rendered time in seconds since the sink was opened. It
// advances only while the sink is rendering and never moves backwards.
type Clock interface {
	Now() float64
}

// Sink consumes the playback mix.
type Sink interface {
	Clock

	// Start begins rendering track audio at offset seconds into the track,
	// replacing any previous track. It returns the clock time at which the
	// first new sample is rendered, the anchor for schedule calculations.
	Start(t *audio.Track, offset float64) float64

	// Stop silences track audio. The clock keeps running.
	Stop()

	// ScheduleTone queues the click to begin at clock time at. Tones whose
	// span lies fully in the past are dropped.
	ScheduleTone(at float64)

	// CancelTones discards every pending click, cutting off any that is
	// partway through its sound.
	CancelTones()

	// Close releases the sink. Safe to call more than once.
	Close() error
}
