package output

import (
	"context"
	"log"
	"time"

	"github.com/soren-b/clicktrack/internal/audio"
)

// Pacer is a silent Sink for hosts without a usable output device. It
// renders the same mix on a wall-clock ticker so scheduling, positions and
// the network monitor keep working; nothing is played locally.
type Pacer struct {
	renderer
	buf []int16
}

// NewPacer creates a pacer. Run must be started for the clock to advance.
func NewPacer(click []float64, tap func([]int16)) *Pacer {
	p := &Pacer{buf: make([]int16, audio.FrameSamples)}
	p.init(click, tap)
	return p
}

// Run renders one frame per tick until ctx is cancelled.
func (p *Pacer) Run(ctx context.Context) {
	ticker := time.NewTicker(audio.FrameDuration)
	defer ticker.Stop()

	log.Printf("[output] pacer running, %v per frame (no local playback)", audio.FrameDuration)
	for {
		select {
		case <-ctx.Done():
			log.Println("[output] pacer stopped")
			return
		case <-ticker.C:
			p.render(p.buf)
		}
	}
}

// Close is a no-op; the pacer stops when its Run context is cancelled.
func (p *Pacer) Close() error {
	return nil
}
