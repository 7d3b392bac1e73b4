package audio

import "time"

const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // frames per channel per 20ms block
	FrameSamples  = FrameSize * Channels // total interleaved samples per block
	FrameBytes    = FrameSamples * 2     // bytes per block (int16 = 2 bytes)
)

// Track is a fully decoded recording, normalized to the engine format:
// interleaved stereo int16 at SampleRate.
type Track struct {
	Path    string
	Samples []int16
}

// Frames returns the per-channel frame count.
func (t *Track) Frames() int64 {
	return int64(len(t.Samples) / Channels)
}

// Duration returns the track length in seconds.
func (t *Track) Duration() float64 {
	return float64(t.Frames()) / SampleRate
}
