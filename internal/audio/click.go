package audio

import "math"

// Click shape. The burst is short enough to fit inside one beat at any sane
// tempo; the decay is fast so it reads as a tick rather than a tone.
const (
	ClickDuration = 0.1   // seconds
	clickAttack   = 0.002 // smoothstep ramp, avoids a pop at onset
	clickDecay    = 0.015 // exponential time constant
)

// Click synthesizes the metronome tick as one mono waveform in [-1, 1]:
// a sine burst with a smoothstep attack and exponential decay.
func Click(sampleRate int, freq, gain float64) []float64 {
	n := int(ClickDuration * float64(sampleRate))
	wave := make([]float64, n)
	for i := range wave {
		t := float64(i) / float64(sampleRate)
		env := math.Exp(-t / clickDecay)
		if t < clickAttack {
			env *= Smoothstep(t / clickAttack)
		}
		wave[i] = gain * env * math.Sin(2*math.Pi*freq*t)
	}
	return wave
}
