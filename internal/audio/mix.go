package audio

// Smoothstep returns the smoothstep interpolation for t in [0,1].
// Formula: 3t^2 - 2t^3.
func Smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// Clip converts a float sample to int16 with saturation.
func Clip(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// MixTone adds a mono waveform into an interleaved stereo buffer with
// saturation. dstFrame is the frame within dst where the waveform's first
// sample lands; a negative value means the tone started before this buffer
// and only its tail is mixed.
func MixTone(dst []int16, wave []float64, dstFrame int) {
	frames := len(dst) / Channels
	for i, v := range wave {
		f := dstFrame + i
		if f < 0 {
			continue
		}
		if f >= frames {
			break
		}
		add := v * 32767
		for c := 0; c < Channels; c++ {
			idx := f*Channels + c
			dst[idx] = Clip(float64(dst[idx]) + add)
		}
	}
}
