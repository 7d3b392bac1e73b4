package audio

// Resample converts one channel from fromRate to toRate using cubic
// interpolation. Inputs too short to interpolate are passed through.
func Resample(samples []float64, fromRate, toRate int) []float64 {
	if fromRate == toRate || len(samples) < 4 {
		return samples
	}

	ratio := float64(toRate) / float64(fromRate)
	out := make([]float64, int(float64(len(samples))*ratio))
	lastIndex := len(samples) - 3

	for i := range out {
		pos := float64(i) / ratio
		idx := int(pos)
		if idx < 1 {
			idx = 1
		} else if idx > lastIndex {
			idx = lastIndex
		}
		frac := pos - float64(idx)

		y0, y1, y2, y3 := samples[idx-1], samples[idx], samples[idx+1], samples[idx+2]
		mu2 := frac * frac
		a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
		a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
		a2 := -0.5*y0 + 0.5*y2
		out[i] = a0*frac*mu2 + a1*mu2 + a2*frac + y1
	}

	return out
}
