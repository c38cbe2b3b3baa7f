package audio

// Resample converts mono samples from one rate to another by linear
// interpolation. Equal rates return the input unchanged.
func Resample(in []int16, from, to int) []int16 {
	if from == to || len(in) == 0 || from <= 0 || to <= 0 {
		return in
	}
	n := int(int64(len(in)) * int64(to) / int64(from))
	out := make([]int16, n)
	step := float64(from) / float64(to)
	last := len(in) - 1
	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= last {
			out[i] = in[last]
			continue
		}
		frac := pos - float64(idx)
		out[i] = clip16(float64(in[idx])*(1-frac) + float64(in[idx+1])*frac)
	}
	return out
}

// UpmixStereo duplicates each mono sample into an interleaved L/R pair.
func UpmixStereo(mono []int16) []int16 {
	out := make([]int16, len(mono)*2)
	for i, s := range mono {
		out[i*2] = s
		out[i*2+1] = s
	}
	return out
}

// Interleave merges two equal-rate channels into L/R pairs, truncating to
// the shorter channel.
func Interleave(left, right []int16) []int16 {
	n := min(len(left), len(right))
	out := make([]int16, n*2)
	for i := 0; i < n; i++ {
		out[i*2] = left[i]
		out[i*2+1] = right[i]
	}
	return out
}
