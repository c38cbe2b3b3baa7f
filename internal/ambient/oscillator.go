package ambient

import "math"

// profile parameterizes LayeredNoise for one category plus an optional
// steady tone mixed on top.
type profile struct {
	gain     float64
	lfoFreq  float64
	flutterA float64
	flutterB float64

	toneFreq float64
	toneGain float64
}

var profiles = map[Category]profile{
	Rain:      {gain: 0.16, lfoFreq: 220, flutterA: 0.012, flutterB: 0.008},
	City:      {gain: 0.14, lfoFreq: 180, flutterA: 0.021, flutterB: 0.006, toneFreq: 110, toneGain: 0.02}, // low hum
	Wind:      {gain: 0.20, lfoFreq: 140, flutterA: 0.009, flutterB: 0.01},
	Fireplace: {gain: 0.18, lfoFreq: 260, flutterA: 0.04, flutterB: 0.02},
	Nature:    {gain: 0.15, lfoFreq: 160, flutterA: 0.017, flutterB: 0.01, toneFreq: 880, toneGain: 0.01}, // bird-like
}

// SampleAt returns the unclamped amplitude of category c at time t seconds.
// Unknown categories use the nature profile.
func SampleAt(c Category, t float64) float64 {
	p, ok := profiles[c]
	if !ok {
		p = profiles[Nature]
	}
	v := LayeredNoise(t, p.gain, p.lfoFreq, p.flutterA, p.flutterB)
	if p.toneGain != 0 {
		v += math.Sin(2*math.Pi*p.toneFreq*t) * p.toneGain
	}
	return v
}

// LayeredNoise sums three phase-wobbled sines at 1x, 0.37x and 1.61x of
// lfoFreq (weights 0.5/0.35/0.15) and applies a slow two-sinusoid envelope.
func LayeredNoise(t, gain, lfoFreq, flutterA, flutterB float64) float64 {
	pseudoNoise := math.Sin(2*math.Pi*(lfoFreq*t+math.Sin(t*0.73)*0.4))*0.5 +
		math.Sin(2*math.Pi*((lfoFreq*0.37)*t+math.Cos(t*0.41)*0.2))*0.35 +
		math.Sin(2*math.Pi*((lfoFreq*1.61)*t+math.Sin(t*0.17)*0.1))*0.15

	envelope := 0.75 + math.Sin(2*math.Pi*flutterA*t)*0.15 + math.Cos(2*math.Pi*flutterB*t)*0.1

	return pseudoNoise * gain * envelope
}

// Describe returns a short human description of a category.
func Describe(c Category) string {
	switch c {
	case Rain:
		return "steady rainfall with a soft high-frequency wash"
	case City:
		return "distant traffic texture over a low electrical hum"
	case Wind:
		return "slow, wide gusts with deep swells"
	case Fireplace:
		return "bright crackling texture with a quick flicker"
	default:
		return "open-air texture with a faint bird-like tone"
	}
}
