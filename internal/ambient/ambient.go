// Package ambient synthesizes looping ambience tracks (rain, city, wind,
// fireplace, nature) from fixed oscillator formulas. Generation is pure:
// the same normalized inputs always yield byte-identical WAV output.
package ambient

import (
	"math"
	"strings"

	"github.com/livrya/ambience/internal/wav"
)

const (
	SampleRate    = 22050
	Channels      = 1
	BitsPerSample = 16

	MinDuration     = 5   // seconds
	MaxDuration     = 120 // seconds
	DefaultDuration = 20  // seconds
)

// Format is the WAV layout of every generated track.
var Format = wav.Format{
	SampleRate:    SampleRate,
	Channels:      Channels,
	BitsPerSample: BitsPerSample,
}

// Category selects one synthesis profile.
type Category string

const (
	Nature    Category = "nature"
	Rain      Category = "rain"
	City      Category = "city"
	Wind      Category = "wind"
	Fireplace Category = "fireplace"

	DefaultCategory = Nature
)

var categories = []Category{Nature, Rain, City, Wind, Fireplace}

// Categories returns the supported categories in a stable order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// ParseCategory lower-cases and trims raw and reports whether it names a
// supported category. Unsupported input yields DefaultCategory.
func ParseCategory(raw string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range categories {
		if c == known {
			return c, true
		}
	}
	return DefaultCategory, false
}

// NormalizeCategory is ParseCategory without the validity flag. Unknown
// input silently falls back to nature.
func NormalizeCategory(raw string) Category {
	c, _ := ParseCategory(raw)
	return c
}

// ClampDuration rounds v to whole seconds and clamps it into
// [MinDuration, MaxDuration]. Non-finite values give DefaultDuration.
func ClampDuration(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return DefaultDuration
	}
	r := math.Floor(v + 0.5)
	if r < MinDuration {
		return MinDuration
	}
	if r > MaxDuration {
		return MaxDuration
	}
	return int(r)
}

// Request is a normalized generation request.
type Request struct {
	SourceID        string // opaque correlation id, used only by callers for naming
	Category        Category
	DurationSeconds int
}

// NewRequest normalizes a raw category and duration.
func NewRequest(sourceID, rawCategory string, rawDuration float64) Request {
	return Request{
		SourceID:        sourceID,
		Category:        NormalizeCategory(rawCategory),
		DurationSeconds: ClampDuration(rawDuration),
	}
}

// TotalSamples is the PCM length of the request's track.
func (r Request) TotalSamples() int {
	return SampleRate * r.DurationSeconds
}

// Track is a synthesized mono PCM buffer.
type Track struct {
	Category        Category
	DurationSeconds int
	Samples         []int16
}

// WAV wraps the track in a 22050 Hz mono 16-bit WAV container.
func (t Track) WAV() []byte {
	return wav.Encode(t.Samples, Format)
}

// Synthesize renders req sample by sample. It does not re-normalize req.
func Synthesize(req Request) Track {
	samples := make([]int16, req.TotalSamples())
	for i := range samples {
		t := float64(i) / SampleRate
		samples[i] = Quantize(SampleAt(req.Category, t))
	}
	return Track{
		Category:        req.Category,
		DurationSeconds: req.DurationSeconds,
		Samples:         samples,
	}
}

// Generate normalizes its inputs and returns a complete WAV file. It never
// fails: unknown categories become nature, out-of-range durations are
// clamped, NaN becomes the default duration.
func Generate(category string, durationSeconds float64) []byte {
	return Synthesize(NewRequest("", category, durationSeconds)).WAV()
}

// Quantize clamps v to [-1, 1] and scales it to a 16-bit sample, rounding
// half up.
func Quantize(v float64) int16 {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int16(math.Floor(v*32767 + 0.5))
}
