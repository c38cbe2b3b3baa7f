// Package audio turns stored ambience tracks into a paced stream of 20ms
// PCM frames for listeners.
package audio

import "time"

// Stream format. Stored tracks are converted to this on decode.
const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// TrackInfo identifies a generated ambience track queued for playback.
type TrackInfo struct {
	ID       string
	Category string
	Path     string
	Name     string // display name (LLM-generated or deterministic)
}
