package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/livrya/ambience/internal/ambient"
	"github.com/livrya/ambience/internal/wav"
)

// --- Constants ---

func TestConstants(t *testing.T) {
	// 48kHz * 20ms = 960 samples per channel
	if got := SampleRate * int(FrameDuration/time.Millisecond) / 1000; got != FrameSize {
		t.Errorf("FrameSize mismatch: want %d, got %d", got, FrameSize)
	}
	if FrameSamples != FrameSize*Channels {
		t.Errorf("FrameSamples = %d, want %d", FrameSamples, FrameSize*Channels)
	}
	if FrameBytes != FrameSamples*2 {
		t.Errorf("FrameBytes = %d, want %d", FrameBytes, FrameSamples*2)
	}
}

// --- Smoothstep / crossfade ---

func TestSmoothstepBoundaries(t *testing.T) {
	tests := []struct {
		input float64
		want  float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.5, 0.5},
		{1, 1},
		{1.5, 1},
	}
	for _, tt := range tests {
		if got := Smoothstep(tt.input); got != tt.want {
			t.Errorf("Smoothstep(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestSmoothstepMonotonic(t *testing.T) {
	prev := 0.0
	for i := 1; i <= 100; i++ {
		x := float64(i) / 100.0
		val := Smoothstep(x)
		if val < prev {
			t.Errorf("Smoothstep not monotonic at %v", x)
		}
		prev = val
	}
}

func TestCrossfadeEndpoints(t *testing.T) {
	out := []int16{1000, -1000, 500, -500}
	in := []int16{2000, -2000, 1500, -1500}
	assert.Equal(t, out, CrossfadeFrames(out, in, 0))
	assert.Equal(t, in, CrossfadeFrames(out, in, 1))
}

func TestCrossfadeMidpoint(t *testing.T) {
	result := CrossfadeFrames([]int16{1000, -1000}, []int16{3000, -3000}, 0.5)
	assert.Equal(t, []int16{2000, -2000}, result)
}

func TestCrossfadeIntoReusesBuffer(t *testing.T) {
	dst := make([]int16, 8)
	got := CrossfadeInto(dst, []int16{32767, -32768}, []int16{32767, -32768}, 0.5)
	require.Len(t, got, 2)
	assert.Equal(t, []int16{32767, -32768}, got)
	assert.Same(t, &dst[0], &got[0])
}

// --- Resampling ---

func TestResampleSameRate(t *testing.T) {
	in := []int16{1, 2, 3}
	assert.Equal(t, in, Resample(in, 22050, 22050))
}

func TestResampleLength(t *testing.T) {
	in := make([]int16, ambient.SampleRate) // one second
	out := Resample(in, ambient.SampleRate, SampleRate)
	assert.Len(t, out, SampleRate)
}

func TestResampleInterpolates(t *testing.T) {
	// Doubling the rate puts midpoints between neighbours.
	out := Resample([]int16{0, 100, 200}, 1, 2)
	assert.Equal(t, []int16{0, 50, 100, 150, 200, 200}, out)
}

func TestUpmixAndInterleave(t *testing.T) {
	assert.Equal(t, []int16{7, 7, -3, -3}, UpmixStereo([]int16{7, -3}))
	assert.Equal(t, []int16{1, 9, 2, 8}, Interleave([]int16{1, 2, 3}, []int16{9, 8}))
}

// --- SamplesToBytes ---

func TestSamplesToBytes(t *testing.T) {
	buf := SamplesToBytes([]int16{0, 1, -1, 32767, -32768, 256})
	require.Len(t, buf, 12)
	// 256 = 0x0100 -> bytes [0x00, 0x01]
	assert.Equal(t, []byte{0x00, 0x01}, buf[10:12])
	assert.Equal(t, []byte{0xFF, 0xFF}, buf[4:6])
}

// --- DecodeFile ---

func writeTrack(t *testing.T, category string, seconds float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), category+".wav")
	require.NoError(t, os.WriteFile(path, ambient.Generate(category, seconds), 0o644))
	return path
}

func TestDecodeFileConvertsToStreamFormat(t *testing.T) {
	path := writeTrack(t, "rain", 5)

	samples, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Len(t, samples, 5*SampleRate*Channels)

	// Mono source: both channels carry the same signal.
	for i := 0; i < len(samples); i += 2 * 1009 {
		if samples[i] != samples[i+1] {
			t.Fatalf("frame %d: left %d != right %d", i/2, samples[i], samples[i+1])
		}
	}
}

func TestDecodeFileStereoSource(t *testing.T) {
	pcm := []int16{10, -10, 20, -20, 30, -30, 40, -40}
	path := filepath.Join(t.TempDir(), "stereo.wav")
	f := wav.Format{SampleRate: SampleRate, Channels: 2, BitsPerSample: 16}
	require.NoError(t, os.WriteFile(path, wav.Encode(pcm, f), 0o644))

	samples, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, pcm, samples)
}

func TestDecodeFileMissing(t *testing.T) {
	_, err := DecodeFile(filepath.Join(t.TempDir(), "nope.wav"))
	assert.Error(t, err)
}

func TestDecodeFileRejectsEightBit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "8bit.wav")
	f := wav.Format{SampleRate: 8000, Channels: 1, BitsPerSample: 8}
	require.NoError(t, os.WriteFile(path, wav.EncodeBytes([]byte{1, 2, 3, 4}, f), 0o644))

	_, err := DecodeFile(path)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat), "got %v", err)
}

// --- Pipeline ---

func TestNewPipeline(t *testing.T) {
	p := NewPipeline(8*time.Second, nil, nil)
	require.NotNil(t, p)
	assert.Equal(t, 8*time.Second, p.CrossfadeDuration())
	assert.Equal(t, 0, p.QueueSize())

	track, pos, dur := p.Status()
	assert.Empty(t, track.ID)
	assert.Zero(t, pos)
	assert.Zero(t, dur)
}

func TestPipelineSetCrossfade(t *testing.T) {
	p := NewPipeline(8*time.Second, nil, nil)
	p.SetCrossfade(3 * time.Second)
	assert.Equal(t, 3*time.Second, p.CrossfadeDuration())
}

func TestPipelineSkipNonBlocking(t *testing.T) {
	p := NewPipeline(4*time.Second, nil, nil)
	p.Skip()
	p.Skip()
}

func TestPipelineEnqueueHonorsContext(t *testing.T) {
	p := NewPipeline(time.Second, nil, nil)
	for i := 0; i < cap(p.trackCh); i++ {
		require.NoError(t, p.Enqueue(context.Background(), TrackInfo{ID: "x"}))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Enqueue(ctx, TrackInfo{ID: "overflow"}), context.Canceled)
}

func TestPipelinePlaysQueuedTrack(t *testing.T) {
	defer goleak.VerifyNone(t)

	const frames = 10
	decode := func(path string) ([]int16, error) {
		samples := make([]int16, frames*FrameSamples)
		for i := range samples {
			samples[i] = int16(i / FrameSamples) // frame index as payload
		}
		return samples, nil
	}

	p := NewPipeline(0, decode, nil)
	decoded := make(chan TrackInfo, 1)
	p.OnDecoded(func(ti TrackInfo) { decoded <- ti })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.NoError(t, p.Enqueue(ctx, TrackInfo{ID: "t1", Category: "rain", Path: "mem"}))

	for i := 0; i < 3; i++ {
		select {
		case frame := <-p.Frames():
			require.Len(t, frame, FrameSamples)
			assert.Equal(t, int16(i), frame[0])
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for frame %d", i)
		}
	}

	select {
	case ti := <-decoded:
		assert.Equal(t, "t1", ti.ID)
	case <-time.After(time.Second):
		t.Fatal("OnDecoded hook not called")
	}

	track, _, dur := p.Status()
	assert.Equal(t, "t1", track.ID)
	assert.Equal(t, frames*FrameDuration, dur)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop after cancel")
	}
	// Frames must be closed once Run returns.
	for range p.Frames() {
	}
}

func TestPipelineSkipsUndecodableTrack(t *testing.T) {
	defer goleak.VerifyNone(t)

	decode := func(path string) ([]int16, error) {
		if path == "bad" {
			return nil, errors.New("corrupt")
		}
		return make([]int16, 4*FrameSamples), nil
	}
	p := NewPipeline(0, decode, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.NoError(t, p.Enqueue(ctx, TrackInfo{ID: "bad", Path: "bad"}))
	require.NoError(t, p.Enqueue(ctx, TrackInfo{ID: "good", Path: "good"}))

	select {
	case <-p.Frames():
	case <-time.After(2 * time.Second):
		t.Fatal("no frame after a failed decode")
	}
	track, _, _ := p.Status()
	assert.Equal(t, "good", track.ID)

	cancel()
	<-done
}

// --- Crossfade handoff ---

func constTrack(v int16, frames int) []int16 {
	s := make([]int16, frames*FrameSamples)
	for i := range s {
		s[i] = v
	}
	return s
}

func runTwoTracks(t *testing.T, crossfade time.Duration) (*Pipeline, func()) {
	t.Helper()
	tracks := map[string][]int16{
		"a": constTrack(1000, 50),
		"b": constTrack(3000, 50),
	}
	decode := func(path string) ([]int16, error) {
		return tracks[path], nil
	}
	p := NewPipeline(crossfade, decode, nil)
	// Both tracks are decoded before a reaches its fade.
	require.NoError(t, p.Enqueue(context.Background(), TrackInfo{ID: "a", Path: "a"}))
	require.NoError(t, p.Enqueue(context.Background(), TrackInfo{ID: "b", Path: "b"}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	return p, func() {
		cancel()
		<-done
	}
}

func nextFrame(t *testing.T, p *Pipeline) []int16 {
	t.Helper()
	select {
	case frame, ok := <-p.Frames():
		require.True(t, ok, "frames closed early")
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for frame")
		return nil
	}
}

func assertNoMoreFrames(t *testing.T, p *Pipeline) {
	t.Helper()
	select {
	case frame := <-p.Frames():
		t.Fatalf("unexpected extra frame starting %d", frame[0])
	case <-time.After(150 * time.Millisecond):
	}
}

func TestPipelineCrossfadeHandoff(t *testing.T) {
	tests := []struct {
		name      string
		crossfade time.Duration
		solidA    int // frames of a alone
		blended   int // frames mixing a into b
		solidB    int // frames of b after the fade
	}{
		{"400ms fade", 400 * time.Millisecond, 30, 20, 30},
		{"capped at half a track", 10 * time.Second, 25, 25, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer goleak.VerifyNone(t)
			p, stop := runTwoTracks(t, tt.crossfade)
			defer stop()

			for i := 0; i < tt.solidA; i++ {
				require.Equal(t, int16(1000), nextFrame(t, p)[0], "frame %d", i)
			}

			prev := int16(999)
			for i := 0; i < tt.blended; i++ {
				frame := nextFrame(t, p)
				v := frame[0]
				assert.GreaterOrEqual(t, v, prev, "blend frame %d", i)
				assert.Less(t, v, int16(3000), "blend frame %d", i)
				assert.Equal(t, v, frame[len(frame)-1])
				prev = v
			}
			assert.Greater(t, prev, int16(2900), "fade should end near b")

			for i := 0; i < tt.solidB; i++ {
				require.Equal(t, int16(3000), nextFrame(t, p)[0], "frame %d of b", i)
			}
			track, _, _ := p.Status()
			assert.Equal(t, "b", track.ID)

			assertNoMoreFrames(t, p)
		})
	}
}

func TestPipelineSkipDuringCrossfadeStartsNextTrack(t *testing.T) {
	defer goleak.VerifyNone(t)
	p, stop := runTwoTracks(t, 400*time.Millisecond)
	defer stop()

	// a fades out over frames 30..49; skip inside that window.
	for i := 0; i <= 35; i++ {
		nextFrame(t, p)
	}
	p.Skip()

	var v int16
	for v != 3000 {
		v = nextFrame(t, p)[0]
		require.GreaterOrEqual(t, v, int16(1000))
	}

	// b restarts from its first frame and plays out in full.
	for i := 1; i < 50; i++ {
		require.Equal(t, int16(3000), nextFrame(t, p)[0], "frame %d of b", i)
	}
	track, _, dur := p.Status()
	assert.Equal(t, "b", track.ID)
	assert.Equal(t, 50*FrameDuration, dur)

	assertNoMoreFrames(t, p)
}
