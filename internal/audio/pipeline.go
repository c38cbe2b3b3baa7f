package audio

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/livrya/ambience/internal/metrics"
)

// DecodeFunc converts a queued track's file into stream-format samples.
type DecodeFunc func(path string) ([]int16, error)

type decodedTrack struct {
	info    TrackInfo
	samples []int16
}

// Pipeline decodes tracks, applies crossfade, and outputs PCM frames at real-time rate.
type Pipeline struct {
	trackCh chan TrackInfo
	frameCh chan []int16
	skipCh  chan struct{}
	decode  DecodeFunc
	log     *zap.Logger

	mu            sync.RWMutex
	crossfadeDur  time.Duration
	onDecoded     func(TrackInfo)
	currentTrack  TrackInfo
	trackPosition time.Duration
	trackDuration time.Duration
}

// NewPipeline creates an audio pipeline with the given crossfade duration.
// A nil decode uses DecodeFile.
func NewPipeline(crossfadeDuration time.Duration, decode DecodeFunc, log *zap.Logger) *Pipeline {
	if decode == nil {
		decode = DecodeFile
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		trackCh:      make(chan TrackInfo, 8),
		frameCh:      make(chan []int16, 100),
		skipCh:       make(chan struct{}, 1),
		decode:       decode,
		log:          log.Named("pipeline"),
		crossfadeDur: crossfadeDuration,
	}
}

// Frames returns the channel of outgoing PCM frames (20ms each).
func (p *Pipeline) Frames() <-chan []int16 {
	return p.frameCh
}

// Enqueue adds a track to the playback queue. It blocks while the queue is
// full unless ctx ends first.
func (p *Pipeline) Enqueue(ctx context.Context, t TrackInfo) error {
	select {
	case p.trackCh <- t:
		metrics.QueuedTracks.Set(float64(len(p.trackCh)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueSize returns the number of tracks waiting in the queue.
func (p *Pipeline) QueueSize() int {
	return len(p.trackCh)
}

// OnDecoded registers a hook called once a track's file has been read into
// memory. The scheduler uses it to drop channel files from disk.
func (p *Pipeline) OnDecoded(fn func(TrackInfo)) {
	p.mu.Lock()
	p.onDecoded = fn
	p.mu.Unlock()
}

// Skip interrupts the current track.
func (p *Pipeline) Skip() {
	select {
	case p.skipCh <- struct{}{}:
	default:
	}
}

// SetCrossfade changes the crossfade length for tracks that start afterwards.
func (p *Pipeline) SetCrossfade(d time.Duration) {
	p.mu.Lock()
	p.crossfadeDur = d
	p.mu.Unlock()
	p.log.Info("crossfade updated", zap.Duration("crossfade", d))
}

// CrossfadeDuration returns the current crossfade length.
func (p *Pipeline) CrossfadeDuration() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.crossfadeDur
}

// Status returns current playback info.
func (p *Pipeline) Status() (track TrackInfo, position, duration time.Duration) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentTrack, p.trackPosition, p.trackDuration
}

// Run starts the pipeline. Blocks until ctx is cancelled, then closes Frames.
func (p *Pipeline) Run(ctx context.Context) {
	defer close(p.frameCh)

	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	decodedCh := make(chan *decodedTrack, 4)
	go p.decodeLoop(ctx, decodedCh)

	var pending *decodedTrack
	var startFrame int

	for {
		var dt *decodedTrack

		if pending != nil {
			dt = pending
			pending = nil
		} else {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-decodedCh:
				if !ok {
					return
				}
				dt = d
				startFrame = 0
			}
		}

		next, nextStart := p.playTrack(ctx, ticker, decodedCh, dt, startFrame)
		if next != nil {
			pending = next
			startFrame = nextStart
		} else {
			startFrame = 0
		}
	}
}

// decodeLoop converts queued file paths to PCM ahead of playback.
func (p *Pipeline) decodeLoop(ctx context.Context, out chan<- *decodedTrack) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-p.trackCh:
			metrics.QueuedTracks.Set(float64(len(p.trackCh)))
			samples, err := p.decode(t.Path)

			p.mu.RLock()
			hook := p.onDecoded
			p.mu.RUnlock()
			if hook != nil {
				hook(t)
			}

			if err != nil {
				metrics.DecodeErrorsTotal.Inc()
				p.log.Warn("decode failed", zap.String("path", t.Path), zap.Error(err))
				continue
			}
			if len(samples) < FrameSamples {
				p.log.Warn("track shorter than one frame", zap.String("id", t.ID))
				continue
			}
			select {
			case out <- &decodedTrack{info: t, samples: samples}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// playTrack plays a decoded track with crossfade into the next one if available.
// Returns the next decoded track and starting frame if a crossfade occurred.
func (p *Pipeline) playTrack(ctx context.Context, ticker *time.Ticker, decodedCh <-chan *decodedTrack, dt *decodedTrack, startFrame int) (*decodedTrack, int) {
	samples := dt.samples
	totalFrames := len(samples) / FrameSamples
	cfFrames := int(p.CrossfadeDuration() / FrameDuration)
	if cfFrames > totalFrames/2 {
		cfFrames = totalFrames / 2 // never crossfade more than half the track
	}
	cfStart := totalFrames - cfFrames

	p.setTrack(dt.info, totalFrames)
	metrics.TracksPlayedTotal.Inc()
	p.log.Info("now playing",
		zap.String("id", dt.info.ID),
		zap.String("category", dt.info.Category),
		zap.String("name", dt.info.Name),
		zap.Int("frames", totalFrames),
	)

	for i := startFrame; i < cfStart; i++ {
		if !p.sendFrame(ctx, ticker, samples[i*FrameSamples:(i+1)*FrameSamples]) {
			return nil, 0
		}
		p.updatePosition(i)
	}

	var next *decodedTrack
	select {
	case d := <-decodedCh:
		next = d
	default:
	}

	if next != nil {
		for i := 0; i < cfFrames; i++ {
			outPos := (cfStart + i) * FrameSamples
			inPos := i * FrameSamples

			if outPos+FrameSamples > len(samples) || inPos+FrameSamples > len(next.samples) {
				break
			}

			progress := float64(i) / float64(cfFrames)
			frame := CrossfadeFrames(
				samples[outPos:outPos+FrameSamples],
				next.samples[inPos:inPos+FrameSamples],
				progress,
			)

			if !p.sendFrame(ctx, ticker, frame) {
				if ctx.Err() != nil {
					return nil, 0
				}
				// Skipped mid-fade: the incoming track is already off the
				// queue, so it starts from the top.
				return next, 0
			}
			p.updatePosition(cfStart + i)
		}

		p.log.Info("crossfaded", zap.String("from", dt.info.ID), zap.String("to", next.info.ID))
		return next, cfFrames
	}

	for i := cfStart; i < totalFrames; i++ {
		if !p.sendFrame(ctx, ticker, samples[i*FrameSamples:(i+1)*FrameSamples]) {
			return nil, 0
		}
		p.updatePosition(i)
	}

	return nil, 0
}

// sendFrame waits for the ticker then sends a frame. Returns false on skip or cancel.
func (p *Pipeline) sendFrame(ctx context.Context, ticker *time.Ticker, frame []int16) bool {
	select {
	case <-ctx.Done():
		return false
	case <-p.skipCh:
		p.log.Info("track skipped")
		return false
	case <-ticker.C:
	}

	select {
	case p.frameCh <- frame:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *Pipeline) setTrack(info TrackInfo, totalFrames int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentTrack = info
	p.trackPosition = 0
	p.trackDuration = time.Duration(totalFrames) * FrameDuration
}

func (p *Pipeline) updatePosition(frameIdx int) {
	p.mu.Lock()
	p.trackPosition = time.Duration(frameIdx) * FrameDuration
	p.mu.Unlock()
}
