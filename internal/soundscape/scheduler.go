package soundscape

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/livrya/ambience/internal/ambient"
	"github.com/livrya/ambience/internal/audio"
	"github.com/livrya/ambience/internal/store"
)

// ErrUnknownCategory is returned by SetCategory for names outside the
// supported set.
var ErrUnknownCategory = errors.New("unknown ambient category")

// Generator synthesizes and persists a track. *store.Store implements it.
type Generator interface {
	GenerateAndStore(ctx context.Context, p store.Params) (store.Result, error)
	Remove(name string) error
}

// Queue accepts tracks for playback. *audio.Pipeline implements it.
type Queue interface {
	Enqueue(ctx context.Context, t audio.TrackInfo) error
	QueueSize() int
	Skip()
}

// SchedulerConfig holds channel parameters.
type SchedulerConfig struct {
	StartingCategory string
	TrackDuration    int // seconds
	BufferAhead      int // tracks to pre-generate
	DwellMin         int // min seconds per category
	DwellMax         int // max seconds per category
}

// SchedulerStatus is the current state of the channel.
type SchedulerStatus struct {
	Category       string  `json:"category"`
	AutoRotate     bool    `json:"auto_rotate"`
	DwellRemaining float64 `json:"dwell_remaining"` // seconds
	QueueSize      int     `json:"queue_size"`
	TrackDuration  int     `json:"track_duration"`
	Listening      bool    `json:"listening"`
}

// NameFunc returns a display name for a new track in category c, or "" to
// use the built-in name.
type NameFunc func(ctx context.Context, c ambient.Category) string

// Scheduler manages category transitions and track generation.
type Scheduler struct {
	gen   Generator
	queue Queue
	cfg   SchedulerConfig
	log   *zap.Logger

	pollInterval time.Duration
	retryDelay   time.Duration
	intn         func(int) int

	mu          sync.RWMutex
	category    ambient.Category
	autoRotate  bool
	dwellEnd    time.Time
	nameFn      NameFunc
	listenersFn func() int

	overrideCh chan ambient.Category
}

// NewScheduler creates a channel scheduler. An unknown starting category
// falls back to nature.
func NewScheduler(gen Generator, queue Queue, cfg SchedulerConfig, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.BufferAhead < 1 {
		cfg.BufferAhead = 1
	}
	cfg.TrackDuration = ambient.ClampDuration(float64(cfg.TrackDuration))
	return &Scheduler{
		gen:          gen,
		queue:        queue,
		cfg:          cfg,
		log:          log.Named("soundscape"),
		pollInterval: time.Second,
		retryDelay:   5 * time.Second,
		intn:         rand.Intn,
		category:     ambient.NormalizeCategory(cfg.StartingCategory),
		autoRotate:   true,
		overrideCh:   make(chan ambient.Category, 1),
	}
}

// SetNameFunc sets the LLM-powered name generator. Pass nil for
// deterministic names.
func (s *Scheduler) SetNameFunc(fn NameFunc) {
	s.mu.Lock()
	s.nameFn = fn
	s.mu.Unlock()
}

// SetListenerCountFunc lets the scheduler pause generation while nobody is
// connected. One track is still kept ready.
func (s *Scheduler) SetListenerCountFunc(fn func() int) {
	s.mu.Lock()
	s.listenersFn = fn
	s.mu.Unlock()
}

// Status returns the current channel state.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	remaining := time.Until(s.dwellEnd).Seconds()
	if remaining < 0 {
		remaining = 0
	}
	listening := true
	if s.listenersFn != nil {
		listening = s.listenersFn() > 0
	}
	return SchedulerStatus{
		Category:       string(s.category),
		AutoRotate:     s.autoRotate,
		DwellRemaining: remaining,
		QueueSize:      s.queue.QueueSize(),
		TrackDuration:  s.cfg.TrackDuration,
		Listening:      listening,
	}
}

// SetCategory overrides the current category. The newest request wins when
// several arrive before the loop picks one up.
func (s *Scheduler) SetCategory(raw string) error {
	c, ok := ambient.ParseCategory(raw)
	if !ok {
		return ErrUnknownCategory
	}
	select {
	case <-s.overrideCh:
	default:
	}
	select {
	case s.overrideCh <- c:
	default:
	}
	return nil
}

// Skip skips the current track.
func (s *Scheduler) Skip() {
	s.queue.Skip()
}

// SetAutoRotate enables or disables automatic category transitions.
func (s *Scheduler) SetAutoRotate(enabled bool) {
	s.mu.Lock()
	s.autoRotate = enabled
	if enabled {
		s.resetDwell()
	}
	s.mu.Unlock()
}

// SetTrackDuration updates the duration for future tracks (seconds).
func (s *Scheduler) SetTrackDuration(seconds int) {
	seconds = ambient.ClampDuration(float64(seconds))
	s.mu.Lock()
	s.cfg.TrackDuration = seconds
	s.mu.Unlock()
	s.log.Info("track duration updated", zap.Int("seconds", seconds))
}

// TrackDuration returns the current track duration setting.
func (s *Scheduler) TrackDuration() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.TrackDuration
}

// Release deletes a channel track's file once the pipeline has read it.
// Register it with audio.Pipeline.OnDecoded.
func (s *Scheduler) Release(t audio.TrackInfo) {
	if t.Path == "" {
		return
	}
	if err := s.gen.Remove(filepath.Base(t.Path)); err != nil {
		s.log.Warn("release track", zap.String("id", t.ID), zap.Error(err))
	}
}

// Run starts the channel loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.resetDwell()
	start := s.category
	s.mu.Unlock()

	s.log.Info("channel started", zap.String("category", string(start)))

	for {
		if ctx.Err() != nil {
			return
		}

		select {
		case c := <-s.overrideCh:
			s.mu.Lock()
			s.category = c
			s.resetDwell()
			s.mu.Unlock()
			s.log.Info("category set", zap.String("category", string(c)))
		default:
		}

		s.mu.RLock()
		rotate := s.autoRotate
		expired := time.Now().After(s.dwellEnd)
		s.mu.RUnlock()

		if rotate && expired {
			s.transition()
		}

		queued := s.queue.QueueSize()
		switch {
		case s.idle() && queued >= 1:
			sleep(ctx, s.pollInterval)
		case queued < s.cfg.BufferAhead:
			if !s.generateTrack(ctx) {
				sleep(ctx, s.retryDelay)
			}
		default:
			sleep(ctx, s.pollInterval)
		}
	}
}

func (s *Scheduler) idle() bool {
	s.mu.RLock()
	fn := s.listenersFn
	s.mu.RUnlock()
	return fn != nil && fn() == 0
}

// generateTrack produces one track and queues it. It reports false when
// generation failed and the loop should back off.
func (s *Scheduler) generateTrack(ctx context.Context) bool {
	s.mu.RLock()
	c := s.category
	seconds := float64(s.cfg.TrackDuration)
	nameFn := s.nameFn
	s.mu.RUnlock()

	id := uuid.NewString()
	res, err := s.gen.GenerateAndStore(ctx, store.Params{
		SpeechID:        "channel-" + id,
		AmbientType:     string(c),
		DurationSeconds: &seconds,
		Origin:          "channel",
	})
	if err != nil {
		if ctx.Err() == nil {
			s.log.Error("generate track", zap.String("category", string(c)), zap.Error(err))
		}
		return false
	}

	// A slow LLM must never stall the channel.
	var name string
	if nameFn != nil {
		nameCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		name = nameFn(nameCtx, c)
		cancel()
	}
	if name == "" {
		name = TrackName(c, id)
	}

	t := audio.TrackInfo{
		ID:       id,
		Category: string(c),
		Path:     res.Path,
		Name:     name,
	}
	if err := s.queue.Enqueue(ctx, t); err != nil {
		s.Release(t)
		return true
	}
	s.log.Debug("track queued", zap.String("id", id), zap.String("name", name), zap.String("category", string(c)))
	return true
}

func (s *Scheduler) transition() {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := Graph[s.category]
	if !ok || len(n.Adjacent) == 0 {
		s.resetDwell()
		return
	}

	next := n.Adjacent[s.intn(len(n.Adjacent))]
	s.log.Info("category transition", zap.String("from", string(s.category)), zap.String("to", string(next)))
	s.category = next
	s.resetDwell()
}

// resetDwell sets a new random dwell timer. Must be called with mu held.
func (s *Scheduler) resetDwell() {
	spread := s.cfg.DwellMax - s.cfg.DwellMin
	if spread <= 0 {
		spread = 1
	}
	dwell := s.cfg.DwellMin + s.intn(spread)
	s.dwellEnd = time.Now().Add(time.Duration(dwell) * time.Second)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
