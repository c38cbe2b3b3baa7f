// Package stream delivers the channel's PCM frames to listeners over
// chunked HTTP (MP3) and WebRTC (Opus).
package stream

import (
	"context"
	"sync"

	"github.com/livrya/ambience/internal/metrics"
)

// Broadcaster fans out PCM frames from one source to N listeners.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}
}

// Listener receives PCM frames from the broadcaster.
type Listener struct {
	C         chan []int16 // buffered channel of 20ms PCM frames
	done      chan struct{}
	transport string
	once      sync.Once
}

// Done is closed once the listener is unsubscribed.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		listeners: make(map[*Listener]struct{}),
	}
}

// Subscribe registers a new listener for the given transport label
// ("http", "webrtc").
func (b *Broadcaster) Subscribe(transport string) *Listener {
	l := &Listener{
		C:         make(chan []int16, 150), // ~3 seconds of buffer at 20ms/frame
		done:      make(chan struct{}),
		transport: transport,
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	metrics.Listeners.WithLabelValues(transport).Inc()
	return l
}

// Unsubscribe removes a listener and signals it to stop. Calling it twice
// is harmless.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	l.once.Do(func() {
		b.mu.Lock()
		delete(b.listeners, l)
		b.mu.Unlock()
		metrics.Listeners.WithLabelValues(l.transport).Dec()
		close(l.done)
	})
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Run reads frames from source and fans out to all listeners.
// Slow listeners get frames dropped rather than blocking the broadcast.
func (b *Broadcaster) Run(ctx context.Context, source <-chan []int16) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-source:
			if !ok {
				return
			}
			b.mu.RLock()
			for l := range b.listeners {
				select {
				case l.C <- frame:
				default:
					metrics.FramesDroppedTotal.Inc()
				}
			}
			b.mu.RUnlock()
		}
	}
}
