package stream

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/livrya/ambience/internal/metrics"
)

// startBroadcaster runs b over a fresh source until the returned stop is
// called.
func startBroadcaster(t *testing.T, b *Broadcaster, buffer int) (chan<- []int16, func()) {
	t.Helper()
	source := make(chan []int16, buffer)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx, source)
		close(done)
	}()
	return source, func() {
		cancel()
		<-done
	}
}

func recv(t *testing.T, l *Listener) []int16 {
	t.Helper()
	select {
	case f := <-l.C:
		return f
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for frame")
		return nil
	}
}

func drain(l *Listener) int {
	n := 0
	for {
		select {
		case <-l.C:
			n++
		default:
			return n
		}
	}
}

func TestListenerGaugeByTransport(t *testing.T) {
	b := NewBroadcaster()
	httpGauge := metrics.Listeners.WithLabelValues("http")
	rtcGauge := metrics.Listeners.WithLabelValues("webrtc")
	httpBase, rtcBase := testutil.ToFloat64(httpGauge), testutil.ToFloat64(rtcGauge)

	h1 := b.Subscribe("http")
	h2 := b.Subscribe("http")
	w := b.Subscribe("webrtc")
	assert.Equal(t, 3, b.ListenerCount())
	assert.Equal(t, httpBase+2, testutil.ToFloat64(httpGauge))
	assert.Equal(t, rtcBase+1, testutil.ToFloat64(rtcGauge))

	b.Unsubscribe(h1)
	b.Unsubscribe(w)
	assert.Equal(t, 1, b.ListenerCount())
	assert.Equal(t, httpBase+1, testutil.ToFloat64(httpGauge))
	assert.Equal(t, rtcBase, testutil.ToFloat64(rtcGauge))

	b.Unsubscribe(h2)
	assert.Zero(t, b.ListenerCount())
	assert.Equal(t, httpBase, testutil.ToFloat64(httpGauge))
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := NewBroadcaster()
	gauge := metrics.Listeners.WithLabelValues("http")
	base := testutil.ToFloat64(gauge)

	l := b.Subscribe("http")
	other := b.Subscribe("http")
	b.Unsubscribe(l)
	b.Unsubscribe(l)

	assert.Equal(t, 1, b.ListenerCount(), "second unsubscribe must not touch other listeners")
	assert.Equal(t, base+1, testutil.ToFloat64(gauge), "gauge decremented once")
	select {
	case <-l.Done():
	default:
		t.Fatal("Done not closed after unsubscribe")
	}
	select {
	case <-other.Done():
		t.Fatal("Done closed for a listener still subscribed")
	default:
	}
	b.Unsubscribe(other)
}

func TestRunFansOutToEveryListener(t *testing.T) {
	defer goleak.VerifyNone(t)
	b := NewBroadcaster()
	listeners := []*Listener{b.Subscribe("http"), b.Subscribe("webrtc"), b.Subscribe("http")}
	source, stop := startBroadcaster(t, b, 4)
	defer stop()

	source <- []int16{42, -42}
	source <- []int16{7}

	for i, l := range listeners {
		assert.Equal(t, []int16{42, -42}, recv(t, l), "listener %d first frame", i)
		assert.Equal(t, []int16{7}, recv(t, l), "listener %d second frame", i)
		b.Unsubscribe(l)
	}
}

func TestRunSkipsUnsubscribedListener(t *testing.T) {
	defer goleak.VerifyNone(t)
	b := NewBroadcaster()
	gone := b.Subscribe("http")
	stay := b.Subscribe("http")
	defer b.Unsubscribe(stay)
	b.Unsubscribe(gone)

	source, stop := startBroadcaster(t, b, 1)
	defer stop()

	source <- []int16{1}
	assert.Equal(t, []int16{1}, recv(t, stay))
	assert.Zero(t, drain(gone))
}

func TestSlowListenerDropsFrames(t *testing.T) {
	defer goleak.VerifyNone(t)
	b := NewBroadcaster()
	slow := b.Subscribe("http")
	defer b.Unsubscribe(slow)
	dropped := testutil.ToFloat64(metrics.FramesDroppedTotal)

	const sent = 200
	source, stop := startBroadcaster(t, b, sent)
	for i := 0; i < sent; i++ {
		source <- []int16{int16(i)}
	}
	require.Eventually(t, func() bool { return len(source) == 0 }, time.Second, 5*time.Millisecond)
	stop()

	buffered := cap(slow.C)
	assert.Equal(t, buffered, drain(slow), "slow listener keeps only its buffer")
	assert.Equal(t, dropped+float64(sent-buffered), testutil.ToFloat64(metrics.FramesDroppedTotal))
}

func TestRunStops(t *testing.T) {
	t.Run("context cancelled", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		_, stop := startBroadcaster(t, NewBroadcaster(), 1)
		stop()
	})

	t.Run("source closed", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		source := make(chan []int16)
		done := make(chan struct{})
		go func() {
			NewBroadcaster().Run(context.Background(), source)
			close(done)
		}()
		close(source)
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("broadcaster did not stop after source closed")
		}
	})
}
