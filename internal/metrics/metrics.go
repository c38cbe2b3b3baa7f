package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gauges
var (
	Listeners = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "livrya_ambience_listeners",
		Help: "Connected channel listeners by transport",
	}, []string{"transport"})
	QueuedTracks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "livrya_ambience_queued_tracks",
		Help: "Tracks waiting in the playback queue",
	})
)

// Counters
var (
	TracksGeneratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livrya_ambience_tracks_generated_total",
		Help: "Ambient tracks synthesized, by category and origin",
	}, []string{"category", "origin"})
	BytesWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livrya_ambience_bytes_written_total",
		Help: "WAV bytes persisted to the asset store",
	})
	StoreErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livrya_ambience_store_errors_total",
		Help: "Asset store write failures",
	})
	TracksPlayedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livrya_ambience_tracks_played_total",
		Help: "Tracks started by the playback pipeline",
	})
	DecodeErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livrya_ambience_decode_errors_total",
		Help: "Queued tracks that failed to decode",
	})
	FramesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livrya_ambience_frames_dropped_total",
		Help: "Frames dropped for slow listeners",
	})
	SuggestionFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livrya_ambience_suggestion_fallbacks_total",
		Help: "Soundtrack suggestions answered with the fixed fallback",
	})
)

// Histograms
var (
	SynthesisSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "livrya_ambience_synthesis_seconds",
		Help:    "Time spent synthesizing one track, by category",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"category"})
)
