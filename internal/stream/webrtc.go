package stream

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"go.uber.org/zap"
	"gopkg.in/hraban/opus.v2"

	"github.com/livrya/ambience/internal/audio"
)

// WebRTCHandler serves WebRTC SDP negotiation for low-latency Opus streaming.
type WebRTCHandler struct {
	broadcaster *Broadcaster
	log         *zap.Logger
	config      webrtc.Configuration

	mu    sync.Mutex
	peers map[*webrtc.PeerConnection]chan struct{}
}

// NewWebRTCHandler creates a WebRTC stream handler. iceServers may be empty
// for LAN use.
func NewWebRTCHandler(b *Broadcaster, iceServers []string, log *zap.Logger) *WebRTCHandler {
	if log == nil {
		log = zap.NewNop()
	}
	cfg := webrtc.Configuration{}
	if len(iceServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: iceServers}}
	}
	return &WebRTCHandler{
		broadcaster: b,
		log:         log.Named("webrtc"),
		config:      cfg,
		peers:       make(map[*webrtc.PeerConnection]chan struct{}),
	}
}

// PeerCount returns the number of active WebRTC peers.
func (h *WebRTCHandler) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// Close hangs up every peer.
func (h *WebRTCHandler) Close() {
	h.mu.Lock()
	peers := make([]*webrtc.PeerConnection, 0, len(h.peers))
	for pc := range h.peers {
		peers = append(peers, pc)
	}
	h.mu.Unlock()
	for _, pc := range peers {
		h.removePeer(pc)
		_ = pc.Close()
	}
}

func (h *WebRTCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var offer webrtc.SessionDescription
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&offer); err != nil || offer.SDP == "" {
		writeError(w, http.StatusBadRequest, "invalid SDP offer")
		return
	}

	pc, err := webrtc.NewPeerConnection(h.config)
	if err != nil {
		h.log.Error("create peer connection", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "create peer connection failed")
		return
	}

	audioTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: audio.SampleRate, Channels: audio.Channels},
		"audio",
		"livrya-ambience",
	)
	if err != nil {
		pc.Close()
		writeError(w, http.StatusInternalServerError, "create audio track failed")
		return
	}

	if _, err := pc.AddTrack(audioTrack); err != nil {
		pc.Close()
		writeError(w, http.StatusInternalServerError, "add track failed")
		return
	}

	if err := pc.SetRemoteDescription(offer); err != nil {
		pc.Close()
		writeError(w, http.StatusBadRequest, "set remote description failed")
		return
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		writeError(w, http.StatusInternalServerError, "create answer failed")
		return
	}

	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		writeError(w, http.StatusInternalServerError, "set local description failed")
		return
	}

	select {
	case <-gatherComplete:
	case <-r.Context().Done():
		pc.Close()
		return
	}

	closed := make(chan struct{})
	h.mu.Lock()
	h.peers[pc] = closed
	h.mu.Unlock()

	h.log.Info("peer connected", zap.Int("total", h.PeerCount()))

	go h.streamToPeer(closed, audioTrack)

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		if s == webrtc.PeerConnectionStateFailed ||
			s == webrtc.PeerConnectionStateClosed ||
			s == webrtc.PeerConnectionStateDisconnected {
			if h.removePeer(pc) {
				_ = pc.Close()
				h.log.Info("peer disconnected", zap.Int("remaining", h.PeerCount()))
			}
		}
	})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(pc.LocalDescription())
}

func (h *WebRTCHandler) streamToPeer(closed <-chan struct{}, track *webrtc.TrackLocalStaticSample) {
	listener := h.broadcaster.Subscribe("webrtc")
	defer h.broadcaster.Unsubscribe(listener)

	enc, err := opus.NewEncoder(audio.SampleRate, audio.Channels, opus.AppAudio)
	if err != nil {
		h.log.Error("opus encoder", zap.Error(err))
		return
	}
	if err := enc.SetBitrate(128000); err != nil {
		h.log.Warn("opus bitrate", zap.Error(err))
	}

	opusBuf := make([]byte, 4000)

	for {
		select {
		case <-closed:
			return
		case <-listener.done:
			return
		case frame, ok := <-listener.C:
			if !ok {
				return
			}
			n, err := enc.Encode(frame, opusBuf)
			if err != nil {
				h.log.Warn("opus encode", zap.Error(err))
				continue
			}
			if err := track.WriteSample(media.Sample{
				Data:     opusBuf[:n],
				Duration: audio.FrameDuration,
			}); err != nil {
				return
			}
		}
	}
}

// removePeer forgets pc and stops its stream. It reports whether pc was
// still registered.
func (h *WebRTCHandler) removePeer(pc *webrtc.PeerConnection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	closed, ok := h.peers[pc]
	if !ok {
		return false
	}
	delete(h.peers, pc)
	close(closed)
	return true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
