package stream

import (
	"context"
	"io"
	"net/http"
	"os/exec"

	"go.uber.org/zap"

	"github.com/livrya/ambience/internal/audio"
)

// ffmpegArgs encodes s16le 48kHz stereo on stdin to MP3 on stdout.
var ffmpegArgs = []string{
	"-f", "s16le",
	"-ar", "48000",
	"-ac", "2",
	"-i", "pipe:0",
	"-codec:a", "libmp3lame",
	"-b:a", "192k",
	"-f", "mp3",
	"-fflags", "nobuffer",
	"-flush_packets", "1",
	"-loglevel", "error",
	"pipe:1",
}

// HTTPHandler serves a chunked MP3 audio stream via HTTP.
// Each connection spawns an encoder process to convert PCM to MP3 in real time.
type HTTPHandler struct {
	broadcaster *Broadcaster
	log         *zap.Logger
	encoder     []string // argv of the encoder process
}

// NewHTTPHandler creates an HTTP stream handler.
func NewHTTPHandler(b *Broadcaster, log *zap.Logger) *HTTPHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPHandler{
		broadcaster: b,
		log:         log.Named("http-stream"),
		encoder:     append([]string{"ffmpeg"}, ffmpegArgs...),
	}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	cmd := exec.CommandContext(ctx, h.encoder[0], h.encoder[1:]...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		h.log.Error("stdin pipe", zap.Error(err))
		http.Error(w, "encoder unavailable", http.StatusInternalServerError)
		return
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		h.log.Error("stdout pipe", zap.Error(err))
		http.Error(w, "encoder unavailable", http.StatusInternalServerError)
		return
	}

	if err := cmd.Start(); err != nil {
		h.log.Error("encoder start", zap.String("encoder", h.encoder[0]), zap.Error(err))
		http.Error(w, "encoder unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	w.Header().Set("ICY-Name", "livrya ambience")

	listener := h.broadcaster.Subscribe("http")
	defer h.broadcaster.Unsubscribe(listener)

	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.log.Info("listener connected", zap.Int("total", h.broadcaster.ListenerCount()))
	defer h.log.Info("listener disconnected")

	// Feed PCM frames to the encoder
	go func() {
		defer stdin.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-listener.done:
				return
			case frame, ok := <-listener.C:
				if !ok {
					return
				}
				if _, err := stdin.Write(audio.SamplesToBytes(frame)); err != nil {
					return
				}
			}
		}
	}()

	// Copy encoded audio to the response
	buf := make([]byte, 4096)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				break
			}
			flusher.Flush()
		}
		if err != nil {
			if err != io.EOF {
				h.log.Warn("encoder read", zap.Error(err))
			}
			break
		}
	}

	cancel()
	_ = cmd.Wait()
}
