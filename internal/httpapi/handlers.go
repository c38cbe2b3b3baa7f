// Package httpapi exposes ambience generation, stored assets, soundtrack
// suggestions and the ambience channel over HTTP.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/livrya/ambience/internal/ambient"
	"github.com/livrya/ambience/internal/audio"
	"github.com/livrya/ambience/internal/ollama"
	"github.com/livrya/ambience/internal/soundscape"
	"github.com/livrya/ambience/internal/store"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// Channel controls the ambience channel. *soundscape.Scheduler implements it.
type Channel interface {
	Status() soundscape.SchedulerStatus
	SetCategory(raw string) error
	Skip()
	SetAutoRotate(enabled bool)
	SetTrackDuration(seconds int)
	TrackDuration() int
}

// Player reports and tunes playback. *audio.Pipeline implements it.
type Player interface {
	Status() (track audio.TrackInfo, position, duration time.Duration)
	SetCrossfade(d time.Duration)
	CrossfadeDuration() time.Duration
}

// Deps are the collaborators behind the HTTP surface. Channel, Player,
// Stream and Offer may be nil when the channel is disabled.
type Deps struct {
	Store          *store.Store
	Suggester      *ollama.Suggester
	SuggestTimeout time.Duration

	Channel       Channel
	Player        Player
	Stream        http.Handler
	Offer         http.Handler
	ListenerCount func() int
	PeerCount     func() int
	LLMModel      string

	Log *zap.Logger
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	d   Deps
	log *zap.Logger
}

// NewHandlers creates handlers over d.
func NewHandlers(d Deps) *Handlers {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	if d.Suggester == nil {
		d.Suggester = ollama.NewSuggester(nil, log)
	}
	if d.SuggestTimeout <= 0 {
		d.SuggestTimeout = 20 * time.Second
	}
	return &Handlers{d: d, log: log.Named("http")}
}

// Health handles GET /healthz.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type categoryInfo struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// Categories handles GET /api/ambient/categories.
func (h *Handlers) Categories(w http.ResponseWriter, r *http.Request) {
	cats := ambient.Categories()
	out := make([]categoryInfo, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryInfo{ID: string(c), Description: ambient.Describe(c)})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"categories":      out,
		"default":         ambient.DefaultCategory,
		"minDuration":     ambient.MinDuration,
		"maxDuration":     ambient.MaxDuration,
		"defaultDuration": ambient.DefaultDuration,
	})
}

// Preview handles GET /api/ambient/preview?type=&duration=. The track is
// synthesized on the fly and not stored.
func (h *Handlers) Preview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	seconds := float64(ambient.DefaultDuration)
	if raw := q.Get("duration"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			seconds = v
		}
	}
	req := ambient.NewRequest("preview", q.Get("type"), seconds)
	buf := ambient.Synthesize(req).WAV()

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(buf)))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="ambient_%s_%ds.wav"`, req.Category, req.DurationSeconds))
	w.Header().Set("X-Ambient-Type", string(req.Category))
	w.Header().Set("X-Ambient-Duration", strconv.Itoa(req.DurationSeconds))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(buf)
	}
}

type generateBody struct {
	AmbientType     string   `json:"ambientType"`
	DurationSeconds *float64 `json:"durationSeconds"`
	Duration        *float64 `json:"duration"`
}

// GenerateAmbient handles POST /api/speeches/{speechId}/ambient-audio.
// A missing or malformed body generates the default track.
func (h *Handlers) GenerateAmbient(w http.ResponseWriter, r *http.Request) {
	speechID := chi.URLParam(r, "speechId")

	body, ok := decodeLenient[generateBody](h.log, w, r)
	if !ok {
		return
	}
	duration := body.DurationSeconds
	if duration == nil {
		duration = body.Duration
	}

	res, err := h.d.Store.GenerateAndStore(r.Context(), store.Params{
		SpeechID:        speechID,
		AmbientType:     body.AmbientType,
		DurationSeconds: duration,
	})
	if err != nil {
		h.log.Error("generate ambient", zap.String("speech_id", speechID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to generate ambient audio")
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// ServeAsset handles GET /uploads/ambient/{name}.
func (h *Handlers) ServeAsset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	f, err := h.d.Store.Open(name)
	switch {
	case errors.Is(err, store.ErrInvalidName):
		writeError(w, http.StatusBadRequest, "invalid asset name")
		return
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "asset not found")
		return
	case err != nil:
		h.log.Error("open asset", zap.String("name", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to open asset")
		return
	}
	defer f.Close()

	var modTime time.Time
	if fi, err := f.Stat(); err == nil {
		modTime = fi.ModTime()
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeContent(w, r, name, modTime, f)
}

type soundtrackBody struct {
	BookTitle    string `json:"bookTitle"`
	ChapterTitle string `json:"chapterTitle"`
	Excerpt      string `json:"excerpt"`
}

// SuggestSoundtrack handles POST /api/chapters/{chapterId}/soundtrack/generate.
func (h *Handlers) SuggestSoundtrack(w http.ResponseWriter, r *http.Request) {
	chapterID := chi.URLParam(r, "chapterId")

	body, ok := decodeLenient[soundtrackBody](h.log, w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.d.SuggestTimeout)
	defer cancel()
	s := h.d.Suggester.Suggest(ctx, ollama.SoundtrackContext{
		BookTitle:    body.BookTitle,
		ChapterTitle: body.ChapterTitle,
		Excerpt:      body.Excerpt,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"chapterId":   chapterID,
		"suggestion":  s,
		"ambientType": ollama.AmbientFor(s.Mood),
		"message":     "This is a suggestion; pair it with a generated ambience bed or pick music that matches it.",
	})
}

// Status handles GET /api/status.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	st := h.d.Channel.Status()
	track, pos, dur := h.d.Player.Status()

	trackName := track.Name
	if trackName == "" {
		trackName = soundscape.TrackName(ambient.Category(track.Category), track.ID)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"category":        st.Category,
		"description":     ambient.Describe(ambient.Category(st.Category)),
		"auto_rotate":     st.AutoRotate,
		"idle":            !st.Listening,
		"dwell_remaining": st.DwellRemaining,
		"queue_size":      st.QueueSize,
		"track_id":        track.ID,
		"track_name":      trackName,
		"track_category":  track.Category,
		"position":        pos.Seconds(),
		"duration":        dur.Seconds(),
		"listeners":       count(h.d.ListenerCount),
		"webrtc_peers":    count(h.d.PeerCount),
		"config": map[string]any{
			"track_duration": h.d.Channel.TrackDuration(),
			"crossfade":      h.d.Player.CrossfadeDuration().Seconds(),
			"llm_model":      h.d.LLMModel,
		},
	})
}

// SetCategory handles POST /api/category.
func (h *Handlers) SetCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category string `json:"category"`
	}
	if err := decodeStrict(w, r, &req); err != nil || req.Category == "" {
		writeError(w, http.StatusBadRequest, "invalid category")
		return
	}
	if err := h.d.Channel.SetCategory(req.Category); err != nil {
		writeError(w, http.StatusBadRequest, "unknown category")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "category": ambient.NormalizeCategory(req.Category)})
}

// Skip handles POST /api/skip.
func (h *Handlers) Skip(w http.ResponseWriter, r *http.Request) {
	h.d.Channel.Skip()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// SetAutoRotate handles POST /api/autorotate.
func (h *Handlers) SetAutoRotate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := decodeStrict(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	h.d.Channel.SetAutoRotate(req.Enabled)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "auto_rotate": req.Enabled})
}

// SetConfig handles POST /api/config.
func (h *Handlers) SetConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TrackDuration *int     `json:"track_duration"`
		Crossfade     *float64 `json:"crossfade"`
	}
	if err := decodeStrict(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.TrackDuration != nil {
		v := *req.TrackDuration
		if v < ambient.MinDuration || v > ambient.MaxDuration {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("track_duration must be %d-%d", ambient.MinDuration, ambient.MaxDuration))
			return
		}
	}
	if req.Crossfade != nil {
		v := *req.Crossfade
		if v < 1 || v > 30 {
			writeError(w, http.StatusBadRequest, "crossfade must be 1-30")
			return
		}
	}

	if req.TrackDuration != nil {
		h.d.Channel.SetTrackDuration(*req.TrackDuration)
	}
	if req.Crossfade != nil {
		h.d.Player.SetCrossfade(time.Duration(*req.Crossfade * float64(time.Second)))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":             true,
		"track_duration": h.d.Channel.TrackDuration(),
		"crossfade":      h.d.Player.CrossfadeDuration().Seconds(),
	})
}

// decodeLenient reads an optional JSON body. Malformed JSON yields the zero
// value. It reports false after answering 413 for oversized bodies.
func decodeLenient[T any](log *zap.Logger, w http.ResponseWriter, r *http.Request) (T, bool) {
	var zero T
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return zero, false
		}
		return zero, true
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return zero, true
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		log.Debug("ignoring malformed body", zap.String("path", r.URL.Path), zap.Error(err))
		return zero, true
	}
	return v, true
}

func decodeStrict(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func count(fn func() int) int {
	if fn == nil {
		return 0
	}
	return fn()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
