// Package store persists generated ambience WAVs under the uploads
// directory and serves them back by name.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/livrya/ambience/internal/ambient"
	"github.com/livrya/ambience/internal/metrics"
)

// Engine identifies the generator that produced a stored track.
const Engine = "curated_catalog"

const (
	subdir    = "ambient"
	urlPrefix = "/uploads/ambient/"
)

var (
	ErrNotFound    = errors.New("ambient asset not found")
	ErrInvalidName = errors.New("invalid ambient asset name")
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// Params are the caller-supplied generation inputs. Both AmbientType and
// DurationSeconds are optional and normalized, never rejected.
type Params struct {
	SpeechID        string
	AmbientType     string
	DurationSeconds *float64
	Origin          string // metrics label; "api" when empty
}

// Result describes a stored track.
type Result struct {
	Engine          string `json:"engine"`
	AmbientType     string `json:"ambientType"`
	DurationSeconds int    `json:"durationSeconds"`
	RelativeURL     string `json:"relativeUrl"`
	Filename        string `json:"filename"`
	Bytes           int    `json:"bytes"`
	Path            string `json:"-"`
}

// Store writes tracks to <root>/ambient.
type Store struct {
	dir string
	now func() time.Time
	log *zap.Logger
}

// New creates a store under uploadsDir. The directory is created lazily.
func New(uploadsDir string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		dir: filepath.Join(uploadsDir, subdir),
		now: time.Now,
		log: log.Named("store"),
	}
}

// Dir returns the directory holding stored tracks.
func (s *Store) Dir() string {
	return s.dir
}

// GenerateAndStore synthesizes a track and writes it to
// ambient_<type>_<speechId>_<unixMillis>.wav.
func (s *Store) GenerateAndStore(ctx context.Context, p Params) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	duration := float64(ambient.DefaultDuration)
	if p.DurationSeconds != nil {
		duration = *p.DurationSeconds
	}
	req := ambient.NewRequest(p.SpeechID, p.AmbientType, duration)

	origin := p.Origin
	if origin == "" {
		origin = "api"
	}

	start := time.Now()
	buf := ambient.Synthesize(req).WAV()
	metrics.SynthesisSeconds.WithLabelValues(string(req.Category)).Observe(time.Since(start).Seconds())
	metrics.TracksGeneratedTotal.WithLabelValues(string(req.Category), origin).Inc()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		metrics.StoreErrorsTotal.Inc()
		return Result{}, fmt.Errorf("create ambient dir: %w", err)
	}

	name := fmt.Sprintf("ambient_%s_%s_%d.wav", req.Category, sanitizeID(p.SpeechID), s.now().UnixMilli())
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		metrics.StoreErrorsTotal.Inc()
		return Result{}, fmt.Errorf("write %s: %w", name, err)
	}
	metrics.BytesWrittenTotal.Add(float64(len(buf)))

	s.log.Info("ambient track stored",
		zap.String("speech_id", p.SpeechID),
		zap.String("category", string(req.Category)),
		zap.Int("duration_s", req.DurationSeconds),
		zap.String("file", name),
		zap.Int("bytes", len(buf)),
	)

	return Result{
		Engine:          Engine,
		AmbientType:     string(req.Category),
		DurationSeconds: req.DurationSeconds,
		RelativeURL:     urlPrefix + name,
		Filename:        name,
		Bytes:           len(buf),
		Path:            path,
	}, nil
}

// Open returns a stored track by its base file name.
func (s *Store) Open(name string) (*os.File, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// Remove deletes a stored track. Missing files are not an error.
func (s *Store) Remove(name string) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

func (s *Store) resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") ||
		!strings.HasSuffix(name, ".wav") {
		return "", ErrInvalidName
	}
	return filepath.Join(s.dir, name), nil
}

// sanitizeID keeps ids safe for file names. Empty ids get a fresh UUID.
func sanitizeID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return uuid.NewString()
	}
	return unsafeChars.ReplaceAllString(id, "-")
}
