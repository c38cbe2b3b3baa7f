package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/livrya/ambience/internal/ambient"
	"github.com/livrya/ambience/internal/metrics"
)

// maxExcerptRunes bounds how much chapter text is sent to the model.
const maxExcerptRunes = 500

// Generator produces LLM completions. *Client implements it.
type Generator interface {
	Generate(ctx context.Context, system, prompt string, jsonOut bool) (string, error)
}

// SoundtrackContext is what the model sees about a chapter.
type SoundtrackContext struct {
	BookTitle    string
	ChapterTitle string
	Excerpt      string
}

// Suggestion is a soundtrack recommendation for a chapter.
type Suggestion struct {
	Mood        string   `json:"mood"`
	Tempo       string   `json:"tempo"`
	Instruments []string `json:"instruments"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

var (
	moods  = []string{"epic", "calm", "tense", "romantic", "mysterious"}
	tempos = []string{"slow", "medium", "fast"}
)

// moodCategories maps a suggested mood onto the closest ambience bed.
var moodCategories = map[string]ambient.Category{
	"epic":       ambient.Wind,
	"calm":       ambient.Nature,
	"tense":      ambient.City,
	"romantic":   ambient.Fireplace,
	"mysterious": ambient.Rain,
}

// Fallback is returned whenever a suggestion cannot be produced.
func Fallback() Suggestion {
	return Suggestion{
		Mood:        "calm",
		Tempo:       "medium",
		Instruments: []string{"piano"},
		Description: "Soft, contemplative soundtrack",
		Keywords:    []string{"ambient"},
	}
}

// AmbientFor returns the ambience category for a mood. Unknown moods map to
// the default category.
func AmbientFor(mood string) ambient.Category {
	if c, ok := moodCategories[strings.ToLower(strings.TrimSpace(mood))]; ok {
		return c
	}
	return ambient.DefaultCategory
}

const suggestSystemPrompt = `You are a soundtrack and ambient music specialist for audiobook narration.
Analyse the chapter context and suggest a fitting soundtrack.

Reply with ONLY a JSON object of this shape:
{
  "mood": "epic" | "calm" | "tense" | "romantic" | "mysterious",
  "tempo": "slow" | "medium" | "fast",
  "instruments": ["piano", "strings", "drums"],
  "description": "one sentence describing the soundtrack",
  "keywords": ["cinematic", "orchestral"]
}

/no_think`

const nameSystemPrompt = `You are a track name generator for an ambience radio channel.

Given an ambience category and its description, generate a short evocative track name (2-4 words).

Rules:
- Evocative and atmospheric, not literal
- No numbers, no "Track 1", no "Untitled"
- Lowercase only

Output ONLY the track name. Nothing else.

/no_think`

// Suggester turns chapter context into soundtrack suggestions and names
// channel tracks. A nil Generator makes every call fall back.
type Suggester struct {
	gen Generator
	log *zap.Logger
}

// NewSuggester creates a Suggester. gen may be nil.
func NewSuggester(gen Generator, log *zap.Logger) *Suggester {
	if log == nil {
		log = zap.NewNop()
	}
	return &Suggester{gen: gen, log: log.Named("suggest")}
}

// Suggest asks the model for a soundtrack. It never fails: any error yields
// Fallback.
func (s *Suggester) Suggest(ctx context.Context, sc SoundtrackContext) Suggestion {
	if s.gen == nil {
		metrics.SuggestionFallbacksTotal.Inc()
		return Fallback()
	}

	raw, err := s.gen.Generate(ctx, suggestSystemPrompt, suggestPrompt(sc), true)
	if err != nil {
		s.log.Warn("suggestion failed", zap.Error(err))
		metrics.SuggestionFallbacksTotal.Inc()
		return Fallback()
	}

	var got Suggestion
	if err := json.Unmarshal([]byte(cleanResponse(raw)), &got); err != nil {
		s.log.Warn("unparseable suggestion", zap.String("raw", raw), zap.Error(err))
		metrics.SuggestionFallbacksTotal.Inc()
		return Fallback()
	}
	return repair(got)
}

// Name returns an evocative name for a channel track, or "" on failure.
func (s *Suggester) Name(ctx context.Context, c ambient.Category) string {
	if s.gen == nil {
		return ""
	}
	prompt := fmt.Sprintf("Category: %s\nDescription: %s", c, ambient.Describe(c))
	name, err := s.gen.Generate(ctx, nameSystemPrompt, prompt, false)
	if err != nil {
		s.log.Debug("name generation failed", zap.Error(err))
		return ""
	}

	name = strings.ToLower(cleanResponse(name))
	if name == "" || len(name) > 60 || strings.Count(name, " ") > 4 {
		s.log.Debug("unusable name", zap.String("name", name))
		return ""
	}
	return name
}

func suggestPrompt(sc SoundtrackContext) string {
	book := strings.TrimSpace(sc.BookTitle)
	if book == "" {
		book = "Unknown"
	}
	excerpt := strings.TrimSpace(sc.Excerpt)
	if r := []rune(excerpt); len(r) > maxExcerptRunes {
		excerpt = string(r[:maxExcerptRunes]) + "..."
	}
	return fmt.Sprintf("Book: %s\nChapter: %s\nOpening lines: %s", book, strings.TrimSpace(sc.ChapterTitle), excerpt)
}

// repair replaces out-of-vocabulary or missing fields with fallback values.
func repair(s Suggestion) Suggestion {
	fb := Fallback()
	s.Mood = strings.ToLower(strings.TrimSpace(s.Mood))
	if !contains(moods, s.Mood) {
		s.Mood = fb.Mood
	}
	s.Tempo = strings.ToLower(strings.TrimSpace(s.Tempo))
	if !contains(tempos, s.Tempo) {
		s.Tempo = fb.Tempo
	}
	if len(s.Instruments) == 0 {
		s.Instruments = fb.Instruments
	}
	if strings.TrimSpace(s.Description) == "" {
		s.Description = fb.Description
	}
	if s.Keywords == nil {
		s.Keywords = []string{}
	}
	return s
}

func contains(set []string, v string) bool {
	for _, x := range set {
		if x == v {
			return true
		}
	}
	return false
}

// cleanResponse strips common LLM artifacts from output.
func cleanResponse(s string) string {
	s = strings.TrimSpace(s)

	// Qwen 3 thinking-mode leakage
	if idx := strings.Index(s, "</think>"); idx >= 0 {
		s = strings.TrimSpace(s[idx+len("</think>"):])
	}

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	return strings.TrimSpace(s)
}
