package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration. Values come from defaults, then an
// optional YAML file, then environment variables.
type Config struct {
	// Server
	Port       int    `yaml:"port"`
	UploadsDir string `yaml:"uploads_dir"`

	// Logging
	LogLevel string `yaml:"log_level"`
	LogDev   bool   `yaml:"log_dev"`

	// Ambience channel
	ChannelEnabled    bool          `yaml:"channel_enabled"`
	StartingCategory  string        `yaml:"starting_category"`
	TrackDuration     int           `yaml:"track_duration"` // seconds
	CrossfadeDuration time.Duration `yaml:"crossfade"`      // crossfade length
	BufferAhead       int           `yaml:"buffer_ahead"`   // tracks to pre-generate
	DwellMin          int           `yaml:"dwell_min"`      // min seconds per category
	DwellMax          int           `yaml:"dwell_max"`      // max seconds per category

	// Ollama (optional soundtrack suggestions and track names)
	OllamaURL         string        `yaml:"ollama_url"`
	OllamaModel       string        `yaml:"ollama_model"`
	OllamaTemperature float64       `yaml:"ollama_temperature"`
	SuggestTimeout    time.Duration `yaml:"suggest_timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:       8080,
		UploadsDir: "./uploads",

		LogLevel: "info",

		ChannelEnabled:    true,
		StartingCategory:  "nature",
		TrackDuration:     60,
		CrossfadeDuration: 6 * time.Second,
		BufferAhead:       2,
		DwellMin:          300,
		DwellMax:          900,

		OllamaModel:       "qwen3:8b",
		OllamaTemperature: 0.4,
		SuggestTimeout:    20 * time.Second,
	}
}

// Load builds the configuration. path may be empty; AMBIENCE_CONFIG is used
// as the file path when path is empty.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("AMBIENCE_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Port = envInt("AMBIENCE_PORT", cfg.Port)
	cfg.UploadsDir = envStr("AMBIENCE_UPLOADS_DIR", cfg.UploadsDir)

	cfg.LogLevel = envStr("AMBIENCE_LOG_LEVEL", cfg.LogLevel)
	cfg.LogDev = envBool("AMBIENCE_LOG_DEV", cfg.LogDev)

	cfg.ChannelEnabled = envBool("AMBIENCE_CHANNEL", cfg.ChannelEnabled)
	cfg.StartingCategory = envStr("AMBIENCE_CATEGORY", cfg.StartingCategory)
	cfg.TrackDuration = envInt("AMBIENCE_TRACK_DURATION", cfg.TrackDuration)
	if v := envInt("AMBIENCE_CROSSFADE_DURATION", -1); v >= 0 {
		cfg.CrossfadeDuration = time.Duration(v) * time.Second
	}
	cfg.BufferAhead = envInt("AMBIENCE_BUFFER_AHEAD", cfg.BufferAhead)
	cfg.DwellMin = envInt("AMBIENCE_DWELL_MIN", cfg.DwellMin)
	cfg.DwellMax = envInt("AMBIENCE_DWELL_MAX", cfg.DwellMax)

	cfg.OllamaURL = envStr("OLLAMA_URL", cfg.OllamaURL)
	cfg.OllamaModel = envStr("OLLAMA_MODEL", cfg.OllamaModel)
	cfg.OllamaTemperature = envFloat("OLLAMA_TEMPERATURE", cfg.OllamaTemperature)
	if v := envInt("AMBIENCE_SUGGEST_TIMEOUT", -1); v > 0 {
		cfg.SuggestTimeout = time.Duration(v) * time.Second
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
