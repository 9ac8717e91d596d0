package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. PARLEY_SELECTION_STRATEGY.
const EnvPrefix = "PARLEY_"

type Config struct {
	Content       ContentConfig       `yaml:"content" envPrefix:"CONTENT_"`
	Selection     SelectionConfig     `yaml:"selection" envPrefix:"SELECTION_"`
	Scoring       ScoringConfig       `yaml:"scoring" envPrefix:"SCORING_"`
	Relationships RelationshipsConfig `yaml:"relationships" envPrefix:"RELATIONSHIPS_"`
	Logging       LoggingConfig       `yaml:"logging" envPrefix:"LOG_"`
	Tracing       TracingConfig       `yaml:"tracing" envPrefix:"TRACE_"`
}

type ContentConfig struct {
	Dir           string `yaml:"dir" env:"DIR" validate:"required"`
	TranscriptDir string `yaml:"transcript_dir" env:"TRANSCRIPT_DIR"`
}

type SelectionConfig struct {
	Strategy       string  `yaml:"strategy" env:"STRATEGY" validate:"required,oneof=highest_score weighted_random least_recent"`
	RecencyWindow  int     `yaml:"recency_window" env:"RECENCY_WINDOW" validate:"min=0,max=64"`
	RecencyPenalty float64 `yaml:"recency_penalty" env:"RECENCY_PENALTY" validate:"min=0,max=1"`
	// Seed fixes the random source; zero draws a fresh seed.
	Seed       uint64 `yaml:"seed" env:"SEED"`
	TrackUsage bool   `yaml:"track_usage" env:"TRACK_USAGE"`
}

type ScoringConfig struct {
	BaseScore                  float64 `yaml:"base_score" env:"BASE_SCORE" validate:"min=0"`
	Workers                    int     `yaml:"workers" env:"WORKERS" validate:"min=0,max=256"`
	ParallelThreshold          int     `yaml:"parallel_threshold" env:"PARALLEL_THRESHOLD" validate:"min=1"`
	ApplyRelationshipModifiers bool    `yaml:"apply_relationship_modifiers" env:"APPLY_RELATIONSHIP_MODIFIERS"`
	// TagWeights adds a weight to fragments carrying the tag, e.g. threat:2.
	TagWeights map[string]float64 `yaml:"tag_weights" env:"TAG_WEIGHTS"`
}

type RelationshipsConfig struct {
	Backend string  `yaml:"backend" env:"BACKEND" validate:"required,oneof=memory sqlite"`
	DSN     string  `yaml:"dsn" env:"DSN" validate:"required_if=Backend sqlite"`
	Default float64 `yaml:"default" env:"DEFAULT" validate:"min=0,max=100"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"LEVEL" validate:"required,oneof=debug info warn error"`
	Format string `yaml:"format" env:"FORMAT" validate:"required,oneof=text json"`
}

type TracingConfig struct {
	// Log reports every core operation through the logger at debug level.
	Log bool `yaml:"log" env:"LOG"`
	// Spans records OpenTelemetry spans for core operations.
	Spans bool `yaml:"spans" env:"SPANS"`
}

// Default returns a configuration that runs with in-memory relationships and
// content in ./content.
func Default() *Config {
	return &Config{
		Content: ContentConfig{Dir: "content"},
		Selection: SelectionConfig{
			Strategy:       "weighted_random",
			RecencyWindow:  3,
			RecencyPenalty: 0.25,
		},
		Scoring: ScoringConfig{
			BaseScore:                  1.0,
			ParallelThreshold:          16,
			ApplyRelationshipModifiers: true,
		},
		Relationships: RelationshipsConfig{Backend: "memory"},
		Logging:       LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, a .env file in the working directory, and PARLEY_* environment
// variables, in increasing precedence.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(expandTilde(path))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.Content.Dir = expandTilde(cfg.Content.Dir)
	cfg.Content.TranscriptDir = expandTilde(cfg.Content.TranscriptDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// expandTilde expands a tilde (~) at the beginning of a path to the user's home directory
func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// NewLogger builds the process logger described by c.
func (c LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
