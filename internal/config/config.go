// Package config loads the JSON configuration shared by the chessbot
// commands and sets up logging.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/constraints"

	"github.com/hailam/chessbot/internal/engine"
	"github.com/hailam/chessbot/internal/rules"
)

// MaxSearchDepth bounds engine.max_depth. The search has no transposition
// table or move ordering, so deeper settings never finish in play.
const MaxSearchDepth = 10

// Config is the file layout. Every section is optional; missing fields
// keep their Default values.
type Config struct {
	Engine  EngineConfig  `json:"engine"`
	Rules   string        `json:"rules"`
	Server  ServerConfig  `json:"server"`
	Storage StorageConfig `json:"storage"`
	Bench   BenchConfig   `json:"bench"`
	Log     LogConfig     `json:"log"`
}

// EngineConfig sets the search used by the UCI and bench commands.
type EngineConfig struct {
	MaxDepth     int  `json:"max_depth"`
	TimeBudgetMs int  `json:"time_budget_ms"`
	Positional   bool `json:"positional"`
}

// ServerConfig sets where the WebSocket server listens.
type ServerConfig struct {
	Addr string `json:"addr"`
}

// StorageConfig locates the badger database.
type StorageConfig struct {
	Dir      string `json:"dir"` // empty = per-user data directory
	Disabled bool   `json:"disabled"`
}

// BenchConfig sets the bench search depth and how many positions run at once.
type BenchConfig struct {
	Depth       int `json:"depth"`
	Concurrency int `json:"concurrency"` // 0 = GOMAXPROCS
}

// LogConfig sets the zerolog level and whether output is human-readable.
type LogConfig struct {
	Level  string `json:"level"`
	Pretty bool   `json:"pretty"`
}

// Default returns the settings used when no config file is given.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			MaxDepth:     engine.DefaultMaxDepth,
			TimeBudgetMs: 0,
			Positional:   true,
		},
		Rules:  rules.Dragon.String(),
		Server: ServerConfig{Addr: ":8080"},
		Bench:  BenchConfig{Depth: 4},
		Log:    LogConfig{Level: "info", Pretty: true},
	}
}

// Load reads the file at path over the defaults. An empty path yields the
// defaults. Unknown fields are rejected so that typos do not go unnoticed.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

// Validate reports settings that cannot be repaired by clamping.
func (c Config) Validate() error {
	if _, err := rules.ParseBackend(c.Rules); err != nil {
		return err
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	return nil
}

func (c *Config) normalize() {
	c.Engine.MaxDepth = clamp(c.Engine.MaxDepth, 1, MaxSearchDepth)
	c.Engine.TimeBudgetMs = max(c.Engine.TimeBudgetMs, 0)
	c.Bench.Depth = clamp(c.Bench.Depth, 1, MaxSearchDepth)
	c.Bench.Concurrency = max(c.Bench.Concurrency, 0)
}

// Backend returns the configured rules backend. Load has validated it.
func (c Config) Backend() rules.Backend {
	b, _ := rules.ParseBackend(c.Rules)
	return b
}

// EngineConfig builds the engine configuration.
func (c Config) EngineConfig() engine.Config {
	return engine.Config{
		MaxDepth:   c.Engine.MaxDepth,
		TimeBudget: time.Duration(c.Engine.TimeBudgetMs) * time.Millisecond,
		Evaluator:  engine.Classical{Positional: c.Engine.Positional},
	}
}

// SetupLogging points the global logger at w with the configured level.
func SetupLogging(cfg LogConfig, w io.Writer) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return nil
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	return min(max(v, lo), hi)
}
