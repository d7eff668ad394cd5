// Package config loads the optional voxscribe YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fmueller/voxscribe/internal/whisper"
	"gopkg.in/yaml.v3"
)

const (
	BackendCLI  = "cli"
	BackendHTTP = "http"
)

// Config holds every setting that can live in the config file.
type Config struct {
	Model    string       `yaml:"model"`
	Language string       `yaml:"language"`
	LogLevel string       `yaml:"log_level"`
	Engine   EngineConfig `yaml:"engine"`
}

// EngineConfig selects and parameterizes the transcription runtime.
type EngineConfig struct {
	Backend     string        `yaml:"backend"` // "cli" or "http"
	Path        string        `yaml:"path"`
	URL         string        `yaml:"url"`
	Device      string        `yaml:"device"`
	ComputeType string        `yaml:"compute_type"`
	BeamSize    int           `yaml:"beam_size"`
	Timeout     time.Duration `yaml:"timeout"` // http backend only
}

// Default returns the built-in configuration used when no file exists.
func Default() *Config {
	return &Config{
		Model:    whisper.DefaultModel,
		Language: "auto",
		LogLevel: "info",
		Engine: EngineConfig{
			Backend:     BackendCLI,
			URL:         whisper.DefaultSidecarURL,
			Device:      whisper.DefaultDevice,
			ComputeType: whisper.DefaultComputeType,
			BeamSize:    whisper.DefaultBeamSize,
			Timeout:     10 * time.Minute,
		},
	}
}

// Load reads and parses a YAML config file. Missing fields keep their
// defaults. A leading ~ in engine.path is expanded to the home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	cfg.Engine.Path = expandTilde(cfg.Engine.Path)
	return cfg, nil
}

// LoadOptional loads path when it exists and falls back to Default when it
// does not. Read and parse failures are still returned.
func LoadOptional(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}

	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if _, err := whisper.ResolveModel(c.Model); err != nil {
		return fmt.Errorf("model: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	switch c.Engine.Backend {
	case BackendCLI:
	case BackendHTTP:
		if strings.TrimSpace(c.Engine.URL) == "" {
			return errors.New("engine.url must not be empty for the http backend")
		}
	default:
		return fmt.Errorf("engine.backend must be %q or %q, got %q", BackendCLI, BackendHTTP, c.Engine.Backend)
	}

	if strings.TrimSpace(c.Engine.Device) == "" {
		return errors.New("engine.device must not be empty")
	}
	if strings.TrimSpace(c.Engine.ComputeType) == "" {
		return errors.New("engine.compute_type must not be empty")
	}
	if c.Engine.BeamSize <= 0 {
		return fmt.Errorf("engine.beam_size must be > 0, got %d", c.Engine.BeamSize)
	}
	if c.Engine.Timeout <= 0 {
		return fmt.Errorf("engine.timeout must be > 0, got %s", c.Engine.Timeout)
	}

	return nil
}

func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
