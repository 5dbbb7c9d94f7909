package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"

	"github.com/hiway/resonate/pkg/preset"
)

const (
	// SystemPath is the system-wide configuration file.
	SystemPath = "/usr/local/etc/resonate.toml"
	// LocalPath is the configuration file in the working directory.
	LocalPath = "./resonate.toml"
	// xdgRelPath is resolved against the XDG config directories.
	xdgRelPath = "resonate/resonate.toml"
)

// Settings are the scalar options. Each can be overridden from the environment.
type Settings struct {
	SampleRate  int     `toml:"sample_rate" env:"RESONATE_SAMPLE_RATE"`
	Workers     int     `toml:"workers" env:"RESONATE_WORKERS"`
	QueueLength int     `toml:"queue_length" env:"RESONATE_QUEUE_LENGTH"`
	OutputDir   string  `toml:"output_dir" env:"RESONATE_OUTPUT_DIR"`
	ListenAddr  string  `toml:"listen_addr" env:"RESONATE_LISTEN_ADDR"`
	LogLevel    string  `toml:"log_level" env:"RESONATE_LOG_LEVEL"`
	MaxMinutes  float64 `toml:"max_minutes" env:"RESONATE_MAX_MINUTES"` // Cap for HTTP renders
}

// Config holds the complete resonate configuration.
type Config struct {
	Settings
	Presets map[string]*preset.Preset `toml:"presets"`
	Jobs    []*Job                    `toml:"jobs"`

	// Table is the built-in table merged with Presets. Set by Finalize.
	Table *preset.Table `toml:"-"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		Settings: Settings{
			SampleRate:  44100,
			Workers:     4,
			QueueLength: 16,
			OutputDir:   ".",
			ListenAddr:  ":8080",
			LogLevel:    "info",
			MaxMinutes:  10,
		},
		Presets: map[string]*preset.Preset{},
	}
}

// SearchPaths returns the configuration files in order of increasing priority.
func SearchPaths(log zerolog.Logger) []string {
	paths := []string{SystemPath}
	if p, err := xdg.SearchConfigFile(xdgRelPath); err == nil {
		paths = append(paths, p)
	} else {
		log.Trace().Err(err).Msg("No XDG config file")
	}
	return append(paths, LocalPath)
}

// Load builds the configuration. An explicit path replaces the search paths and
// must exist. Environment variables are applied last.
func Load(path string, log zerolog.Logger) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.LoadFile(path, log); err != nil {
			return nil, err
		}
	} else {
		for _, file := range SearchPaths(log) {
			if _, err := os.Stat(file); err != nil {
				if !errors.Is(err, os.ErrNotExist) {
					log.Warn().Err(err).Str("path", file).Msg("Error checking config file")
				}
				continue
			}
			if err := cfg.LoadFile(file, log); err != nil {
				return nil, err
			}
		}
	}

	if err := env.Parse(&cfg.Settings); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	log.Debug().Int("presets", cfg.Table.Len()).Int("jobs", len(cfg.Jobs)).Msg("Configuration loaded and validated successfully")
	return cfg, nil
}

// LoadFile decodes a TOML file on top of the current values.
func (c *Config) LoadFile(path string, log zerolog.Logger) error {
	log.Debug().Str("path", path).Msg("Loading configuration file")

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if _, err := toml.Decode(string(data), c); err != nil {
		return fmt.Errorf("failed to parse TOML in '%s': %w", path, err)
	}
	return nil
}

// Validate checks the scalar settings.
func (s *Settings) Validate() error {
	if s.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", s.SampleRate)
	}
	if s.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", s.Workers)
	}
	if s.QueueLength < 0 {
		return fmt.Errorf("queue_length cannot be negative")
	}
	if s.MaxMinutes <= 0 {
		return fmt.Errorf("max_minutes must be positive, got %f", s.MaxMinutes)
	}
	if _, err := zerolog.ParseLevel(s.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	return nil
}

// Finalize validates settings, merges presets over the built-in table and links jobs.
func (c *Config) Finalize() error {
	if err := c.Settings.Validate(); err != nil {
		return err
	}

	overrides := make([]preset.Preset, 0, len(c.Presets))
	for id, p := range c.Presets {
		p.ID = id
		if err := p.Validate(); err != nil {
			return fmt.Errorf("invalid preset '%s': %w", id, err)
		}
		overrides = append(overrides, *p)
	}
	table, err := preset.Default().Merge(overrides...)
	if err != nil {
		return err
	}
	c.Table = table

	for i, job := range c.Jobs {
		if job.ID == "" {
			job.ID = fmt.Sprintf("job-%d", i+1)
		}
		if err := job.Validate(); err != nil {
			return fmt.Errorf("invalid job '%s': %w", job.ID, err)
		}
		if job.Kind == KindSession {
			if _, err := table.Lookup(job.Preset); err != nil {
				return fmt.Errorf("job '%s': %w", job.ID, err)
			}
		}
	}
	return nil
}

// OutputPath resolves p against OutputDir unless it is absolute.
func (s *Settings) OutputPath(p string) string {
	if filepath.IsAbs(p) || s.OutputDir == "" {
		return p
	}
	return filepath.Join(s.OutputDir, p)
}
