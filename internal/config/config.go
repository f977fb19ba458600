// Package config holds session configuration: defaults, an optional YAML
// file and an environment overlay.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/itsmostafa/goprobe/internal/history"
)

// Environment variables read by WithEnv
const (
	EnvDisable    = "DISABLE_GOPROBE"
	EnvMemorySize = "GOPROBE_MEMORY_SIZE"
	EnvLanguage   = "GOPROBE_LANG"
	EnvNoColor    = "NO_COLOR"
)

// Config is the configuration snapshot a session starts with.
type Config struct {
	// Disabled makes starting a session a no-op
	Disabled bool `yaml:"disabled"`

	// MemorySize is the capacity of the input and output history
	MemorySize int `yaml:"memory_size"`

	// Color enables styled output
	Color bool `yaml:"color"`

	// ShouldLoadRC enables the home startup script
	ShouldLoadRC bool `yaml:"should_load_rc"`

	// ShouldLoadLocalRC enables the working-directory startup script.
	// It only applies when ShouldLoadRC is also set.
	ShouldLoadLocalRC bool `yaml:"should_load_local_rc"`

	// HomeRC is the home startup script path; a leading ~ is expanded at load time
	HomeRC string `yaml:"home_rc"`

	// LocalRC is the working-directory startup script path
	LocalRC string `yaml:"local_rc"`

	// Language is the host language name
	Language string `yaml:"language"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		MemorySize:        history.DefaultSize,
		Color:             true,
		ShouldLoadRC:      true,
		ShouldLoadLocalRC: true,
		HomeRC:            "~/.goproberc",
		LocalRC:           "./.goproberc",
		Language:          "javascript",
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/goprobe/config.yaml, falling back to
// the OS user config directory.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "goprobe", "config.yaml"), nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's config directory: %w", err)
	}
	return filepath.Join(dir, "goprobe", "config.yaml"), nil
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// WithEnv returns a copy of c with environment overrides applied. lookup is
// normally os.LookupEnv.
func (c Config) WithEnv(lookup func(string) (string, bool)) (Config, error) {
	if v, ok := lookup(EnvDisable); ok && v != "" {
		c.Disabled = true
	}
	if _, ok := lookup(EnvNoColor); ok {
		c.Color = false
	}
	if v, ok := lookup(EnvLanguage); ok && v != "" {
		c.Language = v
	}
	if v, ok := lookup(EnvMemorySize); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return c, fmt.Errorf("invalid %s %q: %w", EnvMemorySize, v, err)
		}
		c.MemorySize = n
	}
	return c, nil
}

// Validate checks the configuration for values a session cannot run with.
func (c Config) Validate() error {
	if c.MemorySize <= 0 {
		return fmt.Errorf("memory_size must be positive, got %d", c.MemorySize)
	}
	if c.Language == "" {
		return errors.New("language must not be empty")
	}
	return nil
}
