// Package config handles the cqa global configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/codebaseqa/cqa/internal/layout"
)

// Config represents configuration stored in ~/.config/cqa/config.yml.
type Config struct {
	APIURL            string        `yaml:"api_url,omitempty" json:"api_url"`
	APIKey            string        `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	LayoutTimeout     time.Duration `yaml:"layout_timeout,omitempty" json:"layout_timeout"`
	LayoutCacheSize   int           `yaml:"layout_cache_size,omitempty" json:"layout_cache_size"`
	DefaultLayout     string        `yaml:"default_layout,omitempty" json:"default_layout"`
	SnapshotDB        string        `yaml:"snapshot_db,omitempty" json:"snapshot_db"`
	ServeAddr         string        `yaml:"serve_addr,omitempty" json:"serve_addr"`
	RequestsPerSecond float64       `yaml:"requests_per_second,omitempty" json:"requests_per_second"`
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "cqa"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"

	DefaultAPIURL            = "http://localhost:8000"
	DefaultServeAddr         = "127.0.0.1:7420"
	DefaultRequestsPerSecond = 10.0
	snapshotDBFile           = "snapshots.db"
)

// Environment variables that override file values.
const (
	EnvAPIURL = "CQA_API_URL"
	EnvAPIKey = "CQA_API_KEY"
)

// ErrInvalidConfig wraps validation failures.
var ErrInvalidConfig = errors.New("invalid config")

// globalConfigCache caches the loaded global config.
var globalConfigCache *Config

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/cqa/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// DataDir returns where cqa keeps local state.
// Respects XDG_DATA_HOME, defaults to ~/.local/share/cqa.
func DataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, GlobalConfigDir)
}

// Defaults returns a config with every field set to its default.
func Defaults() Config {
	return Config{
		APIURL:            DefaultAPIURL,
		LayoutTimeout:     layout.DefaultTimeout,
		LayoutCacheSize:   layout.DefaultCacheSize,
		DefaultLayout:     string(layout.ModeHorizontal),
		SnapshotDB:        filepath.Join(DataDir(), snapshotDBFile),
		ServeAddr:         DefaultServeAddr,
		RequestsPerSecond: DefaultRequestsPerSecond,
	}
}

// LoadGlobalConfig loads the global configuration file, applies environment
// overrides and fills defaults. A missing file is not an error.
func LoadGlobalConfig() (*Config, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}

	var cfg Config
	if path := GlobalConfigPath(); path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing global config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("reading global config: %w", err)
		}
	}

	if v := os.Getenv(EnvAPIURL); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.APIKey = v
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfigCache = &cfg
	return &cfg, nil
}

// ResetGlobalConfigCache clears the cached global config.
// Useful for testing.
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

func (c *Config) applyDefaults() {
	d := Defaults()
	if c.APIURL == "" {
		c.APIURL = d.APIURL
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	if c.LayoutTimeout <= 0 {
		c.LayoutTimeout = d.LayoutTimeout
	}
	if c.LayoutCacheSize <= 0 {
		c.LayoutCacheSize = d.LayoutCacheSize
	}
	if c.DefaultLayout == "" {
		c.DefaultLayout = d.DefaultLayout
	}
	if c.SnapshotDB == "" {
		c.SnapshotDB = d.SnapshotDB
	}
	c.SnapshotDB = expandTilde(c.SnapshotDB)
	if c.ServeAddr == "" {
		c.ServeAddr = d.ServeAddr
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = d.RequestsPerSecond
	}
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if _, err := layout.ParseMode(c.DefaultLayout); err != nil {
		return fmt.Errorf("%w: default_layout: %v", ErrInvalidConfig, err)
	}
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("%w: api_url must start with http:// or https://: %q", ErrInvalidConfig, c.APIURL)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: requests_per_second must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Mode returns DefaultLayout as a layout mode.
func (c *Config) Mode() layout.Mode {
	m, err := layout.ParseMode(c.DefaultLayout)
	if err != nil {
		return layout.ModeHorizontal
	}
	return m
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.APIKey != "" {
		c.APIKey = "****"
	}
	return c
}

func expandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
