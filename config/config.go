// Package config loads the subsystem configuration from an optional YAML
// file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	str2duration "github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for stylistd.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" env:"STYLIST_LISTEN"`
	// CacheDir is the style cache's persistent tier directory.
	CacheDir string `yaml:"cacheDir" env:"STYLIST_CACHE_DIR"`
	// ThemesFile is the YAML theme definitions file; empty means the
	// built-in theme only.
	ThemesFile string `yaml:"themesFile" env:"STYLIST_THEMES_FILE"`
	// CacheTTL is the lifetime of cached stylesheets, in a duration
	// syntax that also accepts day and week units ("12h", "7d"). Empty
	// or "0" means cached stylesheets never expire and are only replaced
	// by explicit invalidation.
	CacheTTL string `yaml:"cacheTtl" env:"STYLIST_CACHE_TTL"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"logLevel" env:"STYLIST_LOG_LEVEL"`
	// LogJSON switches log output from console to JSON encoding.
	LogJSON bool `yaml:"logJson" env:"STYLIST_LOG_JSON"`
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	return Config{
		Listen:   ":8096",
		CacheDir: defaultCacheDir(),
		CacheTTL: "7d",
		LogLevel: "info",
	}
}

func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "stylist")
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}
	if cfg.Listen == "" {
		return nil, fmt.Errorf("config: listen address is required")
	}
	if _, err := cfg.TTL(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// TTL parses CacheTTL. Zero means "never expires".
func (c Config) TTL() (time.Duration, error) {
	if c.CacheTTL == "" || c.CacheTTL == "0" {
		return 0, nil
	}
	d, err := str2duration.ParseDuration(c.CacheTTL)
	if err != nil {
		return 0, fmt.Errorf("config: invalid cacheTtl %q: %w", c.CacheTTL, err)
	}
	return d, nil
}
