package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kiyonya/miocore/internal/mirror"
)

// Config defines configuration for the mioinstall CLI.
type Config struct {
	Root           string         `yaml:"root"`
	LibraryDir     string         `yaml:"library_dir"`
	Side           string         `yaml:"side"`
	AssetWorkers   int            `yaml:"asset_workers"`
	LibraryWorkers int            `yaml:"library_workers"`
	PreferMirror   bool           `yaml:"prefer_mirror"`
	Mirrors        []mirror.Rule  `yaml:"mirrors"`
	CacheBucket    string         `yaml:"cache_bucket"`
	JavaHomes      map[int]string `yaml:"java_homes"`
	Progress       bool           `yaml:"progress"`
	Retry          RetryConfig    `yaml:"retry"`
	HTTP           HTTPConfig     `yaml:"http"`
	Log            LogConfig      `yaml:"log"`
}

// RetryConfig defines per-file retry behavior.
type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
}

// HTTPConfig defines HTTP client settings.
type HTTPConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// LogConfig defines logging output.
type LogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Root:           ".minecraft",
		Side:           "client",
		AssetWorkers:   32,
		LibraryWorkers: 8,
		Retry: RetryConfig{
			Attempts: 3,
			Delay:    500 * time.Millisecond,
		},
		HTTP: HTTPConfig{
			Timeout:   30 * time.Second,
			UserAgent: "miocore/1.0",
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// Libraries returns the library root, defaulting to <root>/libraries.
func (c Config) Libraries() string {
	if c.LibraryDir != "" {
		return c.LibraryDir
	}
	return filepath.Join(c.Root, "libraries")
}

// MirrorTable returns the configured mirror table, or the default one.
func (c Config) MirrorTable() *mirror.Table {
	if len(c.Mirrors) == 0 {
		return mirror.Default()
	}
	return mirror.NewTable(c.Mirrors)
}

// yamlConfig is used for YAML unmarshaling with string durations.
type yamlConfig struct {
	Root           string          `yaml:"root"`
	LibraryDir     string          `yaml:"library_dir"`
	Side           string          `yaml:"side"`
	AssetWorkers   int             `yaml:"asset_workers"`
	LibraryWorkers int             `yaml:"library_workers"`
	PreferMirror   bool            `yaml:"prefer_mirror"`
	Mirrors        []mirror.Rule   `yaml:"mirrors"`
	CacheBucket    string          `yaml:"cache_bucket"`
	JavaHomes      map[int]string  `yaml:"java_homes"`
	Progress       bool            `yaml:"progress"`
	Retry          yamlRetryConfig `yaml:"retry"`
	HTTP           yamlHTTPConfig  `yaml:"http"`
	Log            LogConfig       `yaml:"log"`
}

type yamlRetryConfig struct {
	Attempts int    `yaml:"attempts"`
	Delay    string `yaml:"delay"`
}

type yamlHTTPConfig struct {
	Timeout   string `yaml:"timeout"`
	UserAgent string `yaml:"user_agent"`
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.Root != "" {
		cfg.Root = yc.Root
	}
	cfg.LibraryDir = yc.LibraryDir
	if yc.Side != "" {
		cfg.Side = yc.Side
	}
	if yc.AssetWorkers != 0 {
		cfg.AssetWorkers = yc.AssetWorkers
	}
	if yc.LibraryWorkers != 0 {
		cfg.LibraryWorkers = yc.LibraryWorkers
	}
	cfg.PreferMirror = yc.PreferMirror
	cfg.Mirrors = yc.Mirrors
	cfg.CacheBucket = yc.CacheBucket
	cfg.JavaHomes = yc.JavaHomes
	cfg.Progress = yc.Progress
	if yc.Retry.Attempts != 0 {
		cfg.Retry.Attempts = yc.Retry.Attempts
	}
	if yc.Retry.Delay != "" {
		d, err := time.ParseDuration(yc.Retry.Delay)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.delay: %w", err)
		}
		cfg.Retry.Delay = d
	}
	if yc.HTTP.Timeout != "" {
		d, err := time.ParseDuration(yc.HTTP.Timeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse http.timeout: %w", err)
		}
		cfg.HTTP.Timeout = d
	}
	if yc.HTTP.UserAgent != "" {
		cfg.HTTP.UserAgent = yc.HTTP.UserAgent
	}
	if yc.Log.Format != "" {
		cfg.Log.Format = yc.Log.Format
	}
	if yc.Log.Level != "" {
		cfg.Log.Level = yc.Log.Level
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the MIO_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("MIO_ROOT"); v != "" {
		c.Root = v
	}
	if v := os.Getenv("MIO_LIBRARY_DIR"); v != "" {
		c.LibraryDir = v
	}
	if v := os.Getenv("MIO_SIDE"); v != "" {
		c.Side = v
	}
	if v := os.Getenv("MIO_ASSET_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse MIO_ASSET_WORKERS: %w", err)
		}
		c.AssetWorkers = n
	}
	if v := os.Getenv("MIO_LIBRARY_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse MIO_LIBRARY_WORKERS: %w", err)
		}
		c.LibraryWorkers = n
	}
	if v := os.Getenv("MIO_PREFER_MIRROR"); v != "" {
		c.PreferMirror = v == "true" || v == "1"
	}
	if v := os.Getenv("MIO_CACHE_BUCKET"); v != "" {
		c.CacheBucket = v
	}
	if v := os.Getenv("MIO_PROGRESS"); v != "" {
		c.Progress = v == "true" || v == "1"
	}
	if v := os.Getenv("MIO_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse MIO_RETRY_ATTEMPTS: %w", err)
		}
		c.Retry.Attempts = n
	}
	if v := os.Getenv("MIO_RETRY_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse MIO_RETRY_DELAY: %w", err)
		}
		c.Retry.Delay = d
	}
	if v := os.Getenv("MIO_HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse MIO_HTTP_TIMEOUT: %w", err)
		}
		c.HTTP.Timeout = d
	}
	if v := os.Getenv("MIO_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("MIO_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Root == "" {
		return errors.New("config: root is required")
	}
	if c.Side != "client" && c.Side != "server" {
		return fmt.Errorf("config: side must be client or server, got %q", c.Side)
	}
	if c.AssetWorkers <= 0 {
		return errors.New("config: asset_workers must be positive")
	}
	if c.LibraryWorkers <= 0 {
		return errors.New("config: library_workers must be positive")
	}
	if c.Retry.Attempts <= 0 {
		return errors.New("config: retry.attempts must be positive")
	}
	for i, r := range c.Mirrors {
		if r.Prefix == "" {
			return fmt.Errorf("config: mirrors[%d]: prefix is required", i)
		}
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.Root != "" {
		c.Root = override.Root
	}
	if override.LibraryDir != "" {
		c.LibraryDir = override.LibraryDir
	}
	if override.Side != "" {
		c.Side = override.Side
	}
	if override.AssetWorkers != 0 {
		c.AssetWorkers = override.AssetWorkers
	}
	if override.LibraryWorkers != 0 {
		c.LibraryWorkers = override.LibraryWorkers
	}
	if override.PreferMirror {
		c.PreferMirror = override.PreferMirror
	}
	if len(override.Mirrors) > 0 {
		c.Mirrors = override.Mirrors
	}
	if override.CacheBucket != "" {
		c.CacheBucket = override.CacheBucket
	}
	if len(override.JavaHomes) > 0 {
		c.JavaHomes = override.JavaHomes
	}
	if override.Progress {
		c.Progress = override.Progress
	}
	if override.Retry.Attempts != 0 {
		c.Retry.Attempts = override.Retry.Attempts
	}
	if override.Retry.Delay != 0 {
		c.Retry.Delay = override.Retry.Delay
	}
	if override.HTTP.Timeout != 0 {
		c.HTTP.Timeout = override.HTTP.Timeout
	}
	if override.HTTP.UserAgent != "" {
		c.HTTP.UserAgent = override.HTTP.UserAgent
	}
	if override.Log.Format != "" {
		c.Log.Format = override.Log.Format
	}
	if override.Log.Level != "" {
		c.Log.Level = override.Log.Level
	}
	return c
}
