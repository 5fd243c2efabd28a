package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pdrpinto/forksearch/internal/logging"
)

const (
	DefaultStorePath = ".forksearch/runs.db"
	DefaultServeAddr = "127.0.0.1:8080"
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
)

// Config is the forksearch CLI configuration.
type Config struct {
	Search SearchConfig `yaml:"search"`
	Log    LogConfig    `yaml:"log"`
	Store  StoreConfig  `yaml:"store"`
	Serve  ServeConfig  `yaml:"serve"`
}

// SearchConfig maps onto forksearch.Options.
type SearchConfig struct {
	MaxTasks int           `yaml:"max_tasks"`
	Timeout  time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type StoreConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

type ServeConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a Config with sensible defaults for all sections.
func DefaultConfig() Config {
	return Config{
		Log:   LogConfig{Level: defaultLogLevel, Format: defaultLogFormat},
		Store: StoreConfig{Path: DefaultStorePath},
		Serve: ServeConfig{Addr: DefaultServeAddr},
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Search.MaxTasks > 0 {
		c.Search.MaxTasks = source.Search.MaxTasks
	}
	if source.Search.Timeout > 0 {
		c.Search.Timeout = source.Search.Timeout
	}
	if source.Log.Level != "" {
		c.Log.Level = source.Log.Level
	}
	if source.Log.Format != "" {
		c.Log.Format = source.Log.Format
	}
	if source.Store.Path != "" {
		c.Store.Path = source.Store.Path
	}
	if source.Store.Disabled {
		c.Store.Disabled = true
	}
	if source.Serve.Addr != "" {
		c.Serve.Addr = source.Serve.Addr
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Search.MaxTasks < 0 {
		return fmt.Errorf("search.max_tasks must be >= 0, got %d", c.Search.MaxTasks)
	}
	if c.Search.Timeout < 0 {
		return fmt.Errorf("search.timeout must be >= 0, got %s", c.Search.Timeout)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if !c.Store.Disabled && c.Store.Path == "" {
		return errors.New("store.path is required unless store.disabled is set")
	}
	return nil
}

// Load reads a YAML config file, merges it over the defaults and validates the result.
func Load(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
