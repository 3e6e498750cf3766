package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix starts every environment variable name.
const EnvPrefix = "DOMSIM"

// Config holds all application configuration.
type Config struct {
	Sandbox SandboxConfig `yaml:"sandbox" toml:"sandbox"`
	Markup  MarkupConfig  `yaml:"markup" toml:"markup"`
	Logging LogConfig     `yaml:"logging" toml:"logging"`
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`
}

// SandboxConfig holds script session configuration.
type SandboxConfig struct {
	Timeout          Duration      `envconfig:"DOMSIM_SANDBOX_TIMEOUT" default:"5s" yaml:"timeout" toml:"timeout"`
	MaxCallStackSize int           `envconfig:"DOMSIM_SANDBOX_MAX_CALL_STACK" default:"1024" yaml:"max_call_stack" toml:"max_call_stack"`
	LenientSelectors bool          `envconfig:"DOMSIM_SANDBOX_LENIENT_SELECTORS" default:"false" yaml:"lenient_selectors" toml:"lenient_selectors"`
	StripNodeGlobals bool          `envconfig:"DOMSIM_SANDBOX_STRIP_NODE_GLOBALS" default:"true" yaml:"strip_node_globals" toml:"strip_node_globals"`
	Bindings         []string      `envconfig:"DOMSIM_SANDBOX_BINDINGS" default:"console,document" yaml:"bindings" toml:"bindings"`
}

// MarkupConfig holds document loading configuration.
type MarkupConfig struct {
	MaxSizeBytes  int  `envconfig:"DOMSIM_MARKUP_MAX_SIZE" default:"10485760" yaml:"max_size_bytes" toml:"max_size_bytes"`
	DetectCharset bool `envconfig:"DOMSIM_MARKUP_DETECT_CHARSET" default:"true" yaml:"detect_charset" toml:"detect_charset"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"DOMSIM_LOG_LEVEL" default:"info" yaml:"level" toml:"level"`
	Development bool   `envconfig:"DOMSIM_LOG_DEV" default:"false" yaml:"development" toml:"development"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled   bool   `envconfig:"DOMSIM_METRICS_ENABLED" default:"true" yaml:"enabled" toml:"enabled"`
	Namespace string `envconfig:"DOMSIM_METRICS_NAMESPACE" default:"domsim" yaml:"namespace" toml:"namespace"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LoadFile reads a YAML or TOML file over the defaults, then applies
// environment variables that are explicitly set.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// applyEnv overrides cfg with variables present in the environment only, so
// struct tag defaults do not clobber file values.
func applyEnv(cfg *Config) error {
	var env Config
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	set := func(key string) bool {
		_, ok := os.LookupEnv(EnvPrefix + "_" + key)
		return ok
	}
	if set("SANDBOX_TIMEOUT") {
		cfg.Sandbox.Timeout = env.Sandbox.Timeout
	}
	if set("SANDBOX_MAX_CALL_STACK") {
		cfg.Sandbox.MaxCallStackSize = env.Sandbox.MaxCallStackSize
	}
	if set("SANDBOX_LENIENT_SELECTORS") {
		cfg.Sandbox.LenientSelectors = env.Sandbox.LenientSelectors
	}
	if set("SANDBOX_STRIP_NODE_GLOBALS") {
		cfg.Sandbox.StripNodeGlobals = env.Sandbox.StripNodeGlobals
	}
	if set("SANDBOX_BINDINGS") {
		cfg.Sandbox.Bindings = env.Sandbox.Bindings
	}
	if set("MARKUP_MAX_SIZE") {
		cfg.Markup.MaxSizeBytes = env.Markup.MaxSizeBytes
	}
	if set("MARKUP_DETECT_CHARSET") {
		cfg.Markup.DetectCharset = env.Markup.DetectCharset
	}
	if set("LOG_LEVEL") {
		cfg.Logging.Level = env.Logging.Level
	}
	if set("LOG_DEV") {
		cfg.Logging.Development = env.Logging.Development
	}
	if set("METRICS_ENABLED") {
		cfg.Metrics.Enabled = env.Metrics.Enabled
	}
	if set("METRICS_NAMESPACE") {
		cfg.Metrics.Namespace = env.Metrics.Namespace
	}
	return nil
}

// Validate rejects values no session can run with.
func (c *Config) Validate() error {
	if c.Sandbox.Timeout < 0 {
		return fmt.Errorf("sandbox timeout must not be negative")
	}
	if c.Sandbox.MaxCallStackSize < 0 {
		return fmt.Errorf("sandbox max call stack must not be negative")
	}
	if c.Markup.MaxSizeBytes <= 0 {
		return fmt.Errorf("markup max size must be positive")
	}
	return nil
}

// Duration is a time.Duration that decodes from strings such as "5s" in
// environment variables, YAML and TOML alike.
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Sandbox: SandboxConfig{
			Timeout:          Duration(5 * time.Second),
			MaxCallStackSize: 1024,
			LenientSelectors: false,
			StripNodeGlobals: true,
			Bindings:         []string{"console", "document"},
		},
		Markup: MarkupConfig{
			MaxSizeBytes:  10 * 1024 * 1024,
			DetectCharset: true,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "domsim",
		},
	}
}
