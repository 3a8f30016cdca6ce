// Package config loads runtime settings for the eCFR analysis tools from a
// .env file, an optional YAML file and ECFR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variable names.
const (
	EnvDataDir          = "ECFR_DATA_DIR"
	EnvPatternDir       = "ECFR_PATTERN_DIR"
	EnvPatternSet       = "ECFR_PATTERN_SET"
	EnvWorkers          = "ECFR_WORKERS"
	EnvMetricsCacheSize = "ECFR_METRICS_CACHE_SIZE"
	EnvListenAddr       = "ECFR_LISTEN_ADDR"
	EnvLogLevel         = "ECFR_LOG_LEVEL"
	EnvLogFormat        = "ECFR_LOG_FORMAT"
)

// Config holds the settings shared by every ecfr subcommand.
type Config struct {
	DataDir          string `yaml:"data_dir" validate:"required"`
	PatternDir       string `yaml:"pattern_dir"`
	PatternSet       string `yaml:"pattern_set" validate:"required"`
	Workers          int    `yaml:"workers" validate:"min=1,max=64"`
	MetricsCacheSize int    `yaml:"metrics_cache_size" validate:"min=0"`
	ListenAddr       string `yaml:"listen_addr" validate:"required"`
	LogLevel         string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat        string `yaml:"log_format" validate:"oneof=json console"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		DataDir:          "data",
		PatternSet:       "ecfr-default",
		Workers:          4,
		MetricsCacheSize: 1024,
		ListenAddr:       ":8080",
		LogLevel:         "info",
		LogFormat:        "console",
	}
}

// Load builds a Config. Values are layered defaults, then the YAML file at
// path (skipped when path is empty), then environment variables. A .env file
// in the working directory is loaded first if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.DataDir = envOr(EnvDataDir, cfg.DataDir)
	cfg.PatternDir = envOr(EnvPatternDir, cfg.PatternDir)
	cfg.PatternSet = envOr(EnvPatternSet, cfg.PatternSet)
	cfg.ListenAddr = envOr(EnvListenAddr, cfg.ListenAddr)
	cfg.LogLevel = envOr(EnvLogLevel, cfg.LogLevel)
	cfg.LogFormat = envOr(EnvLogFormat, cfg.LogFormat)

	var err error
	if cfg.Workers, err = envInt(EnvWorkers, cfg.Workers); err != nil {
		return nil, err
	}
	if cfg.MetricsCacheSize, err = envInt(EnvMetricsCacheSize, cfg.MetricsCacheSize); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// Validate checks field ranges and enumerations.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) && len(invalid) > 0 {
			first := invalid[0]
			return fmt.Errorf("invalid config: %s fails %q (got %v)", first.Field(), first.Tag(), first.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// RawDir is where downloaded eCFR XML files live.
func (c *Config) RawDir() string {
	return filepath.Join(c.DataDir, "raw")
}

// ProcessedDir is where converted documents and analysis outputs live.
func (c *Config) ProcessedDir() string {
	return filepath.Join(c.DataDir, "processed")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, v)
	}
	return n, nil
}
