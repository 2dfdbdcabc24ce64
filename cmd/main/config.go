package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/CTAG07/chainwalk/pkg/templating"
	"github.com/natefinch/atomic"
)

// StorageConfig selects where chains are kept.
type StorageConfig struct {
	Backend      string `json:"backend"` // "sqlite" or "files"
	DataDir      string `json:"data_dir"`
	DatabasePath string `json:"database_path"`
	SnapshotDir  string `json:"snapshot_dir"`
	Codec        string `json:"codec"` // "json" or "msgpack"
}

// ChainConfig holds the defaults used when building and loading chains.
type ChainConfig struct {
	Order    int  `json:"order"`
	TokenMap bool `json:"token_map"`
	MaxSteps int  `json:"max_steps"`
}

// TokenizerConfig holds the settings of the text tokenizer. Empty regexes
// keep the tokenizer defaults.
type TokenizerConfig struct {
	Separator    string `json:"separator"`
	SplitRegex   string `json:"split_regex"`
	EndRegex     string `json:"end_regex"`
	NoSpaceRegex string `json:"no_space_regex"`
	KeepEnd      bool   `json:"keep_end"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	LogLevel  string                     `json:"log_level"`
	Storage   *StorageConfig             `json:"storage_config"`
	Chain     *ChainConfig               `json:"chain_config"`
	Tokenizer *TokenizerConfig           `json:"tokenizer_config"`
	Templates *templating.TemplateConfig `json:"template_config"`
}

// DefaultConfig creates a configuration with default values.
func DefaultConfig() *Config {
	templateConfig := templating.DefaultConfig()
	return &Config{
		LogLevel: "warn",
		Storage: &StorageConfig{
			Backend:      "sqlite",
			DataDir:      "./data",
			DatabasePath: "./data/chainwalk.db",
			SnapshotDir:  "./data/chains",
			Codec:        "msgpack",
		},
		Chain: &ChainConfig{
			Order:    2,
			TokenMap: true,
			MaxSteps: 10000,
		},
		Tokenizer: &TokenizerConfig{
			Separator: " ",
			KeepEnd:   true,
		},
		Templates: &templateConfig,
	}
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			var data []byte
			data, err = json.MarshalIndent(config, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// The defaults are still usable without a file on disk.
				fmt.Fprintf(os.Stderr, "warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err = config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return config, nil
}

func (c *Config) validate() error {
	if c.Storage == nil || c.Chain == nil || c.Tokenizer == nil || c.Templates == nil {
		return fmt.Errorf("storage_config, chain_config, tokenizer_config and template_config are required")
	}
	switch c.Storage.Backend {
	case "sqlite", "files":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Chain.Order < 0 {
		return fmt.Errorf("chain order must be non-negative, got %d", c.Chain.Order)
	}
	for _, expr := range []string{c.Tokenizer.SplitRegex, c.Tokenizer.EndRegex, c.Tokenizer.NoSpaceRegex} {
		if _, err := regexp.Compile(expr); err != nil {
			return fmt.Errorf("invalid tokenizer regex %q: %w", expr, err)
		}
	}
	return nil
}

// logLevel maps the configured level name to a slog.Level, defaulting to info.
func (c *Config) logLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
