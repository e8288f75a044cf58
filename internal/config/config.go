// Package config loads ncrtxt settings from YAML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	cerrors "github.com/FocuswithJustin/ncrtxt/core/errors"
	"github.com/FocuswithJustin/ncrtxt/internal/logging"
)

// Config represents the complete ncrtxt configuration
type Config struct {
	Convert ConvertConfig `yaml:"convert"`
	Log     LogConfig     `yaml:"log"`
	Batch   BatchConfig   `yaml:"batch"`
}

// ConvertConfig configures a single conversion
type ConvertConfig struct {
	// ChunkSize is the number of bytes read per iteration (default: 1 MiB)
	ChunkSize int `yaml:"chunk_size"`
	// NamedEntities also decodes entities such as &amp; and &eacute;
	NamedEntities bool `yaml:"named_entities"`
	// Charset of the input; "auto" sniffs it, empty means UTF-8
	Charset string `yaml:"charset"`
	// Atomic writes to a temporary file and renames it on success
	Atomic bool `yaml:"atomic"`
	// Checksum prints the BLAKE3 digest of each output
	Checksum bool `yaml:"checksum"`
}

// LogConfig configures diagnostic logging
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
	// Format is text or json
	Format string `yaml:"format"`
}

// BatchConfig configures multi-file runs
type BatchConfig struct {
	// Jobs is the number of files converted at the same time
	Jobs int `yaml:"jobs"`
	// Suffix is appended to every output file name
	Suffix string `yaml:"suffix"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Convert: ConvertConfig{
			ChunkSize: 1 << 20,
			Charset:   "utf-8",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Batch: BatchConfig{
			Jobs: runtime.NumCPU(),
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Convert.ChunkSize <= 0 {
		return cerrors.NewValidation("convert.chunk_size", strconv.Itoa(c.Convert.ChunkSize), "must be positive")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return cerrors.NewValidation("log.level", c.Log.Level, err.Error())
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return cerrors.NewValidation("log.format", c.Log.Format, err.Error())
	}
	if c.Batch.Jobs < 1 {
		return cerrors.NewValidation("batch.jobs", strconv.Itoa(c.Batch.Jobs), "must be at least 1")
	}
	if strings.ContainsAny(c.Batch.Suffix, `/\`) {
		return cerrors.NewValidation("batch.suffix", c.Batch.Suffix, "must not contain a path separator")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return config, nil
}

// loadPartial reads a file without filling in defaults, so Merge only
// sees the values the file sets.
func loadPartial(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values).
// Booleans can only be switched on by a later layer.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Convert
	if other.Convert.ChunkSize != 0 {
		c.Convert.ChunkSize = other.Convert.ChunkSize
	}
	if other.Convert.NamedEntities {
		c.Convert.NamedEntities = true
	}
	if other.Convert.Charset != "" {
		c.Convert.Charset = other.Convert.Charset
	}
	if other.Convert.Atomic {
		c.Convert.Atomic = true
	}
	if other.Convert.Checksum {
		c.Convert.Checksum = true
	}

	// Log
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.Format != "" {
		c.Log.Format = other.Log.Format
	}

	// Batch
	if other.Batch.Jobs != 0 {
		c.Batch.Jobs = other.Batch.Jobs
	}
	if other.Batch.Suffix != "" {
		c.Batch.Suffix = other.Batch.Suffix
	}
}
