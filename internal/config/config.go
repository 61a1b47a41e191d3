// ABOUTME: Configuration for the CRAS client CLI
// ABOUTME: Loads YAML, applies CRAS_* environment overrides and validates every section
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"

	"github.com/Resonate-Protocol/cras-go/pkg/audio"
)

// Config represents the complete client configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Stream  StreamConfig  `yaml:"stream"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig locates the audio server
type ServerConfig struct {
	SocketDir string `yaml:"socket_dir" env:"CRAS_SOCKET_DIR"`
}

// StreamConfig contains the parameters a stream is created with
type StreamConfig struct {
	Direction string `yaml:"direction" env:"CRAS_DIRECTION"`
	BlockSize int    `yaml:"block_size" env:"CRAS_BLOCK_SIZE"` // frames per period
	Rate      int    `yaml:"rate" env:"CRAS_RATE"`
	Channels  int    `yaml:"channels" env:"CRAS_CHANNELS"`
	Format    string `yaml:"format" env:"CRAS_FORMAT"`
	Periods   int    `yaml:"periods"` // ring capacity in blocks
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" env:"CRAS_LOG_LEVEL"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address" env:"CRAS_METRICS_ADDR"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			SocketDir: "/run/cras",
		},
		Stream: StreamConfig{
			Direction: "playback",
			BlockSize: 480,
			Rate:      48000,
			Channels:  2,
			Format:    "S16_LE",
			Periods:   4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Address: ":9464",
		},
	}
}

// Load reads the configuration file at path over the defaults, applies
// environment overrides and validates the result. An empty path skips the
// file.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// ApplyEnv overwrites fields whose CRAS_* variable is set
func (c *Config) ApplyEnv() error {
	if err := envdecode.Decode(c); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("failed to read environment overrides: %w", err)
	}
	return nil
}

// Validate performs validation of every section
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Stream.Validate(); err != nil {
		return fmt.Errorf("stream config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.SocketDir == "" {
		return fmt.Errorf("socket_dir cannot be empty")
	}
	return nil
}

// Validate validates stream configuration
func (s *StreamConfig) Validate() error {
	if _, err := audio.ParseDirection(s.Direction); err != nil {
		return err
	}

	if _, err := audio.ParseSampleFormat(s.Format); err != nil {
		return err
	}

	if s.BlockSize < 1 {
		return fmt.Errorf("block_size must be at least 1 frame, got %d", s.BlockSize)
	}

	if s.Rate < 8000 || s.Rate > 384000 {
		return fmt.Errorf("rate must be between 8000 and 384000 Hz, got %d", s.Rate)
	}

	if s.Channels < 1 || s.Channels > 8 {
		return fmt.Errorf("channels must be between 1 and 8, got %d", s.Channels)
	}

	if s.Periods < 2 {
		return fmt.Errorf("periods must be at least 2, got %d", s.Periods)
	}

	return nil
}

// AudioFormat returns the stream's PCM layout
func (s *StreamConfig) AudioFormat() (audio.Format, error) {
	sf, err := audio.ParseSampleFormat(s.Format)
	if err != nil {
		return audio.Format{}, err
	}
	return audio.Format{SampleFormat: sf, Rate: s.Rate, Channels: s.Channels}, nil
}

// StreamDirection returns the parsed direction
func (s *StreamConfig) StreamDirection() (audio.Direction, error) {
	return audio.ParseDirection(s.Direction)
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// Validate validates metrics configuration
func (m *MetricsConfig) Validate() error {
	if m.Enabled && m.Address == "" {
		return fmt.Errorf("address cannot be empty when metrics are enabled")
	}
	return nil
}
