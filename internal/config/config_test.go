package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Resonate-Protocol/cras-go/pkg/audio"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("expected default config to be valid, got %v", err)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("failed to load defaults: %v", err)
	}

	if cfg.Stream.BlockSize != 480 {
		t.Errorf("expected block size 480, got %d", cfg.Stream.BlockSize)
	}
	if cfg.Server.SocketDir != "/run/cras" {
		t.Errorf("expected /run/cras, got %s", cfg.Server.SocketDir)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
stream:
  rate: 44100
  format: S24_3LE
logging:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Stream.Rate != 44100 {
		t.Errorf("expected rate 44100, got %d", cfg.Stream.Rate)
	}
	if cfg.Stream.Channels != 2 {
		t.Errorf("expected default channels to survive, got %d", cfg.Stream.Channels)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %s", cfg.Logging.Level)
	}

	format, err := cfg.Stream.AudioFormat()
	if err != nil {
		t.Fatalf("failed to parse format: %v", err)
	}
	if format.SampleFormat != audio.FormatS24_3LE || format.FrameBytes() != 6 {
		t.Errorf("expected S24_3LE stereo, got %s", format)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("CRAS_SOCKET_DIR", "/tmp/cras-test")
	t.Setenv("CRAS_BLOCK_SIZE", "256")
	t.Setenv("CRAS_CHANNELS", "1")
	t.Setenv("CRAS_FORMAT", "S32_LE")
	t.Setenv("CRAS_LOG_LEVEL", "warn")
	t.Setenv("CRAS_METRICS_ADDR", "127.0.0.1:9000")

	path := writeConfig(t, "stream:\n  block_size: 1024\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.SocketDir != "/tmp/cras-test" {
		t.Errorf("expected socket dir from env, got %s", cfg.Server.SocketDir)
	}
	if cfg.Stream.BlockSize != 256 {
		t.Errorf("expected env to win over file, got block size %d", cfg.Stream.BlockSize)
	}
	if cfg.Stream.Channels != 1 {
		t.Errorf("expected 1 channel, got %d", cfg.Stream.Channels)
	}
	if cfg.Stream.Format != "S32_LE" {
		t.Errorf("expected S32_LE, got %s", cfg.Stream.Format)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected warn, got %s", cfg.Logging.Level)
	}
	if cfg.Metrics.Address != "127.0.0.1:9000" {
		t.Errorf("expected metrics address from env, got %s", cfg.Metrics.Address)
	}
	if cfg.Stream.Rate != 48000 {
		t.Errorf("expected unset env to keep rate, got %d", cfg.Stream.Rate)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		contains string
	}{
		{"bad yaml", "stream: [", "failed to parse"},
		{"bad format", "stream:\n  format: F32\n", "unknown sample format"},
		{"bad direction", "stream:\n  direction: sideways\n", "unknown stream direction"},
		{"zero block size", "stream:\n  block_size: 0\n", "block_size"},
		{"bad rate", "stream:\n  rate: 100\n", "rate must be"},
		{"too many channels", "stream:\n  channels: 16\n", "channels must be"},
		{"one period", "stream:\n  periods: 1\n", "periods must be"},
		{"bad level", "logging:\n  level: loud\n", "level must be"},
		{"bad log format", "logging:\n  format: xml\n", "format must be"},
		{"empty socket dir", "server:\n  socket_dir: \"\"\n", "socket_dir"},
		{"metrics without address", "metrics:\n  enabled: true\n  address: \"\"\n", "address cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("expected error containing %q, got %q", tt.contains, err.Error())
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("expected read error, got %v", err)
	}
}

func TestStreamDirection(t *testing.T) {
	cfg := Default()
	cfg.Stream.Direction = "capture"

	dir, err := cfg.Stream.StreamDirection()
	if err != nil {
		t.Fatalf("failed to parse direction: %v", err)
	}
	if dir != audio.DirectionCapture {
		t.Errorf("expected capture, got %s", dir)
	}
}
