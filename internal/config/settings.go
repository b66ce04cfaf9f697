package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings are the server runtime knobs, distinct from the detection Config:
// they are fixed at process start, optionally read from a YAML file and
// overridable through the environment.
type Settings struct {
	HTTPAddr    string `yaml:"http_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	// ConfigPath is the fixed location of the persisted detection config.
	ConfigPath string `yaml:"config_path"`

	FrameWidth  int `yaml:"frame_width"`
	FrameHeight int `yaml:"frame_height"`

	JPEGQuality int `yaml:"jpeg_quality"`

	// StreamInterval is the per-connection inter-frame wait on the MJPEG
	// route; RetryInterval is the wait when no frame has been published yet.
	StreamInterval time.Duration `yaml:"stream_interval"`
	RetryInterval  time.Duration `yaml:"retry_interval"`

	// StreamWriteTimeout, when non-zero, bounds each frame write to a
	// streaming client. Zero (the default) imposes no idle timeout.
	StreamWriteTimeout time.Duration `yaml:"stream_write_timeout"`
}

// DefaultSettings mirrors the reference deployment: 720p input, quality-75
// JPEG, ~30fps stream cadence, 10ms retry poll.
func DefaultSettings() Settings {
	return Settings{
		HTTPAddr:       ":8080",
		MetricsAddr:    ":9090",
		ConfigPath:     "config.json",
		FrameWidth:     1280,
		FrameHeight:    720,
		JPEGQuality:    75,
		StreamInterval: 33 * time.Millisecond,
		RetryInterval:  10 * time.Millisecond,
	}
}

// LoadSettings reads settings from an optional YAML file, then applies
// environment overrides. An empty path or missing file yields defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to env overrides
		case err != nil:
			return s, fmt.Errorf("read settings %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &s); err != nil {
				return s, fmt.Errorf("parse settings %s: %w", path, err)
			}
		}
	}

	s.HTTPAddr = getEnv("TLD_HTTP_ADDR", s.HTTPAddr)
	s.MetricsAddr = getEnv("TLD_METRICS_ADDR", s.MetricsAddr)
	s.ConfigPath = getEnv("TLD_CONFIG_PATH", s.ConfigPath)
	s.FrameWidth = getEnvAsInt("TLD_FRAME_WIDTH", s.FrameWidth)
	s.FrameHeight = getEnvAsInt("TLD_FRAME_HEIGHT", s.FrameHeight)
	s.JPEGQuality = getEnvAsInt("TLD_JPEG_QUALITY", s.JPEGQuality)

	if s.FrameWidth <= 0 || s.FrameHeight <= 0 {
		return s, fmt.Errorf("settings: frame size %dx%d must be positive", s.FrameWidth, s.FrameHeight)
	}
	if s.JPEGQuality < 1 || s.JPEGQuality > 100 {
		return s, fmt.Errorf("settings: jpeg_quality %d outside 1..100", s.JPEGQuality)
	}
	if s.StreamInterval <= 0 || s.RetryInterval <= 0 {
		return s, fmt.Errorf("settings: stream and retry intervals must be positive")
	}
	return s, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
