package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Audio backends
const (
	BackendPortAudio = "portaudio"
	BackendMalgo     = "malgo"
)

type Config struct {
	LogLevel    string         `json:"log_level"`
	Audio       AudioConfig    `json:"audio"`
	Analyser    AnalyserConfig `json:"analyser"`
	Render      RenderConfig   `json:"render"`
	SnapshotDir string         `json:"snapshot_dir"`

	path string
}

type AudioConfig struct {
	Backend         string `json:"backend"`   // "portaudio" or "malgo"
	DeviceID        string `json:"device_id"` // empty = platform default
	SampleRate      int    `json:"sample_rate"`
	FramesPerBuffer int    `json:"frames_per_buffer"`
}

type AnalyserConfig struct {
	FFTSize               int     `json:"fft_size"`
	SmoothingTimeConstant float64 `json:"smoothing_time_constant"`
	MinDecibels           float64 `json:"min_decibels"`
	MaxDecibels           float64 `json:"max_decibels"`
}

type RenderConfig struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	FPS    int `json:"fps"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			Backend:         BackendPortAudio,
			DeviceID:        "",
			SampleRate:      48000,
			FramesPerBuffer: 512,
		},
		Analyser: AnalyserConfig{
			FFTSize:               2048,
			SmoothingTimeConstant: 0.8,
			MinDecibels:           -100,
			MaxDecibels:           -30,
		},
		Render: RenderConfig{
			Width:  800,
			Height: 200,
			FPS:    60,
		},
		SnapshotDir: filepath.Join(homeDir(), "Pictures", "audioviz"),
		path:        configPath(),
	}
}

// Load reads the config from disk or returns defaults
func Load() (*Config, error) {
	return LoadFile(configPath())
}

// LoadFile reads the config at path over the defaults. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the analyser or renderer cannot work with
func (c *Config) Validate() error {
	switch c.Audio.Backend {
	case BackendPortAudio, BackendMalgo:
	default:
		return fmt.Errorf("unknown audio backend %q", c.Audio.Backend)
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Audio.FramesPerBuffer <= 0 {
		return fmt.Errorf("frames_per_buffer must be positive, got %d", c.Audio.FramesPerBuffer)
	}
	if n := c.Analyser.FFTSize; n < 32 || n > 32768 || n&(n-1) != 0 {
		return fmt.Errorf("fft_size must be a power of two in [32, 32768], got %d", n)
	}
	if s := c.Analyser.SmoothingTimeConstant; s < 0 || s > 1 {
		return fmt.Errorf("smoothing_time_constant must be in [0, 1], got %g", s)
	}
	if c.Analyser.MinDecibels >= c.Analyser.MaxDecibels {
		return fmt.Errorf("min_decibels (%g) must be below max_decibels (%g)",
			c.Analyser.MinDecibels, c.Analyser.MaxDecibels)
	}
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		return fmt.Errorf("surface size must be positive, got %dx%d", c.Render.Width, c.Render.Height)
	}
	if c.Render.FPS <= 0 || c.Render.FPS > 240 {
		return fmt.Errorf("fps must be in (0, 240], got %d", c.Render.FPS)
	}
	return nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path := c.path
	if path == "" {
		path = configPath()
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Path returns the file this config was loaded from
func (c *Config) Path() string {
	return c.path
}

// configPath returns the platform-specific config file path
func configPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = homeDir() + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = homeDir() + "/.config"
		}
	}

	return filepath.Join(base, "audioviz", "config.json")
}

// LogPath returns the platform-specific log file path
func LogPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = homeDir() + "/Library/Logs"
	case "windows":
		base = os.Getenv("LOCALAPPDATA")
	default:
		if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
			base = xdg
		} else {
			base = homeDir() + "/.local/state"
		}
	}

	return filepath.Join(base, "audioviz", "audioviz.log")
}

func homeDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return h
	}
	return os.Getenv("HOME")
}
