// Package config loads the settings of the oxy-compute demo from TOML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the demo configuration.
type Config struct {
	Log       LogConfig       `toml:"log"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Renderer  RendererConfig  `toml:"renderer"`
	Window    WindowConfig    `toml:"window"`
	Compute   ComputeConfig   `toml:"compute"`
	Particles ParticlesConfig `toml:"particles"`
}

// LogConfig selects the zap logger.
type LogConfig struct {
	// Level is a zap level name: debug, info, warn or error.
	Level string `toml:"level"`

	// Development switches to zap's human-readable development encoder.
	Development bool `toml:"development"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Address disables it.
type MetricsConfig struct {
	Address string `toml:"address"`
	Path    string `toml:"path"`
}

// RendererConfig configures the WebGPU context.
type RendererConfig struct {
	Width                 int  `toml:"width"`
	Height                int  `toml:"height"`
	ForceSoftwareRenderer bool `toml:"force_software_renderer"`
}

// WindowConfig configures the optional preview window.
type WindowConfig struct {
	Enabled bool   `toml:"enabled"`
	Title   string `toml:"title"`
}

// ComputeConfig configures the engine and its queue.
type ComputeConfig struct {
	QueueSize      int  `toml:"queue_size"`
	ProfileSeconds int  `toml:"profile_seconds"`
	Iterations     int  `toml:"iterations"`
	Persist        bool `toml:"persist"`
}

// ParticlesConfig sizes the transform feedback example.
type ParticlesConfig struct {
	Count int     `toml:"count"`
	Step  float32 `toml:"step"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Address: ":9464",
			Path:    "/metrics",
		},
		Renderer: RendererConfig{
			Width:  256,
			Height: 256,
		},
		Window: WindowConfig{
			Title: "oxy-compute",
		},
		Compute: ComputeConfig{
			QueueSize:      64,
			ProfileSeconds: 1,
			Iterations:     4,
			Persist:        true,
		},
		Particles: ParticlesConfig{
			Count: 1024,
			Step:  0.016,
		},
	}
}

// Parse decodes TOML over the defaults. Keys the document leaves out keep their default value;
// unknown keys are an error.
//
// Parameters:
//   - data: the TOML document
//
// Returns:
//   - Config: the merged configuration
//   - error: on a decode error or a failed validation
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, strict.String())
		}
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses the file at path. An empty path returns the defaults.
//
// Parameters:
//   - path: the TOML file, or ""
//
// Returns:
//   - Config: the loaded configuration
//   - error: if the file cannot be read or parsed
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Validate checks the values Parse cannot check by type alone.
func (c Config) Validate() error {
	switch {
	case c.Renderer.Width <= 0 || c.Renderer.Height <= 0:
		return fmt.Errorf("%w: renderer size %dx%d", ErrInvalidConfig, c.Renderer.Width, c.Renderer.Height)
	case c.Compute.QueueSize <= 0:
		return fmt.Errorf("%w: compute.queue_size %d", ErrInvalidConfig, c.Compute.QueueSize)
	case c.Compute.Iterations < 0:
		return fmt.Errorf("%w: compute.iterations %d", ErrInvalidConfig, c.Compute.Iterations)
	case c.Particles.Count <= 0:
		return fmt.Errorf("%w: particles.count %d", ErrInvalidConfig, c.Particles.Count)
	}
	return nil
}

// Encode renders c as TOML.
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
