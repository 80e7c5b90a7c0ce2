package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[log]
level = "debug"

[renderer]
width = 640
force_software_renderer = true

[particles]
count = 4096
`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 640, cfg.Renderer.Width)
	assert.Equal(t, 256, cfg.Renderer.Height, "unset keys keep their default")
	assert.True(t, cfg.Renderer.ForceSoftwareRenderer)
	assert.Equal(t, 4096, cfg.Particles.Count)
	assert.Equal(t, Default().Compute, cfg.Compute)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown key", "[renderer]\ndepth = 3\n"},
		{"zero width", "[renderer]\nwidth = 0\n"},
		{"zero queue", "[compute]\nqueue_size = 0\n"},
		{"negative iterations", "[compute]\niterations = -1\n"},
		{"no particles", "[particles]\ncount = 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := Parse([]byte("[renderer\nwidth = 1"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	data, err := Default().Encode()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "oxy-compute.toml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
