package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/menta2k/image-compositor/pkg/types"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, types.DefaultFill, cfg.FillColor())
	assert.Equal(t, []string{"R", "W", "Y"}, cfg.Composite.Categories)
	assert.Equal(t, 100, cfg.Convert.Quality)
	assert.Equal(t, 30, cfg.Video.FPS)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"negative margin", func(c *Config) { c.Composite.Margins.Left = -1 }},
		{"bad fill", func(c *Config) { c.Composite.Fill = "0,0" }},
		{"no categories", func(c *Config) { c.Composite.Categories = nil }},
		{"quality too high", func(c *Config) { c.Convert.Quality = 101 }},
		{"unknown format", func(c *Config) { c.Convert.Format = "gif" }},
		{"speed out of range", func(c *Config) { c.Convert.Speed = 9 }},
		{"width without height", func(c *Config) { c.Convert.Width = 100 }},
		{"bad container", func(c *Config) { c.Video.Container = "avi" }},
		{"bad resolution", func(c *Config) { c.Video.Resolution = "huge" }},
		{"bad position", func(c *Config) { c.Video.LogoPosition = "middle" }},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestSaveAndLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := Default()
	cfg.Workers = 10
	cfg.Composite.ApplyMargins = true
	cfg.Composite.Margins = types.Margins{Top: 5, Bottom: 6, Left: 7, Right: 8}
	cfg.Composite.Fill = "10,20,30"
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
	assert.Equal(t, types.RGB{R: 10, G: 20, B: 30}, loaded.FillColor())
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"workers": 2}`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, "webp", cfg.Convert.Format)
}

func TestLoadErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	lookuper := envconfig.MapLookuper(map[string]string{
		"IMGBATCH_WORKERS":          "12",
		"IMGBATCH_APPLY_MARGINS":    "true",
		"IMGBATCH_FILL":             "255,255,255",
		"IMGBATCH_CATEGORIES":       "A,B",
		"IMGBATCH_CONVERT_FORMAT":   "avif",
		"IMGBATCH_VIDEO_RESOLUTION": "4k",
		"IMGBATCH_LOG_FORMAT":       "json",
	})

	cfg, err := load(context.Background(), "", lookuper)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 12, cfg.Workers)
	assert.True(t, cfg.Composite.ApplyMargins)
	assert.Equal(t, types.RGB{R: 255, G: 255, B: 255}, cfg.FillColor())
	assert.Equal(t, []string{"A", "B"}, cfg.Composite.Categories)
	assert.Equal(t, "avif", cfg.Convert.Format)
	assert.Equal(t, "4k", cfg.Video.Resolution)
	assert.Equal(t, "json", cfg.Log.Format)
	// untouched values keep their defaults
	assert.Equal(t, 100, cfg.Convert.Quality)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"workers": 2, "log": {"level": "debug", "format": "console"}}`), 0o644))

	cfg, err := load(context.Background(), path, envconfig.MapLookuper(map[string]string{
		"IMGBATCH_WORKERS": "7",
	}))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Workers)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		cfg := Default()
		cfg.Log.Format = format
		cfg.Log.Level = "debug"
		logger, err := cfg.NewLogger()
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	}
}
