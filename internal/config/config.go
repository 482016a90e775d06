package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/menta2k/image-compositor/pkg/types"
	"github.com/menta2k/image-compositor/pkg/video"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the application configuration
type Config struct {
	Workers   int             `json:"workers" env:"IMGBATCH_WORKERS, overwrite" validate:"min=1"`
	Composite CompositeConfig `json:"composite"`
	Convert   ConvertConfig   `json:"convert"`
	Video     VideoConfig     `json:"video"`
	Log       LogConfig       `json:"log"`
}

// CompositeConfig holds configuration for background/foreground compositing
type CompositeConfig struct {
	Margins        types.Margins `json:"margins"`
	ApplyMargins   bool          `json:"apply_margins" env:"IMGBATCH_APPLY_MARGINS, overwrite"`
	Fill           string        `json:"fill" env:"IMGBATCH_FILL, overwrite"`
	Categories     []string      `json:"categories" env:"IMGBATCH_CATEGORIES, overwrite" validate:"min=1,dive,required"`
	AlphaThreshold uint8         `json:"alpha_threshold" env:"IMGBATCH_ALPHA_THRESHOLD, overwrite"`
}

// ConvertConfig holds configuration for PNG conversion
type ConvertConfig struct {
	Format      string `json:"format" env:"IMGBATCH_CONVERT_FORMAT, overwrite" validate:"oneof=jpeg jpg webp avif png"`
	Quality     int    `json:"quality" env:"IMGBATCH_CONVERT_QUALITY, overwrite" validate:"min=1,max=100"`
	Width       int    `json:"width" validate:"min=0"`
	Height      int    `json:"height" validate:"min=0"`
	Lossless    bool   `json:"lossless"`
	Progressive bool   `json:"progressive"`
	Speed       int    `json:"speed" validate:"min=0,max=8"`
}

// VideoConfig holds configuration for frame-to-video rendering
type VideoConfig struct {
	Resolution      string   `json:"resolution" env:"IMGBATCH_VIDEO_RESOLUTION, overwrite"`
	FPS             int      `json:"fps" env:"IMGBATCH_VIDEO_FPS, overwrite" validate:"min=1,max=240"`
	Container       string   `json:"container" validate:"oneof=mp4 mov"`
	FrameExtensions []string `json:"frame_extensions" validate:"min=1"`
	Logo            string   `json:"logo"`
	LogoPosition    string   `json:"logo_position" validate:"oneof=top-left top-right bottom-left bottom-right center"`
	LogoScale       float64  `json:"logo_scale" validate:"gt=0,lte=1"`
	Padding         int      `json:"padding" validate:"min=0"`
	Watermark       string   `json:"watermark"`
	WatermarkPos    string   `json:"watermark_position" validate:"oneof=top-left top-right bottom-left bottom-right center"`
	WatermarkAlpha  float64  `json:"watermark_opacity" validate:"gte=0,lte=1"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `json:"level" env:"IMGBATCH_LOG_LEVEL, overwrite" validate:"oneof=debug info warn error"`
	Format string `json:"format" env:"IMGBATCH_LOG_FORMAT, overwrite" validate:"oneof=console json"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Workers: 4,
		Composite: CompositeConfig{
			Fill:       types.DefaultFill.String(),
			Categories: []string{"R", "W", "Y"},
		},
		Convert: ConvertConfig{
			Format:  "webp",
			Quality: 100,
			Speed:   6,
		},
		Video: VideoConfig{
			FPS:             30,
			Container:       "mp4",
			FrameExtensions: []string{"jpg", "jpeg", "png", "webp"},
			LogoPosition:    "bottom-right",
			LogoScale:       0.15,
			Padding:         20,
			WatermarkPos:    "center",
			WatermarkAlpha:  0.7,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the effective configuration: defaults, then the optional JSON
// file at path, then IMGBATCH_* environment variables.
func Load(ctx context.Context, path string) (*Config, error) {
	return load(ctx, path, envconfig.OsLookuper())
}

func load(ctx context.Context, path string, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a JSON file on top of the defaults
func LoadFromFile(filename string) (*Config, error) {
	return load(context.Background(), filename, envconfig.MapLookuper(nil))
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.Composite.Margins.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := types.ParseRGB(c.Composite.Fill); err != nil {
		return fmt.Errorf("%w: composite.fill: %v", ErrInvalidConfig, err)
	}
	if c.Video.Resolution != "" {
		if _, err := video.ParseResolution(c.Video.Resolution); err != nil {
			return fmt.Errorf("%w: video.resolution: %v", ErrInvalidConfig, err)
		}
	}
	if (c.Convert.Width > 0) != (c.Convert.Height > 0) {
		return fmt.Errorf("%w: convert.width and convert.height must be set together", ErrInvalidConfig)
	}
	return nil
}

// FillColor returns the parsed composite fill color
func (c *Config) FillColor() types.RGB {
	fill, err := types.ParseRGB(c.Composite.Fill)
	if err != nil {
		return types.DefaultFill
	}
	return fill
}

// NewLogger creates a zap logger from the log settings. "json" produces
// machine-readable lines, anything else human-readable console output.
func (c *Config) NewLogger() (*zap.Logger, error) {
	var zc zap.Config
	if strings.ToLower(c.Log.Format) == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zc.DisableStacktrace = true
	}
	zc.Level = zap.NewAtomicLevelAt(parseLogLevel(c.Log.Level))
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

func parseLogLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./imgbatch.json"
	}
	return filepath.Join(home, ".config", "imgbatch", "config.json")
}
