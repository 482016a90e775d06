package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gertd/go-pluralize"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	imagecompositor "github.com/menta2k/image-compositor"
	"github.com/menta2k/image-compositor/internal/config"
	"github.com/menta2k/image-compositor/internal/utils"
	"github.com/menta2k/image-compositor/pkg/types"
)

// setup loads the configuration (defaults, file, environment), applies the
// flags the user set explicitly and builds the compositor and its logger
func setup(c *cli.Context, apply func(*imagecompositor.Config) error) (*imagecompositor.ImageCompositor, *zap.Logger, error) {
	cfg, err := imagecompositor.LoadConfig(c.Context, c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Log.Format = c.String("log-format")
	}
	if err := apply(cfg); err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	ic, err := imagecompositor.New(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return ic, logger, nil
}

// inputOutput returns --input/--output, falling back to the first two
// positional arguments
func inputOutput(c *cli.Context) (string, string, error) {
	in, out := c.String("input"), c.String("output")
	if in == "" {
		in = c.Args().Get(0)
	}
	if out == "" {
		out = c.Args().Get(1)
	}
	if in == "" || out == "" {
		return "", "", fmt.Errorf("missing required arguments: INPUT OUTPUT")
	}
	if !utils.DirExists(in) {
		return "", "", fmt.Errorf("input folder %s does not exist", in)
	}
	return in, out, nil
}

func newBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
}

func printSummary(noun string, results []types.Result, elapsed time.Duration) {
	summaryStyle := color.New(color.FgCyan, color.Bold)
	successStyle := color.New(color.FgGreen)
	warnStyle := color.New(color.FgYellow)
	errorStyle := color.New(color.FgRed)
	pl := pluralize.NewClient()

	s := types.Summarize(results)
	summaryStyle.Printf("📦 %s in %s\n", pl.Pluralize(noun, len(results), true), elapsed.Round(time.Millisecond))
	successStyle.Printf("  ✅ %d processed\n", s.Processed)
	if s.Skipped > 0 {
		warnStyle.Printf("  ⚠️ %d skipped\n", s.Skipped)
	}
	if s.Failed > 0 {
		errorStyle.Printf("  ❌ %d failed\n", s.Failed)
		for _, r := range results {
			if r.Status == types.StatusFailed {
				errorStyle.Printf("     %s: %v\n", r.Name, r.Err)
			}
		}
	}
}

func compositeCommand(c *cli.Context) error {
	in, out, err := inputOutput(c)
	if err != nil {
		return err
	}
	ic, logger, err := setup(c, func(cfg *imagecompositor.Config) error {
		m := &cfg.Composite.Margins
		if c.IsSet("top") {
			m.Top = c.Int("top")
		}
		if c.IsSet("bottom") {
			m.Bottom = c.Int("bottom")
		}
		if c.IsSet("left") {
			m.Left = c.Int("left")
		}
		if c.IsSet("right") {
			m.Right = c.Int("right")
		}
		if c.IsSet("margins") {
			cfg.Composite.ApplyMargins = c.Bool("margins")
		}
		if c.IsSet("fill") {
			cfg.Composite.Fill = c.String("fill")
		}
		if c.IsSet("categories") {
			cfg.Composite.Categories = c.StringSlice("categories")
		}
		if c.IsSet("alpha-threshold") {
			v := c.Uint("alpha-threshold")
			if v > 255 {
				return fmt.Errorf("%w: alpha-threshold must be 0-255, got %d", config.ErrInvalidConfig, v)
			}
			cfg.Composite.AlphaThreshold = uint8(v)
		}
		return nil
	})
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	total, err := ic.CountPairs(in, out)
	if err != nil {
		return err
	}
	bar := newBar(total, "compositing")
	start := time.Now()
	results, err := ic.Composite(c.Context, in, out, func(types.Result) { _ = bar.Add(1) })
	_ = bar.Finish()
	if err != nil {
		return err
	}
	printSummary("pair", results, time.Since(start))
	return nil
}

func convertCommand(c *cli.Context) error {
	in, out, err := inputOutput(c)
	if err != nil {
		return err
	}
	ic, logger, err := setup(c, func(cfg *imagecompositor.Config) error {
		if c.IsSet("format") {
			cfg.Convert.Format = strings.ToLower(c.String("format"))
		}
		if c.IsSet("quality") {
			cfg.Convert.Quality = c.Int("quality")
		}
		if c.IsSet("width") {
			cfg.Convert.Width = c.Int("width")
		}
		if c.IsSet("height") {
			cfg.Convert.Height = c.Int("height")
		}
		if c.IsSet("lossless") {
			cfg.Convert.Lossless = c.Bool("lossless")
		}
		if c.IsSet("speed") {
			cfg.Convert.Speed = c.Int("speed")
		}
		if c.IsSet("progressive") {
			cfg.Convert.Progressive = c.Bool("progressive")
		}
		return nil
	})
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	total, err := ic.CountImages(in)
	if err != nil {
		return err
	}
	bar := newBar(total, "converting to "+ic.Config().Convert.Format)
	start := time.Now()
	results, err := ic.Convert(c.Context, in, out, func(types.Result) { _ = bar.Add(1) })
	_ = bar.Finish()
	if err != nil {
		return err
	}
	printSummary("image", results, time.Since(start))
	return nil
}

func videoCommand(c *cli.Context) error {
	in, out, err := inputOutput(c)
	if err != nil {
		return err
	}
	ic, logger, err := setup(c, func(cfg *imagecompositor.Config) error {
		v := &cfg.Video
		if c.IsSet("resolution") {
			v.Resolution = c.String("resolution")
		}
		if c.IsSet("fps") {
			v.FPS = c.Int("fps")
		}
		if c.IsSet("format") {
			v.Container = strings.ToLower(c.String("format"))
		}
		if c.IsSet("image-format") {
			v.FrameExtensions = c.StringSlice("image-format")
		}
		if c.IsSet("logo") {
			v.Logo = c.String("logo")
		}
		if c.IsSet("position") {
			v.LogoPosition = c.String("position")
		}
		if c.IsSet("watermark") {
			v.Watermark = c.String("watermark")
		}
		if c.IsSet("watermark-position") {
			v.WatermarkPos = c.String("watermark-position")
		}
		if c.IsSet("watermark-opacity") {
			v.WatermarkAlpha = c.Float64("watermark-opacity")
		}
		return nil
	})
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	regularStyle := color.New(color.Reset)
	valueStyle := color.New(color.Bold)
	successStyle := color.New(color.FgGreen)
	pl := pluralize.NewClient()

	stats, err := ic.BuildVideo(c.Context, in, out)
	if err != nil {
		return err
	}

	successStyle.Printf("✅ Video created: %s\n", stats.Output)
	regularStyle.Printf("  📏 Resolution: ")
	valueStyle.Printf("%s\n", stats.Size)
	regularStyle.Printf("  🎞️ Frames: ")
	valueStyle.Printf("%s\n", pl.Pluralize("frame", stats.Frames, true))
	if stats.Skipped > 0 {
		regularStyle.Printf("  ⚠️ Skipped: ")
		valueStyle.Printf("%s\n", pl.Pluralize("unreadable frame", stats.Skipped, true))
	}
	regularStyle.Printf("  ⏳ Duration: ")
	valueStyle.Printf("%s\n", stats.Duration)
	regularStyle.Printf("  📂 File size: ")
	valueStyle.Printf("%s\n", utils.FormatFileSize(stats.Bytes))
	return nil
}

func versionPrinter(c *cli.Context) {
	summaryStyle := color.New(color.FgCyan, color.Bold)
	summaryStyle.Printf("🖼️ imgbatch %s\n", imagecompositor.Version)
}

func ioFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "input folder"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output folder"},
	}
}

func newApp() *cli.App {
	cli.VersionPrinter = versionPrinter

	return &cli.App{
		Name:    "imgbatch",
		Usage:   "Batch compositing, conversion and video rendering for product photography",
		Version: imagecompositor.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "JSON configuration file",
				EnvVars: []string{"IMGBATCH_CONFIG"},
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"t", "threads"},
				Usage:   "number of worker threads",
			},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "log-format", Usage: "console or json"},
		},
		Commands: []*cli.Command{
			{
				Name:      "composite",
				Usage:     "Center every transparent image on its subject and merge it with its background",
				ArgsUsage: "[INPUT OUTPUT]",
				Action:    compositeCommand,
				Flags: append(ioFlags(),
					&cli.IntFlag{Name: "top", Usage: "top margin in pixels"},
					&cli.IntFlag{Name: "bottom", Usage: "bottom margin in pixels"},
					&cli.IntFlag{Name: "left", Usage: "left margin in pixels"},
					&cli.IntFlag{Name: "right", Usage: "right margin in pixels"},
					&cli.BoolFlag{Name: "margins", Aliases: []string{"m"}, Usage: "zoom the subject to fill the canvas inside the margins"},
					&cli.StringFlag{Name: "fill", Usage: "canvas fill color as R,G,B"},
					&cli.StringSliceFlag{Name: "categories", Usage: "category labels to pair (default R,W,Y)"},
					&cli.UintFlag{Name: "alpha-threshold", Usage: "alpha values at or below this are background (0-255)"},
				),
			},
			{
				Name:      "convert",
				Usage:     "Convert every PNG to JPEG, WEBP or AVIF",
				ArgsUsage: "[INPUT OUTPUT]",
				Action:    convertCommand,
				Flags: append(ioFlags(),
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "jpeg, webp or avif"},
					&cli.IntFlag{Name: "quality", Aliases: []string{"q"}, Usage: "output quality (1-100)"},
					&cli.IntFlag{Name: "width", Aliases: []string{"w"}, Usage: "downscale larger images to this width"},
					&cli.IntFlag{Name: "height", Usage: "downscale larger images to this height"},
					&cli.BoolFlag{Name: "lossless", Usage: "lossless WEBP"},
					&cli.IntFlag{Name: "speed", Aliases: []string{"s"}, Usage: "AVIF encoder speed (0-8)"},
					&cli.BoolFlag{Name: "progressive", Aliases: []string{"p"}, Usage: "progressive JPEG (accepted, baseline is written)"},
				),
			},
			{
				Name:      "video",
				Usage:     "Render a folder of frames into a video",
				ArgsUsage: "[INPUT OUTPUT]",
				Action:    videoCommand,
				Flags: append(ioFlags(),
					&cli.StringFlag{Name: "resolution", Aliases: []string{"r"}, Usage: "720p, 1080p, 4k, 8k or WxH"},
					&cli.IntFlag{Name: "fps", Usage: "frames per second"},
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "mp4 or mov"},
					&cli.StringSliceFlag{Name: "image-format", Usage: "frame file extensions"},
					&cli.StringFlag{Name: "logo", Aliases: []string{"l"}, Usage: "logo image path or URL"},
					&cli.StringFlag{Name: "position", Aliases: []string{"p"}, Usage: "logo position: top-left, top-right, bottom-left, bottom-right or center"},
					&cli.StringFlag{Name: "watermark", Usage: "watermark text"},
					&cli.StringFlag{Name: "watermark-position", Usage: "watermark position"},
					&cli.Float64Flag{Name: "watermark-opacity", Usage: "watermark opacity (0-1)"},
				),
			},
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		errorStyle := color.New(color.FgRed)
		errorStyle.Fprintf(os.Stderr, "⚠️ Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
