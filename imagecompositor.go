// Package imagecompositor batch-composites product photography.
//
// A transparent cut-out (the foreground) and its background are scaled so
// the subject fills the canvas inside configurable margins, centered on the
// subject's centroid, and merged onto a colored fill. The same offset is
// applied to both images so they stay registered.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		"github.com/menta2k/image-compositor"
//	)
//
//	func main() {
//		cfg := imagecompositor.DefaultConfig()
//		cfg.Composite.ApplyMargins = true
//		cfg.Composite.Margins.Top = 40
//
//		ic, err := imagecompositor.New(cfg, nil)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		results, err := ic.Composite(context.Background(), "input", "output", nil)
//		if err != nil {
//			log.Fatal(err)
//		}
//		log.Printf("%d pairs", len(results))
//	}
//
// The package consists of these components:
//
//  1. Compositor (pkg/compositor): zoom, centering and background alignment
//  2. Discovery (pkg/discovery): background/foreground pair matching
//  3. Batch (pkg/batch): bounded worker pool
//  4. Processing (pkg/processing): PNG, JPEG, WEBP and AVIF codecs
//  5. Video (pkg/video): frames to mp4/mov with logo and watermark overlays
package imagecompositor

import (
	"context"
	"fmt"
	"image"
	"strings"

	"go.uber.org/zap"

	"github.com/menta2k/image-compositor/internal/config"
	"github.com/menta2k/image-compositor/pkg/batch"
	"github.com/menta2k/image-compositor/pkg/compositor"
	"github.com/menta2k/image-compositor/pkg/discovery"
	"github.com/menta2k/image-compositor/pkg/pipeline"
	"github.com/menta2k/image-compositor/pkg/processing"
	"github.com/menta2k/image-compositor/pkg/types"
	"github.com/menta2k/image-compositor/pkg/video"
)

// Version of the image compositor
const Version = "1.0.0"

// Config is the full application configuration
type Config = config.Config

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return config.Default()
}

// LoadConfig reads an optional JSON file and applies IMGBATCH_* overrides
func LoadConfig(ctx context.Context, path string) (*Config, error) {
	return config.Load(ctx, path)
}

// ImageCompositor provides a high-level interface over the batch jobs
type ImageCompositor struct {
	cfg        *Config
	logger     *zap.Logger
	processor  *processing.Processor
	compositor *compositor.Compositor
}

// New validates cfg and creates an ImageCompositor. A nil logger discards
// all log output.
func New(cfg *Config, logger *zap.Logger) (*ImageCompositor, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ImageCompositor{
		cfg:       cfg,
		logger:    logger,
		processor: processing.NewProcessor(logger),
		compositor: compositor.NewWithConfig(compositor.Options{
			Margins:        cfg.Composite.Margins,
			ApplyMargins:   cfg.Composite.ApplyMargins,
			Fill:           cfg.FillColor(),
			AlphaThreshold: cfg.Composite.AlphaThreshold,
		}, logger),
	}, nil
}

// Config returns the active configuration
func (ic *ImageCompositor) Config() *Config {
	return ic.cfg
}

// CompositePair composites a single in-memory pair
func (ic *ImageCompositor) CompositePair(bg, fg image.Image) (compositor.Output, error) {
	return ic.compositor.Run(bg, fg)
}

// Composite processes every background/foreground pair below input.
// onResult, if set, is called as each pair finishes.
func (ic *ImageCompositor) Composite(ctx context.Context, input, output string, onResult func(types.Result)) ([]types.Result, error) {
	p, err := ic.pipeline(onResult)
	if err != nil {
		return nil, err
	}
	return p.CompositeAll(ctx, input, output)
}

// CountPairs returns how many pairs Composite would process
func (ic *ImageCompositor) CountPairs(input, output string) (int, error) {
	pairs, err := discovery.FindPairs(input, output, ic.cfg.Composite.Categories)
	return len(pairs), err
}

// Convert re-encodes every PNG below input into the configured format
func (ic *ImageCompositor) Convert(ctx context.Context, input, output string, onResult func(types.Result)) ([]types.Result, error) {
	format, err := processing.ParseFormat(ic.cfg.Convert.Format)
	if err != nil {
		return nil, err
	}
	p, err := ic.pipeline(onResult)
	if err != nil {
		return nil, err
	}
	return p.ConvertAll(ctx, input, output, pipeline.ConvertOptions{
		Format: format,
		EncodeOptions: processing.EncodeOptions{
			Quality:  ic.cfg.Convert.Quality,
			Lossless: ic.cfg.Convert.Lossless,
			Speed:    ic.cfg.Convert.Speed,
		},
		Width:       ic.cfg.Convert.Width,
		Height:      ic.cfg.Convert.Height,
		Progressive: ic.cfg.Convert.Progressive,
	})
}

// CountImages returns how many PNGs Convert would visit
func (ic *ImageCompositor) CountImages(input string) (int, error) {
	files, err := discovery.FindImages(input, true, "png")
	return len(files), err
}

// BuildVideo renders the frames in input (sorted by name) into
// <output>/<input folder name>.<container>
func (ic *ImageCompositor) BuildVideo(ctx context.Context, input, output string) (video.Stats, error) {
	vc := ic.cfg.Video
	opts := video.Options{
		FPS:              vc.FPS,
		Container:        strings.ToLower(vc.Container),
		Workers:          ic.cfg.Workers,
		LogoScale:        vc.LogoScale,
		Padding:          vc.Padding,
		Watermark:        vc.Watermark,
		WatermarkOpacity: vc.WatermarkAlpha,
	}

	var err error
	if vc.Resolution != "" {
		if opts.Resolution, err = video.ParseResolution(vc.Resolution); err != nil {
			return video.Stats{}, err
		}
	}
	if opts.LogoPosition, err = video.ParsePosition(vc.LogoPosition); err != nil {
		return video.Stats{}, err
	}
	if opts.WatermarkPosition, err = video.ParsePosition(vc.WatermarkPos); err != nil {
		return video.Stats{}, err
	}
	if vc.Logo != "" {
		if opts.Logo, err = ic.processor.LoadImageSmart(ctx, vc.Logo); err != nil {
			return video.Stats{}, fmt.Errorf("load logo: %w", err)
		}
	}

	builder, err := video.NewBuilder(opts, ic.processor, ic.logger)
	if err != nil {
		return video.Stats{}, err
	}

	frames, err := discovery.FindImages(input, false, vc.FrameExtensions...)
	if err != nil {
		return video.Stats{}, err
	}
	return builder.Build(ctx, frames, builder.OutputPath(input, output))
}

func (ic *ImageCompositor) pipeline(onResult func(types.Result)) (*pipeline.Pipeline, error) {
	opts := []batch.Option{batch.WithLogger(ic.logger)}
	if onResult != nil {
		opts = append(opts, batch.WithResultHook(onResult))
	}
	runner, err := batch.New(ic.cfg.Workers, opts...)
	if err != nil {
		return nil, err
	}
	return pipeline.New(ic.compositor, ic.processor, runner, ic.cfg.Composite.Categories, ic.logger), nil
}
