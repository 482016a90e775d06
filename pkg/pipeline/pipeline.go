// Package pipeline wires discovery, the compositor, the codecs and the
// worker pool into the batch jobs the command line runs.
package pipeline

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/menta2k/image-compositor/internal/utils"
	"github.com/menta2k/image-compositor/pkg/batch"
	"github.com/menta2k/image-compositor/pkg/compositor"
	"github.com/menta2k/image-compositor/pkg/discovery"
	"github.com/menta2k/image-compositor/pkg/processing"
	"github.com/menta2k/image-compositor/pkg/types"
)

// Pipeline runs composite and convert jobs
type Pipeline struct {
	compositor *compositor.Compositor
	processor  *processing.Processor
	runner     *batch.Runner
	categories []string
	logger     *zap.Logger
}

// New creates a Pipeline. Categories default to discovery.DefaultCategories.
func New(c *compositor.Compositor, p *processing.Processor, r *batch.Runner, categories []string, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(categories) == 0 {
		categories = discovery.DefaultCategories
	}
	return &Pipeline{
		compositor: c,
		processor:  p,
		runner:     r,
		categories: categories,
		logger:     logger,
	}
}

// ProcessPair composites one pair and writes two PNGs into the pair's output
// folder: the centered foreground under its original name, then the
// composite under the background's name. Existing files are overwritten.
func (p *Pipeline) ProcessPair(ctx context.Context, pair types.Pair) types.Result {
	res := types.Result{Name: pair.Background}
	fail := func(err error) types.Result {
		p.logger.Error("error processing pair",
			zap.String("pair", pair.ID()),
			zap.String("folder", pair.InputDir),
			zap.String("background", pair.Background),
			zap.String("foreground", pair.Foreground),
			zap.Error(err),
		)
		res.Status = types.StatusFailed
		res.Err = err
		return res
	}

	bg, err := p.processor.LoadImage(pair.BackgroundPath())
	if err != nil {
		return fail(fmt.Errorf("load background: %w", err))
	}
	fg, err := p.processor.LoadImage(pair.ForegroundPath())
	if err != nil {
		return fail(fmt.Errorf("load foreground: %w", err))
	}

	out, err := p.compositor.Run(bg, fg)
	if err != nil {
		return fail(err)
	}

	if err := utils.EnsureDir(pair.OutputDir); err != nil {
		return fail(fmt.Errorf("create output folder: %w", err))
	}
	opts := processing.EncodeOptions{CompressionLevel: png.DefaultCompression}
	centered := filepath.Join(pair.OutputDir, pair.Foreground)
	if err := p.processor.SaveImage(ctx, out.Centered, centered, processing.FormatPNG, opts); err != nil {
		return fail(fmt.Errorf("save foreground: %w", err))
	}
	composite := filepath.Join(pair.OutputDir, pair.Background)
	if err := p.processor.SaveImage(ctx, out.Composite, composite, processing.FormatPNG, opts); err != nil {
		// a centered foreground without its composite is not a finished pair
		if rmErr := os.Remove(centered); rmErr != nil && !os.IsNotExist(rmErr) {
			err = multierr.Append(err, rmErr)
		}
		return fail(fmt.Errorf("save composite: %w", err))
	}

	p.logger.Info("pair processed",
		zap.String("folder", pair.InputDir),
		zap.String("background", pair.Background),
		zap.String("foreground", pair.Foreground),
		zap.Float64("zoom", out.Zoom),
		zap.Int("dx", out.Offset.DX),
		zap.Int("dy", out.Offset.DY),
	)

	res.Output = composite
	res.Status = types.StatusProcessed
	res.Zoom = out.Zoom
	res.Offset = out.Offset
	return res
}

// CompositeAll discovers every pair below inputRoot and processes them on
// the worker pool
func (p *Pipeline) CompositeAll(ctx context.Context, inputRoot, outputRoot string) ([]types.Result, error) {
	pairs, err := discovery.FindPairs(inputRoot, outputRoot, p.categories)
	if err != nil {
		return nil, err
	}
	p.logger.Info("pairs discovered", zap.Int("pairs", len(pairs)), zap.Int("workers", p.runner.Workers()))

	results := p.runner.Run(ctx, len(pairs), func(ctx context.Context, i int) types.Result {
		return p.ProcessPair(ctx, pairs[i])
	})
	for i := range results {
		if results[i].Name == "" {
			results[i].Name = pairs[i].Background
		}
	}
	return results, nil
}
