package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/menta2k/image-compositor/internal/utils"
	"github.com/menta2k/image-compositor/pkg/discovery"
	"github.com/menta2k/image-compositor/pkg/processing"
	"github.com/menta2k/image-compositor/pkg/types"
)

// ConvertOptions selects the target format and encoder settings for ConvertAll
type ConvertOptions struct {
	Format processing.Format
	processing.EncodeOptions
	// Width and Height, when both set, downscale larger inputs to exactly
	// that size. Smaller inputs are never enlarged.
	Width  int
	Height int
	// Progressive is accepted for JPEG but the encoder only writes baseline
	Progressive bool
}

// ConvertTarget returns where src (a file below inputRoot) is written:
// <outputRoot>/<format>/<relative folder>/<name>.<format>
func ConvertTarget(inputRoot, outputRoot, src string, format processing.Format) (string, error) {
	rel, err := filepath.Rel(inputRoot, filepath.Dir(src))
	if err != nil {
		return "", err
	}
	name := utils.ReplaceExtension(filepath.Base(src), format.Ext())
	return filepath.Join(outputRoot, format.Ext(), rel, name), nil
}

// ConvertAll re-encodes every PNG below inputRoot into opts.Format. Outputs
// that already exist are skipped, never overwritten.
func (p *Pipeline) ConvertAll(ctx context.Context, inputRoot, outputRoot string, opts ConvertOptions) ([]types.Result, error) {
	if _, err := processing.ParseFormat(string(opts.Format)); err != nil {
		return nil, err
	}
	if !utils.DirExists(inputRoot) {
		return nil, fmt.Errorf("input folder %s does not exist", inputRoot)
	}
	if opts.Progressive && opts.Format == processing.FormatJPEG {
		p.logger.Warn("progressive JPEG is not supported, writing baseline JPEG")
	}

	files, err := discovery.FindImages(inputRoot, true, "png")
	if err != nil {
		return nil, err
	}
	p.logger.Info("images discovered", zap.Int("images", len(files)), zap.String("format", string(opts.Format)))

	results := p.runner.Run(ctx, len(files), func(ctx context.Context, i int) types.Result {
		return p.convertOne(ctx, inputRoot, outputRoot, files[i], opts)
	})
	for i := range results {
		if results[i].Name == "" {
			results[i].Name = filepath.Base(files[i])
		}
	}
	return results, nil
}

func (p *Pipeline) convertOne(ctx context.Context, inputRoot, outputRoot, src string, opts ConvertOptions) types.Result {
	res := types.Result{Name: filepath.Base(src)}

	dst, err := ConvertTarget(inputRoot, outputRoot, src, opts.Format)
	if err != nil {
		res.Status = types.StatusFailed
		res.Err = err
		return res
	}
	res.Output = dst

	if utils.FileExists(dst) {
		p.logger.Warn("skipping, output already exists", zap.String("output", dst))
		res.Status = types.StatusSkipped
		return res
	}

	fail := func(err error) types.Result {
		p.logger.Error("error converting image", zap.String("input", src), zap.Error(err))
		res.Status = types.StatusFailed
		res.Err = err
		return res
	}

	img, err := p.processor.LoadImage(src)
	if err != nil {
		return fail(err)
	}
	img = processing.DownscaleTo(img, opts.Width, opts.Height)

	if err := utils.EnsureDir(filepath.Dir(dst)); err != nil {
		return fail(err)
	}
	if err := p.processor.SaveImage(ctx, img, dst, opts.Format, opts.EncodeOptions); err != nil {
		return fail(err)
	}

	p.logger.Info("image converted", zap.String("input", src), zap.String("output", dst))
	res.Status = types.StatusProcessed
	return res
}
