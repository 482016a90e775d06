package processing

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// EncodeAVIF encodes img as a still AVIF through ffmpeg (libaom-av1).
// Quality 1..100 maps onto CRF 63..0; Speed maps onto cpu-used.
func (p *Processor) EncodeAVIF(ctx context.Context, img image.Image, path string, opts EncodeOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.png")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	srcPath := src.Name()
	defer os.Remove(srcPath)

	err = encode(src, img, FormatPNG, EncodeOptions{})
	if err = multierr.Append(err, src.Close()); err != nil {
		return fmt.Errorf("stage avif source: %w", err)
	}

	dst := srcPath + ".avif"
	defer os.Remove(dst)

	speed := opts.Speed
	if speed < 0 {
		speed = 0
	}
	if speed > 8 {
		speed = 8
	}
	crf := 63 - clampQuality(opts.Quality)*63/100

	var stderr bytes.Buffer
	err = ffmpeg.Input(srcPath).
		Output(dst, ffmpeg.KwArgs{
			"c:v":           "libaom-av1",
			"still-picture": 1,
			"crf":           crf,
			"cpu-used":      speed,
			"pix_fmt":       "yuv420p",
			"f":             "avif",
		}).
		OverWriteOutput().
		WithOutput(io.Discard, &stderr).
		Run()
	if err != nil {
		p.logger.Debug("ffmpeg avif encode failed", zap.String("stderr", stderr.String()))
		return fmt.Errorf("avif encode %s: %w", filepath.Base(path), err)
	}

	if err := os.Rename(dst, path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
