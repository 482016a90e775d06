// Package video turns a folder of still frames into an mp4 or mov file.
//
// Frames are decoded and resized in parallel, decorated with an optional
// logo and text watermark, then streamed in filename order to ffmpeg as raw
// RGBA.
package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	ffmpeg "github.com/u2takey/ffmpeg-go"
	"go.uber.org/zap"

	"github.com/menta2k/image-compositor/pkg/batch"
	"github.com/menta2k/image-compositor/pkg/types"
)

// Static errors for video building.
var (
	ErrNoFrames         = errors.New("no frames to encode")
	ErrInvalidContainer = errors.New("unsupported video container")
)

// FrameLoader decodes a frame from disk
type FrameLoader interface {
	LoadImage(path string) (image.Image, error)
}

// Options configures a Builder
type Options struct {
	// Resolution of the output; zero keeps the first frame's size
	Resolution Resolution
	FPS        int
	// Container is mp4 or mov
	Container string
	Workers   int

	Logo         image.Image
	LogoPosition Position
	LogoScale    float64
	Padding      int

	Watermark         string
	WatermarkPosition Position
	WatermarkOpacity  float64
}

// Stats describes a finished video
type Stats struct {
	Output   string
	Size     Resolution
	Frames   int
	Skipped  int
	Duration time.Duration
	Bytes    int64
}

// Builder renders frames into a video file
type Builder struct {
	opts   Options
	loader FrameLoader
	logger *zap.Logger
}

// NewBuilder creates a Builder. Unset FPS, Container, Workers and positions
// fall back to 30, mp4, 1 and bottom-right/center.
func NewBuilder(opts Options, loader FrameLoader, logger *zap.Logger) (*Builder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	if opts.Container == "" {
		opts.Container = "mp4"
	}
	if opts.Container != "mp4" && opts.Container != "mov" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidContainer, opts.Container)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.LogoPosition == "" {
		opts.LogoPosition = BottomRight
	}
	if opts.WatermarkPosition == "" {
		opts.WatermarkPosition = Center
	}
	return &Builder{opts: opts, loader: loader, logger: logger}, nil
}

// OutputPath names the video after the input folder: <outputDir>/<folder>.<container>
func (b *Builder) OutputPath(inputDir, outputDir string) string {
	return filepath.Join(outputDir, filepath.Base(filepath.Clean(inputDir))+"."+b.opts.Container)
}

// Build encodes frames, in the given order, into output. Frames that fail
// to decode are skipped with a warning.
func (b *Builder) Build(ctx context.Context, frames []string, output string) (Stats, error) {
	if len(frames) == 0 {
		return Stats{}, ErrNoFrames
	}

	size, err := b.frameSize(frames)
	if err != nil {
		return Stats{}, err
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return Stats{}, fmt.Errorf("create output folder: %w", err)
	}

	var logo *image.NRGBA
	if b.opts.Logo != nil {
		logo = PrepareLogo(b.opts.Logo, size.Width, b.opts.LogoScale)
	}

	runner, err := batch.New(b.opts.Workers, batch.WithLogger(b.logger))
	if err != nil {
		return Stats{}, err
	}

	pr, pw := io.Pipe()
	var stderr bytes.Buffer
	done := make(chan error, 1)
	go func() {
		err := ffmpeg.Input("pipe:", ffmpeg.KwArgs{
			"format":    "rawvideo",
			"pix_fmt":   "rgba",
			"s":         size.String(),
			"framerate": b.opts.FPS,
		}).
			Output(output, ffmpeg.KwArgs{
				"c:v":     "mpeg4",
				"q:v":     2,
				"pix_fmt": "yuv420p",
				"vf":      "pad=ceil(iw/2)*2:ceil(ih/2)*2",
			}).
			OverWriteOutput().
			WithInput(pr).
			WithOutput(io.Discard, &stderr).
			Run()
		if err != nil {
			pr.CloseWithError(err)
		} else {
			pr.Close()
		}
		done <- err
	}()

	stats := Stats{Output: output, Size: size}
	writeErr := b.stream(ctx, runner, frames, size, logo, pw, &stats)
	if writeErr != nil {
		pw.CloseWithError(writeErr)
	} else {
		pw.Close()
	}

	ffErr := <-done
	if ffErr != nil {
		b.logger.Debug("ffmpeg failed", zap.String("stderr", stderr.String()))
	}
	if writeErr != nil {
		return stats, writeErr
	}
	if stats.Frames == 0 {
		_ = os.Remove(output)
		return stats, ErrNoFrames
	}
	if ffErr != nil {
		return stats, fmt.Errorf("encode %s: %w", filepath.Base(output), ffErr)
	}

	stats.Duration = time.Duration(stats.Frames) * time.Second / time.Duration(b.opts.FPS)
	if info, err := os.Stat(output); err == nil {
		stats.Bytes = info.Size()
	}
	return stats, nil
}

// stream prepares frames one window at a time so only a bounded number of
// decoded frames is held in memory, and writes them to w in order
func (b *Builder) stream(ctx context.Context, runner *batch.Runner, frames []string, size Resolution, logo *image.NRGBA, w io.Writer, stats *Stats) error {
	window := b.opts.Workers * 2
	prepared := make([]*image.NRGBA, window)

	for start := 0; start < len(frames); start += window {
		end := start + window
		if end > len(frames) {
			end = len(frames)
		}
		chunk := frames[start:end]

		results := runner.Run(ctx, len(chunk), func(_ context.Context, i int) types.Result {
			frame, err := b.prepare(chunk[i], size, logo)
			prepared[i] = frame
			if err != nil {
				return types.Result{Name: filepath.Base(chunk[i]), Status: types.StatusFailed, Err: err}
			}
			return types.Result{Name: filepath.Base(chunk[i]), Status: types.StatusProcessed}
		})
		if err := ctx.Err(); err != nil {
			return err
		}

		for i, res := range results {
			if res.Status != types.StatusProcessed {
				stats.Skipped++
				b.logger.Warn("skipping unreadable frame", zap.String("frame", chunk[i]), zap.Error(res.Err))
				continue
			}
			if _, err := w.Write(prepared[i].Pix); err != nil {
				return fmt.Errorf("write frame %s: %w", filepath.Base(chunk[i]), err)
			}
			stats.Frames++
			prepared[i] = nil
		}
	}
	return nil
}

func (b *Builder) prepare(path string, size Resolution, logo *image.NRGBA) (*image.NRGBA, error) {
	img, err := b.loader.LoadImage(path)
	if err != nil {
		return nil, err
	}

	var frame *image.NRGBA
	if img.Bounds().Dx() != size.Width || img.Bounds().Dy() != size.Height {
		frame = imaging.Resize(img, size.Width, size.Height, imaging.Box)
	} else {
		frame = imaging.Clone(img)
	}
	// raw video has no alpha
	frame = imaging.AdjustFunc(frame, func(c color.NRGBA) color.NRGBA {
		c.A = 255
		return c
	})

	if logo != nil {
		OverlayLogo(frame, logo, b.opts.LogoPosition, b.opts.Padding)
	}
	Watermark(frame, b.opts.Watermark, b.opts.WatermarkPosition, b.opts.Padding, b.opts.WatermarkOpacity)
	return frame, nil
}

func (b *Builder) frameSize(frames []string) (Resolution, error) {
	if !b.opts.Resolution.IsZero() {
		return b.opts.Resolution, nil
	}
	for _, f := range frames {
		img, err := b.loader.LoadImage(f)
		if err != nil {
			b.logger.Warn("skipping unreadable frame", zap.String("frame", f), zap.Error(err))
			continue
		}
		s := img.Bounds().Size()
		return Resolution{Width: s.X, Height: s.Y}, nil
	}
	return Resolution{}, ErrNoFrames
}
