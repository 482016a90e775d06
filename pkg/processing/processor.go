package processing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
)

// Static errors for codec operations.
var (
	ErrUnknownFormat     = errors.New("unknown or unsupported image format")
	ErrUnsupportedOutput = errors.New("unsupported output format")
)

// Format is an output container format
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWEBP Format = "webp"
	FormatAVIF Format = "avif"
)

// ParseFormat accepts png, jpg/jpeg, webp and avif in any case
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "webp":
		return FormatWEBP, nil
	case "avif":
		return FormatAVIF, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedOutput, s)
}

// Ext returns the file extension used for the format, without the dot
func (f Format) Ext() string {
	return string(f)
}

// EncodeOptions carries the per-format encoder knobs
type EncodeOptions struct {
	Quality          int
	Lossless         bool
	Speed            int
	CompressionLevel png.CompressionLevel
}

// Processor loads and saves images
type Processor struct {
	logger *zap.Logger
}

// NewProcessor creates a new image processor
func NewProcessor(logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{logger: logger}
}

// LoadImageFromURL downloads and loads an image from a URL
func (p *Processor) LoadImageFromURL(ctx context.Context, imageURL string) (image.Image, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "imgbatch/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return p.decodeImageFromBytes(imageData)
}

// LoadImage loads an image from a file path with WebP support
func (p *Processor) LoadImage(path string) (image.Image, error) {
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := p.decodeImageFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// LoadImageSmart loads an image from either a file path or URL
func (p *Processor) LoadImageSmart(ctx context.Context, source string) (image.Image, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.LoadImageFromURL(ctx, source)
	}
	return p.LoadImage(source)
}

func (p *Processor) decodeImageFromBytes(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, ErrUnknownFormat
}

// SaveImage encodes img into path. The file appears only once it is fully
// written, so a failed encode never leaves a partial output behind.
func (p *Processor) SaveImage(ctx context.Context, img image.Image, path string, format Format, opts EncodeOptions) error {
	if format == FormatAVIF {
		return p.EncodeAVIF(ctx, img, path, opts)
	}
	return writeAtomic(path, func(w io.Writer) error {
		return encode(w, img, format, opts)
	})
}

func encode(w io.Writer, img image.Image, format Format, opts EncodeOptions) error {
	switch format {
	case FormatPNG:
		return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(opts.CompressionLevel))
	case FormatJPEG:
		// JPEG has no alpha; keep the stored color instead of a premultiplied one
		img = imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
			c.A = 255
			return c
		})
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(clampQuality(opts.Quality)))
	case FormatWEBP:
		return webp.Encode(w, img, &webp.Options{Lossless: opts.Lossless, Quality: float32(clampQuality(opts.Quality))})
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedOutput, format)
}

// writeAtomic writes through a temp file in the destination directory and
// renames it into place on success
func writeAtomic(path string, fn func(io.Writer) error) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	err = fn(f)
	err = multierr.Append(err, f.Close())
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// DownscaleTo resizes img to exactly w x h when either target dimension is
// smaller than the source; it never enlarges.
func DownscaleTo(img image.Image, w, h int) image.Image {
	if w <= 0 || h <= 0 {
		return img
	}
	b := img.Bounds()
	if w < b.Dx() || h < b.Dy() {
		return imaging.Resize(img, w, h, imaging.Lanczos)
	}
	return img
}

func clampQuality(q int) int {
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}
