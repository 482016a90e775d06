package compositor

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/menta2k/image-compositor/pkg/types"
)

// ErrSubjectDoesNotFit is returned when the margins leave no room on the canvas
var ErrSubjectDoesNotFit = errors.New("margins leave no room for the subject")

// Options controls centering, zoom and background colorizing
type Options struct {
	Margins        types.Margins
	ApplyMargins   bool
	Fill           types.RGB
	AlphaThreshold uint8
}

// Compositor centers a transparent subject and flattens it onto its aligned background
type Compositor struct {
	opts   Options
	logger *zap.Logger
}

// Output holds both artifacts of one pair plus the geometry used to build them
type Output struct {
	Centered  *image.NRGBA
	Composite *image.NRGBA
	Zoom      float64
	Offset    types.Offset
	Canvas    image.Point
}

// New creates a Compositor with no margins and the default blue fill
func New(logger *zap.Logger) *Compositor {
	return NewWithConfig(Options{Fill: types.DefaultFill}, logger)
}

// NewWithConfig creates a Compositor with custom options
func NewWithConfig(opts Options, logger *zap.Logger) *Compositor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compositor{opts: opts, logger: logger}
}

// Options returns the compositor configuration
func (c *Compositor) Options() Options {
	return c.opts
}

// Run zooms, centers, aligns and composites one background/foreground pair.
// The canvas is the foreground's original size.
func (c *Compositor) Run(bg, fg image.Image) (Output, error) {
	fb := fg.Bounds()
	canvas := image.Pt(fb.Dx(), fb.Dy())
	if canvas.X == 0 || canvas.Y == 0 {
		return Output{}, fmt.Errorf("invalid foreground dimensions %dx%d", canvas.X, canvas.Y)
	}

	zoom := ZoomFactor(fg, canvas, c.opts.Margins, c.opts.ApplyMargins, c.opts.AlphaThreshold)
	if zoom <= 0 || math.IsInf(zoom, 0) || math.IsNaN(zoom) {
		return Output{}, fmt.Errorf("%w: zoom factor %v", ErrSubjectDoesNotFit, zoom)
	}

	bgScaled := Scale(bg, zoom)
	fgScaled := Scale(fg, zoom)

	centered, offset := c.Center(fgScaled, canvas)
	aligned := AlignBackground(bgScaled, offset, canvas, c.opts.Fill)
	final := Compose(aligned, centered)

	c.logger.Debug("pair composited",
		zap.Float64("zoom", zoom),
		zap.Int("dx", offset.DX),
		zap.Int("dy", offset.DY),
		zap.Bool("margins", c.opts.ApplyMargins),
	)

	return Output{
		Centered:  centered,
		Composite: final,
		Zoom:      zoom,
		Offset:    offset,
		Canvas:    canvas,
	}, nil
}

// Center pastes fg onto a transparent canvas so that its subject's centroid
// sits at the (margin-adjusted) canvas center. The returned offset must be
// reused for the background so both outputs stay registered.
func (c *Compositor) Center(fg image.Image, canvas image.Point) (*image.NRGBA, types.Offset) {
	centroid, ok := Centroid(fg, c.opts.AlphaThreshold)
	if !ok {
		c.logger.Warn("no non-transparent pixels found, using the image center",
			zap.Int("cx", centroid.X), zap.Int("cy", centroid.Y))
	}

	margins := c.opts.Margins
	if !c.opts.ApplyMargins {
		margins = types.Margins{}
	}
	offset := CenterOffset(centroid, canvas, margins)

	out := image.NewNRGBA(image.Rect(0, 0, canvas.X, canvas.Y))
	pasteMasked(out, fg, image.Pt(offset.DX, offset.DY))
	return out, offset
}

// pasteMasked pastes src into dst at the given point using src's own alpha as
// the mask. Every channel, alpha included, becomes dst*(255-m)/255 + src*m/255.
func pasteMasked(dst *image.NRGBA, src image.Image, at image.Point) {
	s := toNRGBA(src)
	r := image.Rectangle{Min: at, Max: at.Add(s.Rect.Size())}.Intersect(dst.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			si := s.PixOffset(s.Rect.Min.X+x-at.X, s.Rect.Min.Y+y-at.Y)
			di := dst.PixOffset(x, y)
			m := s.Pix[si+3]
			for ch := 0; ch < 4; ch++ {
				dst.Pix[di+ch] = blend(dst.Pix[di+ch], s.Pix[si+ch], m)
			}
		}
	}
}

// blend mixes a and b by mask m with the same rounding as multiply.
func blend(a, b, m uint8) uint8 {
	t := uint32(a)*uint32(255-m) + uint32(b)*uint32(m) + 128
	return uint8(((t >> 8) + t) >> 8)
}

// AlignBackground pastes bg opaquely at offset on a fill-colored canvas and
// multiplies the result with the same fill color.
func AlignBackground(bg image.Image, offset types.Offset, canvas image.Point, fill types.RGB) *image.NRGBA {
	fillColor := color.NRGBA{R: fill.R, G: fill.G, B: fill.B, A: 255}
	out := imaging.New(canvas.X, canvas.Y, fillColor)

	opaque := imaging.AdjustFunc(bg, func(c color.NRGBA) color.NRGBA {
		c.A = 255
		return c
	})
	out = imaging.Paste(out, opaque, image.Pt(offset.DX, offset.DY))

	return imaging.AdjustFunc(out, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: multiply(c.R, fill.R),
			G: multiply(c.G, fill.G),
			B: multiply(c.B, fill.B),
			A: 255,
		}
	})
}

// Compose draws fg over bg using source-over blending. bg must be opaque.
func Compose(bg, fg image.Image) *image.NRGBA {
	out := imaging.Clone(bg)
	draw.Draw(out, out.Bounds(), fg, fg.Bounds().Min, draw.Over)
	return out
}

// multiply is a*b/255 rounded to nearest
func multiply(a, b uint8) uint8 {
	t := uint32(a)*uint32(b) + 128
	return uint8(((t >> 8) + t) >> 8)
}
