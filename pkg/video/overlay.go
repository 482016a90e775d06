package video

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ErrInvalidPosition is returned for unknown overlay positions
var ErrInvalidPosition = errors.New("invalid position")

// DefaultLogoScale is the logo width as a fraction of the frame width
const DefaultLogoScale = 0.15

// DefaultPadding is the distance in pixels between an overlay and the frame edge
const DefaultPadding = 20

// WatermarkColor is the gray used for watermark text
var WatermarkColor = color.NRGBA{R: 110, G: 110, B: 110, A: 255}

// Position places an overlay inside a frame
type Position string

const (
	TopLeft     Position = "top-left"
	TopRight    Position = "top-right"
	BottomLeft  Position = "bottom-left"
	BottomRight Position = "bottom-right"
	Center      Position = "center"
)

// ParsePosition validates a position name
func ParsePosition(s string) (Position, error) {
	p := Position(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case TopLeft, TopRight, BottomLeft, BottomRight, Center:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPosition, s)
}

// Origin returns the top-left corner of an overlay of the given size placed
// inside frame, padding pixels away from the chosen edges
func (p Position) Origin(frame image.Rectangle, size image.Point, padding int) image.Point {
	w, h := frame.Dx(), frame.Dy()
	var pt image.Point
	switch p {
	case TopRight:
		pt = image.Pt(w-size.X-padding, padding)
	case BottomLeft:
		pt = image.Pt(padding, h-size.Y-padding)
	case BottomRight:
		pt = image.Pt(w-size.X-padding, h-size.Y-padding)
	case Center:
		pt = image.Pt((w-size.X)/2, (h-size.Y)/2)
	default:
		pt = image.Pt(padding, padding)
	}
	return pt.Add(frame.Min)
}

// PrepareLogo resizes logo to scale times frameWidth, keeping its aspect
// ratio. A scale of zero or less uses DefaultLogoScale.
func PrepareLogo(logo image.Image, frameWidth int, scale float64) *image.NRGBA {
	if scale <= 0 {
		scale = DefaultLogoScale
	}
	b := logo.Bounds()
	w := int(float64(frameWidth) * scale)
	if w < 1 || b.Dx() == 0 {
		return image.NewNRGBA(image.Rect(0, 0, 0, 0))
	}
	h := b.Dy() * w / b.Dx()
	if h < 1 {
		h = 1
	}
	return imaging.Resize(logo, w, h, imaging.Box)
}

// OverlayLogo multiply-blends logo onto frame in place. Each covered pixel
// becomes frame*logo/255, mixed back with the original pixel by the logo's
// alpha. Parts of the logo falling outside the frame are dropped.
func OverlayLogo(frame, logo *image.NRGBA, pos Position, padding int) {
	size := logo.Bounds().Size()
	at := pos.Origin(frame.Bounds(), size, padding)
	roi := image.Rectangle{Min: at, Max: at.Add(size)}.Intersect(frame.Bounds())
	if roi.Empty() {
		return
	}

	lb := logo.Bounds()
	for y := roi.Min.Y; y < roi.Max.Y; y++ {
		for x := roi.Min.X; x < roi.Max.X; x++ {
			fi := frame.PixOffset(x, y)
			li := logo.PixOffset(x-at.X+lb.Min.X, y-at.Y+lb.Min.Y)
			a := float64(logo.Pix[li+3]) / 255
			for c := 0; c < 3; c++ {
				bg := float64(frame.Pix[fi+c])
				blended := float64(uint8(bg * float64(logo.Pix[li+c]) / 255))
				frame.Pix[fi+c] = uint8(blended*a + bg*(1-a))
			}
		}
	}
}

// Watermark draws text onto frame in place with WatermarkColor at the given
// opacity. The built-in bitmap face is enlarged so the text spans roughly
// half the frame width.
func Watermark(frame *image.NRGBA, text string, pos Position, padding int, opacity float64) {
	if text == "" || opacity <= 0 {
		return
	}
	if opacity > 1 {
		opacity = 1
	}

	mask := renderText(text)
	tw := mask.Bounds().Dx()
	if tw == 0 {
		return
	}
	scale := frame.Bounds().Dx() / 2 / tw
	if scale < 1 {
		scale = 1
	}
	scaled := imaging.Resize(mask, tw*scale, mask.Bounds().Dy()*scale, imaging.NearestNeighbor)

	at := pos.Origin(frame.Bounds(), scaled.Bounds().Size(), padding)
	src := image.NewUniform(color.NRGBA{
		R: WatermarkColor.R,
		G: WatermarkColor.G,
		B: WatermarkColor.B,
		A: uint8(opacity*255 + 0.5),
	})
	draw.DrawMask(frame, scaled.Bounds().Add(at), src, image.Point{}, scaled, image.Point{}, draw.Over)
}

func renderText(text string) *image.Alpha {
	face := basicfont.Face7x13
	w := font.MeasureString(face, text).Ceil()
	m := face.Metrics()
	h := (m.Ascent + m.Descent).Ceil()
	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	d := &font.Drawer{
		Dst:  mask,
		Src:  image.Opaque,
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: m.Ascent},
	}
	d.DrawString(text)
	return mask
}
