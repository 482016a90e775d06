package compositor

import (
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/image-compositor/pkg/types"
)

// BoundingBox returns the smallest rectangle containing every pixel whose
// alpha is above threshold. The second return value is false when no pixel
// qualifies (a fully transparent image).
func BoundingBox(img image.Image, threshold uint8) (image.Rectangle, bool) {
	src := toNRGBA(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()

	minX, minY, maxX, maxY := w, h, -1, -1
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		for x := 0; x < w; x++ {
			if row[x*4+3] <= threshold {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}

	if maxX < 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

// Centroid returns the midpoint of the non-transparent bounding box. For a
// fully transparent image it returns the canvas center and false.
func Centroid(img image.Image, threshold uint8) (image.Point, bool) {
	box, ok := BoundingBox(img, threshold)
	if !ok {
		b := img.Bounds()
		return image.Pt(b.Dx()/2, b.Dy()/2), false
	}
	return image.Pt((box.Min.X+box.Max.X)/2, (box.Min.Y+box.Max.Y)/2), true
}

// ZoomFactor returns the largest uniform scale that fits the subject's
// bounding box inside the canvas minus margins. It is exactly 1.0 when
// margins are disabled or the image has no visible pixels.
func ZoomFactor(fg image.Image, canvas image.Point, margins types.Margins, applyMargins bool, threshold uint8) float64 {
	if !applyMargins {
		return 1.0
	}
	box, ok := BoundingBox(fg, threshold)
	if !ok {
		return 1.0
	}

	availW := float64(canvas.X - margins.Horizontal())
	availH := float64(canvas.Y - margins.Vertical())
	return math.Min(availW/float64(box.Dx()), availH/float64(box.Dy()))
}

// Scale resizes img by factor. A factor of exactly 1.0 returns img itself.
// Shrinking uses an area-averaging filter, enlarging uses Lanczos.
func Scale(img image.Image, factor float64) image.Image {
	if factor == 1.0 {
		return img
	}

	b := img.Bounds()
	w := int(math.Round(float64(b.Dx()) * factor))
	h := int(math.Round(float64(b.Dy()) * factor))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	filter := imaging.Lanczos
	if factor < 1.0 {
		filter = imaging.Box
	}
	return imaging.Resize(img, w, h, filter)
}

// CenterOffset returns the translation that puts centroid at the center of
// the canvas interior left by margins.
func CenterOffset(centroid, canvas image.Point, margins types.Margins) types.Offset {
	return types.Offset{
		DX: floorDiv(canvas.X-margins.Horizontal(), 2) - centroid.X + margins.Left,
		DY: floorDiv(canvas.Y-margins.Vertical(), 2) - centroid.Y + margins.Top,
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	return imaging.Clone(img)
}
