package video

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
)

// ErrInvalidResolution is returned for resolutions that are neither a known
// name nor WxH
var ErrInvalidResolution = errors.New("invalid resolution")

// Resolution is an output frame size in pixels
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

var namedResolutions = map[string]Resolution{
	"720p":  {Width: 1280, Height: 720},
	"1080p": {Width: 1920, Height: 1080},
	"4k":    {Width: 3840, Height: 2160},
	"8k":    {Width: 7680, Height: 4320},
}

// ParseResolution accepts 720p, 1080p, 4k, 8k or a custom size written as
// WxH or W*H
func ParseResolution(s string) (Resolution, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if r, ok := namedResolutions[key]; ok {
		return r, nil
	}

	parts := strings.Split(strings.ReplaceAll(key, "*", "x"), "x")
	if len(parts) != 2 {
		return Resolution{}, fmt.Errorf("%w: %q (use 720p, 1080p, 4k, 8k or WxH)", ErrInvalidResolution, s)
	}
	w, errW := strconv.Atoi(parts[0])
	h, errH := strconv.Atoi(parts[1])
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return Resolution{}, fmt.Errorf("%w: %q (use 720p, 1080p, 4k, 8k or WxH)", ErrInvalidResolution, s)
	}
	return Resolution{Width: w, Height: h}, nil
}

// IsZero reports whether no size was set
func (r Resolution) IsZero() bool {
	return r.Width == 0 && r.Height == 0
}

// Point returns the size as an image.Point
func (r Resolution) Point() image.Point {
	return image.Pt(r.Width, r.Height)
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}
