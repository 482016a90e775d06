package types

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNegativeMargin is returned when any margin is below zero
var ErrNegativeMargin = errors.New("margins must be non-negative")

// ErrInvalidColor is returned when a fill color cannot be parsed
var ErrInvalidColor = errors.New("invalid RGB color")

// Margins are pixel insets from each canvas edge
type Margins struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
	Right  int `json:"right"`
}

// Validate checks that no margin is negative
func (m Margins) Validate() error {
	if m.Top < 0 || m.Bottom < 0 || m.Left < 0 || m.Right < 0 {
		return fmt.Errorf("%w: top=%d bottom=%d left=%d right=%d", ErrNegativeMargin, m.Top, m.Bottom, m.Left, m.Right)
	}
	return nil
}

// Horizontal returns left+right
func (m Margins) Horizontal() int { return m.Left + m.Right }

// Vertical returns top+bottom
func (m Margins) Vertical() int { return m.Top + m.Bottom }

// Offset is the translation applied when pasting onto the output canvas
type Offset struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
}

// RGB is an opaque fill color
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// DefaultFill is the blue canvas used when no fill color is configured
var DefaultFill = RGB{R: 0, G: 0, B: 255}

// String formats the color as "R,G,B"
func (c RGB) String() string {
	return fmt.Sprintf("%d,%d,%d", c.R, c.G, c.B)
}

// ParseRGB parses "R,G,B" with each channel in 0..255
func ParseRGB(s string) (RGB, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return RGB{}, fmt.Errorf("%w: %q (want R,G,B)", ErrInvalidColor, s)
	}
	var ch [3]uint8
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 || v > 255 {
			return RGB{}, fmt.Errorf("%w: %q (channel %d out of range)", ErrInvalidColor, s, i)
		}
		ch[i] = uint8(v)
	}
	return RGB{R: ch[0], G: ch[1], B: ch[2]}, nil
}

// Pair is one background image and its transparent counterpart
type Pair struct {
	InputDir   string `json:"input_dir"`
	OutputDir  string `json:"output_dir"`
	Background string `json:"background"`
	Foreground string `json:"foreground"`
	Category   string `json:"category"`
}

// ID identifies the pair in log lines
func (p Pair) ID() string {
	return fmt.Sprintf("%s [%s + %s]", p.InputDir, p.Background, p.Foreground)
}

// BackgroundPath returns the input path of the background file
func (p Pair) BackgroundPath() string { return filepath.Join(p.InputDir, p.Background) }

// ForegroundPath returns the input path of the transparent file
func (p Pair) ForegroundPath() string { return filepath.Join(p.InputDir, p.Foreground) }

// Status is the outcome of one unit of batch work
type Status string

const (
	StatusProcessed Status = "processed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Result is reported once per unit of batch work
type Result struct {
	Name   string  `json:"name"`
	Output string  `json:"output,omitempty"`
	Status Status  `json:"status"`
	Zoom   float64 `json:"zoom,omitempty"`
	Offset Offset  `json:"offset"`
	Err    error   `json:"-"`
}

// Summary counts results by status
type Summary struct {
	Processed int
	Skipped   int
	Failed    int
}

// Summarize tallies results
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch r.Status {
		case StatusProcessed:
			s.Processed++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}
