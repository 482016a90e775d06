package processing

import (
	"context"
	"image"
	"image/color"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestImage creates a half-transparent gradient
func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			a := uint8(255)
			if x < width/2 {
				a = 0
			}
			img.SetNRGBA(x, y, color.NRGBA{uint8((x * 255) / width), uint8((y * 255) / height), 128, a})
		}
	}
	return img
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{
		"png":   FormatPNG,
		"JPG":   FormatJPEG,
		"jpeg":  FormatJPEG,
		".webp": FormatWEBP,
		"AVIF":  FormatAVIF,
	}
	for in, want := range cases {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("gif")
	assert.ErrorIs(t, err, ErrUnsupportedOutput)
}

func TestSaveAndLoadPNG(t *testing.T) {
	p := NewProcessor(nil)
	dir := t.TempDir()
	path := filepath.Join(dir, "out.png")

	src := createTestImage(40, 30)
	require.NoError(t, p.SaveImage(context.Background(), src, path, FormatPNG, EncodeOptions{}))

	img, err := p.LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 30), img.Bounds())

	_, _, _, a := img.At(5, 5).RGBA()
	assert.Equal(t, uint32(0), a, "alpha channel must survive a PNG round trip")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestSaveJPEGAndWEBP(t *testing.T) {
	p := NewProcessor(nil)
	dir := t.TempDir()
	src := createTestImage(32, 32)

	for _, f := range []Format{FormatJPEG, FormatWEBP} {
		path := filepath.Join(dir, "out."+f.Ext())
		require.NoError(t, p.SaveImage(context.Background(), src, path, f, EncodeOptions{Quality: 80}))

		img, err := p.LoadImage(path)
		require.NoError(t, err, f)
		assert.Equal(t, 32, img.Bounds().Dx())
	}
}

func TestSaveJPEGDropsAlphaWithoutDarkening(t *testing.T) {
	p := NewProcessor(nil)
	path := filepath.Join(t.TempDir(), "half.jpeg")
	src := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			src.SetNRGBA(x, y, color.NRGBA{200, 100, 50, 128})
		}
	}

	require.NoError(t, p.SaveImage(context.Background(), src, path, FormatJPEG, EncodeOptions{Quality: 95}))

	img, err := p.LoadImage(path)
	require.NoError(t, err)
	got := color.NRGBAModel.Convert(img.At(8, 8)).(color.NRGBA)
	assert.InDelta(t, 200, int(got.R), 8)
	assert.InDelta(t, 100, int(got.G), 8)
	assert.InDelta(t, 50, int(got.B), 8)
	assert.Equal(t, uint8(255), got.A)
}

func TestLoadCorruptImage(t *testing.T) {
	p := NewProcessor(nil)
	path := filepath.Join(t.TempDir(), "broken.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image at all"), 0o644))

	_, err := p.LoadImage(path)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestLoadMissingImage(t *testing.T) {
	p := NewProcessor(nil)
	_, err := p.LoadImage(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestSaveUnsupportedFormatLeavesNothing(t *testing.T) {
	p := NewProcessor(nil)
	dir := t.TempDir()

	err := p.SaveImage(context.Background(), createTestImage(4, 4), filepath.Join(dir, "x.gif"), Format("gif"), EncodeOptions{})
	assert.ErrorIs(t, err, ErrUnsupportedOutput)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownscaleTo(t *testing.T) {
	src := createTestImage(100, 80)

	assert.Same(t, image.Image(src), DownscaleTo(src, 0, 0))
	assert.Same(t, image.Image(src), DownscaleTo(src, 200, 200))

	out := DownscaleTo(src, 50, 200)
	assert.Equal(t, image.Rect(0, 0, 50, 200), out.Bounds())
}

func TestEncodeAVIF(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH, skipping test")
	}
	p := NewProcessor(nil)
	dir := t.TempDir()
	path := filepath.Join(dir, "out.avif")

	err := p.SaveImage(context.Background(), createTestImage(64, 64), path, FormatAVIF, EncodeOptions{Quality: 60, Speed: 8})
	if err != nil {
		t.Skipf("ffmpeg lacks AVIF support: %v", err)
	}

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestEncodeAVIFCancelled(t *testing.T) {
	p := NewProcessor(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.EncodeAVIF(ctx, createTestImage(4, 4), filepath.Join(t.TempDir(), "x.avif"), EncodeOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}
