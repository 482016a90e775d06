package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-compositor/pkg/types"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestFindPairs(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")

	touch(t, filepath.Join(in, "ABC", "ABC-R-001.png"))
	touch(t, filepath.Join(in, "ABC", "ABC-RA-001.png"))
	touch(t, filepath.Join(in, "ABC", "ABC-W-002.png"))
	touch(t, filepath.Join(in, "ABC", "ABC-WA-002.png"))
	// background without a counterpart
	touch(t, filepath.Join(in, "ABC", "ABC-Y-003.png"))
	// wrong extension
	touch(t, filepath.Join(in, "ABC", "ABC-R-004.jpg"))
	touch(t, filepath.Join(in, "ABC", "ABC-RA-004.jpg"))
	// prefix belongs to another folder
	touch(t, filepath.Join(in, "ABC", "XYZ-R-005.png"))
	touch(t, filepath.Join(in, "ABC", "XYZ-RA-005.png"))
	// nested folder
	touch(t, filepath.Join(in, "ABC", "DEF", "DEF-Y-9.png"))
	touch(t, filepath.Join(in, "ABC", "DEF", "DEF-YA-9.png"))
	// files in the root are never paired
	touch(t, filepath.Join(in, "ROOT-R-1.png"))
	touch(t, filepath.Join(in, "ROOT-RA-1.png"))

	pairs, err := FindPairs(in, out, nil)
	require.NoError(t, err)
	require.Len(t, pairs, 3)

	assert.Equal(t, types.Pair{
		InputDir:   filepath.Join(in, "ABC"),
		OutputDir:  filepath.Join(out, "ABC"),
		Background: "ABC-R-001.png",
		Foreground: "ABC-RA-001.png",
		Category:   "R",
	}, pairs[0])
	assert.Equal(t, "ABC-W-002.png", pairs[1].Background)
	assert.Equal(t, "ABC-WA-002.png", pairs[1].Foreground)

	assert.Equal(t, filepath.Join(in, "ABC", "DEF"), pairs[2].InputDir)
	assert.Equal(t, filepath.Join(out, "ABC", "DEF"), pairs[2].OutputDir)
	assert.Equal(t, "Y", pairs[2].Category)
}

func TestFindPairsCustomCategories(t *testing.T) {
	in := t.TempDir()
	touch(t, filepath.Join(in, "S", "S-R-1.png"))
	touch(t, filepath.Join(in, "S", "S-RA-1.png"))
	touch(t, filepath.Join(in, "S", "S-Q-1.png"))
	touch(t, filepath.Join(in, "S", "S-QA-1.png"))

	pairs, err := FindPairs(in, t.TempDir(), []string{"Q"})
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "S-QA-1.png", pairs[0].Foreground)
}

func TestFindPairsMissingRoot(t *testing.T) {
	_, err := FindPairs(filepath.Join(t.TempDir(), "nope"), t.TempDir(), nil)
	assert.Error(t, err)
}

func TestForegroundName(t *testing.T) {
	assert.Equal(t, "S-RA-1.png", ForegroundName("S-R-1.png", "R"))
	assert.Equal(t, "S-WA-x-WA-2.png", ForegroundName("S-W-x-W-2.png", "W"))
}

func TestFindImages(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "b.png"))
	touch(t, filepath.Join(root, "a.PNG"))
	touch(t, filepath.Join(root, "c.txt"))
	touch(t, filepath.Join(root, "sub", "d.png"))

	flat, err := FindImages(root, false, "png")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a.PNG"), filepath.Join(root, "b.png")}, flat)

	deep, err := FindImages(root, true, "png")
	require.NoError(t, err)
	assert.Len(t, deep, 3)
}
