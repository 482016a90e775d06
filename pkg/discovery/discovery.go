// Package discovery finds the files a batch run works on.
//
// Compositing works on pairs. Inside a folder named S, a background file
// "S-<CAT>-<rest>.png" pairs with the transparent file "S-<CAT>A-<rest>.png"
// for every category label CAT. Files without a counterpart are skipped
// silently.
package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/menta2k/image-compositor/internal/utils"
	"github.com/menta2k/image-compositor/pkg/types"
)

// DefaultCategories are the category labels used when none are configured
var DefaultCategories = []string{"R", "W", "Y"}

// FindPairs walks every folder below inputRoot (at any depth) and returns the
// matched background/foreground pairs. Output folders mirror the relative
// input path under outputRoot.
func FindPairs(inputRoot, outputRoot string, categories []string) ([]types.Pair, error) {
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	if !utils.DirExists(inputRoot) {
		return nil, fmt.Errorf("input folder %s does not exist", inputRoot)
	}

	var pairs []types.Pair
	err := filepath.WalkDir(inputRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || path == inputRoot {
			return nil
		}

		rel, err := filepath.Rel(inputRoot, path)
		if err != nil {
			return err
		}
		found, err := pairsInFolder(path, filepath.Join(outputRoot, rel), categories)
		if err != nil {
			return err
		}
		pairs = append(pairs, found...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover pairs: %w", err)
	}
	return pairs, nil
}

func pairsInFolder(dir, outDir string, categories []string) ([]types.Pair, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	files := make(map[string]bool, len(entries))
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files[e.Name()] = true
		names = append(names, e.Name())
	}

	folder := filepath.Base(dir)
	var pairs []types.Pair
	for _, cat := range categories {
		bgPrefix := folder + "-" + cat + "-"
		fgPrefix := folder + "-" + cat + "A-"
		for _, name := range names {
			if !strings.HasPrefix(name, bgPrefix) || !strings.HasSuffix(name, ".png") {
				continue
			}
			fg := ForegroundName(name, cat)
			if !files[fg] || !strings.HasPrefix(fg, fgPrefix) {
				continue
			}
			pairs = append(pairs, types.Pair{
				InputDir:   dir,
				OutputDir:  outDir,
				Background: name,
				Foreground: fg,
				Category:   cat,
			})
		}
	}
	return pairs, nil
}

// ForegroundName derives the transparent counterpart's filename from a
// background filename
func ForegroundName(background, category string) string {
	return strings.ReplaceAll(background, "-"+category+"-", "-"+category+"A-")
}

// FindImages lists files under root whose extension is one of exts, sorted
// by path. Subfolders are only visited when recursive is set.
func FindImages(root string, recursive bool, exts ...string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if utils.HasExtension(path, exts...) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list images in %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}
