// Package pdf decodes barcodes from the raster images embedded in PDF
// documents. Pages are extracted with pdfcpu and each image runs
// through the scan pipeline.
package pdf

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// ExtractPageImages pulls the embedded raster images out of a PDF,
// grouped by 1-based page number. An empty pages string selects the
// whole document; otherwise "1,3" and "2-5" style ranges apply.
func ExtractPageImages(filename, pages string) (map[int][]image.Image, error) {
	selected, err := ParsePageRange(pages)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", pages, err)
	}

	tempDir, err := os.MkdirTemp("", "bargo-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	var selection []string
	for _, n := range selected {
		selection = append(selection, strconv.Itoa(n))
	}

	if err := api.ExtractImagesFile(filename, tempDir, selection, nil); err != nil {
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}

	byPage, err := collectPageImages(tempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted images: %w", err)
	}
	return byPage, nil
}

// PageCount returns the number of pages in the document.
func PageCount(filename string) (int, error) {
	return api.PageCountFile(filename)
}

// collectPageImages loads every page_<n>_* image pdfcpu wrote into dir.
// Files that do not match the extract naming or fail to decode are
// skipped.
func collectPageImages(dir string) (map[int][]image.Image, error) {
	byPage := make(map[int][]image.Image)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		pageNum, err := pageNumberFromName(info.Name())
		if err != nil {
			return nil
		}
		img, err := loadImageFile(path)
		if err != nil || img == nil {
			return nil
		}
		byPage[pageNum] = append(byPage[pageNum], img)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return byPage, nil
}

func loadImageFile(path string) (image.Image, error) {
	file, err := os.Open(path) //nolint:gosec // G304: paths come from our own temp extract dir
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	return img, err
}

// pageNumberFromName reads the page number out of pdfcpu's extract
// naming, page_<num>_image_<idx>.<ext>.
func pageNumberFromName(name string) (int, error) {
	if !strings.HasPrefix(name, "page_") {
		return 0, errors.New("not an extracted page image")
	}
	parts := strings.Split(name, "_")
	if len(parts) < 2 {
		return 0, errors.New("unexpected extract name")
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, errors.New("unexpected page number")
	}
	return n, nil
}

// ParsePageRange expands "1,3,5" and "2-4" style selections into a
// sorted, de-duplicated list of page numbers. Empty input selects all
// pages.
func ParsePageRange(pages string) ([]int, error) {
	if pages == "" {
		return nil, nil
	}

	seen := make(map[int]struct{})
	for _, token := range strings.Split(pages, ",") {
		expanded, err := expandRangeToken(strings.TrimSpace(token))
		if err != nil {
			return nil, err
		}
		for _, n := range expanded {
			seen[n] = struct{}{}
		}
	}

	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

func expandRangeToken(token string) ([]int, error) {
	if token == "" {
		return nil, errors.New("empty page token")
	}
	if !strings.Contains(token, "-") {
		n, err := strconv.Atoi(token)
		if err != nil {
			return nil, fmt.Errorf("invalid page number: %s", token)
		}
		if n < 1 {
			return nil, fmt.Errorf("page numbers start at 1, got %d", n)
		}
		return []int{n}, nil
	}

	bounds := strings.Split(token, "-")
	if len(bounds) != 2 {
		return nil, fmt.Errorf("invalid range format: %s", token)
	}
	start, err := strconv.Atoi(strings.TrimSpace(bounds[0]))
	if err != nil {
		return nil, fmt.Errorf("invalid start page: %s", bounds[0])
	}
	end, err := strconv.Atoi(strings.TrimSpace(bounds[1]))
	if err != nil {
		return nil, fmt.Errorf("invalid end page: %s", bounds[1])
	}
	if start < 1 {
		return nil, fmt.Errorf("page numbers start at 1, got %d", start)
	}
	if start > end {
		return nil, fmt.Errorf("start page %d greater than end page %d", start, end)
	}

	out := make([]int, 0, end-start+1)
	for n := start; n <= end; n++ {
		out = append(out, n)
	}
	return out, nil
}
