package utils

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsSupportedImage(t *testing.T) {
	cases := []struct {
		path string
		ok   bool
	}{
		{"a.jpg", true},
		{"b.jpeg", true},
		{"c.png", true},
		{"d.bmp", true},
		{"e.tiff", true},
		{"f.gif", true},
		{"g.webp", false},
		{"h.txt", false},
	}
	for _, c := range cases {
		if IsSupportedImage(c.path) != c.ok {
			t.Fatalf("IsSupportedImage(%s) expected %v", c.path, c.ok)
		}
	}
}

func writeTempPNG(t *testing.T, dir string, w, h int, col color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, col)
		}
	}
	path := filepath.Join(dir, "test.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer func() {
		require.NoError(t, f.Close())
	}()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return path
}

func TestLoadImageAndMetadata(t *testing.T) {
	dir := t.TempDir()
	p := writeTempPNG(t, dir, 10, 20, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	img, meta, err := LoadImage(p)
	if err != nil {
		t.Fatalf("LoadImage error: %v", err)
	}
	if img == nil {
		t.Fatalf("nil image")
	}
	if meta.Format != "png" {
		t.Fatalf("expected format png, got %s", meta.Format)
	}
	if meta.Width != 10 || meta.Height != 20 {
		t.Fatalf("unexpected dims: %dx%d", meta.Width, meta.Height)
	}
	if meta.SizeBytes <= 0 {
		t.Fatalf("expected SizeBytes > 0")
	}
}

func TestLoadImageMissingFile(t *testing.T) {
	_, _, err := LoadImage(filepath.Join(t.TempDir(), "nope.png"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
	var perr *ImageProcessingError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ImageProcessingError, got %T", err)
	}
	if perr.Operation != "load" {
		t.Fatalf("expected load operation, got %s", perr.Operation)
	}
}

func TestSaveImageRoundTrip(t *testing.T) {
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 12, 8))
	out := filepath.Join(dir, "sub", "out.png")
	require.NoError(t, SaveImage(img, out))

	loaded, meta, err := LoadImage(out)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, 12, meta.Width)
	require.Equal(t, 8, meta.Height)
}

func TestValidateImageConstraints(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	cons := ImageConstraints{MaxWidth: 1024, MaxHeight: 1024, MinWidth: 32, MinHeight: 32}
	if err := ValidateImageConstraints(img, cons); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cons.MinWidth = 128
	if err := ValidateImageConstraints(img, cons); err == nil {
		t.Fatalf("expected error for too small image")
	}
}

func TestResizeImageScalesDownOnly(t *testing.T) {
	base := image.NewRGBA(image.Rect(0, 0, 300, 200))
	cons := ImageConstraints{MaxWidth: 100, MaxHeight: 100, MinWidth: 16, MinHeight: 16}
	resized, err := ResizeImage(base, cons)
	if err != nil {
		t.Fatalf("ResizeImage error: %v", err)
	}
	b := resized.Bounds()
	if b.Dx() > 100 || b.Dy() > 100 {
		t.Fatalf("dimensions exceed constraints: %dx%d", b.Dx(), b.Dy())
	}

	// Already within bounds: unchanged.
	small := image.NewRGBA(image.Rect(0, 0, 40, 30))
	same, err := ResizeImage(small, cons)
	require.NoError(t, err)
	if same.Bounds().Dx() != 40 || same.Bounds().Dy() != 30 {
		t.Fatalf("expected no upscale, got %dx%d", same.Bounds().Dx(), same.Bounds().Dy())
	}
}

func TestBoundingBoxAndScale(t *testing.T) {
	pts := []Point{{0, 0}, {10, 5}, {3, 7}}
	box := BoundingBox(pts)
	if box.MinX != 0 || box.MinY != 0 || box.MaxX != 10 || box.MaxY != 7 {
		t.Fatalf("unexpected box: %+v", box)
	}
	s := ScalePoints(pts, 2, 3)
	if s[1].X != 20 || s[1].Y != 15 {
		t.Fatalf("scale mismatch: %+v", s[1])
	}
	// Mapping coordinates from a 2x variant back to source space.
	back := ScalePoints(s, 0.5, 1.0/3.0)
	if back[1].X != 10 || back[1].Y != 5 {
		t.Fatalf("inverse scale mismatch: %+v", back[1])
	}
}

func TestCropImageRect(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for y := range 4 {
		for x := range 8 {
			img.Set(x, y, color.RGBA{255, 0, 0, 255})
		}
	}
	cropped := CropImageRect(img, image.Rect(2, 1, 6, 3))
	if cropped.Bounds().Dx() != 4 || cropped.Bounds().Dy() != 2 {
		t.Fatalf("unexpected crop dims: %dx%d", cropped.Bounds().Dx(), cropped.Bounds().Dy())
	}
	empty := CropImageRect(img, image.Rect(20, 20, 30, 30))
	if !empty.Bounds().Empty() {
		t.Fatalf("expected empty crop for out-of-bounds rect")
	}
}

func TestDrawRectAndPolygon(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 10))
	rect := image.Rect(2, 2, 10, 8)
	DrawRect(img, rect, color.RGBA{0, 255, 0, 255}, 1)
	// Expect corners painted
	if img.RGBAAt(2, 2) == (color.RGBA{}) {
		t.Fatalf("expected top-left pixel colored")
	}
	poly := []Point{{12, 2}, {18, 2}, {18, 8}, {12, 8}}
	DrawPolygon(img, poly, color.RGBA{0, 0, 255, 255}, 1)
	if img.RGBAAt(12, 2) == (color.RGBA{}) {
		t.Fatalf("expected polygon pixel colored")
	}
	// Closing edge from last back to first vertex.
	if img.RGBAAt(12, 5) == (color.RGBA{}) {
		t.Fatalf("expected closing edge pixel colored")
	}
}

func TestDrawLabel(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 30))
	DrawLabel(img, "QR", image.Pt(2, 15), color.RGBA{255, 0, 0, 255})
	found := false
	for y := range 30 {
		for x := range 100 {
			if img.RGBAAt(x, y).R == 255 {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected label pixels drawn")
	}

	// Label anchored above the top edge is pushed inside the image.
	img2 := image.NewRGBA(image.Rect(0, 0, 100, 30))
	DrawLabel(img2, "PDF417", image.Pt(2, -5), color.RGBA{255, 0, 0, 255})
	found = false
	for y := range 30 {
		for x := range 100 {
			if img2.RGBAAt(x, y).R == 255 {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected clamped label pixels drawn")
	}
}
