package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/require"
)

// ImageSize represents common barcode image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// QRSize fits a QR symbol comfortably at several module scales.
	QRSize = ImageSize{240, 240}
	// LinearSize is wide enough for Code 128 and EAN-13 bar patterns.
	LinearSize = ImageSize{400, 120}
)

// BarcodeConfig describes a synthetic barcode image. The degradations
// are applied after encoding, in the order the fields are listed.
type BarcodeConfig struct {
	Content  string
	Size     ImageSize
	Margin   int     // white border in pixels around the rendered symbol
	Rotation float64 // degrees counter-clockwise, 0 disables
	Blur     float64 // gaussian sigma, 0 disables
	Noise    float64 // fraction of pixels flipped to salt-and-pepper, 0 disables
	Contrast float64 // percentage for imaging.AdjustContrast, negative flattens
	Invert   bool    // swap dark and light at the end
	Seed     int64   // noise RNG seed, 0 selects a fixed default
}

// DefaultBarcodeConfig returns a clean, easily decodable QR-sized setup.
func DefaultBarcodeConfig() BarcodeConfig {
	return BarcodeConfig{
		Content: "https://example.com/item/42",
		Size:    QRSize,
		Margin:  16,
	}
}

// GenerateQRImage encodes config.Content as a QR code and applies the
// configured degradations.
func GenerateQRImage(config BarcodeConfig) (image.Image, error) {
	matrix, err := qrcode.NewQRCodeWriter().Encode(config.Content,
		gozxing.BarcodeFormat_QR_CODE, config.Size.Width, config.Size.Height, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}

	return Degrade(matrixToImage(matrix, config.Margin), config), nil
}

// GenerateCode128Image encodes config.Content as a Code 128 symbol and
// applies the configured degradations.
func GenerateCode128Image(config BarcodeConfig) (image.Image, error) {
	matrix, err := oned.NewCode128Writer().Encode(config.Content,
		gozxing.BarcodeFormat_CODE_128, config.Size.Width, config.Size.Height, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to encode Code 128: %w", err)
	}

	return Degrade(matrixToImage(matrix, config.Margin), config), nil
}

// GenerateEAN13Image encodes config.Content as an EAN-13 symbol. The
// content must be 12 or 13 digits with a valid check digit.
func GenerateEAN13Image(config BarcodeConfig) (image.Image, error) {
	matrix, err := oned.NewEAN13Writer().Encode(config.Content,
		gozxing.BarcodeFormat_EAN_13, config.Size.Width, config.Size.Height, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to encode EAN-13: %w", err)
	}

	return Degrade(matrixToImage(matrix, config.Margin), config), nil
}

// matrixToImage renders a bit matrix as a grayscale image with a white
// border of margin pixels. Set bits become black modules.
func matrixToImage(matrix *gozxing.BitMatrix, margin int) *image.Gray {
	w := matrix.GetWidth()
	h := matrix.GetHeight()
	img := image.NewGray(image.Rect(0, 0, w+2*margin, h+2*margin))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Gray{Y: 255}), image.Point{}, draw.Src)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if matrix.Get(x, y) {
				img.SetGray(x+margin, y+margin, color.Gray{Y: 0})
			}
		}
	}

	return img
}

// Degrade applies the rotation, blur, noise, contrast and invert
// settings from config to img. A zero config returns img unchanged.
func Degrade(img image.Image, config BarcodeConfig) image.Image {
	out := img
	if config.Rotation != 0 {
		out = imaging.Rotate(out, config.Rotation, color.White)
	}
	if config.Blur > 0 {
		out = imaging.Blur(out, config.Blur)
	}
	if config.Noise > 0 {
		out = addNoise(out, config.Noise, config.Seed)
	}
	if config.Contrast != 0 {
		out = imaging.AdjustContrast(out, config.Contrast)
	}
	if config.Invert {
		out = imaging.Invert(out)
	}
	return out
}

// addNoise flips a fraction of pixels to salt-and-pepper values. The
// seed keeps generated fixtures reproducible across runs.
func addNoise(img image.Image, level float64, seed int64) *image.NRGBA {
	if seed == 0 {
		seed = 1
	}
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // G404: Deterministic noise for test fixtures

	out := imaging.Clone(img)
	bounds := out.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if rng.Float64() >= level {
				continue
			}
			v := uint8(0)
			if rng.Intn(2) == 0 {
				v = 255
			}
			out.Set(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}

	return out
}

// CreateTestImage creates a uniform image with the specified dimensions
// and color. Useful as a no-barcode input.
func CreateTestImage(width, height int, backgroundColor color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{backgroundColor}, image.Point{}, draw.Src)
	return img
}

// SaveImage saves an image as PNG to the specified path.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	dir := filepath.Dir(path)
	require.NoError(t, EnsureDir(dir), "Failed to create directory %s", dir)

	file, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	require.NoError(t, err, "Failed to create file %s", path)
	defer func() {
		require.NoError(t, file.Close())
	}()

	err = png.Encode(file, img)
	require.NoError(t, err, "Failed to encode PNG image")
}

// LoadImage loads an image from the specified path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	file, err := os.Open(path) //nolint:gosec // G304: Test file reading with controlled path
	require.NoError(t, err, "Failed to open image file %s", path)
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	require.NoError(t, err, "Failed to decode image")

	return img
}

// EncodePNG encodes img to PNG bytes, for request bodies in handler
// tests.
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img), "Failed to encode PNG image")
	return buf.Bytes()
}

// barcodeSample describes one entry of the standard test image set.
type barcodeSample struct {
	category string
	name     string
	generate func(BarcodeConfig) (image.Image, error)
	config   BarcodeConfig
}

// standardSamples returns the test images GenerateBarcodeImages writes.
// The clean set decodes with any backend; the degraded and rotated sets
// exercise the preprocessing variants.
func standardSamples() []barcodeSample {
	qr := DefaultBarcodeConfig()

	code128 := DefaultBarcodeConfig()
	code128.Content = "BARGO-128-TEST"
	code128.Size = LinearSize

	ean13 := DefaultBarcodeConfig()
	ean13.Content = "5901234123457"
	ean13.Size = LinearSize

	withQR := func(modify func(*BarcodeConfig)) BarcodeConfig {
		c := qr
		modify(&c)
		return c
	}

	return []barcodeSample{
		{"clean", "qr_url.png", GenerateQRImage, qr},
		{"clean", "code128_plain.png", GenerateCode128Image, code128},
		{"clean", "ean13_retail.png", GenerateEAN13Image, ean13},
		{"degraded", "qr_blur.png", GenerateQRImage, withQR(func(c *BarcodeConfig) { c.Blur = 1.2 })},
		{"degraded", "qr_noise.png", GenerateQRImage, withQR(func(c *BarcodeConfig) { c.Noise = 0.02 })},
		{"degraded", "qr_lowcontrast.png", GenerateQRImage, withQR(func(c *BarcodeConfig) { c.Contrast = -60 })},
		{"degraded", "qr_inverted.png", GenerateQRImage, withQR(func(c *BarcodeConfig) { c.Invert = true })},
		{"rotated", "qr_rot15.png", GenerateQRImage, withQR(func(c *BarcodeConfig) { c.Rotation = 15 })},
		{"rotated", "qr_rot45.png", GenerateQRImage, withQR(func(c *BarcodeConfig) { c.Rotation = 45 })},
		{"rotated", "qr_rot90.png", GenerateQRImage, withQR(func(c *BarcodeConfig) { c.Rotation = 90 })},
	}
}

// GenerateBarcodeImages creates the standard barcode test images under
// testdata/images.
func GenerateBarcodeImages(t *testing.T) {
	t.Helper()

	for _, sample := range standardSamples() {
		dir := GetTestImageDir(t, sample.category)
		require.NoError(t, EnsureDir(dir))

		img, err := sample.generate(sample.config)
		require.NoError(t, err, "Failed to generate test image %s", sample.name)

		SaveImage(t, img, filepath.Join(dir, sample.name))
	}
}
