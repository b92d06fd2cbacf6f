package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/bargo/internal/testutil"
)

func main() {
	// Set up structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		generateImages   = flag.Bool("images", true, "Generate synthetic barcode images")
		generateFixtures = flag.Bool("fixtures", true, "Generate decode fixtures")
		verbose          = flag.Bool("v", false, "Verbose output")
		help             = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate test data for bargo testing.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                 # Generate all test data\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -images         # Generate only images\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -fixtures       # Generate only fixtures\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	slog.Info("Starting test data generation...")

	if *verbose {
		slog.Info("Options", "images", *generateImages, "fixtures", *generateFixtures)
	}

	// Get project root to ensure we're in the right place
	root, err := testutil.GetProjectRoot()
	if err != nil {
		slog.Error("Failed to find project root", "error", err)
		os.Exit(1)
	}

	if *verbose {
		slog.Info("Project root", "path", root)
	}

	// Change to project root
	if err := os.Chdir(root); err != nil {
		slog.Error("Failed to change to project root", "error", err)
		os.Exit(1)
	}

	if *generateImages {
		slog.Info("Generating synthetic barcode images...")

		if err := generateBarcodeImages(); err != nil {
			slog.Error("Failed to generate barcode images", "error", err)
			os.Exit(1)
		}

		slog.Info("✓ Generated synthetic barcode images")
	}

	if *generateFixtures {
		slog.Info("Generating decode fixtures...")

		if err := generateDecodeFixtures(); err != nil {
			slog.Error("Failed to generate decode fixtures", "error", err)
			os.Exit(1)
		}

		slog.Info("✓ Generated decode fixtures")
	}

	slog.Info("Test data generation completed successfully!")
}

// imageSample describes one synthesized test image.
type imageSample struct {
	category string
	name     string
	generate func(testutil.BarcodeConfig) (image.Image, error)
	config   testutil.BarcodeConfig
}

// imageSamples lists the standard test image set. The clean symbols
// decode with any backend; the degraded and rotated sets exercise the
// preprocessing variants.
func imageSamples() []imageSample {
	qr := testutil.DefaultBarcodeConfig()

	code128 := testutil.DefaultBarcodeConfig()
	code128.Content = "BARGO-128-TEST"
	code128.Size = testutil.LinearSize

	ean13 := testutil.DefaultBarcodeConfig()
	ean13.Content = "5901234123457"
	ean13.Size = testutil.LinearSize

	withQR := func(modify func(*testutil.BarcodeConfig)) testutil.BarcodeConfig {
		c := qr
		modify(&c)
		return c
	}

	return []imageSample{
		{"clean", "qr_url.png", testutil.GenerateQRImage, qr},
		{"clean", "code128_plain.png", testutil.GenerateCode128Image, code128},
		{"clean", "ean13_retail.png", testutil.GenerateEAN13Image, ean13},
		{"degraded", "qr_blur.png", testutil.GenerateQRImage,
			withQR(func(c *testutil.BarcodeConfig) { c.Blur = 1.2 })},
		{"degraded", "qr_noise.png", testutil.GenerateQRImage,
			withQR(func(c *testutil.BarcodeConfig) { c.Noise = 0.02 })},
		{"degraded", "qr_lowcontrast.png", testutil.GenerateQRImage,
			withQR(func(c *testutil.BarcodeConfig) { c.Contrast = -60 })},
		{"degraded", "qr_inverted.png", testutil.GenerateQRImage,
			withQR(func(c *testutil.BarcodeConfig) { c.Invert = true })},
		{"rotated", "qr_rot15.png", testutil.GenerateQRImage,
			withQR(func(c *testutil.BarcodeConfig) { c.Rotation = 15 })},
		{"rotated", "qr_rot45.png", testutil.GenerateQRImage,
			withQR(func(c *testutil.BarcodeConfig) { c.Rotation = 45 })},
		{"rotated", "qr_rot90.png", testutil.GenerateQRImage,
			withQR(func(c *testutil.BarcodeConfig) { c.Rotation = 90 })},
	}
}

// generateBarcodeImages writes the standard test image set under
// testdata/images.
func generateBarcodeImages() error {
	for _, sample := range imageSamples() {
		dir := filepath.Join("testdata", "images", sample.category)
		if err := testutil.EnsureDir(dir); err != nil {
			return fmt.Errorf("failed to create %s images directory: %w", sample.category, err)
		}

		img, err := sample.generate(sample.config)
		if err != nil {
			return fmt.Errorf("failed to generate image '%s': %w", sample.name, err)
		}

		imagePath := filepath.Join(dir, sample.name)
		file, err := os.Create(imagePath) //nolint:gosec // G304: Test data generation uses controlled paths
		if err != nil {
			return fmt.Errorf("failed to create image file: %w", err)
		}

		if err := saveImageToFile(img, file); err != nil {
			_ = file.Close() // gosec: ignore error on cleanup
			return fmt.Errorf("failed to save image '%s': %w", sample.name, err)
		}
		if err := file.Close(); err != nil {
			return fmt.Errorf("failed to close file: %w", err)
		}
	}

	return nil
}

// generateDecodeFixtures writes the fixture JSON files matching the
// standard image set.
func generateDecodeFixtures() error {
	fixturesDir := filepath.Join("testdata", "fixtures")
	if err := testutil.EnsureDir(fixturesDir); err != nil {
		return fmt.Errorf("failed to create fixtures directory: %w", err)
	}

	for _, fixture := range testutil.SampleFixtures() {
		if err := saveFixture(fixture, fixturesDir); err != nil {
			return fmt.Errorf("failed to save fixture '%s': %w", fixture.Name, err)
		}
	}

	return nil
}

// Helper functions that don't require testing.T

func saveImageToFile(img image.Image, file *os.File) error {
	return png.Encode(file, img)
}

func saveFixture(fixture testutil.TestFixture, dir string) error {
	data, err := json.MarshalIndent(fixture, "", "  ")
	if err != nil {
		return err
	}

	filename := filepath.Join(dir, fixture.Name+".json")
	return os.WriteFile(filename, data, 0o600)
}
