package support

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/bargo/internal/testutil"
)

// writeTempImage encodes an image as PNG under the scenario temp
// directory. Scenario commands reach it through the {tmp} placeholder.
func (testCtx *TestContext) writeTempImage(name string, img image.Image) error {
	path := testCtx.tempPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create image directory: %w", err)
	}

	f, err := os.Create(path) //nolint:gosec // G304: Test image creation with controlled path
	if err != nil {
		return fmt.Errorf("failed to create image file %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode image %s: %w", path, err)
	}
	return f.Close()
}

// aCleanQRImageEncoding generates a QR symbol fixture.
func (testCtx *TestContext) aCleanQRImageEncoding(name, payload string) error {
	config := testutil.DefaultBarcodeConfig()
	config.Content = payload
	img, err := testutil.GenerateQRImage(config)
	if err != nil {
		return fmt.Errorf("failed to generate QR image: %w", err)
	}
	return testCtx.writeTempImage(name, img)
}

// aCleanCode128ImageEncoding generates a Code 128 symbol fixture.
func (testCtx *TestContext) aCleanCode128ImageEncoding(name, payload string) error {
	config := testutil.DefaultBarcodeConfig()
	config.Content = payload
	config.Size = testutil.LinearSize
	img, err := testutil.GenerateCode128Image(config)
	if err != nil {
		return fmt.Errorf("failed to generate Code 128 image: %w", err)
	}
	return testCtx.writeTempImage(name, img)
}

// aCleanEAN13ImageEncoding generates an EAN-13 symbol fixture. The
// payload must be thirteen digits with a valid check digit.
func (testCtx *TestContext) aCleanEAN13ImageEncoding(name, payload string) error {
	config := testutil.DefaultBarcodeConfig()
	config.Content = payload
	config.Size = testutil.LinearSize
	img, err := testutil.GenerateEAN13Image(config)
	if err != nil {
		return fmt.Errorf("failed to generate EAN-13 image: %w", err)
	}
	return testCtx.writeTempImage(name, img)
}

// anInvertedQRImageEncoding generates a light-on-dark QR fixture, which
// only the invert preprocessing variant can decode.
func (testCtx *TestContext) anInvertedQRImageEncoding(name, payload string) error {
	config := testutil.DefaultBarcodeConfig()
	config.Content = payload
	config.Invert = true
	img, err := testutil.GenerateQRImage(config)
	if err != nil {
		return fmt.Errorf("failed to generate inverted QR image: %w", err)
	}
	return testCtx.writeTempImage(name, img)
}

// aBlankWhiteImage generates an image with no symbol in it.
func (testCtx *TestContext) aBlankWhiteImage(name string) error {
	img := image.NewRGBA(image.Rect(0, 0, 240, 240))
	for y := range 240 {
		for x := range 240 {
			img.Set(x, y, color.White)
		}
	}
	return testCtx.writeTempImage(name, img)
}

// aTextFileWithContent writes a plain text file into the temp directory.
func (testCtx *TestContext) aTextFileWithContent(name, content string) error {
	path := testCtx.tempPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return os.WriteFile(path, []byte(content), 0o600)
}

// theScanShouldReportPayload verifies the decoded data in either output
// format.
func (testCtx *TestContext) theScanShouldReportPayload(payload string) error {
	textForm := "Data: " + payload
	jsonForm := fmt.Sprintf("%q", payload)
	if strings.Contains(testCtx.LastOutput, textForm) || strings.Contains(testCtx.LastOutput, jsonForm) {
		return nil
	}
	return fmt.Errorf("scan output does not report payload %q: %s", payload, testCtx.LastOutput)
}

// theScanShouldReportFormat verifies the reported symbology.
func (testCtx *TestContext) theScanShouldReportFormat(format string) error {
	textForm := "Decoded " + format
	jsonForm := fmt.Sprintf(`"format": %q`, format)
	csvForm := "," + format + ","
	for _, form := range []string{textForm, jsonForm, csvForm} {
		if strings.Contains(testCtx.LastOutput, form) {
			return nil
		}
	}
	return fmt.Errorf("scan output does not report format %q: %s", format, testCtx.LastOutput)
}

// theScanShouldReportVariant verifies which preprocessing variant won.
func (testCtx *TestContext) theScanShouldReportVariant(variant string) error {
	textForm := "with " + variant + " preprocessing"
	jsonForm := fmt.Sprintf(`"variant": %q`, variant)
	if strings.Contains(testCtx.LastOutput, textForm) || strings.Contains(testCtx.LastOutput, jsonForm) {
		return nil
	}
	return fmt.Errorf("scan output does not report variant %q: %s", variant, testCtx.LastOutput)
}

// anAnnotatedImageShouldBeCreatedIn verifies the overlay copy landed in
// the directory.
func (testCtx *TestContext) anAnnotatedImageShouldBeCreatedIn(directory string) error {
	dir := testCtx.resolvePath(directory)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read annotate directory %s: %w", dir, err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), "_annotated.png") {
			return nil
		}
	}
	return fmt.Errorf("no annotated image found in %s", dir)
}

// variantImagesShouldBeSavedIn verifies the preprocessed variant dumps.
func (testCtx *TestContext) variantImagesShouldBeSavedIn(directory string) error {
	dir := testCtx.resolvePath(directory)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read variants directory %s: %w", dir, err)
	}
	count := 0
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".png") {
			count++
		}
	}
	if count == 0 {
		return fmt.Errorf("no variant images found in %s", dir)
	}
	return nil
}

// RegisterDecodeSteps registers fixture generation and scan result steps.
func RegisterDecodeSteps(sc *godog.ScenarioContext, testCtx *TestContext) {
	// Fixture generation
	sc.Step(`^a clean QR image "([^"]*)" encoding "([^"]*)"$`, testCtx.aCleanQRImageEncoding)
	sc.Step(`^a clean Code 128 image "([^"]*)" encoding "([^"]*)"$`, testCtx.aCleanCode128ImageEncoding)
	sc.Step(`^a clean EAN-13 image "([^"]*)" encoding "([^"]*)"$`, testCtx.aCleanEAN13ImageEncoding)
	sc.Step(`^an inverted QR image "([^"]*)" encoding "([^"]*)"$`, testCtx.anInvertedQRImageEncoding)
	sc.Step(`^a blank white image "([^"]*)"$`, testCtx.aBlankWhiteImage)
	sc.Step(`^a text file "([^"]*)" with content "([^"]*)"$`, testCtx.aTextFileWithContent)

	// Scan result verification
	sc.Step(`^the scan should report payload "([^"]*)"$`, testCtx.theScanShouldReportPayload)
	sc.Step(`^the scan should report format "([^"]*)"$`, testCtx.theScanShouldReportFormat)
	sc.Step(`^the scan should report variant "([^"]*)"$`, testCtx.theScanShouldReportVariant)

	// Artifact verification
	sc.Step(`^an annotated image should be created in "([^"]*)"$`, testCtx.anAnnotatedImageShouldBeCreatedIn)
	sc.Step(`^variant images should be saved in "([^"]*)"$`, testCtx.variantImagesShouldBeSavedIn)
}
