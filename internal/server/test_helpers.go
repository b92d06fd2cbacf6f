package server

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"

	"github.com/MeKo-Tech/bargo/internal/pdf"
	"github.com/MeKo-Tech/bargo/internal/pipeline"
)

// mockDecoder is a canned decoderInterface implementation for testing.
type mockDecoder struct {
	imageResult *pipeline.ScanResult
	imageErr    error
	pdfResult   *pdf.DocumentResult
	pdfErr      error
	closed      bool
}

func (m *mockDecoder) DecodeImage(ctx context.Context, img image.Image) (*pipeline.ScanResult, error) {
	if m.imageErr != nil {
		return nil, m.imageErr
	}
	if m.imageResult != nil {
		return m.imageResult, nil
	}
	bounds := img.Bounds()
	res := scanResultFixture()
	res.Width = bounds.Dx()
	res.Height = bounds.Dy()
	return res, nil
}

func (m *mockDecoder) DecodePDF(ctx context.Context, filename, pageRange string) (*pdf.DocumentResult, error) {
	if m.pdfErr != nil {
		return nil, m.pdfErr
	}
	if m.pdfResult != nil {
		return m.pdfResult, nil
	}
	res := documentResultFixture()
	res.Filename = filename
	return res, nil
}

func (m *mockDecoder) Close() error {
	m.closed = true
	return nil
}

// scanResultFixture returns a single-hit scan with a populated
// attempt trail.
func scanResultFixture() *pipeline.ScanResult {
	res := &pipeline.ScanResult{
		Width:  100,
		Height: 100,
		Barcodes: []pipeline.BarcodeResult{
			{
				Format:  "qr",
				Payload: "HELLO-TEST",
				Variant: "gray",
				Engine:  "gozxing",
			},
		},
		Attempts: []pipeline.VariantAttempt{
			{Variant: "original", Engine: "gozxing", DurationNs: 1200000, Error: "no barcode found"},
			{Variant: "gray", Engine: "gozxing", DurationNs: 900000},
		},
	}
	res.Barcodes[0].Box = struct{ X, Y, W, H int }{X: 10, Y: 10, W: 60, H: 60}
	res.Barcodes[0].Points = []struct{ X, Y int }{{10, 10}, {70, 10}, {70, 70}, {10, 70}}
	res.Processing.TotalNs = 2100000
	return res
}

// documentResultFixture returns a one-page PDF scan with one hit.
func documentResultFixture() *pdf.DocumentResult {
	scan := scanResultFixture()
	return &pdf.DocumentResult{
		Filename:   "fixture.pdf",
		TotalPages: 1,
		Pages: []pdf.PageResult{
			{
				PageNumber: 1,
				Width:      612,
				Height:     792,
				Images: []pdf.ImageResult{
					{
						ImageIndex: 0,
						Width:      scan.Width,
						Height:     scan.Height,
						Barcodes:   scan.Barcodes,
						Attempts:   len(scan.Attempts),
					},
				},
			},
		},
		Processing: pdf.ProcessingInfo{
			ExtractionTimeMs: 5,
			DecodeTimeMs:     3,
			TotalTimeMs:      8,
		},
	}
}

// createTestImage creates a simple gradient image for upload tests.
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := byte(x % 256)
			g := byte(y % 256)
			img.Set(x, y, color.RGBA{r, g, 0, 255})
		}
	}
	return img
}

// encodeImageToPNG encodes an image to PNG bytes.
func encodeImageToPNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	err := png.Encode(&buf, img)
	return buf.Bytes(), err
}

// createMultipartFormRequest creates a multipart form request with an image.
func createMultipartFormRequest(
	imageData []byte,
	filename string,
	extraFields map[string]string,
) (*http.Request, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return nil, err
	}
	_, err = part.Write(imageData)
	if err != nil {
		return nil, err
	}

	for key, value := range extraFields {
		err = writer.WriteField(key, value)
		if err != nil {
			return nil, err
		}
	}

	err = writer.Close()
	if err != nil {
		return nil, err
	}

	req := httptest.NewRequest(http.MethodPost, "/decode/image", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return req, nil
}

// createMultipartPDFFormRequest creates a multipart form request with a PDF file.
func createMultipartPDFFormRequest(
	pdfData []byte,
	filename string,
	extraFields map[string]string,
) (*http.Request, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("pdf", filename)
	if err != nil {
		return nil, err
	}
	_, err = part.Write(pdfData)
	if err != nil {
		return nil, err
	}

	for key, value := range extraFields {
		err = writer.WriteField(key, value)
		if err != nil {
			return nil, err
		}
	}

	err = writer.Close()
	if err != nil {
		return nil, err
	}

	req := httptest.NewRequest(http.MethodPost, "/decode/pdf", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return req, nil
}
