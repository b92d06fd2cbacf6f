package pdf

import "github.com/MeKo-Tech/bargo/internal/pipeline"

// ImageResult holds the scan outcome for one image embedded in a page.
type ImageResult struct {
	ImageIndex int                      `json:"image_index"`
	Width      int                      `json:"width"`
	Height     int                      `json:"height"`
	Barcodes   []pipeline.BarcodeResult `json:"barcodes"`
	Attempts   int                      `json:"attempts"`
}

// PageResult aggregates the scans of all images on one page.
type PageResult struct {
	PageNumber int            `json:"page_number"`
	Width      int            `json:"width"`
	Height     int            `json:"height"`
	Images     []ImageResult  `json:"images"`
	Processing ProcessingInfo `json:"processing"`
}

// DocumentResult is the complete decode report for a PDF document.
type DocumentResult struct {
	Filename   string         `json:"filename"`
	TotalPages int            `json:"total_pages"`
	Pages      []PageResult   `json:"pages"`
	Processing ProcessingInfo `json:"processing"`
}

// ProcessingInfo carries timing for the extract and decode phases.
type ProcessingInfo struct {
	ExtractionTimeMs int64 `json:"extraction_time_ms"`
	DecodeTimeMs     int64 `json:"decode_time_ms"`
	TotalTimeMs      int64 `json:"total_time_ms"`
}

// Found reports whether any page produced at least one symbol.
func (d *DocumentResult) Found() bool {
	return d != nil && d.TotalBarcodes() > 0
}

// TotalBarcodes counts accepted symbols across all pages.
func (d *DocumentResult) TotalBarcodes() int {
	if d == nil {
		return 0
	}
	total := 0
	for _, page := range d.Pages {
		for _, img := range page.Images {
			total += len(img.Barcodes)
		}
	}
	return total
}

// Barcodes flattens every accepted symbol in page order.
func (d *DocumentResult) Barcodes() []pipeline.BarcodeResult {
	if d == nil {
		return nil
	}
	out := make([]pipeline.BarcodeResult, 0, d.TotalBarcodes())
	for _, page := range d.Pages {
		for _, img := range page.Images {
			out = append(out, img.Barcodes...)
		}
	}
	return out
}
