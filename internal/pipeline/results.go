package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/bargo/internal/barcode"
)

// ToJSON serializes a single scan result to pretty JSON. Payloads are
// kept raw; cleaning is only applied to text output.
func ToJSON(res *ScanResult) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToJSONResults serializes multiple scan results to pretty JSON.
func ToJSONResults(results []*ScanResult) (string, error) {
	b, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToText renders the human-readable report: the per-variant attempt
// lines, then either the decoded data or the detection tips the
// original scripts printed on failure.
func ToText(res *ScanResult) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}

	var b strings.Builder
	source := res.Source
	if source == "" {
		source = "(in memory)"
	}
	fmt.Fprintf(&b, "Processing image: %s (%dx%d)\n", source, res.Width, res.Height)

	for _, att := range res.Attempts {
		writeAttemptLine(&b, att)
	}

	if !res.Found() {
		writeFailureTips(&b, res)
		return b.String(), nil
	}

	for _, bc := range res.Barcodes {
		fmt.Fprintf(&b, "\nDecoded %s with %s preprocessing using %s:\n", bc.Format, bc.Variant, bc.Engine)
		fmt.Fprintf(&b, "Data: %s\n", barcode.CleanPayload(bc.Payload, barcode.DefaultCleanOptions()))
		if len(bc.Points) > 0 {
			parts := make([]string, len(bc.Points))
			for i, pt := range bc.Points {
				parts[i] = fmt.Sprintf("(%d,%d)", pt.X, pt.Y)
			}
			fmt.Fprintf(&b, "Points: %s\n", strings.Join(parts, " "))
		}
	}
	return b.String(), nil
}

func writeAttemptLine(b *strings.Builder, att VariantAttempt) {
	label := att.Variant
	if att.Engine != "" {
		label += "/" + att.Engine
	}
	ms := float64(att.DurationNs) / 1e6

	switch {
	case att.Error != "":
		fmt.Fprintf(b, "  %s: %s (%.1fms)\n", label, att.Error, ms)
	case len(att.Skipped) > 0:
		fmt.Fprintf(b, "  %s: found %s, skipped by format filter (%.1fms)\n",
			label, strings.Join(att.Skipped, ", "), ms)
	default:
		fmt.Fprintf(b, "  %s: decoded (%.1fms)\n", label, ms)
	}
}

// writeFailureTips prints the guidance block. The container hint only
// appears when the trail shows the external engine was in play.
func writeFailureTips(b *strings.Builder, res *ScanResult) {
	fmt.Fprintf(b, "\nNo barcode found after trying %d preprocessing variants.\n", res.VariantsTried())
	b.WriteString("Tips for better detection:\n")
	b.WriteString("1. Ensure the image has good lighting and contrast\n")
	b.WriteString("2. Make sure the barcode is clearly visible and not damaged\n")
	b.WriteString("3. Try capturing the image from a different angle or with better lighting\n")
	if usedExternalTool(res) {
		b.WriteString("4. Ensure the container runtime for the external decoder is installed and running\n")
	}
}

func usedExternalTool(res *ScanResult) bool {
	for _, att := range res.Attempts {
		if att.Engine != "" && att.Engine != barcode.EngineGozxing {
			return true
		}
	}
	return false
}

// ToCSV exports decoded symbols of one scan as CSV with header.
func ToCSV(res *ScanResult) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	return ToCSVResults([]*ScanResult{res})
}

// ToCSVResults exports decoded symbols of multiple scans as CSV.
// Scans without a match contribute no rows.
func ToCSVResults(results []*ScanResult) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"source", "format", "payload", "variant", "engine", "x", "y", "w", "h"})
	for _, res := range results {
		if res == nil {
			continue
		}
		for _, bc := range res.Barcodes {
			_ = w.Write([]string{
				res.Source,
				bc.Format,
				bc.Payload,
				bc.Variant,
				bc.Engine,
				strconv.Itoa(bc.Box.X),
				strconv.Itoa(bc.Box.Y),
				strconv.Itoa(bc.Box.W),
				strconv.Itoa(bc.Box.H),
			})
		}
	}
	w.Flush()
	return buf.String(), nil
}

// ValidateScanResult performs consistency checks on a scan result.
// Accepted symbols must carry a payload, a known symbology tag and
// geometry inside the image.
func ValidateScanResult(res *ScanResult) error {
	if res == nil {
		return errors.New("nil result")
	}
	if res.Width <= 0 || res.Height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", res.Width, res.Height)
	}
	for i, bc := range res.Barcodes {
		if bc.Payload == "" {
			return fmt.Errorf("barcode %d has empty payload", i)
		}
		if f, err := barcode.ParseFormat(bc.Format); err != nil || f == barcode.FormatUnknown {
			return fmt.Errorf("barcode %d has unknown format %q", i, bc.Format)
		}
		if bc.Variant == "" {
			return fmt.Errorf("barcode %d has no variant", i)
		}
		if err := validateBox(bc, res.Width, res.Height, i); err != nil {
			return err
		}
	}
	return nil
}

func validateBox(bc BarcodeResult, width, height, index int) error {
	if bc.Box.W < 0 || bc.Box.H < 0 {
		return fmt.Errorf("barcode %d has negative size", index)
	}
	if bc.Box.X < 0 || bc.Box.Y < 0 {
		return fmt.Errorf("barcode %d has negative coords", index)
	}
	if bc.Box.X+bc.Box.W > width {
		return fmt.Errorf("barcode %d exceeds image width", index)
	}
	if bc.Box.Y+bc.Box.H > height {
		return fmt.Errorf("barcode %d exceeds image height", index)
	}
	return nil
}
