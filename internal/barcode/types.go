package barcode

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"strings"
)

// Format identifies a barcode symbology.
type Format int

const (
	FormatUnknown Format = iota
	FormatQR
	FormatDataMatrix
	FormatAztec
	FormatPDF417
	FormatMaxiCode
	FormatCode128
	FormatCode39
	FormatEAN8
	FormatEAN13
	FormatUPCA
	FormatUPCE
	FormatITF
	FormatCodabar
)

var formatNames = map[Format]string{
	FormatQR:         "qr",
	FormatDataMatrix: "datamatrix",
	FormatAztec:      "aztec",
	FormatPDF417:     "pdf417",
	FormatMaxiCode:   "maxicode",
	FormatCode128:    "code128",
	FormatCode39:     "code39",
	FormatEAN8:       "ean8",
	FormatEAN13:      "ean13",
	FormatUPCA:       "upca",
	FormatUPCE:       "upce",
	FormatITF:        "itf",
	FormatCodabar:    "codabar",
}

// String returns the canonical lowercase name used on the CLI and in output.
func (f Format) String() string {
	if n, ok := formatNames[f]; ok {
		return n
	}
	return "unknown"
}

// Is1D reports whether the format is a linear symbology.
func (f Format) Is1D() bool {
	switch f {
	case FormatCode128, FormatCode39, FormatEAN8, FormatEAN13,
		FormatUPCA, FormatUPCE, FormatITF, FormatCodabar:
		return true
	case FormatUnknown, FormatQR, FormatDataMatrix, FormatAztec,
		FormatPDF417, FormatMaxiCode:
		return false
	}
	return false
}

// MarshalJSON emits the symbology name rather than the enum value.
func (f Format) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

// UnmarshalJSON accepts a symbology name.
func (f *Format) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseFormat(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// AllFormats returns every decodable symbology in display order.
func AllFormats() []Format {
	return []Format{
		FormatQR, FormatDataMatrix, FormatAztec, FormatPDF417, FormatMaxiCode,
		FormatCode128, FormatCode39, FormatEAN8, FormatEAN13,
		FormatUPCA, FormatUPCE, FormatITF, FormatCodabar,
	}
}

// Linear1DFormats returns the linear symbologies, the expansion of the
// "1d" filter group.
func Linear1DFormats() []Format {
	return []Format{
		FormatCode128, FormatCode39, FormatEAN8, FormatEAN13,
		FormatUPCA, FormatUPCE, FormatITF, FormatCodabar,
	}
}

// ParseFormat resolves a single symbology name. Aliases from other tools
// ("qrcode", "pdf_417", ...) are accepted.
func ParseFormat(name string) (Format, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.ReplaceAll(key, "_", "")
	key = strings.ReplaceAll(key, "-", "")
	switch key {
	case "qr", "qrcode":
		return FormatQR, nil
	case "datamatrix", "dm":
		return FormatDataMatrix, nil
	case "aztec":
		return FormatAztec, nil
	case "pdf417":
		return FormatPDF417, nil
	case "maxicode":
		return FormatMaxiCode, nil
	case "code128":
		return FormatCode128, nil
	case "code39":
		return FormatCode39, nil
	case "ean8":
		return FormatEAN8, nil
	case "ean13":
		return FormatEAN13, nil
	case "upca":
		return FormatUPCA, nil
	case "upce":
		return FormatUPCE, nil
	case "itf":
		return FormatITF, nil
	case "codabar":
		return FormatCodabar, nil
	}
	return FormatUnknown, fmt.Errorf("unknown symbology %q", name)
}

// ParseFormats resolves a list of names into a decode filter. Each entry may
// itself be comma-separated. The group "1d" expands to the linear set and
// "any" (or an empty list) yields the empty filter, meaning no restriction.
func ParseFormats(names []string) ([]Format, error) {
	var out []Format
	seen := make(map[Format]bool)
	for _, entry := range names {
		for _, name := range strings.Split(entry, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			switch strings.ToLower(name) {
			case "any", "all":
				return nil, nil
			case "1d":
				for _, f := range Linear1DFormats() {
					if !seen[f] {
						seen[f] = true
						out = append(out, f)
					}
				}
				continue
			}
			f, err := ParseFormat(name)
			if err != nil {
				return nil, err
			}
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out, nil
}

// Matches reports whether format f passes the filter. An empty filter
// accepts everything.
func Matches(f Format, filter []Format) bool {
	if len(filter) == 0 {
		return true
	}
	for _, want := range filter {
		if f == want {
			return true
		}
	}
	return false
}

// Point is a pixel position reported by a decode engine.
type Point struct {
	X int
	Y int
}

// Result is one decoded symbol.
type Result struct {
	Format      Format
	Payload     string
	Points      []Point
	BBox        image.Rectangle
	Orientation float64 // degrees, estimated from the reported points
	Engine      string  // decode engine that produced the hit
}

// Options controls a single decode attempt.
type Options struct {
	Formats   []Format        // restrict decoding; empty means all
	TryHarder bool            // spend more time per attempt
	Multi     bool            // return every symbol instead of the first
	ROI       image.Rectangle // restrict decoding to a sub-region when non-empty
}

// Backend decodes barcodes from a prepared image.
type Backend interface {
	Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error)
	Name() string
}
