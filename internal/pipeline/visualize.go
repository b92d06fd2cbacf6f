package pipeline

import (
	"image"
	"image/color"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/bargo/internal/barcode"
	"github.com/MeKo-Tech/bargo/internal/utils"
)

const maxLabelRunes = 32

// RenderOverlay draws the accepted symbols over the image and returns
// an RGBA copy. Symbols with at least three reported points get a
// closed polygon; the rest fall back to the bounding rectangle. The
// cleaned payload is labeled above each region.
func RenderOverlay(img image.Image, res *ScanResult, lineColor color.Color) *image.RGBA {
	if img == nil {
		return nil
	}
	if lineColor == nil {
		lineColor = DefaultLineColor
	}

	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x-b.Min.X, y-b.Min.Y, img.At(x, y))
		}
	}
	if res == nil {
		return dst
	}

	for _, bc := range res.Barcodes {
		if len(bc.Points) >= 3 {
			pts := make([]utils.Point, len(bc.Points))
			for i, pt := range bc.Points {
				pts[i] = utils.Point{X: float64(pt.X), Y: float64(pt.Y)}
			}
			utils.DrawPolygon(dst, pts, lineColor, 3)
		} else {
			rect := image.Rect(bc.Box.X, bc.Box.Y, bc.Box.X+bc.Box.W, bc.Box.Y+bc.Box.H)
			utils.DrawRect(dst, rect, lineColor, 2)
		}
		utils.DrawLabel(dst, labelText(bc.Payload), image.Pt(bc.Box.X, bc.Box.Y-4), lineColor)
	}
	return dst
}

// Annotate renders the overlay with the configured stroke color.
func (p *Pipeline) Annotate(img image.Image, res *ScanResult) *image.RGBA {
	return RenderOverlay(img, res, p.cfg.Overlay.LineColor)
}

// SaveAnnotated renders and writes the annotated copy for a scan,
// returning the written path.
func (p *Pipeline) SaveAnnotated(img image.Image, res *ScanResult) (string, error) {
	path := AnnotatedPath(res.Source, p.cfg.Overlay.Dir)
	overlay := p.Annotate(img, res)
	if err := utils.SaveImage(overlay, path); err != nil {
		return "", err
	}
	return path, nil
}

// AnnotatedPath derives the <stem>_annotated.png output path. With an
// empty dir the copy lands next to the source image.
func AnnotatedPath(source, dir string) string {
	stem := variantStem(source)
	if dir == "" {
		dir = filepath.Dir(source)
	}
	return filepath.Join(dir, stem+"_annotated.png")
}

// labelText shortens a payload to a single printable label line.
func labelText(payload string) string {
	clean := barcode.CleanPayload(payload, barcode.DefaultCleanOptions())
	if i := strings.IndexByte(clean, '\n'); i >= 0 {
		clean = clean[:i]
	}
	runes := []rune(clean)
	if len(runes) > maxLabelRunes {
		clean = string(runes[:maxLabelRunes]) + "..."
	}
	return clean
}
