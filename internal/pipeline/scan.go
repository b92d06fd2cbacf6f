package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/bargo/internal/barcode"
	"github.com/MeKo-Tech/bargo/internal/preprocess"
	"github.com/MeKo-Tech/bargo/internal/utils"
	"github.com/MeKo-Tech/bargo/internal/zxing"
)

// ErrNoBarcode reports that every variant was exhausted without an
// accepted symbol. Scan operations return it alongside the populated
// result, which still carries the full attempt trail for diagnostics.
var ErrNoBarcode = errors.New("no barcode found in image")

// DecodeImage scans an in-memory image with a background context.
func (p *Pipeline) DecodeImage(img image.Image) (*ScanResult, error) {
	return p.DecodeImageContext(context.Background(), img)
}

// DecodeImageContext scans an in-memory image. On exhaustion the result
// is returned together with ErrNoBarcode.
func (p *Pipeline) DecodeImageContext(ctx context.Context, img image.Image) (*ScanResult, error) {
	return p.decode(ctx, img, "")
}

// DecodeFile loads an image file and scans it with a background context.
func (p *Pipeline) DecodeFile(path string) (*ScanResult, error) {
	return p.DecodeFileContext(context.Background(), path)
}

// DecodeFileContext loads an image file and scans it. A missing or
// unreadable file fails here, before any variant is generated.
func (p *Pipeline) DecodeFileContext(ctx context.Context, path string) (*ScanResult, error) {
	img, meta, err := utils.LoadImage(path)
	if err != nil {
		return nil, err
	}
	slog.Debug("Loaded image", "path", path, "format", meta.Format,
		"width", meta.Width, "height", meta.Height)
	return p.decode(ctx, img, path)
}

// decode runs the variant loop. Variants are generated lazily in recipe
// order; the first one yielding an accepted symbol ends the scan.
func (p *Pipeline) decode(ctx context.Context, img image.Image, source string) (*ScanResult, error) {
	if p == nil || p.backend == nil {
		return nil, errors.New("pipeline not initialized")
	}
	if img == nil {
		return nil, &utils.ImageProcessingError{Operation: "decode", Err: errors.New("input image is nil")}
	}

	start := time.Now()
	bounds := img.Bounds()
	res := &ScanResult{Source: source, Width: bounds.Dx(), Height: bounds.Dy()}
	stem := variantStem(source)

	for _, tr := range p.recipe {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		variant, err := tr.Apply(img)
		if err != nil {
			res.Attempts = append(res.Attempts, VariantAttempt{Variant: tr.Name, Error: err.Error()})
			slog.Warn("Variant generation failed", "variant", tr.Name, "error", err)
			continue
		}

		if p.cfg.SaveVariantsDir != "" {
			saveVariantCopy(p.cfg.SaveVariantsDir, stem, tr.Name, variant)
		}

		if p.tool != nil {
			attempt, matched := p.tryTool(ctx, variant, tr, stem)
			res.Attempts = append(res.Attempts, attempt)
			if len(matched) > 0 {
				res.Barcodes = matched
				break
			}
		}

		attempt, matched := p.tryLibrary(ctx, variant, tr)
		res.Attempts = append(res.Attempts, attempt)
		if len(matched) > 0 {
			res.Barcodes = matched
			break
		}
	}

	res.Processing.TotalNs = time.Since(start).Nanoseconds()

	if len(res.Barcodes) == 0 {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		slog.Debug("Scan exhausted all variants", "source", source, "attempts", len(res.Attempts))
		return res, ErrNoBarcode
	}

	first := res.Barcodes[0]
	slog.Debug("Scan succeeded", "source", source, "variant", first.Variant,
		"engine", first.Engine, "format", first.Format)
	return res, nil
}

// tryTool stages the variant for the external engine and invokes it.
// Any tool failure, also a missing runtime or "no barcode found", is
// recorded the same way and the caller falls through to the library.
func (p *Pipeline) tryTool(ctx context.Context, variant image.Image, tr preprocess.Transform, stem string) (VariantAttempt, []BarcodeResult) {
	attempt := VariantAttempt{Variant: tr.Name, Engine: p.tool.Name()}
	start := time.Now()

	path, cleanup, err := p.stageToolInput(variant, stem, tr.Name)
	if err != nil {
		attempt.DurationNs = time.Since(start).Nanoseconds()
		attempt.Error = err.Error()
		return attempt, nil
	}
	defer cleanup()

	opts := zxingOptions(p.cfg.Formats)
	results, err := p.tool.Decode(ctx, path, opts)
	attempt.DurationNs = time.Since(start).Nanoseconds()
	if err != nil {
		attempt.Error = err.Error()
		slog.Debug("External engine found nothing, trying library", "variant", tr.Name, "error", err)
		return attempt, nil
	}

	matched, skipped := p.accept(results, tr)
	attempt.Skipped = skipped
	return attempt, matched
}

// tryLibrary decodes the variant with the library backend. The backend
// decodes broadly; filtering happens afterwards so filtered-out
// symbologies show up as skipped tags instead of silent misses.
func (p *Pipeline) tryLibrary(ctx context.Context, variant image.Image, tr preprocess.Transform) (VariantAttempt, []BarcodeResult) {
	attempt := VariantAttempt{Variant: tr.Name, Engine: p.backend.Name()}
	start := time.Now()

	opts := barcode.Options{TryHarder: p.cfg.TryHarder, Multi: p.cfg.Multi}
	results, err := p.backend.Decode(ctx, variant, opts)
	attempt.DurationNs = time.Since(start).Nanoseconds()
	if err != nil {
		attempt.Error = err.Error()
		return attempt, nil
	}

	matched, skipped := p.accept(results, tr)
	attempt.Skipped = skipped
	return attempt, matched
}

// accept filters raw engine hits through the symbology filter and maps
// accepted geometry back into source coordinates.
func (p *Pipeline) accept(results []barcode.Result, tr preprocess.Transform) ([]BarcodeResult, []string) {
	var matched []BarcodeResult
	var skipped []string
	for _, r := range results {
		if r.Payload == "" || r.Format == barcode.FormatUnknown {
			skipped = append(skipped, r.Format.String())
			continue
		}
		if !barcode.Matches(r.Format, p.cfg.Formats) {
			skipped = append(skipped, r.Format.String())
			continue
		}
		matched = append(matched, toBarcodeResult(r, tr))
	}
	return matched, skipped
}

// toBarcodeResult converts an engine hit into the result type, dividing
// positions by the transform scale so they land on the source image.
func toBarcodeResult(r barcode.Result, tr preprocess.Transform) BarcodeResult {
	out := BarcodeResult{
		Format:      r.Format.String(),
		Payload:     r.Payload,
		Orientation: r.Orientation,
		Variant:     tr.Name,
		Engine:      r.Engine,
	}

	scale := tr.Scale
	if scale <= 0 {
		scale = 1
	}

	pts := r.Points
	if scale != 1 && len(pts) > 0 {
		mapped := make([]barcode.Point, len(pts))
		for i, pt := range pts {
			mapped[i] = barcode.Point{
				X: int(math.Round(float64(pt.X) / scale)),
				Y: int(math.Round(float64(pt.Y) / scale)),
			}
		}
		pts = mapped
	}
	for _, pt := range pts {
		out.Points = append(out.Points, struct{ X, Y int }{pt.X, pt.Y})
	}

	box := r.BBox
	if scale != 1 {
		if len(pts) > 0 {
			box = barcode.BoundsFromPoints(pts)
		} else {
			box = image.Rect(
				int(math.Round(float64(box.Min.X)/scale)),
				int(math.Round(float64(box.Min.Y)/scale)),
				int(math.Round(float64(box.Max.X)/scale)),
				int(math.Round(float64(box.Max.Y)/scale)),
			)
		}
	}
	out.Box = struct{ X, Y, W, H int }{box.Min.X, box.Min.Y, box.Dx(), box.Dy()}
	return out
}

// zxingOptions builds external-engine options. The CLI always runs in
// try-harder pure-barcode mode; only the symbology filter varies.
func zxingOptions(formats []barcode.Format) (opts zxing.Options) {
	opts = zxing.DefaultOptions()
	opts.Formats = formats
	return opts
}

// stageToolInput writes the variant as a PNG into the mounted work
// directory using the historical <stem>_<variant>.png naming. When that
// name is already taken a unique fallback keeps concurrent scans apart.
func (p *Pipeline) stageToolInput(img image.Image, stem, name string) (string, func(), error) {
	dir := p.cfg.Zxing.Workdir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", nil, fmt.Errorf("resolve tool workdir: %w", err)
		}
		dir = wd
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.png", stem, name))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) //nolint:gosec // G304: staging under the configured workdir is expected
	if err != nil {
		tmp, terr := os.CreateTemp(dir, stem+"_"+name+"-*.png")
		if terr != nil {
			return "", nil, fmt.Errorf("stage tool input: %w", terr)
		}
		f, path = tmp, tmp.Name()
	}

	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", nil, fmt.Errorf("stage tool input: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", nil, fmt.Errorf("stage tool input: %w", err)
	}
	return path, func() { _ = os.Remove(path) }, nil
}

// saveVariantCopy writes a debug copy of a generated variant. Failures
// are logged and do not interrupt the scan.
func saveVariantCopy(dir, stem, name string, img image.Image) {
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.png", stem, name))
	if err := utils.SaveImage(img, path); err != nil {
		slog.Warn("Could not save variant copy", "path", path, "error", err)
	}
}

// variantStem derives the file stem used for staged and debug images.
func variantStem(source string) string {
	if source == "" {
		return "image"
	}
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
