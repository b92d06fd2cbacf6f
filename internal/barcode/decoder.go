package barcode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/aztec"
	"github.com/makiuchi-d/gozxing/datamatrix"
	"github.com/makiuchi-d/gozxing/multi"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/MeKo-Tech/bargo/internal/utils"
)

// EngineGozxing names the library decode engine in results and attempt trails.
const EngineGozxing = "gozxing"

// ErrNotFound is returned when no reader finds a symbol in the image.
var ErrNotFound = errors.New("no barcode found")

// Decoder is the library-backed decode engine.
type Decoder struct{}

// NewDecoder returns the library-backed decode engine.
func NewDecoder() *Decoder { return &Decoder{} }

// Name identifies the engine in attempt trails.
func (d *Decoder) Name() string { return EngineGozxing }

// Decode runs every enabled symbology reader against the image. Without
// Multi the first hit wins; with Multi every reader contributes all the
// symbols it can find. ErrNotFound is returned when nothing decodes.
func (d *Decoder) Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error) {
	if img == nil {
		return nil, &utils.ImageProcessingError{Operation: "decode", Err: errors.New("input image is nil")}
	}
	roi := opts.ROI
	if !roi.Empty() {
		// Points are mapped back by roi.Min, so clamp before cropping.
		roi = roi.Intersect(img.Bounds())
		if roi.Empty() {
			return nil, &utils.ImageProcessingError{Operation: "decode", Err: errors.New("region of interest outside image")}
		}
		img = utils.CropImageRect(img, roi)
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("building binary bitmap: %w", err)
	}
	hints := buildHints(opts)

	var results []Result
	for _, reader := range readersFor(opts.Formats) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if opts.Multi {
			mr := multi.NewGenericMultipleBarcodeReader(reader)
			found, err := mr.DecodeMultiple(bmp, hints)
			if err != nil {
				continue
			}
			for _, r := range found {
				results = append(results, fromZXing(r, roi))
			}
			continue
		}

		r, err := reader.Decode(bmp, hints)
		if err != nil {
			continue
		}
		results = append(results, fromZXing(r, roi))
		break
	}

	if len(results) == 0 {
		return nil, ErrNotFound
	}
	return results, nil
}

// readersFor returns the symbology readers to try, in a stable order.
// An empty filter enables every reader the library provides. MaxiCode has
// a format tag but no library reader; only the external engine can return it.
func readersFor(formats []Format) []gozxing.Reader {
	if len(formats) == 0 {
		formats = AllFormats()
	}
	readers := make([]gozxing.Reader, 0, len(formats))
	seen := make(map[Format]bool)
	for _, f := range formats {
		if seen[f] {
			continue
		}
		seen[f] = true
		switch f {
		case FormatQR:
			readers = append(readers, qrcode.NewQRCodeReader())
		case FormatDataMatrix:
			readers = append(readers, datamatrix.NewDataMatrixReader())
		case FormatAztec:
			readers = append(readers, aztec.NewAztecReader())
		case FormatCode128:
			readers = append(readers, oned.NewCode128Reader())
		case FormatCode39:
			readers = append(readers, oned.NewCode39Reader())
		case FormatEAN8:
			readers = append(readers, oned.NewEAN8Reader())
		case FormatEAN13:
			readers = append(readers, oned.NewEAN13Reader())
		case FormatUPCA:
			readers = append(readers, oned.NewUPCAReader())
		case FormatUPCE:
			readers = append(readers, oned.NewUPCEReader())
		case FormatITF:
			readers = append(readers, oned.NewITFReader())
		case FormatCodabar:
			readers = append(readers, oned.NewCodaBarReader())
		case FormatPDF417, FormatMaxiCode, FormatUnknown:
		}
	}
	return readers
}

func buildHints(opts Options) map[gozxing.DecodeHintType]interface{} {
	hints := make(map[gozxing.DecodeHintType]interface{})
	if opts.TryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}
	if len(opts.Formats) > 0 {
		zf := make([]gozxing.BarcodeFormat, 0, len(opts.Formats))
		for _, f := range opts.Formats {
			if z, ok := toZXingFormat(f); ok {
				zf = append(zf, z)
			}
		}
		if len(zf) > 0 {
			hints[gozxing.DecodeHintType_POSSIBLE_FORMATS] = zf
		}
	}
	if len(hints) == 0 {
		return nil
	}
	return hints
}

func fromZXing(r *gozxing.Result, roi image.Rectangle) Result {
	rps := r.GetResultPoints()
	pts := make([]Point, 0, len(rps))
	fpts := make([]utils.Point, 0, len(rps))
	for _, rp := range rps {
		if rp == nil {
			continue
		}
		x := int(math.Round(rp.GetX()))
		y := int(math.Round(rp.GetY()))
		if !roi.Empty() {
			// Reader coordinates are relative to the cropped region.
			x += roi.Min.X
			y += roi.Min.Y
		}
		pts = append(pts, Point{X: x, Y: y})
		fpts = append(fpts, utils.Point{X: float64(x), Y: float64(y)})
	}

	res := Result{
		Format:  fromZXingFormat(r.GetBarcodeFormat()),
		Payload: r.GetText(),
		Points:  pts,
		Engine:  EngineGozxing,
	}
	if len(pts) > 0 {
		res.BBox = BoundsFromPoints(pts)
	}
	if len(fpts) >= 3 {
		res.Orientation = utils.RectOrientationDegrees(utils.MinimumAreaRectangle(fpts))
	}
	return res
}

// BoundsFromPoints returns the tight pixel rectangle covering the points.
func BoundsFromPoints(pts []Point) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

func toZXingFormat(f Format) (gozxing.BarcodeFormat, bool) {
	switch f {
	case FormatQR:
		return gozxing.BarcodeFormat_QR_CODE, true
	case FormatDataMatrix:
		return gozxing.BarcodeFormat_DATA_MATRIX, true
	case FormatAztec:
		return gozxing.BarcodeFormat_AZTEC, true
	case FormatPDF417:
		return gozxing.BarcodeFormat_PDF_417, true
	case FormatMaxiCode:
		return gozxing.BarcodeFormat_MAXICODE, true
	case FormatCode128:
		return gozxing.BarcodeFormat_CODE_128, true
	case FormatCode39:
		return gozxing.BarcodeFormat_CODE_39, true
	case FormatEAN8:
		return gozxing.BarcodeFormat_EAN_8, true
	case FormatEAN13:
		return gozxing.BarcodeFormat_EAN_13, true
	case FormatUPCA:
		return gozxing.BarcodeFormat_UPC_A, true
	case FormatUPCE:
		return gozxing.BarcodeFormat_UPC_E, true
	case FormatITF:
		return gozxing.BarcodeFormat_ITF, true
	case FormatCodabar:
		return gozxing.BarcodeFormat_CODABAR, true
	case FormatUnknown:
	}
	return gozxing.BarcodeFormat_QR_CODE, false
}

func fromZXingFormat(zf gozxing.BarcodeFormat) Format {
	switch zf {
	case gozxing.BarcodeFormat_QR_CODE:
		return FormatQR
	case gozxing.BarcodeFormat_DATA_MATRIX:
		return FormatDataMatrix
	case gozxing.BarcodeFormat_AZTEC:
		return FormatAztec
	case gozxing.BarcodeFormat_PDF_417:
		return FormatPDF417
	case gozxing.BarcodeFormat_MAXICODE:
		return FormatMaxiCode
	case gozxing.BarcodeFormat_CODE_128:
		return FormatCode128
	case gozxing.BarcodeFormat_CODE_39:
		return FormatCode39
	case gozxing.BarcodeFormat_EAN_8:
		return FormatEAN8
	case gozxing.BarcodeFormat_EAN_13:
		return FormatEAN13
	case gozxing.BarcodeFormat_UPC_A:
		return FormatUPCA
	case gozxing.BarcodeFormat_UPC_E:
		return FormatUPCE
	case gozxing.BarcodeFormat_ITF:
		return FormatITF
	case gozxing.BarcodeFormat_CODABAR:
		return FormatCodabar
	default:
		return FormatUnknown
	}
}
