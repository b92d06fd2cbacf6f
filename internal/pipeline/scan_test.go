package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/MeKo-Tech/bargo/internal/barcode"
	"github.com/MeKo-Tech/bargo/internal/preprocess"
	"github.com/MeKo-Tech/bargo/internal/testutil"
	"github.com/MeKo-Tech/bargo/internal/utils"
	"github.com/MeKo-Tech/bargo/internal/zxing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedBackend plays canned responses in call order and reports
// not-found once the script runs out. Variants are generated in a fixed
// order, so call index identifies the variant under decode.
type scriptedBackend struct {
	mu     sync.Mutex
	calls  int
	script []func(opts barcode.Options) ([]barcode.Result, error)
}

func (s *scriptedBackend) Decode(_ context.Context, _ image.Image, opts barcode.Options) ([]barcode.Result, error) {
	s.mu.Lock()
	idx := s.calls
	s.calls++
	s.mu.Unlock()
	if idx >= len(s.script) {
		return nil, barcode.ErrNotFound
	}
	return s.script[idx](opts)
}

func (s *scriptedBackend) Name() string { return "stub" }

func (s *scriptedBackend) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func notFound(barcode.Options) ([]barcode.Result, error) {
	return nil, barcode.ErrNotFound
}

func hit(format barcode.Format, payload string, pts ...barcode.Point) func(barcode.Options) ([]barcode.Result, error) {
	return func(barcode.Options) ([]barcode.Result, error) {
		r := barcode.Result{Format: format, Payload: payload, Points: pts, Engine: "stub"}
		if len(pts) > 0 {
			r.BBox = barcode.BoundsFromPoints(pts)
		}
		return []barcode.Result{r}, nil
	}
}

// scriptedTool stands in for the container runner.
type scriptedTool struct {
	mu      sync.Mutex
	paths   []string
	results []barcode.Result
	err     error
}

func (s *scriptedTool) Decode(_ context.Context, imagePath string, _ zxing.Options) ([]barcode.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, imagePath)
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func (s *scriptedTool) Name() string { return zxing.Engine }

func (s *scriptedTool) seenPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

func qrTestImage(t *testing.T) image.Image {
	t.Helper()
	img, err := testutil.GenerateQRImage(testutil.DefaultBarcodeConfig())
	require.NoError(t, err)
	return img
}

func buildWithBackend(t *testing.T, backend barcode.Backend, opts ...func(*Builder)) *Pipeline {
	t.Helper()
	b := NewBuilder().WithBackend(backend)
	for _, opt := range opts {
		opt(b)
	}
	p, err := b.Build()
	require.NoError(t, err)
	return p
}

func TestDecodeImage_FirstMatchWins(t *testing.T) {
	backend := &scriptedBackend{script: []func(barcode.Options) ([]barcode.Result, error){
		notFound,
		notFound,
		hit(barcode.FormatQR, "hello", barcode.Point{X: 10, Y: 10}, barcode.Point{X: 90, Y: 10}, barcode.Point{X: 90, Y: 90}),
	}}
	p := buildWithBackend(t, backend)

	res, err := p.DecodeImage(testutil.CreateTestImage(120, 120, color.White))
	require.NoError(t, err)
	require.True(t, res.Found())

	// Third variant in the default recipe wins; nothing after it runs.
	require.Len(t, res.Barcodes, 1)
	assert.Equal(t, "otsu", res.Barcodes[0].Variant)
	assert.Equal(t, "qr", res.Barcodes[0].Format)
	assert.Equal(t, "hello", res.Barcodes[0].Payload)
	assert.Equal(t, 3, backend.callCount())

	require.Len(t, res.Attempts, 3)
	assert.Equal(t, "original", res.Attempts[0].Variant)
	assert.Equal(t, "gray", res.Attempts[1].Variant)
	assert.Equal(t, "otsu", res.Attempts[2].Variant)
	assert.NotEmpty(t, res.Attempts[0].Error)
	assert.Empty(t, res.Attempts[2].Error)
	assert.Positive(t, res.Processing.TotalNs)
}

func TestDecodeImage_ExhaustionKeepsTrail(t *testing.T) {
	backend := &scriptedBackend{}
	p := buildWithBackend(t, backend)

	res, err := p.DecodeImage(testutil.CreateTestImage(64, 64, color.White))
	require.ErrorIs(t, err, ErrNoBarcode)
	require.NotNil(t, res, "exhaustion still returns the trail")
	assert.False(t, res.Found())

	names := preprocess.Names()
	require.Len(t, res.Attempts, len(names))
	for i, att := range res.Attempts {
		assert.Equal(t, names[i], att.Variant)
		assert.Equal(t, "stub", att.Engine)
	}
}

func TestDecodeImage_FormatFilterRecordsSkipped(t *testing.T) {
	var gotFormats []barcode.Format
	backend := &scriptedBackend{script: []func(barcode.Options) ([]barcode.Result, error){
		func(opts barcode.Options) ([]barcode.Result, error) {
			gotFormats = opts.Formats
			return []barcode.Result{{Format: barcode.FormatEAN13, Payload: "5901234123457", Engine: "stub"}}, nil
		},
	}}
	p := buildWithBackend(t, backend, func(b *Builder) { b.WithFormats(barcode.FormatQR) })

	res, err := p.DecodeImage(testutil.CreateTestImage(64, 64, color.White))
	require.ErrorIs(t, err, ErrNoBarcode)

	// The backend decodes broadly; filtering happens in the pipeline so
	// the mismatch is visible as a skipped tag, not a silent miss.
	assert.Nil(t, gotFormats)
	require.NotEmpty(t, res.Attempts)
	assert.Equal(t, []string{"ean13"}, res.Attempts[0].Skipped)
	assert.Empty(t, res.Barcodes)
}

func TestDecodeImage_EmptyPayloadRejected(t *testing.T) {
	backend := &scriptedBackend{script: []func(barcode.Options) ([]barcode.Result, error){
		hit(barcode.FormatQR, ""),
		hit(barcode.FormatQR, "second try"),
	}}
	p := buildWithBackend(t, backend)

	res, err := p.DecodeImage(testutil.CreateTestImage(64, 64, color.White))
	require.NoError(t, err)
	require.Len(t, res.Barcodes, 1)
	assert.Equal(t, "second try", res.Barcodes[0].Payload)
	assert.Equal(t, "gray", res.Barcodes[0].Variant)
	assert.Equal(t, []string{"qr"}, res.Attempts[0].Skipped)
}

func TestDecodeImage_MultiCollectsAll(t *testing.T) {
	var gotMulti bool
	backend := &scriptedBackend{script: []func(barcode.Options) ([]barcode.Result, error){
		func(opts barcode.Options) ([]barcode.Result, error) {
			gotMulti = opts.Multi
			return []barcode.Result{
				{Format: barcode.FormatQR, Payload: "one", Engine: "stub"},
				{Format: barcode.FormatQR, Payload: "two", Engine: "stub"},
			}, nil
		},
	}}
	p := buildWithBackend(t, backend, func(b *Builder) { b.WithMulti(true) })

	res, err := p.DecodeImage(testutil.CreateTestImage(64, 64, color.White))
	require.NoError(t, err)
	assert.True(t, gotMulti)
	require.Len(t, res.Barcodes, 2)
	assert.Equal(t, "one", res.Barcodes[0].Payload)
	assert.Equal(t, "two", res.Barcodes[1].Payload)
}

func TestDecodeImage_UpscaleMapsPointsBack(t *testing.T) {
	backend := &scriptedBackend{script: []func(barcode.Options) ([]barcode.Result, error){
		hit(barcode.FormatQR, "scaled",
			barcode.Point{X: 100, Y: 40},
			barcode.Point{X: 200, Y: 40},
			barcode.Point{X: 200, Y: 80}),
	}}
	p := buildWithBackend(t, backend, func(b *Builder) { b.WithVariants("upscale") })

	res, err := p.DecodeImage(testutil.CreateTestImage(120, 60, color.White))
	require.NoError(t, err)
	require.Len(t, res.Barcodes, 1)

	bc := res.Barcodes[0]
	require.Len(t, bc.Points, 3)
	assert.Equal(t, struct{ X, Y int }{50, 20}, bc.Points[0])
	assert.Equal(t, struct{ X, Y int }{100, 20}, bc.Points[1])
	assert.Equal(t, struct{ X, Y int }{100, 40}, bc.Points[2])
	assert.Equal(t, 50, bc.Box.X)
	assert.Equal(t, 20, bc.Box.Y)
	assert.Equal(t, 51, bc.Box.W)
	assert.Equal(t, 21, bc.Box.H)
}

func TestDecodeImage_ToolRunsFirstAndFallsThrough(t *testing.T) {
	tool := &scriptedTool{err: &zxing.ToolError{Msg: "no barcode found"}}
	backend := &scriptedBackend{script: []func(barcode.Options) ([]barcode.Result, error){
		hit(barcode.FormatQR, "library got it"),
	}}
	p := buildWithBackend(t, backend)
	p.tool = tool
	p.cfg.Zxing.Workdir = t.TempDir()

	res, err := p.DecodeImage(testutil.CreateTestImage(64, 64, color.White))
	require.NoError(t, err)
	require.Len(t, res.Barcodes, 1)
	assert.Equal(t, "library got it", res.Barcodes[0].Payload)

	require.Len(t, res.Attempts, 2)
	assert.Equal(t, zxing.Engine, res.Attempts[0].Engine)
	assert.Contains(t, res.Attempts[0].Error, "no barcode found")
	assert.Equal(t, "stub", res.Attempts[1].Engine)

	// The staged variant uses the historical naming and is gone after
	// the scan.
	paths := tool.seenPaths()
	require.Len(t, paths, 1)
	assert.Equal(t, "image_original.png", filepath.Base(paths[0]))
	_, statErr := os.Stat(paths[0])
	assert.True(t, os.IsNotExist(statErr))
}

func TestDecodeImage_ToolWinsBeforeLibrary(t *testing.T) {
	tool := &scriptedTool{results: []barcode.Result{{
		Format:  barcode.FormatPDF417,
		Payload: "[)>06",
		Engine:  zxing.Engine,
	}}}
	backend := &scriptedBackend{}
	p := buildWithBackend(t, backend)
	p.tool = tool
	p.cfg.Zxing.Workdir = t.TempDir()

	res, err := p.DecodeImage(testutil.CreateTestImage(64, 64, color.White))
	require.NoError(t, err)
	require.Len(t, res.Barcodes, 1)
	assert.Equal(t, "pdf417", res.Barcodes[0].Format)
	assert.Equal(t, zxing.Engine, res.Barcodes[0].Engine)
	assert.Equal(t, "original", res.Barcodes[0].Variant)

	assert.Equal(t, 0, backend.callCount(), "library must not run once the tool matched")
	require.Len(t, res.Attempts, 1)
}

func TestDecodeImage_ToolHitFilteredOut(t *testing.T) {
	tool := &scriptedTool{results: []barcode.Result{{
		Format:  barcode.FormatEAN13,
		Payload: "5901234123457",
		Engine:  zxing.Engine,
	}}}
	backend := &scriptedBackend{}
	p := buildWithBackend(t, backend, func(b *Builder) {
		b.WithFormats(barcode.FormatQR).WithVariants("original")
	})
	p.tool = tool
	p.cfg.Zxing.Workdir = t.TempDir()

	res, err := p.DecodeImage(testutil.CreateTestImage(64, 64, color.White))
	require.ErrorIs(t, err, ErrNoBarcode)

	require.Len(t, res.Attempts, 2)
	assert.Equal(t, []string{"ean13"}, res.Attempts[0].Skipped)
	assert.Equal(t, 1, backend.callCount())
}

func TestDecodeImage_SaveVariantsWritesCopies(t *testing.T) {
	dir := t.TempDir()
	backend := &scriptedBackend{}
	p := buildWithBackend(t, backend, func(b *Builder) {
		b.WithVariants("original", "gray").WithSaveVariants(dir)
	})

	_, err := p.DecodeImage(testutil.CreateTestImage(32, 32, color.White))
	require.ErrorIs(t, err, ErrNoBarcode)

	assert.FileExists(t, filepath.Join(dir, "image_original.png"))
	assert.FileExists(t, filepath.Join(dir, "image_gray.png"))
}

func TestDecodeImage_ContextCanceled(t *testing.T) {
	backend := &scriptedBackend{}
	p := buildWithBackend(t, backend)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := p.DecodeImageContext(ctx, testutil.CreateTestImage(32, 32, color.White))
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Empty(t, res.Attempts)
	assert.Equal(t, 0, backend.callCount())
}

func TestDecodeImage_NilImage(t *testing.T) {
	p := buildWithBackend(t, &scriptedBackend{})

	res, err := p.DecodeImage(nil)
	require.Error(t, err)
	assert.Nil(t, res)

	var procErr *utils.ImageProcessingError
	assert.ErrorAs(t, err, &procErr)
}

func TestDecodeFile_MissingFailsBeforeScan(t *testing.T) {
	backend := &scriptedBackend{}
	p := buildWithBackend(t, backend)

	res, err := p.DecodeFile(filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, 0, backend.callCount(), "no attempt may run for unreadable input")
}

func TestDecodeFile_CleanQR(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ticket.png")
	testutil.SaveImage(t, qrTestImage(t), path)

	p, err := NewBuilder().Build()
	require.NoError(t, err)

	res, err := p.DecodeFile(path)
	require.NoError(t, err)
	require.True(t, res.Found())

	bc := res.Barcodes[0]
	assert.Equal(t, "qr", bc.Format)
	assert.Equal(t, "https://example.com/item/42", bc.Payload)
	assert.Equal(t, barcode.EngineGozxing, bc.Engine)
	assert.Equal(t, path, res.Source)
	assert.NoError(t, ValidateScanResult(res))
}

func TestDecodeFile_CleanQRWithFilterMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ticket.png")
	testutil.SaveImage(t, qrTestImage(t), path)

	p, err := NewBuilder().WithFormats(barcode.FormatPDF417).Build()
	require.NoError(t, err)

	res, err := p.DecodeFile(path)
	require.ErrorIs(t, err, ErrNoBarcode)
	assert.Empty(t, res.Barcodes)

	// At least one attempt must have seen the QR symbol and skipped it.
	skippedQR := false
	for _, att := range res.Attempts {
		for _, tag := range att.Skipped {
			if tag == "qr" {
				skippedQR = true
			}
		}
	}
	assert.True(t, skippedQR, "filter mismatch must be recorded as a skipped tag")
}

func TestVariantStem(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"", "image"},
		{"/data/scans/ticket.png", "ticket"},
		{"label.jpeg", "label"},
		{"noext", "noext"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, variantStem(tt.source), "source %q", tt.source)
	}
}

func TestToBarcodeResult_IdentityScale(t *testing.T) {
	r := barcode.Result{
		Format:  barcode.FormatCode128,
		Payload: "ABC",
		Points:  []barcode.Point{{X: 5, Y: 7}, {X: 50, Y: 7}},
		BBox:    image.Rect(5, 7, 51, 8),
		Engine:  "stub",
	}
	tr := preprocess.Transform{Name: "gray", Scale: 1}

	out := toBarcodeResult(r, tr)
	assert.Equal(t, "code128", out.Format)
	assert.Equal(t, "gray", out.Variant)
	assert.Equal(t, 5, out.Box.X)
	assert.Equal(t, 46, out.Box.W)
	require.Len(t, out.Points, 2)
	assert.Equal(t, struct{ X, Y int }{5, 7}, out.Points[0])
}

func TestStageToolInput_FallbackOnCollision(t *testing.T) {
	dir := t.TempDir()
	p := buildWithBackend(t, &scriptedBackend{})
	p.cfg.Zxing.Workdir = dir

	img := testutil.CreateTestImage(16, 16, color.White)

	first, cleanup1, err := p.stageToolInput(img, "scan", "otsu")
	require.NoError(t, err)
	defer cleanup1()
	assert.Equal(t, filepath.Join(dir, "scan_otsu.png"), first)

	second, cleanup2, err := p.stageToolInput(img, "scan", "otsu")
	require.NoError(t, err)
	defer cleanup2()
	assert.NotEqual(t, first, second, "collision must yield a distinct staging file")

	cleanup1()
	_, statErr := os.Stat(first)
	assert.True(t, os.IsNotExist(statErr))
}

func TestErrNoBarcodeIsSentinel(t *testing.T) {
	err := ErrNoBarcode
	assert.True(t, errors.Is(err, ErrNoBarcode))
	assert.False(t, errors.Is(err, barcode.ErrNotFound))
}
