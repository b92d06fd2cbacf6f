package pdf

import (
	"context"
	"image"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/bargo/internal/barcode"
	"github.com/MeKo-Tech/bargo/internal/pipeline"
)

// fixedBackend reports one QR hit per decode call.
type fixedBackend struct{ hits []barcode.Result }

func (f fixedBackend) Decode(context.Context, image.Image, barcode.Options) ([]barcode.Result, error) {
	if len(f.hits) == 0 {
		return nil, barcode.ErrNotFound
	}
	return f.hits, nil
}

func (fixedBackend) Name() string { return "stub" }

func stubPipeline(t *testing.T, backend barcode.Backend) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.NewBuilder().WithVariants("original").WithBackend(backend).Build()
	require.NoError(t, err)
	return p
}

func grayImage(w, h int) image.Image {
	return image.NewGray(image.Rect(0, 0, w, h))
}

func TestDefaultProcessorConfig(t *testing.T) {
	cfg := DefaultProcessorConfig()
	assert.True(t, cfg.AllowPasswords)
	assert.Zero(t, cfg.MaxWorkers)
}

func TestNewProcessorWithConfig_NilUsesDefaults(t *testing.T) {
	p := NewProcessorWithConfig(nil, nil)
	require.NotNil(t, p.Config())
	assert.True(t, p.Config().AllowPasswords)
}

func TestDecodeFile_UninitializedProcessor(t *testing.T) {
	var p *Processor
	_, err := p.DecodeFile("doc.pdf", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")
}

func TestDecodeFile_MissingDocument(t *testing.T) {
	hit := barcode.Result{Format: barcode.FormatQR, Payload: "x", Engine: "stub"}
	p := NewProcessor(stubPipeline(t, fixedBackend{hits: []barcode.Result{hit}}))

	_, err := p.DecodeFile(filepath.Join(t.TempDir(), "missing.pdf"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to check PDF encryption")
}

func TestDecodeFile_MissingDocumentWithoutPasswordSupport(t *testing.T) {
	hit := barcode.Result{Format: barcode.FormatQR, Payload: "x", Engine: "stub"}
	p := NewProcessorWithConfig(stubPipeline(t, fixedBackend{hits: []barcode.Result{hit}}),
		&ProcessorConfig{AllowPasswords: false})

	_, err := p.DecodeFile(filepath.Join(t.TempDir(), "missing.pdf"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read PDF")
}

func TestDecodePage(t *testing.T) {
	hit := barcode.Result{Format: barcode.FormatQR, Payload: "page-hit", Engine: "stub"}
	p := NewProcessor(stubPipeline(t, fixedBackend{hits: []barcode.Result{hit}}))

	images := []image.Image{grayImage(200, 100), grayImage(80, 300)}
	res, err := p.decodePage(context.Background(), 4, images)
	require.NoError(t, err)

	assert.Equal(t, 4, res.PageNumber)
	assert.Equal(t, 200, res.Width, "page width is the widest image")
	assert.Equal(t, 300, res.Height, "page height is the tallest image")
	require.Len(t, res.Images, 2)
	assert.Equal(t, 0, res.Images[0].ImageIndex)
	assert.Equal(t, 1, res.Images[1].ImageIndex)
	for _, img := range res.Images {
		require.Len(t, img.Barcodes, 1)
		assert.Equal(t, "page-hit", img.Barcodes[0].Payload)
		assert.Equal(t, 1, img.Attempts)
	}
}

func TestDecodePage_NoHitsIsNotAnError(t *testing.T) {
	p := NewProcessor(stubPipeline(t, fixedBackend{}))

	res, err := p.decodePage(context.Background(), 1, []image.Image{grayImage(64, 64)})
	require.NoError(t, err)
	require.Len(t, res.Images, 1)
	assert.Empty(t, res.Images[0].Barcodes)
	assert.Equal(t, 1, res.Images[0].Attempts, "the trail length survives aggregation")
}

func TestDecodePage_ContextCanceled(t *testing.T) {
	p := NewProcessor(stubPipeline(t, fixedBackend{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.decodePage(ctx, 1, []image.Image{grayImage(64, 64)})
	require.ErrorIs(t, err, context.Canceled)
}

func TestDecodeAllPages_SortedAssembly(t *testing.T) {
	hit := barcode.Result{Format: barcode.FormatQR, Payload: "x", Engine: "stub"}
	p := NewProcessorWithConfig(stubPipeline(t, fixedBackend{hits: []barcode.Result{hit}}),
		&ProcessorConfig{MaxWorkers: 3})

	pageImages := map[int][]image.Image{
		3: {grayImage(10, 10)},
		1: {grayImage(10, 10), grayImage(12, 12)},
		2: {grayImage(10, 10)},
	}

	pages, _, err := p.decodeAllPages(context.Background(), pageImages)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, 1, pages[0].PageNumber)
	assert.Equal(t, 2, pages[1].PageNumber)
	assert.Equal(t, 3, pages[2].PageNumber)
	assert.Len(t, pages[0].Images, 2)
}

func TestDecodeAllPages_Empty(t *testing.T) {
	p := NewProcessor(stubPipeline(t, fixedBackend{}))
	pages, decodeTime, err := p.decodeAllPages(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, pages)
	assert.Zero(t, decodeTime)
}
