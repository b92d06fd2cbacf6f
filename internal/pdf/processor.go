package pdf

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/MeKo-Tech/bargo/internal/pipeline"
)

// ProcessorConfig controls PDF decode behavior.
type ProcessorConfig struct {
	// Attempt to decrypt password-protected documents.
	AllowPasswords bool
	// Concurrent page workers, 0 means NumCPU.
	MaxWorkers int
}

// DefaultProcessorConfig returns the default processor configuration.
func DefaultProcessorConfig() *ProcessorConfig {
	return &ProcessorConfig{
		AllowPasswords: true,
		MaxWorkers:     0,
	}
}

// Processor decodes barcodes from PDF documents by extracting the
// embedded page images and running each through the scan pipeline.
type Processor struct {
	pipe      *pipeline.Pipeline
	config    *ProcessorConfig
	passwords *PasswordHandler
	tempFiles []string
}

// NewProcessor creates a PDF processor around the given pipeline.
func NewProcessor(pipe *pipeline.Pipeline) *Processor {
	return NewProcessorWithConfig(pipe, DefaultProcessorConfig())
}

// NewProcessorWithConfig creates a PDF processor with custom configuration.
func NewProcessorWithConfig(pipe *pipeline.Pipeline, config *ProcessorConfig) *Processor {
	if config == nil {
		config = DefaultProcessorConfig()
	}
	return &Processor{
		pipe:      pipe,
		config:    config,
		passwords: NewPasswordHandler(),
	}
}

// DecodeFile scans one PDF document and returns the per-page results.
func (p *Processor) DecodeFile(filename, pageRange string) (*DocumentResult, error) {
	return p.DecodeFileContext(context.Background(), filename, pageRange)
}

// DecodeFileContext scans one PDF document honoring the context.
func (p *Processor) DecodeFileContext(ctx context.Context, filename, pageRange string) (*DocumentResult, error) {
	return p.DecodeFileWithCredentials(ctx, filename, pageRange, nil)
}

// DecodeFileWithCredentials scans a possibly encrypted PDF document.
func (p *Processor) DecodeFileWithCredentials(ctx context.Context, filename, pageRange string,
	creds *PasswordCredentials,
) (*DocumentResult, error) {
	if p == nil || p.pipe == nil {
		return nil, errors.New("pdf processor not initialized")
	}
	start := time.Now()

	workingFile, err := p.unlockIfNeeded(filename, creds)
	if err != nil {
		return nil, err
	}
	defer p.cleanupTempFiles()

	totalPages, err := PageCount(workingFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}

	extractStart := time.Now()
	pageImages, err := ExtractPageImages(workingFile, pageRange)
	if err != nil {
		return nil, err
	}
	extractTime := time.Since(extractStart)
	slog.Debug("Extracted PDF images",
		"file", filename,
		"pages", len(pageImages),
		"duration_ms", extractTime.Milliseconds())

	pages, decodeTime, err := p.decodeAllPages(ctx, pageImages)
	if err != nil {
		return nil, err
	}

	return &DocumentResult{
		Filename:   filename,
		TotalPages: totalPages,
		Pages:      pages,
		Processing: ProcessingInfo{
			ExtractionTimeMs: extractTime.Milliseconds(),
			DecodeTimeMs:     decodeTime.Milliseconds(),
			TotalTimeMs:      time.Since(start).Milliseconds(),
		},
	}, nil
}

// DecodeFiles scans multiple PDF documents sequentially.
func (p *Processor) DecodeFiles(ctx context.Context, filenames []string, pageRange string) ([]*DocumentResult, error) {
	results := make([]*DocumentResult, 0, len(filenames))
	for _, filename := range filenames {
		result, err := p.DecodeFileContext(ctx, filename, pageRange)
		if err != nil {
			return nil, fmt.Errorf("failed to process %s: %w", filename, err)
		}
		results = append(results, result)
	}
	return results, nil
}

// unlockIfNeeded decrypts a protected document into a temp file that is
// removed after processing.
func (p *Processor) unlockIfNeeded(filename string, creds *PasswordCredentials) (string, error) {
	if !p.config.AllowPasswords {
		return filename, nil
	}

	encrypted, err := p.passwords.IsEncrypted(filename)
	if err != nil {
		return "", fmt.Errorf("failed to check PDF encryption: %w", err)
	}
	if !encrypted {
		return filename, nil
	}

	workingFile, err := p.passwords.DecryptPDF(filename, creds)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt PDF: %w", err)
	}
	if workingFile != filename {
		p.tempFiles = append(p.tempFiles, workingFile)
	}
	return workingFile, nil
}

// decodeAllPages fans page decoding out over a worker pool and
// reassembles the results in page order.
func (p *Processor) decodeAllPages(ctx context.Context, pageImages map[int][]image.Image,
) ([]PageResult, time.Duration, error) {
	pageList := make([]int, 0, len(pageImages))
	for n := range pageImages {
		pageList = append(pageList, n)
	}
	sort.Ints(pageList)
	if len(pageList) == 0 {
		return nil, 0, nil
	}

	type out struct {
		page int
		res  *PageResult
		err  error
	}

	workers := p.config.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(pageList) {
		workers = len(pageList)
	}

	jobs := make(chan int, len(pageList))
	results := make(chan out, len(pageList))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pageNum := range jobs {
				pr, err := p.decodePage(ctx, pageNum, pageImages[pageNum])
				results <- out{page: pageNum, res: pr, err: err}
			}
		}()
	}

	for _, n := range pageList {
		jobs <- n
	}
	close(jobs)

	go func() { wg.Wait(); close(results) }()

	var firstErr error
	var decodeTime time.Duration
	byPage := make(map[int]PageResult, len(pageList))
	for r := range results {
		if r.err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to process page %d: %w", r.page, r.err)
		}
		if r.res != nil {
			byPage[r.page] = *r.res
			decodeTime += time.Duration(r.res.Processing.DecodeTimeMs) * time.Millisecond
		}
	}
	if firstErr != nil {
		return nil, 0, firstErr
	}

	pages := make([]PageResult, 0, len(pageList))
	for _, n := range pageList {
		if pr, ok := byPage[n]; ok {
			pages = append(pages, pr)
		}
	}
	return pages, decodeTime, nil
}

// decodePage runs every image of one page through the pipeline. A scan
// that found nothing is a normal outcome; only hard failures propagate.
func (p *Processor) decodePage(ctx context.Context, pageNum int, images []image.Image) (*PageResult, error) {
	start := time.Now()
	result := &PageResult{PageNumber: pageNum, Images: make([]ImageResult, 0, len(images))}

	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bounds := img.Bounds()
		if bounds.Dx() > result.Width {
			result.Width = bounds.Dx()
		}
		if bounds.Dy() > result.Height {
			result.Height = bounds.Dy()
		}

		scan, err := p.pipe.DecodeImageContext(ctx, img)
		if err != nil && !errors.Is(err, pipeline.ErrNoBarcode) {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}

		imageResult := ImageResult{
			ImageIndex: i,
			Width:      bounds.Dx(),
			Height:     bounds.Dy(),
		}
		if scan != nil {
			imageResult.Barcodes = scan.Barcodes
			imageResult.Attempts = len(scan.Attempts)
		}
		result.Images = append(result.Images, imageResult)
	}

	elapsed := time.Since(start)
	result.Processing = ProcessingInfo{
		DecodeTimeMs: elapsed.Milliseconds(),
		TotalTimeMs:  elapsed.Milliseconds(),
	}
	return result, nil
}

// SetPasswordCredentials sets default credentials tried on encrypted
// documents.
func (p *Processor) SetPasswordCredentials(creds *PasswordCredentials) {
	p.passwords.SetDefaultCredentials(creds)
}

// Config returns the current processor configuration.
func (p *Processor) Config() *ProcessorConfig {
	return p.config
}

// Close removes any temporary files left by decryption.
func (p *Processor) Close() error {
	p.cleanupTempFiles()
	return nil
}

func (p *Processor) cleanupTempFiles() {
	for _, tempFile := range p.tempFiles {
		if err := p.passwords.CleanupTempFile(tempFile); err != nil {
			_ = os.Remove(tempFile)
		}
	}
	p.tempFiles = p.tempFiles[:0]
}
