package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"
)

// ParallelConfig controls batch decoding.
type ParallelConfig struct {
	MaxWorkers   int                                       // parallel workers, 0 means runtime.NumCPU()
	Progress     ProgressCallback                          // optional progress reporting
	ErrorHandler func(index int, source string, err error) // optional per-item failure hook
}

// DefaultParallelConfig returns sensible defaults for batch decoding.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{MaxWorkers: runtime.NumCPU()}
}

type parallelJob struct {
	source string
	run    func(ctx context.Context) (*ScanResult, error)
}

// DecodeImagesParallel scans in-memory images through a worker pool.
func (p *Pipeline) DecodeImagesParallel(images []image.Image, cfg ParallelConfig) ([]*ScanResult, error) {
	return p.DecodeImagesParallelContext(context.Background(), images, cfg)
}

// DecodeImagesParallelContext scans in-memory images through a worker
// pool. Results keep input order. A scan that found nothing keeps its
// result in place; only hard failures surface through the returned
// error and the ErrorHandler.
func (p *Pipeline) DecodeImagesParallelContext(ctx context.Context, images []image.Image, cfg ParallelConfig) ([]*ScanResult, error) {
	if len(images) == 0 {
		return nil, errors.New("no images provided")
	}
	if p == nil || p.backend == nil {
		return nil, errors.New("pipeline not initialized")
	}
	jobs := make([]parallelJob, len(images))
	for i, img := range images {
		jobs[i] = parallelJob{
			source: fmt.Sprintf("image[%d]", i),
			run: func(ctx context.Context) (*ScanResult, error) {
				return p.DecodeImageContext(ctx, img)
			},
		}
	}
	return p.runParallel(ctx, jobs, cfg)
}

// DecodeFilesParallel scans image files through a worker pool.
func (p *Pipeline) DecodeFilesParallel(paths []string, cfg ParallelConfig) ([]*ScanResult, error) {
	return p.DecodeFilesParallelContext(context.Background(), paths, cfg)
}

// DecodeFilesParallelContext scans image files through a worker pool
// with the same ordering and error semantics as the image variant.
func (p *Pipeline) DecodeFilesParallelContext(ctx context.Context, paths []string, cfg ParallelConfig) ([]*ScanResult, error) {
	if len(paths) == 0 {
		return nil, errors.New("no files provided")
	}
	if p == nil || p.backend == nil {
		return nil, errors.New("pipeline not initialized")
	}
	jobs := make([]parallelJob, len(paths))
	for i, path := range paths {
		jobs[i] = parallelJob{
			source: path,
			run: func(ctx context.Context) (*ScanResult, error) {
				return p.DecodeFileContext(ctx, path)
			},
		}
	}
	return p.runParallel(ctx, jobs, cfg)
}

func (p *Pipeline) runParallel(ctx context.Context, jobs []parallelJob, cfg ParallelConfig) ([]*ScanResult, error) {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	if cfg.Progress != nil {
		cfg.Progress.OnStart(len(jobs))
		defer cfg.Progress.OnComplete()
	}

	results := make([]*ScanResult, len(jobs))
	errs := make([]error, len(jobs))

	if len(jobs) == 1 || cfg.MaxWorkers == 1 {
		for i, job := range jobs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i], errs[i] = job.run(ctx)
			if cfg.Progress != nil {
				cfg.Progress.OnProgress(i+1, len(jobs))
			}
		}
	} else if err := p.runWorkers(ctx, jobs, cfg, results, errs); err != nil {
		return nil, err
	}

	var firstErr error
	for i, err := range errs {
		// Exhausting every variant is a normal outcome for an item,
		// not a batch failure; the result keeps the attempt trail.
		if err == nil || errors.Is(err, ErrNoBarcode) {
			continue
		}
		if cfg.ErrorHandler != nil {
			cfg.ErrorHandler(i, jobs[i].source, err)
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", jobs[i].source, err)
		}
	}
	return results, firstErr
}

func (p *Pipeline) runWorkers(ctx context.Context, jobs []parallelJob, cfg ParallelConfig, results []*ScanResult, errs []error) error {
	type outcome struct {
		index int
		res   *ScanResult
		err   error
	}

	jobCh := make(chan int, len(jobs))
	outCh := make(chan outcome, len(jobs))

	var wg sync.WaitGroup
	workers := min(cfg.MaxWorkers, len(jobs))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case i, ok := <-jobCh:
					if !ok {
						return
					}
					res, err := jobs[i].run(ctx)
					select {
					case outCh <- outcome{index: i, res: res, err: err}:
					case <-ctx.Done():
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobCh)
		for i := range jobs {
			select {
			case jobCh <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outCh)
	}()

	done := 0
	for out := range outCh {
		results[out.index], errs[out.index] = out.res, out.err
		done++
		if cfg.Progress != nil {
			cfg.Progress.OnProgress(done, len(jobs))
		}
	}
	return ctx.Err()
}
