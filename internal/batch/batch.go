// Package batch processes directories and file lists of barcode images
// through a shared decode pipeline with a worker pool, progress
// reporting and aggregated output.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/MeKo-Tech/bargo/internal/pipeline"
)

// ProcessBatch processes multiple images through the decode pipeline.
func ProcessBatch(imagePaths []string, config *Config) (*Result, error) {
	return ProcessBatchContext(context.Background(), imagePaths, config)
}

// ProcessBatchContext processes multiple images, honoring ctx for
// cancellation. The returned Result keeps one entry per discovered
// file in discovery order.
func ProcessBatchContext(ctx context.Context, imagePaths []string, config *Config) (*Result, error) {
	start := time.Now()

	files, err := discoverImageFiles(imagePaths, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.New("no image files found")
	}

	var progressCallback pipeline.ProgressCallback
	if config.ShowProgress && !config.Quiet {
		progressCallback = pipeline.NewConsoleProgressCallback(os.Stdout, "Processing: ").
			WithUpdateInterval(config.ProgressInterval)
	}

	pl, err := buildPipeline(config)
	if err != nil {
		return nil, fmt.Errorf("failed to build decode pipeline: %w", err)
	}

	results, failures, err := processImages(ctx, pl, files, config, progressCallback)
	if err != nil {
		return nil, err
	}

	if config.OverlayDir != "" {
		annotateResults(pl, results)
	}

	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &Result{
		Results:     results,
		ImagePaths:  files,
		Failures:    failures,
		Duration:    time.Since(start),
		WorkerCount: workers,
	}, nil
}
