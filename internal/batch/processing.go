package batch

import (
	"context"
	"log/slog"

	"github.com/MeKo-Tech/bargo/internal/pipeline"
	"github.com/MeKo-Tech/bargo/internal/utils"
)

// processImages decodes the discovered files through the pipeline's
// worker pool. Hard failures abort the run unless ContinueOnError is
// set; a scan that found no barcode is never a failure.
func processImages(ctx context.Context, pl *pipeline.Pipeline, imagePaths []string,
	config *Config, progress pipeline.ProgressCallback) ([]*pipeline.ScanResult, []Failure, error) {
	var failures []Failure

	// The error handler runs on the aggregation goroutine, so no lock
	// is needed around the failure list.
	pcfg := pipeline.ParallelConfig{
		MaxWorkers: config.Workers,
		Progress:   progress,
		ErrorHandler: func(_ int, source string, err error) {
			failures = append(failures, Failure{Path: source, Err: err})
		},
	}

	results, err := pl.DecodeFilesParallelContext(ctx, imagePaths, pcfg)
	if err != nil {
		if ctx.Err() != nil || !config.ContinueOnError {
			return nil, failures, err
		}
		slog.Warn("continuing past failed images", "failed", len(failures), "error", err)
	}

	return results, failures, nil
}

// annotateResults writes annotated copies for every scan that decoded a
// symbol. The parallel pool does not keep decoded pixels around, so the
// source image is reloaded here. Annotation problems are logged and
// never fail the batch.
func annotateResults(pl *pipeline.Pipeline, results []*pipeline.ScanResult) {
	for _, res := range results {
		if res == nil || !res.Found() {
			continue
		}
		img, _, err := utils.LoadImage(res.Source)
		if err != nil {
			slog.Warn("failed to reload image for annotation", "file", res.Source, "error", err)
			continue
		}
		path, err := pl.SaveAnnotated(img, res)
		if err != nil {
			slog.Warn("failed to save annotated image", "file", res.Source, "error", err)
			continue
		}
		slog.Debug("annotated image written", "file", path)
	}
}
