package batch

import (
	"fmt"
	"os"
	"time"

	"github.com/MeKo-Tech/bargo/internal/pipeline"
)

// Config holds all configuration for batch processing.
type Config struct {
	// Decode settings applied to every image.
	Variants  []string
	Formats   []string
	TryHarder bool
	Multi     bool

	// External ZXing engine.
	Zxing          bool
	ZxingContainer string
	ZxingImage     string
	ZxingTimeout   time.Duration

	// Worker pool size, 0 means one worker per CPU.
	Workers int

	// File discovery.
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Record failed files and keep going instead of aborting the run.
	ContinueOnError bool

	// Progress and output.
	ShowProgress     bool
	Quiet            bool
	ShowStats        bool
	ProgressInterval time.Duration
	Format           string
	OutputFile       string
	OverlayDir       string
	SaveVariantsDir  string
}

// Failure records a file the batch could not process.
type Failure struct {
	Path string
	Err  error
}

// Result holds the results of batch processing. Results keeps input
// order; entries stay nil for files that failed outright.
type Result struct {
	Results     []*pipeline.ScanResult
	ImagePaths  []string
	Failures    []Failure
	Duration    time.Duration
	WorkerCount int
}

// FormatResults formats the batch results in the specified format.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r.Results, r.ImagePaths, format)
}

// SaveResults saves the results to a file or prints to stdout.
func (r *Result) SaveResults(format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !quiet {
			fmt.Printf("Results written to %s\n", outputFile)
		}
	} else {
		fmt.Print(output)
	}

	return nil
}

// PrintStats prints processing statistics unless quiet.
func (r *Result) PrintStats(quiet bool) {
	if quiet {
		return
	}

	processed := 0
	decoded := 0
	for _, res := range r.Results {
		if res == nil {
			continue
		}
		processed++
		if res.Found() {
			decoded++
		}
	}
	failed := len(r.ImagePaths) - processed

	fmt.Printf("\nProcessing Statistics:\n")
	fmt.Printf("  Total images: %d\n", len(r.ImagePaths))
	fmt.Printf("  Processed: %d\n", processed)
	fmt.Printf("  Decoded: %d\n", decoded)
	fmt.Printf("  Failed: %d\n", failed)
	fmt.Printf("  Workers: %d\n", r.WorkerCount)
	fmt.Printf("  Duration: %v\n", r.Duration.Round(time.Millisecond))
	if processed > 0 && r.Duration > 0 {
		avg := r.Duration / time.Duration(processed)
		fmt.Printf("  Avg per image: %v\n", avg.Round(time.Millisecond))
		fmt.Printf("  Throughput: %.1f images/sec\n", float64(processed)/r.Duration.Seconds())
	}
}
