package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/bargo/internal/benchmark"
)

func main() {
	var (
		testdataDir = flag.String("testdata", "testdata", "Directory containing the generated test images")
		iterations  = flag.Int("iterations", 3, "Number of iterations per benchmark")
		outputFile  = flag.String("output", "", "Output file for results (optional)")
		verbose     = flag.Bool("verbose", false, "Verbose output")
	)
	flag.Parse()

	fmt.Println("bargo Preprocessing Ladder Benchmark")
	fmt.Println("============================================")

	// Check if the test data directory exists
	if _, err := os.Stat(*testdataDir); os.IsNotExist(err) {
		log.Fatalf("Test data directory not found: %s (run cmd/generate-test-data first)", *testdataDir)
	}

	// Create benchmark
	ladderBench := benchmark.NewVariantLadderBenchmark()

	// Add additional test images if they exist
	additionalImages := []struct {
		path, desc, size string
	}{
		{"testdata/images/degraded/qr_blur.png", "Blurred QR", "Small"},
		{"testdata/images/degraded/qr_noise.png", "Noisy QR", "Small"},
		{"testdata/images/degraded/qr_lowcontrast.png", "Low contrast QR", "Small"},
		{"testdata/images/rotated/qr_rot15.png", "Rotated QR", "Small"},
	}

	for _, img := range additionalImages {
		if fileExists(img.path) {
			ladderBench.AddTestImage(img.path, img.desc, img.size)
			if *verbose {
				fmt.Printf("Added test image: %s\n", img.path)
			}
		}
	}

	// Run benchmarks
	fmt.Printf("Running benchmarks with %d iterations per test...\n\n", *iterations)

	results, err := ladderBench.RunBenchmark(*iterations)
	if err != nil {
		log.Fatalf("Benchmark failed: %v", err)
	}

	// Print detailed results
	ladderBench.PrintDetailedResults()

	// Save results to file if requested
	if *outputFile != "" {
		if err := saveResultsToFile(*outputFile, results); err != nil {
			log.Printf("Failed to save results to file: %v", err)
		} else {
			fmt.Printf("Results saved to: %s\n", *outputFile)
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

func saveResultsToFile(filename string, results []benchmark.LadderComparisonResult) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	// Write header
	_, _ = fmt.Fprintln(file, "bargo Preprocessing Ladder Benchmark Results")
	_, _ = fmt.Fprintln(file, "======================================")
	_, _ = fmt.Fprintln(file)

	// Write individual results
	for _, result := range results {
		_, _ = fmt.Fprintf(file, "%s\n", result.String())
	}

	_, _ = fmt.Fprintln(file)
	_, _ = fmt.Fprintln(file, "CSV Format:")
	_, _ = fmt.Fprintln(file, "Image,Size,Baseline_Duration_ms,Full_Duration_ms,Cost_Factor,Memory_Diff_KB,Rescued")

	for _, result := range results {
		baselineMs := float64(result.BaselineResult.Duration.Nanoseconds()) / 1e6
		fullMs := float64(result.FullResult.Duration.Nanoseconds()) / 1e6
		rescued := result.FullDecoded && !result.BaselineDecoded

		_, _ = fmt.Fprintf(file, "%s,%s,%.2f,%.2f,%.2f,%d,%t\n",
			filepath.Base(result.ImagePath),
			result.ImageSize,
			baselineMs,
			fullMs,
			result.CostFactor,
			result.MemoryDiff,
			rescued,
		)
	}

	return nil
}
