package benchmark

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/bargo/internal/pipeline"
	"github.com/MeKo-Tech/bargo/internal/testutil"
	"github.com/MeKo-Tech/bargo/internal/utils"
)

// Timer provides simple timing utilities for benchmarking.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
}

// NewTimer creates a new timer with the given name.
func NewTimer(name string) *Timer {
	return &Timer{
		name:  name,
		start: time.Now(),
	}
}

// Stop stops the timer and returns the elapsed duration.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration returns the recorded duration (only valid after Stop()).
func (t *Timer) Duration() time.Duration {
	return t.duration
}

// String returns a formatted string representation of the timer.
func (t *Timer) String() string {
	return fmt.Sprintf("%s: %v", t.name, t.duration)
}

// MemoryStats holds memory usage statistics.
type MemoryStats struct {
	AllocBytes      uint64  // Currently allocated bytes
	TotalAllocBytes uint64  // Total allocated bytes (cumulative)
	SysBytes        uint64  // Total bytes from system
	NumGC           uint32  // Number of GC runs
	GCCPUFraction   float64 // Fraction of CPU time spent in GC
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return MemoryStats{
		AllocBytes:      m.Alloc,
		TotalAllocBytes: m.TotalAlloc,
		SysBytes:        m.Sys,
		NumGC:           m.NumGC,
		GCCPUFraction:   m.GCCPUFraction,
	}
}

// String returns a formatted string representation of memory stats.
func (m MemoryStats) String() string {
	return fmt.Sprintf("Alloc: %d KB, Total: %d KB, Sys: %d KB, GC: %d (%.2f%% CPU)",
		m.AllocBytes/1024,
		m.TotalAllocBytes/1024,
		m.SysBytes/1024,
		m.NumGC,
		m.GCCPUFraction*100)
}

// BenchmarkResult holds the result of a benchmark run.
type BenchmarkResult struct {
	Name         string
	Duration     time.Duration
	MemoryBefore MemoryStats
	MemoryAfter  MemoryStats
	Iterations   int
	Error        error
}

// String returns a formatted string representation of the benchmark result.
func (br BenchmarkResult) String() string {
	if br.Error != nil {
		return fmt.Sprintf("%s: ERROR - %v", br.Name, br.Error)
	}

	memDiff := br.MemoryAfter.AllocBytes - br.MemoryBefore.AllocBytes
	avgDuration := br.Duration / time.Duration(br.Iterations)

	return fmt.Sprintf("%s: %d iterations, avg: %v, total: %v, mem: +%d KB",
		br.Name, br.Iterations, avgDuration, br.Duration, int64(memDiff)/1024) //nolint:gosec // G115: Safe conversion for memory display
}

// Benchmark represents a benchmark function.
type Benchmark struct {
	Name string
	Func func() error
}

// BenchmarkSuite manages multiple benchmarks.
type BenchmarkSuite struct {
	benchmarks []Benchmark
	results    []BenchmarkResult
	mu         sync.Mutex
}

// NewBenchmarkSuite creates a new benchmark suite.
func NewBenchmarkSuite() *BenchmarkSuite {
	return &BenchmarkSuite{
		benchmarks: make([]Benchmark, 0),
		results:    make([]BenchmarkResult, 0),
	}
}

// Add adds a benchmark to the suite.
func (bs *BenchmarkSuite) Add(name string, fn func() error) {
	bs.benchmarks = append(bs.benchmarks, Benchmark{
		Name: name,
		Func: fn,
	})
}

// Run runs a single benchmark with the specified number of iterations.
func (bs *BenchmarkSuite) Run(name string, iterations int) BenchmarkResult {
	var benchmark Benchmark
	found := false
	for _, b := range bs.benchmarks {
		if b.Name == name {
			benchmark = b
			found = true
			break
		}
	}

	if !found {
		return BenchmarkResult{
			Name:  name,
			Error: fmt.Errorf("benchmark '%s' not found", name),
		}
	}

	return bs.runBenchmark(benchmark, iterations)
}

// RunAll runs all benchmarks in the suite.
func (bs *BenchmarkSuite) RunAll(iterations int) []BenchmarkResult {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	bs.results = make([]BenchmarkResult, 0, len(bs.benchmarks))

	for _, benchmark := range bs.benchmarks {
		result := bs.runBenchmark(benchmark, iterations)
		bs.results = append(bs.results, result)
	}

	return bs.results
}

// runBenchmark executes a single benchmark.
func (bs *BenchmarkSuite) runBenchmark(benchmark Benchmark, iterations int) BenchmarkResult {
	// Force garbage collection before measuring
	runtime.GC()
	memBefore := GetMemoryStats()

	timer := NewTimer(benchmark.Name)
	var err error

	for i := 0; i < iterations; i++ {
		if e := benchmark.Func(); e != nil {
			err = e
			break
		}
	}

	duration := timer.Stop()
	memAfter := GetMemoryStats()

	return BenchmarkResult{
		Name:         benchmark.Name,
		Duration:     duration,
		MemoryBefore: memBefore,
		MemoryAfter:  memAfter,
		Iterations:   iterations,
		Error:        err,
	}
}

// Results returns the last run results.
func (bs *BenchmarkSuite) Results() []BenchmarkResult {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return bs.results
}

// PrintResults prints formatted benchmark results.
func (bs *BenchmarkSuite) PrintResults() {
	results := bs.Results()
	fmt.Println("\nBenchmark Results:")
	fmt.Println("==================")
	for _, result := range results {
		fmt.Println(result.String())
	}
	fmt.Println()
}

// LadderComparisonResult compares decoding an image with the full
// preprocessing ladder against the original-only baseline.
type LadderComparisonResult struct {
	ImagePath       string
	ImageSize       string
	BaselineResult  BenchmarkResult
	FullResult      BenchmarkResult
	BaselineDecoded bool
	FullDecoded     bool
	CostFactor      float64 // full ladder time / baseline time
	MemoryDiff      int64   // full ladder memory - baseline memory (KB)
}

// String returns a formatted representation of the ladder comparison.
func (r LadderComparisonResult) String() string {
	costStr := fmt.Sprintf("%.2fx cost", r.CostFactor)
	if r.FullDecoded && !r.BaselineDecoded {
		costStr += ", rescued"
	}

	return fmt.Sprintf("%s (%s): baseline: %v (decoded %t), full: %v (decoded %t, %s), Mem diff: %+d KB",
		r.ImagePath, r.ImageSize,
		r.BaselineResult.Duration, r.BaselineDecoded,
		r.FullResult.Duration, r.FullDecoded,
		costStr, r.MemoryDiff)
}

// TestImage represents a test image with metadata.
type TestImage struct {
	Path         string
	Description  string
	SizeCategory string
}

// VariantLadderBenchmark measures what the full preprocessing ladder
// costs compared to decoding the original image only, and whether the
// extra variants rescue inputs the baseline misses.
type VariantLadderBenchmark struct {
	testImages []TestImage
	results    []LadderComparisonResult
}

// NewVariantLadderBenchmark creates a benchmark over the standard test
// image set.
func NewVariantLadderBenchmark() *VariantLadderBenchmark {
	return &VariantLadderBenchmark{
		testImages: []TestImage{
			{"testdata/images/clean/qr_url.png", "Clean QR", "Small"},
			{"testdata/images/clean/code128_plain.png", "Clean Code 128", "Small"},
			{"testdata/images/clean/ean13_retail.png", "Clean EAN-13", "Small"},
			{"testdata/images/degraded/qr_inverted.png", "Inverted QR", "Small"},
		},
		results: make([]LadderComparisonResult, 0),
	}
}

// AddTestImage adds a custom test image to the benchmark.
func (b *VariantLadderBenchmark) AddTestImage(path, description, sizeCategory string) {
	b.testImages = append(b.testImages, TestImage{
		Path:         path,
		Description:  description,
		SizeCategory: sizeCategory,
	})
}

// RunBenchmark executes the complete ladder comparison.
func (b *VariantLadderBenchmark) RunBenchmark(iterations int) ([]LadderComparisonResult, error) {
	b.results = make([]LadderComparisonResult, 0, len(b.testImages))

	for _, img := range b.testImages {
		fmt.Printf("Benchmarking: %s (%s)\n", img.Description, img.SizeCategory)

		result, err := b.benchmarkImage(img, iterations)
		if err != nil {
			fmt.Printf("  Error: %v\n", err)
			continue
		}

		b.results = append(b.results, result)
		fmt.Printf("  %s\n", result.String())
	}

	return b.results, nil
}

// benchmarkImage runs the baseline and full-ladder benchmarks for a
// single image.
func (b *VariantLadderBenchmark) benchmarkImage(img TestImage, iterations int) (LadderComparisonResult, error) {
	if !testutil.FileExists(img.Path) {
		return LadderComparisonResult{}, fmt.Errorf("image not found: %s", img.Path)
	}

	sizeInfo, err := b.getImageSizeInfo(img.Path)
	if err != nil {
		sizeInfo = "unknown"
	}

	result := LadderComparisonResult{
		ImagePath: img.Path,
		ImageSize: sizeInfo,
	}

	baselineResult, baselineDecoded, err := b.benchmarkVariants(img.Path, iterations, "Baseline", "original")
	if err != nil {
		return result, fmt.Errorf("baseline benchmark failed: %w", err)
	}
	result.BaselineResult = baselineResult
	result.BaselineDecoded = baselineDecoded

	fullResult, fullDecoded, err := b.benchmarkVariants(img.Path, iterations, "FullLadder")
	if err != nil {
		return result, fmt.Errorf("full ladder benchmark failed: %w", err)
	}
	result.FullResult = fullResult
	result.FullDecoded = fullDecoded

	if baselineResult.Duration > 0 {
		result.CostFactor = float64(fullResult.Duration.Nanoseconds()) / float64(baselineResult.Duration.Nanoseconds())
	}
	baseDiff := baselineResult.MemoryAfter.AllocBytes - baselineResult.MemoryBefore.AllocBytes
	fullDiff := fullResult.MemoryAfter.AllocBytes - fullResult.MemoryBefore.AllocBytes
	baseMemDiff := int64(baseDiff)
	if baseDiff > math.MaxInt64 {
		baseMemDiff = math.MaxInt64
	}
	fullMemDiff := int64(fullDiff)
	if fullDiff > math.MaxInt64 {
		fullMemDiff = math.MaxInt64
	}
	result.MemoryDiff = (fullMemDiff - baseMemDiff) / 1024 // Convert to KB

	return result, nil
}

// benchmarkVariants times decoding with the given variant recipe. An
// empty recipe means the full ladder. The decoded flag reports whether
// the last iteration found a symbol; a miss is a data point here, not a
// failure.
func (b *VariantLadderBenchmark) benchmarkVariants(
	imagePath string, iterations int, name string, variants ...string,
) (BenchmarkResult, bool, error) {
	builder := pipeline.NewBuilder()
	if len(variants) > 0 {
		builder = builder.WithVariants(variants...)
	}
	p, err := builder.Build()
	if err != nil {
		return BenchmarkResult{}, false, fmt.Errorf("failed to create pipeline: %w", err)
	}

	// Load the image once for reuse
	img, _, err := utils.LoadImage(imagePath)
	if err != nil {
		return BenchmarkResult{}, false, fmt.Errorf("failed to load image: %w", err)
	}

	// Warmup
	_, _ = p.DecodeImage(img)

	decoded := false
	benchmarkFunc := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		res, err := p.DecodeImageContext(ctx, img)
		if err != nil && !errors.Is(err, pipeline.ErrNoBarcode) {
			return err
		}
		decoded = res.Found()
		return nil
	}

	suite := NewBenchmarkSuite()
	suite.Add(name, benchmarkFunc)

	return suite.Run(name, iterations), decoded, nil
}

// getImageSizeInfo returns formatted image size information.
func (b *VariantLadderBenchmark) getImageSizeInfo(imagePath string) (string, error) {
	img, _, err := utils.LoadImage(imagePath)
	if err != nil {
		return "", err
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	megapixels := float64(width*height) / 1000000.0

	return fmt.Sprintf("%dx%d (%.1fMP)", width, height, megapixels), nil
}

// PrintDetailedResults prints comprehensive benchmark results.
func (b *VariantLadderBenchmark) PrintDetailedResults() {
	if len(b.results) == 0 {
		fmt.Println("No benchmark results available")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("Preprocessing Ladder Cost Benchmark Results")
	fmt.Println(strings.Repeat("=", 80))

	// System info
	fmt.Printf("System Information:\n")
	fmt.Printf("  GOOS: %s\n", runtime.GOOS)
	fmt.Printf("  GOARCH: %s\n", runtime.GOARCH)
	fmt.Printf("  NumCPU: %d\n", runtime.NumCPU())
	fmt.Printf("  Go Version: %s\n", runtime.Version())
	fmt.Println()

	// Individual results
	fmt.Println("Individual Image Results:")
	fmt.Println(strings.Repeat("-", 50))
	for _, result := range b.results {
		fmt.Printf("• %s\n", result.String())
	}
	fmt.Println()

	// Summary statistics
	b.printSummaryStatistics()

	// Recommendations
	b.printRecommendations()
}

// printSummaryStatistics calculates and prints summary stats.
func (b *VariantLadderBenchmark) printSummaryStatistics() {
	var baselineTotalTime, fullTotalTime time.Duration
	var costFactors []float64
	rescuedCount := 0
	baselineDecodedCount := 0
	fullDecodedCount := 0

	for _, result := range b.results {
		baselineTotalTime += result.BaselineResult.Duration
		fullTotalTime += result.FullResult.Duration
		costFactors = append(costFactors, result.CostFactor)
		if result.BaselineDecoded {
			baselineDecodedCount++
		}
		if result.FullDecoded {
			fullDecodedCount++
			if !result.BaselineDecoded {
				rescuedCount++
			}
		}
	}

	fmt.Println("Summary Statistics:")
	fmt.Println(strings.Repeat("-", 25))
	fmt.Printf("  Total Baseline Time: %v\n", baselineTotalTime)
	fmt.Printf("  Total Full Ladder Time: %v\n", fullTotalTime)
	if baselineTotalTime > 0 {
		fmt.Printf("  Overall Cost Factor: %.2fx\n",
			float64(fullTotalTime.Nanoseconds())/float64(baselineTotalTime.Nanoseconds()))
	}

	if len(costFactors) > 0 {
		avgCost := 0.0
		for _, c := range costFactors {
			avgCost += c
		}
		avgCost /= float64(len(costFactors))
		fmt.Printf("  Average Cost Factor: %.2fx\n", avgCost)
	}

	fmt.Printf("  Baseline Decode Rate: %d/%d\n", baselineDecodedCount, len(b.results))
	fmt.Printf("  Full Ladder Decode Rate: %d/%d\n", fullDecodedCount, len(b.results))
	fmt.Printf("  Rescued by Extra Variants: %d\n", rescuedCount)
	fmt.Println()
}

// printRecommendations provides usage recommendations based on results.
func (b *VariantLadderBenchmark) printRecommendations() {
	fmt.Println("Recommendations:")
	fmt.Println(strings.Repeat("-", 20))

	if len(b.results) == 0 {
		fmt.Println("  No results to analyze")
		return
	}

	rescuedCount := 0
	for _, result := range b.results {
		if result.FullDecoded && !result.BaselineDecoded {
			rescuedCount++
		}
	}

	switch {
	case rescuedCount == 0:
		fmt.Println("  • Restrict --variants to original for this input set")
		fmt.Println("  • The extra variants add time without extra decodes here")
		fmt.Println("  • Keep the full ladder when inputs come from scans or photos")
	case rescuedCount < len(b.results)/2:
		fmt.Println("  • Mixed results: the ladder pays off on degraded inputs only")
		fmt.Println("  • Use a short variant list for clean, synthetic images")
		fmt.Println("  • Keep the full ladder for camera captures")
	default:
		fmt.Println("  • Keep the full preprocessing ladder for this input set")
		fmt.Println("  • Most inputs only decode after preprocessing")
	}

	fmt.Println("  • A hit on an early variant stops the ladder, so ordering matters")
	fmt.Println("  • The first iteration includes decoder warmup")
	fmt.Println()
}

// GetResults returns the benchmark results.
func (b *VariantLadderBenchmark) GetResults() []LadderComparisonResult {
	return b.results
}
