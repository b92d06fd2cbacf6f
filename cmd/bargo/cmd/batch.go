package cmd

import (
	"fmt"
	"runtime"
	"time"

	"github.com/MeKo-Tech/bargo/internal/batch"
	"github.com/MeKo-Tech/bargo/internal/config"
	"github.com/spf13/cobra"
)

// batchCmd represents the batch command for parallel image processing.
var batchCmd = &cobra.Command{
	Use:   "batch [path...]",
	Short: "Decode barcodes from many images in parallel",
	Long: `Decode barcodes from multiple image files or directories using a
worker pool. Directories are scanned for supported image files, optionally
recursively and filtered by include/exclude patterns. Each file runs
through the same preprocessing variant sequence as the decode command.

Supported formats: JPEG, PNG, BMP, TIFF, WebP

Examples:
  bargo batch *.png
  bargo batch images/ --recursive --workers 8
  bargo batch scans/ --format qr --output json --output-file results.json
  bargo batch images/ --progress --continue-on-error`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runBatchCommand,
}

// configToBatchConfig maps centralized configuration to batch.Config.
// CLI flags override config file values through the Changed checks.
func configToBatchConfig(cfg *config.Config, cmd *cobra.Command) *batch.Config {
	batchConfig := cfg.ToBatchConfig()

	// Decode settings
	if cmd.Flags().Changed("format") {
		batchConfig.Formats, _ = cmd.Flags().GetStringSlice("format")
	}
	if cmd.Flags().Changed("variants") {
		batchConfig.Variants, _ = cmd.Flags().GetStringSlice("variants")
	}
	if cmd.Flags().Changed("try-harder") {
		batchConfig.TryHarder, _ = cmd.Flags().GetBool("try-harder")
	}
	if cmd.Flags().Changed("multi") {
		batchConfig.Multi, _ = cmd.Flags().GetBool("multi")
	}

	// External engine
	if cmd.Flags().Changed("zxing") {
		batchConfig.Zxing, _ = cmd.Flags().GetBool("zxing")
	}
	if cmd.Flags().Changed("zxing-image") {
		batchConfig.ZxingImage, _ = cmd.Flags().GetString("zxing-image")
	}

	// Output settings
	if cmd.Flags().Changed("output") {
		batchConfig.Format, _ = cmd.Flags().GetString("output")
	}
	if cmd.Flags().Changed("output-file") {
		batchConfig.OutputFile, _ = cmd.Flags().GetString("output-file")
	}
	if cmd.Flags().Changed("annotate-dir") {
		batchConfig.OverlayDir, _ = cmd.Flags().GetString("annotate-dir")
	}
	if cmd.Flags().Changed("save-variants") {
		batchConfig.SaveVariantsDir, _ = cmd.Flags().GetString("save-variants")
	}

	// Parallel processing settings
	if cmd.Flags().Changed("workers") {
		batchConfig.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("recursive") {
		batchConfig.Recursive, _ = cmd.Flags().GetBool("recursive")
	}
	if cmd.Flags().Changed("continue-on-error") {
		batchConfig.ContinueOnError, _ = cmd.Flags().GetBool("continue-on-error")
	}

	// File discovery settings - these are CLI-only
	batchConfig.IncludePatterns, _ = cmd.Flags().GetStringSlice("include")
	batchConfig.ExcludePatterns, _ = cmd.Flags().GetStringSlice("exclude")

	// Progress settings - these are CLI-only
	batchConfig.ShowProgress, _ = cmd.Flags().GetBool("progress")
	batchConfig.Quiet, _ = cmd.Flags().GetBool("quiet")
	batchConfig.ShowStats, _ = cmd.Flags().GetBool("stats")
	batchConfig.ProgressInterval, _ = cmd.Flags().GetDuration("progress-interval")

	return batchConfig
}

func runBatchCommand(cmd *cobra.Command, args []string) error {
	// Get configuration from centralized system (includes CLI flags, config file, env vars, and defaults)
	cfg := GetConfig()

	// Map to batch configuration
	batchConfig := configToBatchConfig(cfg, cmd)

	if !batchConfig.Quiet {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Processing %d path(s)...\n", len(args))
	}

	// Process batch
	result, err := batch.ProcessBatch(args, batchConfig)
	if err != nil {
		return fmt.Errorf("batch processing failed: %w", err)
	}

	// Save results
	if err := result.SaveResults(batchConfig.Format, batchConfig.OutputFile, batchConfig.Quiet); err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}

	// Print stats
	result.PrintStats(batchConfig.Quiet)

	return nil
}

func init() {
	rootCmd.AddCommand(batchCmd)

	// Decode flags (same surface as the decode command)
	batchCmd.Flags().StringSliceP("format", "f", []string{"any"},
		"symbology filter, CSV or repeated (default any)")
	batchCmd.Flags().StringSlice("variants", nil,
		"preprocessing variants to run, in order (default: the full sequence)")
	batchCmd.Flags().Bool("try-harder", false, "spend more time per variant for damaged or small codes")
	batchCmd.Flags().Bool("multi", false, "collect all symbols per image instead of the first")
	batchCmd.Flags().Bool("zxing", false, "also try the containerized ZXing CLI per variant")
	batchCmd.Flags().String("zxing-image", "", "container image for the ZXing CLI (default openjdk:17)")

	// Output flags
	batchCmd.Flags().StringP("output", "o", "text", "output format: text, json, csv")
	batchCmd.Flags().String("output-file", "", "output file (default: stdout)")
	batchCmd.Flags().String("annotate-dir", "", "directory to save annotated images for decoded files")
	batchCmd.Flags().String("save-variants", "", "directory to persist every preprocessed variant image")

	// Parallel processing flags
	batchCmd.Flags().IntP("workers", "w", 0,
		fmt.Sprintf("number of parallel workers (default: %d)", runtime.NumCPU()))
	batchCmd.Flags().Bool("continue-on-error", false, "record failed files and keep going")

	// File discovery flags
	batchCmd.Flags().BoolP("recursive", "r", false, "recursively scan directories")
	batchCmd.Flags().StringSlice("include",
		[]string{"*.jpg", "*.jpeg", "*.png", "*.bmp", "*.tiff", "*.webp"}, "file patterns to include")
	batchCmd.Flags().StringSlice("exclude", []string{}, "file patterns to exclude")

	// Progress and monitoring flags
	batchCmd.Flags().Bool("progress", false, "show progress while processing")
	batchCmd.Flags().Bool("quiet", false, "suppress progress output")
	batchCmd.Flags().Bool("stats", false, "show processing statistics")
	batchCmd.Flags().Duration("progress-interval", 500*time.Millisecond, "progress update interval")
}

// GetBatchCommand returns the batch command for testing purposes.
func GetBatchCommand() *cobra.Command {
	return batchCmd
}
