package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/MeKo-Tech/bargo/internal/pipeline"
	"github.com/MeKo-Tech/bargo/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	outputFormatJSON = "json"
	outputFormatCSV  = "csv"
	outputFormatText = "text"
)

// decodeCmd represents the decode command.
var decodeCmd = &cobra.Command{
	Use:   "decode [image...]",
	Short: "Decode barcodes from image files",
	Long: `Decode one or more images by generating preprocessing variants and
trying each one in a fixed order until a barcode decodes.

The variant order is: original, gray, otsu, adaptive, blur-otsu, sharpen,
clahe, upscale, invert, dilate, erode. The first successful decode wins;
--variants restricts or reorders the sequence. Decoded symbols can be
filtered to specific symbologies with --format.

Supported formats: JPEG, PNG, BMP, TIFF, WebP

Examples:
  bargo decode photo.png
  bargo decode *.png --format qr,code128 --output json
  bargo decode scan.jpg --try-harder --annotate
  bargo decode ticket.png --zxing --save-variants debug/`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE:         runDecodeCommand,
}

func runDecodeCommand(cmd *cobra.Command, args []string) error {
	// Help handling for tests
	if len(args) > 0 && (args[0] == "--help" || args[0] == "-h") {
		return cmd.Help()
	}
	if len(args) == 0 {
		return errors.New("no input files provided")
	}

	// Get configuration (includes CLI flags, config file, env vars, and defaults)
	cfg := GetConfig()

	format := cfg.Output.Format
	outputFile := cfg.Output.File
	annotate := cfg.Output.Annotate || cfg.Output.AnnotateDir != ""

	// Validate output format
	validFormats := []string{outputFormatText, outputFormatJSON, outputFormatCSV}
	isValidFormat := false
	for _, f := range validFormats {
		if format == f {
			isValidFormat = true
			break
		}
	}
	if !isValidFormat {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", format, strings.Join(validFormats, ", "))
	}

	pCfg, err := cfg.ToPipelineConfig()
	if err != nil {
		return err
	}
	pl, err := pipeline.NewBuilder().WithConfig(pCfg).Build()
	if err != nil {
		return fmt.Errorf("failed to build decode pipeline: %w", err)
	}

	results := make([]*pipeline.ScanResult, 0, len(args))
	misses := 0
	for _, pth := range args {
		if !utils.IsSupportedImage(pth) {
			return fmt.Errorf("unsupported image format: %s", pth)
		}
		res, err := pl.DecodeFile(pth)
		if err != nil && !errors.Is(err, pipeline.ErrNoBarcode) {
			return fmt.Errorf("decode failed for %s: %w", pth, err)
		}
		if !res.Found() {
			misses++
		}
		if annotate && res.Found() {
			if err := writeAnnotated(cmd, pl, res); err != nil {
				return err
			}
		}
		results = append(results, res)
	}

	final, err := renderScanResults(results, format)
	if err != nil {
		return err
	}
	if !strings.HasSuffix(final, "\n") {
		final += "\n"
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(final), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", outputFile); err != nil {
			return err
		}
	} else {
		if _, err := fmt.Fprint(cmd.OutOrStdout(), final); err != nil {
			return fmt.Errorf("failed to write final output: %w", err)
		}
	}

	// Exit 1 when any input produced no symbol; the report above already
	// carries the per-variant trail and tips.
	if misses > 0 {
		if len(args) == 1 {
			return pipeline.ErrNoBarcode
		}
		return fmt.Errorf("no barcode found in %d of %d image(s)", misses, len(args))
	}
	return nil
}

// renderScanResults renders decode output in the requested format. A
// single input renders as one JSON object, several as an array.
func renderScanResults(results []*pipeline.ScanResult, format string) (string, error) {
	switch format {
	case outputFormatJSON:
		if len(results) == 1 {
			return pipeline.ToJSON(results[0])
		}
		return pipeline.ToJSONResults(results)
	case outputFormatCSV:
		return pipeline.ToCSVResults(results)
	default:
		parts := make([]string, 0, len(results))
		for _, res := range results {
			s, err := pipeline.ToText(res)
			if err != nil {
				return "", fmt.Errorf("format text failed: %w", err)
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, "\n"), nil
	}
}

// writeAnnotated reloads the source image and writes the annotated copy
// beside it (or into the configured directory).
func writeAnnotated(cmd *cobra.Command, pl *pipeline.Pipeline, res *pipeline.ScanResult) error {
	img, _, err := utils.LoadImage(res.Source)
	if err != nil {
		return fmt.Errorf("failed to reload %s for annotation: %w", res.Source, err)
	}
	path, err := pl.SaveAnnotated(img, res)
	if err != nil {
		return fmt.Errorf("failed to save annotated image: %w", err)
	}
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Saved annotated image: %s\n", path); err != nil {
		return err
	}
	return nil
}

func addDecodeFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceP("format", "f", []string{"any"},
		"symbology filter, CSV or repeated (qr, datamatrix, aztec, pdf417, maxicode, code128, "+
			"code39, ean8, ean13, upca, upce, itf, codabar, 1d, any)")
	cmd.Flags().Bool("try-harder", false, "spend more time per variant for damaged or small codes")
	cmd.Flags().Bool("multi", false, "collect all symbols in the image instead of the first")
	cmd.Flags().StringSlice("variants", nil,
		"preprocessing variants to run, in order (default: the full sequence)")
	cmd.Flags().Bool("zxing", false, "also try the containerized ZXing CLI per variant")
	cmd.Flags().String("zxing-image", "", "container image for the ZXing CLI (default openjdk:17)")
	cmd.Flags().Bool("annotate", false, "write an annotated copy with decoded symbols outlined")
	cmd.Flags().String("annotate-dir", "", "directory for annotated copies (default: beside the source)")
	cmd.Flags().String("line-color", "", "annotation stroke color as #RRGGBB (default #00FF00)")
	cmd.Flags().StringP("output", "o", "text", "output format (text, json, csv)")
	cmd.Flags().String("output-file", "", "output file (default: stdout)")
	cmd.Flags().String("save-variants", "", "directory to persist every preprocessed variant image")
}

// bindDecodeFlags binds all flags to viper configuration keys.
func bindDecodeFlags(cmd *cobra.Command) {
	flagBindings := []struct {
		key  string
		flag string
	}{
		{"decode.formats", "format"},
		{"decode.try_harder", "try-harder"},
		{"decode.multi", "multi"},
		{"decode.variants", "variants"},
		{"zxing.enabled", "zxing"},
		{"zxing.image", "zxing-image"},
		{"output.annotate", "annotate"},
		{"output.annotate_dir", "annotate-dir"},
		{"output.line_color", "line-color"},
		{"output.format", "output"},
		{"output.file", "output-file"},
		{"output.save_variants_dir", "save-variants"},
	}

	for _, binding := range flagBindings {
		if err := viper.BindPFlag(binding.key, cmd.Flags().Lookup(binding.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", binding.flag, err))
		}
	}
}

func init() {
	rootCmd.AddCommand(decodeCmd)

	addDecodeFlags(decodeCmd)
	bindDecodeFlags(decodeCmd)

	// Ensure subcommand help prints expected sections when executed directly in tests
	decodeCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if _, err := fmt.Fprintln(out, cmd.Short); err != nil {
			return
		}
		if _, err := fmt.Fprintln(out, "Usage:"); err != nil {
			return
		}
		_, _ = fmt.Fprintln(out, cmd.UseLine())
		_, _ = fmt.Fprintln(out, "Flags:")
		_, _ = fmt.Fprintln(out, cmd.Flags().FlagUsages())
	})
}

// GetDecodeCommand returns the decode command for testing purposes.
func GetDecodeCommand() *cobra.Command {
	return decodeCmd
}
