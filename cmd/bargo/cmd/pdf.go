package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/MeKo-Tech/bargo/internal/config"
	"github.com/MeKo-Tech/bargo/internal/pdf"
	"github.com/MeKo-Tech/bargo/internal/pipeline"
	"github.com/spf13/cobra"
)

// pdfCmd represents the pdf command.
var pdfCmd = &cobra.Command{
	Use:   "pdf [file...]",
	Short: "Decode barcodes from PDF documents",
	Long: `Extract the embedded page images from PDF files and run each one
through the decode pipeline. Results are aggregated per page.

Works with scanned PDFs and PDFs containing image-based barcodes;
vector-drawn codes are only found if the document embeds a rasterized
copy. Encrypted documents are decrypted with --password/--owner-password.

Examples:
  bargo pdf document.pdf
  bargo pdf *.pdf --output json
  bargo pdf scan.pdf --pages 1-5
  bargo pdf locked.pdf --password secret`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE:         processPDFs,
}

func init() {
	rootCmd.AddCommand(pdfCmd)

	// PDF-specific flags
	pdfCmd.Flags().String("pages", "", "page range to process (e.g., '1-5', '1,3,5')")
	pdfCmd.Flags().StringP("password", "p", "", "user password for encrypted PDFs")
	pdfCmd.Flags().String("owner-password", "", "owner password for encrypted PDFs")
	pdfCmd.Flags().IntP("workers", "w", 0, "max worker goroutines for page processing (0=NumCPU)")

	// Decode flags (align with decode/batch)
	pdfCmd.Flags().StringSliceP("format", "f", []string{"any"},
		"symbology filter, CSV or repeated (default any)")
	pdfCmd.Flags().StringSlice("variants", nil,
		"preprocessing variants to run, in order (default: the full sequence)")
	pdfCmd.Flags().Bool("try-harder", false, "spend more time per variant for damaged or small codes")
	pdfCmd.Flags().Bool("multi", false, "collect all symbols per page image instead of the first")

	// Output flags
	pdfCmd.Flags().StringP("output", "o", "text", "output format (text, json)")
	pdfCmd.Flags().String("output-file", "", "output file (default: stdout)")
}

// pdfRunConfig holds the resolved configuration for PDF processing.
type pdfRunConfig struct {
	pages         string
	format        string
	outputFile    string
	userPassword  string
	ownerPassword string
	workers       int
}

// configToPDFConfig maps centralized configuration to pdfRunConfig.
// CLI flags override config file values through the Changed checks.
func configToPDFConfig(centralCfg *config.Config, cmd *cobra.Command) (*pdfRunConfig, error) {
	cfg := &pdfRunConfig{
		pages:         centralCfg.PDF.Pages,
		format:        centralCfg.Output.Format,
		outputFile:    centralCfg.Output.File,
		userPassword:  centralCfg.PDF.Password,
		ownerPassword: centralCfg.PDF.OwnerPassword,
		workers:       centralCfg.PDF.Workers,
	}

	if cmd.Flags().Changed("pages") {
		cfg.pages, _ = cmd.Flags().GetString("pages")
	}
	if cmd.Flags().Changed("output") {
		cfg.format, _ = cmd.Flags().GetString("output")
	}
	if cmd.Flags().Changed("output-file") {
		cfg.outputFile, _ = cmd.Flags().GetString("output-file")
	}
	if cmd.Flags().Changed("password") {
		cfg.userPassword, _ = cmd.Flags().GetString("password")
	}
	if cmd.Flags().Changed("owner-password") {
		cfg.ownerPassword, _ = cmd.Flags().GetString("owner-password")
	}
	if cmd.Flags().Changed("workers") {
		cfg.workers, _ = cmd.Flags().GetInt("workers")
	}

	if err := validatePDFRunConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validatePDFRunConfig validates the PDF processing parameters.
func validatePDFRunConfig(cfg *pdfRunConfig) error {
	validFormats := []string{outputFormatText, outputFormatJSON}
	isValidFormat := false
	for _, f := range validFormats {
		if cfg.format == f {
			isValidFormat = true
			break
		}
	}
	if !isValidFormat {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)",
			cfg.format, strings.Join(validFormats, ", "))
	}

	if cfg.pages != "" {
		if _, err := pdf.ParsePageRange(cfg.pages); err != nil {
			return fmt.Errorf("invalid page range: %w", err)
		}
	}

	if cfg.workers < 0 {
		return fmt.Errorf("invalid worker count: %d (must be >= 0)", cfg.workers)
	}
	return nil
}

// processPDFs handles the main PDF processing logic.
func processPDFs(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errors.New("no input files provided")
	}

	// Get configuration from centralized system (includes CLI flags, config file, env vars, and defaults)
	centralCfg := GetConfig()

	cfg, err := configToPDFConfig(centralCfg, cmd)
	if err != nil {
		return err
	}

	// Per-command decode flags override the shared pipeline settings
	if cmd.Flags().Changed("format") {
		centralCfg.Decode.Formats, _ = cmd.Flags().GetStringSlice("format")
	}
	if cmd.Flags().Changed("variants") {
		centralCfg.Decode.Variants, _ = cmd.Flags().GetStringSlice("variants")
	}
	if cmd.Flags().Changed("try-harder") {
		centralCfg.Decode.TryHarder, _ = cmd.Flags().GetBool("try-harder")
	}
	if cmd.Flags().Changed("multi") {
		centralCfg.Decode.Multi, _ = cmd.Flags().GetBool("multi")
	}

	pCfg, err := centralCfg.ToPipelineConfig()
	if err != nil {
		return err
	}
	pl, err := pipeline.NewBuilder().WithConfig(pCfg).Build()
	if err != nil {
		return fmt.Errorf("failed to build decode pipeline: %w", err)
	}

	processorConfig := pdf.DefaultProcessorConfig()
	processorConfig.MaxWorkers = cfg.workers
	processor := pdf.NewProcessorWithConfig(pl, processorConfig)
	defer func() { _ = processor.Close() }()

	if cfg.userPassword != "" || cfg.ownerPassword != "" {
		processor.SetPasswordCredentials(&pdf.PasswordCredentials{
			UserPassword:  cfg.userPassword,
			OwnerPassword: cfg.ownerPassword,
		})
	}

	// Process each PDF file
	results := make([]*pdf.DocumentResult, 0, len(args))
	for _, file := range args {
		doc, err := processor.DecodeFile(file, cfg.pages)
		if err != nil {
			return err
		}
		results = append(results, doc)
	}

	return outputPDFResults(cmd, results, cfg.format, cfg.outputFile)
}

// outputPDFResults formats and outputs the PDF decode results.
func outputPDFResults(cmd *cobra.Command, results []*pdf.DocumentResult, format, outputFile string) error {
	var output string
	var err error

	switch format {
	case outputFormatJSON:
		output, err = formatPDFJSON(results)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
	default: // text
		output = formatPDFText(results)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", outputFile); err != nil {
			return err
		}
	} else {
		if _, err := fmt.Fprint(cmd.OutOrStdout(), output); err != nil {
			return fmt.Errorf("failed to write final output: %w", err)
		}
	}
	return nil
}

// formatPDFJSON formats document results as JSON.
func formatPDFJSON(results []*pdf.DocumentResult) (string, error) {
	var data []byte
	var err error
	if len(results) == 1 {
		data, err = json.MarshalIndent(results[0], "", "  ")
	} else {
		data, err = json.MarshalIndent(results, "", "  ")
	}
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

// formatPDFText formats document results as plain text.
func formatPDFText(results []*pdf.DocumentResult) string {
	var b strings.Builder

	for _, doc := range results {
		fmt.Fprintf(&b, "File: %s\n", doc.Filename)
		fmt.Fprintf(&b, "Total Pages: %d\n", doc.TotalPages)
		fmt.Fprintf(&b, "Processing Time: %dms\n\n", doc.Processing.TotalTimeMs)

		for _, page := range doc.Pages {
			fmt.Fprintf(&b, "Page %d (%dx%d):\n", page.PageNumber, page.Width, page.Height)

			for _, img := range page.Images {
				fmt.Fprintf(&b, "  Image %d (%dx%d): %d barcode(s), %d attempt(s)\n",
					img.ImageIndex, img.Width, img.Height, len(img.Barcodes), img.Attempts)

				for i, bc := range img.Barcodes {
					fmt.Fprintf(&b, "    #%d %s box=(%d,%d %dx%d) variant=%s payload='%s'\n",
						i+1, bc.Format,
						bc.Box.X, bc.Box.Y, bc.Box.W, bc.Box.H,
						bc.Variant, bc.Payload)
				}
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

// GetPDFCommand returns the pdf command for testing purposes.
func GetPDFCommand() *cobra.Command {
	return pdfCmd
}
