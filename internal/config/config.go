package config

import (
	"fmt"
	"image/color"
	"strings"
	"time"

	"github.com/MeKo-Tech/bargo/internal/barcode"
	"github.com/MeKo-Tech/bargo/internal/batch"
	"github.com/MeKo-Tech/bargo/internal/pdf"
	"github.com/MeKo-Tech/bargo/internal/pipeline"
	"github.com/MeKo-Tech/bargo/internal/preprocess"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Decode: DecodeConfig{
			TryHarder: false,
			Multi:     false,
		},
		Zxing: ZxingConfig{
			Enabled:    false,
			TimeoutSec: 60,
		},
		Output: OutputConfig{
			Format:    "text",
			LineColor: "#00FF00",
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			RateLimitPerMin: 60,
			OverlayEnabled:  true,
		},
		Batch: BatchConfig{
			Workers:         4,
			ContinueOnError: false,
		},
		PDF: PDFConfig{
			Workers: 0,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	if err := c.validateBasicEnums(); err != nil {
		return err
	}
	if err := c.validateDecode(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateWorkers()
}

func (c *Config) validateBasicEnums() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"text", "json", "csv"}
	if c.Output.Format != "" && !contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	return nil
}

func (c *Config) validateDecode() error {
	if _, err := preprocess.Recipe(c.Decode.Variants...); err != nil {
		return err
	}
	if _, err := barcode.ParseFormats(c.Decode.Formats); err != nil {
		return err
	}
	if c.Zxing.TimeoutSec < 0 {
		return fmt.Errorf("invalid zxing timeout: %d (must not be negative)", c.Zxing.TimeoutSec)
	}
	return nil
}

func (c *Config) validateOutput() error {
	if c.Output.LineColor != "" && ParseHexColor(c.Output.LineColor) == nil {
		return fmt.Errorf("invalid line color: %s (must be a hex color like #00FF00)", c.Output.LineColor)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %d (must be positive)", c.Server.ShutdownTimeout)
	}
	if c.Server.RateLimitPerMin < 0 {
		return fmt.Errorf("invalid rate limit: %d (must not be negative)", c.Server.RateLimitPerMin)
	}
	return nil
}

func (c *Config) validateWorkers() error {
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	if c.PDF.Workers < 0 {
		return fmt.Errorf("invalid pdf workers: %d (must not be negative)", c.PDF.Workers)
	}
	return nil
}

// ToPipelineConfig converts the config to the decode pipeline configuration.
func (c *Config) ToPipelineConfig() (pipeline.Config, error) {
	formats, err := barcode.ParseFormats(c.Decode.Formats)
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.Config{
		Variants:        c.Decode.Variants,
		Formats:         formats,
		TryHarder:       c.Decode.TryHarder,
		Multi:           c.Decode.Multi,
		SaveVariantsDir: c.Output.SaveVariantsDir,
		Zxing: pipeline.ZxingConfig{
			Enabled:       c.Zxing.Enabled,
			ContainerTool: c.Zxing.ContainerTool,
			Image:         c.Zxing.Image,
			Workdir:       c.Zxing.Workdir,
			Timeout:       time.Duration(c.Zxing.TimeoutSec) * time.Second,
		},
		Overlay: pipeline.OverlayConfig{
			Enabled:   c.Output.Annotate,
			Dir:       c.Output.AnnotateDir,
			LineColor: ParseHexColor(c.Output.LineColor),
		},
	}, nil
}

// ToBatchConfig converts the config to the batch processing configuration.
// Batch runs only annotate into an explicit directory, so the annotate
// toggle without a directory has no effect here.
func (c *Config) ToBatchConfig() *batch.Config {
	return &batch.Config{
		Variants:        c.Decode.Variants,
		Formats:         c.Decode.Formats,
		TryHarder:       c.Decode.TryHarder,
		Multi:           c.Decode.Multi,
		Zxing:           c.Zxing.Enabled,
		ZxingContainer:  c.Zxing.ContainerTool,
		ZxingImage:      c.Zxing.Image,
		ZxingTimeout:    time.Duration(c.Zxing.TimeoutSec) * time.Second,
		Workers:         c.Batch.Workers,
		Recursive:       c.Batch.Recursive,
		ContinueOnError: c.Batch.ContinueOnError,
		Format:          c.Output.Format,
		OutputFile:      c.Output.File,
		OverlayDir:      c.Output.AnnotateDir,
		SaveVariantsDir: c.Output.SaveVariantsDir,
	}
}

// PDFCredentials returns the configured PDF passwords, nil when none are set.
func (c *Config) PDFCredentials() *pdf.PasswordCredentials {
	if c.PDF.Password == "" && c.PDF.OwnerPassword == "" {
		return nil
	}
	return &pdf.PasswordCredentials{
		UserPassword:  c.PDF.Password,
		OwnerPassword: c.PDF.OwnerPassword,
	}
}

// ParseHexColor parses colors like "#RRGGBB" or "RRGGBB".
func ParseHexColor(s string) color.Color {
	if s == "" {
		return nil
	}
	if s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 6 {
		return nil
	}
	var r, g, b uint8
	var rv, gv, bv int
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &rv, &gv, &bv); err != nil {
		return nil
	}
	r, g, b = uint8(rv), uint8(gv), uint8(bv) //nolint:gosec // G115: Safe conversion for RGB color values
	return color.RGBA{r, g, b, 255}
}

// contains checks if a slice contains a string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
