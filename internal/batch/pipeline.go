package batch

import (
	"fmt"

	"github.com/MeKo-Tech/bargo/internal/barcode"
	"github.com/MeKo-Tech/bargo/internal/pipeline"
)

// buildPipeline creates a decode pipeline from the batch configuration.
func buildPipeline(config *Config) (*pipeline.Pipeline, error) {
	b := pipeline.NewBuilder().
		WithVariants(config.Variants...).
		WithTryHarder(config.TryHarder).
		WithMulti(config.Multi).
		WithSaveVariants(config.SaveVariantsDir).
		WithOverlayDir(config.OverlayDir)

	if len(config.Formats) > 0 {
		formats, err := barcode.ParseFormats(config.Formats)
		if err != nil {
			return nil, fmt.Errorf("invalid format filter: %w", err)
		}
		b = b.WithFormats(formats...)
	}

	b = configureZxing(b, config)

	return b.Build()
}

// configureZxing wires the external ZXing engine settings into the builder.
func configureZxing(b *pipeline.Builder, config *Config) *pipeline.Builder {
	if !config.Zxing {
		return b
	}
	b = b.WithZxing(true)
	if config.ZxingContainer != "" {
		b = b.WithZxingContainerTool(config.ZxingContainer)
	}
	if config.ZxingImage != "" {
		b = b.WithZxingImage(config.ZxingImage)
	}
	if config.ZxingTimeout > 0 {
		b = b.WithZxingTimeout(config.ZxingTimeout)
	}
	return b
}
