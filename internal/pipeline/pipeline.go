// Package pipeline orchestrates barcode decoding over preprocessed
// image variants.
//
// A configured Pipeline walks the ordered variant recipe, hands each
// candidate image to the decode engines and stops at the first symbol
// that passes the format filter. When the external ZXing engine is
// enabled it is consulted before the library on every variant. Every
// engine invocation is recorded in the result's attempt trail, so the
// fixed decode order stays observable even on total failure.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/bargo/internal/barcode"
	"github.com/MeKo-Tech/bargo/internal/preprocess"
	"github.com/MeKo-Tech/bargo/internal/zxing"
)

// DefaultLineColor is the annotation stroke used when none is configured.
var DefaultLineColor = color.RGBA{G: 255, A: 255}

// ZxingConfig controls the optional external ZXing CLI engine.
type ZxingConfig struct {
	Enabled       bool
	ContainerTool string        // container binary, empty means the runner default
	Image         string        // Java runtime image, empty means the runner default
	Workdir       string        // host dir mounted into the container, empty means CWD
	Timeout       time.Duration // per-invocation limit, 0 means none
}

// OverlayConfig controls annotated output rendering.
type OverlayConfig struct {
	Enabled   bool
	Dir       string      // target directory, empty means next to the source image
	LineColor color.Color // stroke color, nil means DefaultLineColor
}

// Config holds the full pipeline configuration.
type Config struct {
	Variants        []string         // variant names in decode order, empty means the full recipe
	Formats         []barcode.Format // accepted symbologies, empty means any
	TryHarder       bool             // extra-effort hint for the library backend
	Multi           bool             // collect every symbol on the winning variant
	SaveVariantsDir string           // when set, every generated variant image is written here
	Zxing           ZxingConfig
	Overlay         OverlayConfig
}

// DefaultConfig returns the configuration used when no options are set:
// full recipe, any symbology, library engine only.
func DefaultConfig() Config {
	return Config{
		Overlay: OverlayConfig{LineColor: DefaultLineColor},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	for _, f := range c.Formats {
		if f == barcode.FormatUnknown {
			return errors.New("format filter contains an unknown symbology")
		}
	}
	if _, err := preprocess.Recipe(c.Variants...); err != nil {
		return err
	}
	if c.Zxing.Timeout < 0 {
		return errors.New("zxing timeout must not be negative")
	}
	return nil
}

// toolDecoder is the slice of zxing.Runner the pipeline drives. Tests
// substitute a stub so no container runtime is required.
type toolDecoder interface {
	Decode(ctx context.Context, imagePath string, opts zxing.Options) ([]barcode.Result, error)
	Name() string
}

// Pipeline is the assembled scan orchestrator. Build one via NewBuilder;
// a Pipeline holds no per-scan state and is safe for concurrent use.
type Pipeline struct {
	cfg     Config
	recipe  []preprocess.Transform
	backend barcode.Backend
	tool    toolDecoder
}

// Builder assembles a Pipeline using a fluent interface.
type Builder struct {
	cfg     Config
	backend barcode.Backend
	tool    toolDecoder
}

// NewBuilder creates a pipeline builder with default configuration.
func NewBuilder() *Builder {
	return &Builder{cfg: DefaultConfig()}
}

// WithVariants restricts and reorders the variant recipe by name.
func (b *Builder) WithVariants(names ...string) *Builder {
	if len(names) > 0 {
		b.cfg.Variants = names
	}
	return b
}

// WithFormats sets the accepted symbologies. Hits of any other
// symbology are recorded as skipped instead of returned.
func (b *Builder) WithFormats(formats ...barcode.Format) *Builder {
	if len(formats) > 0 {
		b.cfg.Formats = formats
	}
	return b
}

// WithTryHarder toggles the library backend's extra-effort mode.
func (b *Builder) WithTryHarder(enabled bool) *Builder {
	b.cfg.TryHarder = enabled
	return b
}

// WithMulti makes the winning variant report every symbol it holds
// instead of the first one.
func (b *Builder) WithMulti(enabled bool) *Builder {
	b.cfg.Multi = enabled
	return b
}

// WithZxing enables the external ZXing CLI engine.
func (b *Builder) WithZxing(enabled bool) *Builder {
	b.cfg.Zxing.Enabled = enabled
	return b
}

// WithZxingContainerTool overrides the container binary (docker, podman).
func (b *Builder) WithZxingContainerTool(tool string) *Builder {
	if tool != "" {
		b.cfg.Zxing.ContainerTool = tool
	}
	return b
}

// WithZxingImage overrides the Java runtime image for the CLI container.
func (b *Builder) WithZxingImage(img string) *Builder {
	if img != "" {
		b.cfg.Zxing.Image = img
	}
	return b
}

// WithZxingWorkdir sets the host directory mounted into the container.
// Jars, staged variant images and downloads live there.
func (b *Builder) WithZxingWorkdir(dir string) *Builder {
	if dir != "" {
		b.cfg.Zxing.Workdir = dir
	}
	return b
}

// WithZxingTimeout bounds a single CLI invocation.
func (b *Builder) WithZxingTimeout(d time.Duration) *Builder {
	if d > 0 {
		b.cfg.Zxing.Timeout = d
	}
	return b
}

// WithSaveVariants writes every generated variant image into dir,
// mirroring the debug copies the original scripts left behind.
func (b *Builder) WithSaveVariants(dir string) *Builder {
	if dir != "" {
		b.cfg.SaveVariantsDir = dir
	}
	return b
}

// WithOverlay toggles annotated output rendering.
func (b *Builder) WithOverlay(enabled bool) *Builder {
	b.cfg.Overlay.Enabled = enabled
	return b
}

// WithOverlayDir sets where annotated copies are written.
func (b *Builder) WithOverlayDir(dir string) *Builder {
	if dir != "" {
		b.cfg.Overlay.Dir = dir
	}
	return b
}

// WithLineColor sets the annotation stroke color.
func (b *Builder) WithLineColor(c color.Color) *Builder {
	if c != nil {
		b.cfg.Overlay.LineColor = c
	}
	return b
}

// WithBackend replaces the library decode backend.
func (b *Builder) WithBackend(backend barcode.Backend) *Builder {
	if backend != nil {
		b.backend = backend
	}
	return b
}

// WithConfig replaces the whole configuration at once.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// Build validates the configuration and assembles the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}

	recipe, err := preprocess.Recipe(b.cfg.Variants...)
	if err != nil {
		return nil, err
	}

	backend := b.backend
	if backend == nil {
		backend = barcode.NewDecoder()
	}

	p := &Pipeline{cfg: b.cfg, recipe: recipe, backend: backend}

	switch {
	case b.tool != nil:
		p.tool = b.tool
	case b.cfg.Zxing.Enabled:
		r := zxing.NewRunner()
		if b.cfg.Zxing.ContainerTool != "" {
			r.ContainerTool = b.cfg.Zxing.ContainerTool
		}
		if b.cfg.Zxing.Image != "" {
			r.Image = b.cfg.Zxing.Image
		}
		r.Workdir = b.cfg.Zxing.Workdir
		r.Timeout = b.cfg.Zxing.Timeout
		p.tool = r
	}

	slog.Debug("Pipeline ready",
		"variants", len(recipe),
		"formats", len(b.cfg.Formats),
		"backend", backend.Name(),
		"zxing", p.tool != nil)
	return p, nil
}

// Config returns a copy of the effective configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Variants returns the resolved variant names in decode order.
func (p *Pipeline) Variants() []string {
	names := make([]string, len(p.recipe))
	for i, tr := range p.recipe {
		names[i] = tr.Name
	}
	return names
}

// Info describes the assembled pipeline for logs and the API surface.
func (p *Pipeline) Info() map[string]interface{} {
	formats := make([]string, len(p.cfg.Formats))
	for i, f := range p.cfg.Formats {
		formats[i] = f.String()
	}
	info := map[string]interface{}{
		"variants":   p.Variants(),
		"formats":    formats,
		"backend":    p.backend.Name(),
		"try_harder": p.cfg.TryHarder,
		"multi":      p.cfg.Multi,
		"zxing":      p.tool != nil,
	}
	if p.tool != nil {
		info["zxing_engine"] = p.tool.Name()
	}
	return info
}
