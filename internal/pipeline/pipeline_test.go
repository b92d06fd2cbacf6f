package pipeline

import (
	"image/color"
	"testing"
	"time"

	"github.com/MeKo-Tech/bargo/internal/barcode"
	"github.com/MeKo-Tech/bargo/internal/preprocess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Empty(t, cfg.Variants)
	assert.Empty(t, cfg.Formats)
	assert.False(t, cfg.TryHarder)
	assert.False(t, cfg.Multi)
	assert.False(t, cfg.Zxing.Enabled)
	assert.Equal(t, DefaultLineColor, cfg.Overlay.LineColor)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown format in filter",
			mutate:  func(c *Config) { c.Formats = []barcode.Format{barcode.FormatUnknown} },
			wantErr: "unknown symbology",
		},
		{
			name:    "unknown variant name",
			mutate:  func(c *Config) { c.Variants = []string{"posterize"} },
			wantErr: "unknown variant",
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.Zxing.Timeout = -time.Second },
			wantErr: "timeout",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBuilderFluent(t *testing.T) {
	p, err := NewBuilder().
		WithVariants("otsu", "invert").
		WithFormats(barcode.FormatQR, barcode.FormatPDF417).
		WithTryHarder(true).
		WithMulti(true).
		WithSaveVariants(t.TempDir()).
		WithOverlay(true).
		WithLineColor(color.RGBA{R: 255, A: 255}).
		Build()
	require.NoError(t, err)

	cfg := p.Config()
	assert.Equal(t, []string{"otsu", "invert"}, cfg.Variants)
	assert.Equal(t, []barcode.Format{barcode.FormatQR, barcode.FormatPDF417}, cfg.Formats)
	assert.True(t, cfg.TryHarder)
	assert.True(t, cfg.Multi)
	assert.True(t, cfg.Overlay.Enabled)
	assert.Equal(t, color.RGBA{R: 255, A: 255}, cfg.Overlay.LineColor)

	assert.Equal(t, []string{"otsu", "invert"}, p.Variants())
}

func TestBuilderGuardsIgnoreZeroValues(t *testing.T) {
	p, err := NewBuilder().
		WithVariants().
		WithFormats().
		WithZxingImage("").
		WithZxingContainerTool("").
		WithZxingWorkdir("").
		WithZxingTimeout(0).
		WithSaveVariants("").
		WithLineColor(nil).
		WithBackend(nil).
		Build()
	require.NoError(t, err)

	cfg := p.Config()
	assert.Empty(t, cfg.Variants)
	assert.Empty(t, cfg.Formats)
	assert.Empty(t, cfg.Zxing.Image)
	assert.Equal(t, time.Duration(0), cfg.Zxing.Timeout)
	assert.Equal(t, DefaultLineColor, cfg.Overlay.LineColor)
}

func TestBuildRejectsUnknownVariant(t *testing.T) {
	_, err := NewBuilder().WithVariants("emboss").Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown variant")
}

func TestBuildDefaultRecipeOrder(t *testing.T) {
	p, err := NewBuilder().Build()
	require.NoError(t, err)
	assert.Equal(t, preprocess.Names(), p.Variants())
}

func TestBuildWiresExternalTool(t *testing.T) {
	p, err := NewBuilder().
		WithZxing(true).
		WithZxingImage("eclipse-temurin:17").
		WithZxingWorkdir(t.TempDir()).
		WithZxingTimeout(30 * time.Second).
		Build()
	require.NoError(t, err)

	require.NotNil(t, p.tool)
	assert.Equal(t, "zxing", p.tool.Name())

	info := p.Info()
	assert.Equal(t, true, info["zxing"])
	assert.Equal(t, "zxing", info["zxing_engine"])
}

func TestInfoDescribesPipeline(t *testing.T) {
	p, err := NewBuilder().
		WithFormats(barcode.FormatAztec).
		WithTryHarder(true).
		Build()
	require.NoError(t, err)

	info := p.Info()
	assert.Equal(t, barcode.EngineGozxing, info["backend"])
	assert.Equal(t, []string{"aztec"}, info["formats"])
	assert.Equal(t, true, info["try_harder"])
	assert.Equal(t, false, info["multi"])
	assert.Equal(t, false, info["zxing"])
}

func TestWithConfigReplacesEverything(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Variants = []string{"clahe"}
	cfg.TryHarder = true

	p, err := NewBuilder().WithMulti(true).WithConfig(cfg).Build()
	require.NoError(t, err)

	got := p.Config()
	assert.Equal(t, []string{"clahe"}, got.Variants)
	assert.True(t, got.TryHarder)
	assert.False(t, got.Multi, "WithConfig replaces earlier builder calls")
}
