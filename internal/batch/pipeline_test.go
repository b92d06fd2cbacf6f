package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPipeline_Defaults(t *testing.T) {
	pl, err := buildPipeline(&Config{})
	require.NoError(t, err)
	require.NotNil(t, pl)

	cfg := pl.Config()
	assert.Empty(t, cfg.Variants)
	assert.Empty(t, cfg.Formats)
	assert.False(t, cfg.Zxing.Enabled)
}

func TestBuildPipeline_DecodeSettings(t *testing.T) {
	pl, err := buildPipeline(&Config{
		Variants:        []string{"original", "otsu"},
		Formats:         []string{"qr", "ean13"},
		TryHarder:       true,
		Multi:           true,
		OverlayDir:      "/tmp/overlays",
		SaveVariantsDir: "/tmp/variants",
	})
	require.NoError(t, err)

	cfg := pl.Config()
	assert.Equal(t, []string{"original", "otsu"}, cfg.Variants)
	assert.Len(t, cfg.Formats, 2)
	assert.True(t, cfg.TryHarder)
	assert.True(t, cfg.Multi)
	assert.Equal(t, "/tmp/overlays", cfg.Overlay.Dir)
	assert.Equal(t, "/tmp/variants", cfg.SaveVariantsDir)
}

func TestBuildPipeline_InvalidFormatFilter(t *testing.T) {
	pl, err := buildPipeline(&Config{Formats: []string{"hieroglyphs"}})
	require.Error(t, err)
	assert.Nil(t, pl)
	assert.Contains(t, err.Error(), "invalid format filter")
}

func TestBuildPipeline_InvalidVariant(t *testing.T) {
	pl, err := buildPipeline(&Config{Variants: []string{"sepia"}})
	require.Error(t, err)
	assert.Nil(t, pl)
}

func TestBuildPipeline_ZxingSettings(t *testing.T) {
	pl, err := buildPipeline(&Config{
		Zxing:          true,
		ZxingContainer: "podman",
		ZxingImage:     "eclipse-temurin:17",
		ZxingTimeout:   30 * time.Second,
	})
	require.NoError(t, err)

	cfg := pl.Config()
	assert.True(t, cfg.Zxing.Enabled)
	assert.Equal(t, "podman", cfg.Zxing.ContainerTool)
	assert.Equal(t, "eclipse-temurin:17", cfg.Zxing.Image)
	assert.Equal(t, 30*time.Second, cfg.Zxing.Timeout)
}

func TestBuildPipeline_ZxingDisabledIgnoresSettings(t *testing.T) {
	pl, err := buildPipeline(&Config{
		Zxing:      false,
		ZxingImage: "eclipse-temurin:17",
	})
	require.NoError(t, err)

	cfg := pl.Config()
	assert.False(t, cfg.Zxing.Enabled)
	assert.Empty(t, cfg.Zxing.Image)
}
