package zxing

import (
	"image"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/bargo/internal/barcode"
)

const qrOutput = `file:/app/img.png (format: QR_CODE, type: URI):
Raw result:
https://example.com/item/42
Parsed result:
https://example.com/item/42
Found 4 result points.
  Point 0: (35.0,204.0)
  Point 1: (35.0,35.5)
  Point 2: (204.0,35.5)
  Point 3: (175.5,175.5)
`

const pdf417Output = `file:/app/label.png (format: PDF_417, type: TEXT):
Raw result:
[)>06
420MEMPHIS
Parsed result:
[)>06
420MEMPHIS
Found 8 result points.
  Point 0: (38.0,132.0)
  Point 1: (38.0,52.0)
  Point 2: (250.0,52.0)
  Point 3: (250.0,132.0)
  Point 4: (41.0,131.0)
  Point 5: (41.0,53.0)
  Point 6: (247.0,53.0)
  Point 7: (247.0,131.0)
`

func TestParseOutputQR(t *testing.T) {
	results, err := parseOutput(qrOutput)
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, barcode.FormatQR, res.Format)
	assert.Equal(t, "https://example.com/item/42", res.Payload)
	assert.Equal(t, Engine, res.Engine)

	require.Len(t, res.Points, 4)
	assert.Equal(t, barcode.Point{X: 35, Y: 204}, res.Points[0])
	assert.Equal(t, barcode.Point{X: 35, Y: 36}, res.Points[1])

	assert.Equal(t, image.Rect(35, 36, 205, 205), res.BBox)
	assert.False(t, math.IsNaN(res.Orientation))
}

func TestParseOutputMultilinePayload(t *testing.T) {
	results, err := parseOutput(pdf417Output)
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, barcode.FormatPDF417, res.Format)
	assert.Equal(t, "[)>06\n420MEMPHIS", res.Payload)
	assert.Len(t, res.Points, 8)
}

func TestParseOutputMultipleResults(t *testing.T) {
	results, err := parseOutput(qrOutput + pdf417Output)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, barcode.FormatQR, results[0].Format)
	assert.Equal(t, barcode.FormatPDF417, results[1].Format)
}

func TestParseOutputCRLF(t *testing.T) {
	crlf := strings.ReplaceAll(qrOutput, "\n", "\r\n")
	results, err := parseOutput(crlf)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://example.com/item/42", results[0].Payload)
}

func TestParseOutputUnknownFormatName(t *testing.T) {
	out := `file:/app/img.png (format: FUTURE_CODE, type: TEXT):
Raw result:
something
Parsed result:
something
`
	results, err := parseOutput(out)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, barcode.FormatUnknown, results[0].Format)
	assert.Equal(t, "something", results[0].Payload)
}

func TestParseOutputNoBarcode(t *testing.T) {
	_, err := parseOutput("file:/app/img.png: No barcode found\n")
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
}

func TestParseOutputGarbage(t *testing.T) {
	for _, out := range []string{"", "\n\n", "Exception in thread \"main\" java.lang.NoClassDefFoundError\n"} {
		_, err := parseOutput(out)
		var toolErr *ToolError
		require.ErrorAs(t, err, &toolErr, "output %q must conflate into ToolError", out)
	}
}

func TestParseOutputEmptyPayload(t *testing.T) {
	out := `file:/app/img.png (format: QR_CODE, type: TEXT):
Raw result:
Parsed result:
Found 3 result points.
  Point 0: (1.0,1.0)
  Point 1: (2.0,1.0)
  Point 2: (2.0,2.0)
`
	results, err := parseOutput(out)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Payload)
	assert.Len(t, results[0].Points, 3)
}
