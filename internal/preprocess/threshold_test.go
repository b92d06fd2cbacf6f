package preprocess

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeGray(w, h int, fill uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = fill
	}
	return img
}

func TestOtsuThresholdBimodal(t *testing.T) {
	// Left half dark, right half bright: the cutoff must separate the modes.
	img := image.NewGray(image.Rect(0, 0, 40, 20))
	for y := range 20 {
		for x := range 40 {
			v := uint8(20)
			if x >= 20 {
				v = 220
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}

	cutoff := OtsuThreshold(img)
	assert.GreaterOrEqual(t, cutoff, uint8(20))
	assert.Less(t, cutoff, uint8(220))

	bin := Threshold(img, cutoff)
	var white, black int
	for y := range 20 {
		for x := range 40 {
			switch bin.GrayAt(x, y).Y {
			case 255:
				white++
			case 0:
				black++
			default:
				t.Fatalf("non-binary pixel at (%d,%d): %d", x, y, bin.GrayAt(x, y).Y)
			}
		}
	}
	assert.Equal(t, 400, white)
	assert.Equal(t, 400, black)
}

func TestOtsuThresholdEmpty(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 0, 0))
	assert.Equal(t, uint8(128), OtsuThreshold(img))
}

func TestThresholdCutoff(t *testing.T) {
	img := makeGray(4, 1, 0)
	img.SetGray(0, 0, color.Gray{Y: 100})
	img.SetGray(1, 0, color.Gray{Y: 101})
	img.SetGray(2, 0, color.Gray{Y: 99})
	img.SetGray(3, 0, color.Gray{Y: 255})

	bin := Threshold(img, 100)
	assert.Equal(t, uint8(0), bin.GrayAt(0, 0).Y, "equal to cutoff stays black")
	assert.Equal(t, uint8(255), bin.GrayAt(1, 0).Y)
	assert.Equal(t, uint8(0), bin.GrayAt(2, 0).Y)
	assert.Equal(t, uint8(255), bin.GrayAt(3, 0).Y)
}

func TestAdaptiveThresholdUniform(t *testing.T) {
	// Uniform input sits above its own local mean minus the offset,
	// so everything goes white.
	img := makeGray(50, 50, 128)
	bin := AdaptiveThreshold(img, 11, 5)
	for y := range 50 {
		for x := range 50 {
			require.Equal(t, uint8(255), bin.GrayAt(x, y).Y, "pixel (%d,%d)", x, y)
		}
	}
}

func TestAdaptiveThresholdDarkSpot(t *testing.T) {
	img := makeGray(60, 60, 200)
	for y := 25; y < 35; y++ {
		for x := 25; x < 35; x++ {
			img.SetGray(x, y, color.Gray{Y: 20})
		}
	}

	bin := AdaptiveThreshold(img, 21, 10)
	assert.Equal(t, uint8(0), bin.GrayAt(30, 30).Y, "spot center should be black")
	assert.Equal(t, uint8(255), bin.GrayAt(5, 5).Y, "background should be white")
}

func TestAdaptiveThresholdEvenBlock(t *testing.T) {
	// Even block sizes are bumped to the next odd size rather than rejected.
	img := makeGray(16, 16, 90)
	bin := AdaptiveThreshold(img, 4, 2)
	assert.Equal(t, 16, bin.Bounds().Dx())
	assert.Equal(t, uint8(255), bin.GrayAt(8, 8).Y)
}
