package preprocess

import (
	"image"
	"image/color"

	"github.com/MeKo-Tech/bargo/internal/mempool"
)

// integralPool recycles integral-image buffers across variant runs; a batch
// over same-sized frames otherwise reallocates (w+1)*(h+1) words per image.
var integralPool mempool.Pool[uint64]

// OtsuThreshold computes the global binarization cutoff that maximizes
// between-class variance over the 256-bin histogram.
func OtsuThreshold(gray *image.Gray) uint8 {
	b := gray.Bounds()
	totalPixels := b.Dx() * b.Dy()
	if totalPixels == 0 {
		return 128
	}

	var histogram [256]int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			histogram[gray.GrayAt(x, y).Y]++
		}
	}

	var totalSum float64
	for i := range histogram {
		totalSum += float64(i) * float64(histogram[i])
	}

	var maxVariance, sumB float64
	bestThreshold := 0
	wB := 0

	for t := range histogram {
		wB += histogram[t]
		if wB == 0 {
			continue
		}

		wF := totalPixels - wB
		if wF == 0 {
			break
		}

		sumB += float64(t) * float64(histogram[t])
		meanB := sumB / float64(wB)
		meanF := (totalSum - sumB) / float64(wF)

		// Between-class variance
		variance := float64(wB) * float64(wF) * (meanB - meanF) * (meanB - meanF)

		if variance > maxVariance {
			maxVariance = variance
			bestThreshold = t
		}
	}

	return uint8(bestThreshold) //nolint:gosec // G115: bestThreshold is a histogram index in [0,255]
}

// Threshold binarizes against a fixed cutoff: pixels above it become white,
// the rest black.
func Threshold(gray *image.Gray, cutoff uint8) *image.Gray {
	b := gray.Bounds()
	dst := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if gray.GrayAt(x, y).Y > cutoff {
				dst.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return dst
}

// AdaptiveThreshold binarizes against the local mean of a block-sized window
// minus a constant offset. An integral image keeps the window sum O(1) per
// pixel; windows are clamped at the borders.
func AdaptiveThreshold(gray *image.Gray, block int, c float64) *image.Gray {
	if block < 3 {
		block = 3
	}
	if block%2 == 0 {
		block++
	}

	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(b)
	if w == 0 || h == 0 {
		return dst
	}

	// integral[(y+1)*stride+x+1] holds the pixel sum over [0,0)..(x,y].
	// Row 0 and column 0 stay zero as the base case, which Get guarantees.
	stride := w + 1
	integral := integralPool.Get((w + 1) * (h + 1))
	defer integralPool.Put(integral)
	for y := 0; y < h; y++ {
		var rowSum uint64
		for x := 0; x < w; x++ {
			rowSum += uint64(gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			integral[(y+1)*stride+x+1] = integral[y*stride+x+1] + rowSum
		}
	}

	half := block / 2
	for y := 0; y < h; y++ {
		y0 := max(0, y-half)
		y1 := min(h-1, y+half)
		for x := 0; x < w; x++ {
			x0 := max(0, x-half)
			x1 := min(w-1, x+half)

			count := (x1 - x0 + 1) * (y1 - y0 + 1)
			sum := integral[(y1+1)*stride+x1+1] - integral[y0*stride+x1+1] -
				integral[(y1+1)*stride+x0] + integral[y0*stride+x0]
			mean := float64(sum) / float64(count)

			if float64(gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y) > mean-c {
				dst.SetGray(b.Min.X+x, b.Min.Y+y, color.Gray{Y: 255})
			}
		}
	}
	return dst
}
