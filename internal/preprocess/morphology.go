package preprocess

import (
	"image"
	"image/color"
)

// Dilate expands bright regions using a square kernel, applied for the
// given number of iterations. Thin quiet zones around a symbol survive
// dilation better than the symbol bars do, which sometimes reconnects
// broken modules.
func Dilate(gray *image.Gray, kernelSize, iterations int) *image.Gray {
	if kernelSize <= 1 || iterations <= 0 {
		return gray
	}
	out := gray
	for i := 0; i < iterations; i++ {
		out = dilateOnce(out, kernelSize)
	}
	return out
}

// Erode shrinks bright regions using a square kernel, applied for the
// given number of iterations.
func Erode(gray *image.Gray, kernelSize, iterations int) *image.Gray {
	if kernelSize <= 1 || iterations <= 0 {
		return gray
	}
	out := gray
	for i := 0; i < iterations; i++ {
		out = erodeOnce(out, kernelSize)
	}
	return out
}

func dilateOnce(gray *image.Gray, kernelSize int) *image.Gray {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(b)
	half := kernelSize / 2

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			maxVal := uint8(0)

			// Check all pixels in the kernel
			for ky := -half; ky <= half; ky++ {
				for kx := -half; kx <= half; kx++ {
					nx, ny := x+kx, y+ky
					if nx >= 0 && nx < w && ny >= 0 && ny < h {
						if v := gray.GrayAt(b.Min.X+nx, b.Min.Y+ny).Y; v > maxVal {
							maxVal = v
						}
					}
				}
			}

			dst.SetGray(b.Min.X+x, b.Min.Y+y, color.Gray{Y: maxVal})
		}
	}
	return dst
}

func erodeOnce(gray *image.Gray, kernelSize int) *image.Gray {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(b)
	half := kernelSize / 2

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			minVal := uint8(255)

			// Check all pixels in the kernel
			for ky := -half; ky <= half; ky++ {
				for kx := -half; kx <= half; kx++ {
					nx, ny := x+kx, y+ky
					if nx >= 0 && nx < w && ny >= 0 && ny < h {
						if v := gray.GrayAt(b.Min.X+nx, b.Min.Y+ny).Y; v < minVal {
							minVal = v
						}
					}
				}
			}

			dst.SetGray(b.Min.X+x, b.Min.Y+y, color.Gray{Y: minVal})
		}
	}
	return dst
}
