package preprocess

import (
	"image"
	"image/color"
)

// Sharpen3x3 convolves the image with the high-boost kernel
//
//	-1 -1 -1
//	-1  9 -1
//	-1 -1 -1
//
// amplifying local contrast around module edges. The window is clamped at
// the borders and the result to [0, 255].
func Sharpen3x3(gray *image.Gray) *image.Gray {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(b)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum int
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					nx := min(max(x+kx, 0), w-1)
					ny := min(max(y+ky, 0), h-1)
					v := int(gray.GrayAt(b.Min.X+nx, b.Min.Y+ny).Y)
					if kx == 0 && ky == 0 {
						sum += 9 * v
					} else {
						sum -= v
					}
				}
			}
			dst.SetGray(b.Min.X+x, b.Min.Y+y, color.Gray{Y: clampByte(sum)})
		}
	}
	return dst
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
