package preprocess

import (
	"image"
	"image/draw"
)

// ToGray converts an image to 8-bit grayscale. Inputs that are already
// grayscale are returned unchanged.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	dst := image.NewGray(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return dst
}
