package preprocess

import (
	"image"
	"image/color"
	"math"
)

// CLAHEConfig holds contrast-limited adaptive histogram equalization settings.
type CLAHEConfig struct {
	ClipLimit float64 // clip factor relative to the uniform bin height
	TilesX    int
	TilesY    int
}

// DefaultCLAHEConfig returns clip 2.0 over an 8x8 tile grid.
func DefaultCLAHEConfig() CLAHEConfig {
	return CLAHEConfig{ClipLimit: 2.0, TilesX: 8, TilesY: 8}
}

// CLAHE applies contrast-limited adaptive histogram equalization. Each tile
// gets a clipped, renormalized equalization curve; every pixel is mapped
// through a bilinear blend of the four surrounding tile curves so tile
// seams stay invisible.
func CLAHE(gray *image.Gray, cfg CLAHEConfig) *image.Gray {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(b)
	if w == 0 || h == 0 {
		return dst
	}

	tilesX := min(max(cfg.TilesX, 1), w)
	tilesY := min(max(cfg.TilesY, 1), h)
	tileW := (w + tilesX - 1) / tilesX
	tileH := (h + tilesY - 1) / tilesY

	luts := make([][256]uint8, tilesX*tilesY)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			x0 := tx * tileW
			y0 := ty * tileH
			x1 := min(x0+tileW, w)
			y1 := min(y0+tileH, h)
			luts[ty*tilesX+tx] = tileLUT(gray, b, x0, y0, x1, y1, cfg.ClipLimit)
		}
	}

	for y := 0; y < h; y++ {
		ty0, ty1, wy := interpCoord((float64(y)+0.5)/float64(tileH)-0.5, tilesY)
		for x := 0; x < w; x++ {
			tx0, tx1, wx := interpCoord((float64(x)+0.5)/float64(tileW)-0.5, tilesX)
			v := gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y

			v00 := float64(luts[ty0*tilesX+tx0][v])
			v01 := float64(luts[ty0*tilesX+tx1][v])
			v10 := float64(luts[ty1*tilesX+tx0][v])
			v11 := float64(luts[ty1*tilesX+tx1][v])

			top := v00*(1-wx) + v01*wx
			bottom := v10*(1-wx) + v11*wx
			out := top*(1-wy) + bottom*wy

			dst.SetGray(b.Min.X+x, b.Min.Y+y, color.Gray{Y: uint8(math.Round(out))}) //nolint:gosec // G115: blend of byte values stays in [0,255]
		}
	}
	return dst
}

// interpCoord maps a continuous tile coordinate to the two neighboring tile
// indices and the blend weight of the second. Beyond the outermost tile
// centers the edge tile is used alone.
func interpCoord(f float64, tiles int) (int, int, float64) {
	t0 := int(math.Floor(f))
	t1 := t0 + 1
	if t0 < 0 {
		return 0, 0, 0
	}
	if t1 >= tiles {
		last := tiles - 1
		return last, last, 0
	}
	return t0, t1, f - float64(t0)
}

// tileLUT builds the clipped equalization curve for one tile.
func tileLUT(gray *image.Gray, bounds image.Rectangle, x0, y0, x1, y1 int, clip float64) [256]uint8 {
	var lut [256]uint8
	total := (x1 - x0) * (y1 - y0)
	if total == 0 {
		for i := range lut {
			lut[i] = uint8(i) //nolint:gosec // G115: loop index in [0,255]
		}
		return lut
	}

	var hist [256]int
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			hist[gray.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y]++
		}
	}

	// Clip the histogram and redistribute the excess uniformly. The clip is
	// what keeps flat regions from exploding into noise.
	if clip > 0 {
		limit := max(int(clip*float64(total)/256.0), 1)
		excess := 0
		for i := range hist {
			if hist[i] > limit {
				excess += hist[i] - limit
				hist[i] = limit
			}
		}
		bonus := excess / 256
		rem := excess % 256
		for i := range hist {
			hist[i] += bonus
			if i < rem {
				hist[i]++
			}
		}
	}

	scale := 255.0 / float64(total)
	cum := 0
	for i := range hist {
		cum += hist[i]
		v := math.Round(float64(cum) * scale)
		if v > 255 {
			v = 255
		}
		lut[i] = uint8(v)
	}
	return lut
}
