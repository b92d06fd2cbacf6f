// Package preprocess derives decode variants from a source image.
//
// Scanned input rarely decodes as-is. The recipe runs a fixed sequence of
// contrast and geometry operations, each producing a candidate that the
// decode engines get a fresh look at. The order is stable and observable:
// cheap global corrections come first, morphology last.
package preprocess

import (
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
)

// Transform is a named, pure operation producing one decode variant.
// Scale is the coordinate factor from source to variant space; positions
// reported on the variant divide by it to land back on the source.
type Transform struct {
	Name  string
	Scale float64
	Apply func(image.Image) (image.Image, error)
}

const (
	adaptiveBlock = 91
	adaptiveC     = 11
	blurSigma     = 1.1 // matches a 5x5 Gaussian kernel
	upscaleFactor = 2
	morphKernel   = 3
	morphPasses   = 1
)

// DefaultRecipe returns the standard variant sequence in decode order.
func DefaultRecipe() []Transform {
	return []Transform{
		{Name: "original", Scale: 1, Apply: applyOriginal},
		{Name: "gray", Scale: 1, Apply: applyGray},
		{Name: "otsu", Scale: 1, Apply: applyOtsu},
		{Name: "adaptive", Scale: 1, Apply: applyAdaptive},
		{Name: "blur-otsu", Scale: 1, Apply: applyBlurOtsu},
		{Name: "sharpen", Scale: 1, Apply: applySharpen},
		{Name: "clahe", Scale: 1, Apply: applyCLAHE},
		{Name: "upscale", Scale: upscaleFactor, Apply: applyUpscale},
		{Name: "invert", Scale: 1, Apply: applyInvert},
		{Name: "dilate", Scale: 1, Apply: applyDilate},
		{Name: "erode", Scale: 1, Apply: applyErode},
	}
}

// Recipe resolves variant names into an ordered transform list. With no
// names the full default recipe is returned; unknown names are an error.
func Recipe(names ...string) ([]Transform, error) {
	if len(names) == 0 {
		return DefaultRecipe(), nil
	}
	byName := make(map[string]Transform)
	for _, tr := range DefaultRecipe() {
		byName[tr.Name] = tr
	}
	out := make([]Transform, 0, len(names))
	for _, n := range names {
		tr, ok := byName[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return nil, fmt.Errorf("unknown variant %q (available: %s)", n, strings.Join(Names(), ", "))
		}
		out = append(out, tr)
	}
	return out, nil
}

// Names lists the default recipe variant names in order.
func Names() []string {
	recipe := DefaultRecipe()
	names := make([]string, len(recipe))
	for i, tr := range recipe {
		names[i] = tr.Name
	}
	return names
}

func applyOriginal(img image.Image) (image.Image, error) {
	return img, nil
}

func applyGray(img image.Image) (image.Image, error) {
	return ToGray(img), nil
}

func applyOtsu(img image.Image) (image.Image, error) {
	g := ToGray(img)
	return Threshold(g, OtsuThreshold(g)), nil
}

func applyAdaptive(img image.Image) (image.Image, error) {
	return AdaptiveThreshold(ToGray(img), adaptiveBlock, adaptiveC), nil
}

func applyBlurOtsu(img image.Image) (image.Image, error) {
	blurred := ToGray(imaging.Blur(ToGray(img), blurSigma))
	return Threshold(blurred, OtsuThreshold(blurred)), nil
}

func applySharpen(img image.Image) (image.Image, error) {
	return Sharpen3x3(ToGray(img)), nil
}

func applyCLAHE(img image.Image) (image.Image, error) {
	return CLAHE(ToGray(img), DefaultCLAHEConfig()), nil
}

func applyUpscale(img image.Image) (image.Image, error) {
	b := img.Bounds()
	return imaging.Resize(img, b.Dx()*upscaleFactor, b.Dy()*upscaleFactor, imaging.CatmullRom), nil
}

func applyInvert(img image.Image) (image.Image, error) {
	return imaging.Invert(ToGray(img)), nil
}

func applyDilate(img image.Image) (image.Image, error) {
	return Dilate(ToGray(img), morphKernel, morphPasses), nil
}

func applyErode(img image.Image) (image.Image, error) {
	return Erode(ToGray(img), morphKernel, morphPasses), nil
}
