package testutil

import (
	"image"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/blend"
	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/noise"
	"github.com/anthonynsimon/bild/transform"
)

// Degradation is a named distortion applied to a clean fixture to imitate
// poor captures.
type Degradation struct {
	Name  string
	Apply func(image.Image) image.Image
}

// LowContrast compresses the tonal range; change is in [-1, 0).
func LowContrast(img image.Image, change float64) image.Image {
	return adjust.Contrast(img, change)
}

// Brightness shifts every channel; change is in [-1, 1].
func Brightness(img image.Image, change float64) image.Image {
	return adjust.Brightness(img, change)
}

// Blur applies a Gaussian blur with the given radius in pixels.
func Blur(img image.Image, radius float64) image.Image {
	return blur.Gaussian(img, radius)
}

// Rotate turns img by angle degrees, growing the canvas to fit.
func Rotate(img image.Image, angle float64) image.Image {
	return transform.Rotate(img, angle, &transform.RotationOptions{ResizeBounds: true})
}

// Noisy blends monochrome uniform noise over img at the given opacity (0..1).
func Noisy(img image.Image, opacity float64) image.Image {
	b := img.Bounds()
	n := noise.Generate(b.Dx(), b.Dy(), &noise.Options{Monochrome: true, NoiseFn: noise.Uniform})
	return blend.Opacity(img, n, opacity)
}

// Degradations returns the distortions written next to every clean fixture.
// Each keeps the code readable by at least one enhancement variant.
func Degradations() []Degradation {
	return []Degradation{
		{Name: "low_contrast", Apply: func(img image.Image) image.Image { return LowContrast(img, -0.6) }},
		{Name: "dark", Apply: func(img image.Image) image.Image { return Brightness(img, -0.35) }},
		{Name: "bright", Apply: func(img image.Image) image.Image { return Brightness(img, 0.3) }},
		{Name: "blur", Apply: func(img image.Image) image.Image { return Blur(img, 1.2) }},
		{Name: "noise", Apply: func(img image.Image) image.Image { return Noisy(img, 0.15) }},
		{Name: "rotated", Apply: func(img image.Image) image.Image { return Rotate(img, 8) }},
	}
}
