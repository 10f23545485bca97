package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Variant is one contrast/brightness hypothesis applied to the whole image
// before cropping: p' = clamp(p*Contrast + Brightness).
type Variant struct {
	Contrast   float64 `json:"contrast" yaml:"contrast" mapstructure:"contrast"`
	Brightness float64 `json:"brightness" yaml:"brightness" mapstructure:"brightness"`
}

// IsIdentity reports whether the variant leaves pixels unchanged.
func (v Variant) IsIdentity() bool {
	return v.Contrast == 1 && v.Brightness == 0
}

func (v Variant) String() string {
	return fmt.Sprintf("contrast=%.2f brightness=%+.0f", v.Contrast, v.Brightness)
}

// PlanVariants returns the default enhancement plan: identity, brighter with
// more contrast, darker with more contrast, brighter with less contrast.
func PlanVariants() []Variant {
	return []Variant{
		{Contrast: 1.0, Brightness: 0},
		{Contrast: 1.2, Brightness: 20},
		{Contrast: 1.5, Brightness: -20},
		{Contrast: 0.8, Brightness: 30},
	}
}

// ApplyVariant returns a transformed copy of img. Alpha is preserved.
func ApplyVariant(img image.Image, v Variant) *image.NRGBA {
	if v.IsIdentity() {
		return imaging.Clone(img)
	}
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: adjustChannel(c.R, v),
			G: adjustChannel(c.G, v),
			B: adjustChannel(c.B, v),
			A: c.A,
		}
	})
}

func adjustChannel(c uint8, v Variant) uint8 {
	x := math.RoundToEven(float64(c)*v.Contrast + v.Brightness)
	switch {
	case x < 0:
		return 0
	case x > 255:
		return 255
	default:
		return uint8(x)
	}
}
