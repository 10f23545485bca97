package utils

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// CropImageRect crops img to rect after clamping it to the image bounds.
// The crop is re-based at the origin. ok is false for an empty intersection.
func CropImageRect(img image.Image, rect image.Rectangle) (image.Image, bool) {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return nil, false
	}
	if rect == img.Bounds() && rect.Min == (image.Point{}) {
		return img, true
	}
	return imaging.Crop(img, rect), true
}

// DrawRect draws an axis-aligned rectangle outline into dst.
func DrawRect(dst draw.Image, rect image.Rectangle, col color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	rect = rect.Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	for t := range thickness {
		yTop := rect.Min.Y + t
		yBot := rect.Max.Y - 1 - t
		for x := rect.Min.X; x < rect.Max.X; x++ {
			dst.Set(x, yTop, col)
			dst.Set(x, yBot, col)
		}
	}
	for t := range thickness {
		xLeft := rect.Min.X + t
		xRight := rect.Max.X - 1 - t
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			dst.Set(xLeft, y, col)
			dst.Set(xRight, y, col)
		}
	}
}

// FillRect blends col over rect using col's alpha.
func FillRect(dst draw.Image, rect image.Rectangle, col color.Color) {
	rect = rect.Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	draw.Draw(dst, rect, image.NewUniform(col), image.Point{}, draw.Over)
}

// ParseColor parses a "#rgb" or "#rrggbb" hex color and applies alpha (0..1).
func ParseColor(hex string, alpha float64) (color.NRGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", hex, err)
	}
	if alpha < 0 || alpha > 1 {
		return color.NRGBA{}, fmt.Errorf("invalid alpha %v: must be within [0,1]", alpha)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: uint8(alpha*255 + 0.5)}, nil
}
