package pipeline

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/dhjs0000/QERC/internal/utils"
)

// OverlayStyle controls how found regions are marked.
type OverlayStyle struct {
	Outline   color.Color
	Fill      color.Color
	Label     color.Color
	Thickness int
	// ShowLabels draws "Barcode N" above each box.
	ShowLabels bool
}

// DefaultOverlayStyle draws red 2px boxes with a translucent red fill.
func DefaultOverlayStyle() OverlayStyle {
	return OverlayStyle{
		Outline:    color.NRGBA{R: 255, A: 255},
		Fill:       color.NRGBA{R: 255, A: 50},
		Label:      color.NRGBA{R: 255, A: 255},
		Thickness:  2,
		ShowLabels: true,
	}
}

// OverlayStyleFromHex builds a style from "#rrggbb" colors. fillAlpha is in [0,1].
func OverlayStyleFromHex(outline, fill string, fillAlpha float64, thickness int) (OverlayStyle, error) {
	style := DefaultOverlayStyle()
	o, err := utils.ParseColor(outline, 1)
	if err != nil {
		return style, fmt.Errorf("outline color: %w", err)
	}
	f, err := utils.ParseColor(fill, fillAlpha)
	if err != nil {
		return style, fmt.Errorf("fill color: %w", err)
	}
	style.Outline, style.Fill, style.Label = o, f, o
	if thickness > 0 {
		style.Thickness = thickness
	}
	return style, nil
}

// RenderOverlay returns a copy of img with every region boxed and numbered
// in order. Regions are clamped to the image.
func RenderOverlay(img image.Image, regions []Region, style OverlayStyle) *image.NRGBA {
	if img == nil {
		return nil
	}
	dst := imaging.Clone(img)
	bounds := dst.Bounds()

	for i, r := range regions {
		rect := r.Clamp(bounds)
		if rect.Empty() {
			continue
		}
		if style.Fill != nil {
			utils.FillRect(dst, rect, style.Fill)
		}
		if style.Outline != nil {
			utils.DrawRect(dst, rect, style.Outline, style.Thickness)
		}
		if style.ShowLabels && style.Label != nil {
			drawLabel(dst, rect, fmt.Sprintf("Barcode %d", i+1), style.Label)
		}
	}
	return dst
}

// RenderAggregator is RenderOverlay over the locations recorded for imageID.
func RenderAggregator(img image.Image, agg *Aggregator, imageID string, style OverlayStyle) *image.NRGBA {
	return RenderOverlay(img, agg.LocationsOf(imageID), style)
}

func drawLabel(dst *image.NRGBA, rect image.Rectangle, text string, col color.Color) {
	face := basicfont.Face7x13
	// Baseline sits just above the box, or inside it at the top edge.
	y := rect.Min.Y - 4
	if y-face.Ascent < 0 {
		y = rect.Min.Y + face.Ascent + 2
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(rect.Min.X+2, y),
	}
	d.DrawString(text)
}
