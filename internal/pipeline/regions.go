package pipeline

import (
	"fmt"
	"image"
	"math"
)

// stripOverlap stretches each strip so it overlaps the next one by 20%.
const stripOverlap = 1.2

// Region is an axis-aligned rectangle in source image pixels. It may extend
// past the image bounds or start at negative coordinates; readers clamp it.
type Region struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Rect returns the smallest integer rectangle covering r.
func (r Region) Rect() image.Rectangle {
	return image.Rect(
		int(math.Floor(r.X)),
		int(math.Floor(r.Y)),
		int(math.Ceil(r.X+r.Width)),
		int(math.Ceil(r.Y+r.Height)),
	)
}

// Clamp returns the part of r inside bounds as an integer rectangle.
// The result is empty when r does not intersect bounds.
func (r Region) Clamp(bounds image.Rectangle) image.Rectangle {
	return r.Rect().Intersect(bounds)
}

// Overlaps reports whether r shares any pixel with rect.
func (r Region) Overlaps(rect image.Rectangle) bool {
	return r.Rect().Overlaps(rect)
}

func (r Region) String() string {
	return fmt.Sprintf("(%.1f,%.1f %.1fx%.1f)", r.X, r.Y, r.Width, r.Height)
}

// PlanRegions returns the fixed scan plan for an image of the given size:
// overlapping full-width strips top to bottom, overlapping full-height strips
// left to right, the whole image, then four corner squares of half the longer
// side (top-left, top-right, bottom-left, bottom-right). The plan depends on
// the dimensions only. Non-positive dimensions yield no regions.
func PlanRegions(width, height int) []Region {
	if width <= 0 || height <= 0 {
		return nil
	}

	w, h := float64(width), float64(height)
	minSize := math.Min(w, h) / 3

	verticalSlices := int(math.Ceil(h / minSize))
	horizontalSlices := int(math.Ceil(w / minSize))
	regions := make([]Region, 0, verticalSlices+horizontalSlices+5)

	sliceHeight := h / float64(verticalSlices)
	for i := range verticalSlices {
		regions = append(regions, Region{
			X:      0,
			Y:      float64(i) * sliceHeight,
			Width:  w,
			Height: sliceHeight * stripOverlap,
		})
	}

	sliceWidth := w / float64(horizontalSlices)
	for i := range horizontalSlices {
		regions = append(regions, Region{
			X:      float64(i) * sliceWidth,
			Y:      0,
			Width:  sliceWidth * stripOverlap,
			Height: h,
		})
	}

	regions = append(regions, Region{X: 0, Y: 0, Width: w, Height: h})

	cornerSize := math.Max(w, h) / 2
	regions = append(regions,
		Region{X: 0, Y: 0, Width: cornerSize, Height: cornerSize},
		Region{X: w - cornerSize, Y: 0, Width: cornerSize, Height: cornerSize},
		Region{X: 0, Y: h - cornerSize, Width: cornerSize, Height: cornerSize},
		Region{X: w - cornerSize, Y: h - cornerSize, Width: cornerSize, Height: cornerSize},
	)

	return regions
}
