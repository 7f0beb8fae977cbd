// Package common - Detection records shared by every detector backend.
package common

import (
	"fmt"
	"image"

	"github.com/chewxy/math32"
)

// BBox is a bounding box in normalized image coordinates.
//
// Y fields are fractions of the image height and X fields fractions of the image width, so a box
// covering the whole image is {0, 0, 1, 1}. Nothing enforces the [0, 1] range on construction;
// use Clip when a backend may overshoot the image edges.
type BBox struct {
	Ymin float32 `json:"ymin" yaml:"ymin"`
	Xmin float32 `json:"xmin" yaml:"xmin"`
	Ymax float32 `json:"ymax" yaml:"ymax"`
	Xmax float32 `json:"xmax" yaml:"xmax"`
}

// FullImage is the reference box spanning the entire image.
var FullImage = BBox{Ymin: 0, Xmin: 0, Ymax: 1, Xmax: 1}

// String formats the box for display.
func (b BBox) String() string {
	return fmt.Sprintf("(ymin=%.4f, xmin=%.4f, ymax=%.4f, xmax=%.4f)", b.Ymin, b.Xmin, b.Ymax, b.Xmax)
}

// Width returns the horizontal extent of the box.
func (b BBox) Width() float32 {
	return b.Xmax - b.Xmin
}

// Height returns the vertical extent of the box.
func (b BBox) Height() float32 {
	return b.Ymax - b.Ymin
}

// Area returns the area of the box, or 0 for degenerate boxes.
func (b BBox) Area() float32 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Valid reports whether the box is ordered (min <= max) and lies in [0, 1].
func (b BBox) Valid() bool {
	for _, v := range []float32{b.Ymin, b.Xmin, b.Ymax, b.Xmax} {
		if v < 0 || v > 1 || math32.IsNaN(v) {
			return false
		}
	}
	return b.Ymin <= b.Ymax && b.Xmin <= b.Xmax
}

// Clip clamps every coordinate into [0, 1].
func (b BBox) Clip() BBox {
	return b.ClipTo(FullImage)
}

// ClipTo clamps the box so it lies inside ref.
//
// Arguments:
//   - ref: The reference box, in the same coordinate space as b.
//
// Returns:
//   - The clipped box.
func (b BBox) ClipTo(ref BBox) BBox {
	return BBox{
		Ymin: clamp(b.Ymin, ref.Ymin, ref.Ymax),
		Xmin: clamp(b.Xmin, ref.Xmin, ref.Xmax),
		Ymax: clamp(b.Ymax, ref.Ymin, ref.Ymax),
		Xmax: clamp(b.Xmax, ref.Xmin, ref.Xmax),
	}
}

// Intersection returns the area shared by the two boxes.
func (b BBox) Intersection(other BBox) float32 {
	overlap := BBox{
		Ymin: math32.Max(b.Ymin, other.Ymin),
		Xmin: math32.Max(b.Xmin, other.Xmin),
		Ymax: math32.Min(b.Ymax, other.Ymax),
		Xmax: math32.Min(b.Xmax, other.Xmax),
	}
	return overlap.Area()
}

// IoU calculates the Intersection over Union between two boxes.
//
// Works in any coordinate space as long as both boxes share it, so it serves normalized boxes as
// well as the pixel-space boxes produced while decoding raw network output.
//
// Returns:
//   - A value between 0 and 1; 0 when the union is empty.
func (b BBox) IoU(other BBox) float32 {
	inter := b.Intersection(other)
	union := b.Area() + other.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// ToRect converts the normalized box to pixel coordinates of an image with the given size.
//
// This loses the fractional pixels around the edges.
//
// Example:
//
// ```go
//
//	box := BBox{Ymin: 0, Xmin: 0, Ymax: 0.5, Xmax: 0.5}
//	rect := box.ToRect(200, 100) // (0,0)-(100,50)
//
// ```
func (b BBox) ToRect(width, height int) image.Rectangle {
	w, h := float32(width), float32(height)
	return image.Rect(
		int(math32.Round(b.Xmin*w)),
		int(math32.Round(b.Ymin*h)),
		int(math32.Round(b.Xmax*w)),
		int(math32.Round(b.Ymax*h)),
	).Canon()
}

func clamp(v, lo, hi float32) float32 {
	return math32.Min(math32.Max(v, lo), hi)
}
