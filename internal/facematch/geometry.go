package facematch

import (
	"image"
	"math"
)

// BoxFromCorners converts a detector bbox [x1, y1, x2, y2] in pixels to a
// rectangle, rounding outward so the whole face is kept.
// Returns false when bbox does not have four coordinates or is empty.
func BoxFromCorners(bbox []float64) (image.Rectangle, bool) {
	if len(bbox) != 4 {
		return image.Rectangle{}, false
	}
	for _, v := range bbox {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return image.Rectangle{}, false
		}
	}
	r := image.Rect(
		int(math.Floor(bbox[0])),
		int(math.Floor(bbox[1])),
		int(math.Ceil(bbox[2])),
		int(math.Ceil(bbox[3])),
	)
	if r.Empty() {
		return image.Rectangle{}, false
	}
	return r, true
}

// ClampBox limits box to bounds. Negative coordinates end up at the image edge.
// The result is empty when box lies entirely outside bounds.
func ClampBox(box, bounds image.Rectangle) image.Rectangle {
	return box.Canon().Intersect(bounds)
}

// Area returns the pixel area of r.
func Area(r image.Rectangle) int {
	if r.Empty() {
		return 0
	}
	return r.Dx() * r.Dy()
}

// ExpandBox grows box by margin (a fraction of its size) on every side
// and clamps the result to bounds.
func ExpandBox(box image.Rectangle, margin float64, bounds image.Rectangle) image.Rectangle {
	if margin <= 0 {
		return ClampBox(box, bounds)
	}
	dx := int(math.Round(float64(box.Dx()) * margin))
	dy := int(math.Round(float64(box.Dy()) * margin))
	return ClampBox(image.Rect(box.Min.X-dx, box.Min.Y-dy, box.Max.X+dx, box.Max.Y+dy), bounds)
}

// LargestBox returns the index of the box with the largest area after clamping
// to bounds. Ties keep the earliest box. Returns -1 when every box is empty.
func LargestBox(boxes []image.Rectangle, bounds image.Rectangle) int {
	best, bestArea := -1, 0
	for i, b := range boxes {
		if a := Area(ClampBox(b, bounds)); a > bestArea {
			best, bestArea = i, a
		}
	}
	return best
}
