package vision

import (
	"gocv.io/x/gocv"

	"github.com/timvw/shapeqa/internal/model"
)

// hsvRange is an inclusive OpenCV HSV range (H in [0,180], S and V in [0,255]).
type hsvRange struct {
	lower, upper [3]float64
}

func (r hsvRange) scalars() (gocv.Scalar, gocv.Scalar) {
	return gocv.NewScalar(r.lower[0], r.lower[1], r.lower[2], 0),
		gocv.NewScalar(r.upper[0], r.upper[1], r.upper[2], 0)
}

// paletteEntry is one palette color. Red needs two ranges because its hue
// wraps around 0/180.
type paletteEntry struct {
	color  model.Color
	ranges []hsvRange
}

// palette lists the recognized colors in detection order. Ranges are
// disjoint: gray is capped at saturation 50 while every chromatic color
// requires at least 100, and the chromatic hue bands do not touch.
var palette = []paletteEntry{
	{color: model.ColorRed, ranges: []hsvRange{
		{lower: [3]float64{0, 120, 70}, upper: [3]float64{10, 255, 255}},
		{lower: [3]float64{170, 120, 70}, upper: [3]float64{180, 255, 255}},
	}},
	{color: model.ColorGreen, ranges: []hsvRange{
		{lower: [3]float64{35, 100, 100}, upper: [3]float64{85, 255, 255}},
	}},
	{color: model.ColorBlue, ranges: []hsvRange{
		{lower: [3]float64{100, 150, 0}, upper: [3]float64{140, 255, 255}},
	}},
	{color: model.ColorYellow, ranges: []hsvRange{
		{lower: [3]float64{20, 100, 100}, upper: [3]float64{30, 255, 255}},
	}},
	{color: model.ColorGray, ranges: []hsvRange{
		{lower: [3]float64{0, 0, 40}, upper: [3]float64{180, 50, 220}},
	}},
}

// colorMask returns the binary mask of pixels in any of the entry's ranges.
// The caller owns the returned Mat.
func (e paletteEntry) colorMask(hsv gocv.Mat) gocv.Mat {
	mask := gocv.NewMat()
	for i, r := range e.ranges {
		lb, ub := r.scalars()
		if i == 0 {
			gocv.InRangeWithScalar(hsv, lb, ub, &mask)
			continue
		}
		part := gocv.NewMat()
		gocv.InRangeWithScalar(hsv, lb, ub, &part)
		gocv.BitwiseOr(mask, part, &mask)
		part.Close()
	}
	return mask
}
