package vision

import (
	"image"
	"math"

	"github.com/timvw/shapeqa/internal/model"
)

// Thresholds are the tunable constants of the shape classifier.
type Thresholds struct {
	// MinArea is the smallest contour area (px²) kept; smaller contours are noise.
	MinArea float64 `yaml:"min_area"`
	// EpsilonFactor scales the contour perimeter into the polygon
	// approximation tolerance.
	EpsilonFactor float64 `yaml:"epsilon_factor"`
	// SquareTolerance is the allowed |width/height - 1| for a square.
	SquareTolerance float64 `yaml:"square_tolerance"`
	// Circularity is the minimum 4πA/P² for a many-sided contour to count
	// as a circle.
	Circularity float64 `yaml:"circularity"`
}

// DefaultThresholds returns the thresholds tuned on synthetic shape images.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinArea:         100,
		EpsilonFactor:   0.02,
		SquareTolerance: 0.10,
		Circularity:     0.80,
	}
}

// ContourGeometry is the color-independent description of a contour that
// shape classification depends on.
type ContourGeometry struct {
	Vertices  int
	Width     int
	Height    int
	Area      float64
	Perimeter float64
}

// AspectRatio returns width/height of the bounding box.
func (g ContourGeometry) AspectRatio() float64 {
	if g.Height == 0 {
		return 0
	}
	return float64(g.Width) / float64(g.Height)
}

// Circularity returns 4πA/P², 1.0 for a perfect circle.
func (g ContourGeometry) Circularity() float64 {
	if g.Perimeter == 0 {
		return 0
	}
	return 4 * math.Pi * g.Area / (g.Perimeter * g.Perimeter)
}

// Classify maps contour geometry to a shape. Only geometry is consulted,
// so two contours of equal geometry always get the same shape.
func Classify(g ContourGeometry, th Thresholds) model.Shape {
	switch {
	case g.Vertices == 3:
		return model.ShapeTriangle
	case g.Vertices == 4:
		if math.Abs(g.AspectRatio()-1) <= th.SquareTolerance {
			return model.ShapeSquare
		}
		return model.ShapeRectangle
	case g.Vertices == 5:
		return model.ShapePentagon
	case g.Vertices > 5 && g.Circularity() >= th.Circularity:
		return model.ShapeCircle
	default:
		return model.ShapePolygon
	}
}

// polygonMoments returns the zeroth and first area moments of a closed
// polygon (Green's theorem), the same quantities image moments yield for a
// contour. The sign of m00 follows the traversal direction.
func polygonMoments(pts []image.Point) (m00, m10, m01 float64) {
	n := len(pts)
	if n < 3 {
		return 0, 0, 0
	}
	for i := 0; i < n; i++ {
		p, q := pts[i], pts[(i+1)%n]
		cross := float64(p.X*q.Y - q.X*p.Y)
		m00 += cross
		m10 += float64(p.X+q.X) * cross
		m01 += float64(p.Y+q.Y) * cross
	}
	return m00 / 2, m10 / 6, m01 / 6
}

// Centroid returns the area-weighted center of a contour. ok is false for
// degenerate contours with zero area.
func Centroid(pts []image.Point) (c model.Point, ok bool) {
	m00, m10, m01 := polygonMoments(pts)
	if m00 == 0 {
		return model.Point{}, false
	}
	return model.Point{X: int(m10 / m00), Y: int(m01 / m00)}, true
}
