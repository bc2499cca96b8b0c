package vision

import (
	"image"
	"math"
	"testing"

	"github.com/timvw/shapeqa/internal/model"
)

func TestClassify(t *testing.T) {
	th := DefaultThresholds()

	circleR := 20.0
	circle := ContourGeometry{
		Vertices:  8,
		Width:     40,
		Height:    40,
		Area:      math.Pi * circleR * circleR,
		Perimeter: 2 * math.Pi * circleR * 1.05,
	}
	star := ContourGeometry{Vertices: 10, Width: 40, Height: 40, Area: 400, Perimeter: 200}

	tests := []struct {
		name string
		geom ContourGeometry
		want model.Shape
	}{
		{"three vertices", ContourGeometry{Vertices: 3, Width: 40, Height: 30}, model.ShapeTriangle},
		{"four vertices equal sides", ContourGeometry{Vertices: 4, Width: 20, Height: 20}, model.ShapeSquare},
		{"four vertices within tolerance", ContourGeometry{Vertices: 4, Width: 21, Height: 20}, model.ShapeSquare},
		{"four vertices wide", ContourGeometry{Vertices: 4, Width: 60, Height: 20}, model.ShapeRectangle},
		{"four vertices tall", ContourGeometry{Vertices: 4, Width: 20, Height: 45}, model.ShapeRectangle},
		{"five vertices", ContourGeometry{Vertices: 5, Width: 30, Height: 30}, model.ShapePentagon},
		{"many vertices round", circle, model.ShapeCircle},
		{"many vertices jagged", star, model.ShapePolygon},
		{"degenerate", ContourGeometry{Vertices: 2}, model.ShapePolygon},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.geom, th); got != tt.want {
				t.Errorf("Classify(%+v) = %q, want %q", tt.geom, got, tt.want)
			}
		})
	}
}

func TestClassify_ThresholdsAreTunable(t *testing.T) {
	g := ContourGeometry{Vertices: 4, Width: 24, Height: 20}

	strict := DefaultThresholds()
	if got := Classify(g, strict); got != model.ShapeRectangle {
		t.Errorf("default tolerance: got %q, want rectangle", got)
	}

	loose := DefaultThresholds()
	loose.SquareTolerance = 0.25
	if got := Classify(g, loose); got != model.ShapeSquare {
		t.Errorf("loose tolerance: got %q, want square", got)
	}
}

func TestCentroid(t *testing.T) {
	tests := []struct {
		name   string
		pts    []image.Point
		want   model.Point
		wantOK bool
	}{
		{
			name:   "square counter-clockwise",
			pts:    []image.Point{{40, 18}, {40, 38}, {60, 38}, {60, 18}},
			want:   model.Point{X: 50, Y: 28},
			wantOK: true,
		},
		{
			name:   "square clockwise",
			pts:    []image.Point{{40, 18}, {60, 18}, {60, 38}, {40, 38}},
			want:   model.Point{X: 50, Y: 28},
			wantOK: true,
		},
		{
			name:   "right triangle",
			pts:    []image.Point{{0, 0}, {30, 0}, {0, 30}},
			want:   model.Point{X: 10, Y: 10},
			wantOK: true,
		},
		{
			name:   "collinear points",
			pts:    []image.Point{{0, 0}, {10, 10}, {20, 20}},
			wantOK: false,
		},
		{
			name:   "too few points",
			pts:    []image.Point{{5, 5}},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Centroid(tt.pts)
			if ok != tt.wantOK {
				t.Fatalf("ok: got %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("Centroid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContourGeometry_Circularity(t *testing.T) {
	side := 20.0
	square := ContourGeometry{Area: side * side, Perimeter: 4 * side}
	if got, want := square.Circularity(), math.Pi/4; math.Abs(got-want) > 1e-9 {
		t.Errorf("square circularity: got %v, want %v", got, want)
	}
	if got := (ContourGeometry{}).Circularity(); got != 0 {
		t.Errorf("zero perimeter circularity: got %v, want 0", got)
	}
}
