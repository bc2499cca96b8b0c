// Package vision extracts structured scene geometry from raster images.
//
// Pixels are thresholded per palette color in HSV space, external contours
// are traced on each mask, and each contour is reduced to a polygon whose
// vertex count, bounding box and circularity decide its shape. Centroids
// come from area moments. The detector holds no state between calls.
package vision

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/timvw/shapeqa/internal/model"
)

// ImageLoadError reports an image that could not be read or decoded.
type ImageLoadError struct {
	Path string
	Err  error
}

func (e *ImageLoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("image load failed: %v", e.Err)
	}
	return fmt.Sprintf("image load failed for %s: %v", e.Path, e.Err)
}

func (e *ImageLoadError) Unwrap() error { return e.Err }

var errEmptyImage = errors.New("empty or unsupported image")

// Detector finds colored shapes in images.
type Detector struct {
	thresholds Thresholds
	log        *zap.Logger
}

// NewDetector creates a detector with the given thresholds.
// A nil logger disables logging.
func NewDetector(th Thresholds, log *zap.Logger) *Detector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Detector{thresholds: th, log: log}
}

// Thresholds returns the classifier thresholds in use.
func (d *Detector) Thresholds() Thresholds {
	return d.thresholds
}

// DetectFile reads the image at path and detects objects in it.
func (d *Detector) DetectFile(path string) ([]model.DetectedObject, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	defer img.Close()
	if img.Empty() {
		return nil, &ImageLoadError{Path: path, Err: errEmptyImage}
	}
	return d.Detect(img), nil
}

// DetectBytes decodes an encoded image (PNG, JPEG, ...) and detects objects in it.
func (d *Detector) DetectBytes(data []byte) ([]model.DetectedObject, error) {
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, &ImageLoadError{Err: err}
	}
	defer img.Close()
	if img.Empty() {
		return nil, &ImageLoadError{Err: errEmptyImage}
	}
	return d.Detect(img), nil
}

// Detect returns every palette-colored shape in a BGR image. An image with
// no colored regions yields an empty, non-nil slice.
func (d *Detector) Detect(img gocv.Mat) []model.DetectedObject {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(img, &hsv, gocv.ColorBGRToHSV)

	bounds := model.Point{X: img.Cols(), Y: img.Rows()}
	objects := make([]model.DetectedObject, 0)
	for _, entry := range palette {
		mask := entry.colorMask(hsv)
		objects = append(objects, d.detectInMask(mask, entry.color, bounds)...)
		mask.Close()
	}

	d.log.Debug("detection complete", zap.Int("objects", len(objects)))
	return objects
}

func (d *Detector) detectInMask(mask gocv.Mat, color model.Color, bounds model.Point) []model.DetectedObject {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var found []model.DetectedObject
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if area < d.thresholds.MinArea {
			continue
		}

		centroid, ok := Centroid(contour.ToPoints())
		if !ok {
			continue
		}
		if centroid.X < 0 || centroid.Y < 0 || centroid.X >= bounds.X || centroid.Y >= bounds.Y {
			d.log.Debug("centroid outside image bounds, skipping",
				zap.String("color", string(color)), zap.Stringer("centroid", centroid))
			continue
		}

		found = append(found, model.DetectedObject{
			Color:    color,
			Shape:    Classify(d.geometry(contour, area), d.thresholds),
			Centroid: centroid,
		})
	}
	return found
}

func (d *Detector) geometry(contour gocv.PointVector, area float64) ContourGeometry {
	perimeter := gocv.ArcLength(contour, true)
	approx := gocv.ApproxPolyDP(contour, d.thresholds.EpsilonFactor*perimeter, true)
	defer approx.Close()
	rect := gocv.BoundingRect(contour)

	return ContourGeometry{
		Vertices:  approx.Size(),
		Width:     rect.Dx(),
		Height:    rect.Dy(),
		Area:      area,
		Perimeter: perimeter,
	}
}
