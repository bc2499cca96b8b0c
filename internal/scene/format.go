// Package scene renders detected objects into prompt text.
package scene

import (
	"fmt"
	"strings"

	"github.com/timvw/shapeqa/internal/model"
)

// NoObjects is rendered when the detector found nothing, so the prompt never
// carries an empty context.
const NoObjects = "no objects detected"

// Line renders a single object as "<color> <shape> at (<x>, <y>)".
func Line(obj model.DetectedObject) string {
	return fmt.Sprintf("%s %s at %s", obj.Color, obj.Shape, obj.Centroid)
}

// Format renders objects one per line in detection order. Detection order
// follows contour traversal and carries no spatial meaning.
func Format(objects []model.DetectedObject) string {
	if len(objects) == 0 {
		return NoObjects
	}
	lines := make([]string, len(objects))
	for i, obj := range objects {
		lines[i] = Line(obj)
	}
	return strings.Join(lines, "\n")
}

// New builds a SceneContext from detector output.
func New(objects []model.DetectedObject) model.SceneContext {
	if objects == nil {
		objects = []model.DetectedObject{}
	}
	return model.SceneContext{Objects: objects, Text: Format(objects)}
}
