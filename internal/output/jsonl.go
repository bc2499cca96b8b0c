package output

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/timvw/shapeqa/internal/model"
)

// JSONLWriter appends records to a JSON Lines file.
type JSONLWriter struct {
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONLWriter opens path for appending, creating it if needed.
func NewJSONLWriter(path string) (*JSONLWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &JSONLWriter{file: f, encoder: json.NewEncoder(f)}, nil
}

// Write appends one record as a single line. The encoder writes straight
// to the file, so the line is on disk when Write returns.
func (jw *JSONLWriter) Write(rec model.EvaluationRecord) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	return jw.encoder.Encode(rec)
}

// Close closes the underlying file.
func (jw *JSONLWriter) Close() error {
	return jw.file.Close()
}
