package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/timvw/shapeqa/internal/model"
)

var csvHeader = []string{
	"run_id", "mode", "question_id", "image_ref", "question", "ground_truth",
	"predicted_answer", "judge_verdict", "scene_context", "trace",
	"error_kind", "error", "evaluated_at", "duration_ms",
}

// CSVWriter appends records to a CSV file, flushing after every row.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter opens path for appending. The header is written only when
// the file is new or empty.
func NewCSVWriter(path string) (*CSVWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			f.Close()
			return nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, err
		}
	}

	return &CSVWriter{file: f, writer: w}, nil
}

// Write appends one record. The chain-of-thought trace, if any, is
// embedded as a JSON object.
func (cw *CSVWriter) Write(rec model.EvaluationRecord) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	var trace string
	if rec.Trace != nil {
		data, err := json.Marshal(rec.Trace)
		if err != nil {
			return fmt.Errorf("encode trace: %w", err)
		}
		trace = string(data)
	}

	row := []string{
		rec.RunID,
		string(rec.Mode),
		rec.QuestionID,
		rec.ImageRef,
		rec.Question,
		rec.GroundTruth,
		rec.PredictedAnswer,
		rec.JudgeVerdict.String(),
		rec.SceneContext,
		trace,
		string(rec.ErrorKind),
		rec.Error,
		rec.EvaluatedAt.Format(time.RFC3339),
		strconv.FormatInt(rec.DurationMs, 10),
	}
	if err := cw.writer.Write(row); err != nil {
		return err
	}
	cw.writer.Flush()
	return cw.writer.Error()
}

// Close flushes and closes the underlying file.
func (cw *CSVWriter) Close() error {
	cw.writer.Flush()
	return cw.file.Close()
}
