// Package output persists evaluation records and run summaries.
//
// Records are appended and flushed one row at a time, so an interrupted
// run leaves every completed row on disk.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/timvw/shapeqa/internal/model"
)

// File names inside the output directory.
const (
	RecordsJSONL = "records.jsonl"
	RecordsCSV   = "records.csv"
	SummaryJSON  = "summary.json"
)

// RecordWriter appends evaluation records.
type RecordWriter interface {
	Write(rec model.EvaluationRecord) error
	Close() error
}

// Multi fans a record out to several writers. Write stops at the first
// error; Close closes all and joins their errors.
type Multi []RecordWriter

func (m Multi) Write(rec model.EvaluationRecord) error {
	for _, w := range m {
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) Close() error {
	var errs []error
	for _, w := range m {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}

// Open creates dir if needed and opens the JSON Lines and CSV record
// writers inside it, both in append mode.
func Open(dir string) (Multi, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	jw, err := NewJSONLWriter(filepath.Join(dir, RecordsJSONL))
	if err != nil {
		return nil, err
	}
	cw, err := NewCSVWriter(filepath.Join(dir, RecordsCSV))
	if err != nil {
		jw.Close()
		return nil, err
	}
	return Multi{jw, cw}, nil
}

// Summary is the final per-run report.
type Summary struct {
	RunID      string                  `json:"run_id"`
	Dataset    string                  `json:"dataset"`
	Provider   string                  `json:"provider"`
	Model      string                  `json:"model"`
	JudgeModel string                  `json:"judge_model"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
	Results    []model.AggregateResult `json:"results"`
}

// WriteSummary writes s as indented JSON to dir/summary.json, replacing
// any previous summary.
func WriteSummary(dir string, s Summary) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode summary: %w", err)
	}
	path := filepath.Join(dir, SummaryJSON)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}
	return path, nil
}
