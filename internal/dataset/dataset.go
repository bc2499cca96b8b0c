// Package dataset loads the question set: a CSV of (image, question,
// answer) rows plus a directory of images.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/timvw/shapeqa/internal/model"
)

// Column names in the CSV header. Matching is case-insensitive.
const (
	ColumnImage    = "Image"
	ColumnQuestion = "question"
	ColumnAnswer   = "answer"
	ColumnID       = "id"
)

// DefaultImageExt is appended to image references without an extension.
const DefaultImageExt = ".png"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Dataset is an ordered, read-only sequence of samples.
type Dataset struct {
	Path    string
	samples []model.Sample
}

// Load reads the CSV at csvPath and resolves image references against
// imagesDir. A missing or malformed CSV is an error. A missing first image
// is only logged, since it usually means imagesDir is wrong rather than
// the data being unusable.
func Load(csvPath, imagesDir string, log *zap.Logger) (*Dataset, error) {
	if log == nil {
		log = zap.NewNop()
	}

	f, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	samples, err := Parse(f, imagesDir)
	if err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", csvPath, err)
	}

	log.Info("loaded dataset", zap.String("path", csvPath), zap.Int("rows", len(samples)))
	if len(samples) > 0 {
		if _, err := os.Stat(samples[0].ImagePath); err != nil {
			log.Warn("first image not found, check the images directory",
				zap.String("path", samples[0].ImagePath),
				zap.String("images_dir", imagesDir))
		}
	}

	return &Dataset{Path: csvPath, samples: samples}, nil
}

// Parse reads dataset rows from r. The header must contain Image, question
// and answer columns; an optional id column overrides the row index as the
// question id.
func Parse(r io.Reader, imagesDir string) ([]model.Sample, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, required := range []string{ColumnImage, ColumnQuestion, ColumnAnswer} {
		if _, ok := cols[strings.ToLower(required)]; !ok {
			return nil, fmt.Errorf("missing column %q (have %s)", required, strings.Join(header, ", "))
		}
	}
	idCol, hasID := cols[ColumnID]

	var samples []model.Sample
	for row := 0; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		s := model.Sample{
			ID:          strconv.Itoa(row),
			ImageRef:    strings.TrimSpace(rec[cols[strings.ToLower(ColumnImage)]]),
			Question:    strings.TrimSpace(rec[cols[ColumnQuestion]]),
			GroundTruth: strings.TrimSpace(rec[cols[ColumnAnswer]]),
		}
		if hasID {
			if id := strings.TrimSpace(rec[idCol]); id != "" {
				s.ID = id
			}
		}
		s.ImagePath = ImagePath(imagesDir, s.ImageRef)

		if err := validate.Struct(s); err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// ImagePath resolves an image reference. References without an extension
// get DefaultImageExt.
func ImagePath(imagesDir, ref string) string {
	if filepath.Ext(ref) == "" {
		ref += DefaultImageExt
	}
	if filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(imagesDir, ref)
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.samples)
}

// Samples returns the rows in file order. The slice must not be modified.
func (d *Dataset) Samples() []model.Sample {
	return d.samples
}

// Sample returns row index.
func (d *Dataset) Sample(index int) (model.Sample, error) {
	if index < 0 || index >= len(d.samples) {
		return model.Sample{}, fmt.Errorf("index %d out of bounds for dataset of size %d", index, len(d.samples))
	}
	return d.samples[index], nil
}
