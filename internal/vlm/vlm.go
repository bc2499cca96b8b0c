// Package vlm is the boundary to vision-language models.
//
// Every model is reached through Backend.Invoke: an optional image plus a
// text prompt in, text out. Agents, the judge and the driver depend only on
// that interface, so any provider (or a scripted test double) can stand in.
package vlm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Backend produces text from an optional image and a prompt.
type Backend interface {
	// Invoke sends the prompt, with img attached when non-nil, and returns
	// the model's text output verbatim. Backend failures are *InferenceError.
	Invoke(ctx context.Context, img *Image, prompt string) (string, error)

	// Provider returns the provider name (e.g., "anthropic", "openai").
	Provider() string

	// Model returns the model name.
	Model() string
}

// Image is an encoded raster image ready to attach to a request.
type Image struct {
	Path     string
	Data     []byte
	MIMEType string
}

// LoadImage reads an image file and sniffs its MIME type.
func LoadImage(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return NewImage(path, data)
}

// NewImage wraps encoded image bytes. Non-image content is rejected.
func NewImage(path string, data []byte) (*Image, error) {
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, fmt.Errorf("%s is not an image (detected %s)", path, mt.String())
	}
	return &Image{Path: path, Data: data, MIMEType: mt.String()}, nil
}

// Base64 returns the standard base64 encoding of the image bytes.
func (i *Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// DataURL returns the image as a data: URL.
func (i *Image) DataURL() string {
	return "data:" + i.MIMEType + ";base64," + i.Base64()
}

// InferenceError is a failed backend call: transport, API status, or an
// unusable response.
type InferenceError struct {
	Provider string
	Model    string
	Err      error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s/%s inference failed: %v", e.Provider, e.Model, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// IsInference reports whether err is or wraps an *InferenceError.
func IsInference(err error) bool {
	var ie *InferenceError
	return errors.As(err, &ie)
}

func inferenceError(b Backend, err error) error {
	return &InferenceError{Provider: b.Provider(), Model: b.Model(), Err: err}
}
