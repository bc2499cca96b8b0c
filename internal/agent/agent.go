// Package agent implements the answering strategies compared by the study.
//
// Each Agent turns one (image, question) pair into an answer by composing
// calls to a vlm.Backend:
//
//   - ZeroShot passes the question straight to the model.
//   - Classic grounds the model with detector output (one call).
//   - ChainOfThought runs plan, extract and synthesize stages (three calls).
//
// Agents own only the transient state of the question they are answering.
package agent

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/timvw/shapeqa/internal/model"
	telem "github.com/timvw/shapeqa/internal/otel"
	"github.com/timvw/shapeqa/internal/vlm"
)

var tracer = otel.Tracer("shapeqa/agent")

// Agent answers a question about a sample's image.
type Agent interface {
	// Answer returns the model's answer. A non-nil error means the row could
	// not be answered (an *vlm.InferenceError or a *StageError wrapping one).
	Answer(ctx context.Context, sample model.Sample) (model.AgentResult, error)

	// Mode returns the evaluation mode this agent implements.
	Mode() model.Mode
}

// SceneDetector extracts objects from an image file.
type SceneDetector interface {
	DetectFile(path string) ([]model.DetectedObject, error)
}

// Deps are the collaborators shared by every agent.
type Deps struct {
	Backend vlm.Backend
	Log     *zap.Logger
	Metrics *telem.Metrics
}

func (d Deps) logger() *zap.Logger {
	if d.Log == nil {
		return zap.NewNop()
	}
	return d.Log
}

// loadImage reads the sample image for attachment. A missing or unreadable
// image is not fatal: the model is asked text-only.
func loadImage(log *zap.Logger, sample model.Sample) *vlm.Image {
	if sample.ImagePath == "" {
		return nil
	}
	img, err := vlm.LoadImage(sample.ImagePath)
	if err != nil {
		log.Warn("image unavailable, asking without it",
			zap.String("question_id", sample.ID),
			zap.String("path", sample.ImagePath),
			zap.Error(err))
		return nil
	}
	return img
}

// New returns the agent for mode. Classic needs a detector; the others
// ignore it.
func New(mode model.Mode, deps Deps, detector SceneDetector, stageRetry map[Stage]vlm.RetryPolicy) (Agent, bool) {
	switch mode {
	case model.ModeZeroShot:
		return NewZeroShot(deps), true
	case model.ModeClassic:
		return NewClassic(deps, detector), true
	case model.ModeDL:
		return NewChainOfThought(deps, stageRetry), true
	default:
		return nil, false
	}
}
