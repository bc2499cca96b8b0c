package agent

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/timvw/shapeqa/internal/model"
	"github.com/timvw/shapeqa/internal/scene"
)

// Classic grounds the model in detector output: it detects the shapes in
// the image, renders them as scene context and asks the question against
// that context in a single call.
type Classic struct {
	deps     Deps
	detector SceneDetector
	log      *zap.Logger
}

// NewClassic creates the detector-grounded agent. A nil detector behaves
// as one that finds nothing.
func NewClassic(deps Deps, detector SceneDetector) *Classic {
	return &Classic{deps: deps, detector: detector, log: deps.logger()}
}

func (c *Classic) Mode() model.Mode { return model.ModeClassic }

// Scene runs the detector on the sample image. Detection failures degrade
// to an empty scene, which renders as the no-objects sentinel.
func (c *Classic) Scene(ctx context.Context, sample model.Sample) model.SceneContext {
	_, span := tracer.Start(ctx, "detect")
	defer span.End()

	if c.detector == nil {
		return scene.New(nil)
	}
	objects, err := c.detector.DetectFile(sample.ImagePath)
	if err != nil {
		c.log.Warn("detection failed, continuing without scene context",
			zap.String("question_id", sample.ID),
			zap.String("path", sample.ImagePath),
			zap.Error(err))
		span.RecordError(err)
		return scene.New(nil)
	}

	for _, obj := range objects {
		c.deps.Metrics.RecordDetection(ctx, string(obj.Color), string(obj.Shape))
	}
	span.SetAttributes(attribute.Int("shapeqa.detected_objects", len(objects)))
	return scene.New(objects)
}

// Prompt renders the grounded prompt for a scene and question.
func (c *Classic) Prompt(sc model.SceneContext, question string) (string, error) {
	return render("classic.tmpl", classicPrompt{
		Detected: len(sc.Objects) > 0,
		Context:  sc.Text,
		Question: question,
	})
}

func (c *Classic) Answer(ctx context.Context, sample model.Sample) (model.AgentResult, error) {
	sc := c.Scene(ctx, sample)
	prompt, err := c.Prompt(sc, sample.Question)
	if err != nil {
		return model.AgentResult{SceneContext: sc.Text}, err
	}

	img := loadImage(c.log, sample)
	c.deps.Metrics.RecordCall(ctx, string(model.ModeClassic))
	answer, err := c.deps.Backend.Invoke(ctx, img, prompt)
	if err != nil {
		return model.AgentResult{SceneContext: sc.Text, Calls: 1}, err
	}
	return model.AgentResult{Answer: answer, SceneContext: sc.Text, Calls: 1}, nil
}
