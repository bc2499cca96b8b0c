package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/timvw/shapeqa/internal/model"
)

// ZeroShot sends the question verbatim with the image attached.
type ZeroShot struct {
	deps Deps
	log  *zap.Logger
}

// NewZeroShot creates the baseline agent.
func NewZeroShot(deps Deps) *ZeroShot {
	return &ZeroShot{deps: deps, log: deps.logger()}
}

func (z *ZeroShot) Mode() model.Mode { return model.ModeZeroShot }

func (z *ZeroShot) Answer(ctx context.Context, sample model.Sample) (model.AgentResult, error) {
	img := loadImage(z.log, sample)

	z.deps.Metrics.RecordCall(ctx, string(model.ModeZeroShot))
	answer, err := z.deps.Backend.Invoke(ctx, img, sample.Question)
	if err != nil {
		return model.AgentResult{Calls: 1}, err
	}
	return model.AgentResult{Answer: answer, Calls: 1}, nil
}
