package agent

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/timvw/shapeqa/internal/model"
	"github.com/timvw/shapeqa/internal/vlm"
)

// Stage is a state of the chain-of-thought machine.
type Stage int

const (
	StagePlan Stage = iota
	StageExtract
	StageSynthesize
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StagePlan:
		return "plan"
	case StageExtract:
		return "extract"
	case StageSynthesize:
		return "synthesize"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// StageError is a chain-of-thought stage whose model call failed. The
// machine stops at that stage; later stages never run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Stage outputs substituted when the model returns nothing, so the next
// prompt stays well-formed.
const (
	noPlan    = "No plan generated."
	noContext = "No context extracted."
)

// cotState is the machine's per-question state. Each stage's output is
// stored in trace and spliced verbatim into the next stage's prompt.
type cotState struct {
	stage    Stage
	question string
	img      *vlm.Image
	trace    model.AgentTrace
	calls    int
}

// stageSpec describes one transition: how to build the prompt from the
// state, where to store the output, and which stage follows.
type stageSpec struct {
	prompt func(st *cotState) (string, error)
	store  func(st *cotState, out string)
	next   Stage
}

var stages = map[Stage]stageSpec{
	StagePlan: {
		prompt: func(st *cotState) (string, error) {
			return render("plan.tmpl", planPrompt{Question: st.question})
		},
		store: func(st *cotState, out string) {
			if out == "" {
				out = noPlan
			}
			st.trace.Plan = out
		},
		next: StageExtract,
	},
	StageExtract: {
		prompt: func(*cotState) (string, error) {
			return render("extract.tmpl", nil)
		},
		store: func(st *cotState, out string) {
			if out == "" {
				out = noContext
			}
			st.trace.ExtractedContext = out
		},
		next: StageSynthesize,
	},
	StageSynthesize: {
		prompt: func(st *cotState) (string, error) {
			return render("synthesize.tmpl", synthesizePrompt{
				Question: st.question,
				Plan:     st.trace.Plan,
				Context:  st.trace.ExtractedContext,
			})
		},
		store: func(st *cotState, out string) {
			st.trace.FinalAnswer = out
		},
		next: StageDone,
	},
}

// ChainOfThought answers in three stages: PLAN asks for a reasoning plan,
// EXTRACT asks for a description of every object in the image, SYNTHESIZE
// asks for the final answer given the question, plan and description.
// Stage outputs pass through unvalidated.
type ChainOfThought struct {
	deps  Deps
	log   *zap.Logger
	retry map[Stage]vlm.RetryPolicy
}

// NewChainOfThought creates the staged agent. retry optionally attaches a
// retry policy to individual stages; stages without one make one attempt.
func NewChainOfThought(deps Deps, retry map[Stage]vlm.RetryPolicy) *ChainOfThought {
	return &ChainOfThought{deps: deps, log: deps.logger(), retry: retry}
}

func (c *ChainOfThought) Mode() model.Mode { return model.ModeDL }

func (c *ChainOfThought) Answer(ctx context.Context, sample model.Sample) (model.AgentResult, error) {
	st := &cotState{
		stage:    StagePlan,
		question: sample.Question,
		img:      loadImage(c.log, sample),
	}

	for st.stage != StageDone {
		if err := c.step(ctx, st); err != nil {
			trace := st.trace
			return model.AgentResult{Trace: &trace, Calls: st.calls}, err
		}
	}

	trace := st.trace
	return model.AgentResult{Answer: trace.FinalAnswer, Trace: &trace, Calls: st.calls}, nil
}

// step runs the current stage and advances the state on success.
func (c *ChainOfThought) step(ctx context.Context, st *cotState) error {
	spec, ok := stages[st.stage]
	if !ok {
		return &StageError{Stage: st.stage, Err: fmt.Errorf("no transition defined")}
	}

	ctx, span := tracer.Start(ctx, "cot."+st.stage.String())
	defer span.End()

	prompt, err := spec.prompt(st)
	if err != nil {
		return &StageError{Stage: st.stage, Err: err}
	}

	out, err := vlm.Retry(ctx, c.retry[st.stage], c.log, func() (string, error) {
		st.calls++
		c.deps.Metrics.RecordCall(ctx, "dl."+st.stage.String())
		return c.deps.Backend.Invoke(ctx, st.img, prompt)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &StageError{Stage: st.stage, Err: err}
	}

	span.SetAttributes(attribute.Int("shapeqa.output_chars", len(out)))
	c.log.Debug("stage complete", zap.Stringer("stage", st.stage), zap.Int("chars", len(out)))

	spec.store(st, out)
	st.stage = spec.next
	return nil
}
