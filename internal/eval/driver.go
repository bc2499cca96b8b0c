// Package eval drives an evaluation run: every dataset row goes through one
// agent, the answer is judged, the record is persisted, and the verdicts
// are folded into per-mode accuracy.
//
// Rows are processed strictly one after another. A failing row is recorded
// and skipped; it never aborts the run.
package eval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/timvw/shapeqa/internal/agent"
	"github.com/timvw/shapeqa/internal/judge"
	"github.com/timvw/shapeqa/internal/model"
	telem "github.com/timvw/shapeqa/internal/otel"
	"github.com/timvw/shapeqa/internal/output"
)

var tracer = otel.Tracer("shapeqa/eval")

// Judge decides whether a predicted answer matches the ground truth.
type Judge interface {
	Judge(ctx context.Context, question, truth, predicted string) (model.Verdict, error)
}

// Reporter observes run progress. All methods are called from the driver's
// goroutine.
type Reporter interface {
	ModeStarted(mode model.Mode, total int)
	RowDone(rec model.EvaluationRecord)
	ModeFinished(agg model.AggregateResult)
}

// Config holds the driver's collaborators. Agents, Judge and Sink are
// required; the rest may be zero.
type Config struct {
	RunID    string
	Agents   map[model.Mode]agent.Agent
	Judge    Judge
	Sink     output.RecordWriter
	Reporter Reporter
	Log      *zap.Logger
	Metrics  *telem.Metrics
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// Driver runs evaluations.
type Driver struct {
	runID    string
	agents   map[model.Mode]agent.Agent
	judge    Judge
	sink     output.RecordWriter
	reporter Reporter
	log      *zap.Logger
	metrics  *telem.Metrics
	now      func() time.Time
}

// New creates a driver. An empty RunID gets a fresh UUID.
func New(cfg Config) *Driver {
	d := &Driver{
		runID:    cfg.RunID,
		agents:   cfg.Agents,
		judge:    cfg.Judge,
		sink:     cfg.Sink,
		reporter: cfg.Reporter,
		log:      cfg.Log,
		metrics:  cfg.Metrics,
		now:      cfg.Now,
	}
	if d.runID == "" {
		d.runID = uuid.NewString()
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// RunID identifies this run on every record.
func (d *Driver) RunID() string {
	return d.runID
}

// Run evaluates samples under mode. ModeAll runs zero_shot, classic and dl
// in turn over the full dataset and returns three aggregates. The run stops
// early only when ctx is cancelled; the aggregates completed so far are
// returned with the context error.
func (d *Driver) Run(ctx context.Context, mode model.Mode, samples []model.Sample) ([]model.AggregateResult, error) {
	modes := []model.Mode{mode}
	if mode == model.ModeAll {
		modes = model.AgentModes
	}
	for _, m := range modes {
		if _, ok := d.agents[m]; !ok {
			return nil, fmt.Errorf("no agent configured for mode %q", m)
		}
	}

	results := make([]model.AggregateResult, 0, len(modes))
	for _, m := range modes {
		agg, err := d.RunMode(ctx, m, samples)
		results = append(results, agg)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// RunMode evaluates every sample with the agent for mode.
func (d *Driver) RunMode(ctx context.Context, mode model.Mode, samples []model.Sample) (model.AggregateResult, error) {
	agg := model.AggregateResult{RunID: d.runID, Mode: mode}
	ag, ok := d.agents[mode]
	if !ok {
		return agg, fmt.Errorf("no agent configured for mode %q", mode)
	}

	ctx, span := tracer.Start(ctx, "run "+string(mode))
	defer span.End()
	span.SetAttributes(
		attribute.String("shapeqa.run_id", d.runID),
		attribute.String("shapeqa.mode", string(mode)),
		attribute.Int("shapeqa.rows", len(samples)),
	)

	d.log.Info("starting evaluation", zap.String("mode", string(mode)), zap.Int("rows", len(samples)))
	if d.reporter != nil {
		d.reporter.ModeStarted(mode, len(samples))
	}

	for _, s := range samples {
		if err := ctx.Err(); err != nil {
			d.log.Warn("evaluation cancelled", zap.String("mode", string(mode)), zap.Int("completed", agg.Total))
			span.SetStatus(codes.Error, "cancelled")
			return agg, err
		}

		rec := d.Evaluate(ctx, mode, ag, s)
		agg.Add(rec)

		if err := d.sink.Write(rec); err != nil {
			d.log.Error("failed to persist record", zap.String("question_id", rec.QuestionID), zap.Error(err))
		}
		if d.reporter != nil {
			d.reporter.RowDone(rec)
		}
	}

	d.log.Info("evaluation complete",
		zap.String("mode", string(mode)),
		zap.Int("total", agg.Total),
		zap.Int("correct", agg.Correct),
		zap.Int("incorrect", agg.Incorrect),
		zap.Int("unknown", agg.Unknown),
		zap.Int("failed", agg.Failed),
		zap.String("accuracy", agg.AccuracyString()))
	if acc, ok := agg.Accuracy(); ok {
		span.SetAttributes(attribute.Float64("shapeqa.accuracy", acc))
	}
	if d.reporter != nil {
		d.reporter.ModeFinished(agg)
	}
	return agg, nil
}

// Evaluate answers and judges one row. Failures are recorded on the
// returned record, never returned.
func (d *Driver) Evaluate(ctx context.Context, mode model.Mode, ag agent.Agent, s model.Sample) model.EvaluationRecord {
	start := d.now()
	ctx, span := tracer.Start(ctx, "evaluate "+string(mode))
	defer span.End()
	span.SetAttributes(attribute.String("shapeqa.question_id", s.ID))

	rec := model.EvaluationRecord{
		RunID:       d.runID,
		Mode:        mode,
		QuestionID:  s.ID,
		ImageRef:    s.ImageRef,
		Question:    s.Question,
		GroundTruth: s.GroundTruth,
	}
	finish := func() model.EvaluationRecord {
		rec.EvaluatedAt = d.now()
		rec.DurationMs = rec.EvaluatedAt.Sub(start).Milliseconds()
		span.SetAttributes(attribute.String("shapeqa.verdict", rec.JudgeVerdict.String()))
		d.metrics.RecordEvaluation(ctx, string(mode), rec.JudgeVerdict.String())
		return rec
	}

	res, err := ag.Answer(ctx, s)
	rec.PredictedAnswer = res.Answer
	rec.SceneContext = res.SceneContext
	rec.Trace = res.Trace
	if err != nil {
		rec.ErrorKind = model.ErrorKindInference
		rec.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "inference failed")
		d.log.Warn("row failed",
			zap.String("mode", string(mode)),
			zap.String("question_id", s.ID),
			zap.String("error_kind", string(rec.ErrorKind)),
			zap.Error(err))
		return finish()
	}

	verdict, err := d.judge.Judge(ctx, s.Question, s.GroundTruth, res.Answer)
	rec.JudgeVerdict = verdict
	if err != nil {
		rec.ErrorKind = model.ErrorKindJudgeInference
		if errors.Is(err, judge.ErrJudgeParse) {
			rec.ErrorKind = model.ErrorKindJudgeParse
		}
		rec.Error = err.Error()
		d.log.Warn("row not judged",
			zap.String("mode", string(mode)),
			zap.String("question_id", s.ID),
			zap.String("error_kind", string(rec.ErrorKind)),
			zap.Error(err))
		return finish()
	}

	d.log.Debug("row evaluated",
		zap.String("mode", string(mode)),
		zap.String("question_id", s.ID),
		zap.String("verdict", verdict.String()))
	return finish()
}
