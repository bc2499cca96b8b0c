package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "shapeqa"

// Metrics holds the OTEL instruments for evaluation runs.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// VLM token counters, partitioned by provider + model.
	InputTokens  metric.Int64Counter
	OutputTokens metric.Int64Counter

	// VLMCalls counts backend invocations partitioned by caller
	// (zero_shot, classic, dl.plan, dl.extract, dl.synthesize, judge).
	VLMCalls metric.Int64Counter

	// Evaluations counts finished rows partitioned by mode + verdict.
	Evaluations metric.Int64Counter

	// Judge cache counters.
	JudgeCacheHits   metric.Int64Counter
	JudgeCacheMisses metric.Int64Counter

	// DetectedObjects counts detector output partitioned by color + shape.
	DetectedObjects metric.Int64Counter
}

// NewMetrics creates all metric instruments. Safe to call without a
// registered MeterProvider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.InputTokens, err = meter.Int64Counter("llm.tokens.input",
		metric.WithDescription("Total VLM input tokens consumed"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	m.OutputTokens, err = meter.Int64Counter("llm.tokens.output",
		metric.WithDescription("Total VLM output tokens consumed"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	m.VLMCalls, err = meter.Int64Counter("vlm.calls",
		metric.WithDescription("VLM invocations partitioned by caller"))
	if err != nil {
		return nil, err
	}

	m.Evaluations, err = meter.Int64Counter("evaluations.total",
		metric.WithDescription("Evaluated dataset rows partitioned by mode and verdict (true, false, unknown)"))
	if err != nil {
		return nil, err
	}

	m.JudgeCacheHits, err = meter.Int64Counter("judge_cache.hits",
		metric.WithDescription("Judge verdicts reused for an identical question, truth and prediction"))
	if err != nil {
		return nil, err
	}

	m.JudgeCacheMisses, err = meter.Int64Counter("judge_cache.misses",
		metric.WithDescription("Judge verdicts that required a VLM call"))
	if err != nil {
		return nil, err
	}

	m.DetectedObjects, err = meter.Int64Counter("detector.objects",
		metric.WithDescription("Objects found by the scene detector partitioned by color and shape"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordTokens records VLM token usage.
func (m *Metrics) RecordTokens(ctx context.Context, provider, model string, input, output int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("llm.provider", provider),
		attribute.String("llm.model", model),
	)
	m.InputTokens.Add(ctx, input, attrs)
	m.OutputTokens.Add(ctx, output, attrs)
}

// RecordCall records one VLM invocation by caller.
func (m *Metrics) RecordCall(ctx context.Context, caller string) {
	if m == nil {
		return
	}
	m.VLMCalls.Add(ctx, 1, metric.WithAttributes(attribute.String("vlm.caller", caller)))
}

// RecordEvaluation records a finished row.
func (m *Metrics) RecordEvaluation(ctx context.Context, mode, verdict string) {
	if m == nil {
		return
	}
	m.Evaluations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("evaluation.mode", mode),
		attribute.String("evaluation.verdict", verdict),
	))
}

// RecordCacheHit records a judge cache hit.
func (m *Metrics) RecordCacheHit(ctx context.Context) {
	if m == nil {
		return
	}
	m.JudgeCacheHits.Add(ctx, 1)
}

// RecordCacheMiss records a judge cache miss.
func (m *Metrics) RecordCacheMiss(ctx context.Context) {
	if m == nil {
		return
	}
	m.JudgeCacheMisses.Add(ctx, 1)
}

// RecordDetection records one detected object.
func (m *Metrics) RecordDetection(ctx context.Context, color, shape string) {
	if m == nil {
		return
	}
	m.DetectedObjects.Add(ctx, 1, metric.WithAttributes(
		attribute.String("object.color", color),
		attribute.String("object.shape", shape),
	))
}
