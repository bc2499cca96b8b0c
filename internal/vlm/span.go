package vlm

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("shapeqa/vlm")

// startGeneration opens a GenAI client span named "chat <model>" and records
// the prompt. Image bytes are never put on the span.
func startGeneration(ctx context.Context, provider, model string, maxTokens int64, img *Image, prompt string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "chat "+model,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.operation.name", "chat"),
			attribute.String("gen_ai.provider.name", provider),
			attribute.String("gen_ai.request.model", model),
			attribute.Int64("gen_ai.request.max_tokens", maxTokens),
			attribute.Bool("shapeqa.image_attached", img != nil),
		),
	)

	input := []map[string]string{{"role": "user", "content": prompt}}
	if data, err := json.Marshal(input); err == nil {
		span.SetAttributes(attribute.String("gen_ai.input.messages", string(data)))
	}
	return ctx, span
}

// finishGeneration records the response on the span.
func finishGeneration(span trace.Span, text string, inputTokens, outputTokens int64, finishReason string) {
	span.SetAttributes(
		attribute.Int64("gen_ai.usage.input_tokens", inputTokens),
		attribute.Int64("gen_ai.usage.output_tokens", outputTokens),
	)
	if finishReason != "" {
		span.SetAttributes(attribute.StringSlice("gen_ai.response.finish_reasons", []string{finishReason}))
	}
	output := []map[string]string{{"role": "assistant", "content": text}}
	if data, err := json.Marshal(output); err == nil {
		span.SetAttributes(attribute.String("gen_ai.output.messages", string(data)))
	}
}

func failGeneration(span trace.Span, errType string) {
	span.SetAttributes(attribute.String("error.type", errType))
}
