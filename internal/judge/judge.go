// Package judge scores free-form answers against ground truth with a
// vision-language model asked for a bare Yes or No.
//
// The verdict is ternary. A reply that is not a clean yes or no yields
// VerdictUnknown with ErrJudgeParse, so ambiguity is excluded from accuracy
// instead of being coerced into a score.
package judge

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/timvw/shapeqa/internal/model"
	telem "github.com/timvw/shapeqa/internal/otel"
	"github.com/timvw/shapeqa/internal/vlm"
)

// ErrJudgeParse is returned when the judge reply contains neither or both
// of the tokens "yes" and "no".
var ErrJudgeParse = errors.New("judge response is not a clear yes or no")

//go:embed prompts/judge.tmpl
var promptText string

var promptTmpl = template.Must(template.New("judge").Parse(promptText))

var tracer = otel.Tracer("shapeqa/judge")

var verdictToken = regexp.MustCompile(`(?i)\b(yes|no)\b`)

// ParseVerdict maps a judge reply to a verdict. Matching is case-insensitive
// on whole words: "Yes", "yes." and "YES" are correct, "No" and
// "no, it is not" are incorrect. Anything else is VerdictUnknown with an
// error wrapping ErrJudgeParse.
func ParseVerdict(response string) (model.Verdict, error) {
	var sawYes, sawNo bool
	for _, tok := range verdictToken.FindAllString(response, -1) {
		if strings.EqualFold(tok, "yes") {
			sawYes = true
		} else {
			sawNo = true
		}
	}

	switch {
	case sawYes && !sawNo:
		return model.VerdictCorrect, nil
	case sawNo && !sawYes:
		return model.VerdictIncorrect, nil
	default:
		return model.VerdictUnknown, fmt.Errorf("%w: %q", ErrJudgeParse, response)
	}
}

// Prompt renders the judge prompt for one prediction.
func Prompt(question, truth, predicted string) (string, error) {
	var b strings.Builder
	err := promptTmpl.Execute(&b, struct {
		Question, GroundTruth, Predicted string
	}{question, truth, predicted})
	if err != nil {
		return "", fmt.Errorf("render judge prompt: %w", err)
	}
	return strings.TrimSpace(b.String()), nil
}

// Judge compares predictions to ground truth through a text-only model call.
type Judge struct {
	backend vlm.Backend
	cache   *VerdictCache
	log     *zap.Logger
	metrics *telem.Metrics
}

// Options configures a Judge. Zero values are valid.
type Options struct {
	Cache   *VerdictCache
	Log     *zap.Logger
	Metrics *telem.Metrics
}

// New creates a judge backed by b.
func New(b vlm.Backend, opts Options) *Judge {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Judge{backend: b, cache: opts.Cache, log: log, metrics: opts.Metrics}
}

// Judge returns the verdict for predicted against truth. On error the verdict
// is VerdictUnknown and err is either an *vlm.InferenceError or wraps
// ErrJudgeParse.
func (j *Judge) Judge(ctx context.Context, question, truth, predicted string) (model.Verdict, error) {
	ctx, span := tracer.Start(ctx, "judge")
	defer span.End()

	if v, ok := j.cache.Lookup(question, truth, predicted); ok {
		j.metrics.RecordCacheHit(ctx)
		span.SetAttributes(attribute.Bool("shapeqa.cache_hit", true), attribute.String("shapeqa.verdict", v.String()))
		return v, nil
	}
	if j.cache != nil {
		j.metrics.RecordCacheMiss(ctx)
	}

	prompt, err := Prompt(question, truth, predicted)
	if err != nil {
		return model.VerdictUnknown, err
	}

	j.metrics.RecordCall(ctx, "judge")
	resp, err := j.backend.Invoke(ctx, nil, prompt)
	if err != nil {
		span.RecordError(err)
		return model.VerdictUnknown, err
	}

	v, err := ParseVerdict(resp)
	span.SetAttributes(attribute.String("shapeqa.verdict", v.String()))
	if err != nil {
		j.log.Warn("ambiguous judge response", zap.String("response", resp))
		return v, err
	}

	j.cache.Store(question, truth, predicted, v)
	return v, nil
}
