package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Color is one of the fixed palette colors the detector recognizes.
type Color string

const (
	ColorRed    Color = "red"
	ColorGreen  Color = "green"
	ColorBlue   Color = "blue"
	ColorYellow Color = "yellow"
	ColorGray   Color = "gray"
)

// Shape is the geometric class assigned to a detected contour.
type Shape string

const (
	ShapeTriangle  Shape = "triangle"
	ShapeSquare    Shape = "square"
	ShapeRectangle Shape = "rectangle"
	ShapePentagon  Shape = "pentagon"
	ShapeCircle    Shape = "circle"
	ShapePolygon   Shape = "polygon"
)

// Point is an integer pixel coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Point) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}

// DetectedObject is a single colored shape found in an image.
// Produced fresh per image and never mutated afterwards.
type DetectedObject struct {
	Color    Color `json:"color"`
	Shape    Shape `json:"shape"`
	Centroid Point `json:"centroid"`
}

// SceneContext is the detector output for one image together with its
// rendered prompt text.
type SceneContext struct {
	Objects []DetectedObject `json:"objects"`
	Text    string           `json:"text"`
}

// AgentTrace records the intermediate artifacts of the chain-of-thought agent
// for a single question.
type AgentTrace struct {
	Plan             string `json:"plan"`
	ExtractedContext string `json:"extracted_context"`
	FinalAnswer      string `json:"final_answer"`
}

// AgentResult is what an agent hands back to the driver for one question.
type AgentResult struct {
	// Answer is the predicted answer, verbatim from the model.
	Answer string `json:"answer"`
	// SceneContext is the detector context injected into the prompt, if any.
	SceneContext string `json:"scene_context,omitempty"`
	// Trace is only set by the chain-of-thought agent.
	Trace *AgentTrace `json:"trace,omitempty"`
	// Calls is the number of VLM invocations the agent made.
	Calls int `json:"calls"`
}

// Mode selects which answering strategy the driver runs.
type Mode string

const (
	ModeZeroShot   Mode = "zero_shot"
	ModeClassic    Mode = "classic"
	ModeDL         Mode = "dl"
	ModeAll        Mode = "all"
	ModeShowSample Mode = "show_sample"
)

// AgentModes are the modes that map to a single agent, in run order for ModeAll.
var AgentModes = []Mode{ModeZeroShot, ModeClassic, ModeDL}

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeZeroShot, ModeClassic, ModeDL, ModeAll, ModeShowSample:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q (supported: zero_shot, classic, dl, all, show_sample)", s)
	}
}

// Sample is one dataset row.
type Sample struct {
	ID          string `json:"id" validate:"required"`
	ImageRef    string `json:"image_ref" validate:"required"`
	ImagePath   string `json:"image_path"`
	Question    string `json:"question" validate:"required"`
	GroundTruth string `json:"ground_truth" validate:"required"`
}

// Verdict is the ternary outcome of judging one prediction.
type Verdict int

const (
	VerdictUnknown Verdict = iota
	VerdictCorrect
	VerdictIncorrect
)

func (v Verdict) String() string {
	switch v {
	case VerdictCorrect:
		return "true"
	case VerdictIncorrect:
		return "false"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the verdict as true, false or "unknown".
func (v Verdict) MarshalJSON() ([]byte, error) {
	switch v {
	case VerdictCorrect:
		return []byte("true"), nil
	case VerdictIncorrect:
		return []byte("false"), nil
	default:
		return json.Marshal("unknown")
	}
}

// ErrorKind classifies a per-row failure.
type ErrorKind string

const (
	ErrorKindNone           ErrorKind = ""
	ErrorKindInference      ErrorKind = "inference"
	ErrorKindJudgeInference ErrorKind = "judge_inference"
	ErrorKindJudgeParse     ErrorKind = "judge_parse"
)

// EvaluationRecord is the outcome of one dataset row under one mode.
// Created once by the driver and never mutated afterwards.
type EvaluationRecord struct {
	RunID           string      `json:"run_id"`
	Mode            Mode        `json:"mode"`
	QuestionID      string      `json:"question_id"`
	ImageRef        string      `json:"image_ref"`
	Question        string      `json:"question"`
	GroundTruth     string      `json:"ground_truth"`
	PredictedAnswer string      `json:"predicted_answer"`
	JudgeVerdict    Verdict     `json:"judge_verdict"`
	SceneContext    string      `json:"scene_context,omitempty"`
	Trace           *AgentTrace `json:"trace,omitempty"`
	ErrorKind       ErrorKind   `json:"error_kind,omitempty"`
	Error           string      `json:"error,omitempty"`
	EvaluatedAt     time.Time   `json:"evaluated_at"`
	DurationMs      int64       `json:"duration_ms"`
}

// AggregateResult summarizes one mode over a dataset.
type AggregateResult struct {
	RunID     string `json:"run_id"`
	Mode      Mode   `json:"mode"`
	Total     int    `json:"total"`
	Correct   int    `json:"correct"`
	Incorrect int    `json:"incorrect"`
	// Unknown counts rows excluded from the denominator: ambiguous judge
	// responses and rows that failed with an error.
	Unknown int `json:"unknown"`
	// Failed is the subset of Unknown caused by an error.
	Failed int `json:"failed"`
}

// Add folds a record into the aggregate.
func (a *AggregateResult) Add(rec EvaluationRecord) {
	a.Total++
	switch rec.JudgeVerdict {
	case VerdictCorrect:
		a.Correct++
	case VerdictIncorrect:
		a.Incorrect++
	default:
		a.Unknown++
		if rec.ErrorKind != ErrorKindNone && rec.ErrorKind != ErrorKindJudgeParse {
			a.Failed++
		}
	}
}

// Judged is the accuracy denominator.
func (a AggregateResult) Judged() int {
	return a.Correct + a.Incorrect
}

// Accuracy returns correct/judged. ok is false when no row was judged.
func (a AggregateResult) Accuracy() (acc float64, ok bool) {
	judged := a.Judged()
	if judged == 0 {
		return 0, false
	}
	return float64(a.Correct) / float64(judged), true
}

// AccuracyString renders the accuracy for logs and tables.
func (a AggregateResult) AccuracyString() string {
	acc, ok := a.Accuracy()
	if !ok {
		return "n/a (0 rows judged)"
	}
	return fmt.Sprintf("%.4f", acc)
}

// MarshalJSON adds the derived accuracy; it is null when nothing was judged.
func (a AggregateResult) MarshalJSON() ([]byte, error) {
	type alias AggregateResult
	out := struct {
		alias
		Judged   int      `json:"judged"`
		Accuracy *float64 `json:"accuracy"`
	}{alias: alias(a), Judged: a.Judged()}
	if acc, ok := a.Accuracy(); ok {
		out.Accuracy = &acc
	}
	return json.Marshal(out)
}

// TokenUsage tracks VLM token consumption for a single call.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}
