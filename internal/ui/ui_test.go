package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/timvw/shapeqa/internal/model"
)

func update(m progressModel, msg tea.Msg) progressModel {
	next, _ := m.Update(msg)
	return next.(progressModel)
}

func TestProgressModel_CountsRows(t *testing.T) {
	m := newProgressModel(DarkTheme(), nil)
	m = update(m, modeStartedMsg{mode: model.ModeClassic, total: 4})
	m = update(m, rowDoneMsg{rec: model.EvaluationRecord{QuestionID: "q1", JudgeVerdict: model.VerdictCorrect}})
	m = update(m, rowDoneMsg{rec: model.EvaluationRecord{QuestionID: "q2", JudgeVerdict: model.VerdictUnknown}})

	if m.agg.Total != 2 || m.agg.Correct != 1 || m.agg.Unknown != 1 {
		t.Errorf("counts: got %+v", m.agg)
	}
	if got := m.percent(); got != 0.5 {
		t.Errorf("percent: got %v, want 0.5", got)
	}

	view := m.View()
	for _, sub := range []string{"classic", "2/4", "last q2"} {
		if !strings.Contains(view, sub) {
			t.Errorf("view missing %q:\n%s", sub, view)
		}
	}
}

func TestProgressModel_FinishedModes(t *testing.T) {
	m := newProgressModel(DarkTheme(), nil)
	m = update(m, modeStartedMsg{mode: model.ModeZeroShot, total: 1})
	m = update(m, rowDoneMsg{rec: model.EvaluationRecord{JudgeVerdict: model.VerdictCorrect}})
	m = update(m, modeFinishedMsg{agg: model.AggregateResult{Mode: model.ModeZeroShot, Total: 1, Correct: 1}})

	view := m.View()
	if !strings.Contains(view, "accuracy 1.0000") {
		t.Errorf("finished line missing:\n%s", view)
	}
	if strings.Contains(view, "1/1") {
		t.Errorf("finished mode should not keep its bar:\n%s", view)
	}

	m = update(m, modeStartedMsg{mode: model.ModeDL, total: 3})
	if m.agg.Total != 0 {
		t.Errorf("counts should reset for a new mode, got %+v", m.agg)
	}
	if !strings.Contains(m.View(), "0/3") {
		t.Errorf("new mode bar missing:\n%s", m.View())
	}
}

func TestProgressModel_CtrlCInterrupts(t *testing.T) {
	interrupted := false
	m := newProgressModel(DarkTheme(), func() { interrupted = true })

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !interrupted {
		t.Error("ctrl+c should call onInterrupt")
	}
	if cmd == nil {
		t.Fatal("ctrl+c should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestProgressModel_WindowResize(t *testing.T) {
	m := newProgressModel(DarkTheme(), nil)
	m = update(m, tea.WindowSizeMsg{Width: 200, Height: 40})
	if m.bar.Width != 60 {
		t.Errorf("bar width: got %d, want 60", m.bar.Width)
	}
	m = update(m, tea.WindowSizeMsg{Width: 30, Height: 40})
	if m.bar.Width != 10 {
		t.Errorf("bar width: got %d, want 10", m.bar.Width)
	}
}

func TestSummaryTable(t *testing.T) {
	out := SummaryTable([]model.AggregateResult{
		{Mode: model.ModeZeroShot, Total: 4, Correct: 3, Incorrect: 1},
		{Mode: model.ModeDL, Total: 2, Unknown: 2},
	}, LightTheme())

	for _, sub := range []string{"MODE", "ACCURACY", "zero_shot", "0.7500", "dl", "n/a (0 rows judged)"} {
		if !strings.Contains(out, sub) {
			t.Errorf("table missing %q:\n%s", sub, out)
		}
	}
}

func TestSampleCard(t *testing.T) {
	s := model.Sample{Question: "What color is the square?", GroundTruth: "red", ImagePath: "images/a.png"}
	sc := model.SceneContext{Text: "red square at (50, 28)\ngray circle at (120, 80)"}

	out := SampleCard(3, s, sc, DarkTheme())
	for _, sub := range []string{"Sample 3", "What color is the square?", "red square at (50, 28)", "gray circle at (120, 80)", "images/a.png"} {
		if !strings.Contains(out, sub) {
			t.Errorf("card missing %q:\n%s", sub, out)
		}
	}
}

func TestThemeByName(t *testing.T) {
	if ThemeByName("light") != LightTheme() {
		t.Error("light should return LightTheme")
	}
	if ThemeByName("anything") != DarkTheme() {
		t.Error("unknown names should fall back to DarkTheme")
	}
}
