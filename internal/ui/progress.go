// Package ui renders terminal output: a live progress bar during a run, a
// sample card for show_sample, and the final summary table.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/timvw/shapeqa/internal/model"
)

type modeStartedMsg struct {
	mode  model.Mode
	total int
}

type rowDoneMsg struct {
	rec model.EvaluationRecord
}

type modeFinishedMsg struct {
	agg model.AggregateResult
}

// progressModel implements tea.Model for the run progress bar.
type progressModel struct {
	styles   styles
	bar      progress.Model
	mode     model.Mode
	total    int
	agg      model.AggregateResult
	lastID   string
	finished []model.AggregateResult

	onInterrupt func()
}

func newProgressModel(theme Theme, onInterrupt func()) progressModel {
	return progressModel{
		styles:      newStyles(theme),
		bar:         progress.New(progress.WithGradient(string(theme.Primary), string(theme.Secondary)), progress.WithWidth(40)),
		onInterrupt: onInterrupt,
	}
}

func (m progressModel) Init() tea.Cmd { return nil }

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case modeStartedMsg:
		m.mode = msg.mode
		m.total = msg.total
		m.agg = model.AggregateResult{Mode: msg.mode}
		m.lastID = ""
	case rowDoneMsg:
		m.agg.Add(msg.rec)
		m.lastID = msg.rec.QuestionID
	case modeFinishedMsg:
		m.finished = append(m.finished, msg.agg)
	case tea.WindowSizeMsg:
		width := msg.Width - 48
		if width > 60 {
			width = 60
		}
		if width < 10 {
			width = 10
		}
		m.bar.Width = width
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			if m.onInterrupt != nil {
				m.onInterrupt()
			}
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m progressModel) percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.agg.Total) / float64(m.total)
}

func (m progressModel) View() string {
	var b strings.Builder
	for _, agg := range m.finished {
		fmt.Fprintf(&b, "%s %s  accuracy %s\n",
			m.styles.correct.Render("✓"),
			m.styles.title.Render(fmt.Sprintf("%-9s", agg.Mode)),
			agg.AccuracyString())
	}
	if m.mode == "" || (len(m.finished) > 0 && m.finished[len(m.finished)-1].Mode == m.mode) {
		return b.String()
	}

	fmt.Fprintf(&b, "%s %s %d/%d  %s %s %s",
		m.styles.title.Render(fmt.Sprintf("%-9s", m.mode)),
		m.bar.ViewAs(m.percent()),
		m.agg.Total, m.total,
		m.styles.correct.Render(fmt.Sprintf("✓%d", m.agg.Correct)),
		m.styles.incorrect.Render(fmt.Sprintf("✗%d", m.agg.Incorrect)),
		m.styles.unknown.Render(fmt.Sprintf("?%d", m.agg.Unknown)),
	)
	if m.lastID != "" {
		b.WriteString(m.styles.label.Render("  last " + m.lastID))
	}
	b.WriteString("\n")
	return b.String()
}

// Progress shows a live progress bar for a run. It implements the
// driver's Reporter interface.
type Progress struct {
	program *tea.Program
	done    chan struct{}
	err     error
}

// NewProgress creates a progress display writing to out. onInterrupt is
// called when the user presses ctrl+c.
func NewProgress(out io.Writer, theme Theme, onInterrupt func()) *Progress {
	p := tea.NewProgram(newProgressModel(theme, onInterrupt), tea.WithOutput(out))
	return &Progress{program: p, done: make(chan struct{})}
}

// Start runs the display in the background.
func (p *Progress) Start() {
	go func() {
		defer close(p.done)
		_, p.err = p.program.Run()
	}()
}

// Stop ends the display and waits for it to restore the terminal.
func (p *Progress) Stop() error {
	p.program.Quit()
	<-p.done
	return p.err
}

func (p *Progress) ModeStarted(mode model.Mode, total int) {
	p.program.Send(modeStartedMsg{mode: mode, total: total})
}

func (p *Progress) RowDone(rec model.EvaluationRecord) {
	p.program.Send(rowDoneMsg{rec: rec})
}

func (p *Progress) ModeFinished(agg model.AggregateResult) {
	p.program.Send(modeFinishedMsg{agg: agg})
}
