package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/timvw/shapeqa/internal/model"
)

// SummaryTable renders one row per aggregate.
func SummaryTable(results []model.AggregateResult, theme Theme) string {
	st := newStyles(theme)

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			string(r.Mode),
			strconv.Itoa(r.Total),
			strconv.Itoa(r.Correct),
			strconv.Itoa(r.Incorrect),
			strconv.Itoa(r.Unknown),
			strconv.Itoa(r.Failed),
			r.AccuracyString(),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(st.border).
		Headers("MODE", "TOTAL", "CORRECT", "INCORRECT", "UNKNOWN", "FAILED", "ACCURACY").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			switch {
			case row == table.HeaderRow:
				return s.Inherit(st.title)
			case col == 2:
				return s.Inherit(st.correct)
			case col == 3:
				return s.Inherit(st.incorrect)
			case col == 4 || col == 5:
				return s.Inherit(st.unknown)
			default:
				return s.Inherit(st.text)
			}
		})
	return t.String()
}

// SampleCard renders one dataset row with the detector's view of its image.
func SampleCard(index int, s model.Sample, sc model.SceneContext, theme Theme) string {
	st := newStyles(theme)

	field := func(label, value string) string {
		return st.label.Render(fmt.Sprintf("%-9s", label)) + " " + st.text.Render(value)
	}

	lines := []string{
		st.title.Render(fmt.Sprintf("Sample %d", index)),
		"",
		field("Question", s.Question),
		field("Answer", s.GroundTruth),
		field("Image", s.ImagePath),
		"",
		st.label.Render("Detected scene:"),
	}
	for _, l := range strings.Split(sc.Text, "\n") {
		lines = append(lines, "  "+st.text.Render(l))
	}
	return st.card.Render(strings.Join(lines, "\n"))
}
