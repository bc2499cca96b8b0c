package ui

import "github.com/charmbracelet/lipgloss"

// Theme defines the colors used for terminal output.
type Theme struct {
	Primary   lipgloss.Color // titles, progress gradient start
	Secondary lipgloss.Color // progress gradient end, highlighted values
	Error     lipgloss.Color // incorrect verdicts, failures
	Warning   lipgloss.Color // unknown verdicts
	Success   lipgloss.Color // correct verdicts
	Text      lipgloss.Color
	TextMuted lipgloss.Color // labels, hints
	Border    lipgloss.Color
}

// DarkTheme is the default.
func DarkTheme() Theme {
	return Theme{
		Primary:   lipgloss.Color("#fab283"),
		Secondary: lipgloss.Color("#5c9cf5"),
		Error:     lipgloss.Color("#e06c75"),
		Warning:   lipgloss.Color("#f5a742"),
		Success:   lipgloss.Color("#7fd88f"),
		Text:      lipgloss.Color("#eeeeee"),
		TextMuted: lipgloss.Color("#808080"),
		Border:    lipgloss.Color("#484848"),
	}
}

// LightTheme suits bright terminal backgrounds.
func LightTheme() Theme {
	return Theme{
		Primary:   lipgloss.Color("#b35c00"),
		Secondary: lipgloss.Color("#0550ae"),
		Error:     lipgloss.Color("#cf222e"),
		Warning:   lipgloss.Color("#bf8700"),
		Success:   lipgloss.Color("#116329"),
		Text:      lipgloss.Color("#1f2328"),
		TextMuted: lipgloss.Color("#656d76"),
		Border:    lipgloss.Color("#d0d7de"),
	}
}

// ThemeByName returns a theme by name. Defaults to dark.
func ThemeByName(name string) Theme {
	switch name {
	case "light":
		return LightTheme()
	default:
		return DarkTheme()
	}
}

type styles struct {
	title     lipgloss.Style
	label     lipgloss.Style
	text      lipgloss.Style
	correct   lipgloss.Style
	incorrect lipgloss.Style
	unknown   lipgloss.Style
	border    lipgloss.Style
	card      lipgloss.Style
}

func newStyles(t Theme) styles {
	return styles{
		title:     lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		label:     lipgloss.NewStyle().Foreground(t.TextMuted),
		text:      lipgloss.NewStyle().Foreground(t.Text),
		correct:   lipgloss.NewStyle().Foreground(t.Success),
		incorrect: lipgloss.NewStyle().Foreground(t.Error),
		unknown:   lipgloss.NewStyle().Foreground(t.Warning),
		border:    lipgloss.NewStyle().Foreground(t.Border),
		card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(0, 1),
	}
}
