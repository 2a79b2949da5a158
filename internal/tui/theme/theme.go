package theme

import (
	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Title     lipgloss.Style
	Tab       lipgloss.Style
	TabActive lipgloss.Style
	Section   lipgloss.Style
	Count     lipgloss.Style
	Active    lipgloss.Style
	MetaLabel lipgloss.Style
	MetaValue lipgloss.Style
	StateIdle lipgloss.Style
	StateWarn lipgloss.Style
	StateLoad lipgloss.Style
	Input     lipgloss.Style

	ToggleOn      lipgloss.Style
	ToggleOff     lipgloss.Style
	TogglePending lipgloss.Style
	ToggleLocked  lipgloss.Style
}

func Default() Theme {
	cpMauve := lipgloss.Color("#cba6f7")
	cpRed := lipgloss.Color("#f38ba8")
	cpPeach := lipgloss.Color("#fab387")
	cpYellow := lipgloss.Color("#f9e2af")
	cpGreen := lipgloss.Color("#a6e3a1")
	cpTeal := lipgloss.Color("#94e2d5")
	cpLavender := lipgloss.Color("#b4befe")
	cpText := lipgloss.Color("#cdd6f4")
	cpSubtext0 := lipgloss.Color("#a6adc8")
	cpSubtext1 := lipgloss.Color("#bac2de")
	cpOverlay1 := lipgloss.Color("#7f849c")
	cpSurface0 := lipgloss.Color("#313244")

	return Theme{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(cpMauve),
		Tab:       lipgloss.NewStyle().Foreground(cpSubtext0).Padding(0, 1),
		TabActive: lipgloss.NewStyle().Foreground(cpLavender).Background(cpSurface0).Bold(true).Padding(0, 1),
		Section:   lipgloss.NewStyle().Bold(true).Foreground(cpTeal),
		Count:     lipgloss.NewStyle().Foreground(cpYellow).Bold(true),
		Active:    lipgloss.NewStyle().Background(cpSurface0).Foreground(cpText),
		MetaLabel: lipgloss.NewStyle().Foreground(cpOverlay1),
		MetaValue: lipgloss.NewStyle().Foreground(cpSubtext1),
		StateIdle: lipgloss.NewStyle().Foreground(cpGreen),
		StateWarn: lipgloss.NewStyle().Foreground(cpRed),
		StateLoad: lipgloss.NewStyle().Foreground(cpPeach),
		Input:     lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(cpOverlay1).Padding(0, 1),

		ToggleOn:      lipgloss.NewStyle().Bold(true).Foreground(cpRed),
		ToggleOff:     lipgloss.NewStyle().Foreground(cpSubtext1),
		TogglePending: lipgloss.NewStyle().Italic(true).Foreground(cpPeach),
		ToggleLocked:  lipgloss.NewStyle().Foreground(cpOverlay1),
	}
}

// ToggleState picks the style for a like or subscribe button.
func (t Theme) ToggleState(active, pending, locked bool) lipgloss.Style {
	switch {
	case locked:
		return t.ToggleLocked
	case pending:
		return t.TogglePending
	case active:
		return t.ToggleOn
	default:
		return t.ToggleOff
	}
}

func (t Theme) RenderActiveLine(active bool, line string) string {
	if !active {
		return line
	}
	return t.Active.Render(line)
}
