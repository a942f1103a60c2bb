package render

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	colorPrimary = lipgloss.Color("12")  // bright blue
	colorSuccess = lipgloss.Color("10")  // bright green
	colorWarning = lipgloss.Color("11")  // bright yellow
	colorError   = lipgloss.Color("9")   // bright red
	colorDim     = lipgloss.Color("240") // gray
	colorBorder  = lipgloss.Color("238") // dark gray

	styleTitle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	styleHeading = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true).
			MarginTop(1)

	styleBody = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	styleBullet = lipgloss.NewStyle().
			Foreground(colorDim)

	styleDim = lipgloss.NewStyle().
			Foreground(colorDim)

	stylePanel = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	styleError = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	styleHint = lipgloss.NewStyle().
			Foreground(colorWarning)

	styleTableHeader = lipgloss.NewStyle().
				Foreground(colorDim).
				Bold(true)
)

// stateStyle colours a session state name
func stateStyle(state string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch state {
	case "recording":
		return base.Foreground(colorError)
	case "completed":
		return base.Foreground(colorSuccess)
	case "failed":
		return base.Foreground(colorError)
	case "submitting", "microphone_testing":
		return base.Foreground(colorWarning)
	default:
		return base.Foreground(colorPrimary)
	}
}
