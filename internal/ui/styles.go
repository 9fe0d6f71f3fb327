// Package ui provides terminal UI components for vapixprobe.
package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/vapixprobe/vapixprobe/pkg/types"
)

// Color palette
var (
	ColorCyan   = lipgloss.Color("#00FFFF")
	ColorGreen  = lipgloss.Color("#00FF00")
	ColorYellow = lipgloss.Color("#FFFF00")
	ColorRed    = lipgloss.Color("#FF0055")

	ColorHeaderBg = lipgloss.Color("#16213E")
	ColorDimText  = lipgloss.Color("#666666")
	ColorText     = lipgloss.Color("#E0E0E0")
)

// Style definitions
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorCyan).
			Background(ColorHeaderBg).
			Padding(0, 1)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorCyan).
			Padding(0, 1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorDimText)

	ValueStyle = lipgloss.NewStyle().
			Foreground(ColorText).
			Bold(true)

	OKStyle = lipgloss.NewStyle().
		Foreground(ColorGreen).
		Bold(true)

	WarnStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)

	ErrStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	SkipStyle = lipgloss.NewStyle().
			Foreground(ColorDimText)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorDimText).
			MarginTop(1)

	KeyStyle = lipgloss.NewStyle().
			Foreground(ColorCyan).
			Bold(true)

	ProgressFullStyle = lipgloss.NewStyle().
				Foreground(ColorCyan)

	ProgressEmptyStyle = lipgloss.NewStyle().
				Foreground(ColorDimText)
)

// TagStyle returns the style for an outcome tag.
func TagStyle(tag types.Tag) lipgloss.Style {
	switch tag {
	case types.TagOK:
		return OKStyle
	case types.TagWarn:
		return WarnStyle
	default:
		return ErrStyle
	}
}

// RenderLabelValue renders a label-value pair.
func RenderLabelValue(label, value string) string {
	return LabelStyle.Render(label+": ") + ValueStyle.Render(value)
}

// RenderKey renders a keyboard key hint.
func RenderKey(key, description string) string {
	return KeyStyle.Render("["+key+"]") + " " + LabelStyle.Render(description)
}
