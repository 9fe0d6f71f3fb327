package ui

import (
	"fmt"
	"strings"
)

// ProgressBar renders a fixed-width completion bar.
type ProgressBar struct {
	width      int
	percentage float64
}

// NewProgressBar creates a progress bar of the given width.
func NewProgressBar(width int) *ProgressBar {
	return &ProgressBar{width: width}
}

// SetProgress sets the completion fraction (0.0 to 1.0).
func (p *ProgressBar) SetProgress(percentage float64) {
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 1 {
		percentage = 1
	}
	p.percentage = percentage
}

// SetWidth sets the bar width.
func (p *ProgressBar) SetWidth(width int) {
	p.width = width
}

// Render renders the bar with a trailing percentage.
func (p *ProgressBar) Render() string {
	barWidth := p.width - 8
	if barWidth < 10 {
		barWidth = 10
	}

	filled := int(float64(barWidth) * p.percentage)
	empty := barWidth - filled

	var b strings.Builder
	b.WriteString(ProgressFullStyle.Render(strings.Repeat("█", filled)))
	b.WriteString(ProgressEmptyStyle.Render(strings.Repeat("░", empty)))
	b.WriteString(" ")
	b.WriteString(ValueStyle.Render(fmt.Sprintf("%5.1f%%", p.percentage*100)))
	return b.String()
}
