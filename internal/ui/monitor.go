package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vapixprobe/vapixprobe/internal/runner"
	"github.com/vapixprobe/vapixprobe/pkg/types"
)

// Status represents the monitor state
type Status int

const (
	StatusRunning Status = iota
	StatusCancelling
	StatusCompleted
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "Running"
	case StatusCancelling:
		return "Cancelling"
	case StatusCompleted:
		return "Completed"
	case StatusCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// ProgressMsg carries one sequencer progress step into the model.
type ProgressMsg runner.Progress

// DoneMsg carries the final batch result.
type DoneMsg struct {
	Result *runner.Result
}

const maxVisibleLines = 12

// Monitor is the bubbletea model that tracks a running batch.
type Monitor struct {
	width  int
	height int

	targetIP  string
	batchName string
	status    Status
	cancel    func() // stops the sequencer

	bar       *ProgressBar
	completed int
	total     int
	counts    map[types.Tag]int
	skipped   int
	lines     []string

	result *runner.Result
}

// NewMonitor creates a monitor for a batch against the given device.
// cancel is invoked when the operator aborts the run; it may be nil.
func NewMonitor(batchName, targetIP string, total int, cancel func()) *Monitor {
	return &Monitor{
		width:     80,
		height:    24,
		targetIP:  targetIP,
		batchName: batchName,
		status:    StatusRunning,
		cancel:    cancel,
		bar:       NewProgressBar(70),
		total:     total,
		counts:    make(map[types.Tag]int),
	}
}

// Result returns the final result once the batch has finished.
func (m *Monitor) Result() *runner.Result {
	return m.result
}

func (m *Monitor) Init() tea.Cmd {
	return tea.EnterAltScreen
}

func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.status == StatusRunning {
				m.status = StatusCancelling
				if m.cancel != nil {
					m.cancel()
				}
				return m, nil
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.SetWidth(m.width - 10)

	case ProgressMsg:
		m.apply(runner.Progress(msg))

	case DoneMsg:
		m.result = msg.Result
		if msg.Result != nil && msg.Result.Cancelled {
			m.status = StatusCancelled
		} else {
			m.status = StatusCompleted
		}
		return m, tea.Quit
	}

	return m, nil
}

// apply folds one progress step into the display state.
func (m *Monitor) apply(p runner.Progress) {
	m.completed = p.Completed
	if p.Total > 0 {
		m.total = p.Total
		m.bar.SetProgress(float64(p.Completed) / float64(p.Total))
	}

	var line string
	switch {
	case p.Skipped:
		m.skipped++
		line = fmt.Sprintf("%s %s (%s)", SkipStyle.Render("skip"), p.PresetName, p.Note)
	case p.Outcome != nil:
		m.counts[p.Outcome.Tag]++
		line = fmt.Sprintf("%s %s %d %s",
			TagStyle(p.Outcome.Tag).Render(fmt.Sprintf("%-4s", p.Outcome.Tag)),
			p.PresetName,
			p.Outcome.StatusCode,
			LabelStyle.Render(p.Outcome.Duration.String()),
		)
	default:
		return
	}

	m.lines = append(m.lines, line)
	if len(m.lines) > maxVisibleLines {
		m.lines = m.lines[len(m.lines)-maxVisibleLines:]
	}
}

func (m *Monitor) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	title := TitleStyle.Render("vapixprobe")
	status := fmt.Sprintf("%s  %s  %s",
		title,
		ValueStyle.Render(m.batchName),
		m.statusText(),
	)
	b.WriteString(status)
	b.WriteString("\n")
	b.WriteString(RenderLabelValue("Target", m.targetIP))
	b.WriteString("\n\n")

	b.WriteString(m.bar.Render())
	b.WriteString("  ")
	b.WriteString(ValueStyle.Render(fmt.Sprintf("%d/%d", m.completed, m.total)))
	b.WriteString("\n\n")

	b.WriteString(m.renderCounts())
	b.WriteString("\n")
	b.WriteString(PanelStyle.Width(m.width - 4).Render(strings.Join(m.lines, "\n")))
	b.WriteString("\n")
	b.WriteString(FooterStyle.Render(RenderKey("q", "cancel / quit")))

	return b.String()
}

func (m *Monitor) statusText() string {
	switch m.status {
	case StatusRunning:
		return OKStyle.Render("● " + m.status.String())
	case StatusCancelling, StatusCancelled:
		return WarnStyle.Render("■ " + m.status.String())
	default:
		return OKStyle.Render("✓ " + m.status.String())
	}
}

func (m *Monitor) renderCounts() string {
	return fmt.Sprintf("%s  %s  %s  %s",
		OKStyle.Render(fmt.Sprintf("ok %d", m.counts[types.TagOK])),
		WarnStyle.Render(fmt.Sprintf("warn %d", m.counts[types.TagWarn])),
		ErrStyle.Render(fmt.Sprintf("err %d", m.counts[types.TagErr])),
		SkipStyle.Render(fmt.Sprintf("skip %d", m.skipped)),
	)
}

// Run drives the monitor as a full-screen program. The returned
// program's Send is how the sequencer's progress reaches the model.
func Run(m *Monitor) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// NewProgram returns the tea.Program for external control.
func NewProgram(m *Monitor) *tea.Program {
	return tea.NewProgram(m, tea.WithAltScreen())
}
