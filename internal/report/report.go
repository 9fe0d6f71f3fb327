// Package report generates batch run reports for vapixprobe.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/vapixprobe/vapixprobe/internal/runner"
	"github.com/vapixprobe/vapixprobe/pkg/types"
)

// Entry is one preset's line in a batch report.
type Entry struct {
	Preset     string    `json:"preset"`
	Tag        types.Tag `json:"tag,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	Duration   string    `json:"duration,omitempty"`
	Skipped    bool      `json:"skipped,omitempty"`
	Note       string    `json:"note,omitempty"`
	Drift      *Drift    `json:"drift,omitempty"`
}

// Drift is the response-similarity annotation for one entry, measured
// against the first successful response of the batch.
type Drift struct {
	SimHashDistance int  `json:"simhash_distance"`
	TLSHDistance    int  `json:"tlsh_distance"`
	Identical       bool `json:"identical"`
}

// Report is a finished batch run, ready for serialization.
type Report struct {
	Title       string            `json:"title"`
	Version     string            `json:"version"`
	GeneratedAt time.Time         `json:"generated_at"`
	TargetIP    string            `json:"target_ip"`
	Entries     []Entry           `json:"entries"`
	TagCounts   map[types.Tag]int `json:"tag_counts"`
	Skipped     []string          `json:"skipped,omitempty"`
	Cancelled   bool              `json:"cancelled,omitempty"`
	Duration    string            `json:"duration"`
}

// New creates an empty report for a batch against the given device.
func New(title, targetIP string) *Report {
	return &Report{
		Title:       title,
		Version:     "1.0",
		GeneratedAt: time.Now(),
		TargetIP:    targetIP,
		Entries:     make([]Entry, 0),
		TagCounts:   make(map[types.Tag]int),
	}
}

// AddProgress appends one sequencer progress step to the report.
func (r *Report) AddProgress(p runner.Progress) {
	e := Entry{Preset: p.PresetName, Skipped: p.Skipped, Note: p.Note}
	if p.Outcome != nil {
		e.Tag = p.Outcome.Tag
		e.StatusCode = p.Outcome.StatusCode
		e.Duration = p.Outcome.Duration.String()
		r.TagCounts[p.Outcome.Tag]++
	}
	r.Entries = append(r.Entries, e)
}

// SetResult folds the sequencer's final result into the report,
// attaching drift annotations to the matching entries.
func (r *Report) SetResult(res *runner.Result) {
	r.Skipped = res.Skipped
	r.Cancelled = res.Cancelled
	r.Duration = res.Duration.String()

	byName := make(map[string]*Entry, len(r.Entries))
	for i := range r.Entries {
		byName[r.Entries[i].Preset] = &r.Entries[i]
	}
	for _, d := range res.Drifts {
		if e, ok := byName[d.PresetName]; ok {
			e.Drift = &Drift{
				SimHashDistance: d.Drift.SimHashDistance,
				TLSHDistance:    d.Drift.TLSHDistance,
				Identical:       d.Drift.Identical,
			}
		}
	}
}

// OKCount returns the number of entries tagged ok.
func (r *Report) OKCount() int { return r.TagCounts[types.TagOK] }

// WarnCount returns the number of entries tagged warn.
func (r *Report) WarnCount() int { return r.TagCounts[types.TagWarn] }

// ErrCount returns the number of entries tagged err.
func (r *Report) ErrCount() int { return r.TagCounts[types.TagErr] }

// Generator renders a report to a writer.
type Generator interface {
	Generate(report *Report, w io.Writer) error
	Extension() string
}

// Manager writes reports to an output directory with timestamped
// filenames.
type Manager struct {
	generators map[string]Generator
	outputDir  string
}

// NewManager creates a manager with the default generators registered.
func NewManager(outputDir string) *Manager {
	m := &Manager{
		generators: make(map[string]Generator),
		outputDir:  outputDir,
	}
	m.RegisterGenerator("json", &JSONGenerator{Indent: true})
	m.RegisterGenerator("markdown", &MarkdownGenerator{})
	m.RegisterGenerator("md", &MarkdownGenerator{})
	return m
}

// RegisterGenerator registers a generator under a format name.
func (m *Manager) RegisterGenerator(format string, gen Generator) {
	m.generators[format] = gen
}

// Generate writes the report in the given format and returns the path.
func (m *Manager) Generate(report *Report, format string) (string, error) {
	gen, ok := m.generators[format]
	if !ok {
		return "", fmt.Errorf("unknown report format: %s", format)
	}

	if err := os.MkdirAll(m.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("report_%s.%s", timestamp, gen.Extension())
	path := filepath.Join(m.outputDir, filename)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	if err := gen.Generate(report, f); err != nil {
		return "", fmt.Errorf("failed to generate report: %w", err)
	}
	return path, nil
}
