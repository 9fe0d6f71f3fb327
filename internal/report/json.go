package report

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONGenerator renders reports as JSON.
type JSONGenerator struct {
	Indent bool
}

func (g *JSONGenerator) Generate(report *Report, w io.Writer) error {
	encoder := json.NewEncoder(w)
	if g.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(report)
}

func (g *JSONGenerator) Extension() string {
	return "json"
}

// MarkdownGenerator renders a compact human-readable summary.
type MarkdownGenerator struct{}

func (g *MarkdownGenerator) Generate(report *Report, w io.Writer) error {
	fmt.Fprintf(w, "# %s\n\n", report.Title)
	fmt.Fprintf(w, "- Target: %s\n", report.TargetIP)
	fmt.Fprintf(w, "- Generated: %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "- Duration: %s\n", report.Duration)
	fmt.Fprintf(w, "- Results: %d ok / %d warn / %d err\n", report.OKCount(), report.WarnCount(), report.ErrCount())
	if report.Cancelled {
		fmt.Fprintf(w, "- Cancelled before completion\n")
	}
	fmt.Fprintf(w, "\n| Preset | Tag | Status | Duration | Note |\n")
	fmt.Fprintf(w, "|---|---|---|---|---|\n")
	for _, e := range report.Entries {
		note := e.Note
		if e.Drift != nil && !e.Drift.Identical {
			note = fmt.Sprintf("drift simhash=%d tlsh=%d", e.Drift.SimHashDistance, e.Drift.TLSHDistance)
		}
		if e.Skipped {
			fmt.Fprintf(w, "| %s | skipped | - | - | %s |\n", e.Preset, note)
			continue
		}
		fmt.Fprintf(w, "| %s | %s | %d | %s | %s |\n", e.Preset, e.Tag, e.StatusCode, e.Duration, note)
	}
	return nil
}

func (g *MarkdownGenerator) Extension() string {
	return "md"
}
