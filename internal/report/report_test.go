package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vapixprobe/vapixprobe/internal/analyzer"
	"github.com/vapixprobe/vapixprobe/internal/runner"
	"github.com/vapixprobe/vapixprobe/pkg/types"
)

func sampleReport() *Report {
	r := New("MultiPreset_Run", "192.168.0.90")
	r.AddProgress(runner.Progress{
		PresetName: "GetCallStatus_Normal_Path",
		Outcome:    &types.Outcome{Tag: types.TagOK, StatusCode: 200, Duration: 120 * time.Millisecond},
	})
	r.AddProgress(runner.Progress{
		PresetName: "ghost",
		Skipped:    true,
		Note:       "preset not found",
	})
	r.AddProgress(runner.Progress{
		PresetName: "GetSIPAccount_RPC",
		Outcome:    &types.Outcome{Tag: types.TagWarn, StatusCode: 401, Duration: 80 * time.Millisecond},
	})
	r.SetResult(&runner.Result{
		Total:     3,
		Completed: 2,
		Skipped:   []string{"ghost"},
		Duration:  250 * time.Millisecond,
		Drifts: []runner.DriftRecord{
			{PresetName: "GetSIPAccount_RPC", Drift: analyzer.Drift{SimHashDistance: 7, TLSHDistance: 42}},
		},
	})
	return r
}

func TestTagCounts(t *testing.T) {
	r := sampleReport()
	if r.OKCount() != 1 || r.WarnCount() != 1 || r.ErrCount() != 0 {
		t.Errorf("counts = %d/%d/%d, want 1/1/0", r.OKCount(), r.WarnCount(), r.ErrCount())
	}
}

func TestDriftAttachedToEntry(t *testing.T) {
	r := sampleReport()
	var entry *Entry
	for i := range r.Entries {
		if r.Entries[i].Preset == "GetSIPAccount_RPC" {
			entry = &r.Entries[i]
		}
	}
	if entry == nil {
		t.Fatal("entry for GetSIPAccount_RPC missing")
	}
	if entry.Drift == nil {
		t.Fatal("drift annotation missing")
	}
	if entry.Drift.SimHashDistance != 7 || entry.Drift.TLSHDistance != 42 {
		t.Errorf("drift = %+v, want simhash 7 tlsh 42", entry.Drift)
	}
}

func TestJSONGenerator(t *testing.T) {
	var buf bytes.Buffer
	gen := &JSONGenerator{Indent: true}
	if err := gen.Generate(sampleReport(), &buf); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	var decoded Report
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if decoded.TargetIP != "192.168.0.90" {
		t.Errorf("TargetIP = %q", decoded.TargetIP)
	}
	if len(decoded.Entries) != 3 {
		t.Errorf("got %d entries, want 3", len(decoded.Entries))
	}
}

func TestMarkdownGeneratorListsEveryEntry(t *testing.T) {
	var buf bytes.Buffer
	gen := &MarkdownGenerator{}
	if err := gen.Generate(sampleReport(), &buf); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"GetCallStatus_Normal_Path", "ghost", "GetSIPAccount_RPC", "skipped", "drift simhash=7"} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown output missing %q", want)
		}
	}
}

func TestManagerWritesFile(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)

	path, err := m.Generate(sampleReport(), "json")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if filepath.Ext(path) != ".json" {
		t.Errorf("unexpected extension: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("report file not written: %v", err)
	}
	if !json.Valid(data) {
		t.Error("written report is not valid JSON")
	}
}

func TestManagerRejectsUnknownFormat(t *testing.T) {
	m := NewManager(t.TempDir())
	if _, err := m.Generate(sampleReport(), "pdf"); err == nil {
		t.Error("expected error for unknown format")
	}
}
