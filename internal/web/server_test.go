package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vapixprobe/vapixprobe/internal/requester"
	"github.com/vapixprobe/vapixprobe/internal/runner"
	"github.com/vapixprobe/vapixprobe/pkg/types"
)

type stubLister struct {
	presets []types.Preset
}

func (l *stubLister) Filter(mode types.TestMode, search string) []types.Preset {
	var out []types.Preset
	for _, p := range l.presets {
		if mode.Matches(p) {
			out = append(out, p)
		}
	}
	return out
}

func testServer() *Server {
	return NewServer(&stubLister{presets: []types.Preset{
		{Name: "GetCallStatus_Normal_Path", Endpoint: "/vapix/intercom/GetCallStatus", JSONFile: "Normal_Path/GetCallStatus.json"},
		{Name: "GetCallStatus_unhappy_fuzz", Endpoint: "/vapix/intercom/GetCallStatus", JSONFile: "unhappy/fuzz/GetCallStatus.json"},
	}})
}

func getJSON(t *testing.T, s *Server, path string, out interface{}) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("request %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("GET %s returned %d", path, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		t.Fatalf("GET %s returned invalid JSON: %v", path, err)
	}
}

func TestStatusEndpoint(t *testing.T) {
	s := testServer()
	s.StartBatch("MultiPreset_Run", "192.168.0.90", 4)

	var status BatchStatus
	getJSON(t, s, "/api/status", &status)

	if !status.Running {
		t.Error("status should be running")
	}
	if status.BatchName != "MultiPreset_Run" || status.TargetIP != "192.168.0.90" {
		t.Errorf("status = %+v", status)
	}
	if status.Total != 4 {
		t.Errorf("Total = %d, want 4", status.Total)
	}
}

func TestOutcomesEndpointRecordsProgress(t *testing.T) {
	s := testServer()
	s.StartBatch("batch", "10.0.0.5", 2)

	s.RecordProgress(runner.Progress{
		Completed:  1,
		Total:      2,
		PresetName: "GetCallStatus_Normal_Path",
		Outcome:    &types.Outcome{Tag: types.TagOK, StatusCode: 200, Duration: 90 * time.Millisecond},
	})
	s.RecordProgress(runner.Progress{
		Completed: 2, Total: 2, PresetName: "ghost", Skipped: true, Note: "preset not found",
	})

	var outcomes []OutcomeLog
	getJSON(t, s, "/api/outcomes", &outcomes)

	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(outcomes))
	}
	if outcomes[0].Tag != types.TagOK || outcomes[0].Duration != 90 {
		t.Errorf("first outcome = %+v", outcomes[0])
	}
	if !outcomes[1].Skipped || outcomes[1].Note != "preset not found" {
		t.Errorf("second outcome = %+v", outcomes[1])
	}

	var status BatchStatus
	getJSON(t, s, "/api/status", &status)
	if status.OKCount != 1 || status.Skipped != 1 {
		t.Errorf("status counts = %+v", status)
	}
}

func TestPresetsEndpointFiltersByMode(t *testing.T) {
	s := testServer()

	var all []types.Preset
	getJSON(t, s, "/api/presets", &all)
	if len(all) != 2 {
		t.Errorf("got %d presets, want 2", len(all))
	}

	var unhappy []types.Preset
	getJSON(t, s, "/api/presets?mode=unhappy", &unhappy)
	if len(unhappy) != 1 || unhappy[0].Name != "GetCallStatus_unhappy_fuzz" {
		t.Errorf("unhappy presets = %+v", unhappy)
	}
}

// seqFinder and seqDispatcher drive a real sequencer against the
// server, the way the run command wires them together.
type seqFinder struct {
	presets map[string]types.Preset
}

func (f *seqFinder) FindByName(name string) (types.Preset, bool) {
	p, ok := f.presets[name]
	return p, ok
}

type seqDispatcher struct{}

func (d *seqDispatcher) Dispatch(job requester.Job, callback func(types.Outcome)) error {
	go callback(types.Outcome{
		PresetName: job.PresetName,
		Tag:        types.TagOK,
		StatusCode: 200,
		Duration:   10 * time.Millisecond,
	})
	return nil
}

func TestServerFeedsFromSequencer(t *testing.T) {
	s := testServer()
	finder := &seqFinder{presets: map[string]types.Preset{
		"A": {Name: "A", Endpoint: "/vapix/intercom/GetCallStatus"},
		"B": {Name: "B", Endpoint: "/vapix/intercom/GetContacts"},
	}}

	seq, err := runner.New(&runner.Options{
		Dispatcher: &seqDispatcher{},
		Presets:    finder,
		OnProgress: s.RecordProgress,
	})
	if err != nil {
		t.Fatalf("runner.New: %v", err)
	}

	s.StartBatch("MultiPreset_Run", "192.168.0.90", 3)
	result, err := seq.Run(context.Background(), []string{"A", "ghost", "B"}, runner.Target{
		IP: "192.168.0.90", Username: "root",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	s.FinishBatch(result)

	var outcomes []OutcomeLog
	getJSON(t, s, "/api/outcomes", &outcomes)
	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(outcomes))
	}
	if outcomes[0].Preset != "A" || outcomes[2].Preset != "B" {
		t.Errorf("outcome order = %q, %q, %q", outcomes[0].Preset, outcomes[1].Preset, outcomes[2].Preset)
	}
	if !outcomes[1].Skipped {
		t.Error("ghost outcome not marked skipped")
	}

	var status BatchStatus
	getJSON(t, s, "/api/status", &status)
	if status.Running {
		t.Error("status still running after FinishBatch")
	}
	if status.OKCount != 2 || status.Skipped != 1 {
		t.Errorf("status counts = %+v, want 2 ok and 1 skipped", status)
	}
}

func TestFinishBatchStopsRunning(t *testing.T) {
	s := testServer()
	s.StartBatch("batch", "10.0.0.5", 1)
	s.FinishBatch(&runner.Result{Total: 1, Completed: 0, Cancelled: true, Duration: 2 * time.Second})

	var status BatchStatus
	getJSON(t, s, "/api/status", &status)
	if status.Running {
		t.Error("status should not be running after FinishBatch")
	}
	if !status.Cancelled {
		t.Error("status should be cancelled")
	}
}
