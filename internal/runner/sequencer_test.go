package runner

import (
	"bytes"
	"context"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vapixprobe/vapixprobe/internal/requester"
	"github.com/vapixprobe/vapixprobe/pkg/types"
)

// stubFinder resolves presets from a fixed map.
type stubFinder struct {
	presets map[string]types.Preset
}

func (f *stubFinder) FindByName(name string) (types.Preset, bool) {
	p, ok := f.presets[name]
	return p, ok
}

// stubDispatcher delivers outcomes asynchronously, like the real pool,
// and tracks overlap to prove strict sequencing.
type stubDispatcher struct {
	order     []string
	passwords []string
	tags      map[string]types.Tag
	delay     time.Duration

	active  int32
	overlap bool
	cancel  context.CancelFunc // when set, called on the first dispatch
}

func (d *stubDispatcher) Dispatch(job requester.Job, callback func(types.Outcome)) error {
	if atomic.AddInt32(&d.active, 1) > 1 {
		d.overlap = true
	}
	d.order = append(d.order, job.PresetName)
	d.passwords = append(d.passwords, string(job.Credentials.Password))

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}

	tag := types.TagOK
	if t, ok := d.tags[job.PresetName]; ok {
		tag = t
	}

	go func() {
		if d.delay > 0 {
			time.Sleep(d.delay)
		}
		atomic.AddInt32(&d.active, -1)
		callback(types.Outcome{
			PresetName: job.PresetName,
			Tag:        tag,
			StatusCode: 200,
			Body:       []byte(`{"data":{}}`),
		})
	}()
	return nil
}

func fixturePresets(names ...string) *stubFinder {
	f := &stubFinder{presets: make(map[string]types.Preset)}
	for _, name := range names {
		f.presets[name] = types.Preset{
			Name:     name,
			Endpoint: "/vapix/intercom/GetCallStatus",
			JSONFile: "Normal_Path/GetCallStatus.json",
		}
	}
	return f
}

func TestRunDispatchesStrictlyInOrder(t *testing.T) {
	names := []string{"A", "B", "C", "D"}
	dispatcher := &stubDispatcher{delay: 5 * time.Millisecond}
	seq, err := New(&Options{Dispatcher: dispatcher, Presets: fixturePresets(names...)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := seq.Run(context.Background(), names, Target{IP: "192.168.0.90", Username: "root"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if dispatcher.overlap {
		t.Error("dispatches overlapped; expected one request in flight at a time")
	}
	if len(dispatcher.order) != len(names) {
		t.Fatalf("dispatched %d presets, want %d", len(dispatcher.order), len(names))
	}
	for i, name := range names {
		if dispatcher.order[i] != name {
			t.Errorf("dispatch %d was %q, want %q", i, dispatcher.order[i], name)
		}
	}
	if result.Completed != len(names) {
		t.Errorf("Completed = %d, want %d", result.Completed, len(names))
	}
}

func TestRunSkipsMissingPresetAndContinues(t *testing.T) {
	dispatcher := &stubDispatcher{}
	seq, err := New(&Options{Dispatcher: dispatcher, Presets: fixturePresets("A", "C")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var progress []Progress
	seq.onProgress = func(p Progress) { progress = append(progress, p) }

	result, err := seq.Run(context.Background(), []string{"A", "ghost", "C"}, Target{IP: "10.0.0.5", Username: "root"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Completed != 2 {
		t.Errorf("Completed = %d, want 2", result.Completed)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != "ghost" {
		t.Errorf("Skipped = %v, want [ghost]", result.Skipped)
	}
	if len(dispatcher.order) != 2 || dispatcher.order[1] != "C" {
		t.Errorf("dispatch order = %v, want [A C]", dispatcher.order)
	}
	if len(progress) != 3 {
		t.Fatalf("got %d progress reports, want 3", len(progress))
	}
	if !progress[1].Skipped || progress[1].Note != "preset not found" {
		t.Errorf("ghost progress = %+v, want skipped with note", progress[1])
	}
}

func TestRunStopsIssuingAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	dispatcher := &stubDispatcher{delay: 5 * time.Millisecond, cancel: cancel}
	seq, err := New(&Options{Dispatcher: dispatcher, Presets: fixturePresets("A", "B", "C")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := seq.Run(ctx, []string{"A", "B", "C"}, Target{IP: "10.0.0.5", Username: "root"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !result.Cancelled {
		t.Error("result not marked cancelled")
	}
	// The in-flight request is drained, nothing new is issued.
	if len(dispatcher.order) != 1 {
		t.Errorf("dispatched %d presets after cancel, want 1", len(dispatcher.order))
	}
	if result.Completed != 1 {
		t.Errorf("Completed = %d, want 1", result.Completed)
	}
}

func TestRunCopiesPasswordPerDispatchAndZeroesMaster(t *testing.T) {
	names := []string{"A", "B"}
	dispatcher := &stubDispatcher{}
	seq, err := New(&Options{Dispatcher: dispatcher, Presets: fixturePresets(names...)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	master := []byte("pass")
	if _, err := seq.Run(context.Background(), names, Target{IP: "10.0.0.5", Username: "root", Password: master}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for i, pw := range dispatcher.passwords {
		if pw != "pass" {
			t.Errorf("dispatch %d saw password %q, want %q", i, pw, "pass")
		}
	}
	if !bytes.Equal(master, []byte{0, 0, 0, 0}) {
		t.Errorf("master password buffer not zeroed: %v", master)
	}
}

func TestRunTalliesTags(t *testing.T) {
	dispatcher := &stubDispatcher{tags: map[string]types.Tag{
		"B": types.TagWarn,
		"C": types.TagErr,
	}}
	seq, err := New(&Options{Dispatcher: dispatcher, Presets: fixturePresets("A", "B", "C", "D")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := seq.Run(context.Background(), []string{"A", "B", "C", "D"}, Target{IP: "10.0.0.5", Username: "root"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := map[types.Tag]int{types.TagOK: 2, types.TagWarn: 1, types.TagErr: 1}
	for tag, n := range want {
		if result.Counts[tag] != n {
			t.Errorf("Counts[%s] = %d, want %d", tag, result.Counts[tag], n)
		}
	}
}

func TestParsePlan(t *testing.T) {
	data := []byte(`
name: nightly-sip
device:
  ip: 192.168.0.90
  username: root
interval: 250ms
presets:
  - GetSIPAccountStatus_Normal_Path
  - GetCallStatus_Google
`)
	plan, err := ParsePlan(data)
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}
	if plan.Name != "nightly-sip" {
		t.Errorf("Name = %q", plan.Name)
	}
	if len(plan.Presets) != 2 {
		t.Errorf("got %d presets, want 2", len(plan.Presets))
	}
	d, err := plan.PauseInterval()
	if err != nil {
		t.Fatalf("PauseInterval: %v", err)
	}
	if d != 250*time.Millisecond {
		t.Errorf("interval = %v, want 250ms", d)
	}
}

func TestParsePlanDefaultsName(t *testing.T) {
	data := []byte(`
device:
  ip: 192.168.0.90
  username: root
presets: [A]
`)
	plan, err := ParsePlan(data)
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}
	if plan.Name != "MultiPreset_Run" {
		t.Errorf("Name = %q, want MultiPreset_Run", plan.Name)
	}
}

func TestParsePlanRejectsUnknownField(t *testing.T) {
	data := []byte(`
device:
  ip: 192.168.0.90
  username: root
presets: [A]
pasword: oops
`)
	if _, err := ParsePlan(data); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestParsePlanValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"no presets", "device:\n  ip: 10.0.0.5\n  username: root\npresets: []\n"},
		{"no ip", "device:\n  username: root\npresets: [A]\n"},
		{"no username", "device:\n  ip: 10.0.0.5\npresets: [A]\n"},
		{"bad interval", "device:\n  ip: 10.0.0.5\n  username: root\npresets: [A]\ninterval: soon\n"},
		{"bad mode", "device:\n  ip: 10.0.0.5\n  username: root\npresets: [A]\ntest_mode: sad\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParsePlan([]byte(tc.yaml)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestFilterNamesNarrowsByMode(t *testing.T) {
	finder := &stubFinder{presets: map[string]types.Preset{
		"Happy_A": {Name: "Happy_A", JSONFile: "Normal_Path/GetCallStatus.json"},
		"Fuzz_A":  {Name: "Fuzz_A", JSONFile: "unhappy/fuzz/GetCallStatus.json"},
	}}

	// Missing_A resolves to nothing; the filter keeps it so the
	// sequencer can report the skip.
	names := []string{"Happy_A", "Fuzz_A", "Missing_A"}

	got := FilterNames(finder, names, types.ModeHappy)
	want := []string{"Happy_A", "Missing_A"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("happy filter = %v, want %v", got, want)
	}

	got = FilterNames(finder, names, types.ModeUnhappy)
	want = []string{"Fuzz_A", "Missing_A"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("unhappy filter = %v, want %v", got, want)
	}

	if got := FilterNames(finder, names, types.ModeAll); !reflect.DeepEqual(got, names) {
		t.Errorf("all filter = %v, want the full list", got)
	}
	if got := FilterNames(finder, names, ""); !reflect.DeepEqual(got, names) {
		t.Errorf("empty mode = %v, want the full list", got)
	}
}
