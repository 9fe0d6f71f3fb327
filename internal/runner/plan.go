package runner

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vapixprobe/vapixprobe/pkg/types"
)

// Plan is a YAML-defined batch: an ordered list of preset names plus
// run settings. Field names are the on-disk contract.
type Plan struct {
	Name     string   `yaml:"name"`
	Device   Device   `yaml:"device"`
	Presets  []string `yaml:"presets"`
	Interval string   `yaml:"interval,omitempty"`
	// TestMode narrows the batch to happy or unhappy presets; empty
	// means run every listed preset.
	TestMode string `yaml:"test_mode,omitempty"`
}

// Device names the target of a plan. The password is never stored in
// the plan file; it is prompted or passed at run time.
type Device struct {
	IP       string `yaml:"ip"`
	Username string `yaml:"username"`
}

// PauseInterval parses the plan's pacing interval; zero when unset.
func (p *Plan) PauseInterval() (time.Duration, error) {
	if p.Interval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(p.Interval)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: %w", p.Interval, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid interval %q: must not be negative", p.Interval)
	}
	return d, nil
}

// Validate checks plan invariants after parsing.
func (p *Plan) Validate() error {
	if p.Device.IP == "" {
		return fmt.Errorf("plan: device.ip is required")
	}
	if p.Device.Username == "" {
		return fmt.Errorf("plan: device.username is required")
	}
	if len(p.Presets) == 0 {
		return fmt.Errorf("plan: at least one preset is required")
	}
	for i, name := range p.Presets {
		if name == "" {
			return fmt.Errorf("plan: preset %d has an empty name", i)
		}
	}
	switch p.TestMode {
	case "", "all", "happy", "unhappy":
	default:
		return fmt.Errorf("plan: unknown test_mode %q", p.TestMode)
	}
	if _, err := p.PauseInterval(); err != nil {
		return fmt.Errorf("plan: %w", err)
	}
	return nil
}

// FilterNames narrows an explicit preset list to the names matching
// the mode. Names the finder cannot resolve are kept so the sequencer
// still reports them as skipped.
func FilterNames(f Finder, names []string, mode types.TestMode) []string {
	if mode == "" || mode == types.ModeAll {
		return names
	}
	var out []string
	for _, name := range names {
		p, ok := f.FindByName(name)
		if !ok || mode.Matches(p) {
			out = append(out, name)
		}
	}
	return out
}

// ParsePlan parses a plan from YAML bytes. Unknown fields are
// rejected so a typo in a plan file fails loudly instead of being
// silently ignored.
func ParsePlan(data []byte) (*Plan, error) {
	var plan Plan

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan YAML: %w", err)
	}

	if plan.Name == "" {
		plan.Name = "MultiPreset_Run"
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// LoadPlan reads and parses a plan file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	return ParsePlan(data)
}
