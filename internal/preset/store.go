// Package preset provides the durable preset catalog store.
package preset

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vapixprobe/vapixprobe/pkg/types"
)

// Store is an ordered, name-keyed catalog of presets backed by a single
// JSON file. Mutations persist synchronously; load and save failures are
// reported to the diagnostic log and never crash the caller.
type Store struct {
	path    string
	logger  *slog.Logger
	mu      sync.RWMutex
	presets []types.Preset
}

// StoreOptions configures the store.
type StoreOptions struct {
	Path   string
	Logger *slog.Logger
}

// NewStore creates a store and loads the backing file. A missing or
// corrupt file yields an empty catalog.
func NewStore(opts *StoreOptions) *Store {
	if opts == nil {
		opts = &StoreOptions{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		path:   opts.Path,
		logger: logger,
	}
	s.Load()
	return s
}

// Load reads the backing file into the catalog. Absent or unparseable
// content resets to an empty catalog without surfacing the failure.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.presets = nil

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("preset catalog unreadable, starting empty",
				slog.String("path", s.path),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	var presets []types.Preset
	if err := json.Unmarshal(data, &presets); err != nil {
		s.logger.Warn("preset catalog corrupt, starting empty",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
		return
	}
	s.presets = presets
}

// Save persists the catalog. Failures are logged, not returned: a full
// disk must not take down the tool mid-session.
func (s *Store) Save() {
	s.mu.RLock()
	presets := s.presets
	if presets == nil {
		presets = []types.Preset{}
	}
	data, err := json.MarshalIndent(presets, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		s.logger.Error("failed to encode preset catalog", slog.String("error", err.Error()))
		return
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.logger.Error("failed to create catalog directory",
				slog.String("dir", dir), slog.String("error", err.Error()))
			return
		}
	}

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		s.logger.Error("failed to save preset catalog",
			slog.String("path", s.path), slog.String("error", err.Error()))
	}
}

// Upsert adds the preset, replacing any existing record with the same
// name (the replaced entry moves to the end of the catalog). A preset
// with an empty name is ignored. The catalog is persisted immediately.
func (s *Store) Upsert(p types.Preset) {
	if p.Name == "" {
		return
	}

	s.mu.Lock()
	for i, existing := range s.presets {
		if existing.Name == p.Name {
			s.presets = append(s.presets[:i], s.presets[i+1:]...)
			break
		}
	}
	s.presets = append(s.presets, p)
	s.mu.Unlock()

	s.Save()
}

// FindByName returns the preset with the given name.
func (s *Store) FindByName(name string) (types.Preset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.presets {
		if p.Name == name {
			return p, true
		}
	}
	return types.Preset{}, false
}

// Names returns all preset names in catalog order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.presets))
	for i, p := range s.presets {
		names[i] = p.Name
	}
	return names
}

// All returns a copy of the catalog in order.
func (s *Store) All() []types.Preset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Preset, len(s.presets))
	copy(out, s.presets)
	return out
}

// Filter returns the presets matching the mode and a case-insensitive
// name substring search. Presets without a payload file reference are
// excluded, mirroring the catalog filter of the operator UI.
func (s *Store) Filter(mode types.TestMode, search string) []types.Preset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Preset
	for _, p := range s.presets {
		if p.JSONFile == "" {
			continue
		}
		if !mode.Matches(p) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(search)) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Count returns the number of presets in the catalog.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.presets)
}
