// Package settings persists last-used session values between runs.
package settings

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vapixprobe/vapixprobe/pkg/types"
)

// Settings holds the values restored at startup. Passwords are never
// persisted. Geometry is an opaque blob owned by whatever front end is
// attached; the tool stores it back verbatim.
type Settings struct {
	IP           string          `json:"ip,omitempty"`
	Username     string          `json:"id,omitempty"`
	Endpoint     string          `json:"endpoint,omitempty"`
	JSONFile     string          `json:"json_file,omitempty"`
	SimpleFormat bool            `json:"simple_format,omitempty"`
	TestMode     types.TestMode  `json:"test_mode,omitempty"`
	JSONType     types.JSONType  `json:"json_type,omitempty"`
	Geometry     json.RawMessage `json:"geometry,omitempty"`
}

// Store reads and writes the settings file. Failures in either
// direction are logged and swallowed: stale or missing session state
// must never block the tool.
type Store struct {
	path   string
	logger *slog.Logger
}

// StoreOptions configures the store.
type StoreOptions struct {
	Path   string
	Logger *slog.Logger
}

// NewStore creates a settings store.
func NewStore(opts *StoreOptions) *Store {
	if opts == nil {
		opts = &StoreOptions{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: opts.Path, logger: logger}
}

// Load returns the persisted settings, or zero-value defaults when the
// file is missing or unreadable.
func (s *Store) Load() Settings {
	var out Settings

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("settings file unreadable, using defaults",
				slog.String("path", s.path),
				slog.String("error", err.Error()),
			)
		}
		return out
	}

	if err := json.Unmarshal(data, &out); err != nil {
		s.logger.Warn("settings file corrupt, using defaults",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
		return Settings{}
	}
	return out
}

// Save persists the settings, best effort.
func (s *Store) Save(settings Settings) {
	data, err := encodeSettings(settings)
	if err != nil {
		s.logger.Error("failed to encode settings", slog.String("error", err.Error()))
		return
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.logger.Error("failed to create settings directory",
				slog.String("dir", dir), slog.String("error", err.Error()))
			return
		}
	}

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		s.logger.Error("failed to save settings",
			slog.String("path", s.path), slog.String("error", err.Error()))
	}
}

// encodeSettings marshals the settings with the geometry blob spliced
// in byte for byte: running it through the indenting marshaller would
// rewrite the front end's bytes.
func encodeSettings(settings Settings) ([]byte, error) {
	geometry := settings.Geometry
	settings.Geometry = nil

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return nil, err
	}
	if len(geometry) == 0 {
		return data, nil
	}

	body := bytes.TrimRight(data, "\n")
	body = bytes.TrimSuffix(body, []byte("}"))
	body = bytes.TrimRight(body, "\n ")
	if !bytes.Equal(body, []byte("{")) {
		body = append(body, ',')
	}

	var b bytes.Buffer
	b.Write(body)
	b.WriteString("\n  \"geometry\": ")
	b.Write(geometry)
	b.WriteString("\n}")
	return b.Bytes(), nil
}
