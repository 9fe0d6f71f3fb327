// Package types defines common data structures shared across vapixprobe components.
package types

import (
	"strings"
	"time"
)

// NoPayload is the sentinel json_file value meaning "send no body".
const NoPayload = "(none)"

// JSONType tags the wire-encoding style a preset's payload file was
// generated with. It is informational only: the encoding is baked into
// the payload file at generation time and never reconstructed at
// dispatch time.
type JSONType string

const (
	JSONNormal JSONType = "normal"
	JSONGoogle JSONType = "google"
	JSONRPC    JSONType = "rpc"
)

// Preset is a named, reusable request template. The JSON field names are
// the persisted catalog contract and must not change.
type Preset struct {
	Name         string   `json:"name"`
	Endpoint     string   `json:"endpoint"`
	JSONFile     string   `json:"json_file"`
	SimpleFormat bool     `json:"simple_format"`
	JSONType     JSONType `json:"json_type"`
}

// IsUnhappy reports whether the preset is an adversarial ("unhappy")
// variant, determined by its payload file living under an unhappy/
// path segment.
func (p Preset) IsUnhappy() bool {
	f := strings.ToLower(strings.ReplaceAll(p.JSONFile, "\\", "/"))
	return strings.Contains(f, "/unhappy/") || strings.HasPrefix(f, "unhappy/")
}

// HasPayload reports whether the preset references a payload file.
func (p Preset) HasPayload() bool {
	return p.JSONFile != "" && p.JSONFile != NoPayload
}

// TestMode filters presets by happy/unhappy classification.
type TestMode string

const (
	ModeAll     TestMode = "all"
	ModeHappy   TestMode = "happy"
	ModeUnhappy TestMode = "unhappy"
)

// Matches reports whether a preset passes the mode filter.
func (m TestMode) Matches(p Preset) bool {
	switch m {
	case ModeHappy:
		return !p.IsUnhappy()
	case ModeUnhappy:
		return p.IsUnhappy()
	default:
		return true
	}
}

// Tag classifies the outcome of one dispatched request.
type Tag string

const (
	// TagOK means the device answered with HTTP 200.
	TagOK Tag = "ok"
	// TagWarn means a response was received with any non-200 status.
	TagWarn Tag = "warn"
	// TagErr means the transport call itself failed (timeout, connection
	// refused, DNS failure, TLS handshake failure).
	TagErr Tag = "err"
)

// Outcome is the transient result of one dispatched request. Only its
// rendered Text is persisted (appended to the request log); the struct
// itself is delivered to the caller and discarded.
type Outcome struct {
	Text       string        // rendered block: URL, payload, status, body or error
	PresetName string        // originating preset, empty for ad-hoc requests
	Tag        Tag           // ok / warn / err
	StatusCode int           // 0 when the transport failed
	Body       []byte        // raw response body, nil on transport failure
	Duration   time.Duration // round-trip time
}
