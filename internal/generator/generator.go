package generator

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vapixprobe/vapixprobe/internal/payload"
	"github.com/vapixprobe/vapixprobe/pkg/types"
)

// Wire-encoding constants baked into the generated payload files.
const (
	rpcID         = "helmut"
	googleContext = "test12345"
	apiVersion    = "1.5"
)

// encoding pairs a preset name suffix with its payload subfolder.
type encoding struct {
	Suffix    string
	Subfolder string
}

// encodings lists the five wire encodings in generation order.
var encodings = []encoding{
	{"Normal_Path", "normal_path"},
	{"Normal_Action", "normal_action"},
	{"Normal_Body", "normal_body"},
	{"Google", "google"},
	{"RPC", "rpc"},
}

// Summary counts generated presets per test category.
type Summary struct {
	Normal    int
	NoData    int
	Invalid   int
	WrongType int
	Fuzz      int
}

// Total returns the grand total across all categories.
func (s Summary) Total() int {
	return s.Normal + s.NoData + s.Invalid + s.WrongType + s.Fuzz
}

// Options configures a generator run.
type Options struct {
	// PayloadRoot is the directory the fixture tree is written under.
	PayloadRoot string
	// CatalogFile is the aggregate preset catalog JSON file.
	CatalogFile string
	Catalog     *Catalog
	Logger      *slog.Logger
}

// Generator writes the payload fixture tree and the preset catalog.
type Generator struct {
	root    string
	catFile string
	catalog *Catalog
	logger  *slog.Logger
}

// New creates a generator. A nil catalog falls back to the built-in one.
func New(opts *Options) *Generator {
	if opts == nil {
		opts = &Options{}
	}
	catalog := opts.Catalog
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Generator{
		root:    opts.PayloadRoot,
		catFile: opts.CatalogFile,
		catalog: catalog,
		logger:  logger,
	}
}

// Run wipes and regenerates the entire fixture tree plus the aggregate
// preset catalog file. Every run is a full overwrite, never a merge.
func (g *Generator) Run() (Summary, error) {
	var summary Summary

	if err := os.RemoveAll(g.root); err != nil {
		return summary, fmt.Errorf("failed to clear payload root: %w", err)
	}

	for _, sec := range g.catalog.Sections() {
		for _, sub := range encodings {
			if err := os.MkdirAll(filepath.Join(g.root, string(sec.Section), sub.Subfolder), 0o755); err != nil {
				return summary, fmt.Errorf("failed to create fixture folder: %w", err)
			}
		}
		if err := os.MkdirAll(filepath.Join(g.root, string(sec.Section), "unhappy"), 0o755); err != nil {
			return summary, fmt.Errorf("failed to create unhappy folder: %w", err)
		}
	}

	var presets []types.Preset

	for _, sec := range g.catalog.Sections() {
		normal, err := g.normalPresets(sec.Endpoints, sec.Section, &summary)
		if err != nil {
			return summary, err
		}
		presets = append(presets, normal...)
	}

	for _, sec := range g.catalog.Sections() {
		unhappy, err := g.unhappyPresets(sec.Endpoints, sec.Section, &summary)
		if err != nil {
			return summary, err
		}
		presets = append(presets, unhappy...)
	}

	if err := g.writeCatalog(presets); err != nil {
		return summary, err
	}

	g.logger.Info("preset generation complete",
		slog.Int("presets", len(presets)),
		slog.Int("total_tests", summary.Total()),
	)
	return summary, nil
}

// methodName returns the final path segment of an endpoint.
func methodName(endpoint string) string {
	parts := strings.Split(endpoint, "/")
	return parts[len(parts)-1]
}

// baseURL strips the final path segment of an endpoint.
func baseURL(endpoint string) string {
	parts := strings.Split(endpoint, "/")
	return strings.Join(parts[:len(parts)-1], "/")
}

// normalPresets generates one payload file and preset per endpoint and
// encoding. Endpoints without a reference payload get an empty object.
func (g *Generator) normalPresets(endpoints []string, section Section, summary *Summary) ([]types.Preset, error) {
	var presets []types.Preset

	for _, endpoint := range endpoints {
		method := methodName(endpoint)
		params, ok := g.catalog.Payloads[method]
		if !ok {
			params = payload.Object()
		}

		for _, enc := range encodings {
			fileName := fmt.Sprintf("%s_%s.json", method, enc.Suffix)
			relPath := path(string(section), enc.Subfolder, fileName)

			doc, endpointURL := encodePayload(enc, endpoint, method, params)
			if err := g.writePayload(relPath, doc); err != nil {
				return nil, err
			}
			summary.Normal++

			jsonType := types.JSONNormal
			switch enc.Suffix {
			case "Google":
				jsonType = types.JSONGoogle
			case "RPC":
				jsonType = types.JSONRPC
			}

			presets = append(presets, types.Preset{
				Name:     fmt.Sprintf("%s_%s", method, enc.Suffix),
				Endpoint: endpointURL,
				JSONFile: relPath,
				JSONType: jsonType,
			})
		}
	}
	return presets, nil
}

// encodePayload applies the wire-encoding transform and derives the
// endpoint URL the preset will target.
func encodePayload(enc encoding, endpoint, method string, params payload.Value) (payload.Value, string) {
	switch enc.Suffix {
	case "Normal_Action":
		return params, fmt.Sprintf("%s?action=%s", endpoint, method)
	case "Normal_Body":
		return payload.Object(payload.M(method, params)), baseURL(endpoint)
	case "Google":
		doc := payload.Object(
			payload.M("apiVersion", payload.String(apiVersion)),
			payload.M("method", payload.String(method)),
			payload.M("params", params),
			payload.M("context", payload.String(googleContext)),
		)
		return doc, baseURL(endpoint)
	case "RPC":
		doc := payload.Object(
			payload.M("jsonrpc", payload.String("2.0")),
			payload.M("method", payload.String(method)),
			payload.M("params", params),
			payload.M("id", payload.String(rpcID)),
		)
		return doc, baseURL(endpoint)
	default: // Normal_Path
		return params, endpoint
	}
}

// unhappyFile maps a strategy to its payload file name fragment and the
// summary counter it increments.
func unhappyFile(strat payload.Strategy) string {
	switch strat {
	case payload.StrategyNoData:
		return "unhappy_no_data"
	case payload.StrategyInvalid:
		return "unhappy_invalid_data"
	case payload.StrategyWrongType:
		return "unhappy_wrong_type"
	default:
		return "unhappy_fuzz"
	}
}

// unhappyPresets generates the four adversarial variants per endpoint.
// Endpoints with no reference payload are skipped: mutating an empty
// payload would produce no meaningful negative test.
func (g *Generator) unhappyPresets(endpoints []string, section Section, summary *Summary) ([]types.Preset, error) {
	var presets []types.Preset

	for _, endpoint := range endpoints {
		method := methodName(endpoint)
		params, ok := g.catalog.Payloads[method]
		if !ok || len(params.Members) == 0 {
			continue
		}

		for _, strat := range payload.Strategies {
			fragment := unhappyFile(strat)
			fileName := fmt.Sprintf("%s_%s.json", method, fragment)
			relPath := path(string(section), "unhappy", fileName)

			if err := g.writePayload(relPath, strat.Apply(params)); err != nil {
				return nil, err
			}

			switch strat {
			case payload.StrategyNoData:
				summary.NoData++
			case payload.StrategyInvalid:
				summary.Invalid++
			case payload.StrategyWrongType:
				summary.WrongType++
			default:
				summary.Fuzz++
			}

			presets = append(presets, types.Preset{
				Name:     fmt.Sprintf("%s_%s", method, fragment),
				Endpoint: endpoint,
				JSONFile: relPath,
				JSONType: types.JSONNormal,
			})
		}
	}
	return presets, nil
}

// path joins payload file path segments with forward slashes regardless
// of host conventions; json_file values are a cross-platform contract.
func path(segments ...string) string {
	return strings.Join(segments, "/")
}

func (g *Generator) writePayload(relPath string, doc payload.Value) error {
	full := filepath.Join(g.root, filepath.FromSlash(relPath))
	if err := os.WriteFile(full, doc.Encode(), 0o644); err != nil {
		return fmt.Errorf("failed to write payload %s: %w", relPath, err)
	}
	return nil
}

// writeCatalog serializes the aggregate preset catalog the same way the
// preset store persists it, so the generated file loads unchanged.
func (g *Generator) writeCatalog(presets []types.Preset) error {
	if presets == nil {
		presets = []types.Preset{}
	}
	data, err := json.MarshalIndent(presets, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode preset catalog: %w", err)
	}
	if err := os.WriteFile(g.catFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write preset catalog: %w", err)
	}
	return nil
}
