// Package runlog writes the plain-text request log files. The block
// format is a fixed contract consumed by operators and downstream
// tooling; changes here change the bytes on disk.
package runlog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/vapixprobe/vapixprobe/pkg/types"
)

const filenameMaxLen = 64

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SafeFilename replaces unsafe filename characters with underscore,
// capped at 64 chars.
func SafeFilename(name string) string {
	safe := unsafeFilenameChars.ReplaceAllString(name, "_")
	if len(safe) > filenameMaxLen {
		safe = safe[:filenameMaxLen]
	}
	return safe
}

// BatchName is the log name used for sequenced multi-preset runs.
const BatchName = "MultiPreset_Run"

// Writer appends outcome blocks to a single log file. One Writer exists
// per single request or per batch; writes are best effort and reported
// to the diagnostic log on failure.
type Writer struct {
	path   string
	batch  bool
	logger *slog.Logger
	now    func() time.Time
}

// Options configures a log writer.
type Options struct {
	// Dir is the log directory, created on demand.
	Dir string
	// Name seeds the log filename; unsafe characters are replaced.
	Name string
	// Batch enables the per-preset header written before each block.
	Batch  bool
	Logger *slog.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// New creates a log writer with a timestamped filename:
// log_<name>_<YYYYMMDD_HHMMSS>.log under dir.
func New(opts *Options) *Writer {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	name := opts.Name
	if name == "" {
		name = "request"
	}
	filename := fmt.Sprintf("log_%s_%s.log", SafeFilename(name), now().Format("20060102_150405"))

	return &Writer{
		path:   filepath.Join(opts.Dir, filename),
		batch:  opts.Batch,
		logger: logger,
		now:    now,
	}
}

// Path returns the log file path.
func (w *Writer) Path() string {
	return w.path
}

// Append writes one outcome block. Failures are logged to the
// diagnostic sink; a broken log file never fails the dispatch that
// produced the outcome.
func (w *Writer) Append(o types.Outcome) {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		w.logger.Error("failed to create log directory",
			slog.String("dir", filepath.Dir(w.path)), slog.String("error", err.Error()))
		return
	}

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		w.logger.Error("failed to open log file",
			slog.String("path", w.path), slog.String("error", err.Error()))
		return
	}
	defer f.Close()

	if w.batch {
		fmt.Fprintf(f, "\n--- Preset: %s ---\n", o.PresetName)
	}
	fmt.Fprintf(f, "\n--- %s ---\n", w.now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(f, "Tag: %s\n", o.Tag)
	fmt.Fprintf(f, "%s\n", o.Text)
}
