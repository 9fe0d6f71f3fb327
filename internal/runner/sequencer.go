// Package runner sequences batch executions of stored presets against a
// single device, one request at a time.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/vapixprobe/vapixprobe/internal/analyzer"
	"github.com/vapixprobe/vapixprobe/internal/requester"
	"github.com/vapixprobe/vapixprobe/internal/runlog"
	"github.com/vapixprobe/vapixprobe/pkg/types"
)

// Dispatcher issues one request asynchronously and delivers exactly one
// outcome through the callback.
type Dispatcher interface {
	Dispatch(job requester.Job, callback func(types.Outcome)) error
}

// Finder resolves preset names against the store.
type Finder interface {
	FindByName(name string) (types.Preset, bool)
}

// Target identifies the device a batch runs against. Password is the
// master credential buffer; the sequencer copies it per request and
// zeroes the master when the batch ends.
type Target struct {
	IP       string
	Username string
	Password []byte
}

// Progress reports one completed (or skipped) step of a batch.
type Progress struct {
	Completed  int
	Total      int
	PresetName string
	Skipped    bool
	Note       string
	Outcome    *types.Outcome // nil when skipped
}

// DriftRecord annotates one outcome with its distance from the batch
// baseline response.
type DriftRecord struct {
	PresetName string
	Drift      analyzer.Drift
}

// Result summarizes a finished batch.
type Result struct {
	Total     int
	Completed int
	Skipped   []string
	Counts    map[types.Tag]int
	Drifts    []DriftRecord
	Cancelled bool
	Duration  time.Duration
}

// Options configures a Sequencer.
type Options struct {
	Dispatcher Dispatcher
	Presets    Finder
	// Interval paces consecutive dispatches; zero disables pacing.
	Interval time.Duration
	// Analyzer, when set, baselines the first ok response and computes
	// drift for every later ok response in the batch.
	Analyzer   *analyzer.Analyzer
	Log        *runlog.Writer // nil: run without a log file
	OnProgress func(Progress)
	Logger     *slog.Logger
}

// Sequencer runs presets strictly one at a time: the next request is
// not dispatched until the previous outcome has been delivered.
type Sequencer struct {
	dispatcher Dispatcher
	presets    Finder
	limiter    *rate.Limiter
	anlz       *analyzer.Analyzer
	log        *runlog.Writer
	onProgress func(Progress)
	logger     *slog.Logger
}

// New creates a sequencer. Dispatcher and Presets are required.
func New(opts *Options) (*Sequencer, error) {
	if opts == nil || opts.Dispatcher == nil {
		return nil, fmt.Errorf("runner: dispatcher is required")
	}
	if opts.Presets == nil {
		return nil, fmt.Errorf("runner: preset finder is required")
	}

	var limiter *rate.Limiter
	if opts.Interval > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.Interval), 1)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Sequencer{
		dispatcher: opts.Dispatcher,
		presets:    opts.Presets,
		limiter:    limiter,
		anlz:       opts.Analyzer,
		log:        opts.Log,
		onProgress: opts.OnProgress,
		logger:     logger,
	}, nil
}

// Run executes the named presets in order against the target. A name
// that resolves to no stored preset is skipped with a note and the
// sequence continues. Cancelling the context stops new dispatches; the
// in-flight request, if any, is drained before Run returns. The
// target's password buffer is zeroed before Run returns.
func (s *Sequencer) Run(ctx context.Context, names []string, target Target) (*Result, error) {
	defer zero(target.Password)

	result := &Result{
		Total:  len(names),
		Counts: make(map[types.Tag]int),
	}
	start := time.Now()

	for i, name := range names {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}

		p, ok := s.presets.FindByName(name)
		if !ok {
			s.logger.Warn("preset not found, skipping", slog.String("preset", name))
			result.Skipped = append(result.Skipped, name)
			s.report(Progress{
				Completed:  i + 1,
				Total:      len(names),
				PresetName: name,
				Skipped:    true,
				Note:       "preset not found",
			})
			continue
		}

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				result.Cancelled = true
				break
			}
		}

		outcome, err := s.dispatchOne(p, target)
		if err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("dispatch %q: %w", name, err)
		}

		result.Completed++
		result.Counts[outcome.Tag]++
		s.observeDrift(p.Name, outcome, result)

		s.report(Progress{
			Completed:  i + 1,
			Total:      len(names),
			PresetName: name,
			Outcome:    &outcome,
		})
	}

	result.Duration = time.Since(start)
	s.logger.Info("batch finished",
		slog.Int("total", result.Total),
		slog.Int("completed", result.Completed),
		slog.Int("skipped", len(result.Skipped)),
		slog.Bool("cancelled", result.Cancelled),
		slog.Duration("duration", result.Duration),
	)
	return result, nil
}

// dispatchOne issues a single preset and blocks until its outcome
// arrives. The dispatcher zeroes the job's password copy; the master
// buffer in target stays intact for the rest of the batch.
func (s *Sequencer) dispatchOne(p types.Preset, target Target) (types.Outcome, error) {
	job := requester.Job{
		IP:           target.IP,
		Endpoint:     p.Endpoint,
		JSONFile:     p.JSONFile,
		SimpleFormat: p.SimpleFormat,
		Credentials: requester.Credentials{
			Username: target.Username,
			Password: clone(target.Password),
		},
		PresetName: p.Name,
		Log:        s.log,
	}

	done := make(chan types.Outcome, 1)
	if err := s.dispatcher.Dispatch(job, func(o types.Outcome) {
		done <- o
	}); err != nil {
		return types.Outcome{}, err
	}

	// The transport bounds every request with its own timeout, so this
	// receive cannot block forever.
	return <-done, nil
}

// observeDrift baselines the first ok response and records the drift
// of every later ok response.
func (s *Sequencer) observeDrift(name string, o types.Outcome, result *Result) {
	if s.anlz == nil || o.Tag != types.TagOK {
		return
	}
	if !s.anlz.HasBaseline() {
		s.anlz.SetBaseline(o.Body)
		return
	}
	result.Drifts = append(result.Drifts, DriftRecord{
		PresetName: name,
		Drift:      s.anlz.Compare(o.Body),
	})
}

func (s *Sequencer) report(p Progress) {
	if s.onProgress != nil {
		s.onProgress(p)
	}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
