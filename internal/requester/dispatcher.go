package requester

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/vapixprobe/vapixprobe/internal/payload"
	"github.com/vapixprobe/vapixprobe/internal/runlog"
	"github.com/vapixprobe/vapixprobe/pkg/types"
)

// Job describes one outbound request. The caller validates the IP
// syntax before dispatch; the dispatcher takes it as given.
type Job struct {
	IP           string
	Endpoint     string
	JSONFile     string // relative payload path, or types.NoPayload
	SimpleFormat bool
	Credentials  Credentials
	PresetName   string
	Log          *runlog.Writer // nil: dispatch without a log file
}

// Dispatcher builds and executes requests on pool workers and delivers
// tagged outcomes through a callback. Transport failures become
// tag="err" outcomes; nothing crosses the async boundary as a panic.
type Dispatcher struct {
	transport   Transport
	pool        *WorkerPool
	payloadRoot string
	scheme      string
	logger      *slog.Logger
}

// DispatcherOptions configures a dispatcher.
type DispatcherOptions struct {
	Transport   Transport
	Pool        *WorkerPool
	PayloadRoot string
	// Scheme is http or https; devices commonly expose both, self-signed.
	Scheme string
	Logger *slog.Logger
}

// NewDispatcher creates a dispatcher. A nil transport gets the default
// fasthttp client; a nil pool gets a default worker pool.
func NewDispatcher(opts *DispatcherOptions) (*Dispatcher, error) {
	if opts == nil {
		opts = &DispatcherOptions{}
	}

	transport := opts.Transport
	if transport == nil {
		transport = NewClient(nil)
	}

	pool := opts.Pool
	if pool == nil {
		var err error
		pool, err = NewWorkerPool(nil)
		if err != nil {
			return nil, err
		}
	}

	scheme := opts.Scheme
	if scheme == "" {
		scheme = "http"
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		transport:   transport,
		pool:        pool,
		payloadRoot: opts.PayloadRoot,
		scheme:      scheme,
		logger:      logger,
	}, nil
}

// BuildURL composes the request URL, appending format=simple with the
// correct separator when the endpoint already carries a query string.
func (d *Dispatcher) BuildURL(ip, endpoint string, simpleFormat bool) string {
	url := fmt.Sprintf("%s://%s%s", d.scheme, ip, endpoint)
	if simpleFormat {
		if strings.Contains(url, "?") {
			url += "&format=simple"
		} else {
			url += "?format=simple"
		}
	}
	return url
}

// LoadPayload reads and re-serializes the referenced payload file. A
// missing or corrupt file yields an empty object body so a broken
// fixture never blocks manual testing; the problem is logged.
func (d *Dispatcher) LoadPayload(jsonFile string) []byte {
	empty := []byte("{}")
	if jsonFile == "" || jsonFile == types.NoPayload {
		return empty
	}

	rel := strings.ReplaceAll(strings.TrimSpace(jsonFile), "\\", "/")
	full := filepath.Join(d.payloadRoot, filepath.FromSlash(rel))

	data, err := os.ReadFile(full)
	if err != nil {
		d.logger.Error("failed to load payload file, sending empty body",
			slog.String("file", jsonFile), slog.String("error", err.Error()))
		return empty
	}

	doc, err := payload.Parse(data)
	if err != nil {
		d.logger.Error("payload file is not valid JSON, sending empty body",
			slog.String("file", jsonFile), slog.String("error", err.Error()))
		return empty
	}
	return doc.Encode()
}

// Dispatch submits the job to a pool worker and returns immediately.
// The callback receives exactly one Outcome per dispatch, after the
// log entry (if any) has been written.
func (d *Dispatcher) Dispatch(job Job, callback func(types.Outcome)) error {
	url := d.BuildURL(job.IP, job.Endpoint, job.SimpleFormat)
	body := d.LoadPayload(job.JSONFile)

	return d.pool.Submit(func() {
		outcome := d.execute(url, body, job)
		if job.Log != nil {
			job.Log.Append(outcome)
		}
		if callback != nil {
			callback(outcome)
		}
	})
}

// execute performs the round trip and renders the outcome. The
// password buffer is zeroed as soon as the transport call returns.
func (d *Dispatcher) execute(url string, body []byte, job Job) types.Outcome {
	d.logger.Debug("dispatching request",
		slog.String("url", url),
		slog.String("preset", job.PresetName),
		slog.Int("payload_bytes", len(body)),
	)

	resp, err := d.transport.Post(url, body, &job.Credentials)
	job.Credentials.Zero()

	if err != nil {
		d.logger.Warn("request failed",
			slog.String("url", url),
			slog.String("preset", job.PresetName),
			slog.String("error", err.Error()),
		)
		return types.Outcome{
			Text:       fmt.Sprintf("Request Error: %v", err),
			PresetName: job.PresetName,
			Tag:        types.TagErr,
		}
	}

	tag := types.TagWarn
	if resp.StatusCode == 200 {
		tag = types.TagOK
	}

	d.logger.Info("request finished",
		slog.String("url", url),
		slog.String("preset", job.PresetName),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", resp.Duration),
	)

	return types.Outcome{
		Text:       renderOutcomeText(url, body, resp),
		PresetName: job.PresetName,
		Tag:        tag,
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
		Duration:   resp.Duration,
	}
}

// Wait blocks until every dispatched job has delivered its outcome.
func (d *Dispatcher) Wait() {
	d.pool.Wait()
}

// Shutdown drains in-flight work and releases the pool.
func (d *Dispatcher) Shutdown() {
	d.pool.Shutdown()
}

// renderOutcomeText builds the human-readable outcome block: URL,
// payload, status, and the response body. A JSON body is re-indented,
// and the device's error envelope is summarized when one is present.
func renderOutcomeText(url string, body []byte, resp *Response) string {
	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\n", url)
	fmt.Fprintf(&b, "Payload: %s\n", strings.TrimRight(string(body), "\n"))
	fmt.Fprintf(&b, "Status Code: %d\n", resp.StatusCode)

	if doc, err := payload.Parse(resp.Body); err == nil {
		b.Write(doc.Encode())
	} else {
		b.Write(resp.Body)
	}

	if gjson.ValidBytes(resp.Body) {
		if errMsg := gjson.GetBytes(resp.Body, "error.message"); errMsg.Exists() {
			code := gjson.GetBytes(resp.Body, "error.code")
			fmt.Fprintf(&b, "\nDevice error %s: %s", code.String(), errMsg.String())
		}
	}
	return b.String()
}
