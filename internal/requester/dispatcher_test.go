package requester

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vapixprobe/vapixprobe/pkg/types"
)

// stubTransport records calls and answers from a canned script.
type stubTransport struct {
	status       int
	body         []byte
	err          error
	calls        int
	lastURL      string
	lastBody     []byte
	passwordSeen []byte
}

func (s *stubTransport) Post(url string, body []byte, creds *Credentials) (*Response, error) {
	s.calls++
	s.lastURL = url
	s.lastBody = body
	// Snapshot the password as the transport saw it, before zeroing.
	s.passwordSeen = append([]byte(nil), creds.Password...)

	if s.err != nil {
		return nil, s.err
	}
	return &Response{StatusCode: s.status, Body: s.body, Duration: 5 * time.Millisecond}, nil
}

func newTestDispatcher(t *testing.T, transport Transport, payloadRoot string) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(&DispatcherOptions{
		Transport:   transport,
		PayloadRoot: payloadRoot,
	})
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func dispatchAndWait(t *testing.T, d *Dispatcher, job Job) types.Outcome {
	t.Helper()
	done := make(chan types.Outcome, 1)
	if err := d.Dispatch(job, func(o types.Outcome) { done <- o }); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	select {
	case o := <-done:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("dispatch never delivered an outcome")
		return types.Outcome{}
	}
}

func TestTagMapping(t *testing.T) {
	cases := []struct {
		name    string
		stub    *stubTransport
		wantTag types.Tag
	}{
		{"200 is ok", &stubTransport{status: 200, body: []byte(`{"data":{}}`)}, types.TagOK},
		{"500 is warn", &stubTransport{status: 500, body: []byte("server error")}, types.TagWarn},
		{"401 is warn", &stubTransport{status: 401}, types.TagWarn},
		{"transport failure is err", &stubTransport{err: errors.New("connection refused")}, types.TagErr},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d := newTestDispatcher(t, c.stub, t.TempDir())
			o := dispatchAndWait(t, d, Job{
				IP:       "10.0.0.1",
				Endpoint: "/vapix/call/Call",
				JSONFile: types.NoPayload,
			})
			if o.Tag != c.wantTag {
				t.Errorf("tag: got %q, want %q", o.Tag, c.wantTag)
			}
		})
	}
}

func TestErrOutcomeTextDescribesTransportFailure(t *testing.T) {
	d := newTestDispatcher(t, &stubTransport{err: errors.New("connection refused")}, t.TempDir())
	o := dispatchAndWait(t, d, Job{IP: "10.0.0.1", Endpoint: "/vapix/call/Call", JSONFile: types.NoPayload})

	if !strings.Contains(o.Text, "connection refused") {
		t.Errorf("outcome text does not describe the failure: %q", o.Text)
	}
	if strings.Contains(o.Text, "Status Code") {
		t.Errorf("transport failure must not render a status line: %q", o.Text)
	}
}

func TestSimpleFormatQueryComposition(t *testing.T) {
	d := newTestDispatcher(t, &stubTransport{status: 200}, t.TempDir())

	url := d.BuildURL("10.0.0.1", "/api/call", true)
	if !strings.HasSuffix(url, "?format=simple") {
		t.Errorf("bare endpoint: got %q", url)
	}

	url = d.BuildURL("10.0.0.1", "/api/call?action=Foo", true)
	if !strings.HasSuffix(url, "&format=simple") {
		t.Errorf("endpoint with query: got %q", url)
	}

	url = d.BuildURL("10.0.0.1", "/api/call", false)
	if strings.Contains(url, "format=simple") {
		t.Errorf("flag off: got %q", url)
	}
}

func TestMissingPayloadFileSendsEmptyObject(t *testing.T) {
	stub := &stubTransport{status: 200}
	d := newTestDispatcher(t, stub, t.TempDir())

	dispatchAndWait(t, d, Job{
		IP:       "10.0.0.1",
		Endpoint: "/vapix/call/Call",
		JSONFile: "set/normal_path/DoesNotExist.json",
	})

	if string(stub.lastBody) != "{}" {
		t.Errorf("body: got %q, want empty object", stub.lastBody)
	}
}

func TestPayloadFileIsLoadedAndSent(t *testing.T) {
	root := t.TempDir()
	rel := filepath.Join("set", "normal_path", "Call_Normal_Path.json")
	if err := os.MkdirAll(filepath.Join(root, "set", "normal_path"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, rel), []byte(`{"To": "sip:10.27.35.8:5060"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	stub := &stubTransport{status: 200}
	d := newTestDispatcher(t, stub, root)

	o := dispatchAndWait(t, d, Job{
		IP:       "10.0.0.1",
		Endpoint: "/vapix/call/Call",
		JSONFile: "set/normal_path/Call_Normal_Path.json",
	})

	if !strings.Contains(string(stub.lastBody), `"To": "sip:10.27.35.8:5060"`) {
		t.Errorf("payload not sent: %q", stub.lastBody)
	}
	if !strings.Contains(o.Text, "URL: http://10.0.0.1/vapix/call/Call") {
		t.Errorf("outcome text missing URL: %q", o.Text)
	}
	if !strings.Contains(o.Text, "Status Code: 200") {
		t.Errorf("outcome text missing status: %q", o.Text)
	}
}

func TestPasswordZeroedAfterTransport(t *testing.T) {
	stub := &stubTransport{status: 200}
	d := newTestDispatcher(t, stub, t.TempDir())

	password := []byte("Test1234")
	dispatchAndWait(t, d, Job{
		IP:          "10.0.0.1",
		Endpoint:    "/vapix/call/Call",
		JSONFile:    types.NoPayload,
		Credentials: Credentials{Username: "root", Password: password},
	})

	if string(stub.passwordSeen) != "Test1234" {
		t.Errorf("transport saw wrong password: %q", stub.passwordSeen)
	}
	for i, b := range password {
		if b != 0 {
			t.Fatalf("password byte %d not zeroed after dispatch", i)
		}
	}
}

func TestDeviceErrorSummarizedInText(t *testing.T) {
	body := []byte(`{"apiVersion":"1.5","error":{"code":2104,"message":"Invalid SIPAccountId"}}`)
	d := newTestDispatcher(t, &stubTransport{status: 400, body: body}, t.TempDir())

	o := dispatchAndWait(t, d, Job{IP: "10.0.0.1", Endpoint: "/vapix/call/GetSIPAccount", JSONFile: types.NoPayload})

	if o.Tag != types.TagWarn {
		t.Errorf("tag: got %q, want warn", o.Tag)
	}
	if !strings.Contains(o.Text, "Device error 2104: Invalid SIPAccountId") {
		t.Errorf("device error not summarized: %q", o.Text)
	}
}
