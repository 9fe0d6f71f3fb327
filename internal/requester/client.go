// Package requester translates presets into outbound HTTP calls and
// delivers tagged outcomes off the caller's goroutine.
package requester

import (
	"crypto/tls"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// Credentials carries digest-auth material. The password lives in a
// mutable byte slice so it can be zeroed once the transport is done
// with it.
type Credentials struct {
	Username string
	Password []byte
}

// Zero overwrites the password bytes. Call it as soon as the transport
// call has completed; do not rely on garbage collection timing.
func (c *Credentials) Zero() {
	for i := range c.Password {
		c.Password[i] = 0
	}
}

// Response is the transport-level result of one POST.
type Response struct {
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Transport performs one JSON POST with digest authentication. It is an
// interface so dispatch behavior can be tested against a stub.
type Transport interface {
	Post(url string, body []byte, creds *Credentials) (*Response, error)
}

// Client implements Transport over fasthttp.
type Client struct {
	client    *fasthttp.Client
	timeout   time.Duration
	userAgent string
}

// ClientOptions configures the HTTP client.
type ClientOptions struct {
	Timeout         time.Duration
	MaxConnsPerHost int
	UserAgent       string
	// SkipTLSVerify stays true by default: target devices use
	// self-signed certificates and this is an internal QA tool.
	SkipTLSVerify bool
}

// DefaultClientOptions returns sensible defaults.
func DefaultClientOptions() *ClientOptions {
	return &ClientOptions{
		Timeout:         10 * time.Second,
		MaxConnsPerHost: 8,
		UserAgent:       "vapixprobe/1.0",
		SkipTLSVerify:   true,
	}
}

// NewClient creates a new HTTP client.
func NewClient(opts *ClientOptions) *Client {
	if opts == nil {
		opts = DefaultClientOptions()
	}
	defaults := DefaultClientOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.MaxConnsPerHost <= 0 {
		opts.MaxConnsPerHost = defaults.MaxConnsPerHost
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaults.UserAgent
	}

	client := &fasthttp.Client{
		MaxConnsPerHost: opts.MaxConnsPerHost,
		ReadTimeout:     opts.Timeout,
		WriteTimeout:    opts.Timeout,
		TLSConfig: &tls.Config{
			InsecureSkipVerify: opts.SkipTLSVerify,
		},
	}

	return &Client{
		client:    client,
		timeout:   opts.Timeout,
		userAgent: opts.UserAgent,
	}
}

// Post sends one JSON POST. On a 401 digest challenge it computes the
// Authorization header and retries exactly once; any further 401 is
// returned to the caller as an ordinary non-200 response.
func (c *Client) Post(url string, body []byte, creds *Credentials) (*Response, error) {
	resp, challenge, err := c.do(url, body, "")
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == fasthttp.StatusUnauthorized && challenge != "" && creds != nil {
		auth, authErr := digestAuthorization("POST", requestURI(url), creds, challenge, randomCnonce())
		if authErr == nil {
			retried, _, retryErr := c.do(url, body, auth)
			if retryErr != nil {
				return nil, retryErr
			}
			retried.Duration += resp.Duration
			return retried, nil
		}
	}
	return resp, nil
}

// do performs one round trip and returns any digest challenge offered.
func (c *Client) do(url string, body []byte, authorization string) (*Response, string, error) {
	start := time.Now()

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.SetUserAgent(c.userAgent)
	if authorization != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, authorization)
	}
	req.SetBody(body)

	if err := c.client.DoTimeout(req, resp, c.timeout); err != nil {
		return nil, "", err
	}

	challenge := string(resp.Header.Peek(fasthttp.HeaderWWWAuthenticate))
	if !strings.HasPrefix(strings.ToLower(challenge), "digest ") {
		challenge = ""
	}

	// Body must be copied, fasthttp reuses its buffers.
	out := make([]byte, len(resp.Body()))
	copy(out, resp.Body())

	return &Response{
		StatusCode: resp.StatusCode(),
		Body:       out,
		Duration:   time.Since(start),
	}, challenge, nil
}

// requestURI strips scheme and host, keeping path and query for the
// digest uri= parameter.
func requestURI(url string) string {
	rest := url
	if idx := strings.Index(rest, "://"); idx >= 0 {
		rest = rest[idx+3:]
	}
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		return rest[idx:]
	}
	return "/"
}
