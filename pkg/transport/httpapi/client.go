// Package httpapi is the console's client for the controller's HTTP API.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/net/publicsuffix"

	"github.com/modoterra/svconsole/pkg/core"
)

const maxResponseBytes = 1 << 20

// TransportError means no HTTP response was obtained.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ResponseError means a response arrived but its body could not be decoded.
type ResponseError struct {
	Path       string
	StatusCode int
	Err        error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: unexpected response (HTTP %d): %v", e.Path, e.StatusCode, e.Err)
}

func (e *ResponseError) Unwrap() error { return e.Err }

// Client talks to one controller. Requests carry the session cookie set by
// earlier responses, so a login through Execute authenticates later calls.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
	seq     atomic.Uint64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled client. Its Jar is used as is.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds every request. Zero leaves only the transport defaults.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the server at baseURL, e.g. "http://10.0.0.5:8080".
func New(baseURL string, opts ...Option) (*Client, error) {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("server url %q: missing host", baseURL)
	}

	c := &Client{base: u, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		c.http = cleanhttp.DefaultPooledClient()
		c.http.Jar = jar
	}
	return c, nil
}

// BaseURL returns the server address the client was created with.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Execute sends a console command. A response with a non-success status is
// returned as a result, not an error.
func (c *Client) Execute(ctx context.Context, command string, args []string) (core.CommandResult, error) {
	if args == nil {
		args = []string{}
	}
	var resp CommandResponse
	seq, err := c.do(ctx, http.MethodPost, PathCommand, CommandRequest{Command: command, Parameters: args}, &resp)
	if err != nil {
		return core.CommandResult{Seq: seq}, err
	}
	c.logger.Debug("command answered", "command", command, "status", resp.Status, "seq", seq)
	return resp.Result(seq), nil
}

// Status fetches the server status for the current session.
func (c *Client) Status(ctx context.Context) (core.StatusReport, error) {
	var resp StatusResponse
	seq, err := c.do(ctx, http.MethodGet, PathStatus, nil, &resp)
	if err != nil {
		return core.StatusReport{Seq: seq}, err
	}
	return resp.Report(seq), nil
}

// ReportActivity sends a server-control activity.
func (c *Client) ReportActivity(ctx context.Context, activity string) (core.ActivityAck, error) {
	var resp ActivityResponse
	seq, err := c.do(ctx, http.MethodPost, PathActivities, ActivityRequest{Activity: activity}, &resp)
	if err != nil {
		return core.ActivityAck{Seq: seq}, err
	}
	return resp.Ack(seq), nil
}

// Details fetches the server name and identity.
func (c *Client) Details(ctx context.Context) (core.ServerDetails, error) {
	var resp DetailsResponse
	if _, err := c.do(ctx, http.MethodGet, PathDetails, nil, &resp); err != nil {
		return core.ServerDetails{}, err
	}
	return resp.Details(), nil
}

// do performs one request and decodes the JSON body into out regardless of
// the HTTP status code. It returns the request's sequence number.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (uint64, error) {
	seq := c.seq.Add(1)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return seq, fmt.Errorf("encode %s request: %w", path, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), reader)
	if err != nil {
		return seq, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "seq", seq, "err", err)
		return seq, &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return seq, &TransportError{Method: method, Path: path, Err: fmt.Errorf("read body: %w", err)}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return seq, &ResponseError{Path: path, StatusCode: resp.StatusCode, Err: errors.New("empty body")}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return seq, &ResponseError{Path: path, StatusCode: resp.StatusCode, Err: err}
	}
	return seq, nil
}
