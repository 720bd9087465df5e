package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Request is one call to the basket API.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    any // JSON-encoded when non-nil
	Headers map[string]string
}

// Response carries the raw status and body. Any HTTP status is a Response;
// only failures to complete the exchange are errors.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Transport sends requests to the basket API. Implementations own timeouts
// and any retry policy.
type Transport interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// HTTPTransport is a Transport over net/http.
type HTTPTransport struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPTransport returns a transport for baseURL with the given timeout.
func NewHTTPTransport(baseURL string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Do performs req and reads the full response body.
func (t *HTTPTransport) Do(ctx context.Context, req Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	target := t.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call basket API: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

// ErrTransport matches every TransportError with errors.Is.
var ErrTransport = errors.New("basket transport failure")

// TransportError reports a failed or unsuccessful call. StatusCode is zero
// when no response was received.
type TransportError struct {
	Op         string
	Method     string
	Path       string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s %s: unexpected status %d", e.Op, e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s %s: %v", e.Op, e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }
