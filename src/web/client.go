// Package web is the HTTP seam used by the results fetcher. Client is the
// narrow interface the fetcher depends on; HTTPClient implements it over
// net/http.
package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Options tune a single request.
type Options struct {
	// Header is added to the request.
	Header http.Header
	// ReturnNilOn404 makes a 404 return a nil Response and nil error.
	ReturnNilOn404 bool
	// Retries is the number of extra attempts after a network error or a
	// 5xx status.
	Retries int
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client performs HTTP requests.
type Client interface {
	Get(ctx context.Context, url string, opts Options) (*Response, error)
	Post(ctx context.Context, url string, body []byte, opts Options) (*Response, error)
}

// TransportError is returned for any non-2xx status that the caller did not
// ask to tolerate.
type TransportError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s failed with status %d: %s", e.Method, e.URL, e.StatusCode, string(e.Body))
}

// HTTPClient is a Client backed by net/http.
type HTTPClient struct {
	httpClient *http.Client
}

// NewHTTPClient creates a client with the given request timeout.
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Get issues a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string, opts Options) (*Response, error) {
	return c.do(ctx, http.MethodGet, url, nil, opts)
}

// Post issues a POST request with body.
func (c *HTTPClient) Post(ctx context.Context, url string, body []byte, opts Options) (*Response, error) {
	return c.do(ctx, http.MethodPost, url, body, opts)
}

func (c *HTTPClient) do(ctx context.Context, method, url string, body []byte, opts Options) (*Response, error) {
	if _, err := http.NewRequestWithContext(ctx, method, url, nil); err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= opts.Retries; attempt++ {
		resp, err := c.once(ctx, method, url, body, opts)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (c *HTTPClient) once(ctx context.Context, method, url string, body []byte, opts Options) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range opts.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound && opts.ReturnNilOn404 {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Method: method, URL: url, StatusCode: resp.StatusCode, Body: data}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func retryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.StatusCode >= 500
	}
	return true
}
