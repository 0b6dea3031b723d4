// Package transport sends stream requests over HTTP and classifies failures.
package transport

import (
	"context"
	"fmt"
	"net/http"
)

// Request is one page request built by the stream driver.
type Request struct {
	Method  string
	URL     string
	Params  map[string]string
	Headers map[string]string
}

// Response is what the driver decodes.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// ContentType returns the response Content-Type header.
func (r *Response) ContentType() string {
	if r == nil || r.Headers == nil {
		return ""
	}
	return r.Headers.Get("Content-Type")
}

// Transport sends a request and returns the response, or an *Error.
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// Error is a network failure or a non-2xx response.
type Error struct {
	Method    string
	URL       string
	Status    int
	Retryable bool
	Body      []byte
	Err       error
}

func (e *Error) Error() string {
	kind := "fatal"
	if e.Retryable {
		kind = "retryable"
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d (%s)", e.Method, e.URL, e.Status, kind)
	}
	return fmt.Sprintf("%s %s: %v (%s)", e.Method, e.URL, e.Err, kind)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryableStatus reports whether a status code is worth retrying.
func IsRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500
}
