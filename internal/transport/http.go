package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/BartekS5/restsync/pkg/logger"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 5
	DefaultRetryFactor = 5.0
	maxBackoff         = 5 * time.Minute
	maxBodyBytes       = 64 << 20
)

// RetryPolicy controls how many times a retryable failure is retried and how fast
// the wait grows: wait = RetryFactor * 2^attempt seconds.
type RetryPolicy struct {
	MaxRetries  int
	RetryFactor float64
}

// DefaultRetryPolicy returns the policy used when a connector sets none.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: DefaultMaxRetries, RetryFactor: DefaultRetryFactor}
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := time.Duration(p.RetryFactor * math.Pow(2, float64(attempt)) * float64(time.Second))
	if d > maxBackoff || d < 0 {
		return maxBackoff
	}
	return d
}

// HTTPClient is the net/http Transport.
type HTTPClient struct {
	client *http.Client
	policy  RetryPolicy
	maxBody int64
	sleep   func(ctx context.Context, d time.Duration) error
}

// ErrBodyTooLarge is returned when a response body exceeds the client's limit.
var ErrBodyTooLarge = errors.New("response body too large")

// NewHTTPClient returns a client with the given timeout and retry policy.
func NewHTTPClient(timeout time.Duration, policy RetryPolicy) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		policy:  policy,
		maxBody: maxBodyBytes,
		sleep:   sleepContext,
	}
}

// RetryPolicy returns the policy in use.
func (c *HTTPClient) RetryPolicy() RetryPolicy { return c.policy }

// SetRetryPolicy replaces the policy.
func (c *HTTPClient) SetRetryPolicy(p RetryPolicy) { c.policy = p }

// Send issues req, retrying retryable failures per the policy.
func (c *HTTPClient) Send(ctx context.Context, req *Request) (*Response, error) {
	target, err := buildURL(req.URL, req.Params)
	if err != nil {
		return nil, &Error{Method: req.Method, URL: req.URL, Err: err}
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	for attempt := 0; ; attempt++ {
		resp, err := c.do(ctx, method, target, req.Headers)
		if err == nil {
			return resp, nil
		}
		var te *Error
		if !errors.As(err, &te) || !te.Retryable || attempt >= c.policy.MaxRetries {
			return nil, err
		}
		wait := c.policy.backoff(attempt)
		if resp != nil {
			if ra, ok := retryAfter(resp.Headers); ok {
				wait = ra
			}
		}
		logger.Warnf("%s %s failed (attempt %d/%d): %v; retrying in %s", method, target, attempt+1, c.policy.MaxRetries+1, err, wait)
		if err := c.sleep(ctx, wait); err != nil {
			return nil, &Error{Method: method, URL: target, Err: err}
		}
	}
}

// do performs one attempt. On a non-2xx status it returns both the response and an *Error.
func (c *HTTPClient) do(ctx context.Context, method, target string, headers map[string]string) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, &Error{Method: method, URL: target, Err: err}
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Method: method, URL: target, Retryable: ctx.Err() == nil, Err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, c.maxBody+1))
	if err != nil {
		return nil, &Error{Method: method, URL: target, Retryable: true, Err: fmt.Errorf("reading body: %w", err)}
	}
	if int64(len(body)) > c.maxBody {
		return nil, &Error{
			Method: method,
			URL:    target,
			Err:    fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, c.maxBody),
		}
	}
	resp := &Response{Status: httpResp.StatusCode, Headers: httpResp.Header, Body: body}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return resp, &Error{
			Method:    method,
			URL:       target,
			Status:    httpResp.StatusCode,
			Retryable: IsRetryableStatus(httpResp.StatusCode),
			Body:      body,
		}
	}
	return resp, nil
}

func buildURL(raw string, params map[string]string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if len(params) == 0 {
		return u.String(), nil
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func retryAfter(h http.Header) (time.Duration, bool) {
	v := h.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
