package httpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Retry controls how Do repeats a request. The wait before attempt n is
// Delay*n.
type Retry struct {
	Max    int
	Delay  time.Duration
	Logger *slog.Logger
}

// Retryable reports whether a status is worth another attempt.
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// Do sends the request built by newReq, retrying transport failures, 429 and
// 5xx. Once retries run out the last response is returned as is, so callers
// decode the upstream error body themselves.
func Do(ctx context.Context, c *http.Client, r Retry, newReq func() (*http.Request, error)) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.Delay * time.Duration(attempt)):
			}
		}

		req, err := newReq()
		if err != nil {
			return nil, err
		}
		resp, err := c.Do(req)
		final := attempt >= r.Max

		switch {
		case err != nil && final:
			return nil, err
		case err != nil:
			r.warn("request failed, retrying", "host", req.URL.Host, "attempt", attempt+1, "error", err)
		case Retryable(resp.StatusCode) && !final:
			resp.Body.Close()
			r.warn("retrying request", "host", req.URL.Host, "attempt", attempt+1, "status", resp.StatusCode)
		default:
			return resp, nil
		}
	}
}

func (r Retry) warn(msg string, args ...any) {
	if r.Logger != nil {
		r.Logger.Warn(msg, args...)
	}
}

// PostJSON encodes payload once and returns a builder that Do can call per
// attempt. An empty bearer leaves the Authorization header unset.
func PostJSON(ctx context.Context, url, bearer string, payload any) (func() (*http.Request, error), error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		return req, nil
	}, nil
}

// UpstreamError pulls message and code out of an OpenAI-style
// {"error":{"message","code"}} body. Other bodies come back verbatim as the
// message.
func UpstreamError(resp *http.Response) (message, code string) {
	body := ReadBody(resp, 4096)
	var e struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	if json.Unmarshal([]byte(body), &e) == nil && e.Error.Message != "" {
		return e.Error.Message, e.Error.Code
	}
	return body, ""
}
