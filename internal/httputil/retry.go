// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the HTTP client and retry loop shared by the
// model and recognition clients.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/zouly-group/tadf-workbench/pkg/types"
)

// RetryBaseDelay is the wait between attempts when a Policy leaves Delay
// unset. Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

const (
	defaultMaxRetries = 3
	defaultTimeout    = 120 * time.Second
)

// Policy bounds the retry loop. Retries are spaced by a fixed delay.
type Policy struct {
	MaxRetries int
	Delay      time.Duration
}

// PolicyFrom builds a policy from client configuration.
func PolicyFrom(cfg types.HTTPConfig) Policy {
	return Policy{MaxRetries: cfg.MaxRetries, Delay: cfg.RetryDelay}
}

// NewClient returns an http.Client with the configured timeout.
func NewClient(cfg types.HTTPConfig) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// StatusError reports a non-2xx response after retries are exhausted.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether a status code is worth another attempt:
// 429 and any 5xx.
func Retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// DoWithRetry executes req and retries on transport errors, HTTP 429 and
// HTTP 5xx. Attempts are spaced by p.Delay (RetryBaseDelay when unset) and
// capped at 1+p.MaxRetries (default 3 retries). The request body is
// rewound through GetBody on every attempt.
//
// On each retried response the body is drained and closed before sleeping.
// If the context is cancelled during a wait the function returns
// ctx.Err(). After exhausting retries the last transport error is
// returned, or the last retryable response so the caller can inspect it.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, p Policy) (*http.Response, error) {
	maxRetries := p.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	delay := p.Delay
	if delay <= 0 {
		delay = RetryBaseDelay
	}

	for attempt := 0; ; attempt++ {
		r := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewinding request body: %w", err)
			}
			r.Body = body
		}

		resp, err := client.Do(r)
		switch {
		case err != nil:
			if ctx.Err() != nil || attempt >= maxRetries {
				return nil, err
			}
			slog.Warn("request failed, retrying", "url", req.URL.Redacted(), "attempt", attempt+1, "max", maxRetries, "error", err)
		case !Retryable(resp.StatusCode):
			return resp, nil
		case attempt >= maxRetries:
			return resp, nil
		default:
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			slog.Warn("retryable status, retrying", "url", req.URL.Redacted(), "status", resp.StatusCode, "attempt", attempt+1, "max", maxRetries)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// CheckResponse reads and closes resp's body when the status is not 2xx and
// returns it as a *StatusError.
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
