// Package assist talks to the generative-language endpoint that pre-fills
// purchase forms and writes reduction tips.
//
// Every request goes through Caller, which retries request-level failures
// with exponential backoff and never retries once the provider has answered
// 2xx.
package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultEndpoint    = "https://generativelanguage.googleapis.com/v1beta/models"
	DefaultModel       = "gemini-2.5-flash-preview-09-2025"

	maxResponseBytes = 1 << 20
	maxErrorBody     = 512
)

// Doer executes HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Caller performs generateContent requests with bounded retries.
type Caller struct {
	url         string
	apiKey      string
	doer        Doer
	sleep       Sleeper
	maxAttempts int
	baseDelay   time.Duration
}

type Option func(*Caller)

func WithDoer(d Doer) Option { return func(c *Caller) { c.doer = d } }

func WithSleeper(s Sleeper) Option { return func(c *Caller) { c.sleep = s } }

func WithMaxAttempts(n int) Option {
	return func(c *Caller) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

func WithBaseDelay(d time.Duration) Option {
	return func(c *Caller) {
		if d > 0 {
			c.baseDelay = d
		}
	}
}

// NewCaller builds a Caller for model at endpoint. Empty endpoint or model
// fall back to the defaults.
func NewCaller(endpoint, model, apiKey string, opts ...Option) *Caller {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if model == "" {
		model = DefaultModel
	}
	c := &Caller{
		url:         fmt.Sprintf("%s/%s:generateContent", endpoint, model),
		apiKey:      apiKey,
		doer:        &http.Client{Timeout: 30 * time.Second},
		sleep:       sleepContext,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Call sends req and returns the text of the first candidate.
//
// Attempt n+1 starts baseDelay·2^n after attempt n failed; there is no delay
// after the final attempt. Transport errors and non-2xx statuses are retried
// alike. A 2xx answer ends the loop and its payload is then checked: a missing
// text yields ErrEmptyRemoteResult, an undecodable envelope
// ErrMalformedRemoteResult. Neither is retried.
func (c *Caller) Call(ctx context.Context, req GenerateRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	var last error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		payload, err := c.attempt(ctx, body)
		if err == nil {
			slog.DebugContext(ctx, "Generative call succeeded", "attempt", attempt+1)
			return extractText(payload)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		last = err

		if attempt == c.maxAttempts-1 {
			break
		}
		delay := c.baseDelay << attempt
		slog.WarnContext(ctx, "Generative call failed, retrying",
			"attempt", attempt+1,
			"max_attempts", c.maxAttempts,
			"delay", delay,
			"error", err)
		if err := c.sleep(ctx, delay); err != nil {
			return "", err
		}
	}

	slog.ErrorContext(ctx, "Generative call exhausted", "attempts", c.maxAttempts, "error", last)
	return "", &exhaustedError{attempts: c.maxAttempts, last: last}
}

// attempt issues one request and returns the body of a 2xx answer.
func (c *Caller) attempt(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-goog-api-key", c.apiKey)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(data)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, &HTTPError{Status: resp.StatusCode, Body: msg}
	}
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("read body: %w", err)}
	}
	return data, nil
}

func extractText(payload []byte) (string, error) {
	var env generateResponse
	if err := json.Unmarshal(payload, &env); err != nil {
		return "", malformed("decode envelope: %v", err)
	}
	text := env.text()
	if text == "" {
		return "", ErrEmptyRemoteResult
	}
	return text, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

