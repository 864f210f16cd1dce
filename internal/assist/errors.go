package assist

import (
	"errors"
	"fmt"
)

var (
	// ErrRemoteCallExhausted is returned once every attempt has failed at the
	// request level. The last attempt's error is wrapped alongside it.
	ErrRemoteCallExhausted = errors.New("remote call exhausted")
	// ErrEmptyRemoteResult means the provider answered 2xx without any text.
	ErrEmptyRemoteResult = errors.New("remote service returned an empty result")
	// ErrMalformedRemoteResult means the answer could not be decoded into the
	// requested shape.
	ErrMalformedRemoteResult = errors.New("remote service returned a malformed result")
	ErrNothingToSummarize    = errors.New("no purchases to summarize")
	ErrEmptyDescription      = errors.New("empty description")
)

// TransportError is a failure to get any HTTP response at all.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "transport error: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx answer.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http status %d", e.Status)
	}
	return fmt.Sprintf("http status %d: %s", e.Status, e.Body)
}

type exhaustedError struct {
	attempts int
	last     error
}

func (e *exhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v", ErrRemoteCallExhausted, e.attempts, e.last)
}

func (e *exhaustedError) Unwrap() []error { return []error{ErrRemoteCallExhausted, e.last} }

// malformed wraps a decode failure so that it matches ErrMalformedRemoteResult.
func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedRemoteResult, fmt.Sprintf(format, args...))
}
