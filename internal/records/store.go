// Package records defines the purchase record store used by the dashboard,
// the worker and the CLI.
package records

import (
	"context"
	"errors"
	"fmt"

	"carbontracker/internal/auth"
	"carbontracker/internal/core"
)

// Store is the purchase record store. Every call carries the caller's session;
// implementations only see records owned by s.UserID.
type Store interface {
	List(ctx context.Context, s auth.Session) ([]core.Purchase, error)
	Create(ctx context.Context, s auth.Session, in core.PurchaseInput) (core.Purchase, error)
	Update(ctx context.Context, s auth.Session, p core.Purchase) (core.Purchase, error)
	Delete(ctx context.Context, s auth.Session, id string) error
}

var (
	ErrNotFound = errors.New("purchase not found")
	// ErrReadOnly is returned when updating or deleting a record that only
	// exists locally and has not reached the store yet.
	ErrReadOnly = errors.New("purchase is not editable yet")
)

// TransportError is a failure to reach the store at all.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx answer other than 401, 403 and 404.
type HTTPError struct {
	Op     string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: api error: %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: api error: %d - %s", e.Op, e.Status, e.Body)
}

// Unavailable reports whether err means the store could not serve the request,
// as opposed to rejecting it.
func Unavailable(err error) bool {
	var te *TransportError
	var he *HTTPError
	return errors.As(err, &te) || errors.As(err, &he)
}
