// Package task tracks the state of user-triggered remote actions so that a
// second submit while the first is still running can be refused.
package task

import (
	"errors"
	"sync"
	"time"
)

type State int

const (
	Idle State = iota
	Loading
	Success
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Success:
		return "success"
	case Error:
		return "error"
	}
	return "unknown"
}

var (
	ErrInFlight          = errors.New("action already in progress")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// Status is the last known state of one action.
type Status struct {
	State     State
	Err       string
	UpdatedAt time.Time
}

type key struct {
	user   string
	action string
}

// Tracker holds one state per (user, action).
type Tracker struct {
	mu     sync.Mutex
	states map[key]Status
	now    func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{states: make(map[key]Status), now: time.Now}
}

// Begin moves the action to Loading. It fails with ErrInFlight when the action
// is already Loading. The returned func must be called with the outcome.
func (t *Tracker) Begin(user, action string) (finish func(error), err error) {
	k := key{user, action}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.states[k].State == Loading {
		return nil, ErrInFlight
	}
	t.states[k] = Status{State: Loading, UpdatedAt: t.now()}

	var once sync.Once
	return func(result error) {
		once.Do(func() { _ = t.finish(k, result) })
	}, nil
}

func (t *Tracker) finish(k key, result error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.states[k].State != Loading {
		return ErrInvalidTransition
	}
	st := Status{State: Success, UpdatedAt: t.now()}
	if result != nil {
		st.State = Error
		st.Err = result.Error()
	}
	t.states[k] = st
	return nil
}

// Status returns the current state; unknown actions are Idle.
func (t *Tracker) Status(user, action string) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[key{user, action}]
}

// Reset returns the action to Idle unless it is Loading.
func (t *Tracker) Reset(user, action string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := key{user, action}
	if t.states[k].State == Loading {
		return ErrInvalidTransition
	}
	delete(t.states, k)
	return nil
}
