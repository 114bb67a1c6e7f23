package requests

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfirmed means the irreversible-action safeguard was not
	// passed; no mutation was dispatched.
	ErrNotConfirmed = errors.New("action not confirmed")
	// ErrNotActionable means the cached request is no longer open, so
	// the controller refused the transition locally. The backend stays
	// authoritative for stale caches.
	ErrNotActionable = errors.New("request is not open")
)

// ValidationError is a local, pre-network failure naming the input the
// user must fix. It always means no network call was made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SubmissionError is a non-2xx backend response to a create call,
// carrying the backend's message for display.
type SubmissionError struct {
	Status  int
	Message string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed (status %d): %s", e.Status, e.Message)
}

// ActionError is a non-2xx backend response to an accept or reject
// mutation. The pre-mutation state is left unchanged.
type ActionError struct {
	Action  string
	Status  int
	Message string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s failed (status %d): %s", e.Action, e.Status, e.Message)
}
