package app

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested resource does not exist or is not
	// visible to the caller.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the caller does not own the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials indicates a failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken indicates the registration email is already in use.
	ErrEmailTaken = errors.New("email already exists")
	// ErrDuplicateName indicates an active word list with that name exists.
	ErrDuplicateName = errors.New("word list name already in use")
	// ErrVersionConflict indicates a concurrent edit won the version race.
	ErrVersionConflict = errors.New("word list was modified concurrently")
	// ErrBudgetExceeded indicates the estimated cost would overrun the
	// user's usage limit.
	ErrBudgetExceeded = errors.New("usage limit exceeded")
	// ErrNotRetryable indicates retry was requested for a job that is not
	// failed or cancelled.
	ErrNotRetryable = errors.New("job is not retryable")
	// ErrNotCancellable indicates the job already reached a terminal state.
	ErrNotCancellable = errors.New("job is not cancellable")
	// ErrBusy indicates another correction for the same user is being
	// admitted right now.
	ErrBusy = errors.New("another request is in progress")
)

// ValidationError carries the accumulated validation messages for a
// rejected word-list CSV.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "invalid csv"
	}
	return fmt.Sprintf("invalid csv: %s", e.Problems[0])
}
