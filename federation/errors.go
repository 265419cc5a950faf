package federation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// ErrNoHealthyBackend is returned by Select when no backend is healthy.
// It is terminal and never retried.
var ErrNoHealthyBackend = errors.New("no healthy backends available")

// DuplicateBackendError is returned when registering an id twice.
type DuplicateBackendError struct {
	ID string
}

func (e *DuplicateBackendError) Error() string {
	return fmt.Sprintf("backend %q already registered", e.ID)
}

// NotFoundError is returned when looking up an unknown backend id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("backend %q not found", e.ID)
}

// ExhaustedError reports that one backend spent its retry budget.
// The fallback walk treats it as recoverable.
type ExhaustedError struct {
	Backend  string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("backend %s failed after %d attempts: %v", e.Backend, e.Attempts, e.Err)
}

// Unwrap returns the last attempt's error.
func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// AllProvidersFailedError is returned when the primary and every fallback
// candidate are exhausted.
type AllProvidersFailedError struct {
	// Tried lists backend ids in the order they were attempted.
	Tried []string
	Err   *multierror.Error
}

// NewAllProvidersFailedError aggregates the per-backend errors.
func NewAllProvidersFailedError(tried []string, errs ...error) *AllProvidersFailedError {
	var merr *multierror.Error
	merr = multierror.Append(merr, errs...)
	return &AllProvidersFailedError{Tried: tried, Err: merr}
}

func (e *AllProvidersFailedError) Error() string {
	return fmt.Sprintf("all providers failed, including fallbacks (tried %s)", strings.Join(e.Tried, ", "))
}

// Unwrap exposes every aggregated error to errors.Is and errors.As.
func (e *AllProvidersFailedError) Unwrap() []error {
	if e.Err == nil {
		return nil
	}
	return e.Err.WrappedErrors()
}
