package engine

import (
	"errors"
	"fmt"
)

// FailureKind categorizes unrecoverable step failures for reporting.
type FailureKind string

const (
	// FailureValidation means the trigger payload was malformed. Fatal, no retry.
	FailureValidation FailureKind = "ValidationFailed"
	// FailureRecordNotFound means a record the workflow requires is missing.
	FailureRecordNotFound FailureKind = "RecordNotFound"
	// FailureStoreUnavailable means a state store call failed or timed out.
	FailureStoreUnavailable FailureKind = "StoreUnavailable"
	// FailureExternalCall means an external dependency call failed or timed out.
	FailureExternalCall FailureKind = "ExternalCallFailed"
)

// IsTransient reports whether a failure kind is worth retrying.
func (k FailureKind) IsTransient() bool {
	return k == FailureStoreUnavailable || k == FailureExternalCall
}

// StepError is a failure attributed to a named step.
type StepError struct {
	Step string
	Kind FailureKind
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %s: %v", e.Step, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// NewStepError builds a StepError.
func NewStepError(step string, kind FailureKind, err error) *StepError {
	return &StepError{Step: step, Kind: kind, Err: err}
}

// asStepError attributes err to step, defaulting uncategorized errors to
// ExternalCallFailed.
func asStepError(step string, err error) *StepError {
	var serr *StepError
	if errors.As(err, &serr) {
		return serr
	}
	return &StepError{Step: step, Kind: FailureExternalCall, Err: err}
}

// errCaught signals that a step failed but its catch handler ran; the
// enclosing sequence stops without propagating a failure.
var errCaught = errors.New("step failure caught")
