package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("resource not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrTooManyInFlight     = errors.New("too many analyses in flight")
	ErrAdapter             = errors.New("external service failed")
	ErrContractViolation   = errors.New("analysis output violated the section contract")
	ErrStorage             = errors.New("storage failure")
	ErrReservationState    = errors.New("reservation is not in a state that allows this operation")
	ErrRecordingNotFound   = errors.New("recording session not found")
	ErrRecordingState      = errors.New("recording session is not in a state that allows this operation")
)

// NormalizationReason tells why a submission could not be turned into case text.
type NormalizationReason string

const (
	ReasonNoUsableInput NormalizationReason = "no_usable_input"
	ReasonEmptyCase     NormalizationReason = "empty_case"
)

// NormalizationError is returned when a submission does not resolve to usable case text.
type NormalizationError struct {
	Reason NormalizationReason
	Err    error
}

func (e *NormalizationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("normalization failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("normalization failed (%s)", e.Reason)
}

func (e *NormalizationError) Unwrap() error { return e.Err }

func (e *NormalizationError) Is(target error) bool { return target == ErrInvalidInput }

// AdapterError wraps a failure from an external collaborator.
type AdapterError struct {
	Stage Stage
	Err   error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s adapter failed: %v", e.Stage, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

func (e *AdapterError) Is(target error) bool { return target == ErrAdapter }

// NewAdapterError wraps err for the given stage. A nil err yields nil.
func NewAdapterError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &AdapterError{Stage: stage, Err: err}
}

// ContractError describes how a reasoning payload broke the section contract.
type ContractError struct {
	Detail string
}

func (e *ContractError) Error() string {
	return "contract violation: " + e.Detail
}

func (e *ContractError) Is(target error) bool { return target == ErrContractViolation }

// StorageError wraps a persistence failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// RunError records the pipeline state a run failed in.
type RunError struct {
	RunID    string
	State    RunState
	Refunded bool
	Err      error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run %s failed in %s: %v", e.RunID, e.State, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }
