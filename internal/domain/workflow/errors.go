package workflow

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("workflow instance not found")
	ErrDuplicateEvent  = errors.New("webhook event already dispatched")
	ErrUnknownWorkflow = errors.New("unknown workflow")
)

// StepError is an error raised inside a step, classified by severity.
type StepError struct {
	Code     string
	Message  string
	Severity ErrorSeverity
	Step     string
	Cause    error
}

func (e *StepError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StepError) Unwrap() error {
	return e.Cause
}

const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeTemporary    = "TEMPORARY_FAILURE"
	ErrCodeDualWrite    = "DUAL_WRITE_FAILED"
	ErrCodeCheckpoint   = "CHECKPOINT_FAILED"
)

// NewFatal builds an error that fails the instance without retry.
func NewFatal(code, message string) *StepError {
	return &StepError{Code: code, Message: message, Severity: ErrorSeverityFatal}
}

// WrapRetryable marks err as worth another attempt.
func WrapRetryable(err error, code, message string) *StepError {
	return &StepError{Code: code, Message: message, Severity: ErrorSeverityRetryable, Cause: err}
}

// IsFatal reports whether err carries fatal severity. Unclassified errors are retryable.
func IsFatal(err error) bool {
	var se *StepError
	if errors.As(err, &se) {
		return se.Severity.IsFatal()
	}
	return false
}
