package workflow

import (
	"errors"
	"fmt"
)

// Status is where a workflow instance is in its life.
//
//	pending -> running -> completed
//	   |          |  \--> failed
//	   |          \-----> pending (released for retry or after a crash)
//	   \----------------> failed  (stale and out of attempts)
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var ErrInvalidTransition = errors.New("invalid status transition")

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusRunning || target == StatusFailed
	case StatusRunning:
		return target != StatusRunning
	default:
		return false
	}
}

// TransitionTo returns target, or s with ErrInvalidTransition.
func (s Status) TransitionTo(target Status) (Status, error) {
	if !s.CanTransitionTo(target) {
		return s, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, s, target)
	}
	return target, nil
}

// StepStatus is the outcome recorded in a step checkpoint.
type StepStatus string

const (
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// ErrorSeverity decides whether a failed step is retried or ends the instance.
type ErrorSeverity string

const (
	ErrorSeverityRetryable ErrorSeverity = "retryable"
	ErrorSeverityFatal     ErrorSeverity = "fatal"
)

func (e ErrorSeverity) IsFatal() bool { return e == ErrorSeverityFatal }
