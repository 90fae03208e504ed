package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("line-dify-bridge/workflow")

// Observer receives step and instance outcomes, e.g. for metrics.
type Observer interface {
	StepFinished(step, result string, elapsed time.Duration)
	InstanceFinished(status string)
}

type nopObserver struct{}

func (nopObserver) StepFinished(string, string, time.Duration) {}
func (nopObserver) InstanceFinished(string)                    {}

// Steps executes the named steps of one instance against its step log.
type Steps struct {
	repo       Repository
	instanceID string
	policy     RetryPolicy
	observer   Observer
	now        func() time.Time
	log        zerolog.Logger
}

func newSteps(repo Repository, instanceID string, policy RetryPolicy, observer Observer, log zerolog.Logger) *Steps {
	return &Steps{
		repo:       repo,
		instanceID: instanceID,
		policy:     policy,
		observer:   observer,
		now:        time.Now,
		log:        log,
	}
}

// RunStep returns the checkpointed output of step name when it already
// completed for this instance. Otherwise it runs fn under the retry policy
// and checkpoints the JSON-encoded result. Nothing is checkpointed once ctx is
// cancelled, so an interrupted run never records a partial answer.
func RunStep[T any](ctx context.Context, s *Steps, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	log := s.log.With().Str("step", name).Logger()

	prev, err := s.repo.FindStep(ctx, s.instanceID, name)
	if err != nil {
		return zero, WrapRetryable(err, ErrCodeCheckpoint, "load step "+name)
	}
	if prev != nil && prev.Status == StepCompleted {
		var out T
		if err := json.Unmarshal(prev.Output, &out); err != nil {
			return zero, &StepError{Code: ErrCodeCheckpoint, Message: "decode checkpoint", Severity: ErrorSeverityFatal, Step: name, Cause: err}
		}
		log.Debug().Msg("step already completed, reusing checkpoint")
		s.observer.StepFinished(name, "skipped", 0)
		return out, nil
	}

	ctx, span := tracer.Start(ctx, "workflow.step "+name, trace.WithAttributes(
		attribute.String("workflow.instance_id", s.instanceID),
		attribute.String("workflow.step", name),
	))
	defer span.End()

	start := time.Now()
	out, attempts, runErr := ExecuteWithResult(ctx, s.policy, func(ctx context.Context, attempt int) (T, error) {
		if attempt > 0 {
			log.Warn().Int("retry", attempt).Msg("retrying step")
		}
		return fn(ctx)
	})
	elapsed := time.Since(start)
	if prev != nil {
		attempts += prev.Attempts
	}

	if ctx.Err() != nil {
		span.SetStatus(codes.Error, "interrupted")
		s.observer.StepFinished(name, "interrupted", elapsed)
		if runErr == nil {
			runErr = ctx.Err()
		}
		return zero, fmt.Errorf("step %s interrupted: %w", name, runErr)
	}

	now := s.now().UTC()
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		s.observer.StepFinished(name, "failed", elapsed)
		log.Error().Err(runErr).Int("attempts", attempts).Msg("step failed")

		if saveErr := s.repo.SaveStep(ctx, s.instanceID, StepRecord{
			Name:      name,
			Status:    StepFailed,
			Attempts:  attempts,
			Error:     runErr.Error(),
			UpdatedAt: now,
		}); saveErr != nil {
			log.Error().Err(saveErr).Msg("failed to record step failure")
		}
		return zero, asStepError(runErr, name)
	}

	payload, err := json.Marshal(out)
	if err != nil {
		return zero, &StepError{Code: ErrCodeCheckpoint, Message: "encode checkpoint", Severity: ErrorSeverityFatal, Step: name, Cause: err}
	}
	if err := s.repo.SaveStep(ctx, s.instanceID, StepRecord{
		Name:      name,
		Status:    StepCompleted,
		Output:    payload,
		Attempts:  attempts,
		UpdatedAt: now,
	}); err != nil {
		// the step ran but its result is not durable; it will run again
		return zero, &StepError{Code: ErrCodeCheckpoint, Message: "save checkpoint", Severity: ErrorSeverityRetryable, Step: name, Cause: err}
	}

	s.observer.StepFinished(name, "completed", elapsed)
	log.Debug().Dur("elapsed", elapsed).Int("attempts", attempts).Msg("step completed")
	return out, nil
}

func asStepError(err error, step string) *StepError {
	var se *StepError
	if errors.As(err, &se) {
		if se.Step == "" {
			se.Step = step
		}
		return se
	}
	return &StepError{Code: ErrCodeTemporary, Message: "step " + step + " failed", Severity: ErrorSeverityRetryable, Step: step, Cause: err}
}
