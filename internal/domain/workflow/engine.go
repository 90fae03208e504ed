package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const persistTimeout = 10 * time.Second

// Workflow is a named sequence of durable steps.
type Workflow interface {
	Name() string
	Run(ctx context.Context, inst *Instance, steps *Steps) error
}

// EngineConfig bounds retries at two levels: StepPolicy within one attempt,
// MaxAttempts and RetryBackoff across attempts of the whole instance.
type EngineConfig struct {
	StepPolicy   RetryPolicy
	MaxAttempts  int
	RetryBackoff RetryPolicy
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		StepPolicy:  DefaultRetryPolicy(),
		MaxAttempts: 5,
		RetryBackoff: RetryPolicy{
			InitialDelay:    10 * time.Second,
			MaxDelay:        5 * time.Minute,
			BackoffStrategy: BackoffExponential,
			JitterFactor:    0.1,
		},
	}
}

// Engine runs claimed instances to a terminal or released state.
type Engine struct {
	repo      Repository
	workflows map[string]Workflow
	cfg       EngineConfig
	observer  Observer
	log       zerolog.Logger
}

func NewEngine(repo Repository, cfg EngineConfig, observer Observer, log zerolog.Logger, workflows ...Workflow) *Engine {
	if observer == nil {
		observer = nopObserver{}
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultEngineConfig().MaxAttempts
	}
	registry := make(map[string]Workflow, len(workflows))
	for _, w := range workflows {
		registry[w.Name()] = w
	}
	return &Engine{
		repo:      repo,
		workflows: registry,
		cfg:       cfg,
		observer:  observer,
		log:       log.With().Str("component", "workflow-engine").Logger(),
	}
}

// Execute runs inst, which the caller must have claimed, and records the outcome.
// A cancelled ctx releases the instance so it resumes from its last checkpoint.
func (e *Engine) Execute(ctx context.Context, inst *Instance) Status {
	log := e.log.With().
		Str("instance_id", inst.ID).
		Str("workflow", inst.Workflow).
		Int("attempt", inst.Attempts).
		Logger()

	ctx, span := tracer.Start(ctx, "workflow.run "+inst.Workflow, trace.WithAttributes(
		attribute.String("workflow.instance_id", inst.ID),
		attribute.Int("workflow.attempt", inst.Attempts),
	))
	defer span.End()

	status := e.run(ctx, inst, log)
	span.SetAttributes(attribute.String("workflow.status", string(status)))
	if status == StatusFailed {
		span.SetStatus(codes.Error, "failed")
	}
	e.observer.InstanceFinished(string(status))
	return status
}

func (e *Engine) run(ctx context.Context, inst *Instance, log zerolog.Logger) Status {
	wf, ok := e.workflows[inst.Workflow]
	if !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownWorkflow, inst.Workflow)
		log.Error().Err(err).Msg("cannot execute instance")
		return e.finish(ctx, inst.ID, StatusFailed, err.Error(), 0, log)
	}

	log.Info().Msg("workflow started")
	err := wf.Run(ctx, inst, newSteps(e.repo, inst.ID, e.cfg.StepPolicy, e.observer, log))

	switch {
	case err == nil:
		log.Info().Msg("workflow completed")
		return e.finish(ctx, inst.ID, StatusCompleted, "", 0, log)
	case ctx.Err() != nil:
		log.Warn().Err(err).Msg("workflow interrupted, releasing for resume")
		return e.finish(ctx, inst.ID, StatusPending, "interrupted: "+err.Error(), 0, log)
	case IsFatal(err):
		log.Error().Err(err).Msg("workflow failed")
		return e.finish(ctx, inst.ID, StatusFailed, err.Error(), 0, log)
	case inst.Attempts >= e.cfg.MaxAttempts:
		log.Error().Err(err).Int("max_attempts", e.cfg.MaxAttempts).Msg("workflow exhausted its attempts")
		return e.finish(ctx, inst.ID, StatusFailed, err.Error(), 0, log)
	default:
		delay := e.cfg.RetryBackoff.CalculateDelay(inst.Attempts)
		log.Warn().Err(err).Dur("retry_in", delay).Msg("workflow attempt failed, will retry")
		return e.finish(ctx, inst.ID, StatusPending, err.Error(), delay, log)
	}
}

// finish persists the outcome. It uses a context detached from cancellation so a
// shutdown still records where the instance stopped.
func (e *Engine) finish(ctx context.Context, id string, status Status, reason string, delay time.Duration, log zerolog.Logger) Status {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	var err error
	switch status {
	case StatusCompleted:
		err = e.repo.Complete(pctx, id)
	case StatusFailed:
		err = e.repo.Fail(pctx, id, reason)
	default:
		err = e.repo.Release(pctx, id, reason, delay)
	}
	if err != nil {
		// the lease expires and the recovery job picks the instance up
		if !errors.Is(err, ErrNotFound) {
			log.Error().Err(err).Str("status", string(status)).Msg("failed to persist workflow outcome")
		}
		return StatusRunning
	}
	return status
}
