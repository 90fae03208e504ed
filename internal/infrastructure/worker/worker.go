package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"line-dify-bridge/internal/domain/workflow"
)

// Worker polls the workflow store for runnable instances.
type Worker struct {
	id           int
	repo         workflow.Repository
	executor     Executor
	pollInterval time.Duration
	lease        time.Duration
	log          zerolog.Logger
	stopChan     chan struct{}
}

func NewWorker(id int, repo workflow.Repository, executor Executor, pollInterval, lease time.Duration, log zerolog.Logger) *Worker {
	return &Worker{
		id:           id,
		repo:         repo,
		executor:     executor,
		pollInterval: pollInterval,
		lease:        lease,
		log:          log.With().Int("worker_id", id).Str("component", "worker").Logger(),
		stopChan:     make(chan struct{}),
	}
}

// Start polls until ctx ends or Stop is called. A successful claim is followed
// immediately by another poll so a backlog drains without waiting on the ticker.
func (w *Worker) Start(ctx context.Context) {
	w.log.Debug().Msg("worker started")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug().Msg("worker stopped by context")
			return
		case <-w.stopChan:
			w.log.Debug().Msg("worker stopped")
			return
		case <-ticker.C:
			for w.processNext(ctx) {
				select {
				case <-w.stopChan:
					return
				default:
				}
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopChan)
}

// processNext reports whether an instance was claimed.
func (w *Worker) processNext(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	inst, err := w.repo.ClaimNext(ctx, w.lease)
	if err != nil {
		w.log.Error().Err(err).Msg("failed to claim workflow instance")
		return false
	}
	if inst == nil {
		return false
	}

	w.log.Info().
		Str("instance_id", inst.ID).
		Str("workflow", inst.Workflow).
		Int("attempt", inst.Attempts).
		Msg("resuming workflow instance")

	status := w.executor.Execute(ctx, inst)
	w.log.Debug().Str("instance_id", inst.ID).Str("status", string(status)).Msg("workflow instance processed")
	return true
}
