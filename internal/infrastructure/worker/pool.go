package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"line-dify-bridge/internal/domain/workflow"
)

const stopTimeout = 30 * time.Second

// Executor runs a claimed workflow instance.
type Executor interface {
	Execute(ctx context.Context, inst *workflow.Instance) workflow.Status
}

// Pool manages the workers that resume released and orphaned workflow instances.
type Pool struct {
	workers      []*Worker
	repo         workflow.Repository
	executor     Executor
	workerCount  int
	pollInterval time.Duration
	lease        time.Duration
	log          zerolog.Logger
	wg           sync.WaitGroup
	cancel       context.CancelFunc
}

// Config contains worker pool configuration.
type Config struct {
	WorkerCount  int
	PollInterval time.Duration
	Lease        time.Duration
}

func NewPool(repo workflow.Repository, executor Executor, cfg Config, log zerolog.Logger) *Pool {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &Pool{
		repo:         repo,
		executor:     executor,
		workerCount:  cfg.WorkerCount,
		pollInterval: cfg.PollInterval,
		lease:        cfg.Lease,
		log:          log.With().Str("component", "worker-pool").Logger(),
	}
}

// Start launches the workers. They run until Stop or until ctx ends.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.log.Info().Int("worker_count", p.workerCount).Dur("poll_interval", p.pollInterval).Msg("starting worker pool")

	p.workers = make([]*Worker, p.workerCount)
	for i := 0; i < p.workerCount; i++ {
		w := NewWorker(i+1, p.repo, p.executor, p.pollInterval, p.lease, p.log)
		p.workers[i] = w

		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Start(ctx)
		}(w)
	}
}

// Stop asks the workers to finish their current instance and waits for them.
// Instances still running after the stop timeout are interrupted and released.
func (p *Pool) Stop() {
	p.log.Info().Msg("stopping worker pool")
	for _, w := range p.workers {
		w.Stop()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info().Msg("all workers stopped gracefully")
	case <-time.After(stopTimeout):
		p.log.Warn().Msg("worker pool shutdown timed out, interrupting running instances")
		p.cancel()
		<-done
	}
	if p.cancel != nil {
		p.cancel()
	}
}
