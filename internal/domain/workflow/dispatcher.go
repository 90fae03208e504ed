package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrDispatcherClosed is returned by Dispatch after Close.
var ErrDispatcherClosed = errors.New("workflow dispatcher closed")

// Deduper remembers recently dispatched webhook event ids.
type Deduper interface {
	Seen(eventID string) bool
	Mark(eventID string)
}

type nopDeduper struct{}

func (nopDeduper) Seen(string) bool { return false }
func (nopDeduper) Mark(string)      {}

// Dispatcher creates durable instances and starts them without waiting.
// An instance outlives the request that created it; a shutdown interrupts it
// and the worker pool resumes it later.
type Dispatcher struct {
	repo   Repository
	engine *Engine
	dedupe Deduper
	lease  time.Duration
	log    zerolog.Logger

	root   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(repo Repository, engine *Engine, dedupe Deduper, lease time.Duration, log zerolog.Logger) *Dispatcher {
	if dedupe == nil {
		dedupe = nopDeduper{}
	}
	root, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		repo:   repo,
		engine: engine,
		dedupe: dedupe,
		lease:  lease,
		log:    log.With().Str("component", "workflow-dispatcher").Logger(),
		root:   root,
		cancel: cancel,
	}
}

// Dispatch persists a pending line-message instance for params and starts it.
// It returns once the instance is durable. A redelivered event yields ErrDuplicateEvent.
func (d *Dispatcher) Dispatch(ctx context.Context, params Params) (*Instance, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, ErrDispatcherClosed
	}

	if params.WebhookEventID != "" && d.dedupe.Seen(params.WebhookEventID) {
		return nil, ErrDuplicateEvent
	}

	inst := &Instance{
		ID:             uuid.NewString(),
		Workflow:       LineMessageWorkflowName,
		WebhookEventID: params.WebhookEventID,
		Params:         params,
		Status:         StatusPending,
	}
	if err := d.repo.Create(ctx, inst); err != nil {
		if errors.Is(err, ErrDuplicateEvent) {
			d.dedupe.Mark(params.WebhookEventID)
		}
		return nil, err
	}
	if params.WebhookEventID != "" {
		d.dedupe.Mark(params.WebhookEventID)
	}

	d.wg.Add(1)
	go d.start(context.WithoutCancel(ctx), inst.ID)

	d.log.Info().Str("instance_id", inst.ID).Str("message_type", params.MessageType).Msg("workflow dispatched")
	return inst, nil
}

func (d *Dispatcher) start(ctx context.Context, id string) {
	defer d.wg.Done()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(d.root, cancel)
	defer stop()

	claimed, err := d.repo.Claim(ctx, id, d.lease)
	if err != nil {
		d.log.Error().Err(err).Str("instance_id", id).Msg("failed to claim dispatched instance")
		return
	}
	if claimed == nil {
		// a worker got there first
		return
	}
	d.engine.Execute(ctx, claimed)
}

// Close stops accepting work and waits for in-flight instances until ctx ends,
// then interrupts the rest so they are released for resume.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

// Wait blocks until every dispatched instance has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
