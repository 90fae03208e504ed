package workflow

import (
	"context"
	"sort"
	"sync"
	"time"

	domain "line-dify-bridge/internal/domain/workflow"
)

// InMemoryRepository is a thread-safe workflow store used by tests and local runs without Postgres.
type InMemoryRepository struct {
	mu        sync.Mutex
	instances map[string]*domain.Instance
	events    map[string]string
	steps     map[string]map[string]domain.StepRecord
	now       func() time.Time
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		instances: make(map[string]*domain.Instance),
		events:    make(map[string]string),
		steps:     make(map[string]map[string]domain.StepRecord),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *InMemoryRepository) Create(ctx context.Context, inst *domain.Instance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if inst.WebhookEventID != "" {
		if _, ok := r.events[inst.WebhookEventID]; ok {
			return domain.ErrDuplicateEvent
		}
		r.events[inst.WebhookEventID] = inst.ID
	}
	now := r.now()
	inst.CreatedAt, inst.UpdatedAt = now, now
	stored := *inst
	stored.Steps = nil
	r.instances[inst.ID] = &stored
	return nil
}

func (r *InMemoryRepository) Get(ctx context.Context, id string) (*domain.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.instances[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *inst
	for _, step := range r.steps[id] {
		out.Steps = append(out.Steps, step)
	}
	sort.Slice(out.Steps, func(i, j int) bool { return out.Steps[i].CreatedAt.Before(out.Steps[j].CreatedAt) })
	return &out, nil
}

func (r *InMemoryRepository) Claim(ctx context.Context, id string, lease time.Duration) (*domain.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.instances[id]
	if !ok || !r.claimable(inst) {
		return nil, nil
	}
	return r.lease(inst, lease), nil
}

func (r *InMemoryRepository) ClaimNext(ctx context.Context, lease time.Duration) (*domain.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var next *domain.Instance
	for _, inst := range r.instances {
		if !r.claimable(inst) {
			continue
		}
		if next == nil || inst.CreatedAt.Before(next.CreatedAt) {
			next = inst
		}
	}
	if next == nil {
		return nil, nil
	}
	return r.lease(next, lease), nil
}

func (r *InMemoryRepository) claimable(inst *domain.Instance) bool {
	switch inst.Status {
	case domain.StatusPending:
		return inst.LeaseUntil == nil || !inst.LeaseUntil.After(r.now())
	case domain.StatusRunning:
		return inst.LeaseUntil != nil && inst.LeaseUntil.Before(r.now())
	}
	return false
}

func (r *InMemoryRepository) lease(inst *domain.Instance, lease time.Duration) *domain.Instance {
	now := r.now()
	until := now.Add(lease)
	inst.Status = domain.StatusRunning
	inst.Attempts++
	inst.LeaseUntil = &until
	inst.UpdatedAt = now
	out := *inst
	return &out
}

func (r *InMemoryRepository) FindStep(ctx context.Context, instanceID, name string) (*domain.StepRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	step, ok := r.steps[instanceID][name]
	if !ok {
		return nil, nil
	}
	return &step, nil
}

func (r *InMemoryRepository) SaveStep(ctx context.Context, instanceID string, step domain.StepRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.instances[instanceID]; !ok {
		return domain.ErrNotFound
	}
	byName := r.steps[instanceID]
	if byName == nil {
		byName = make(map[string]domain.StepRecord)
		r.steps[instanceID] = byName
	}
	now := r.now()
	if prev, ok := byName[step.Name]; ok {
		step.CreatedAt = prev.CreatedAt
	} else {
		step.CreatedAt = now
	}
	step.UpdatedAt = now
	byName[step.Name] = step
	return nil
}

func (r *InMemoryRepository) Complete(ctx context.Context, id string) error {
	return r.finish(id, domain.StatusCompleted, func(inst *domain.Instance, now time.Time) {
		inst.LastError = ""
		inst.CompletedAt = &now
	})
}

func (r *InMemoryRepository) Fail(ctx context.Context, id string, reason string) error {
	return r.finish(id, domain.StatusFailed, func(inst *domain.Instance, now time.Time) {
		inst.LastError = reason
		inst.CompletedAt = &now
	})
}

func (r *InMemoryRepository) Release(ctx context.Context, id string, reason string, delay time.Duration) error {
	return r.finish(id, domain.StatusPending, func(inst *domain.Instance, now time.Time) {
		inst.LastError = reason
		if delay > 0 {
			notBefore := now.Add(delay)
			inst.LeaseUntil = &notBefore
		}
	})
}

func (r *InMemoryRepository) finish(id string, target domain.Status, apply func(inst *domain.Instance, now time.Time)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.instances[id]
	if !ok || inst.Status != domain.StatusRunning {
		return domain.ErrNotFound
	}
	next, err := inst.Status.TransitionTo(target)
	if err != nil {
		return err
	}
	now := r.now()
	inst.Status = next
	inst.LeaseUntil = nil
	apply(inst, now)
	inst.UpdatedAt = now
	return nil
}

func (r *InMemoryRepository) RecoverStale(ctx context.Context, maxAttempts int) (int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var released, failed int64
	for _, inst := range r.instances {
		if inst.Status != domain.StatusRunning || inst.LeaseUntil == nil || !inst.LeaseUntil.Before(now) {
			continue
		}
		inst.LeaseUntil = nil
		inst.UpdatedAt = now
		if inst.Attempts >= maxAttempts {
			inst.Status = domain.StatusFailed
			inst.LastError = "lease expired after final attempt"
			inst.CompletedAt = &now
			failed++
			continue
		}
		inst.Status = domain.StatusPending
		inst.LastError = "lease expired"
		released++
	}
	return released, failed, nil
}

func (r *InMemoryRepository) PurgeFinished(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var purged int64
	for id, inst := range r.instances {
		if !inst.Status.IsTerminal() || !inst.UpdatedAt.Before(cutoff) {
			continue
		}
		delete(r.instances, id)
		delete(r.steps, id)
		if inst.WebhookEventID != "" {
			delete(r.events, inst.WebhookEventID)
		}
		purged++
	}
	return purged, nil
}

// SetClock overrides the repository clock.
func (r *InMemoryRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

var _ domain.Repository = (*InMemoryRepository)(nil)
