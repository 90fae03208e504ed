package workflow

import (
	"context"
	"time"
)

// Repository persists workflow instances and their step log.
type Repository interface {
	// Create stores a pending instance. A repeated webhook event id yields ErrDuplicateEvent.
	Create(ctx context.Context, inst *Instance) error
	// Get returns the instance with its steps or ErrNotFound.
	Get(ctx context.Context, id string) (*Instance, error)
	// Claim leases one specific pending instance. It returns nil when another
	// runner holds it.
	Claim(ctx context.Context, id string, lease time.Duration) (*Instance, error)
	// ClaimNext leases the oldest runnable instance: pending and past its retry
	// delay, or running with an expired lease. It returns nil when there is none.
	ClaimNext(ctx context.Context, lease time.Duration) (*Instance, error)

	FindStep(ctx context.Context, instanceID, name string) (*StepRecord, error)
	SaveStep(ctx context.Context, instanceID string, step StepRecord) error

	Complete(ctx context.Context, id string) error
	Fail(ctx context.Context, id string, reason string) error
	// Release returns a running instance to pending. It becomes claimable again
	// once delay has passed.
	Release(ctx context.Context, id string, reason string, delay time.Duration) error

	// RecoverStale fails expired leases that exhausted maxAttempts and releases the rest.
	RecoverStale(ctx context.Context, maxAttempts int) (released, failed int64, err error)
	// PurgeFinished deletes terminal instances last updated before cutoff.
	PurgeFinished(ctx context.Context, cutoff time.Time) (int64, error)
}
