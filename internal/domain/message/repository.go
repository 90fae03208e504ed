package message

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("message record not found")

// Repository exposes data access for message records. The store is append-only.
type Repository interface {
	// Insert assigns ID, CreatedAt and UpdatedAt on rec.
	Insert(ctx context.Context, rec *Record) error
	FindByID(ctx context.Context, id int64) (*Record, error)
	// FindLatestByUserID returns nil without error when the user has no history.
	FindLatestByUserID(ctx context.Context, userID string) (*Record, error)
	List(ctx context.Context, filter Filter) ([]*Record, int64, error)
}
