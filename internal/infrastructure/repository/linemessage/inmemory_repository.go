package linemessage

import (
	"context"
	"sort"
	"sync"
	"time"

	domain "line-dify-bridge/internal/domain/message"
)

// InMemoryRepository is a thread-safe repository used by tests and local runs without Postgres.
type InMemoryRepository struct {
	mu      sync.RWMutex
	nextID  int64
	entries []domain.Record
}

// NewInMemoryRepository returns an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{nextID: 1}
}

func (r *InMemoryRepository) Insert(ctx context.Context, rec *domain.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		now := time.Now().UTC()
		rec.CreatedAt, rec.UpdatedAt = now, now
	}
	rec.ID = r.nextID
	r.nextID++
	r.entries = append(r.entries, *rec)
	return nil
}

func (r *InMemoryRepository) FindByID(ctx context.Context, id int64) (*domain.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.entries {
		if r.entries[i].ID == id {
			rec := r.entries[i]
			return &rec, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *InMemoryRepository) FindLatestByUserID(ctx context.Context, userID string) (*domain.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *domain.Record
	for i := range r.entries {
		rec := r.entries[i]
		if rec.UserID != userID {
			continue
		}
		if latest == nil || newerThan(rec, *latest) {
			latest = &rec
		}
	}
	return latest, nil
}

func (r *InMemoryRepository) List(ctx context.Context, filter domain.Filter) ([]*domain.Record, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]domain.Record, 0, len(r.entries))
	for _, rec := range r.entries {
		if filter.ConversationID != "" && rec.ConversationID != filter.ConversationID {
			continue
		}
		if filter.UserID != "" && rec.UserID != filter.UserID {
			continue
		}
		if filter.StartDate != nil && rec.CreatedAt.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && rec.CreatedAt.After(*filter.EndDate) {
			continue
		}
		matched = append(matched, rec)
	}
	sort.SliceStable(matched, func(i, j int) bool { return newerThan(matched[i], matched[j]) })

	total := int64(len(matched))
	start := min(filter.Offset, len(matched))
	end := len(matched)
	if filter.Limit > 0 {
		end = min(start+filter.Limit, len(matched))
	}

	records := make([]*domain.Record, 0, end-start)
	for i := start; i < end; i++ {
		rec := matched[i]
		records = append(records, &rec)
	}
	return records, total, nil
}

// Len returns the number of stored records.
func (r *InMemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func newerThan(a, b domain.Record) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

var _ domain.Repository = (*InMemoryRepository)(nil)
