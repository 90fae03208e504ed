package dedupe

import (
	lru "github.com/hashicorp/golang-lru"
)

const DefaultSize = 4096

// EventCache remembers the most recent webhook event ids in process.
// It is a fast path only; the workflow store's unique index is authoritative.
type EventCache struct {
	cache *lru.Cache
}

func NewEventCache(size int) (*EventCache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &EventCache{cache: cache}, nil
}

func (c *EventCache) Seen(eventID string) bool {
	if eventID == "" {
		return false
	}
	return c.cache.Contains(eventID)
}

func (c *EventCache) Mark(eventID string) {
	if eventID == "" {
		return
	}
	c.cache.Add(eventID, struct{}{})
}

func (c *EventCache) Len() int {
	return c.cache.Len()
}
