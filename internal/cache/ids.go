package cache

import (
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
)

// IDCache maps Clerk subject ids to internal user ids.
type IDCache struct {
	lru *lru.Cache
}

func NewIDCache(size int) (*IDCache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &IDCache{lru: c}, nil
}

func (c *IDCache) Get(clerkID string) (uuid.UUID, bool) {
	v, ok := c.lru.Get(clerkID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

func (c *IDCache) Add(clerkID string, id uuid.UUID) {
	c.lru.Add(clerkID, id)
}

func (c *IDCache) Remove(clerkID string) {
	c.lru.Remove(clerkID)
}
