// Package ticket is a short-lived, at-most-once handoff for asynchronous
// scoring results: the chat handler resolves a ticket, the client polls
// it, and the first successful read consumes it.
package ticket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status int

const (
	StatusPending Status = iota
	StatusResolved
	StatusFailed
)

// Result is a scored practice turn.
type Result struct {
	Score int
	Tips  []string
}

type entry struct {
	status    Status
	result    Result
	createdAt time.Time
}

// Cache holds pending and resolved tickets in process memory. Entries
// that are never polled are evicted by the janitor after the TTL.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     time.Duration
	now     func() time.Time
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]*entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Create registers a new pending ticket and returns its opaque id.
func (c *Cache) Create() string {
	id := uuid.NewString()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = &entry{status: StatusPending, createdAt: c.now()}
	return id
}

// Resolve transitions a pending ticket to resolved. Resolving an unknown
// or already-settled ticket is a no-op.
func (c *Cache) Resolve(id string, result Result) {
	c.settle(id, StatusResolved, result)
}

// Fail transitions a pending ticket to failed.
func (c *Cache) Fail(id string) {
	c.settle(id, StatusFailed, Result{})
}

func (c *Cache) settle(id string, status Status, result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok || e.status != StatusPending {
		return
	}
	e.status = status
	e.result = result
}

// Take reads a ticket. Settled tickets (resolved or failed) are removed
// on read so delivery is at most once; pending tickets stay. The bool
// reports whether the ticket exists at all.
func (c *Cache) Take(id string) (Result, Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return Result{}, StatusPending, false
	}
	if e.status == StatusPending {
		return Result{}, StatusPending, true
	}
	delete(c.entries, id)
	return e.result, e.status, true
}

// StartJanitor evicts entries older than the TTL until ctx is done.
func (c *Cache) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.evictExpired()
			}
		}
	}()
}

func (c *Cache) evictExpired() {
	cutoff := c.now().Add(-c.ttl)
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.entries {
		if e.createdAt.Before(cutoff) {
			delete(c.entries, id)
		}
	}
}
