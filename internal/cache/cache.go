// Package cache holds the last known authoritative snapshot of one resource.
//
// The backend owns the data; the cache only mirrors it. All writes funnel
// through Commit, which is a compare-and-swap on the snapshot's FetchSeq:
// a read issued later always wins over a read issued earlier, even when the
// earlier read's network response arrives last.
package cache

import (
	"sync"
	"time"

	"github.com/novafi/novafi/internal/entity"
)

// Cache stores the committed snapshot for a single resource type.
type Cache[T any] struct {
	mu      sync.RWMutex
	snap    entity.Snapshot[T]
	nextSeq uint64
}

// New returns a cache holding an empty snapshot with FetchSeq 0.
func New[T any]() *Cache[T] {
	return &Cache[T]{}
}

// Current returns the last committed snapshot. Never blocks on I/O.
func (c *Cache[T]) Current() entity.Snapshot[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// NextSeq allocates the sequence number for a read about to be issued.
// Sequence numbers are strictly increasing per cache.
func (c *Cache[T]) NextSeq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSeq++
	return c.nextSeq
}

// Commit replaces the snapshot iff candidate.FetchSeq is greater than the
// committed one. A stale candidate is dropped silently; the returned bool
// exists for observability, rejection is expected under reordered replies.
func (c *Cache[T]) Commit(candidate entity.Snapshot[T]) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if candidate.FetchSeq <= c.snap.FetchSeq {
		return false
	}
	if candidate.FetchedAt.IsZero() {
		candidate.FetchedAt = time.Now()
	}
	c.snap = candidate
	return true
}
