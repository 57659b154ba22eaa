// Package ratelimit counts requests per key in fixed windows. Counters live in
// a Store so several service instances can share them through Redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Store increments a counter that expires ttl after its first increment.
type Store interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type Decision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
}

type Limiter struct {
	store  Store
	limit  int64
	window time.Duration
	prefix string
}

func New(store Store, limit int64, window time.Duration, prefix string) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("ratelimit: store is required")
	}
	if limit <= 0 || window <= 0 {
		return nil, fmt.Errorf("ratelimit: invalid limit %d per %s", limit, window)
	}
	return &Limiter{store: store, limit: limit, window: window, prefix: prefix}, nil
}

func (l *Limiter) Window() time.Duration { return l.window }

// Allow counts one request for key.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	n, err := l.store.Incr(ctx, l.prefix+key, l.window)
	if err != nil {
		return Decision{}, err
	}
	remaining := l.limit - n
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: n <= l.limit, Limit: l.limit, Remaining: remaining}, nil
}

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore keeps counters in process with an injected clock.
type MemoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{now: now, entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[key]
	if !ok || !now.Before(e.expiresAt) {
		e = memoryEntry{expiresAt: now.Add(ttl)}
	}
	e.count++
	s.entries[key] = e
	return e.count, nil
}

// Sweep drops expired counters and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
