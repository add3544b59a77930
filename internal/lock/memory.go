package lock

import (
	"context"
	"sync"
)

// MemoryLocker serializes critical sections within a single process. It
// implements the same Locker contract as the Redis client and exists
// for unit tests and single-node development, where a shared store is
// overkill. It provides no cross-process exclusion.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMemoryLocker returns an empty in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*sync.Mutex)}
}

// WithLock runs fn while holding the per-key mutex.
func (m *MemoryLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	m.mu.Unlock()

	l.Lock()
	defer l.Unlock()
	return fn(ctx)
}
