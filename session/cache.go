package session

import (
	"context"
	"sync"
)

// Cache stores the single verdict of a session.
//
// Implementations must be safe for concurrent use. Get reports false when no
// verdict is stored; expiry is decided by the caller through [Verdict.Expired].
type Cache interface {
	Get(ctx context.Context) (Verdict, bool, error)
	Set(ctx context.Context, v Verdict) error
	Invalidate(ctx context.Context) error
}

// MemoryCache is the in-process [Cache].
type MemoryCache struct {
	mu      sync.RWMutex
	verdict Verdict
	ok      bool
}

// NewMemoryCache returns an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

// Get returns the stored verdict, if any.
func (m *MemoryCache) Get(context.Context) (Verdict, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.verdict, m.ok, nil
}

// Set replaces the stored verdict.
func (m *MemoryCache) Set(_ context.Context, v Verdict) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verdict = v
	m.ok = true
	return nil
}

// Invalidate drops the stored verdict.
func (m *MemoryCache) Invalidate(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verdict = Verdict{}
	m.ok = false
	return nil
}
