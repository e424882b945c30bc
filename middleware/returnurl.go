package middleware

import (
	"context"
	"sync"
)

// ReturnURLStore persists the URL a signed-out user asked for, so it can be
// restored after login.
type ReturnURLStore interface {
	Save(ctx context.Context, url string) error
	// Take returns the saved URL and forgets it.
	Take(ctx context.Context) (string, bool)
}

// MemoryReturnURLStore keeps the last saved URL in process.
type MemoryReturnURLStore struct {
	mu  sync.Mutex
	url string
}

func NewMemoryReturnURLStore() *MemoryReturnURLStore {
	return &MemoryReturnURLStore{}
}

func (s *MemoryReturnURLStore) Save(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = url
	return nil
}

func (s *MemoryReturnURLStore) Take(context.Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	url := s.url
	s.url = ""
	return url, url != ""
}
