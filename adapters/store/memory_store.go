package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/apiclient/ports"
)

// MemoryStore is an in-memory revocation list for the sandbox backend
type MemoryStore struct {
	invalidated map[string]time.Time
	mu          sync.RWMutex
}

// NewMemoryStore creates a new in-memory revocation store
func NewMemoryStore() ports.RevocationStore {
	return &MemoryStore{
		invalidated: make(map[string]time.Time),
	}
}

// InvalidateToken marks a refresh token id as used until expiry elapses
func (s *MemoryStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mark(tokenID, expiry)
	return nil
}

// ClaimToken marks tokenID as used unless a live entry already exists
func (s *MemoryStore) ClaimToken(ctx context.Context, tokenID string, expiry time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if until, ok := s.invalidated[tokenID]; ok && time.Now().Before(until) {
		return false, nil
	}
	s.mark(tokenID, expiry)
	return true, nil
}

// IsTokenInvalidated checks if a refresh token id was already used
func (s *MemoryStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	until, ok := s.invalidated[tokenID]
	if !ok {
		return false, nil
	}
	return time.Now().Before(until), nil
}

// mark must be called with mu held
func (s *MemoryStore) mark(tokenID string, expiry time.Duration) {
	until := time.Now().Add(expiry)
	s.invalidated[tokenID] = until

	time.AfterFunc(expiry, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		// A later invalidation of the same id extends the entry
		if stored, ok := s.invalidated[tokenID]; ok && !stored.After(until) {
			delete(s.invalidated, tokenID)
		}
	})
}
