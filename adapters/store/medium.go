package store

import (
	"context"
	"sync"

	"github.com/layer-3/apiclient/core"
	"github.com/layer-3/apiclient/ports"
)

// MemoryMedium keeps values for the lifetime of the process
type MemoryMedium struct {
	data map[string]string
	mu   sync.RWMutex
}

var _ ports.Medium = (*MemoryMedium)(nil)

// NewMemoryMedium creates an empty in-memory medium
func NewMemoryMedium() *MemoryMedium {
	return &MemoryMedium{data: make(map[string]string)}
}

func (m *MemoryMedium) Read(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.data[key]
	if !ok {
		return "", core.ErrKeyNotFound
	}
	return value, nil
}

func (m *MemoryMedium) Write(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = value
	return nil
}

func (m *MemoryMedium) Remove(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

// Len returns the number of stored keys
func (m *MemoryMedium) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// UnavailableMedium stands in when no storage exists, e.g. a headless run
type UnavailableMedium struct{}

var _ ports.Medium = UnavailableMedium{}

func (UnavailableMedium) Read(context.Context, string) (string, error) {
	return "", core.ErrMediumUnavailable
}

func (UnavailableMedium) Write(context.Context, string, string) error {
	return core.ErrMediumUnavailable
}

func (UnavailableMedium) Remove(context.Context, ...string) error {
	return core.ErrMediumUnavailable
}
