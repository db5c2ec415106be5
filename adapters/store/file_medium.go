package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/layer-3/apiclient/core"
	"github.com/layer-3/apiclient/ports"
)

// FileMedium keeps values in a JSON document on disk. The file is re-read on
// every access so separate processes observe each other's writes.
type FileMedium struct {
	path string
	mu   sync.Mutex
}

var _ ports.Medium = (*FileMedium)(nil)

// NewFileMedium creates a medium backed by the file at path. The file is
// created on first write.
func NewFileMedium(path string) *FileMedium {
	return &FileMedium{path: path}
}

func (m *FileMedium) Read(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := m.load()
	if err != nil {
		return "", err
	}
	value, ok := data[key]
	if !ok {
		return "", core.ErrKeyNotFound
	}
	return value, nil
}

func (m *FileMedium) Write(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := m.load()
	if err != nil {
		return err
	}
	data[key] = value
	return m.save(data)
}

func (m *FileMedium) Remove(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := m.load()
	if err != nil {
		return err
	}
	for _, key := range keys {
		delete(data, key)
	}
	return m.save(data)
}

func (m *FileMedium) load() (map[string]string, error) {
	raw, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrMediumUnavailable, err)
	}

	data := make(map[string]string)
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", core.ErrMediumUnavailable, m.path, err)
	}
	return data, nil
}

func (m *FileMedium) save(data map[string]string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: %w", core.ErrMediumUnavailable, err)
	}
	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrMediumUnavailable, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", core.ErrMediumUnavailable, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", core.ErrMediumUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrMediumUnavailable, err)
	}
	if err := os.Rename(tmp.Name(), m.path); err != nil {
		return fmt.Errorf("%w: %w", core.ErrMediumUnavailable, err)
	}
	return nil
}
