package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/layer-3/apiclient/core"
	"github.com/layer-3/apiclient/ports"
	"github.com/redis/go-redis/v9"
)

// RedisMedium stores credential keys in Redis so several processes share one session
type RedisMedium struct {
	client redis.UniversalClient
	prefix string
}

var _ ports.Medium = (*RedisMedium)(nil)

// NewRedisMedium creates a medium writing keys under prefix
func NewRedisMedium(client redis.UniversalClient, prefix string) *RedisMedium {
	return &RedisMedium{client: client, prefix: prefix}
}

func (m *RedisMedium) Read(ctx context.Context, key string) (string, error) {
	value, err := m.client.Get(ctx, m.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", core.ErrKeyNotFound
		}
		return "", fmt.Errorf("%w: %w", core.ErrMediumUnavailable, err)
	}
	return value, nil
}

func (m *RedisMedium) Write(ctx context.Context, key, value string) error {
	if err := m.client.Set(ctx, m.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrMediumUnavailable, err)
	}
	return nil
}

func (m *RedisMedium) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = m.prefix + key
	}
	if err := m.client.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrMediumUnavailable, err)
	}
	return nil
}
