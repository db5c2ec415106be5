package store

import (
	"context"
	"fmt"
	"time"

	"github.com/layer-3/apiclient/ports"
	"github.com/redis/go-redis/v9"
)

const DefaultRevocationPrefix = "apiclient:sandbox:invalidated:"

// RedisStore keeps the revocation list in Redis so every sandbox instance
// sharing the server rejects a used refresh token. Entries expire with the
// token they describe.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

var _ ports.RevocationStore = (*RedisStore)(nil)

// NewRedisStore creates a revocation store under prefix. An empty prefix
// selects DefaultRevocationPrefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRevocationPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	if err := s.client.Set(ctx, s.key(tokenID), "1", ttl(expiry)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}
	return nil
}

// ClaimToken relies on SET NX, so two instances rotating the same refresh
// token cannot both win
func (s *RedisStore) ClaimToken(ctx context.Context, tokenID string, expiry time.Duration) (bool, error) {
	claimed, err := s.client.SetNX(ctx, s.key(tokenID), "1", ttl(expiry)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim token: %w", err)
	}
	return claimed, nil
}

func (s *RedisStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token invalidation: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) key(tokenID string) string {
	return s.prefix + tokenID
}

// ttl keeps entries for at least a second; go-redis reads zero as "no expiry"
func ttl(expiry time.Duration) time.Duration {
	if expiry < time.Second {
		return time.Second
	}
	return expiry
}
