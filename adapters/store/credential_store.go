package store

import (
	"context"
	"errors"

	"github.com/layer-3/apiclient/core"
	"github.com/layer-3/apiclient/ports"
	"github.com/rs/zerolog"
)

// Key names. Each token is written under its canonical name and a legacy
// alias that older readers look up directly.
const (
	AccessKey       = "access_token"
	RefreshKey      = "refresh_token"
	AccessKeyAlias  = "accessToken"
	RefreshKeyAlias = "refreshToken"
)

var allKeys = []string{AccessKey, AccessKeyAlias, RefreshKey, RefreshKeyAlias}

// CredentialStore persists the session credential on a Medium. All medium
// failures are logged and otherwise ignored.
type CredentialStore struct {
	medium ports.Medium
	logger zerolog.Logger
}

var _ ports.CredentialStore = (*CredentialStore)(nil)

// NewCredentialStore creates a store on medium. A nil medium behaves as
// unavailable storage.
func NewCredentialStore(medium ports.Medium, logger zerolog.Logger) *CredentialStore {
	if medium == nil {
		medium = UnavailableMedium{}
	}
	return &CredentialStore{
		medium: medium,
		logger: logger.With().Str("component", "credential_store").Logger(),
	}
}

// Get returns the stored credential. ok is false when no token is stored or
// the medium cannot be read.
func (s *CredentialStore) Get(ctx context.Context) (core.Credential, bool) {
	credential := core.Credential{
		AccessToken:  s.read(ctx, AccessKey, AccessKeyAlias),
		RefreshToken: s.read(ctx, RefreshKey, RefreshKeyAlias),
	}
	return credential, !credential.IsZero()
}

// Set persists both tokens. An empty token removes its keys.
func (s *CredentialStore) Set(ctx context.Context, credential core.Credential) {
	s.write(ctx, credential.AccessToken, AccessKey, AccessKeyAlias)
	s.write(ctx, credential.RefreshToken, RefreshKey, RefreshKeyAlias)
}

// Clear erases every stored token
func (s *CredentialStore) Clear(ctx context.Context) {
	if err := s.medium.Remove(ctx, allKeys...); err != nil {
		s.logger.Warn().Err(err).Msg("clearing credentials")
	}
}

func (s *CredentialStore) read(ctx context.Context, keys ...string) string {
	for _, key := range keys {
		value, err := s.medium.Read(ctx, key)
		if err == nil && value != "" {
			return value
		}
		if err != nil && !errors.Is(err, core.ErrKeyNotFound) {
			s.logger.Warn().Err(err).Str("key", key).Msg("reading credential")
			return ""
		}
	}
	return ""
}

func (s *CredentialStore) write(ctx context.Context, value string, keys ...string) {
	if value == "" {
		if err := s.medium.Remove(ctx, keys...); err != nil {
			s.logger.Warn().Err(err).Msg("removing credential")
		}
		return
	}
	// a name and its alias hold the same value or are both absent
	for _, key := range keys {
		if err := s.medium.Write(ctx, key, value); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("writing credential")
			if rerr := s.medium.Remove(ctx, keys...); rerr != nil {
				s.logger.Warn().Err(rerr).Strs("keys", keys).Msg("rolling back credential")
			}
			return
		}
	}
}
