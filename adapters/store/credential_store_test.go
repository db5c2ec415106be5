package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/layer-3/apiclient/adapters/store"
	"github.com/layer-3/apiclient/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	medium := store.NewMemoryMedium()
	s := store.NewCredentialStore(medium, zerolog.Nop())

	_, ok := s.Get(ctx)
	require.False(t, ok)

	s.Set(ctx, core.Credential{AccessToken: "a1", RefreshToken: "r1"})

	got, ok := s.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, core.Credential{AccessToken: "a1", RefreshToken: "r1"}, got)

	// both the canonical names and the aliases are written
	for key, want := range map[string]string{
		store.AccessKey:       "a1",
		store.AccessKeyAlias:  "a1",
		store.RefreshKey:      "r1",
		store.RefreshKeyAlias: "r1",
	} {
		value, err := medium.Read(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, want, value, key)
	}
}

func TestCredentialStoreSetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	medium := store.NewMemoryMedium()
	s := store.NewCredentialStore(medium, zerolog.Nop())

	credential := core.Credential{AccessToken: "a", RefreshToken: "r"}
	s.Set(ctx, credential)
	s.Set(ctx, credential)

	got, _ := s.Get(ctx)
	assert.Equal(t, credential, got)
	assert.Equal(t, 4, medium.Len())
}

func TestCredentialStoreReadsAliasWhenCanonicalMissing(t *testing.T) {
	ctx := context.Background()
	medium := store.NewMemoryMedium()
	require.NoError(t, medium.Write(ctx, store.AccessKeyAlias, "legacy-access"))
	require.NoError(t, medium.Write(ctx, store.RefreshKeyAlias, "legacy-refresh"))

	got, ok := store.NewCredentialStore(medium, zerolog.Nop()).Get(ctx)

	require.True(t, ok)
	assert.Equal(t, "legacy-access", got.AccessToken)
	assert.Equal(t, "legacy-refresh", got.RefreshToken)
}

func TestCredentialStorePartialCredential(t *testing.T) {
	ctx := context.Background()
	s := store.NewCredentialStore(store.NewMemoryMedium(), zerolog.Nop())

	s.Set(ctx, core.Credential{AccessToken: "only-access"})

	got, ok := s.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, "only-access", got.AccessToken)
	assert.Empty(t, got.RefreshToken)
}

func TestCredentialStoreClear(t *testing.T) {
	ctx := context.Background()
	medium := store.NewMemoryMedium()
	s := store.NewCredentialStore(medium, zerolog.Nop())

	s.Set(ctx, core.Credential{AccessToken: "a", RefreshToken: "r"})
	s.Clear(ctx)

	_, ok := s.Get(ctx)
	assert.False(t, ok)
	assert.Zero(t, medium.Len())
}

func TestCredentialStoreFailsSoft(t *testing.T) {
	ctx := context.Background()

	for name, s := range map[string]*store.CredentialStore{
		"unavailable": store.NewCredentialStore(store.UnavailableMedium{}, zerolog.Nop()),
		"nil":         store.NewCredentialStore(nil, zerolog.Nop()),
	} {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				s.Set(ctx, core.Credential{AccessToken: "a", RefreshToken: "r"})
				s.Clear(ctx)
			})
			_, ok := s.Get(ctx)
			assert.False(t, ok)
		})
	}
}

func TestUnavailableMediumErrors(t *testing.T) {
	_, err := store.UnavailableMedium{}.Read(context.Background(), "k")
	assert.True(t, errors.Is(err, core.ErrMediumUnavailable))
}

// aliasFailingMedium rejects writes to the alias keys only
type aliasFailingMedium struct {
	*store.MemoryMedium
}

func (m aliasFailingMedium) Write(ctx context.Context, key, value string) error {
	if key == store.AccessKeyAlias || key == store.RefreshKeyAlias {
		return core.ErrMediumUnavailable
	}
	return m.MemoryMedium.Write(ctx, key, value)
}

func TestCredentialStoreKeepsAliasesInSync(t *testing.T) {
	ctx := context.Background()
	memory := store.NewMemoryMedium()
	require.NoError(t, memory.Write(ctx, store.AccessKey, "stale"))
	require.NoError(t, memory.Write(ctx, store.AccessKeyAlias, "stale"))
	s := store.NewCredentialStore(aliasFailingMedium{memory}, zerolog.Nop())

	s.Set(ctx, core.Credential{AccessToken: "a1", RefreshToken: "r1"})

	for _, key := range []string{store.AccessKey, store.AccessKeyAlias, store.RefreshKey, store.RefreshKeyAlias} {
		_, err := memory.Read(ctx, key)
		assert.ErrorIs(t, err, core.ErrKeyNotFound, key)
	}
	_, ok := s.Get(ctx)
	assert.False(t, ok, "a half-written credential must not be read back")
}
