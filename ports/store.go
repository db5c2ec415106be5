package ports

import (
	"context"
	"time"

	"github.com/layer-3/apiclient/core"
)

// Medium is a durable key/value storage backing the credential store
type Medium interface {
	Read(ctx context.Context, key string) (string, error)
	Write(ctx context.Context, key, value string) error
	Remove(ctx context.Context, keys ...string) error
}

// CredentialStore holds the session credential. Implementations never fail:
// an unavailable medium reads as an empty store.
type CredentialStore interface {
	Get(ctx context.Context) (core.Credential, bool)
	Set(ctx context.Context, credential core.Credential)
	Clear(ctx context.Context)
}

// RevocationStore records invalidated refresh tokens on the sandbox backend
type RevocationStore interface {
	InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error
	IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error)

	// ClaimToken invalidates tokenID and reports whether this call did it.
	// Of several concurrent claims on one id exactly one returns true.
	ClaimToken(ctx context.Context, tokenID string, expiry time.Duration) (bool, error)
}
