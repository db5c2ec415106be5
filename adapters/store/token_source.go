package store

import (
	"context"
	"time"

	"github.com/layer-3/apiclient/core"
	"github.com/layer-3/apiclient/ports"
	"golang.org/x/oauth2"
)

type tokenSource struct {
	ctx       context.Context
	store     ports.CredentialStore
	inspector ports.TokenInspector
}

// TokenSource exposes the stored credential to code built on oauth2 transports.
// It never renews; renewal stays with the client that owns the session.
func TokenSource(ctx context.Context, store ports.CredentialStore, inspector ports.TokenInspector) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, store: store, inspector: inspector}
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	credential, ok := ts.store.Get(ts.ctx)
	if !ok || credential.AccessToken == "" {
		return nil, core.ErrNoCredential
	}

	var expiry time.Time
	if ts.inspector != nil {
		if exp, err := ts.inspector.ExpiresAt(credential.AccessToken); err == nil {
			expiry = exp
		}
	}

	return &oauth2.Token{
		AccessToken:  credential.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: credential.RefreshToken,
		Expiry:       expiry,
	}, nil
}
