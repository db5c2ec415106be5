package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/layer-3/apiclient/core"
)

// tokenPair is the body returned by the login and renewal endpoints
type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

type refreshBody struct {
	Refresh string `json:"refresh"`
}

// renew calls the renewal endpoint. It authenticates with the refresh token
// in the body only, never with the expired access token.
func (c *Client) renew(ctx context.Context, refreshToken string) (core.Credential, error) {
	pair, err := c.exchange(ctx, c.refreshPath, refreshBody{Refresh: refreshToken})
	if err != nil {
		return core.Credential{}, err
	}
	return core.Credential{AccessToken: pair.Access, RefreshToken: pair.Refresh}, nil
}

// Login posts credentials to the login endpoint and stores the returned tokens
func (c *Client) Login(ctx context.Context, credentials any) error {
	pair, err := c.exchange(ctx, c.loginPath, credentials)
	if err != nil {
		return core.Normalize(err)
	}
	if pair.Access == "" {
		return core.Normalize(core.ErrMissingAccessToken)
	}

	c.store.Set(ctx, core.Credential{AccessToken: pair.Access, RefreshToken: pair.Refresh})
	c.logger.Info().Msg("logged in")
	return nil
}

// Logout tells the backend (when a logout path is configured) and clears the
// stored credential. The backend call is best effort.
func (c *Client) Logout(ctx context.Context) {
	credential, ok := c.store.Get(ctx)
	if ok && c.logoutPath != "" && credential.RefreshToken != "" {
		at := &attempt{
			req:       &core.Request{Method: http.MethodPost, Path: c.logoutPath, JSON: refreshBody{Refresh: credential.RefreshToken}},
			requestID: newRequestID(),
			retried:   true,
		}
		resp, err := c.roundTrip(ctx, at, credential.AccessToken)
		if classify(at, resp, err) != outcomeSuccess {
			c.logger.Warn().Err(c.failure(at, resp, err)).Msg("logout notification failed")
		}
	}

	c.store.Clear(ctx)
	c.logger.Info().Msg("logged out")
}

// SessionInfo describes the stored session
type SessionInfo struct {
	Authenticated   bool
	HasRefresh      bool
	AccessExpiresAt time.Time // zero for opaque tokens
}

// AccessExpired reports whether the access token is known to be expired
func (s SessionInfo) AccessExpired(now time.Time) bool {
	return !s.AccessExpiresAt.IsZero() && !now.Before(s.AccessExpiresAt)
}

// Session reports the stored session without touching the network
func (c *Client) Session(ctx context.Context) SessionInfo {
	credential, ok := c.store.Get(ctx)
	if !ok {
		return SessionInfo{}
	}

	info := SessionInfo{
		Authenticated: credential.AccessToken != "",
		HasRefresh:    credential.RefreshToken != "",
	}
	if info.Authenticated && c.inspector != nil {
		if exp, err := c.inspector.ExpiresAt(credential.AccessToken); err == nil {
			info.AccessExpiresAt = exp
		}
	}
	return info
}

func (c *Client) exchange(ctx context.Context, path string, body any) (tokenPair, error) {
	at := &attempt{
		req:       &core.Request{Method: http.MethodPost, Path: path, JSON: body},
		requestID: newRequestID(),
		retried:   true,
		anonymous: true,
	}

	resp, err := c.roundTrip(ctx, at, "")
	if err != nil {
		return tokenPair{}, err
	}
	if classify(at, resp, nil) != outcomeSuccess {
		return tokenPair{}, &core.StatusError{Status: resp.Status, Header: resp.Header, Body: resp.Body}
	}

	var pair tokenPair
	if err := resp.Decode(&pair); err != nil {
		return tokenPair{}, fmt.Errorf("decoding token response: %w", err)
	}
	return pair, nil
}
