package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/layer-3/apiclient/core"
	"github.com/layer-3/apiclient/ports"
	"github.com/rs/zerolog"
)

// Renewer exchanges a refresh token for a new credential. RefreshToken in
// the result is empty when the backend did not rotate it.
type Renewer interface {
	Renew(ctx context.Context, refreshToken string) (core.Credential, error)
}

// RenewerFunc adapts a function to a Renewer
type RenewerFunc func(ctx context.Context, refreshToken string) (core.Credential, error)

func (f RenewerFunc) Renew(ctx context.Context, refreshToken string) (core.Credential, error) {
	return f(ctx, refreshToken)
}

type refreshState int

const (
	stateIdle refreshState = iota
	stateRefreshing
)

const defaultRenewTimeout = 30 * time.Second

type renewal struct {
	token string
	err   error
}

// waiter is buffered so settling never blocks on a caller that gave up
type waiter chan renewal

// Coordinator runs at most one renewal at a time. Callers that fail
// authorization while a renewal is outstanding queue up and are resumed in
// arrival order once it settles.
type Coordinator struct {
	store     ports.CredentialStore
	renewer   Renewer
	onExpired ports.SessionExpiredHandler
	logger    zerolog.Logger
	timeout   time.Duration

	mu      sync.Mutex
	state   refreshState
	waiters []waiter
}

// NewCoordinator creates an idle coordinator. onExpired may be nil.
func NewCoordinator(store ports.CredentialStore, renewer Renewer, onExpired ports.SessionExpiredHandler, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		store:     store,
		renewer:   renewer,
		onExpired: onExpired,
		logger:    logger.With().Str("component", "refresh_coordinator").Logger(),
		timeout:   defaultRenewTimeout,
	}
}

// Renew returns a fresh access token for a request that was rejected while
// carrying failedToken. It starts a renewal when none is running, otherwise
// it waits for the running one. The renewal itself is detached from ctx.
func (c *Coordinator) Renew(ctx context.Context, failedToken string) (string, error) {
	w, token, start := c.register(ctx, failedToken)
	if w == nil {
		return token, nil
	}
	if start {
		go c.run(context.WithoutCancel(ctx))
	}

	select {
	case r := <-w:
		return r.token, r.err
	case <-ctx.Done():
		return "", core.Normalize(ctx.Err())
	}
}

// register queues a waiter. It returns no waiter but a token when a renewal
// already finished after failedToken was sent, and start is true when the
// caller has to launch the renewal.
func (c *Coordinator) register(ctx context.Context, failedToken string) (w waiter, token string, start bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == stateIdle {
		if credential, ok := c.store.Get(ctx); ok && credential.AccessToken != "" && credential.AccessToken != failedToken {
			return nil, credential.AccessToken, false
		}
		c.state = stateRefreshing
		start = true
	}

	w = make(waiter, 1)
	c.waiters = append(c.waiters, w)
	if !start {
		c.logger.Debug().Int("waiters", len(c.waiters)).Msg("waiting for running renewal")
	}
	return w, "", start
}

// Waiting returns the number of callers suspended on the running renewal
func (c *Coordinator) Waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// Refreshing reports whether a renewal is outstanding
func (c *Coordinator) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateRefreshing
}

func (c *Coordinator) run(ctx context.Context) {
	credential, _ := c.store.Get(ctx)
	if credential.RefreshToken == "" {
		c.fail(ctx, core.ErrNoRefreshCredential)
		return
	}

	c.logger.Info().Msg("renewing session")
	renewCtx, cancel := context.WithTimeout(ctx, c.timeout)
	renewed, err := c.renewer.Renew(renewCtx, credential.RefreshToken)
	cancel()
	if err != nil {
		c.fail(ctx, err)
		return
	}
	if renewed.AccessToken == "" {
		c.fail(ctx, core.ErrMissingAccessToken)
		return
	}
	if renewed.RefreshToken == "" {
		renewed.RefreshToken = credential.RefreshToken
	}

	c.store.Set(ctx, renewed)
	resumed := c.settle(renewal{token: renewed.AccessToken})
	c.logger.Info().Int("waiters", resumed).Msg("session renewed")
}

// fail runs the session-expired handler before releasing the waiters, so
// the effect has happened by the time any caller sees the rejection
func (c *Coordinator) fail(ctx context.Context, cause error) {
	c.store.Clear(ctx)

	if c.onExpired != nil {
		if herr := c.onExpired.SessionExpired(ctx); herr != nil {
			c.logger.Error().Err(herr).Msg("session expired handler")
		}
	}

	err := core.Normalize(fmt.Errorf("%w: %w", core.ErrSessionExpired, cause))
	rejected := c.settle(renewal{err: err})
	c.logger.Warn().Err(cause).Int("waiters", rejected).Msg("session renewal failed")
}

// settle hands r to every queued waiter in arrival order and returns to idle
func (c *Coordinator) settle(r renewal) int {
	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.state = stateIdle
	c.mu.Unlock()

	for _, w := range waiters {
		w <- r
	}
	return len(waiters)
}
