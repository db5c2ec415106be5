package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/apiclient/core"
	"github.com/layer-3/apiclient/ports"
	"github.com/rs/zerolog"
)

const (
	DefaultAccessTTL  = 5 * time.Minute
	DefaultRefreshTTL = 5 * 24 * time.Hour
)

// AuthService issues and rotates the sandbox backend's tokens
type AuthService struct {
	tokenizer ports.Tokenizer
	store     ports.RevocationStore
	eventPub  ports.EventPublisher
	users     *Users
	logger    zerolog.Logger

	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewAuthService creates a new authentication service
func NewAuthService(
	tokenizer ports.Tokenizer,
	store ports.RevocationStore,
	eventPub ports.EventPublisher,
	users *Users,
	logger zerolog.Logger,
) *AuthService {
	return &AuthService{
		tokenizer:  tokenizer,
		store:      store,
		eventPub:   eventPub,
		users:      users,
		logger:     logger,
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
	}
}

// WithTTL overrides the token lifetimes. Zero keeps the current value.
func (s *AuthService) WithTTL(access, refresh time.Duration) *AuthService {
	if access > 0 {
		s.accessTTL = access
	}
	if refresh > 0 {
		s.refreshTTL = refresh
	}
	return s
}

// AccessTTL is the lifetime of newly issued access tokens
func (s *AuthService) AccessTTL() time.Duration {
	return s.accessTTL
}

// Login checks the password and opens a new session
func (s *AuthService) Login(ctx context.Context, username, password string) (string, string, error) {
	if err := s.users.Authenticate(ctx, username, password); err != nil {
		return "", "", err
	}
	return s.issue(username)
}

// Refresh rotates the refresh token and issues new access and refresh tokens
func (s *AuthService) Refresh(ctx context.Context, refreshTokenStr string) (string, string, error) {
	session, err := s.tokenizer.RefreshTokenToSession(refreshTokenStr)
	if err != nil {
		return "", "", err
	}

	if time.Now().After(session.RefreshExpiry) {
		return "", "", core.ErrTokenExpired
	}

	// the old refresh token only needs to be remembered until it would expire anyway
	claimed, err := s.store.ClaimToken(ctx, session.RefreshID, time.Until(session.RefreshExpiry))
	if err != nil {
		return "", "", fmt.Errorf("failed to invalidate old token: %w", err)
	}
	if !claimed {
		return "", "", core.ErrTokenInvalidated
	}

	return s.issue(session.Subject)
}

// Logout invalidates a refresh token and every access token minted with it
func (s *AuthService) Logout(ctx context.Context, refreshTokenStr string) error {
	session, err := s.tokenizer.RefreshTokenToSession(refreshTokenStr)
	if err != nil {
		return err
	}

	remaining := time.Until(session.RefreshExpiry)
	if remaining < time.Hour {
		remaining = time.Hour
	}
	if err := s.store.InvalidateToken(ctx, session.RefreshID, remaining); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	// the token is already invalidated, a lost event only delays other instances
	if err := s.eventPub.PublishLogout(ctx, session.Subject, session.RefreshID); err != nil {
		s.logger.Warn().Err(err).Str("subject", session.Subject).Msg("failed to publish logout event")
	}
	return nil
}

// ValidateAccessToken returns the session behind a live access token
func (s *AuthService) ValidateAccessToken(ctx context.Context, accessToken string) (*core.Session, error) {
	session, err := s.tokenizer.AccessTokenToSession(accessToken)
	if err != nil {
		return nil, err
	}

	if time.Now().After(session.AccessExpiry) {
		return nil, core.ErrTokenExpired
	}

	if session.RefreshID != "" {
		invalidated, err := s.store.IsTokenInvalidated(ctx, session.RefreshID)
		if err != nil {
			return nil, fmt.Errorf("failed to check token invalidation: %w", err)
		}
		if invalidated {
			return nil, core.ErrTokenInvalidated
		}
	}

	return session, nil
}

func (s *AuthService) issue(subject string) (string, string, error) {
	now := time.Now()
	session := &core.Session{
		ID:            uuid.New().String(),
		Subject:       subject,
		IssuedAt:      now,
		RefreshExpiry: now.Add(s.refreshTTL),
		AccessExpiry:  now.Add(s.accessTTL),
		RefreshID:     uuid.New().String(),
	}

	accessToken, err := s.tokenizer.SessionToAccessToken(session)
	if err != nil {
		return "", "", fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := s.tokenizer.SessionToRefreshToken(session)
	if err != nil {
		return "", "", fmt.Errorf("failed to create refresh token: %w", err)
	}

	s.logger.Debug().Str("subject", subject).Str("session_id", session.ID).Msg("session issued")
	return accessToken, refreshToken, nil
}
