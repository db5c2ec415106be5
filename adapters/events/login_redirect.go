package events

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/layer-3/apiclient/ports"
)

// LoginRedirect sends the user to the login surface with an expired marker.
// Nothing happens when the user already is on an authentication surface.
type LoginRedirect struct {
	navigator ports.Navigator
	loginPath string
	authPaths []string
}

var _ ports.SessionExpiredHandler = (*LoginRedirect)(nil)

// NewLoginRedirect creates the handler. loginPath is always treated as an
// authentication surface in addition to authPaths.
func NewLoginRedirect(navigator ports.Navigator, loginPath string, authPaths ...string) *LoginRedirect {
	return &LoginRedirect{
		navigator: navigator,
		loginPath: loginPath,
		authPaths: append([]string{loginPath}, authPaths...),
	}
}

func (r *LoginRedirect) SessionExpired(ctx context.Context) error {
	current := r.navigator.Location()
	if r.onAuthSurface(current) {
		return nil
	}

	query := url.Values{}
	query.Set("expired", "true")
	if current != "" {
		query.Set("next", current)
	}

	if err := r.navigator.Navigate(r.loginPath + "?" + query.Encode()); err != nil {
		return fmt.Errorf("redirecting to login: %w", err)
	}
	return nil
}

func (r *LoginRedirect) onAuthSurface(location string) bool {
	path := location
	if u, err := url.Parse(location); err == nil {
		path = u.Path
	}
	for _, auth := range r.authPaths {
		if auth == "" {
			continue
		}
		if path == auth || strings.HasPrefix(path, strings.TrimSuffix(auth, "/")+"/") {
			return true
		}
	}
	return false
}

// Chain runs several handlers in order and joins their errors
type Chain []ports.SessionExpiredHandler

func (c Chain) SessionExpired(ctx context.Context) error {
	var errs []error
	for _, handler := range c {
		if handler == nil {
			continue
		}
		if err := handler.SessionExpired(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HandlerFunc adapts a function to a SessionExpiredHandler
type HandlerFunc func(ctx context.Context) error

func (f HandlerFunc) SessionExpired(ctx context.Context) error {
	return f(ctx)
}
