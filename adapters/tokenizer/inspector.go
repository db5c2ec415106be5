package tokenizer

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/apiclient/core"
	"github.com/layer-3/apiclient/ports"
)

// Inspector reads the exp claim of a JWT without checking its signature.
// The client only uses it to describe the session, never to trust it.
type Inspector struct {
	parser *jwt.Parser
}

var _ ports.TokenInspector = (*Inspector)(nil)

func NewInspector() *Inspector {
	return &Inspector{parser: jwt.NewParser()}
}

// ExpiresAt returns the expiry of token. Opaque or exp-less tokens give an error.
func (i *Inspector) ExpiresAt(token string) (time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := i.parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", core.ErrInvalidToken, err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("%w: no exp claim", core.ErrInvalidToken)
	}
	return claims.ExpiresAt.Time, nil
}
