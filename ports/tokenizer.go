package ports

import (
	"time"

	"github.com/layer-3/apiclient/core"
)

// Tokenizer converts between sandbox sessions and tokens
type Tokenizer interface {
	SessionToAccessToken(session *core.Session) (string, error)
	AccessTokenToSession(token string) (*core.Session, error)
	SessionToRefreshToken(session *core.Session) (string, error)
	RefreshTokenToSession(token string) (*core.Session, error)
}

// TokenInspector reads claims from a token without verifying it
type TokenInspector interface {
	ExpiresAt(token string) (time.Time, error)
}
