package tokenizer

import "github.com/golang-jwt/jwt/v5"

// AccessClaims combines standard claims with access-specific ones
type AccessClaims struct {
	jwt.RegisteredClaims
	RefreshID string `json:"rid"` // ID of the refresh token
	TokenType string `json:"token_type"`
}

// RefreshClaims are the standard claims plus the token type marker
type RefreshClaims struct {
	jwt.RegisteredClaims
	TokenType string `json:"token_type"`
}
