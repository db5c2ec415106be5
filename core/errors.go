package core

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenInvalidated = errors.New("token has been invalidated")
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidLogin     = errors.New("invalid username or password")

	ErrMediumUnavailable   = errors.New("storage medium unavailable")
	ErrKeyNotFound         = errors.New("key not found")
	ErrNoCredential        = errors.New("no credential stored")
	ErrNoRefreshCredential = errors.New("no refresh credential stored")
	ErrSessionExpired      = errors.New("session expired")
	ErrMissingAccessToken  = errors.New("response carries no access token")
)

// StatusError is the raw outcome of a non-2xx response
type StatusError struct {
	Status int
	Header http.Header
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status code %d", e.Status)
}

// Error is the uniform failure handed to callers. Status is zero when no
// response was received.
type Error struct {
	Message string
	Status  int
	Data    any
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HasStatus reports whether the failure carries an HTTP status
func (e *Error) HasStatus() bool {
	return e.Status != 0
}
