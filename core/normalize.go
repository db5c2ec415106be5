package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"syscall"
)

const (
	MessageTimedOut    = "request timed out"
	MessageUnreachable = "network unreachable"
)

// Normalize converts a transport error, a non-2xx outcome or an already
// normalized error into an *Error. It has no side effects.
func Normalize(raw error) *Error {
	if raw == nil {
		return nil
	}
	if normalized, ok := raw.(*Error); ok {
		return normalized
	}

	var status *StatusError
	if errors.As(raw, &status) {
		message := messageFromBody(status.Body)
		if message == "" {
			message = raw.Error()
		}
		return &Error{
			Message: message,
			Status:  status.Status,
			Data:    decodeBody(status.Body),
			Err:     raw,
		}
	}

	message := raw.Error()
	switch {
	case isTimeout(raw):
		message = MessageTimedOut
	case isUnreachable(raw):
		message = MessageUnreachable
	}
	return &Error{Message: message, Err: raw}
}

// messageFromBody applies the backend payload precedence:
// detail, message, non_field_errors[0], then the first field error.
func messageFromBody(body []byte) string {
	var payload struct {
		Detail         json.RawMessage `json:"detail"`
		Message        json.RawMessage `json:"message"`
		NonFieldErrors json.RawMessage `json:"non_field_errors"`
		Errors         json.RawMessage `json:"errors"`
	}
	if len(body) == 0 || json.Unmarshal(body, &payload) != nil {
		return ""
	}
	if s := asString(payload.Detail); s != "" {
		return s
	}
	if s := asString(payload.Message); s != "" {
		return s
	}
	if s := firstString(payload.NonFieldErrors); s != "" {
		return s
	}
	return firstFieldError(payload.Errors)
}

func asString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func firstString(raw json.RawMessage) string {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil || len(items) == 0 {
		return ""
	}
	return asString(items[0])
}

// firstFieldError walks the errors object in document order; a Go map
// would lose which field came first.
func firstFieldError(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return ""
	}
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return ""
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return ""
		}
		var messages []json.RawMessage
		if json.Unmarshal(value, &messages) == nil && len(messages) > 0 {
			return asString(messages[0])
		}
	}
	return ""
}

func decodeBody(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		return v
	}
	return string(body)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isUnreachable(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH)
}
