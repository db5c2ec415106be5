package ports

import "context"

// SessionExpiredHandler makes the user authenticate again once a renewal failed
type SessionExpiredHandler interface {
	SessionExpired(ctx context.Context) error
}

// Navigator abstracts the surface the user is looking at
type Navigator interface {
	Location() string
	Navigate(target string) error
}

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	PublishLogout(ctx context.Context, subject string, tokenID string) error
}
