package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/apiclient/ports"
)

const (
	LogoutTopic         = "apiclient.logout"
	SessionExpiredTopic = "apiclient.session_expired"
)

// LogoutEvent is published by the sandbox backend when a session is logged out
type LogoutEvent struct {
	Subject string `json:"subject"`
	TokenID string `json:"token_id"`
}

// SessionExpiredEvent is published by the client after a failed renewal
type SessionExpiredEvent struct {
	Client     string    `json:"client"`
	OccurredAt time.Time `json:"occurred_at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
}

// NewWatermillPublisher creates a new Watermill logout publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		topic:     LogoutTopic,
	}
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, subject string, tokenID string) error {
	return publishJSON(ctx, p.publisher, p.topic, tokenID, LogoutEvent{
		Subject: subject,
		TokenID: tokenID,
	})
}

// WatermillNotifier announces expired sessions so other parts of the
// application (or other processes sharing the session) can react
type WatermillNotifier struct {
	publisher message.Publisher
	topic     string
	client    string
}

var _ ports.SessionExpiredHandler = (*WatermillNotifier)(nil)

// NewWatermillNotifier creates a notifier publishing on topic. An empty topic
// selects SessionExpiredTopic.
func NewWatermillNotifier(publisher message.Publisher, topic, client string) *WatermillNotifier {
	if topic == "" {
		topic = SessionExpiredTopic
	}
	return &WatermillNotifier{publisher: publisher, topic: topic, client: client}
}

// SessionExpired publishes a SessionExpiredEvent
func (n *WatermillNotifier) SessionExpired(ctx context.Context) error {
	return publishJSON(ctx, n.publisher, n.topic, watermill.NewUUID(), SessionExpiredEvent{
		Client:     n.client,
		OccurredAt: time.Now().UTC(),
	})
}

func publishJSON(ctx context.Context, publisher message.Publisher, topic, id string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(id, payload)
	msg.SetContext(ctx)

	if err := publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
