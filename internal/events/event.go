// Package events defines auth events and publishes them to RabbitMQ.
// Publishing is best effort: failures are logged and returned, and callers
// never fail a request because of them.
package events

import "context"

// Routing keys / queue names
const (
	UserRegistered = "user.registered"
	UserLoggedIn   = "user.logged_in"
)

// AuthEvent is emitted after a successful registration or login
type AuthEvent struct {
	Type       string `json:"type"`
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	OccurredAt string `json:"occurred_at"` // RFC3339, UTC
}

// Publisher sends auth events somewhere
type Publisher interface {
	Publish(ctx context.Context, event AuthEvent) error
}

// Noop discards every event
type Noop struct{}

// Publish implements Publisher
func (Noop) Publish(context.Context, AuthEvent) error { return nil }
