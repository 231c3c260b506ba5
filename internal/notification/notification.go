// Package notification delivers push messages to users' registered devices.
package notification

import "context"

// Message is a push notification addressed to a single device token.
type Message struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

// Notifier sends push notifications.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Noop discards every message. Used when push delivery is not configured.
type Noop struct{}

func (Noop) Send(context.Context, Message) error { return nil }
