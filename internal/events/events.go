package events

import (
	"context"
	"time"
)

// Event mirrors one message delivered to a session's client.
type Event struct {
	SessionID  string    `json:"sessionId"`
	Transport  string    `json:"transport"`
	Type       string    `json:"type"`
	Seq        int64     `json:"seq"`
	Text       string    `json:"text,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Message    string    `json:"message,omitempty"`
	At         time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type noopPublisher struct{}

func NewNoop() Publisher { return noopPublisher{} }

func (noopPublisher) Publish(context.Context, Event) error { return nil }
func (noopPublisher) Close() error                         { return nil }
