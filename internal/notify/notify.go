// Package notify holds the outbound notification transports: mail and chat.
package notify

import (
	"context"
	"sync"
)

// Email is one outbound message.
type Email struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	// MessageID lets receiving servers drop duplicates of a retried send.
	MessageID string `json:"message_id,omitempty"`
}

// Mailer delivers email.
type Mailer interface {
	Send(ctx context.Context, msg Email) error
}

// ChatMessage is a message posted to a chat channel.
type ChatMessage struct {
	Channel        string `json:"channel"`
	Text           string `json:"text"`
	Title          string `json:"title,omitempty"`
	IdempotencyKey string `json:"-"`
}

// ChatNotifier posts messages to chat channels.
type ChatNotifier interface {
	Post(ctx context.Context, msg ChatMessage) error
}

// RecordingMailer keeps every message in memory. Useful for tests and dry runs.
type RecordingMailer struct {
	mu   sync.Mutex
	sent []Email
	Err  error
}

func (m *RecordingMailer) Send(_ context.Context, msg Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns a copy of the delivered messages.
func (m *RecordingMailer) Sent() []Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Email(nil), m.sent...)
}

// RecordingChat keeps every chat message in memory.
type RecordingChat struct {
	mu     sync.Mutex
	posted []ChatMessage
	Err    error
}

func (c *RecordingChat) Post(_ context.Context, msg ChatMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.posted = append(c.posted, msg)
	return nil
}

// Posted returns a copy of the posted messages.
func (c *RecordingChat) Posted() []ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ChatMessage(nil), c.posted...)
}
