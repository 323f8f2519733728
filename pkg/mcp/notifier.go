package mcp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/ticketflow/internal/streaming"
)

// notificationSender is the part of *server.MCPServer the forwarder needs.
type notificationSender interface {
	SendNotificationToSpecificClient(sessionID string, method string, params map[string]any) error
}

// UpdateForwarder pushes live updates from the hub to the MCP sessions
// watching the addressed user.
type UpdateForwarder struct {
	sender   notificationSender
	sessions *SessionRegistry
	logger   *slog.Logger
}

// NewUpdateForwarder creates a forwarder that pushes through sender.
func NewUpdateForwarder(sender notificationSender, sessions *SessionRegistry, logger *slog.Logger) *UpdateForwarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &UpdateForwarder{sender: sender, sessions: sessions, logger: logger}
}

// Run subscribes to every update on hub and forwards them until ctx ends.
func (f *UpdateForwarder) Run(ctx context.Context, hub streaming.Hub) error {
	ch, cancel, err := hub.Subscribe(ctx, streaming.UpdateFilter{})
	if err != nil {
		return err
	}
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-ch:
			if !ok {
				return nil
			}
			f.Forward(u)
		}
	}
}

// Forward delivers one update. Best-effort: users nobody watches are skipped
// and vanished sessions are dropped.
func (f *UpdateForwarder) Forward(u streaming.Update) {
	payload := map[string]any{
		"user_id":   u.UserID,
		"kind":      u.Kind,
		"message":   u.Message,
		"data":      u.Data,
		"timestamp": u.Timestamp,
	}
	for _, sid := range f.sessions.SessionsFor(u.UserID) {
		err := f.sender.SendNotificationToSpecificClient(sid, "notifications/message", payload)
		switch {
		case errors.Is(err, server.ErrSessionNotFound):
			f.sessions.Remove(sid)
		case err != nil:
			f.logger.Warn("live update push failed", "user_id", u.UserID, "session_id", sid, "error", err)
		}
	}
}
