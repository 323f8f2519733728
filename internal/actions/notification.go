package actions

import (
	"context"
	"encoding/json"

	"github.com/rendis/ticketflow/internal/expressions"
	"github.com/rendis/ticketflow/internal/notify"
	"github.com/rendis/ticketflow/internal/store"
	"github.com/rendis/ticketflow/internal/streaming"
	"github.com/rendis/ticketflow/pkg/schema"
)

// NotificationHandlers returns the mail, chat and in-app notification handlers.
func NotificationHandlers(deps Deps) []Handler {
	return []Handler{
		&sendEmailHandler{deps: deps},
		&sendTeamsHandler{deps: deps},
		&createNotificationHandler{deps: deps},
	}
}

// --- send_email ---

type sendEmailHandler struct{ deps Deps }

func (h *sendEmailHandler) Kind() schema.ActionKind { return schema.KindSendEmail }

func (h *sendEmailHandler) Schema() HandlerSchema {
	return HandlerSchema{
		Description: "Send an email through the mail transport.",
		ConfigSchema: json.RawMessage(`{"type": "object", "properties": {
			"to": {"type": ["string", "array"], "items": {"type": "string"}},
			"subject": {"type": "string"},
			"body": {"type": "string"}}}`),
	}
}

func (h *sendEmailHandler) Validate(config map[string]any) error {
	if len(stringListParam(config, "to")) == 0 {
		return missingConfig(h.Kind(), "to")
	}
	return requireParams(h.Kind(), config, "subject", "body")
}

func (h *sendEmailHandler) Execute(ctx context.Context, in Input) (map[string]any, error) {
	if h.deps.Mailer == nil {
		return nil, schema.NewErrorf(schema.ErrCodeDependency, "%s: mailer is not configured", h.Kind())
	}
	msg := notify.Email{
		To:        stringListParam(in.Config, "to"),
		Subject:   stringParam(in.Config, "subject", ""),
		Body:      stringParam(in.Config, "body", ""),
		MessageID: in.IdempotencyKey,
	}
	if err := h.deps.Mailer.Send(ctx, msg); err != nil {
		return nil, dependencyErr(h.Kind(), "send", err)
	}
	return map[string]any{"to": msg.To, "subject": msg.Subject, "sent": true}, nil
}

// --- send_teams_notification ---

type sendTeamsHandler struct{ deps Deps }

func (h *sendTeamsHandler) Kind() schema.ActionKind { return schema.KindSendTeamsNotification }

func (h *sendTeamsHandler) Schema() HandlerSchema {
	return HandlerSchema{
		Description: "Post a message to a Teams channel.",
		ConfigSchema: json.RawMessage(`{"type": "object", "properties": {
			"channel": {"type": "string"},
			"message": {"type": "string"},
			"title": {"type": "string"}}}`),
	}
}

func (h *sendTeamsHandler) Validate(config map[string]any) error {
	return requireParams(h.Kind(), config, "channel", "message")
}

func (h *sendTeamsHandler) Execute(ctx context.Context, in Input) (map[string]any, error) {
	if h.deps.Chat == nil {
		return nil, schema.NewErrorf(schema.ErrCodeDependency, "%s: chat notifier is not configured", h.Kind())
	}
	msg := notify.ChatMessage{
		Channel:        stringParam(in.Config, "channel", ""),
		Text:           stringParam(in.Config, "message", ""),
		Title:          stringParam(in.Config, "title", ""),
		IdempotencyKey: in.IdempotencyKey,
	}
	if err := h.deps.Chat.Post(ctx, msg); err != nil {
		return nil, dependencyErr(h.Kind(), "post", err)
	}
	return map[string]any{"channel": msg.Channel, "sent": true}, nil
}

// --- create_notification ---

type createNotificationHandler struct{ deps Deps }

func (h *createNotificationHandler) Kind() schema.ActionKind { return schema.KindCreateNotification }

func (h *createNotificationHandler) Schema() HandlerSchema {
	return HandlerSchema{
		Description: "Store an in-app notification and push it to the user live.",
		ConfigSchema: json.RawMessage(`{"type": "object", "properties": {
			"user_id": ` + idType + `,
			"ticket_id": ` + idType + `,
			"title": {"type": "string"},
			"message": {"type": "string"},
			"type": {"type": "string"}}}`),
	}
}

func (h *createNotificationHandler) Validate(config map[string]any) error {
	return requireParams(h.Kind(), config, "title", "message")
}

func (h *createNotificationHandler) Execute(ctx context.Context, in Input) (map[string]any, error) {
	if err := requireStore(h.Kind(), h.deps); err != nil {
		return nil, err
	}
	userID := stringParam(in.Config, "user_id", "")
	if userID == "" {
		if raw, ok := expressions.Lookup("assigned_to", in.Exec); ok {
			userID, _ = scalarText(raw)
		}
	}
	if userID == "" {
		return nil, schema.NewErrorf(schema.ErrCodeConfig,
			"%s: missing required config 'user_id' and no assigned_to in event payload", h.Kind())
	}
	// The ticket reference is optional for notifications.
	tid, _ := ticketID(in)

	n := &store.Notification{
		UserID:         userID,
		Title:          stringParam(in.Config, "title", ""),
		Message:        stringParam(in.Config, "message", ""),
		Type:           stringParam(in.Config, "type", "info"),
		TicketID:       tid,
		IdempotencyKey: in.IdempotencyKey,
	}
	created, err := h.deps.Store.CreateNotification(ctx, n)
	if err != nil {
		return nil, dependencyErr(h.Kind(), "store notification", err)
	}

	out := map[string]any{
		"user_id": userID,
		"type":    n.Type,
		"created": created,
		"pushed":  false,
	}
	if !created {
		return out, nil
	}
	out["notification_id"] = n.ID
	if h.deps.Hub == nil {
		return out, nil
	}
	update := streaming.Update{
		UserID:  userID,
		Kind:    streaming.KindNotification,
		Message: n.Title,
		Data: map[string]any{
			"id":        n.ID,
			"title":     n.Title,
			"message":   n.Message,
			"type":      n.Type,
			"ticket_id": n.TicketID,
		},
		Timestamp: n.CreatedAt,
	}
	if err := h.deps.Hub.Publish(ctx, update); err != nil {
		h.deps.Logger.WarnContext(ctx, "live push failed", "user_id", userID, "error", err)
		return out, nil
	}
	out["pushed"] = true
	return out, nil
}
