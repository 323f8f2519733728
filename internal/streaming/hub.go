// Package streaming is the live-update channel pushing notifications to users.
package streaming

import (
	"context"
	"slices"
	"time"
)

// Update kinds.
const (
	KindNotification = "notification"
)

// Update is a real-time message addressed to one user.
type Update struct {
	UserID    string         `json:"user_id"`
	Kind      string         `json:"kind"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// UpdateFilter specifies which updates a subscriber wants to receive.
type UpdateFilter struct {
	UserID string   `json:"user_id,omitempty"`
	Kinds  []string `json:"kinds,omitempty"`
}

// Hub provides pub/sub for live updates.
type Hub interface {
	Publish(ctx context.Context, update Update) error
	Subscribe(ctx context.Context, filter UpdateFilter) (<-chan Update, func(), error)
}

// matchFilter returns true if the update passes the filter criteria.
func matchFilter(f UpdateFilter, u Update) bool {
	if f.UserID != "" && f.UserID != u.UserID {
		return false
	}
	return len(f.Kinds) == 0 || slices.Contains(f.Kinds, u.Kind)
}
