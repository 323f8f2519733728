package store

import (
	"context"
	"time"
)

// TicketStore covers the ticket and user records mutated by ticket actions.
type TicketStore interface {
	GetTicket(ctx context.Context, id string) (*Ticket, error)
	GetUser(ctx context.Context, id string) (*User, error)

	AssignTicket(ctx context.Context, ticketID, userID string) error
	SetTicketGroup(ctx context.Context, ticketID, groupID string) error
	UpdateTicketStatus(ctx context.Context, ticketID, status string) error
	UpdateTicketPriority(ctx context.Context, ticketID, priority string) error
	// EscalateTicket reassigns the ticket and flags it escalated. The escalation
	// level is bumped once per effectKey.
	EscalateTicket(ctx context.Context, ticketID, toUserID, effectKey string) error

	// AddComment inserts c unless a comment with the same IdempotencyKey exists.
	AddComment(ctx context.Context, c *Comment) (created bool, err error)
	AddTag(ctx context.Context, ticketID, tag string) (linked bool, err error)
	RemoveTag(ctx context.Context, ticketID, tag string) (removed bool, err error)
	ListTags(ctx context.Context, ticketID string) ([]string, error)
	ListComments(ctx context.Context, ticketID string) ([]*Comment, error)

	// Generic column access, restricted to the whitelist in fields.go.
	ReadField(ctx context.Context, ref FieldRef, rowID string) (any, error)
	WriteField(ctx context.Context, ref FieldRef, rowID string, value any) error
	IncrementField(ctx context.Context, ref FieldRef, rowID string, amount float64, effectKey string) (*IncrementResult, error)
}

// AssignmentStore answers the workload queries used by assignment strategies.
type AssignmentStore interface {
	// LastAssignedAmong returns the candidate holding the most recently updated
	// open ticket, or "" when none of them holds one.
	LastAssignedAmong(ctx context.Context, candidates []string) (string, error)
	// OpenTicketCounts returns open ticket counts for every candidate, zero included.
	OpenTicketCounts(ctx context.Context, candidates []string) (map[string]int, error)
	// SkillMatches ranks active users holding at least one of skills.
	SkillMatches(ctx context.Context, skills []string) ([]*SkillCandidate, error)
}

// SLAStore manages SLA policies and per-ticket tracking rows.
type SLAStore interface {
	FirstSLARule(ctx context.Context, policyID string) (*SLARule, error)
	UpsertTicketSLA(ctx context.Context, sla *TicketSLA) error
	GetTicketSLA(ctx context.Context, ticketID string) (*TicketSLA, error)
	// PauseTicketSLA records at as the pause start. Returns false when there is
	// no tracking row or it is already paused.
	PauseTicketSLA(ctx context.Context, ticketID string, at time.Time) (bool, error)
	// ResumeTicketSLA clears the pause and accumulates the paused seconds.
	// Returns nil when there is nothing to resume.
	ResumeTicketSLA(ctx context.Context, ticketID string, at time.Time) (*ResumeResult, error)
}

// NotificationStore persists in-app notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *Notification) (created bool, err error)
	ListNotifications(ctx context.Context, userID string) ([]*Notification, error)
}

// Store is the full persistence contract consumed by the action handlers.
// Implementations must be safe for concurrent use.
type Store interface {
	TicketStore
	AssignmentStore
	SLAStore
	NotificationStore

	Migrate(ctx context.Context) error
	Close() error
}
