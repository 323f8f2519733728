package store

import "time"

// Ticket statuses that count as closed for workload purposes.
const (
	StatusResolved = "resolved"
	StatusClosed   = "closed"
)

// Ticket is a helpdesk ticket.
type Ticket struct {
	ID              string    `json:"id"`
	Subject         string    `json:"subject"`
	Description     string    `json:"description,omitempty"`
	Category        string    `json:"category,omitempty"`
	Status          string    `json:"status"`
	Priority        string    `json:"priority"`
	AssignedTo      string    `json:"assigned_to,omitempty"`
	GroupID         string    `json:"group_id,omitempty"`
	Escalated       bool      `json:"escalated"`
	ReopenCount     int       `json:"reopen_count"`
	EscalationLevel int       `json:"escalation_level"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// User is an agent that tickets can be assigned to.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Active    bool      `json:"active"`
	Skills    []string  `json:"skills,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment is a ticket comment written by a user or by the system.
type Comment struct {
	ID             string    `json:"id"`
	TicketID       string    `json:"ticket_id"`
	Author         string    `json:"author"`
	Body           string    `json:"body"`
	Internal       bool      `json:"internal"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// SLAPolicy groups ordered SLA rules.
type SLAPolicy struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Rules []*SLARule `json:"rules,omitempty"`
}

// SLARule gives response and resolution targets. The first rule by SortOrder
// is the one applied.
type SLARule struct {
	ID                  string `json:"id"`
	PolicyID            string `json:"policy_id"`
	Priority            string `json:"priority,omitempty"`
	ResponseTimeMinutes int    `json:"response_time_minutes"`
	ResolutionTimeHours int    `json:"resolution_time_hours"`
	SortOrder           int    `json:"sort_order"`
}

// TicketSLA is the 1:1 SLA tracking row of a ticket.
type TicketSLA struct {
	TicketID           string     `json:"ticket_id"`
	PolicyID           string     `json:"policy_id"`
	ResponseDue        time.Time  `json:"response_due"`
	ResolutionDue      time.Time  `json:"resolution_due"`
	PausedAt           *time.Time `json:"paused_at,omitempty"`
	TotalPausedSeconds int64      `json:"total_paused_seconds"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// ResumeResult reports a cleared pause.
type ResumeResult struct {
	PausedSeconds      int64 `json:"paused_seconds"`
	TotalPausedSeconds int64 `json:"total_paused_seconds"`
}

// Notification is an in-app notification row.
type Notification struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Type           string    `json:"type"`
	TicketID       string    `json:"ticket_id,omitempty"`
	IsRead         bool      `json:"is_read"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// SkillCandidate is one ranked result of a skill search.
type SkillCandidate struct {
	UserID      string `json:"user_id"`
	Matches     int    `json:"matches"`
	OpenTickets int    `json:"open_tickets"`
}

// IncrementResult reports the column value after an increment.
type IncrementResult struct {
	Value   any  `json:"value"`
	Applied bool `json:"applied"`
}
