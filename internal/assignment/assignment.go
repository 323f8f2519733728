// Package assignment picks and persists the owner of a ticket.
package assignment

import (
	"context"
	"strings"

	"github.com/rendis/ticketflow/internal/store"
	"github.com/rendis/ticketflow/pkg/schema"
)

// Strategy names reported in a Decision.
const (
	StrategyDirect     = "direct"
	StrategyGroup      = "group"
	StrategyRoundRobin = "round_robin"
	StrategyWorkload   = "workload"
	StrategySkill      = "skill"
)

// Store is the subset of the ticket store the strategies need.
type Store interface {
	GetUser(ctx context.Context, id string) (*store.User, error)
	AssignTicket(ctx context.Context, ticketID, userID string) error
	SetTicketGroup(ctx context.Context, ticketID, groupID string) error
	LastAssignedAmong(ctx context.Context, candidates []string) (string, error)
	OpenTicketCounts(ctx context.Context, candidates []string) (map[string]int, error)
	SkillMatches(ctx context.Context, skills []string) ([]*store.SkillCandidate, error)
}

// Decision describes the target chosen for a ticket.
type Decision struct {
	Strategy    string `json:"strategy"`
	TicketID    string `json:"ticket_id"`
	UserID      string `json:"user_id,omitempty"`
	GroupID     string `json:"group_id,omitempty"`
	OpenTickets *int   `json:"open_tickets,omitempty"`
	Matches     *int   `json:"skill_matches,omitempty"`
}

// Output renders the decision as an action output map.
func (d *Decision) Output() map[string]any {
	out := map[string]any{"strategy": d.Strategy, "ticket_id": d.TicketID}
	if d.UserID != "" {
		out["assigned_to"] = d.UserID
	}
	if d.GroupID != "" {
		out["group_id"] = d.GroupID
	}
	if d.OpenTickets != nil {
		out["open_tickets"] = *d.OpenTickets
	}
	if d.Matches != nil {
		out["skill_matches"] = *d.Matches
	}
	return out
}

// Assigner runs assignment strategies against a Store.
type Assigner struct {
	store Store
}

// NewAssigner creates an Assigner.
func NewAssigner(st Store) *Assigner {
	return &Assigner{store: st}
}

// Direct assigns the ticket to userID after checking the user exists.
func (a *Assigner) Direct(ctx context.Context, ticketID, userID string) (*Decision, error) {
	if _, err := a.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	if err := a.store.AssignTicket(ctx, ticketID, userID); err != nil {
		return nil, err
	}
	return &Decision{Strategy: StrategyDirect, TicketID: ticketID, UserID: userID}, nil
}

// Group sets the ticket's group.
func (a *Assigner) Group(ctx context.Context, ticketID, groupID string) (*Decision, error) {
	if err := a.store.SetTicketGroup(ctx, ticketID, groupID); err != nil {
		return nil, err
	}
	return &Decision{Strategy: StrategyGroup, TicketID: ticketID, GroupID: groupID}, nil
}

// RoundRobin assigns to the candidate following the one holding the most
// recently updated open ticket. The race between two concurrent instances
// reading the same "last" candidate is accepted.
func (a *Assigner) RoundRobin(ctx context.Context, ticketID string, candidates []string) (*Decision, error) {
	if len(candidates) == 0 {
		return nil, noCandidates(StrategyRoundRobin)
	}
	last, err := a.store.LastAssignedAmong(ctx, candidates)
	if err != nil {
		return nil, storeErr("round-robin lookup", err)
	}
	next := NextRoundRobin(candidates, last)
	if err := a.store.AssignTicket(ctx, ticketID, next); err != nil {
		return nil, err
	}
	return &Decision{Strategy: StrategyRoundRobin, TicketID: ticketID, UserID: next}, nil
}

// Workload assigns to the candidate with the fewest open tickets.
func (a *Assigner) Workload(ctx context.Context, ticketID string, candidates []string) (*Decision, error) {
	if len(candidates) == 0 {
		return nil, noCandidates(StrategyWorkload)
	}
	counts, err := a.store.OpenTicketCounts(ctx, candidates)
	if err != nil {
		return nil, storeErr("workload lookup", err)
	}
	chosen := LeastLoaded(candidates, counts)
	if err := a.store.AssignTicket(ctx, ticketID, chosen); err != nil {
		return nil, err
	}
	open := counts[chosen]
	return &Decision{Strategy: StrategyWorkload, TicketID: ticketID, UserID: chosen, OpenTickets: &open}, nil
}

// Skill assigns to the active user matching the most required skills,
// preferring the lighter workload on ties.
func (a *Assigner) Skill(ctx context.Context, ticketID string, skills []string) (*Decision, error) {
	if len(skills) == 0 {
		return nil, schema.NewError(schema.ErrCodeConfig, "assign by skill requires at least one skill")
	}
	ranked, err := a.store.SkillMatches(ctx, skills)
	if err != nil {
		return nil, storeErr("skill lookup", err)
	}
	if len(ranked) == 0 {
		return nil, schema.NewErrorf(schema.ErrCodeNoCandidate,
			"no matching user found with skills: %s", strings.Join(skills, ", "))
	}
	best := ranked[0]
	if err := a.store.AssignTicket(ctx, ticketID, best.UserID); err != nil {
		return nil, err
	}
	matches, open := best.Matches, best.OpenTickets
	return &Decision{
		Strategy:    StrategySkill,
		TicketID:    ticketID,
		UserID:      best.UserID,
		Matches:     &matches,
		OpenTickets: &open,
	}, nil
}

// NextRoundRobin returns the candidate after last, wrapping around. When last
// is empty or not a candidate the first candidate is returned.
func NextRoundRobin(candidates []string, last string) string {
	for i, c := range candidates {
		if c == last {
			return candidates[(i+1)%len(candidates)]
		}
	}
	return candidates[0]
}

// LeastLoaded returns the candidate with the smallest count. Ties go to the
// candidate listed first.
func LeastLoaded(candidates []string, counts map[string]int) string {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if counts[c] < counts[best] {
			best = c
		}
	}
	return best
}

func noCandidates(strategy string) error {
	return schema.NewErrorf(schema.ErrCodeConfig, "%s assignment requires a non-empty user list", strategy)
}

func storeErr(op string, err error) error {
	return schema.NewErrorf(schema.ErrCodeStore, "%s: %v", op, err).WithCause(err)
}
