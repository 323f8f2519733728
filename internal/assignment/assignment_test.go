package assignment

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/rendis/ticketflow/internal/store"
	"github.com/rendis/ticketflow/pkg/schema"
)

func newTestStore(t *testing.T) *store.LibSQLStore {
	t.Helper()
	var mu sync.Mutex
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
	s, err := store.NewLibSQLStore("file:"+filepath.Join(t.TempDir(), "test.db"), store.WithClock(clock))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedTickets(t *testing.T, s *store.LibSQLStore, assignee string, n int, status string) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, s.CreateTicket(context.Background(), &store.Ticket{
			ID:         fmt.Sprintf("%s-%s-%d", assignee, status, i),
			AssignedTo: assignee,
			Status:     status,
		}))
	}
}

func TestDirectAssignment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, &store.User{ID: "U1", Name: "Ana", Active: true}))
	require.NoError(t, s.CreateTicket(ctx, &store.Ticket{ID: "T1"}))

	d, err := NewAssigner(s).Direct(ctx, "T1", "U1")
	require.NoError(t, err)
	assert.Equal(t, "U1", d.UserID)
	assert.Equal(t, map[string]any{"strategy": StrategyDirect, "ticket_id": "T1", "assigned_to": "U1"}, d.Output())

	got, err := s.GetTicket(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, "U1", got.AssignedTo)
}

func TestDirectAssignmentUnknownUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateTicket(ctx, &store.Ticket{ID: "T1"}))

	_, err := NewAssigner(s).Direct(ctx, "T1", "ghost")
	require.Error(t, err)
	assert.Equal(t, schema.CategoryConfiguration, schema.CategoryOf(err))
}

func TestGroupAssignment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateTicket(ctx, &store.Ticket{ID: "T1"}))

	d, err := NewAssigner(s).Group(ctx, "T1", "network-team")
	require.NoError(t, err)
	assert.Equal(t, "network-team", d.GroupID)

	got, err := s.GetTicket(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, "network-team", got.GroupID)
}

func TestRoundRobinCycles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := NewAssigner(s)
	candidates := []string{"A", "B", "C"}

	var got []string
	for i := 1; i <= 4; i++ {
		id := fmt.Sprintf("T%d", i)
		require.NoError(t, s.CreateTicket(ctx, &store.Ticket{ID: id}))
		d, err := a.RoundRobin(ctx, id, candidates)
		require.NoError(t, err)
		got = append(got, d.UserID)
	}
	assert.Equal(t, []string{"A", "B", "C", "A"}, got)
}

func TestRoundRobinEmptyCandidates(t *testing.T) {
	_, err := NewAssigner(newTestStore(t)).RoundRobin(context.Background(), "T1", nil)
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeConfig))
}

func TestNextRoundRobinProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "n")
		candidates := make([]string, n)
		for i := range candidates {
			candidates[i] = fmt.Sprintf("u%d", i)
		}
		steps := rapid.IntRange(1, 3*n).Draw(t, "steps")

		last := ""
		for i := 0; i < steps; i++ {
			next := NextRoundRobin(candidates, last)
			if next != candidates[i%n] {
				t.Fatalf("step %d: got %s, want %s", i, next, candidates[i%n])
			}
			last = next
		}
	})
}

func TestNextRoundRobinUnknownLast(t *testing.T) {
	assert.Equal(t, "A", NextRoundRobin([]string{"A", "B"}, "Z"))
}

func TestWorkloadPicksLightest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTickets(t, s, "U1", 5, "open")
	seedTickets(t, s, "U2", 1, "open")
	seedTickets(t, s, "U2", 4, store.StatusResolved)
	require.NoError(t, s.CreateTicket(ctx, &store.Ticket{ID: "NEW"}))

	d, err := NewAssigner(s).Workload(ctx, "NEW", []string{"U1", "U2"})
	require.NoError(t, err)
	assert.Equal(t, "U2", d.UserID)
	require.NotNil(t, d.OpenTickets)
	assert.Equal(t, 1, *d.OpenTickets)
}

func TestLeastLoadedTieBreaksOnListOrder(t *testing.T) {
	counts := map[string]int{"A": 2, "B": 1, "C": 1}
	assert.Equal(t, "B", LeastLoaded([]string{"A", "B", "C"}, counts))
	assert.Equal(t, "C", LeastLoaded([]string{"C", "B", "A"}, counts))
	assert.Equal(t, "X", LeastLoaded([]string{"X", "Y"}, map[string]int{}))
}

func TestSkillAssignment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, &store.User{ID: "U1", Active: true, Skills: []string{"network"}}))
	require.NoError(t, s.CreateUser(ctx, &store.User{ID: "U2", Active: true, Skills: []string{"network", "vpn"}}))
	require.NoError(t, s.CreateTicket(ctx, &store.Ticket{ID: "T1"}))

	d, err := NewAssigner(s).Skill(ctx, "T1", []string{"network", "vpn"})
	require.NoError(t, err)
	assert.Equal(t, "U2", d.UserID)
	assert.Equal(t, 2, *d.Matches)
}

func TestSkillAssignmentNoMatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, &store.User{ID: "U1", Active: true, Skills: []string{"network"}}))
	require.NoError(t, s.CreateTicket(ctx, &store.Ticket{ID: "T1"}))

	_, err := NewAssigner(s).Skill(ctx, "T1", []string{"mainframe"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no matching user")
	assert.Equal(t, schema.CategoryNoCandidate, schema.CategoryOf(err))

	got, err := s.GetTicket(ctx, "T1")
	require.NoError(t, err)
	assert.Empty(t, got.AssignedTo)
}
