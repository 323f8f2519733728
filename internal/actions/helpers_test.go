package actions

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rendis/ticketflow/internal/notify"
	"github.com/rendis/ticketflow/internal/store"
	"github.com/rendis/ticketflow/internal/streaming"
	"github.com/rendis/ticketflow/pkg/schema"
)

var fixedNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type recordingStarter struct {
	mu       sync.Mutex
	requests []WorkflowStart
	err      error
}

func (s *recordingStarter) StartWorkflow(_ context.Context, req WorkflowStart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return s.err
}

type testEnv struct {
	store   *store.LibSQLStore
	mailer  *notify.RecordingMailer
	chat    *notify.RecordingChat
	hub     *streaming.MemoryHub
	starter *recordingStarter
	reg     *Registry
}

func newTestEnv(t *testing.T, mutate ...func(*Deps)) *testEnv {
	t.Helper()
	var mu sync.Mutex
	tick := fixedNow.Add(-time.Hour)
	storeClock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick = tick.Add(time.Second)
		return tick
	}
	st, err := store.NewLibSQLStore("file:"+filepath.Join(t.TempDir(), "actions.db"), store.WithClock(storeClock))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	env := &testEnv{
		store:   st,
		mailer:  &notify.RecordingMailer{},
		chat:    &notify.RecordingChat{},
		hub:     streaming.NewMemoryHub(),
		starter: &recordingStarter{},
		reg:     NewRegistry(),
	}
	deps := Deps{
		Store:   st,
		Mailer:  env.mailer,
		Chat:    env.chat,
		Hub:     env.hub,
		Starter: env.starter,
		Clock:   func() time.Time { return fixedNow },
	}
	for _, m := range mutate {
		m(&deps)
	}
	require.NoError(t, RegisterBuiltins(env.reg, deps))
	return env
}

func (e *testEnv) seedTicket(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, e.store.CreateTicket(context.Background(), &store.Ticket{ID: id, Subject: "printer on fire"}))
}

func (e *testEnv) seedUser(t *testing.T, id, name string, skills ...string) {
	t.Helper()
	require.NoError(t, e.store.CreateUser(context.Background(), &store.User{ID: id, Name: name, Active: true, Skills: skills}))
}

// run validates and executes one handler the way the dispatcher does.
func (e *testEnv) run(t *testing.T, kind schema.ActionKind, config, payload map[string]any) (map[string]any, error) {
	t.Helper()
	return e.runWithKey(t, kind, config, payload, "inst-1/0")
}

func (e *testEnv) runWithKey(t *testing.T, kind schema.ActionKind, config, payload map[string]any, key string) (map[string]any, error) {
	t.Helper()
	h, err := e.reg.Get(kind)
	require.NoError(t, err)
	if config == nil {
		config = map[string]any{}
	}
	if err := h.Validate(config); err != nil {
		return nil, err
	}
	return h.Execute(context.Background(), Input{
		Config: config,
		Exec: &schema.ExecutionContext{
			InstanceID:   "inst-1",
			WorkflowID:   "wf-1",
			EventPayload: payload,
			Variables:    map[string]any{},
		},
		Action:         string(kind),
		IdempotencyKey: key,
	})
}
