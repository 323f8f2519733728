package mcp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/ticketflow/internal/streaming"
)

type sentNotification struct {
	session string
	params  map[string]any
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentNotification
	errs map[string]error
}

func (f *fakeSender) SendNotificationToSpecificClient(sessionID string, _ string, params map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[sessionID]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentNotification{session: sessionID, params: params})
	return nil
}

func (f *fakeSender) Sent() []sentNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentNotification(nil), f.sent...)
}

func TestSessionRegistry(t *testing.T) {
	r := NewSessionRegistry()
	r.Register("U1", "s1")
	r.Register("U1", "s2")
	r.Register("U2", "s1")

	assert.ElementsMatch(t, []string{"s1", "s2"}, r.SessionsFor("U1"))
	r.Remove("s1")
	assert.Equal(t, []string{"s2"}, r.SessionsFor("U1"))
	assert.Empty(t, r.SessionsFor("U2"))
}

func TestForward_DropsVanishedSessions(t *testing.T) {
	sessions := NewSessionRegistry()
	sessions.Register("U1", "live")
	sessions.Register("U1", "gone")
	sender := &fakeSender{errs: map[string]error{"gone": server.ErrSessionNotFound}}
	fwd := NewUpdateForwarder(sender, sessions, nil)

	fwd.Forward(streaming.Update{UserID: "U1", Kind: streaming.KindNotification, Message: "hello"})
	fwd.Forward(streaming.Update{UserID: "U3", Message: "nobody listens"})

	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "live", sent[0].session)
	assert.Equal(t, "hello", sent[0].params["message"])
	assert.Equal(t, []string{"live"}, sessions.SessionsFor("U1"))
}

func TestForward_KeepsSessionOnOtherErrors(t *testing.T) {
	sessions := NewSessionRegistry()
	sessions.Register("U1", "s1")
	sender := &fakeSender{errs: map[string]error{"s1": errors.New("write failed")}}

	NewUpdateForwarder(sender, sessions, nil).Forward(streaming.Update{UserID: "U1"})
	assert.Equal(t, []string{"s1"}, sessions.SessionsFor("U1"))
}

func TestUpdateForwarder_Run(t *testing.T) {
	hub := streaming.NewMemoryHub()
	sessions := NewSessionRegistry()
	sessions.Register("U1", "s1")
	sender := &fakeSender{}
	fwd := NewUpdateForwarder(sender, sessions, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fwd.Run(ctx, hub) }()

	require.Eventually(t, func() bool { return hub.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, hub.Publish(context.Background(), streaming.Update{UserID: "U1", Message: "assigned"}))
	require.Eventually(t, func() bool { return len(sender.Sent()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("forwarder did not stop")
	}
}
