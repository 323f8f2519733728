package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := loadConfig()
	assert.Equal(t, filepath.Join(home, ".ticketflow", "ticketflow.db"), cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10, cfg.PoolSize)
	assert.Equal(t, "30s", cfg.HTTPTimeout)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoadConfig_Layering(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".ticketflow"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".ticketflow", "settings.json"),
		[]byte(`{"log_level": "debug", "pool_size": 4, "smtp_addr": "mail:25", "teams_webhooks": {"ops": "https://hook"}}`), 0o600))

	t.Setenv("TICKETFLOW_POOL_SIZE", "8")
	t.Setenv("TICKETFLOW_REDIS_URL", "redis://cache:6379/0")

	cfg := loadConfig()
	assert.Equal(t, "debug", cfg.LogLevel, "settings.json over defaults")
	assert.Equal(t, 8, cfg.PoolSize, "env over settings.json")
	assert.Equal(t, "mail:25", cfg.SMTPAddr)
	assert.Equal(t, "redis://cache:6379/0", cfg.RedisURL)
	assert.Equal(t, map[string]string{"ops": "https://hook"}, cfg.TeamsWebhooks)
}

func TestLoadConfig_InvalidEnvIgnored(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TICKETFLOW_POOL_SIZE", "lots")
	assert.Equal(t, 10, loadConfig().PoolSize)
}

func TestParseWebhooks(t *testing.T) {
	got := parseWebhooks("ops=https://a, support = https://b,broken,=https://c")
	assert.Equal(t, map[string]string{"ops": "https://a", "support": "https://b"}, got)
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, duration("5s", time.Minute))
	assert.Equal(t, time.Minute, duration("soon", time.Minute))
	assert.Equal(t, time.Minute, duration("-1s", time.Minute))
	assert.Equal(t, time.Duration(0), duration("0s", time.Minute))
}

func TestReadRunFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"context": {"instance_id": "i-1", "workflow_id": "wf", "event_payload": {"ticket_id": "T1"}},
		"actions": [{"name": "stop", "action_type": "stop_workflow"}]
	}`), 0o600))

	in, err := readRunFile(path)
	require.NoError(t, err)
	assert.Equal(t, "i-1", in.Context.InstanceID)
	assert.Equal(t, "T1", in.Context.EventPayload["ticket_id"])
	require.Len(t, in.Actions, 1)
	assert.Equal(t, "stop_workflow", string(in.Actions[0].Type))

	_, err = readRunFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
