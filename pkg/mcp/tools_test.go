package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/ticketflow/internal/actions"
	"github.com/rendis/ticketflow/internal/engine"
	"github.com/rendis/ticketflow/pkg/schema"
)

func newTestServer(t *testing.T) *TicketflowServer {
	t.Helper()
	reg := actions.NewRegistry()
	require.NoError(t, actions.RegisterBuiltins(reg, actions.Deps{}))
	return NewTicketflowServer(TicketflowServerDeps{
		Executor: engine.NewExecutor(reg, engine.ExecutorConfig{}),
		Registry: reg,
	})
}

func buildRequest(toolName string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	}
}

func extractText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	return mcp.GetTextFromContent(result.Content[0])
}

func unmarshalResult(t *testing.T, result *mcp.CallToolResult, target any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(extractText(t, result)), target))
}

func TestRunTool(t *testing.T) {
	s := newTestServer(t)

	req := buildRequest("ticketflow.run", map[string]any{
		"instance_id": "inst-9",
		"actions": []any{
			map[string]any{"name": "pause", "action_type": "wait", "config": map[string]any{"seconds": 0}},
			map[string]any{"name": "child", "action_type": "call_workflow", "config": map[string]any{"workflow_id": "{{child}}"}},
			map[string]any{"name": "legacy", "action_type": "send_fax"},
		},
		"event_payload": map[string]any{"child": "wf-escalation"},
	})
	result, err := s.handleRun(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError, extractText(t, result))

	var res schema.ExecutionResult
	unmarshalResult(t, result, &res)
	assert.Equal(t, "inst-9", res.InstanceID)
	assert.True(t, res.Success)
	assert.Equal(t, 3, res.ActionsExecuted)
	require.Len(t, res.Outputs, 3)
	assert.Equal(t, "wf-escalation", res.Outputs[1].Output["workflow_id"])
	assert.Equal(t, false, res.Outputs[1].Output["triggered"])
}

func TestRunTool_StopAtBoundary(t *testing.T) {
	s := newTestServer(t)

	req := buildRequest("ticketflow.run", map[string]any{
		"actions": []any{
			map[string]any{"action_type": "stop_workflow"},
			map[string]any{"action_type": "wait", "config": map[string]any{"seconds": 0}},
		},
		"stop_at_boundary": true,
	})
	result, err := s.handleRun(context.Background(), req)
	require.NoError(t, err)

	var res schema.ExecutionResult
	unmarshalResult(t, result, &res)
	assert.Len(t, res.Outputs, 1)
	assert.NotEmpty(t, res.InstanceID)
}

func TestRunTool_FailuresStayInResult(t *testing.T) {
	s := newTestServer(t)

	req := buildRequest("ticketflow.run", map[string]any{
		"actions": []any{map[string]any{"action_type": "wait", "config": map[string]any{"seconds": -1}}},
	})
	result, err := s.handleRun(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var res schema.ExecutionResult
	unmarshalResult(t, result, &res)
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.ActionsFailed)
	assert.Contains(t, res.Outputs[0].ErrorMessage, "must not be negative")
}

func TestRunTool_InvalidArguments(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleRun(context.Background(), buildRequest("ticketflow.run", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = s.handleRun(context.Background(), buildRequest("ticketflow.run", map[string]any{"actions": "nope"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestExecuteActionTool(t *testing.T) {
	s := newTestServer(t)

	req := buildRequest("ticketflow.execute_action", map[string]any{
		"action": map[string]any{"action_type": "stop_workflow"},
	})
	result, err := s.handleExecuteAction(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError)

	var res schema.ActionResult
	unmarshalResult(t, result, &res)
	assert.True(t, res.Success)
	assert.Equal(t, true, res.Output["stopped"])
}

func TestExecuteActionTool_MissingAction(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleExecuteAction(context.Background(), buildRequest("ticketflow.execute_action", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = s.handleExecuteAction(context.Background(), buildRequest("ticketflow.execute_action",
		map[string]any{"action": map[string]any{"name": "typeless"}}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestActionsTool(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleActions(context.Background(), buildRequest("ticketflow.actions", nil))
	require.NoError(t, err)

	var infos []actionInfo
	unmarshalResult(t, result, &infos)
	assert.Len(t, infos, len(schema.AllKinds()))
	for _, info := range infos {
		assert.True(t, info.Kind.Known())
		assert.NotEmpty(t, info.Description)
	}
}

func TestWatchTool_NoSession(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleWatch(context.Background(), buildRequest("ticketflow.watch", map[string]any{"user_id": "U1"}))
	require.NoError(t, err)
	var out map[string]any
	unmarshalResult(t, result, &out)
	assert.Equal(t, false, out["watching"])

	result, err = s.handleWatch(context.Background(), buildRequest("ticketflow.watch", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
