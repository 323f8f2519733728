package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/ticketflow/internal/engine"
	"github.com/rendis/ticketflow/pkg/schema"
)

// handleRun executes an action list for one instance.
func (s *TicketflowServer) handleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw := mcp.ParseArgument(req, "actions", nil)
	if raw == nil {
		return mcp.NewToolResultError("actions is required"), nil
	}
	var list []*schema.Action
	if err := decode(raw, &list); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid actions: %v", err)), nil
	}
	if req.GetBool("stop_at_boundary", false) {
		list = engine.SliceAtStop(list)
	}

	result, err := s.executor.RunPooled(ctx, list, execContext(req))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("run not started: %v", err)), nil
	}
	return marshalResult(result)
}

// handleExecuteAction executes a single action.
func (s *TicketflowServer) handleExecuteAction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw := mcp.ParseStringMap(req, "action", nil)
	if raw == nil {
		return mcp.NewToolResultError("action is required"), nil
	}
	var action schema.Action
	if err := decode(raw, &action); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid action: %v", err)), nil
	}
	if action.Type == "" {
		return mcp.NewToolResultError("action.action_type is required"), nil
	}

	result := s.executor.ExecuteAction(ctx, &action, execContext(req))
	return marshalResult(result)
}

type actionInfo struct {
	Kind         schema.ActionKind `json:"kind"`
	Description  string            `json:"description,omitempty"`
	ConfigSchema json.RawMessage   `json:"config_schema,omitempty"`
}

// handleActions lists the registered action types.
func (s *TicketflowServer) handleActions(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.registry == nil {
		return marshalResult([]actionInfo{})
	}
	infos := s.registry.List()
	out := make([]actionInfo, 0, len(infos))
	for _, info := range infos {
		item := actionInfo{Kind: info.Kind, Description: info.Description}
		if h, err := s.registry.Get(info.Kind); err == nil {
			item.ConfigSchema = h.Schema().ConfigSchema
		}
		out = append(out, item)
	}
	return marshalResult(out)
}

// handleWatch binds the calling session to a user's live updates.
func (s *TicketflowServer) handleWatch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError("user_id is required"), nil
	}
	session := server.ClientSessionFromContext(ctx)
	if session == nil {
		return marshalResult(map[string]any{"user_id": userID, "watching": false})
	}
	s.sessions.Register(userID, session.SessionID())
	return marshalResult(map[string]any{
		"user_id":  userID,
		"watching": true,
		"live":     s.hub != nil,
	})
}

// execContext builds the execution context from the shared request arguments.
func execContext(req mcp.CallToolRequest) *schema.ExecutionContext {
	return &schema.ExecutionContext{
		InstanceID:   req.GetString("instance_id", ""),
		WorkflowID:   req.GetString("workflow_id", ""),
		EventPayload: mcp.ParseStringMap(req, "event_payload", nil),
		Variables:    mcp.ParseStringMap(req, "variables", map[string]any{}),
	}
}

// decode converts a loosely typed tool argument into target via JSON.
func decode(raw, target any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
