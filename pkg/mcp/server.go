package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/ticketflow/internal/actions"
	"github.com/rendis/ticketflow/internal/logging"
	"github.com/rendis/ticketflow/internal/streaming"
	"github.com/rendis/ticketflow/pkg/schema"
)

// Runner executes actions. Satisfied by *engine.Executor and test fakes.
type Runner interface {
	RunPooled(ctx context.Context, list []*schema.Action, ec *schema.ExecutionContext) (*schema.ExecutionResult, error)
	ExecuteAction(ctx context.Context, action *schema.Action, ec *schema.ExecutionContext) *schema.ActionResult
}

// TicketflowServerDeps holds the dependencies for creating a TicketflowServer.
type TicketflowServerDeps struct {
	Executor Runner
	Registry actions.HandlerRegistry
	// Hub is optional; when set, live updates are forwarded to watching clients.
	Hub    streaming.Hub
	Logger *slog.Logger
}

// TicketflowServer wraps an MCP server with the engine's tool handlers.
type TicketflowServer struct {
	executor  Runner
	registry  actions.HandlerRegistry
	hub       streaming.Hub
	sessions  *SessionRegistry
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewTicketflowServer creates a server with all tools registered.
func NewTicketflowServer(deps TicketflowServerDeps) *TicketflowServer {
	s := &TicketflowServer{
		executor: deps.Executor,
		registry: deps.Registry,
		hub:      deps.Hub,
		sessions: NewSessionRegistry(),
		logger:   logging.OrDefault(deps.Logger).With("module", "mcp"),
	}

	mcpSrv := server.NewMCPServer(
		"ticketflow",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Ticketflow executes workflow actions against tickets. Use ticketflow.run to execute an ordered action list for one instance, ticketflow.execute_action for a single action, ticketflow.actions to list the supported action types, and ticketflow.watch to receive a user's live notifications."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *TicketflowServer) Serve(ctx context.Context) error {
	if s.hub != nil {
		fwd := NewUpdateForwarder(s.mcpServer, s.sessions, s.logger)
		go func() {
			if err := fwd.Run(ctx, s.hub); err != nil {
				s.logger.ErrorContext(ctx, "live update forwarding stopped", "error", err)
			}
		}()
	}
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *TicketflowServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *TicketflowServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: runTool(), Handler: s.handleRun},
		{Tool: executeActionTool(), Handler: s.handleExecuteAction},
		{Tool: actionsTool(), Handler: s.handleActions},
		{Tool: watchTool(), Handler: s.handleWatch},
	}
}

// --- Tool definitions ---

func runTool() mcp.Tool {
	return mcp.NewTool("ticketflow.run",
		mcp.WithDescription("Execute an ordered list of actions for one workflow instance"),
		mcp.WithArray("actions", mcp.Required(), mcp.Description("Actions to execute in order: {name, action_type, config, retry_count, retry_delay_seconds}")),
		mcp.WithObject("event_payload", mcp.Description("Payload of the event that fired the workflow")),
		mcp.WithObject("variables", mcp.Description("Instance-scoped variables")),
		mcp.WithString("instance_id", mcp.Description("Instance ID (default: generated)")),
		mcp.WithString("workflow_id", mcp.Description("ID of the workflow definition")),
		mcp.WithBoolean("stop_at_boundary", mcp.Description("Skip actions after the first stop_workflow")),
	)
}

func executeActionTool() mcp.Tool {
	return mcp.NewTool("ticketflow.execute_action",
		mcp.WithDescription("Execute a single action"),
		mcp.WithObject("action", mcp.Required(), mcp.Description("Action: {name, action_type, config, retry_count, retry_delay_seconds}")),
		mcp.WithObject("event_payload", mcp.Description("Payload of the event that fired the workflow")),
		mcp.WithObject("variables", mcp.Description("Instance-scoped variables")),
		mcp.WithString("instance_id", mcp.Description("Instance ID (default: generated)")),
		mcp.WithString("workflow_id", mcp.Description("ID of the workflow definition")),
	)
}

func actionsTool() mcp.Tool {
	return mcp.NewTool("ticketflow.actions",
		mcp.WithDescription("List the supported action types and their config schemas"),
	)
}

func watchTool() mcp.Tool {
	return mcp.NewTool("ticketflow.watch",
		mcp.WithDescription("Receive a user's live notifications on this session"),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("User whose notifications to forward")),
	)
}
