package schema

// ActionKind is the discriminator selecting which handler executes an action.
type ActionKind string

const (
	// Ticket mutation.
	KindAssignTicket         ActionKind = "assign_ticket"
	KindUpdateTicketStatus   ActionKind = "update_ticket_status"
	KindUpdateTicketPriority ActionKind = "update_ticket_priority"
	KindAddTicketComment     ActionKind = "add_ticket_comment"
	KindAddTicketTag         ActionKind = "add_ticket_tag"
	KindRemoveTicketTag      ActionKind = "remove_ticket_tag"
	KindEscalateTicket       ActionKind = "escalate_ticket"

	// Assignment strategies.
	KindAssignToGroup    ActionKind = "assign_to_group"
	KindAssignRoundRobin ActionKind = "assign_round_robin"
	KindAssignByWorkload ActionKind = "assign_by_workload"
	KindAssignBySkill    ActionKind = "assign_by_skill"

	// Notification and integration.
	KindSendEmail             ActionKind = "send_email"
	KindSendTeamsNotification ActionKind = "send_teams_notification"
	KindSendWebhook           ActionKind = "send_webhook"
	KindCreateNotification    ActionKind = "create_notification"
	KindCallAPI               ActionKind = "call_api"

	// SLA control.
	KindApplySLAPolicy ActionKind = "apply_sla_policy"
	KindPauseSLA       ActionKind = "pause_sla"
	KindResumeSLA      ActionKind = "resume_sla"

	// Field manipulation.
	KindSetField       ActionKind = "set_field"
	KindIncrementField ActionKind = "increment_field"
	KindCopyField      ActionKind = "copy_field"

	// Control flow.
	KindWait         ActionKind = "wait"
	KindCallWorkflow ActionKind = "call_workflow"
	KindStopWorkflow ActionKind = "stop_workflow"
)

var knownKinds = []ActionKind{
	KindAssignTicket,
	KindUpdateTicketStatus,
	KindUpdateTicketPriority,
	KindAddTicketComment,
	KindAddTicketTag,
	KindRemoveTicketTag,
	KindEscalateTicket,
	KindAssignToGroup,
	KindAssignRoundRobin,
	KindAssignByWorkload,
	KindAssignBySkill,
	KindSendEmail,
	KindSendTeamsNotification,
	KindSendWebhook,
	KindCreateNotification,
	KindCallAPI,
	KindApplySLAPolicy,
	KindPauseSLA,
	KindResumeSLA,
	KindSetField,
	KindIncrementField,
	KindCopyField,
	KindWait,
	KindCallWorkflow,
	KindStopWorkflow,
}

// AllKinds returns every action kind this build understands.
func AllKinds() []ActionKind {
	out := make([]ActionKind, len(knownKinds))
	copy(out, knownKinds)
	return out
}

// Known reports whether k is part of the closed vocabulary.
func (k ActionKind) Known() bool {
	for _, known := range knownKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Action is one configured unit of work inside a workflow definition.
// Config is untyped JSON and may contain {{path}} placeholders.
type Action struct {
	Name              string     `json:"name"`
	Type              ActionKind `json:"action_type"`
	Config            any        `json:"config,omitempty"`
	RetryCount        int        `json:"retry_count,omitempty"`
	RetryDelaySeconds int        `json:"retry_delay_seconds,omitempty"`
}

// ExecutionContext is the per-run bundle passed to every action of one instance.
// It is never mutated by the engine.
type ExecutionContext struct {
	InstanceID   string         `json:"instance_id"`
	WorkflowID   string         `json:"workflow_id"`
	EventPayload map[string]any `json:"event_payload,omitempty"`
	Variables    map[string]any `json:"variables,omitempty"`
}

// ActionResult is produced once per executed action.
type ActionResult struct {
	Success        bool           `json:"success"`
	Output         map[string]any `json:"output,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	DurationMs     int64          `json:"duration_ms"`
	RetryAttempted int            `json:"retry_attempted"`
}

// ExecutionResult aggregates the results of one instance run.
type ExecutionResult struct {
	InstanceID      string          `json:"instance_id"`
	Success         bool            `json:"success"`
	ActionsExecuted int             `json:"actions_executed"`
	ActionsFailed   int             `json:"actions_failed"`
	TotalDurationMs int64           `json:"total_duration_ms"`
	Outputs         []*ActionResult `json:"outputs"`
}
