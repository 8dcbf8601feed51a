package entity

import "time"

// ApprovalTask is one outstanding decision point within an instance, bound
// to one resolved assignee. Tasks are created lazily, one at a time, as the
// instance advances through its step snapshot: exactly one PENDING task
// exists per PENDING instance.
type ApprovalTask struct {
	ID         int64      `json:"id"`
	TenantID   string     `json:"tenant_id"`
	InstanceID int64      `json:"instance_id"`
	StepOrder  int        `json:"step_order"`
	StepName   string     `json:"step_name"`
	AssigneeID string     `json:"assignee_id"` // resolved at task creation
	Status     string     `json:"status"`
	Comment    string     `json:"comment,omitempty"`
	ActionAt   *time.Time `json:"action_at,omitempty"`
	DueAt      *time.Time `json:"due_at,omitempty"` // nil when the flow has no timeout
	CreatedAt  time.Time  `json:"created_at"`
}

// TaskView is a task row joined with flow and instance context for the
// approver inbox (deep-linking back to the gated entity).
type TaskView struct {
	Task        ApprovalTask `json:"task"`
	FlowName    string       `json:"flow_name"`
	Module      string       `json:"module"`
	EntityType  string       `json:"entity_type"`
	EntityID    string       `json:"entity_id"`
	RequesterID string       `json:"requester_id"`
}

// OverdueTask is a pending task joined with its flow's timeout policy,
// as selected by the sweeper.
type OverdueTask struct {
	Task          ApprovalTask `json:"task"`
	InstanceID    int64        `json:"instance_id"`
	RequesterID   string       `json:"requester_id"`
	FlowName      string       `json:"flow_name"`
	TimeoutHours  int          `json:"timeout_hours"`
	TimeoutAction string       `json:"timeout_action"`
}
