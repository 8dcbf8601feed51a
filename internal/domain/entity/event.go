package entity

import "time"

// Event action types recorded in the audit trail
const (
	EventInstanceCreated = "INSTANCE_CREATED"
	EventTaskCreated     = "TASK_CREATED"
	EventTaskApproved    = "TASK_APPROVED"
	EventTaskRejected    = "TASK_REJECTED"
	EventTaskCanceled    = "TASK_CANCELED"
	EventTaskReassigned  = "TASK_REASSIGNED"
	EventTaskReminded    = "TASK_REMINDED"
	EventFlowApproved    = "FLOW_APPROVED"
	EventFlowRejected    = "FLOW_REJECTED"
	EventFlowCanceled    = "FLOW_CANCELED"
)

// ApprovalEvent is one audit trail entry. Every state transition on an
// instance or task writes an event in the same transaction.
type ApprovalEvent struct {
	ID         int64     `json:"id"`
	TenantID   string    `json:"tenant_id"`
	InstanceID int64     `json:"instance_id"`
	TaskID     int64     `json:"task_id,omitempty"` // 0 for instance-level events
	ActorID    string    `json:"actor_id"`
	Action     string    `json:"action"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
