package entity

import (
	"encoding/json"
	"time"
)

// ApprovalInstance is one run of a flow against one gated business action.
// It is created by the approval gate, mutated only by the decision processor
// and never deleted; terminal instances form the audit trail.
type ApprovalInstance struct {
	ID               int64            `json:"id"`
	TenantID         string           `json:"tenant_id"`
	FlowID           int64            `json:"flow_id"`
	EntityType       string           `json:"entity_type"`
	EntityID         string           `json:"entity_id"`
	TriggerAction    string           `json:"trigger_action"`
	RequesterID      string           `json:"requester_id"`
	Status           string           `json:"status"`
	CurrentStepOrder int              `json:"current_step_order"`
	Steps            []StepDefinition `json:"steps"` // snapshot taken at creation
	ResumeContext    json.RawMessage  `json:"resume_context,omitempty"`
	NeedsReconcile   bool             `json:"needs_reconcile"`
	CreatedAt        time.Time        `json:"created_at"`
	CompletedAt      *time.Time       `json:"completed_at,omitempty"`
}

// StepAt returns the snapshot step with the given order, or nil.
func (i *ApprovalInstance) StepAt(order int) *StepDefinition {
	for idx := range i.Steps {
		if i.Steps[idx].Order == order {
			return &i.Steps[idx]
		}
	}
	return nil
}

// CurrentStep returns the snapshot step the instance is waiting on,
// or nil if the cursor is past the last step.
func (i *ApprovalInstance) CurrentStep() *StepDefinition {
	for idx := range i.Steps {
		if i.Steps[idx].Order == i.CurrentStepOrder {
			return &i.Steps[idx]
		}
	}
	return nil
}

// NextStep returns the snapshot step after the current cursor, or nil if
// the current step is the last one.
func (i *ApprovalInstance) NextStep() *StepDefinition {
	for idx := range i.Steps {
		if i.Steps[idx].Order == i.CurrentStepOrder+1 {
			return &i.Steps[idx]
		}
	}
	return nil
}
