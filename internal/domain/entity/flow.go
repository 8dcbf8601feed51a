package entity

import "time"

// FlowDefinition is a tenant-owned template of ordered approval steps for
// one (module, triggerAction) pair. At most one active definition may exist
// per (tenant, module, triggerAction).
type FlowDefinition struct {
	ID            int64            `json:"id"`
	TenantID      string           `json:"tenant_id"`
	Name          string           `json:"name"`
	Module        string           `json:"module"`
	TriggerAction string           `json:"trigger_action"`
	Steps         []StepDefinition `json:"steps"`
	TimeoutHours  int              `json:"timeout_hours"` // 0 = no timeout
	TimeoutAction string           `json:"timeout_action"`
	IsActive      bool             `json:"is_active"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// StepDefinition is one position in a flow's sequence. Steps are snapshotted
// into the instance at creation time, so editing a flow never alters
// in-flight approvals.
type StepDefinition struct {
	Order         int    `json:"order"` // 1-based, contiguous within a flow
	Name          string `json:"name"`
	ApproverType  string `json:"approver_type"`
	ApproverValue string `json:"approver_value"` // user id for USER, role code for ROLE
	Required      bool   `json:"required"`
}

// StepAt returns the step with the given order, or nil if out of range.
func (f *FlowDefinition) StepAt(order int) *StepDefinition {
	for i := range f.Steps {
		if f.Steps[i].Order == order {
			return &f.Steps[i]
		}
	}
	return nil
}

// HasTimeout reports whether tasks of this flow carry a due time.
func (f *FlowDefinition) HasTimeout() bool {
	return f.TimeoutHours > 0
}
