package port

import (
	"context"
	"time"

	"github.com/decorcrm/approval-engine/internal/domain/entity"
)

// FlowRepository defines persistence operations for FlowDefinition
type FlowRepository interface {
	Create(ctx context.Context, flow *entity.FlowDefinition) error
	Update(ctx context.Context, flow *entity.FlowDefinition) error
	GetByID(ctx context.Context, tenantID string, id int64) (*entity.FlowDefinition, error)
	List(ctx context.Context, tenantID string) ([]*entity.FlowDefinition, error)

	// FindActive returns the single active flow for (tenant, module,
	// triggerAction), or nil when no active flow matches.
	FindActive(ctx context.Context, tenantID, module, triggerAction string) (*entity.FlowDefinition, error)

	// Deactivate clears the active flag. Returns false if the flow was
	// not active (or absent).
	Deactivate(ctx context.Context, tenantID string, id int64) (bool, error)
}

// InstanceRepository defines persistence operations for ApprovalInstance
type InstanceRepository interface {
	Create(ctx context.Context, instance *entity.ApprovalInstance) error
	GetByID(ctx context.Context, tenantID string, id int64) (*entity.ApprovalInstance, error)

	// FindPending returns the PENDING instance gating the given action,
	// or nil when none exists.
	FindPending(ctx context.Context, tenantID, entityType, entityID, triggerAction string) (*entity.ApprovalInstance, error)

	// AdvanceStep moves the step cursor from fromOrder to fromOrder+1.
	// Guarded on status=PENDING and the expected cursor; returns false
	// when the guard did not match.
	AdvanceStep(ctx context.Context, id int64, fromOrder int) (bool, error)

	// Complete moves a PENDING instance to the given terminal status.
	// Returns false when the instance was no longer pending.
	Complete(ctx context.Context, id int64, status string, completedAt time.Time) (bool, error)

	// MarkNeedsReconcile flags an instance whose bridge invocation failed
	// after it reached a terminal state.
	MarkNeedsReconcile(ctx context.Context, id int64) error

	ListUnreconciled(ctx context.Context, tenantID string, limit int) ([]*entity.ApprovalInstance, error)
}

// TaskRepository defines persistence operations for ApprovalTask
type TaskRepository interface {
	Create(ctx context.Context, task *entity.ApprovalTask) error
	GetByID(ctx context.Context, tenantID string, id int64) (*entity.ApprovalTask, error)
	GetByInstanceID(ctx context.Context, instanceID int64) ([]*entity.ApprovalTask, error)

	// Resolve moves a PENDING task to the given terminal status. The
	// update is conditional on status=PENDING and reports whether this
	// caller won; a false return means another decision got there first.
	Resolve(ctx context.Context, id int64, status, comment string, actionAt time.Time) (bool, error)

	// ExtendDue pushes the due time of a still-pending task (REMIND).
	ExtendDue(ctx context.Context, id int64, dueAt time.Time) (bool, error)

	// Reassign moves a still-pending task to a new assignee (ESCALATE).
	Reassign(ctx context.Context, id int64, assigneeID string, dueAt time.Time) (bool, error)

	// ListOverdue returns pending tasks past their due time, joined with
	// the owning flow's timeout policy.
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]*entity.OverdueTask, error)

	ListPendingForUser(ctx context.Context, tenantID, userID string, limit int) ([]*entity.TaskView, error)
	ListProcessedForUser(ctx context.Context, tenantID, userID string, limit int) ([]*entity.TaskView, error)
}

// EventRepository defines persistence operations for the audit trail
type EventRepository interface {
	Create(ctx context.Context, event *entity.ApprovalEvent) error
	GetByInstanceID(ctx context.Context, instanceID int64) ([]*entity.ApprovalEvent, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
