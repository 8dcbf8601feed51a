package service

import (
	"context"
	"fmt"

	"github.com/decorcrm/approval-engine/internal/application/port"
	"github.com/decorcrm/approval-engine/internal/domain/approval"
	"github.com/decorcrm/approval-engine/internal/domain/entity"
)

// ApproverResolver maps a step's abstract approver descriptor to a concrete
// assignee. Resolution happens at task-creation time, not flow-authoring
// time, so organizational changes are picked up by the next task.
type ApproverResolver interface {
	Resolve(ctx context.Context, tenantID string, step entity.StepDefinition, requesterID string) (string, error)

	// EscalationTarget picks the assignee an overdue task escalates to:
	// the current assignee's manager, falling back to the tenant default
	// approver.
	EscalationTarget(ctx context.Context, tenantID, currentAssigneeID string) (string, error)
}

type approverResolverImpl struct {
	directory port.Directory
	logger    Logger
}

// NewApproverResolver creates a new ApproverResolver
func NewApproverResolver(directory port.Directory, logger Logger) ApproverResolver {
	return &approverResolverImpl{
		directory: directory,
		logger:    logger,
	}
}

// Resolve picks the assignee for a step. ROLE steps resolve to a single
// approver: the first active holder of the role (single-approver-wins). A
// role with no holders and a requester without a manager both fall back to
// the tenant default approver.
func (r *approverResolverImpl) Resolve(ctx context.Context, tenantID string, step entity.StepDefinition, requesterID string) (string, error) {
	switch step.ApproverType {
	case entity.ApproverTypeUser:
		if step.ApproverValue == "" {
			return "", &approval.ValidationError{Field: "approver_value", Reason: fmt.Sprintf("step %d has no user id", step.Order)}
		}
		return step.ApproverValue, nil

	case entity.ApproverTypeRole:
		holders, err := r.directory.RoleHolders(ctx, tenantID, step.ApproverValue)
		if err != nil {
			return "", fmt.Errorf("resolve role holders: %w", err)
		}
		if len(holders) > 0 {
			return holders[0], nil
		}
		r.logger.Warn("No active holder for approver role, falling back to default approver",
			"tenant_id", tenantID, "role", step.ApproverValue, "step", step.Order)
		return r.fallback(ctx, tenantID)

	case entity.ApproverTypeManagerChain:
		manager, err := r.directory.ManagerOf(ctx, tenantID, requesterID)
		if err != nil {
			return "", fmt.Errorf("resolve manager: %w", err)
		}
		if manager != "" {
			return manager, nil
		}
		r.logger.Warn("Requester has no manager configured, falling back to default approver",
			"tenant_id", tenantID, "requester_id", requesterID)
		return r.fallback(ctx, tenantID)

	default:
		return "", &approval.ValidationError{Field: "approver_type", Reason: fmt.Sprintf("unknown approver type %q", step.ApproverType)}
	}
}

// EscalationTarget resolves where an overdue task goes
func (r *approverResolverImpl) EscalationTarget(ctx context.Context, tenantID, currentAssigneeID string) (string, error) {
	manager, err := r.directory.ManagerOf(ctx, tenantID, currentAssigneeID)
	if err != nil {
		return "", fmt.Errorf("resolve escalation manager: %w", err)
	}
	if manager != "" && manager != currentAssigneeID {
		return manager, nil
	}
	return r.fallback(ctx, tenantID)
}

func (r *approverResolverImpl) fallback(ctx context.Context, tenantID string) (string, error) {
	approver, err := r.directory.DefaultApprover(ctx, tenantID)
	if err != nil {
		return "", fmt.Errorf("resolve default approver: %w", err)
	}
	if approver == "" {
		return "", &approval.ValidationError{Field: "tenant", Reason: "no default approver configured"}
	}
	return approver, nil
}
