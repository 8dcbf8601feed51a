package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/decorcrm/approval-engine/internal/application/port"
	"github.com/decorcrm/approval-engine/internal/domain/approval"
	"github.com/decorcrm/approval-engine/internal/domain/entity"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// SaveFlowInput is the request to create or replace a flow definition.
type SaveFlowInput struct {
	ID            int64                   `json:"id,omitempty"` // 0 = create
	TenantID      string                  `json:"tenant_id"`
	Name          string                  `json:"name"`
	Module        string                  `json:"module"`
	TriggerAction string                  `json:"trigger_action"`
	Steps         []entity.StepDefinition `json:"steps"`
	TimeoutHours  int                     `json:"timeout_hours"`
	TimeoutAction string                  `json:"timeout_action"`
	IsActive      bool                    `json:"is_active"`
}

// FlowService manages tenant-scoped flow definitions
type FlowService interface {
	SaveFlow(ctx context.Context, input SaveFlowInput) (*entity.FlowDefinition, error)
	GetFlow(ctx context.Context, tenantID string, id int64) (*entity.FlowDefinition, error)
	ListFlows(ctx context.Context, tenantID string) ([]*entity.FlowDefinition, error)
	DeactivateFlow(ctx context.Context, tenantID string, id int64) error
}

type flowServiceImpl struct {
	flowRepo  port.FlowRepository
	txManager port.TransactionManager
	logger    Logger
}

// NewFlowService creates a new FlowService
func NewFlowService(flowRepo port.FlowRepository, txManager port.TransactionManager, logger Logger) FlowService {
	return &flowServiceImpl{
		flowRepo:  flowRepo,
		txManager: txManager,
		logger:    logger,
	}
}

// SaveFlow validates and persists a flow definition. Activating a flow while
// another active flow exists for the same (tenant, module, triggerAction)
// fails with a conflict; callers deactivate the previous flow explicitly.
func (s *flowServiceImpl) SaveFlow(ctx context.Context, input SaveFlowInput) (*entity.FlowDefinition, error) {
	if err := validateFlowInput(input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	flow := &entity.FlowDefinition{
		ID:            input.ID,
		TenantID:      input.TenantID,
		Name:          input.Name,
		Module:        input.Module,
		TriggerAction: input.TriggerAction,
		Steps:         sortedSteps(input.Steps),
		TimeoutHours:  input.TimeoutHours,
		TimeoutAction: input.TimeoutAction,
		IsActive:      input.IsActive,
		UpdatedAt:     now,
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if input.IsActive {
			existing, err := s.flowRepo.FindActive(txCtx, input.TenantID, input.Module, input.TriggerAction)
			if err != nil {
				return fmt.Errorf("check active flow: %w", err)
			}
			if existing != nil && existing.ID != input.ID {
				return &approval.ConflictError{
					Reason: fmt.Sprintf("an active flow %q already exists for %s/%s", existing.Name, input.Module, input.TriggerAction),
				}
			}
		}

		if input.ID == 0 {
			flow.CreatedAt = now
			return s.flowRepo.Create(txCtx, flow)
		}

		current, err := s.flowRepo.GetByID(txCtx, input.TenantID, input.ID)
		if err != nil {
			return fmt.Errorf("load flow: %w", err)
		}
		if current == nil {
			return &approval.NotFoundError{Resource: "flow", ID: fmt.Sprintf("%d", input.ID)}
		}
		flow.CreatedAt = current.CreatedAt
		return s.flowRepo.Update(txCtx, flow)
	})
	if err != nil {
		s.logger.Error("Failed to save flow",
			"error", err, "tenant_id", input.TenantID, "module", input.Module, "trigger_action", input.TriggerAction)
		return nil, err
	}

	s.logger.Info("Flow saved",
		"id", flow.ID, "tenant_id", flow.TenantID, "module", flow.Module,
		"trigger_action", flow.TriggerAction, "steps", len(flow.Steps), "active", flow.IsActive)
	return flow, nil
}

// GetFlow retrieves a flow by id within the tenant
func (s *flowServiceImpl) GetFlow(ctx context.Context, tenantID string, id int64) (*entity.FlowDefinition, error) {
	flow, err := s.flowRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		s.logger.Error("Failed to get flow", "error", err, "tenant_id", tenantID, "id", id)
		return nil, err
	}
	if flow == nil {
		return nil, &approval.NotFoundError{Resource: "flow", ID: fmt.Sprintf("%d", id)}
	}
	return flow, nil
}

// ListFlows returns all flows of the tenant
func (s *flowServiceImpl) ListFlows(ctx context.Context, tenantID string) ([]*entity.FlowDefinition, error) {
	flows, err := s.flowRepo.List(ctx, tenantID)
	if err != nil {
		s.logger.Error("Failed to list flows", "error", err, "tenant_id", tenantID)
		return nil, err
	}
	return flows, nil
}

// DeactivateFlow clears the active flag; in-flight instances keep running on
// their step snapshot.
func (s *flowServiceImpl) DeactivateFlow(ctx context.Context, tenantID string, id int64) error {
	ok, err := s.flowRepo.Deactivate(ctx, tenantID, id)
	if err != nil {
		s.logger.Error("Failed to deactivate flow", "error", err, "tenant_id", tenantID, "id", id)
		return err
	}
	if !ok {
		return &approval.NotFoundError{Resource: "active flow", ID: fmt.Sprintf("%d", id)}
	}

	s.logger.Info("Flow deactivated", "tenant_id", tenantID, "id", id)
	return nil
}

func validateFlowInput(input SaveFlowInput) error {
	if input.TenantID == "" {
		return &approval.ValidationError{Field: "tenant_id", Reason: "is required"}
	}
	if input.Name == "" {
		return &approval.ValidationError{Field: "name", Reason: "is required"}
	}
	if !entity.IsValidModule(input.Module) {
		return &approval.ValidationError{Field: "module", Reason: fmt.Sprintf("unknown module %q", input.Module)}
	}
	if !entity.IsValidTriggerAction(input.TriggerAction) {
		return &approval.ValidationError{Field: "trigger_action", Reason: fmt.Sprintf("unknown trigger action %q", input.TriggerAction)}
	}
	if len(input.Steps) == 0 {
		return &approval.ValidationError{Field: "steps", Reason: "at least one step is required"}
	}
	if input.TimeoutHours < 0 {
		return &approval.ValidationError{Field: "timeout_hours", Reason: "must not be negative"}
	}
	if input.TimeoutHours > 0 && !entity.IsValidTimeoutAction(input.TimeoutAction) {
		return &approval.ValidationError{Field: "timeout_action", Reason: fmt.Sprintf("unknown timeout action %q", input.TimeoutAction)}
	}

	// Step orders must be unique and contiguous from 1; required steps
	// need a concrete approver target.
	seen := make(map[int]bool, len(input.Steps))
	for _, step := range input.Steps {
		if seen[step.Order] {
			return &approval.ValidationError{Field: "steps", Reason: fmt.Sprintf("duplicate step order %d", step.Order)}
		}
		seen[step.Order] = true

		if !entity.IsValidApproverType(step.ApproverType) {
			return &approval.ValidationError{Field: "steps", Reason: fmt.Sprintf("step %d: unknown approver type %q", step.Order, step.ApproverType)}
		}
		if step.ApproverType != entity.ApproverTypeManagerChain && step.Required && step.ApproverValue == "" {
			return &approval.ValidationError{Field: "steps", Reason: fmt.Sprintf("step %d: required step needs an approver value", step.Order)}
		}
	}
	for order := 1; order <= len(input.Steps); order++ {
		if !seen[order] {
			return &approval.ValidationError{Field: "steps", Reason: fmt.Sprintf("step orders must be contiguous from 1, missing %d", order)}
		}
	}

	return nil
}

func sortedSteps(steps []entity.StepDefinition) []entity.StepDefinition {
	out := make([]entity.StepDefinition, len(steps))
	copy(out, steps)
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}
