package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/decorcrm/approval-engine/internal/application/port"
	"github.com/decorcrm/approval-engine/internal/domain/approval"
	"github.com/decorcrm/approval-engine/internal/domain/entity"
)

// TriggerInput describes a business action about to take effect.
type TriggerInput struct {
	TenantID      string          `json:"tenant_id"`
	Module        string          `json:"module"`
	TriggerAction string          `json:"trigger_action"`
	EntityType    string          `json:"entity_type"`
	EntityID      string          `json:"entity_id"`
	RequesterID   string          `json:"requester_id"`
	ResumeContext json.RawMessage `json:"resume_context,omitempty"`
}

// TriggerResult tells the caller whether its action was intercepted. On
// intercepted=true the caller must park the entity in its pending-approval
// sentinel status and must not perform the gated side effect.
type TriggerResult struct {
	Intercepted bool  `json:"intercepted"`
	InstanceID  int64 `json:"instance_id,omitempty"`
}

// GateConfig tunes trigger throttling.
type GateConfig struct {
	RateLimitCapacity int
	RateLimitWindow   time.Duration
}

// GateService intercepts business actions that match an active flow.
type GateService interface {
	EvaluateTrigger(ctx context.Context, input TriggerInput) (*TriggerResult, error)
}

type gateServiceImpl struct {
	flowRepo     port.FlowRepository
	instanceRepo port.InstanceRepository
	taskRepo     port.TaskRepository
	eventRepo    port.EventRepository
	txManager    port.TransactionManager
	resolver     ApproverResolver
	idempotency  port.IdempotencyStore
	limiter      port.RateLimiter
	notifier     port.Notifier
	config       GateConfig
	logger       Logger
}

// NewGateService creates a new GateService
func NewGateService(
	flowRepo port.FlowRepository,
	instanceRepo port.InstanceRepository,
	taskRepo port.TaskRepository,
	eventRepo port.EventRepository,
	txManager port.TransactionManager,
	resolver ApproverResolver,
	idempotency port.IdempotencyStore,
	limiter port.RateLimiter,
	notifier port.Notifier,
	config GateConfig,
	logger Logger,
) GateService {
	return &gateServiceImpl{
		flowRepo:     flowRepo,
		instanceRepo: instanceRepo,
		taskRepo:     taskRepo,
		eventRepo:    eventRepo,
		txManager:    txManager,
		resolver:     resolver,
		idempotency:  idempotency,
		limiter:      limiter,
		notifier:     notifier,
		config:       config,
		logger:       logger,
	}
}

// EvaluateTrigger checks whether an active flow gates the action. When none
// matches the caller proceeds normally. When one matches, exactly one
// PENDING instance with its first task is created, no matter how many
// concurrent duplicate calls arrive: the idempotency store collapses racers
// on the trigger key and the pending-instance check backstops it.
func (s *gateServiceImpl) EvaluateTrigger(ctx context.Context, input TriggerInput) (*TriggerResult, error) {
	if err := validateTriggerInput(input); err != nil {
		return nil, err
	}

	key := triggerKey(input)
	if !s.limiter.Allow(key, s.config.RateLimitCapacity, s.config.RateLimitWindow) {
		s.logger.Warn("Trigger rate limited", "key", key)
		return nil, approval.ErrRateLimited
	}

	flow, err := s.flowRepo.FindActive(ctx, input.TenantID, input.Module, input.TriggerAction)
	if err != nil {
		s.logger.Error("Failed to look up active flow", "error", err, "key", key)
		return nil, err
	}
	if flow == nil {
		return &TriggerResult{Intercepted: false}, nil
	}

	// Claim the trigger key. A completed record replays the original
	// result; a live PROCESSING record means another call is mid-creation.
	if ok, existing := s.idempotency.Start(key); !ok {
		if existing.State == port.IdempotencyCompleted {
			instanceID, convErr := strconv.ParseInt(existing.Response, 10, 64)
			if convErr != nil {
				return nil, fmt.Errorf("corrupt idempotency record for %s: %w", key, convErr)
			}
			return &TriggerResult{Intercepted: true, InstanceID: instanceID}, nil
		}
		return nil, &approval.ConflictError{Reason: "trigger evaluation already in progress"}
	}

	instance, task, err := s.createInstance(ctx, flow, input)
	if err != nil {
		s.idempotency.Fail(key)
		return nil, err
	}
	s.idempotency.Complete(key, strconv.FormatInt(instance.ID, 10))

	if task != nil {
		if err := s.notifier.NotifyTaskCreated(ctx, task, flow.Name); err != nil {
			s.logger.Warn("Failed to notify first approver", "error", err, "task_id", task.ID)
		}
	}

	s.logger.Info("Trigger intercepted",
		"tenant_id", input.TenantID, "module", input.Module, "trigger_action", input.TriggerAction,
		"entity_type", input.EntityType, "entity_id", input.EntityID,
		"instance_id", instance.ID, "flow_id", flow.ID)
	return &TriggerResult{Intercepted: true, InstanceID: instance.ID}, nil
}

// createInstance snapshots the flow steps and creates the instance with its
// first task inside one transaction.
func (s *gateServiceImpl) createInstance(ctx context.Context, flow *entity.FlowDefinition, input TriggerInput) (*entity.ApprovalInstance, *entity.ApprovalTask, error) {
	now := time.Now().UTC()

	instance := &entity.ApprovalInstance{
		TenantID:         input.TenantID,
		FlowID:           flow.ID,
		EntityType:       input.EntityType,
		EntityID:         input.EntityID,
		TriggerAction:    input.TriggerAction,
		RequesterID:      input.RequesterID,
		Status:           approval.StatusPending.String(),
		CurrentStepOrder: 1,
		Steps:            flow.Steps,
		ResumeContext:    input.ResumeContext,
		CreatedAt:        now,
	}

	var task *entity.ApprovalTask

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		pending, err := s.instanceRepo.FindPending(txCtx, input.TenantID, input.EntityType, input.EntityID, input.TriggerAction)
		if err != nil {
			return fmt.Errorf("check pending instance: %w", err)
		}
		if pending != nil {
			// A racer that slipped past the idempotency store (or a
			// stale retry) already gated this action. Reuse its result.
			instance = pending
			return nil
		}

		firstStep := flow.StepAt(1)
		if firstStep == nil {
			return &approval.ValidationError{Field: "steps", Reason: "flow has no step 1"}
		}
		assignee, err := s.resolver.Resolve(txCtx, input.TenantID, *firstStep, input.RequesterID)
		if err != nil {
			return fmt.Errorf("resolve first approver: %w", err)
		}

		if err := s.instanceRepo.Create(txCtx, instance); err != nil {
			return fmt.Errorf("create instance: %w", err)
		}

		task = &entity.ApprovalTask{
			TenantID:   input.TenantID,
			InstanceID: instance.ID,
			StepOrder:  firstStep.Order,
			StepName:   firstStep.Name,
			AssigneeID: assignee,
			Status:     approval.StatusPending.String(),
			CreatedAt:  now,
			DueAt:      dueAt(now, flow.TimeoutHours),
		}
		if err := s.taskRepo.Create(txCtx, task); err != nil {
			return fmt.Errorf("create first task: %w", err)
		}

		events := []*entity.ApprovalEvent{
			{TenantID: input.TenantID, InstanceID: instance.ID, ActorID: input.RequesterID, Action: entity.EventInstanceCreated, CreatedAt: now},
			{TenantID: input.TenantID, InstanceID: instance.ID, TaskID: task.ID, ActorID: input.RequesterID, Action: entity.EventTaskCreated, CreatedAt: now},
		}
		for _, ev := range events {
			if err := s.eventRepo.Create(txCtx, ev); err != nil {
				return fmt.Errorf("record event: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create approval instance",
			"error", err, "tenant_id", input.TenantID, "entity_type", input.EntityType, "entity_id", input.EntityID)
		return nil, nil, err
	}

	return instance, task, nil
}

func validateTriggerInput(input TriggerInput) error {
	if input.TenantID == "" {
		return &approval.ValidationError{Field: "tenant_id", Reason: "is required"}
	}
	if !entity.IsValidModule(input.Module) {
		return &approval.ValidationError{Field: "module", Reason: fmt.Sprintf("unknown module %q", input.Module)}
	}
	if !entity.IsValidTriggerAction(input.TriggerAction) {
		return &approval.ValidationError{Field: "trigger_action", Reason: fmt.Sprintf("unknown trigger action %q", input.TriggerAction)}
	}
	if input.EntityType == "" || input.EntityID == "" {
		return &approval.ValidationError{Field: "entity", Reason: "entity_type and entity_id are required"}
	}
	if input.RequesterID == "" {
		return &approval.ValidationError{Field: "requester_id", Reason: "is required"}
	}
	return nil
}

func triggerKey(input TriggerInput) string {
	return fmt.Sprintf("%s:%s:%s:%s", input.TenantID, input.Module, input.TriggerAction, input.EntityID)
}

func dueAt(now time.Time, timeoutHours int) *time.Time {
	if timeoutHours <= 0 {
		return nil
	}
	due := now.Add(time.Duration(timeoutHours) * time.Hour)
	return &due
}
