package service

import (
	"context"
	"fmt"
	"time"

	"github.com/decorcrm/approval-engine/internal/application/bridge"
	"github.com/decorcrm/approval-engine/internal/application/port"
	"github.com/decorcrm/approval-engine/internal/domain/approval"
	"github.com/decorcrm/approval-engine/internal/domain/entity"
)

// DecisionInput is one decision against a pending task. Either TaskID or
// InstanceID must be set; with only InstanceID the current pending task of
// that instance is targeted.
type DecisionInput struct {
	TenantID   string `json:"tenant_id"`
	TaskID     int64  `json:"task_id,omitempty"`
	InstanceID int64  `json:"instance_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Action     string `json:"action"` // APPROVE | REJECT | CANCEL
	Comment    string `json:"comment,omitempty"`
}

// DecisionConfig tunes decision processing.
type DecisionConfig struct {
	// OverrideRole may decide any task and cancel any instance.
	OverrideRole      string
	RateLimitCapacity int
	RateLimitWindow   time.Duration
}

// DecisionService applies human and system decisions to pending tasks and
// advances or finalizes the owning instance.
type DecisionService interface {
	ProcessDecision(ctx context.Context, input DecisionInput) (*entity.ApprovalInstance, error)
}

type decisionServiceImpl struct {
	flowRepo     port.FlowRepository
	instanceRepo port.InstanceRepository
	taskRepo     port.TaskRepository
	eventRepo    port.EventRepository
	txManager    port.TransactionManager
	resolver     ApproverResolver
	bridges      *bridge.Registry
	directory    port.Directory
	limiter      port.RateLimiter
	notifier     port.Notifier
	config       DecisionConfig
	logger       Logger
}

// NewDecisionService creates a new DecisionService
func NewDecisionService(
	flowRepo port.FlowRepository,
	instanceRepo port.InstanceRepository,
	taskRepo port.TaskRepository,
	eventRepo port.EventRepository,
	txManager port.TransactionManager,
	resolver ApproverResolver,
	bridges *bridge.Registry,
	directory port.Directory,
	limiter port.RateLimiter,
	notifier port.Notifier,
	config DecisionConfig,
	logger Logger,
) DecisionService {
	return &decisionServiceImpl{
		flowRepo:     flowRepo,
		instanceRepo: instanceRepo,
		taskRepo:     taskRepo,
		eventRepo:    eventRepo,
		txManager:    txManager,
		resolver:     resolver,
		bridges:      bridges,
		directory:    directory,
		limiter:      limiter,
		notifier:     notifier,
		config:       config,
		logger:       logger,
	}
}

// decisionOutcome carries what happened inside the transaction out to the
// post-commit side effects (bridge, notifications).
type decisionOutcome struct {
	terminal string // OutcomeApproved/-Rejected/-Canceled, "" if the instance is still pending
	nextTask *entity.ApprovalTask
	flowName string
}

// ProcessDecision resolves a pending task. The underlying update is
// conditional on the task still being PENDING, so two racing decisions
// (human vs human, or human vs sweeper) yield exactly one winner; the loser
// receives a conflict.
func (s *decisionServiceImpl) ProcessDecision(ctx context.Context, input DecisionInput) (*entity.ApprovalInstance, error) {
	if err := validateDecisionInput(input); err != nil {
		return nil, err
	}

	limitKey := fmt.Sprintf("decision:%s:%s", input.TenantID, input.ActorID)
	if !s.limiter.Allow(limitKey, s.config.RateLimitCapacity, s.config.RateLimitWindow) {
		s.logger.Warn("Decision rate limited", "tenant_id", input.TenantID, "actor_id", input.ActorID)
		return nil, approval.ErrRateLimited
	}

	task, err := s.loadTask(ctx, input)
	if err != nil {
		return nil, err
	}

	instance, err := s.instanceRepo.GetByID(ctx, input.TenantID, task.InstanceID)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, &approval.NotFoundError{Resource: "instance", ID: fmt.Sprintf("%d", task.InstanceID)}
	}

	if err := s.authorize(ctx, input, task, instance); err != nil {
		return nil, err
	}

	var outcome decisionOutcome
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var txErr error
		outcome, txErr = s.applyDecision(txCtx, input, task, instance)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Decision processed",
		"task_id", task.ID, "instance_id", instance.ID, "actor_id", input.ActorID,
		"action", input.Action, "terminal", outcome.terminal)

	// Side effects after commit: the decision row is durable, so bridge
	// and notification failures must not undo it.
	if outcome.terminal != "" {
		s.invokeBridge(ctx, instance, outcome.terminal)
		if err := s.notifier.NotifyResolved(ctx, instance, outcome.terminal); err != nil {
			s.logger.Warn("Failed to notify requester of resolution", "error", err, "instance_id", instance.ID)
		}
	} else if outcome.nextTask != nil {
		if err := s.notifier.NotifyTaskCreated(ctx, outcome.nextTask, outcome.flowName); err != nil {
			s.logger.Warn("Failed to notify next approver", "error", err, "task_id", outcome.nextTask.ID)
		}
	}

	return instance, nil
}

// applyDecision runs the guarded state transition inside the transaction
// and mutates instance to its post-decision shape.
func (s *decisionServiceImpl) applyDecision(ctx context.Context, input DecisionInput, task *entity.ApprovalTask, instance *entity.ApprovalInstance) (decisionOutcome, error) {
	now := time.Now().UTC()

	won, err := s.taskRepo.Resolve(ctx, task.ID, taskStatusFor(input.Action), input.Comment, now)
	if err != nil {
		return decisionOutcome{}, fmt.Errorf("resolve task: %w", err)
	}
	if !won {
		return decisionOutcome{}, &approval.ConflictError{Reason: "task already resolved"}
	}

	if err := s.recordEvent(ctx, instance, task.ID, input.ActorID, taskEventFor(input.Action), input.Comment, now); err != nil {
		return decisionOutcome{}, err
	}

	step := instance.StepAt(task.StepOrder)

	switch {
	case input.Action == entity.ActionCancel:
		return s.finalize(ctx, instance, approval.StatusCanceled, entity.EventFlowCanceled, input.ActorID, now)

	case input.Action == entity.ActionReject && (step == nil || step.Required):
		// A required step rejecting short-circuits the whole flow;
		// remaining steps are never instantiated.
		return s.finalize(ctx, instance, approval.StatusRejected, entity.EventFlowRejected, input.ActorID, now)

	default:
		// APPROVE, or REJECT on an optional step (which does not
		// terminate the instance): advance to the next step.
		return s.advance(ctx, instance, task, input.ActorID, now)
	}
}

func (s *decisionServiceImpl) finalize(ctx context.Context, instance *entity.ApprovalInstance, status approval.Status, event, actorID string, now time.Time) (decisionOutcome, error) {
	ok, err := s.instanceRepo.Complete(ctx, instance.ID, status.String(), now)
	if err != nil {
		return decisionOutcome{}, fmt.Errorf("complete instance: %w", err)
	}
	if !ok {
		return decisionOutcome{}, &approval.ConflictError{Reason: "instance already resolved"}
	}
	if err := s.recordEvent(ctx, instance, 0, actorID, event, "", now); err != nil {
		return decisionOutcome{}, err
	}

	instance.Status = status.String()
	instance.CompletedAt = &now
	return decisionOutcome{terminal: status.String()}, nil
}

func (s *decisionServiceImpl) advance(ctx context.Context, instance *entity.ApprovalInstance, task *entity.ApprovalTask, actorID string, now time.Time) (decisionOutcome, error) {
	next := instance.StepAt(task.StepOrder + 1)
	if next == nil {
		// Last step decided: the whole flow is approved.
		return s.finalize(ctx, instance, approval.StatusApproved, entity.EventFlowApproved, actorID, now)
	}

	ok, err := s.instanceRepo.AdvanceStep(ctx, instance.ID, task.StepOrder)
	if err != nil {
		return decisionOutcome{}, fmt.Errorf("advance step: %w", err)
	}
	if !ok {
		return decisionOutcome{}, &approval.ConflictError{Reason: "instance already advanced"}
	}

	assignee, err := s.resolver.Resolve(ctx, instance.TenantID, *next, instance.RequesterID)
	if err != nil {
		return decisionOutcome{}, fmt.Errorf("resolve next approver: %w", err)
	}

	flow, err := s.flowRepo.GetByID(ctx, instance.TenantID, instance.FlowID)
	if err != nil {
		return decisionOutcome{}, fmt.Errorf("load flow: %w", err)
	}

	var flowName string
	timeoutHours := 0
	if flow != nil {
		flowName = flow.Name
		timeoutHours = flow.TimeoutHours
	}

	nextTask := &entity.ApprovalTask{
		TenantID:   instance.TenantID,
		InstanceID: instance.ID,
		StepOrder:  next.Order,
		StepName:   next.Name,
		AssigneeID: assignee,
		Status:     approval.StatusPending.String(),
		CreatedAt:  now,
		DueAt:      dueAt(now, timeoutHours),
	}
	if err := s.taskRepo.Create(ctx, nextTask); err != nil {
		return decisionOutcome{}, fmt.Errorf("create next task: %w", err)
	}
	if err := s.recordEvent(ctx, instance, nextTask.ID, actorID, entity.EventTaskCreated, "", now); err != nil {
		return decisionOutcome{}, err
	}

	instance.CurrentStepOrder = next.Order
	return decisionOutcome{nextTask: nextTask, flowName: flowName}, nil
}

// invokeBridge hands the terminal outcome to the registered bridge. A
// failure here cannot roll back the decision; the instance is flagged for
// out-of-band reconciliation instead.
func (s *decisionServiceImpl) invokeBridge(ctx context.Context, instance *entity.ApprovalInstance, outcome string) {
	b := s.bridges.Resolve(instance.EntityType)
	if b == nil {
		s.logger.Warn("No bridge registered for entity type, flagging for reconciliation",
			"entity_type", instance.EntityType, "instance_id", instance.ID)
		s.flagReconcile(ctx, instance)
		return
	}

	if err := b.OnApprovalResolved(ctx, instance.EntityID, outcome, instance.ResumeContext); err != nil {
		s.logger.Error("Bridge invocation failed, flagging instance for reconciliation",
			"error", err, "entity_type", instance.EntityType, "entity_id", instance.EntityID,
			"instance_id", instance.ID, "outcome", outcome)
		s.flagReconcile(ctx, instance)
	}
}

func (s *decisionServiceImpl) flagReconcile(ctx context.Context, instance *entity.ApprovalInstance) {
	if err := s.instanceRepo.MarkNeedsReconcile(ctx, instance.ID); err != nil {
		s.logger.Error("Failed to flag instance for reconciliation", "error", err, "instance_id", instance.ID)
		return
	}
	instance.NeedsReconcile = true
}

func (s *decisionServiceImpl) loadTask(ctx context.Context, input DecisionInput) (*entity.ApprovalTask, error) {
	if input.TaskID != 0 {
		task, err := s.taskRepo.GetByID(ctx, input.TenantID, input.TaskID)
		if err != nil {
			return nil, err
		}
		if task == nil {
			return nil, &approval.NotFoundError{Resource: "task", ID: fmt.Sprintf("%d", input.TaskID)}
		}
		return task, nil
	}

	tasks, err := s.taskRepo.GetByInstanceID(ctx, input.InstanceID)
	if err != nil {
		return nil, err
	}
	for _, task := range tasks {
		if task.TenantID == input.TenantID && task.Status == approval.StatusPending.String() {
			return task, nil
		}
	}
	return nil, &approval.NotFoundError{Resource: "pending task for instance", ID: fmt.Sprintf("%d", input.InstanceID)}
}

func (s *decisionServiceImpl) authorize(ctx context.Context, input DecisionInput, task *entity.ApprovalTask, instance *entity.ApprovalInstance) error {
	if input.ActorID == entity.SystemActorID {
		return nil
	}

	if input.Action == entity.ActionCancel {
		if input.ActorID == instance.RequesterID {
			return nil
		}
	} else if input.ActorID == task.AssigneeID {
		return nil
	}

	if s.config.OverrideRole != "" {
		ok, err := s.directory.HasRole(ctx, input.TenantID, input.ActorID, s.config.OverrideRole)
		if err != nil {
			return fmt.Errorf("check override role: %w", err)
		}
		if ok {
			return nil
		}
	}

	s.logger.Warn("Unauthorized decision attempt",
		"task_id", task.ID, "actor_id", input.ActorID, "assignee_id", task.AssigneeID, "action", input.Action)
	return &approval.PermissionDeniedError{Action: fmt.Sprintf("%s task %d", input.Action, task.ID)}
}

func (s *decisionServiceImpl) recordEvent(ctx context.Context, instance *entity.ApprovalInstance, taskID int64, actorID, action, comment string, now time.Time) error {
	event := &entity.ApprovalEvent{
		TenantID:   instance.TenantID,
		InstanceID: instance.ID,
		TaskID:     taskID,
		ActorID:    actorID,
		Action:     action,
		Comment:    comment,
		CreatedAt:  now,
	}
	if err := s.eventRepo.Create(ctx, event); err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

func validateDecisionInput(input DecisionInput) error {
	if input.TenantID == "" {
		return &approval.ValidationError{Field: "tenant_id", Reason: "is required"}
	}
	if input.TaskID == 0 && input.InstanceID == 0 {
		return &approval.ValidationError{Field: "task_id", Reason: "task_id or instance_id is required"}
	}
	if input.ActorID == "" {
		return &approval.ValidationError{Field: "actor_id", Reason: "is required"}
	}
	switch input.Action {
	case entity.ActionApprove, entity.ActionReject, entity.ActionCancel:
		return nil
	default:
		return &approval.ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q", input.Action)}
	}
}

func taskStatusFor(action string) string {
	switch action {
	case entity.ActionApprove:
		return approval.StatusApproved.String()
	case entity.ActionReject:
		return approval.StatusRejected.String()
	default:
		return approval.StatusCanceled.String()
	}
}

func taskEventFor(action string) string {
	switch action {
	case entity.ActionApprove:
		return entity.EventTaskApproved
	case entity.ActionReject:
		return entity.EventTaskRejected
	default:
		return entity.EventTaskCanceled
	}
}
