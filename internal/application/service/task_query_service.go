package service

import (
	"context"
	"fmt"

	"github.com/decorcrm/approval-engine/internal/application/port"
	"github.com/decorcrm/approval-engine/internal/domain/approval"
	"github.com/decorcrm/approval-engine/internal/domain/entity"
)

const defaultTaskPageSize = 50

// InstanceProgress is the full read model of one approval run: the instance
// with its step snapshot, every task created so far and the audit trail.
type InstanceProgress struct {
	Instance *entity.ApprovalInstance `json:"instance"`
	Tasks    []*entity.ApprovalTask   `json:"tasks"`
	Events   []*entity.ApprovalEvent  `json:"events"`
}

// TaskQueryService serves approver inboxes and instance progress views.
type TaskQueryService interface {
	ListPendingTasks(ctx context.Context, tenantID, userID string, limit int) ([]*entity.TaskView, error)
	ListProcessedTasks(ctx context.Context, tenantID, userID string, limit int) ([]*entity.TaskView, error)
	GetInstanceProgress(ctx context.Context, tenantID string, instanceID int64) (*InstanceProgress, error)
	ListUnreconciled(ctx context.Context, tenantID string, limit int) ([]*entity.ApprovalInstance, error)
}

type taskQueryServiceImpl struct {
	instanceRepo port.InstanceRepository
	taskRepo     port.TaskRepository
	eventRepo    port.EventRepository
	logger       Logger
}

// NewTaskQueryService creates a new TaskQueryService
func NewTaskQueryService(
	instanceRepo port.InstanceRepository,
	taskRepo port.TaskRepository,
	eventRepo port.EventRepository,
	logger Logger,
) TaskQueryService {
	return &taskQueryServiceImpl{
		instanceRepo: instanceRepo,
		taskRepo:     taskRepo,
		eventRepo:    eventRepo,
		logger:       logger,
	}
}

// ListPendingTasks returns the user's open inbox, newest first
func (s *taskQueryServiceImpl) ListPendingTasks(ctx context.Context, tenantID, userID string, limit int) ([]*entity.TaskView, error) {
	if err := validateInboxQuery(tenantID, userID); err != nil {
		return nil, err
	}
	tasks, err := s.taskRepo.ListPendingForUser(ctx, tenantID, userID, normalizeLimit(limit))
	if err != nil {
		s.logger.Error("Failed to list pending tasks", "error", err, "tenant_id", tenantID, "user_id", userID)
		return nil, err
	}
	return tasks, nil
}

// ListProcessedTasks returns tasks the user has already decided
func (s *taskQueryServiceImpl) ListProcessedTasks(ctx context.Context, tenantID, userID string, limit int) ([]*entity.TaskView, error) {
	if err := validateInboxQuery(tenantID, userID); err != nil {
		return nil, err
	}
	tasks, err := s.taskRepo.ListProcessedForUser(ctx, tenantID, userID, normalizeLimit(limit))
	if err != nil {
		s.logger.Error("Failed to list processed tasks", "error", err, "tenant_id", tenantID, "user_id", userID)
		return nil, err
	}
	return tasks, nil
}

// GetInstanceProgress assembles the instance, its tasks and its audit trail
func (s *taskQueryServiceImpl) GetInstanceProgress(ctx context.Context, tenantID string, instanceID int64) (*InstanceProgress, error) {
	if tenantID == "" {
		return nil, &approval.ValidationError{Field: "tenant_id", Reason: "is required"}
	}

	instance, err := s.instanceRepo.GetByID(ctx, tenantID, instanceID)
	if err != nil {
		s.logger.Error("Failed to get instance", "error", err, "tenant_id", tenantID, "instance_id", instanceID)
		return nil, err
	}
	if instance == nil {
		return nil, &approval.NotFoundError{Resource: "instance", ID: fmt.Sprintf("%d", instanceID)}
	}

	tasks, err := s.taskRepo.GetByInstanceID(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	events, err := s.eventRepo.GetByInstanceID(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	return &InstanceProgress{Instance: instance, Tasks: tasks, Events: events}, nil
}

// ListUnreconciled returns terminal instances whose entity status bridge
// failed, for operators to replay.
func (s *taskQueryServiceImpl) ListUnreconciled(ctx context.Context, tenantID string, limit int) ([]*entity.ApprovalInstance, error) {
	if tenantID == "" {
		return nil, &approval.ValidationError{Field: "tenant_id", Reason: "is required"}
	}
	instances, err := s.instanceRepo.ListUnreconciled(ctx, tenantID, normalizeLimit(limit))
	if err != nil {
		s.logger.Error("Failed to list unreconciled instances", "error", err, "tenant_id", tenantID)
		return nil, err
	}
	return instances, nil
}

func validateInboxQuery(tenantID, userID string) error {
	if tenantID == "" {
		return &approval.ValidationError{Field: "tenant_id", Reason: "is required"}
	}
	if userID == "" {
		return &approval.ValidationError{Field: "user_id", Reason: "is required"}
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return defaultTaskPageSize
	}
	return limit
}
