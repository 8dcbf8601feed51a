package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/decorcrm/approval-engine/internal/application/port"
	"github.com/decorcrm/approval-engine/internal/domain/entity"
)

// NoopNotifier logs notifications instead of delivering them. Used when no
// messaging credentials are configured, and in tests.
type NoopNotifier struct {
	logger *zap.Logger
}

// NewNoopNotifier creates a new no-op notifier
func NewNoopNotifier(logger *zap.Logger) *NoopNotifier {
	return &NoopNotifier{logger: logger}
}

func (n *NoopNotifier) NotifyTaskCreated(ctx context.Context, task *entity.ApprovalTask, flowName string) error {
	n.logger.Debug("Notification suppressed: task created",
		zap.Int64("task_id", task.ID), zap.String("assignee_id", task.AssigneeID), zap.String("flow", flowName))
	return nil
}

func (n *NoopNotifier) NotifyReminder(ctx context.Context, task *entity.ApprovalTask, flowName string) error {
	n.logger.Debug("Notification suppressed: reminder",
		zap.Int64("task_id", task.ID), zap.String("assignee_id", task.AssigneeID), zap.String("flow", flowName))
	return nil
}

func (n *NoopNotifier) NotifyResolved(ctx context.Context, instance *entity.ApprovalInstance, outcome string) error {
	n.logger.Debug("Notification suppressed: resolved",
		zap.Int64("instance_id", instance.ID), zap.String("outcome", outcome))
	return nil
}

// Verify interface compliance
var _ port.Notifier = (*NoopNotifier)(nil)
