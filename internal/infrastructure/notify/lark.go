package notify

import (
	"context"
	"encoding/json"
	"fmt"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/decorcrm/approval-engine/internal/application/port"
	"github.com/decorcrm/approval-engine/internal/domain/entity"
)

// Config holds Lark client configuration
type Config struct {
	AppID     string
	AppSecret string
}

// LarkNotifier implements port.Notifier by sending Lark direct messages.
// Assignee and requester ids are expected to be Lark user ids.
type LarkNotifier struct {
	client *lark.Client
	logger *zap.Logger
}

// NewLarkNotifier creates a new Lark-backed notifier
func NewLarkNotifier(cfg Config, logger *zap.Logger) *LarkNotifier {
	client := lark.NewClient(cfg.AppID, cfg.AppSecret,
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	)

	return &LarkNotifier{
		client: client,
		logger: logger,
	}
}

// NotifyTaskCreated tells the assignee a new task is waiting
func (n *LarkNotifier) NotifyTaskCreated(ctx context.Context, task *entity.ApprovalTask, flowName string) error {
	text := fmt.Sprintf("New approval task: %s (step %d, %s)", flowName, task.StepOrder, task.StepName)
	return n.sendText(ctx, task.AssigneeID, text)
}

// NotifyReminder pings the assignee of an overdue task
func (n *LarkNotifier) NotifyReminder(ctx context.Context, task *entity.ApprovalTask, flowName string) error {
	text := fmt.Sprintf("Reminder: approval task for %s (step %d, %s) is overdue", flowName, task.StepOrder, task.StepName)
	return n.sendText(ctx, task.AssigneeID, text)
}

// NotifyResolved tells the requester the final outcome
func (n *LarkNotifier) NotifyResolved(ctx context.Context, instance *entity.ApprovalInstance, outcome string) error {
	text := fmt.Sprintf("Your %s request for %s %s was %s", instance.TriggerAction, instance.EntityType, instance.EntityID, outcome)
	return n.sendText(ctx, instance.RequesterID, text)
}

func (n *LarkNotifier) sendText(ctx context.Context, userID, text string) error {
	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("marshal message content: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType("user_id").
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(userID).
			MsgType("text").
			Content(string(content)).
			Build()).
		Build()

	resp, err := n.client.Im.Message.Create(ctx, req)
	if err != nil {
		n.logger.Error("Failed to send message",
			zap.String("receive_id", userID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		n.logger.Error("Lark API returned failure",
			zap.String("receive_id", userID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("lark API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	return nil
}

// Verify interface compliance
var _ port.Notifier = (*LarkNotifier)(nil)
