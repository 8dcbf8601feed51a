package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/decorcrm/approval-engine/internal/application/port"
	"github.com/decorcrm/approval-engine/internal/application/service"
	"github.com/decorcrm/approval-engine/internal/domain/approval"
	"github.com/decorcrm/approval-engine/internal/domain/entity"
	"go.uber.org/zap"
)

// TimeoutSweeper periodically picks up overdue pending tasks and applies the
// owning flow's timeout action. It goes through the regular decision path for
// auto decisions, so a human approval racing the sweep still has exactly one
// winner.
type TimeoutSweeper struct {
	taskRepo  port.TaskRepository
	eventRepo port.EventRepository
	decisions service.DecisionService
	resolver  service.ApproverResolver
	notifier  port.Notifier
	logger    *zap.Logger

	sweepInterval time.Duration
	batchSize     int

	mu        sync.Mutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewTimeoutSweeper creates a new timeout sweeper
func NewTimeoutSweeper(
	taskRepo port.TaskRepository,
	eventRepo port.EventRepository,
	decisions service.DecisionService,
	resolver service.ApproverResolver,
	notifier port.Notifier,
	logger *zap.Logger,
	sweepInterval time.Duration,
	batchSize int,
) *TimeoutSweeper {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &TimeoutSweeper{
		taskRepo:      taskRepo,
		eventRepo:     eventRepo,
		decisions:     decisions,
		resolver:      resolver,
		notifier:      notifier,
		logger:        logger,
		sweepInterval: sweepInterval,
		batchSize:     batchSize,
	}
}

// Start starts the sweeping loop
func (s *TimeoutSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("timeout sweeper is already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.isRunning = true

	s.logger.Info("TimeoutSweeper started",
		zap.Duration("sweep_interval", s.sweepInterval),
		zap.Int("batch_size", s.batchSize))

	go s.sweepLoop()

	return nil
}

// Stop stops the sweeping loop
func (s *TimeoutSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	s.isRunning = false
	if s.cancel != nil {
		s.cancel()
	}

	s.logger.Info("TimeoutSweeper stopped")
}

// Name returns the worker name for identification
func (s *TimeoutSweeper) Name() string {
	return "TimeoutSweeper"
}

func (s *TimeoutSweeper) sweepLoop() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	// Sweep immediately on start
	s.Sweep(s.ctx)

	for {
		select {
		case <-s.ctx.Done():
			return

		case <-ticker.C:
			s.Sweep(s.ctx)
		}
	}
}

// Sweep processes one batch of overdue tasks
func (s *TimeoutSweeper) Sweep(ctx context.Context) {
	now := time.Now().UTC()

	overdue, err := s.taskRepo.ListOverdue(ctx, now, s.batchSize)
	if err != nil {
		s.logger.Error("Failed to list overdue tasks", zap.Error(err))
		return
	}
	if len(overdue) == 0 {
		return
	}

	handled := 0
	for _, o := range overdue {
		if ctx.Err() != nil {
			return
		}
		if err := s.handle(ctx, o, now); err != nil {
			s.logger.Error("Failed to handle overdue task",
				zap.Int64("task_id", o.Task.ID),
				zap.String("timeout_action", o.TimeoutAction),
				zap.Error(err))
			continue
		}
		handled++
	}

	s.logger.Info("Timeout sweep completed",
		zap.Int("overdue", len(overdue)),
		zap.Int("handled", handled))
}

func (s *TimeoutSweeper) handle(ctx context.Context, o *entity.OverdueTask, now time.Time) error {
	switch o.TimeoutAction {
	case entity.TimeoutRemind:
		return s.remind(ctx, o, now)

	case entity.TimeoutAutoApprove:
		return s.autoDecide(ctx, o, entity.ActionApprove)

	case entity.TimeoutAutoReject:
		return s.autoDecide(ctx, o, entity.ActionReject)

	case entity.TimeoutEscalate:
		return s.escalate(ctx, o, now)

	default:
		return fmt.Errorf("unknown timeout action %q", o.TimeoutAction)
	}
}

// remind pings the assignee and pushes the due time out by one more timeout
// period, so the next sweep does not re-remind immediately.
func (s *TimeoutSweeper) remind(ctx context.Context, o *entity.OverdueTask, now time.Time) error {
	newDue := now.Add(time.Duration(o.TimeoutHours) * time.Hour)
	ok, err := s.taskRepo.ExtendDue(ctx, o.Task.ID, newDue)
	if err != nil {
		return fmt.Errorf("extend due: %w", err)
	}
	if !ok {
		// Resolved between listing and now.
		return nil
	}

	if err := s.notifier.NotifyReminder(ctx, &o.Task, o.FlowName); err != nil {
		s.logger.Warn("Failed to send reminder",
			zap.Int64("task_id", o.Task.ID), zap.Error(err))
	}

	return s.recordEvent(ctx, o, entity.EventTaskReminded, "")
}

// autoDecide applies the system decision through the regular decision path.
// A conflict means a human resolved the task first; that is not an error.
func (s *TimeoutSweeper) autoDecide(ctx context.Context, o *entity.OverdueTask, action string) error {
	_, err := s.decisions.ProcessDecision(ctx, service.DecisionInput{
		TenantID: o.Task.TenantID,
		TaskID:   o.Task.ID,
		ActorID:  entity.SystemActorID,
		Action:   action,
		Comment:  "timed out",
	})
	if err != nil {
		if errors.Is(err, approval.ErrConflict) {
			s.logger.Debug("Overdue task resolved before auto decision",
				zap.Int64("task_id", o.Task.ID))
			return nil
		}
		return err
	}

	s.logger.Info("Auto decision applied to overdue task",
		zap.Int64("task_id", o.Task.ID), zap.String("action", action))
	return nil
}

func (s *TimeoutSweeper) escalate(ctx context.Context, o *entity.OverdueTask, now time.Time) error {
	target, err := s.resolver.EscalationTarget(ctx, o.Task.TenantID, o.Task.AssigneeID)
	if err != nil {
		return fmt.Errorf("resolve escalation target: %w", err)
	}

	newDue := now.Add(time.Duration(o.TimeoutHours) * time.Hour)
	ok, err := s.taskRepo.Reassign(ctx, o.Task.ID, target, newDue)
	if err != nil {
		return fmt.Errorf("reassign: %w", err)
	}
	if !ok {
		return nil
	}

	s.logger.Info("Overdue task escalated",
		zap.Int64("task_id", o.Task.ID),
		zap.String("from", o.Task.AssigneeID),
		zap.String("to", target))

	escalated := o.Task
	escalated.AssigneeID = target
	escalated.DueAt = &newDue
	if err := s.notifier.NotifyTaskCreated(ctx, &escalated, o.FlowName); err != nil {
		s.logger.Warn("Failed to notify escalation target",
			zap.Int64("task_id", o.Task.ID), zap.Error(err))
	}

	return s.recordEvent(ctx, o, entity.EventTaskReassigned, fmt.Sprintf("escalated to %s", target))
}

func (s *TimeoutSweeper) recordEvent(ctx context.Context, o *entity.OverdueTask, action, comment string) error {
	return s.eventRepo.Create(ctx, &entity.ApprovalEvent{
		TenantID:   o.Task.TenantID,
		InstanceID: o.InstanceID,
		TaskID:     o.Task.ID,
		ActorID:    entity.SystemActorID,
		Action:     action,
		Comment:    comment,
		CreatedAt:  time.Now().UTC(),
	})
}
