package worker

import (
	"context"
	"testing"
	"time"

	"github.com/decorcrm/approval-engine/internal/application/service"
	"github.com/decorcrm/approval-engine/internal/domain/approval"
	"github.com/decorcrm/approval-engine/internal/domain/entity"
	"go.uber.org/zap"
)

type sweeperTaskRepo struct {
	overdue      []*entity.OverdueTask
	extendedID   int64
	reassignedID int64
	reassignedTo string
}

func (m *sweeperTaskRepo) Create(ctx context.Context, task *entity.ApprovalTask) error { return nil }
func (m *sweeperTaskRepo) GetByID(ctx context.Context, tenantID string, id int64) (*entity.ApprovalTask, error) {
	return nil, nil
}
func (m *sweeperTaskRepo) GetByInstanceID(ctx context.Context, instanceID int64) ([]*entity.ApprovalTask, error) {
	return nil, nil
}
func (m *sweeperTaskRepo) Resolve(ctx context.Context, id int64, status, comment string, actionAt time.Time) (bool, error) {
	return true, nil
}
func (m *sweeperTaskRepo) ExtendDue(ctx context.Context, id int64, dueAt time.Time) (bool, error) {
	m.extendedID = id
	return true, nil
}
func (m *sweeperTaskRepo) Reassign(ctx context.Context, id int64, assigneeID string, dueAt time.Time) (bool, error) {
	m.reassignedID = id
	m.reassignedTo = assigneeID
	return true, nil
}
func (m *sweeperTaskRepo) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*entity.OverdueTask, error) {
	return m.overdue, nil
}
func (m *sweeperTaskRepo) ListPendingForUser(ctx context.Context, tenantID, userID string, limit int) ([]*entity.TaskView, error) {
	return nil, nil
}
func (m *sweeperTaskRepo) ListProcessedForUser(ctx context.Context, tenantID, userID string, limit int) ([]*entity.TaskView, error) {
	return nil, nil
}

type sweeperEventRepo struct {
	actions []string
}

func (m *sweeperEventRepo) Create(ctx context.Context, event *entity.ApprovalEvent) error {
	m.actions = append(m.actions, event.Action)
	return nil
}
func (m *sweeperEventRepo) GetByInstanceID(ctx context.Context, instanceID int64) ([]*entity.ApprovalEvent, error) {
	return nil, nil
}

type sweeperDecisions struct {
	inputs []service.DecisionInput
	err    error
}

func (m *sweeperDecisions) ProcessDecision(ctx context.Context, input service.DecisionInput) (*entity.ApprovalInstance, error) {
	m.inputs = append(m.inputs, input)
	if m.err != nil {
		return nil, m.err
	}
	return &entity.ApprovalInstance{ID: input.InstanceID}, nil
}

type sweeperResolver struct {
	target string
}

func (m *sweeperResolver) Resolve(ctx context.Context, tenantID string, step entity.StepDefinition, requesterID string) (string, error) {
	return m.target, nil
}
func (m *sweeperResolver) EscalationTarget(ctx context.Context, tenantID, currentAssigneeID string) (string, error) {
	return m.target, nil
}

type sweeperNotifier struct {
	reminders int
	created   int
}

func (m *sweeperNotifier) NotifyTaskCreated(ctx context.Context, task *entity.ApprovalTask, flowName string) error {
	m.created++
	return nil
}
func (m *sweeperNotifier) NotifyReminder(ctx context.Context, task *entity.ApprovalTask, flowName string) error {
	m.reminders++
	return nil
}
func (m *sweeperNotifier) NotifyResolved(ctx context.Context, instance *entity.ApprovalInstance, outcome string) error {
	return nil
}

func overdueWith(action string) *entity.OverdueTask {
	return &entity.OverdueTask{
		Task: entity.ApprovalTask{
			ID:         7,
			TenantID:   "tenant-1",
			InstanceID: 42,
			StepOrder:  1,
			AssigneeID: "approver-1",
			Status:     "PENDING",
		},
		InstanceID:    42,
		RequesterID:   "requester-1",
		FlowName:      "Quote approval",
		TimeoutHours:  24,
		TimeoutAction: action,
	}
}

func newSweeper(taskRepo *sweeperTaskRepo, eventRepo *sweeperEventRepo, decisions *sweeperDecisions, resolver *sweeperResolver, notifier *sweeperNotifier) *TimeoutSweeper {
	return NewTimeoutSweeper(taskRepo, eventRepo, decisions, resolver, notifier, zap.NewNop(), time.Minute, 50)
}

func TestTimeoutSweeper_Remind(t *testing.T) {
	taskRepo := &sweeperTaskRepo{overdue: []*entity.OverdueTask{overdueWith(entity.TimeoutRemind)}}
	eventRepo := &sweeperEventRepo{}
	notifier := &sweeperNotifier{}
	sweeper := newSweeper(taskRepo, eventRepo, &sweeperDecisions{}, &sweeperResolver{}, notifier)

	sweeper.Sweep(context.Background())

	if taskRepo.extendedID != 7 {
		t.Errorf("extended task = %v, want 7", taskRepo.extendedID)
	}
	if notifier.reminders != 1 {
		t.Errorf("reminders = %v, want 1", notifier.reminders)
	}
	if len(eventRepo.actions) != 1 || eventRepo.actions[0] != entity.EventTaskReminded {
		t.Errorf("events = %v, want [%s]", eventRepo.actions, entity.EventTaskReminded)
	}
}

func TestTimeoutSweeper_AutoApprove(t *testing.T) {
	taskRepo := &sweeperTaskRepo{overdue: []*entity.OverdueTask{overdueWith(entity.TimeoutAutoApprove)}}
	decisions := &sweeperDecisions{}
	sweeper := newSweeper(taskRepo, &sweeperEventRepo{}, decisions, &sweeperResolver{}, &sweeperNotifier{})

	sweeper.Sweep(context.Background())

	if len(decisions.inputs) != 1 {
		t.Fatalf("decisions = %d, want 1", len(decisions.inputs))
	}
	input := decisions.inputs[0]
	if input.ActorID != entity.SystemActorID || input.Action != entity.ActionApprove || input.TaskID != 7 {
		t.Errorf("decision input = %+v, want system APPROVE on task 7", input)
	}
}

func TestTimeoutSweeper_AutoRejectConflictIsSoft(t *testing.T) {
	// A human decided between listing and sweeping; the sweep must move on
	// without error noise.
	taskRepo := &sweeperTaskRepo{overdue: []*entity.OverdueTask{overdueWith(entity.TimeoutAutoReject)}}
	decisions := &sweeperDecisions{err: &approval.ConflictError{Reason: "task already resolved"}}
	sweeper := newSweeper(taskRepo, &sweeperEventRepo{}, decisions, &sweeperResolver{}, &sweeperNotifier{})

	sweeper.Sweep(context.Background())

	if len(decisions.inputs) != 1 || decisions.inputs[0].Action != entity.ActionReject {
		t.Errorf("decision inputs = %+v, want one REJECT", decisions.inputs)
	}
}

func TestTimeoutSweeper_Escalate(t *testing.T) {
	taskRepo := &sweeperTaskRepo{overdue: []*entity.OverdueTask{overdueWith(entity.TimeoutEscalate)}}
	eventRepo := &sweeperEventRepo{}
	notifier := &sweeperNotifier{}
	sweeper := newSweeper(taskRepo, eventRepo, &sweeperDecisions{}, &sweeperResolver{target: "boss-1"}, notifier)

	sweeper.Sweep(context.Background())

	if taskRepo.reassignedID != 7 || taskRepo.reassignedTo != "boss-1" {
		t.Errorf("reassigned = %v/%v, want task 7 to boss-1", taskRepo.reassignedID, taskRepo.reassignedTo)
	}
	if notifier.created != 1 {
		t.Errorf("escalation notifications = %v, want 1", notifier.created)
	}
	if len(eventRepo.actions) != 1 || eventRepo.actions[0] != entity.EventTaskReassigned {
		t.Errorf("events = %v, want [%s]", eventRepo.actions, entity.EventTaskReassigned)
	}
}

func TestTimeoutSweeper_StartStop(t *testing.T) {
	sweeper := newSweeper(&sweeperTaskRepo{}, &sweeperEventRepo{}, &sweeperDecisions{}, &sweeperResolver{}, &sweeperNotifier{})

	if err := sweeper.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := sweeper.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}
	sweeper.Stop()
	sweeper.Stop() // idempotent
}
