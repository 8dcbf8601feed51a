package service

import (
	"context"
	"time"

	"github.com/decorcrm/approval-engine/internal/application/port"
	"github.com/decorcrm/approval-engine/internal/domain/entity"
)

// Mock repositories and ports shared across the service tests.

type mockFlowRepo struct {
	createFunc     func(ctx context.Context, flow *entity.FlowDefinition) error
	updateFunc     func(ctx context.Context, flow *entity.FlowDefinition) error
	getByIDFunc    func(ctx context.Context, tenantID string, id int64) (*entity.FlowDefinition, error)
	listFunc       func(ctx context.Context, tenantID string) ([]*entity.FlowDefinition, error)
	findActiveFunc func(ctx context.Context, tenantID, module, triggerAction string) (*entity.FlowDefinition, error)
	deactivateFunc func(ctx context.Context, tenantID string, id int64) (bool, error)
}

func (m *mockFlowRepo) Create(ctx context.Context, flow *entity.FlowDefinition) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, flow)
	}
	flow.ID = 1
	return nil
}

func (m *mockFlowRepo) Update(ctx context.Context, flow *entity.FlowDefinition) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, flow)
	}
	return nil
}

func (m *mockFlowRepo) GetByID(ctx context.Context, tenantID string, id int64) (*entity.FlowDefinition, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, tenantID, id)
	}
	return &entity.FlowDefinition{ID: id, TenantID: tenantID, Name: "flow"}, nil
}

func (m *mockFlowRepo) List(ctx context.Context, tenantID string) ([]*entity.FlowDefinition, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, tenantID)
	}
	return []*entity.FlowDefinition{}, nil
}

func (m *mockFlowRepo) FindActive(ctx context.Context, tenantID, module, triggerAction string) (*entity.FlowDefinition, error) {
	if m.findActiveFunc != nil {
		return m.findActiveFunc(ctx, tenantID, module, triggerAction)
	}
	return nil, nil
}

func (m *mockFlowRepo) Deactivate(ctx context.Context, tenantID string, id int64) (bool, error) {
	if m.deactivateFunc != nil {
		return m.deactivateFunc(ctx, tenantID, id)
	}
	return true, nil
}

type mockInstanceRepo struct {
	createFunc             func(ctx context.Context, instance *entity.ApprovalInstance) error
	getByIDFunc            func(ctx context.Context, tenantID string, id int64) (*entity.ApprovalInstance, error)
	findPendingFunc        func(ctx context.Context, tenantID, entityType, entityID, triggerAction string) (*entity.ApprovalInstance, error)
	advanceStepFunc        func(ctx context.Context, id int64, fromOrder int) (bool, error)
	completeFunc           func(ctx context.Context, id int64, status string, completedAt time.Time) (bool, error)
	markNeedsReconcileFunc func(ctx context.Context, id int64) error
	listUnreconciledFunc   func(ctx context.Context, tenantID string, limit int) ([]*entity.ApprovalInstance, error)
}

func (m *mockInstanceRepo) Create(ctx context.Context, instance *entity.ApprovalInstance) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, instance)
	}
	instance.ID = 1
	return nil
}

func (m *mockInstanceRepo) GetByID(ctx context.Context, tenantID string, id int64) (*entity.ApprovalInstance, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, tenantID, id)
	}
	return &entity.ApprovalInstance{ID: id, TenantID: tenantID, Status: "PENDING", CurrentStepOrder: 1}, nil
}

func (m *mockInstanceRepo) FindPending(ctx context.Context, tenantID, entityType, entityID, triggerAction string) (*entity.ApprovalInstance, error) {
	if m.findPendingFunc != nil {
		return m.findPendingFunc(ctx, tenantID, entityType, entityID, triggerAction)
	}
	return nil, nil
}

func (m *mockInstanceRepo) AdvanceStep(ctx context.Context, id int64, fromOrder int) (bool, error) {
	if m.advanceStepFunc != nil {
		return m.advanceStepFunc(ctx, id, fromOrder)
	}
	return true, nil
}

func (m *mockInstanceRepo) Complete(ctx context.Context, id int64, status string, completedAt time.Time) (bool, error) {
	if m.completeFunc != nil {
		return m.completeFunc(ctx, id, status, completedAt)
	}
	return true, nil
}

func (m *mockInstanceRepo) MarkNeedsReconcile(ctx context.Context, id int64) error {
	if m.markNeedsReconcileFunc != nil {
		return m.markNeedsReconcileFunc(ctx, id)
	}
	return nil
}

func (m *mockInstanceRepo) ListUnreconciled(ctx context.Context, tenantID string, limit int) ([]*entity.ApprovalInstance, error) {
	if m.listUnreconciledFunc != nil {
		return m.listUnreconciledFunc(ctx, tenantID, limit)
	}
	return []*entity.ApprovalInstance{}, nil
}

type mockTaskRepo struct {
	createFunc               func(ctx context.Context, task *entity.ApprovalTask) error
	getByIDFunc              func(ctx context.Context, tenantID string, id int64) (*entity.ApprovalTask, error)
	getByInstanceIDFunc      func(ctx context.Context, instanceID int64) ([]*entity.ApprovalTask, error)
	resolveFunc              func(ctx context.Context, id int64, status, comment string, actionAt time.Time) (bool, error)
	extendDueFunc            func(ctx context.Context, id int64, dueAt time.Time) (bool, error)
	reassignFunc             func(ctx context.Context, id int64, assigneeID string, dueAt time.Time) (bool, error)
	listOverdueFunc          func(ctx context.Context, now time.Time, limit int) ([]*entity.OverdueTask, error)
	listPendingForUserFunc   func(ctx context.Context, tenantID, userID string, limit int) ([]*entity.TaskView, error)
	listProcessedForUserFunc func(ctx context.Context, tenantID, userID string, limit int) ([]*entity.TaskView, error)
}

func (m *mockTaskRepo) Create(ctx context.Context, task *entity.ApprovalTask) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, task)
	}
	task.ID = 1
	return nil
}

func (m *mockTaskRepo) GetByID(ctx context.Context, tenantID string, id int64) (*entity.ApprovalTask, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, tenantID, id)
	}
	return &entity.ApprovalTask{ID: id, TenantID: tenantID, InstanceID: 1, StepOrder: 1, AssigneeID: "approver-1", Status: "PENDING"}, nil
}

func (m *mockTaskRepo) GetByInstanceID(ctx context.Context, instanceID int64) ([]*entity.ApprovalTask, error) {
	if m.getByInstanceIDFunc != nil {
		return m.getByInstanceIDFunc(ctx, instanceID)
	}
	return []*entity.ApprovalTask{}, nil
}

func (m *mockTaskRepo) Resolve(ctx context.Context, id int64, status, comment string, actionAt time.Time) (bool, error) {
	if m.resolveFunc != nil {
		return m.resolveFunc(ctx, id, status, comment, actionAt)
	}
	return true, nil
}

func (m *mockTaskRepo) ExtendDue(ctx context.Context, id int64, dueAt time.Time) (bool, error) {
	if m.extendDueFunc != nil {
		return m.extendDueFunc(ctx, id, dueAt)
	}
	return true, nil
}

func (m *mockTaskRepo) Reassign(ctx context.Context, id int64, assigneeID string, dueAt time.Time) (bool, error) {
	if m.reassignFunc != nil {
		return m.reassignFunc(ctx, id, assigneeID, dueAt)
	}
	return true, nil
}

func (m *mockTaskRepo) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*entity.OverdueTask, error) {
	if m.listOverdueFunc != nil {
		return m.listOverdueFunc(ctx, now, limit)
	}
	return []*entity.OverdueTask{}, nil
}

func (m *mockTaskRepo) ListPendingForUser(ctx context.Context, tenantID, userID string, limit int) ([]*entity.TaskView, error) {
	if m.listPendingForUserFunc != nil {
		return m.listPendingForUserFunc(ctx, tenantID, userID, limit)
	}
	return []*entity.TaskView{}, nil
}

func (m *mockTaskRepo) ListProcessedForUser(ctx context.Context, tenantID, userID string, limit int) ([]*entity.TaskView, error) {
	if m.listProcessedForUserFunc != nil {
		return m.listProcessedForUserFunc(ctx, tenantID, userID, limit)
	}
	return []*entity.TaskView{}, nil
}

type mockEventRepo struct {
	createFunc          func(ctx context.Context, event *entity.ApprovalEvent) error
	getByInstanceIDFunc func(ctx context.Context, instanceID int64) ([]*entity.ApprovalEvent, error)
}

func (m *mockEventRepo) Create(ctx context.Context, event *entity.ApprovalEvent) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, event)
	}
	return nil
}

func (m *mockEventRepo) GetByInstanceID(ctx context.Context, instanceID int64) ([]*entity.ApprovalEvent, error) {
	if m.getByInstanceIDFunc != nil {
		return m.getByInstanceIDFunc(ctx, instanceID)
	}
	return []*entity.ApprovalEvent{}, nil
}

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type mockDirectory struct {
	roleHoldersFunc     func(ctx context.Context, tenantID, role string) ([]string, error)
	managerOfFunc       func(ctx context.Context, tenantID, userID string) (string, error)
	defaultApproverFunc func(ctx context.Context, tenantID string) (string, error)
	hasRoleFunc         func(ctx context.Context, tenantID, userID, role string) (bool, error)
}

func (m *mockDirectory) RoleHolders(ctx context.Context, tenantID, role string) ([]string, error) {
	if m.roleHoldersFunc != nil {
		return m.roleHoldersFunc(ctx, tenantID, role)
	}
	return []string{}, nil
}

func (m *mockDirectory) ManagerOf(ctx context.Context, tenantID, userID string) (string, error) {
	if m.managerOfFunc != nil {
		return m.managerOfFunc(ctx, tenantID, userID)
	}
	return "", nil
}

func (m *mockDirectory) DefaultApprover(ctx context.Context, tenantID string) (string, error) {
	if m.defaultApproverFunc != nil {
		return m.defaultApproverFunc(ctx, tenantID)
	}
	return "default-approver", nil
}

func (m *mockDirectory) HasRole(ctx context.Context, tenantID, userID, role string) (bool, error) {
	if m.hasRoleFunc != nil {
		return m.hasRoleFunc(ctx, tenantID, userID, role)
	}
	return false, nil
}

type mockNotifier struct {
	taskCreatedFunc func(ctx context.Context, task *entity.ApprovalTask, flowName string) error
	reminderFunc    func(ctx context.Context, task *entity.ApprovalTask, flowName string) error
	resolvedFunc    func(ctx context.Context, instance *entity.ApprovalInstance, outcome string) error
}

func (m *mockNotifier) NotifyTaskCreated(ctx context.Context, task *entity.ApprovalTask, flowName string) error {
	if m.taskCreatedFunc != nil {
		return m.taskCreatedFunc(ctx, task, flowName)
	}
	return nil
}

func (m *mockNotifier) NotifyReminder(ctx context.Context, task *entity.ApprovalTask, flowName string) error {
	if m.reminderFunc != nil {
		return m.reminderFunc(ctx, task, flowName)
	}
	return nil
}

func (m *mockNotifier) NotifyResolved(ctx context.Context, instance *entity.ApprovalInstance, outcome string) error {
	if m.resolvedFunc != nil {
		return m.resolvedFunc(ctx, instance, outcome)
	}
	return nil
}

type mockIdempotencyStore struct {
	checkFunc    func(key string) *port.IdempotencyRecord
	startFunc    func(key string) (bool, *port.IdempotencyRecord)
	completeFunc func(key, response string)
	failFunc     func(key string)
}

func (m *mockIdempotencyStore) Check(key string) *port.IdempotencyRecord {
	if m.checkFunc != nil {
		return m.checkFunc(key)
	}
	return nil
}

func (m *mockIdempotencyStore) Start(key string) (bool, *port.IdempotencyRecord) {
	if m.startFunc != nil {
		return m.startFunc(key)
	}
	return true, nil
}

func (m *mockIdempotencyStore) Complete(key, response string) {
	if m.completeFunc != nil {
		m.completeFunc(key, response)
	}
}

func (m *mockIdempotencyStore) Fail(key string) {
	if m.failFunc != nil {
		m.failFunc(key)
	}
}

type mockRateLimiter struct {
	allowFunc func(key string, capacity int, window time.Duration) bool
}

func (m *mockRateLimiter) Allow(key string, capacity int, window time.Duration) bool {
	if m.allowFunc != nil {
		return m.allowFunc(key, capacity, window)
	}
	return true
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

func twoStepFlow() *entity.FlowDefinition {
	return &entity.FlowDefinition{
		ID:            10,
		TenantID:      "tenant-1",
		Name:          "Quote approval",
		Module:        entity.ModuleQuote,
		TriggerAction: entity.TriggerSubmit,
		Steps: []entity.StepDefinition{
			{Order: 1, Name: "Sales lead", ApproverType: entity.ApproverTypeUser, ApproverValue: "lead-1", Required: true},
			{Order: 2, Name: "Finance", ApproverType: entity.ApproverTypeRole, ApproverValue: "FINANCE", Required: true},
		},
		TimeoutHours:  24,
		TimeoutAction: entity.TimeoutRemind,
		IsActive:      true,
	}
}
