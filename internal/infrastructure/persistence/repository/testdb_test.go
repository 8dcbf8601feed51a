package repository

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/decorcrm/approval-engine/internal/domain/entity"
)

// openTestDB opens an in-memory sqlite database with the real schema applied.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	// In-memory databases are per-connection, so keep the pool at one.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile(filepath.Join("..", "..", "..", "..", "migrations", "001_init.sql"))
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	return db
}

func testFlow(name, module, triggerAction string, active bool) *entity.FlowDefinition {
	now := time.Now().UTC().Truncate(time.Second)
	return &entity.FlowDefinition{
		TenantID:      "tenant-1",
		Name:          name,
		Module:        module,
		TriggerAction: triggerAction,
		Steps: []entity.StepDefinition{
			{Order: 1, Name: "Sales lead", ApproverType: entity.ApproverTypeUser, ApproverValue: "lead-1", Required: true},
			{Order: 2, Name: "Finance", ApproverType: entity.ApproverTypeRole, ApproverValue: "FINANCE", Required: true},
		},
		TimeoutHours:  24,
		TimeoutAction: entity.TimeoutRemind,
		IsActive:      active,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// seedFlow inserts a flow and returns it with its assigned ID.
func seedFlow(t *testing.T, db *sql.DB, name, module, triggerAction string, active bool) *entity.FlowDefinition {
	t.Helper()
	flow := testFlow(name, module, triggerAction, active)
	repo := NewFlowRepository(db, zap.NewNop())
	require.NoError(t, repo.Create(context.Background(), flow))
	return flow
}

// seedInstance inserts a PENDING instance for the flow and returns it.
func seedInstance(t *testing.T, db *sql.DB, flow *entity.FlowDefinition, entityID string) *entity.ApprovalInstance {
	t.Helper()
	instance := &entity.ApprovalInstance{
		TenantID:         flow.TenantID,
		FlowID:           flow.ID,
		EntityType:       flow.Module,
		EntityID:         entityID,
		TriggerAction:    flow.TriggerAction,
		RequesterID:      "requester-1",
		Status:           "PENDING",
		CurrentStepOrder: 1,
		Steps:            flow.Steps,
		CreatedAt:        time.Now().UTC().Truncate(time.Second),
	}
	repo := NewInstanceRepository(db, zap.NewNop())
	require.NoError(t, repo.Create(context.Background(), instance))
	return instance
}

// seedTask inserts a PENDING task for the instance and returns it.
func seedTask(t *testing.T, db *sql.DB, instance *entity.ApprovalInstance, stepOrder int, assigneeID string, dueAt *time.Time) *entity.ApprovalTask {
	t.Helper()
	step := instance.StepAt(stepOrder)
	require.NotNil(t, step)
	task := &entity.ApprovalTask{
		TenantID:   instance.TenantID,
		InstanceID: instance.ID,
		StepOrder:  stepOrder,
		StepName:   step.Name,
		AssigneeID: assigneeID,
		Status:     "PENDING",
		DueAt:      dueAt,
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}
	repo := NewTaskRepository(db, zap.NewNop())
	require.NoError(t, repo.Create(context.Background(), task))
	return task
}
