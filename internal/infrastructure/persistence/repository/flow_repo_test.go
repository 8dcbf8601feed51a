package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/decorcrm/approval-engine/internal/domain/entity"
)

func TestFlowRepository_CreateAndGet(t *testing.T) {
	db := openTestDB(t)
	repo := NewFlowRepository(db, zap.NewNop())
	ctx := context.Background()

	created := seedFlow(t, db, "Quote approval", entity.ModuleQuote, entity.TriggerSubmit, true)
	require.NotZero(t, created.ID)

	got, err := repo.GetByID(ctx, "tenant-1", created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Quote approval", got.Name)
	assert.Equal(t, entity.ModuleQuote, got.Module)
	assert.True(t, got.IsActive)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, "lead-1", got.Steps[0].ApproverValue)
	assert.Equal(t, entity.ApproverTypeRole, got.Steps[1].ApproverType)

	// Tenant scoping
	other, err := repo.GetByID(ctx, "tenant-2", created.ID)
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestFlowRepository_Update(t *testing.T) {
	db := openTestDB(t)
	repo := NewFlowRepository(db, zap.NewNop())
	ctx := context.Background()

	flow := seedFlow(t, db, "Quote approval", entity.ModuleQuote, entity.TriggerSubmit, true)

	flow.Name = "Quote approval v2"
	flow.Steps = append(flow.Steps, entity.StepDefinition{
		Order: 3, Name: "GM", ApproverType: entity.ApproverTypeManagerChain, Required: false,
	})
	require.NoError(t, repo.Update(ctx, flow))

	got, err := repo.GetByID(ctx, "tenant-1", flow.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Quote approval v2", got.Name)
	assert.Len(t, got.Steps, 3)
}

func TestFlowRepository_FindActive(t *testing.T) {
	db := openTestDB(t)
	repo := NewFlowRepository(db, zap.NewNop())
	ctx := context.Background()

	seedFlow(t, db, "Old quote approval", entity.ModuleQuote, entity.TriggerSubmit, false)
	active := seedFlow(t, db, "Quote approval", entity.ModuleQuote, entity.TriggerSubmit, true)

	got, err := repo.FindActive(ctx, "tenant-1", entity.ModuleQuote, entity.TriggerSubmit)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, active.ID, got.ID)

	none, err := repo.FindActive(ctx, "tenant-1", entity.ModuleOrder, entity.TriggerSubmit)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestFlowRepository_SecondActiveFlowIsRejected(t *testing.T) {
	db := openTestDB(t)
	repo := NewFlowRepository(db, zap.NewNop())
	ctx := context.Background()

	seedFlow(t, db, "Quote approval", entity.ModuleQuote, entity.TriggerSubmit, true)

	// The partial unique index backstops the service-level conflict check.
	dup := testFlow("Quote approval copy", entity.ModuleQuote, entity.TriggerSubmit, true)
	err := repo.Create(ctx, dup)
	assert.Error(t, err)

	// An inactive duplicate is fine.
	inactive := testFlow("Quote approval draft", entity.ModuleQuote, entity.TriggerSubmit, false)
	assert.NoError(t, repo.Create(ctx, inactive))
}

func TestFlowRepository_Deactivate(t *testing.T) {
	db := openTestDB(t)
	repo := NewFlowRepository(db, zap.NewNop())
	ctx := context.Background()

	flow := seedFlow(t, db, "Quote approval", entity.ModuleQuote, entity.TriggerSubmit, true)

	ok, err := repo.Deactivate(ctx, "tenant-1", flow.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// Already inactive
	ok, err = repo.Deactivate(ctx, "tenant-1", flow.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.FindActive(ctx, "tenant-1", entity.ModuleQuote, entity.TriggerSubmit)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFlowRepository_List(t *testing.T) {
	db := openTestDB(t)
	repo := NewFlowRepository(db, zap.NewNop())
	ctx := context.Background()

	seedFlow(t, db, "Quote approval", entity.ModuleQuote, entity.TriggerSubmit, true)
	seedFlow(t, db, "Order approval", entity.ModuleOrder, entity.TriggerCreate, true)

	flows, err := repo.List(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Len(t, flows, 2)

	flows, err = repo.List(ctx, "tenant-2")
	require.NoError(t, err)
	assert.Empty(t, flows)
}
