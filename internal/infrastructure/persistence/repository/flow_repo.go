package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/decorcrm/approval-engine/internal/application/port"
	"github.com/decorcrm/approval-engine/internal/domain/entity"
	"go.uber.org/zap"
)

// FlowRepository implements port.FlowRepository
type FlowRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewFlowRepository creates a new flow repository
func NewFlowRepository(db *sql.DB, logger *zap.Logger) port.FlowRepository {
	return &FlowRepository{
		db:     db,
		logger: logger,
	}
}

const flowColumns = `id, tenant_id, name, module, trigger_action, steps,
		timeout_hours, timeout_action, is_active, created_at, updated_at`

// Create inserts a new flow definition
func (r *FlowRepository) Create(ctx context.Context, flow *entity.FlowDefinition) error {
	steps, err := json.Marshal(flow.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}

	query := `
		INSERT INTO approval_flows (
			tenant_id, name, module, trigger_action, steps,
			timeout_hours, timeout_action, is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := pickExecutor(ctx, r.db).ExecContext(ctx, query,
		flow.TenantID,
		flow.Name,
		flow.Module,
		flow.TriggerAction,
		string(steps),
		flow.TimeoutHours,
		flow.TimeoutAction,
		flow.IsActive,
		flow.CreatedAt,
		flow.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create flow", zap.Error(err))
		return fmt.Errorf("failed to create flow: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	flow.ID = id
	return nil
}

// Update replaces an existing flow definition
func (r *FlowRepository) Update(ctx context.Context, flow *entity.FlowDefinition) error {
	steps, err := json.Marshal(flow.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}

	query := `
		UPDATE approval_flows
		SET name = ?, module = ?, trigger_action = ?, steps = ?,
			timeout_hours = ?, timeout_action = ?, is_active = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ?
	`

	_, err = pickExecutor(ctx, r.db).ExecContext(ctx, query,
		flow.Name,
		flow.Module,
		flow.TriggerAction,
		string(steps),
		flow.TimeoutHours,
		flow.TimeoutAction,
		flow.IsActive,
		flow.UpdatedAt,
		flow.ID,
		flow.TenantID,
	)
	if err != nil {
		r.logger.Error("Failed to update flow", zap.Int64("id", flow.ID), zap.Error(err))
		return fmt.Errorf("failed to update flow: %w", err)
	}

	return nil
}

// GetByID retrieves a flow by ID within the tenant
func (r *FlowRepository) GetByID(ctx context.Context, tenantID string, id int64) (*entity.FlowDefinition, error) {
	query := `SELECT ` + flowColumns + ` FROM approval_flows WHERE id = ? AND tenant_id = ?`

	row := pickExecutor(ctx, r.db).QueryRowContext(ctx, query, id, tenantID)
	flow, err := scanFlow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get flow by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get flow: %w", err)
	}

	return flow, nil
}

// List retrieves all flows of a tenant, newest first
func (r *FlowRepository) List(ctx context.Context, tenantID string) ([]*entity.FlowDefinition, error) {
	query := `SELECT ` + flowColumns + ` FROM approval_flows WHERE tenant_id = ? ORDER BY created_at DESC`

	rows, err := pickExecutor(ctx, r.db).QueryContext(ctx, query, tenantID)
	if err != nil {
		r.logger.Error("Failed to list flows", zap.Error(err))
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}
	defer rows.Close()

	var flows []*entity.FlowDefinition
	for rows.Next() {
		flow, err := scanFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}
		flows = append(flows, flow)
	}

	return flows, rows.Err()
}

// FindActive retrieves the single active flow for (tenant, module,
// triggerAction). A partial unique index guarantees at most one row matches.
func (r *FlowRepository) FindActive(ctx context.Context, tenantID, module, triggerAction string) (*entity.FlowDefinition, error) {
	query := `
		SELECT ` + flowColumns + `
		FROM approval_flows
		WHERE tenant_id = ? AND module = ? AND trigger_action = ? AND is_active = 1
	`

	row := pickExecutor(ctx, r.db).QueryRowContext(ctx, query, tenantID, module, triggerAction)
	flow, err := scanFlow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to find active flow",
			zap.String("tenant_id", tenantID), zap.String("module", module),
			zap.String("trigger_action", triggerAction), zap.Error(err))
		return nil, fmt.Errorf("failed to find active flow: %w", err)
	}

	return flow, nil
}

// Deactivate clears the active flag of a flow
func (r *FlowRepository) Deactivate(ctx context.Context, tenantID string, id int64) (bool, error) {
	query := `UPDATE approval_flows SET is_active = 0 WHERE id = ? AND tenant_id = ? AND is_active = 1`

	result, err := pickExecutor(ctx, r.db).ExecContext(ctx, query, id, tenantID)
	if err != nil {
		r.logger.Error("Failed to deactivate flow", zap.Int64("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to deactivate flow: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFlow(row rowScanner) (*entity.FlowDefinition, error) {
	var flow entity.FlowDefinition
	var steps string

	err := row.Scan(
		&flow.ID,
		&flow.TenantID,
		&flow.Name,
		&flow.Module,
		&flow.TriggerAction,
		&steps,
		&flow.TimeoutHours,
		&flow.TimeoutAction,
		&flow.IsActive,
		&flow.CreatedAt,
		&flow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(steps), &flow.Steps); err != nil {
		return nil, fmt.Errorf("unmarshal steps: %w", err)
	}
	return &flow, nil
}

// Verify interface compliance
var _ port.FlowRepository = (*FlowRepository)(nil)
