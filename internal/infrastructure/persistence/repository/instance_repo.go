package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/decorcrm/approval-engine/internal/application/port"
	"github.com/decorcrm/approval-engine/internal/domain/entity"
	"go.uber.org/zap"
)

// InstanceRepository implements port.InstanceRepository
type InstanceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInstanceRepository creates a new instance repository
func NewInstanceRepository(db *sql.DB, logger *zap.Logger) port.InstanceRepository {
	return &InstanceRepository{
		db:     db,
		logger: logger,
	}
}

const instanceColumns = `id, tenant_id, flow_id, entity_type, entity_id, trigger_action,
		requester_id, status, current_step_order, steps, resume_context,
		needs_reconcile, created_at, completed_at`

// Create inserts a new approval instance with its step snapshot
func (r *InstanceRepository) Create(ctx context.Context, instance *entity.ApprovalInstance) error {
	steps, err := json.Marshal(instance.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}

	var resumeContext interface{}
	if len(instance.ResumeContext) > 0 {
		resumeContext = string(instance.ResumeContext)
	}

	query := `
		INSERT INTO approval_instances (
			tenant_id, flow_id, entity_type, entity_id, trigger_action,
			requester_id, status, current_step_order, steps, resume_context,
			needs_reconcile, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := pickExecutor(ctx, r.db).ExecContext(ctx, query,
		instance.TenantID,
		instance.FlowID,
		instance.EntityType,
		instance.EntityID,
		instance.TriggerAction,
		instance.RequesterID,
		instance.Status,
		instance.CurrentStepOrder,
		string(steps),
		resumeContext,
		instance.NeedsReconcile,
		instance.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create instance", zap.Error(err))
		return fmt.Errorf("failed to create instance: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	instance.ID = id
	return nil
}

// GetByID retrieves an approval instance by ID within the tenant
func (r *InstanceRepository) GetByID(ctx context.Context, tenantID string, id int64) (*entity.ApprovalInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM approval_instances WHERE id = ? AND tenant_id = ?`

	row := pickExecutor(ctx, r.db).QueryRowContext(ctx, query, id, tenantID)
	instance, err := scanInstance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get instance by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}

	return instance, nil
}

// FindPending retrieves the PENDING instance gating the given action
func (r *InstanceRepository) FindPending(ctx context.Context, tenantID, entityType, entityID, triggerAction string) (*entity.ApprovalInstance, error) {
	query := `
		SELECT ` + instanceColumns + `
		FROM approval_instances
		WHERE tenant_id = ? AND entity_type = ? AND entity_id = ?
			AND trigger_action = ? AND status = 'PENDING'
	`

	row := pickExecutor(ctx, r.db).QueryRowContext(ctx, query, tenantID, entityType, entityID, triggerAction)
	instance, err := scanInstance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to find pending instance",
			zap.String("entity_type", entityType), zap.String("entity_id", entityID), zap.Error(err))
		return nil, fmt.Errorf("failed to find pending instance: %w", err)
	}

	return instance, nil
}

// AdvanceStep moves the step cursor from fromOrder to fromOrder+1, guarded
// on status and the expected cursor position
func (r *InstanceRepository) AdvanceStep(ctx context.Context, id int64, fromOrder int) (bool, error) {
	query := `
		UPDATE approval_instances
		SET current_step_order = current_step_order + 1
		WHERE id = ? AND status = 'PENDING' AND current_step_order = ?
	`

	result, err := pickExecutor(ctx, r.db).ExecContext(ctx, query, id, fromOrder)
	if err != nil {
		r.logger.Error("Failed to advance instance step", zap.Int64("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to advance step: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// Complete moves a PENDING instance to a terminal status
func (r *InstanceRepository) Complete(ctx context.Context, id int64, status string, completedAt time.Time) (bool, error) {
	query := `
		UPDATE approval_instances
		SET status = ?, completed_at = ?
		WHERE id = ? AND status = 'PENDING'
	`

	result, err := pickExecutor(ctx, r.db).ExecContext(ctx, query, status, completedAt, id)
	if err != nil {
		r.logger.Error("Failed to complete instance", zap.Int64("id", id), zap.String("status", status), zap.Error(err))
		return false, fmt.Errorf("failed to complete instance: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// MarkNeedsReconcile flags an instance whose bridge invocation failed
func (r *InstanceRepository) MarkNeedsReconcile(ctx context.Context, id int64) error {
	query := `UPDATE approval_instances SET needs_reconcile = 1 WHERE id = ?`

	_, err := pickExecutor(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to mark instance for reconciliation", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark needs reconcile: %w", err)
	}

	return nil
}

// ListUnreconciled retrieves terminal instances awaiting bridge replay
func (r *InstanceRepository) ListUnreconciled(ctx context.Context, tenantID string, limit int) ([]*entity.ApprovalInstance, error) {
	query := `
		SELECT ` + instanceColumns + `
		FROM approval_instances
		WHERE tenant_id = ? AND needs_reconcile = 1
		ORDER BY completed_at ASC
		LIMIT ?
	`

	rows, err := pickExecutor(ctx, r.db).QueryContext(ctx, query, tenantID, limit)
	if err != nil {
		r.logger.Error("Failed to list unreconciled instances", zap.Error(err))
		return nil, fmt.Errorf("failed to list unreconciled instances: %w", err)
	}
	defer rows.Close()

	var instances []*entity.ApprovalInstance
	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		instances = append(instances, instance)
	}

	return instances, rows.Err()
}

func scanInstance(row rowScanner) (*entity.ApprovalInstance, error) {
	var instance entity.ApprovalInstance
	var steps string
	var resumeContext sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&instance.ID,
		&instance.TenantID,
		&instance.FlowID,
		&instance.EntityType,
		&instance.EntityID,
		&instance.TriggerAction,
		&instance.RequesterID,
		&instance.Status,
		&instance.CurrentStepOrder,
		&steps,
		&resumeContext,
		&instance.NeedsReconcile,
		&instance.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(steps), &instance.Steps); err != nil {
		return nil, fmt.Errorf("unmarshal steps: %w", err)
	}
	if resumeContext.Valid {
		instance.ResumeContext = json.RawMessage(resumeContext.String)
	}
	if completedAt.Valid {
		instance.CompletedAt = &completedAt.Time
	}

	return &instance, nil
}

// Verify interface compliance
var _ port.InstanceRepository = (*InstanceRepository)(nil)
