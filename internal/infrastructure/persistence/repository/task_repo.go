package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/decorcrm/approval-engine/internal/application/port"
	"github.com/decorcrm/approval-engine/internal/domain/entity"
	"go.uber.org/zap"
)

// TaskRepository implements port.TaskRepository
type TaskRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *sql.DB, logger *zap.Logger) port.TaskRepository {
	return &TaskRepository{
		db:     db,
		logger: logger,
	}
}

const taskColumns = `id, tenant_id, instance_id, step_order, step_name,
		assignee_id, status, comment, action_at, due_at, created_at`

// Create inserts a new approval task
func (r *TaskRepository) Create(ctx context.Context, task *entity.ApprovalTask) error {
	query := `
		INSERT INTO approval_tasks (
			tenant_id, instance_id, step_order, step_name,
			assignee_id, status, comment, due_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := pickExecutor(ctx, r.db).ExecContext(ctx, query,
		task.TenantID,
		task.InstanceID,
		task.StepOrder,
		task.StepName,
		task.AssigneeID,
		task.Status,
		task.Comment,
		task.DueAt,
		task.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create task", zap.Error(err))
		return fmt.Errorf("failed to create task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	task.ID = id
	return nil
}

// GetByID retrieves a task by ID within the tenant
func (r *TaskRepository) GetByID(ctx context.Context, tenantID string, id int64) (*entity.ApprovalTask, error) {
	query := `SELECT ` + taskColumns + ` FROM approval_tasks WHERE id = ? AND tenant_id = ?`

	row := pickExecutor(ctx, r.db).QueryRowContext(ctx, query, id, tenantID)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get task by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

// GetByInstanceID retrieves all tasks of an instance in step order
func (r *TaskRepository) GetByInstanceID(ctx context.Context, instanceID int64) ([]*entity.ApprovalTask, error) {
	query := `SELECT ` + taskColumns + ` FROM approval_tasks WHERE instance_id = ? ORDER BY step_order ASC, id ASC`

	rows, err := pickExecutor(ctx, r.db).QueryContext(ctx, query, instanceID)
	if err != nil {
		r.logger.Error("Failed to get tasks by instance", zap.Int64("instance_id", instanceID), zap.Error(err))
		return nil, fmt.Errorf("failed to get tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*entity.ApprovalTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// Resolve moves a PENDING task to a terminal status. The guard on status
// makes concurrent decisions race safely: exactly one caller sees true.
func (r *TaskRepository) Resolve(ctx context.Context, id int64, status, comment string, actionAt time.Time) (bool, error) {
	query := `
		UPDATE approval_tasks
		SET status = ?, comment = ?, action_at = ?
		WHERE id = ? AND status = 'PENDING'
	`

	result, err := pickExecutor(ctx, r.db).ExecContext(ctx, query, status, comment, actionAt, id)
	if err != nil {
		r.logger.Error("Failed to resolve task", zap.Int64("id", id), zap.String("status", status), zap.Error(err))
		return false, fmt.Errorf("failed to resolve task: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// ExtendDue pushes the due time of a still-pending task
func (r *TaskRepository) ExtendDue(ctx context.Context, id int64, dueAt time.Time) (bool, error) {
	query := `UPDATE approval_tasks SET due_at = ? WHERE id = ? AND status = 'PENDING'`

	result, err := pickExecutor(ctx, r.db).ExecContext(ctx, query, dueAt, id)
	if err != nil {
		r.logger.Error("Failed to extend task due time", zap.Int64("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to extend due time: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// Reassign moves a still-pending task to a new assignee
func (r *TaskRepository) Reassign(ctx context.Context, id int64, assigneeID string, dueAt time.Time) (bool, error) {
	query := `UPDATE approval_tasks SET assignee_id = ?, due_at = ? WHERE id = ? AND status = 'PENDING'`

	result, err := pickExecutor(ctx, r.db).ExecContext(ctx, query, assigneeID, dueAt, id)
	if err != nil {
		r.logger.Error("Failed to reassign task", zap.Int64("id", id), zap.String("assignee_id", assigneeID), zap.Error(err))
		return false, fmt.Errorf("failed to reassign task: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListOverdue retrieves pending tasks past their due time together with the
// owning flow's timeout policy
func (r *TaskRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*entity.OverdueTask, error) {
	query := `
		SELECT t.id, t.tenant_id, t.instance_id, t.step_order, t.step_name,
			t.assignee_id, t.status, t.comment, t.action_at, t.due_at, t.created_at,
			i.requester_id, f.name, f.timeout_hours, f.timeout_action
		FROM approval_tasks t
		JOIN approval_instances i ON i.id = t.instance_id
		JOIN approval_flows f ON f.id = i.flow_id
		WHERE t.status = 'PENDING' AND t.due_at IS NOT NULL AND t.due_at <= ?
		ORDER BY t.due_at ASC
		LIMIT ?
	`

	rows, err := pickExecutor(ctx, r.db).QueryContext(ctx, query, now, limit)
	if err != nil {
		r.logger.Error("Failed to list overdue tasks", zap.Error(err))
		return nil, fmt.Errorf("failed to list overdue tasks: %w", err)
	}
	defer rows.Close()

	var overdue []*entity.OverdueTask
	for rows.Next() {
		var o entity.OverdueTask
		var comment sql.NullString
		var actionAt, dueAt sql.NullTime

		err := rows.Scan(
			&o.Task.ID,
			&o.Task.TenantID,
			&o.Task.InstanceID,
			&o.Task.StepOrder,
			&o.Task.StepName,
			&o.Task.AssigneeID,
			&o.Task.Status,
			&comment,
			&actionAt,
			&dueAt,
			&o.Task.CreatedAt,
			&o.RequesterID,
			&o.FlowName,
			&o.TimeoutHours,
			&o.TimeoutAction,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan overdue task: %w", err)
		}

		o.Task.Comment = comment.String
		if actionAt.Valid {
			o.Task.ActionAt = &actionAt.Time
		}
		if dueAt.Valid {
			o.Task.DueAt = &dueAt.Time
		}
		o.InstanceID = o.Task.InstanceID

		overdue = append(overdue, &o)
	}

	return overdue, rows.Err()
}

// ListPendingForUser retrieves the user's open inbox joined with flow and
// instance context
func (r *TaskRepository) ListPendingForUser(ctx context.Context, tenantID, userID string, limit int) ([]*entity.TaskView, error) {
	return r.listForUser(ctx, tenantID, userID, limit, true)
}

// ListProcessedForUser retrieves tasks the user has already decided
func (r *TaskRepository) ListProcessedForUser(ctx context.Context, tenantID, userID string, limit int) ([]*entity.TaskView, error) {
	return r.listForUser(ctx, tenantID, userID, limit, false)
}

func (r *TaskRepository) listForUser(ctx context.Context, tenantID, userID string, limit int, pending bool) ([]*entity.TaskView, error) {
	statusCond := `t.status = 'PENDING'`
	orderBy := `t.created_at DESC`
	if !pending {
		statusCond = `t.status != 'PENDING'`
		orderBy = `t.action_at DESC`
	}

	query := `
		SELECT t.id, t.tenant_id, t.instance_id, t.step_order, t.step_name,
			t.assignee_id, t.status, t.comment, t.action_at, t.due_at, t.created_at,
			f.name, f.module, i.entity_type, i.entity_id, i.requester_id
		FROM approval_tasks t
		JOIN approval_instances i ON i.id = t.instance_id
		JOIN approval_flows f ON f.id = i.flow_id
		WHERE t.tenant_id = ? AND t.assignee_id = ? AND ` + statusCond + `
		ORDER BY ` + orderBy + `
		LIMIT ?
	`

	rows, err := pickExecutor(ctx, r.db).QueryContext(ctx, query, tenantID, userID, limit)
	if err != nil {
		r.logger.Error("Failed to list tasks for user",
			zap.String("tenant_id", tenantID), zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list tasks for user: %w", err)
	}
	defer rows.Close()

	var views []*entity.TaskView
	for rows.Next() {
		var v entity.TaskView
		var comment sql.NullString
		var actionAt, dueAt sql.NullTime

		err := rows.Scan(
			&v.Task.ID,
			&v.Task.TenantID,
			&v.Task.InstanceID,
			&v.Task.StepOrder,
			&v.Task.StepName,
			&v.Task.AssigneeID,
			&v.Task.Status,
			&comment,
			&actionAt,
			&dueAt,
			&v.Task.CreatedAt,
			&v.FlowName,
			&v.Module,
			&v.EntityType,
			&v.EntityID,
			&v.RequesterID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task view: %w", err)
		}

		v.Task.Comment = comment.String
		if actionAt.Valid {
			v.Task.ActionAt = &actionAt.Time
		}
		if dueAt.Valid {
			v.Task.DueAt = &dueAt.Time
		}

		views = append(views, &v)
	}

	return views, rows.Err()
}

func scanTask(row rowScanner) (*entity.ApprovalTask, error) {
	var task entity.ApprovalTask
	var comment sql.NullString
	var actionAt, dueAt sql.NullTime

	err := row.Scan(
		&task.ID,
		&task.TenantID,
		&task.InstanceID,
		&task.StepOrder,
		&task.StepName,
		&task.AssigneeID,
		&task.Status,
		&comment,
		&actionAt,
		&dueAt,
		&task.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Comment = comment.String
	if actionAt.Valid {
		task.ActionAt = &actionAt.Time
	}
	if dueAt.Valid {
		task.DueAt = &dueAt.Time
	}

	return &task, nil
}

// Verify interface compliance
var _ port.TaskRepository = (*TaskRepository)(nil)
