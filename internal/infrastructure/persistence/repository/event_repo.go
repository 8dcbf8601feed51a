package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/decorcrm/approval-engine/internal/application/port"
	"github.com/decorcrm/approval-engine/internal/domain/entity"
	"go.uber.org/zap"
)

// EventRepository implements port.EventRepository
type EventRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *sql.DB, logger *zap.Logger) port.EventRepository {
	return &EventRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends an audit trail entry
func (r *EventRepository) Create(ctx context.Context, event *entity.ApprovalEvent) error {
	query := `
		INSERT INTO approval_events (
			tenant_id, instance_id, task_id, actor_id, action, comment, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := pickExecutor(ctx, r.db).ExecContext(ctx, query,
		event.TenantID,
		event.InstanceID,
		event.TaskID,
		event.ActorID,
		event.Action,
		event.Comment,
		event.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create event", zap.Error(err))
		return fmt.Errorf("failed to create event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	event.ID = id
	return nil
}

// GetByInstanceID retrieves the audit trail of an instance in insertion order
func (r *EventRepository) GetByInstanceID(ctx context.Context, instanceID int64) ([]*entity.ApprovalEvent, error) {
	query := `
		SELECT id, tenant_id, instance_id, task_id, actor_id, action, comment, created_at
		FROM approval_events
		WHERE instance_id = ?
		ORDER BY id ASC
	`

	rows, err := pickExecutor(ctx, r.db).QueryContext(ctx, query, instanceID)
	if err != nil {
		r.logger.Error("Failed to get events by instance", zap.Int64("instance_id", instanceID), zap.Error(err))
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var events []*entity.ApprovalEvent
	for rows.Next() {
		var event entity.ApprovalEvent
		var comment sql.NullString

		err := rows.Scan(
			&event.ID,
			&event.TenantID,
			&event.InstanceID,
			&event.TaskID,
			&event.ActorID,
			&event.Action,
			&comment,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		event.Comment = comment.String
		events = append(events, &event)
	}

	return events, rows.Err()
}

// Verify interface compliance
var _ port.EventRepository = (*EventRepository)(nil)
