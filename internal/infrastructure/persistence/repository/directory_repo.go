package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/decorcrm/approval-engine/internal/application/port"
	"go.uber.org/zap"
)

// DirectoryRepository implements port.Directory against the directory_users
// table, a synchronized mirror of the tenant's org chart.
type DirectoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDirectoryRepository creates a new directory repository
func NewDirectoryRepository(db *sql.DB, logger *zap.Logger) port.Directory {
	return &DirectoryRepository{
		db:     db,
		logger: logger,
	}
}

// RoleHolders retrieves the active holders of a role in a stable order
func (r *DirectoryRepository) RoleHolders(ctx context.Context, tenantID, role string) ([]string, error) {
	query := `
		SELECT user_id FROM directory_users
		WHERE tenant_id = ? AND role = ? AND is_active = 1
		ORDER BY user_id ASC
	`

	rows, err := pickExecutor(ctx, r.db).QueryContext(ctx, query, tenantID, role)
	if err != nil {
		r.logger.Error("Failed to list role holders",
			zap.String("tenant_id", tenantID), zap.String("role", role), zap.Error(err))
		return nil, fmt.Errorf("failed to list role holders: %w", err)
	}
	defer rows.Close()

	var holders []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan role holder: %w", err)
		}
		holders = append(holders, userID)
	}

	return holders, rows.Err()
}

// ManagerOf retrieves the user's manager, or "" when none is configured
func (r *DirectoryRepository) ManagerOf(ctx context.Context, tenantID, userID string) (string, error) {
	query := `SELECT manager_id FROM directory_users WHERE tenant_id = ? AND user_id = ?`

	var managerID sql.NullString
	err := pickExecutor(ctx, r.db).QueryRowContext(ctx, query, tenantID, userID).Scan(&managerID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		r.logger.Error("Failed to get manager",
			zap.String("tenant_id", tenantID), zap.String("user_id", userID), zap.Error(err))
		return "", fmt.Errorf("failed to get manager: %w", err)
	}

	return managerID.String, nil
}

// DefaultApprover retrieves the tenant's fallback approver
func (r *DirectoryRepository) DefaultApprover(ctx context.Context, tenantID string) (string, error) {
	query := `
		SELECT user_id FROM directory_users
		WHERE tenant_id = ? AND is_default_approver = 1 AND is_active = 1
		ORDER BY user_id ASC
		LIMIT 1
	`

	var userID string
	err := pickExecutor(ctx, r.db).QueryRowContext(ctx, query, tenantID).Scan(&userID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		r.logger.Error("Failed to get default approver", zap.String("tenant_id", tenantID), zap.Error(err))
		return "", fmt.Errorf("failed to get default approver: %w", err)
	}

	return userID, nil
}

// HasRole reports whether the user actively holds the role
func (r *DirectoryRepository) HasRole(ctx context.Context, tenantID, userID, role string) (bool, error) {
	query := `
		SELECT COUNT(1) FROM directory_users
		WHERE tenant_id = ? AND user_id = ? AND role = ? AND is_active = 1
	`

	var count int
	err := pickExecutor(ctx, r.db).QueryRowContext(ctx, query, tenantID, userID, role).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to check role",
			zap.String("tenant_id", tenantID), zap.String("user_id", userID), zap.String("role", role), zap.Error(err))
		return false, fmt.Errorf("failed to check role: %w", err)
	}

	return count > 0, nil
}

// Verify interface compliance
var _ port.Directory = (*DirectoryRepository)(nil)
