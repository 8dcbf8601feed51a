package port

import (
	"context"
	"time"

	"github.com/decorcrm/approval-engine/internal/domain/entity"
)

// Directory resolves organizational questions the engine itself does not
// own: who holds a role, who manages whom, who the tenant's fallback
// approver is.
type Directory interface {
	// RoleHolders returns the active users holding the role within the
	// tenant, in a stable order.
	RoleHolders(ctx context.Context, tenantID, role string) ([]string, error)

	// ManagerOf returns the reporting manager of the user, or "" when no
	// manager is configured.
	ManagerOf(ctx context.Context, tenantID, userID string) (string, error)

	// DefaultApprover returns the tenant-level fallback approver.
	DefaultApprover(ctx context.Context, tenantID string) (string, error)

	// HasRole reports whether the user holds the given role.
	HasRole(ctx context.Context, tenantID, userID, role string) (bool, error)
}

// Notifier delivers approval notifications. Delivery is best effort: the
// engine logs failures and never lets them roll back a decision.
type Notifier interface {
	NotifyTaskCreated(ctx context.Context, task *entity.ApprovalTask, flowName string) error
	NotifyReminder(ctx context.Context, task *entity.ApprovalTask, flowName string) error
	NotifyResolved(ctx context.Context, instance *entity.ApprovalInstance, outcome string) error
}

// IdempotencyState is the lifecycle state of an idempotency record.
type IdempotencyState string

const (
	IdempotencyProcessing IdempotencyState = "PROCESSING"
	IdempotencyCompleted  IdempotencyState = "COMPLETED"
)

// IdempotencyRecord is what Check returns for a live key.
type IdempotencyRecord struct {
	State    IdempotencyState
	Response string // cached response, set once completed
}

// IdempotencyStore deduplicates trigger evaluation. A started key blocks
// duplicate concurrent creation, a completed key caches the result for
// replay and a failed key releases the slot for retry. Records expire
// after a bounded TTL so a crashed holder cannot block forever.
type IdempotencyStore interface {
	// Check returns the live record for the key, or nil when the key is
	// unknown or expired.
	Check(key string) *IdempotencyRecord

	// Start claims the key. Returns false (with the existing record) when
	// the key is already live.
	Start(key string) (bool, *IdempotencyRecord)

	Complete(key, response string)
	Fail(key string)
}

// RateLimiter throttles calls per key with a token bucket: capacity tokens
// per window, refilled proportionally to elapsed time and never above
// capacity.
type RateLimiter interface {
	Allow(key string, capacity int, window time.Duration) bool
}
