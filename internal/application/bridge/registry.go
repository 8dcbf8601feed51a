// Package bridge decouples the approval engine from the business modules it
// gates. Each entity type registers a callback at process start; when an
// instance reaches a terminal state the engine looks the callback up by the
// instance's entityType and hands back the stored resume context. The engine
// has no compile-time dependency on any business module.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Bridge resumes or undoes a gated business action once its approval
// instance is resolved. outcome is one of entity.OutcomeApproved,
// entity.OutcomeRejected, entity.OutcomeCanceled.
type Bridge interface {
	OnApprovalResolved(ctx context.Context, entityID string, outcome string, resumeContext json.RawMessage) error
}

// Func adapts a plain function to the Bridge interface.
type Func func(ctx context.Context, entityID string, outcome string, resumeContext json.RawMessage) error

// OnApprovalResolved implements Bridge
func (f Func) OnApprovalResolved(ctx context.Context, entityID string, outcome string, resumeContext json.RawMessage) error {
	return f(ctx, entityID, outcome, resumeContext)
}

// Registry maps entity types to their bridge implementations.
type Registry struct {
	mu      sync.RWMutex
	bridges map[string]Bridge
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		bridges: make(map[string]Bridge),
	}
}

// Register binds a bridge to an entity type. Registering the same entity
// type twice is a programming error.
func (r *Registry) Register(entityType string, b Bridge) error {
	if entityType == "" {
		return fmt.Errorf("entity type cannot be empty")
	}
	if b == nil {
		return fmt.Errorf("bridge cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bridges[entityType]; exists {
		return fmt.Errorf("bridge already registered for entity type %q", entityType)
	}
	r.bridges[entityType] = b
	return nil
}

// Resolve returns the bridge for an entity type, or nil when none is
// registered.
func (r *Registry) Resolve(entityType string) Bridge {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bridges[entityType]
}

// EntityTypes returns the registered entity types.
func (r *Registry) EntityTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.bridges))
	for t := range r.bridges {
		types = append(types, t)
	}
	return types
}
