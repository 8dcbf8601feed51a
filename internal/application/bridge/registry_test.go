package bridge

import (
	"context"
	"encoding/json"
	"testing"
)

func TestRegistry_RegisterAndResolve(t *testing.T) {
	r := NewRegistry()

	called := false
	err := r.Register("MEASURE_TASK", Func(func(ctx context.Context, entityID, outcome string, resumeContext json.RawMessage) error {
		called = true
		return nil
	}))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	b := r.Resolve("MEASURE_TASK")
	if b == nil {
		t.Fatal("Resolve() returned nil for registered type")
	}
	if err := b.OnApprovalResolved(context.Background(), "mt-1", "APPROVED", nil); err != nil {
		t.Fatalf("OnApprovalResolved() error = %v", err)
	}
	if !called {
		t.Error("bridge function was not invoked")
	}
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	r := NewRegistry()
	noop := Func(func(ctx context.Context, entityID, outcome string, resumeContext json.RawMessage) error {
		return nil
	})

	if err := r.Register("QUOTE", noop); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	if err := r.Register("QUOTE", noop); err == nil {
		t.Error("second Register() for same type should fail")
	}
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	r := NewRegistry()
	if b := r.Resolve("ORDER"); b != nil {
		t.Error("Resolve() for unregistered type should return nil")
	}
}

func TestRegistry_RejectsInvalidInput(t *testing.T) {
	r := NewRegistry()
	noop := Func(func(ctx context.Context, entityID, outcome string, resumeContext json.RawMessage) error {
		return nil
	})

	if err := r.Register("", noop); err == nil {
		t.Error("Register() with empty entity type should fail")
	}
	if err := r.Register("ORDER", nil); err == nil {
		t.Error("Register() with nil bridge should fail")
	}
}
