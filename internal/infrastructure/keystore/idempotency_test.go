package keystore

import (
	"testing"
	"time"

	"github.com/decorcrm/approval-engine/internal/application/port"
)

func TestIdempotencyStore_StartClaimsKey(t *testing.T) {
	store := NewIdempotencyStore(time.Minute)

	ok, existing := store.Start("k1")
	if !ok || existing != nil {
		t.Fatalf("Start() = %v, %v, want claim to succeed", ok, existing)
	}

	ok, existing = store.Start("k1")
	if ok {
		t.Fatal("second Start() on live key must fail")
	}
	if existing == nil || existing.State != port.IdempotencyProcessing {
		t.Errorf("existing record = %+v, want PROCESSING", existing)
	}
}

func TestIdempotencyStore_CompleteCachesResponse(t *testing.T) {
	store := NewIdempotencyStore(time.Minute)

	store.Start("k1")
	store.Complete("k1", "42")

	record := store.Check("k1")
	if record == nil || record.State != port.IdempotencyCompleted || record.Response != "42" {
		t.Errorf("Check() = %+v, want COMPLETED with response 42", record)
	}

	ok, existing := store.Start("k1")
	if ok {
		t.Fatal("Start() on completed key must fail")
	}
	if existing.Response != "42" {
		t.Errorf("existing.Response = %v, want 42", existing.Response)
	}
}

func TestIdempotencyStore_FailReleasesKey(t *testing.T) {
	store := NewIdempotencyStore(time.Minute)

	store.Start("k1")
	store.Fail("k1")

	if record := store.Check("k1"); record != nil {
		t.Errorf("Check() after Fail() = %+v, want nil", record)
	}
	if ok, _ := store.Start("k1"); !ok {
		t.Error("Start() after Fail() must succeed")
	}
}

func TestIdempotencyStore_EntriesExpire(t *testing.T) {
	store := NewIdempotencyStore(time.Minute)
	current := time.Now()
	store.now = func() time.Time { return current }

	store.Start("k1")
	store.Complete("k2", "done")
	store.Start("k2") // no-op claim on live key
	current = current.Add(2 * time.Minute)

	if record := store.Check("k1"); record != nil {
		t.Errorf("Check() on expired PROCESSING key = %+v, want nil", record)
	}
	if ok, _ := store.Start("k2"); !ok {
		t.Error("expired COMPLETED key must be claimable again")
	}
}

func TestIdempotencyStore_ConcurrentStartSingleWinner(t *testing.T) {
	store := NewIdempotencyStore(time.Minute)

	const goroutines = 32
	wins := make(chan bool, goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			ok, _ := store.Start("shared")
			wins <- ok
		}()
	}

	won := 0
	for i := 0; i < goroutines; i++ {
		if <-wins {
			won++
		}
	}
	if won != 1 {
		t.Errorf("winners = %d, want exactly 1", won)
	}
}
