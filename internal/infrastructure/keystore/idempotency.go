package keystore

import (
	"sync"
	"time"

	"github.com/decorcrm/approval-engine/internal/application/port"
)

// idempotencyEntry is one tracked key with its expiry.
type idempotencyEntry struct {
	record    port.IdempotencyRecord
	expiresAt time.Time
}

// IdempotencyStore is an in-process implementation of port.IdempotencyStore.
// Entries expire lazily after the TTL, so a holder that crashed mid-flight
// cannot block its key forever.
type IdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]*idempotencyEntry
	ttl     time.Duration
	now     func() time.Time // swappable in tests
}

var _ port.IdempotencyStore = (*IdempotencyStore)(nil)

// NewIdempotencyStore creates a store whose records expire after ttl.
func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		entries: make(map[string]*idempotencyEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Check returns the live record for key, or nil when unknown or expired.
func (s *IdempotencyStore) Check(key string) *port.IdempotencyRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.live(key)
	if entry == nil {
		return nil
	}
	record := entry.record
	return &record
}

// Start claims the key as PROCESSING. When the key is already live the claim
// fails and the existing record is returned so the caller can replay a
// completed result or back off a concurrent holder.
func (s *IdempotencyStore) Start(key string) (bool, *port.IdempotencyRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry := s.live(key); entry != nil {
		record := entry.record
		return false, &record
	}

	s.entries[key] = &idempotencyEntry{
		record:    port.IdempotencyRecord{State: port.IdempotencyProcessing},
		expiresAt: s.now().Add(s.ttl),
	}
	return true, nil
}

// Complete marks the key COMPLETED and caches the response for replay. The
// TTL restarts from completion time.
func (s *IdempotencyStore) Complete(key, response string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = &idempotencyEntry{
		record:    port.IdempotencyRecord{State: port.IdempotencyCompleted, Response: response},
		expiresAt: s.now().Add(s.ttl),
	}
}

// Fail releases the key so the operation can be retried.
func (s *IdempotencyStore) Fail(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// live returns the entry for key if present and not expired, pruning an
// expired one. Caller holds the lock.
func (s *IdempotencyStore) live(key string) *idempotencyEntry {
	entry, ok := s.entries[key]
	if !ok {
		return nil
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, key)
		return nil
	}
	return entry
}
