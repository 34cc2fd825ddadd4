package lock

import (
	"context"
	"sync"
	"time"
)

// Locker is the per-entity exclusive section used to serialize
// read-modify-write sequences on a single table group or usage counter.
// Production wires the redis-backed client; tests use KeyMutex.
type Locker interface {
	AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, value string) error
}

type entry struct {
	owner     string
	expiresAt time.Time
}

// KeyMutex is an in-process Locker keyed by entity identifier. It honors the
// same acquire/release semantics as the redis lock, including TTL expiry.
type KeyMutex struct {
	mu   sync.Mutex
	held map[string]entry
}

func NewKeyMutex() *KeyMutex {
	return &KeyMutex{held: make(map[string]entry)}
}

func (m *KeyMutex) AcquireLock(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if e, ok := m.held[key]; ok && now.Before(e.expiresAt) {
		return false, nil
	}
	m.held[key] = entry{owner: value, expiresAt: now.Add(ttl)}
	return true, nil
}

func (m *KeyMutex) ReleaseLock(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.held[key]; ok && e.owner == value {
		delete(m.held, key)
	}
	return nil
}
