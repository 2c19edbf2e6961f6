// Package lock serialises checkout steps on the same order across requests
// and replicas.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotAcquired is returned by Hold when another request owns the order.
var ErrNotAcquired = errors.New("lock: order is locked by another request")

// Locker acquires short-lived per-order locks. Each acquisition gets an owner
// token; only the matching token releases the lock.
type Locker interface {
	// Acquire returns the owner token and true if the lock was acquired, or
	// false if it is already held.
	Acquire(ctx context.Context, orderID string, ttl time.Duration) (string, bool, error)
	// Release drops the lock if token still owns it. Releasing a free or
	// re-acquired lock is not an error.
	Release(ctx context.Context, orderID, token string) error
}

func orderKey(orderID string) string {
	return fmt.Sprintf("lock:order:%s", orderID)
}

// Hold acquires the order lock and returns the function that releases it.
func Hold(ctx context.Context, l Locker, orderID string, ttl time.Duration) (func(), error) {
	token, ok, err := l.Acquire(ctx, orderID, ttl)
	if err != nil {
		return nil, fmt.Errorf("lock: acquire order %s: %w", orderID, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return func() {
		// The request context may already be done; the TTL covers a failed release.
		_ = l.Release(context.WithoutCancel(ctx), orderID, token)
	}, nil
}

type memoryLock struct {
	token  string
	expiry time.Time
}

// MemoryLocker is a Locker for a single process.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]memoryLock
	now   func() time.Time
}

// NewMemoryLocker creates an empty MemoryLocker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]memoryLock), now: time.Now}
}

// Acquire implements Locker.
func (m *MemoryLocker) Acquire(_ context.Context, orderID string, ttl time.Duration) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := orderKey(orderID)
	if held, ok := m.locks[key]; ok && m.now().Before(held.expiry) {
		return "", false, nil
	}
	token := uuid.NewString()
	m.locks[key] = memoryLock{token: token, expiry: m.now().Add(ttl)}
	return token, true, nil
}

// Release implements Locker.
func (m *MemoryLocker) Release(_ context.Context, orderID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := orderKey(orderID)
	if held, ok := m.locks[key]; ok && held.token == token {
		delete(m.locks, key)
	}
	return nil
}
