package locker

import (
	"context"
	"sync"
	"time"
)

type lease struct {
	holder    string
	expiresAt time.Time
}

// Memory — реализация для тестов: та же семантика lease/TTL, что у PG.
type Memory struct {
	mu     sync.Mutex
	holder string
	leases map[string]lease
}

func NewMemory(holder string) *Memory {
	return &Memory{
		holder: holder,
		leases: make(map[string]lease),
	}
}

func (l *Memory) AcquireLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cur, ok := l.leases[key]; ok && cur.expiresAt.After(time.Now()) {
		return false, nil
	}
	l.leases[key] = lease{holder: l.holder, expiresAt: time.Now().Add(ttl)}
	return true, nil
}

func (l *Memory) IsLocked(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur, ok := l.leases[key]
	return ok && cur.expiresAt.After(time.Now()), nil
}

func (l *Memory) ReleaseLock(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cur, ok := l.leases[key]; ok && cur.holder == l.holder {
		delete(l.leases, key)
	}
	return nil
}
