package locker

import (
	"context"
	"time"
)

// Locker — единственный примитив взаимного исключения в системе:
// lease на (bot, symbol) вокруг закрывающего диспатча. TTL обязателен,
// чтобы упавший держатель не блокировал символ навсегда.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	IsLocked(ctx context.Context, key string) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// Key — ключ локов символа: botID + ":" + symbol.
func Key(botID, symbol string) string {
	return botID + ":" + symbol
}
