package locker

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PG — lease-таблица bot_symbol_locks. Просроченный lease перехватывается
// прямо в upsert'е, отдельного реапера не нужно.
type PG struct {
	pool   *pgxpool.Pool
	holder string
}

func NewPG(pool *pgxpool.Pool, holder string) *PG {
	return &PG{pool: pool, holder: holder}
}

func (l *PG) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	tag, err := l.pool.Exec(ctx, `
		INSERT INTO bot_symbol_locks (key, holder, expires_at)
		VALUES ($1, $2, now() + $3)
		ON CONFLICT (key) DO UPDATE
			SET holder = EXCLUDED.holder, expires_at = EXCLUDED.expires_at
			WHERE bot_symbol_locks.expires_at < now()`,
		key, l.holder, ttl,
	)
	if err != nil {
		return false, fmt.Errorf("locker.AcquireLock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (l *PG) IsLocked(ctx context.Context, key string) (bool, error) {
	var locked bool
	err := l.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bot_symbol_locks
			WHERE key = $1 AND expires_at > now()
		)`,
		key,
	).Scan(&locked)
	if err != nil {
		return false, fmt.Errorf("locker.IsLocked: %w", err)
	}
	return locked, nil
}

// ReleaseLock снимает только собственный lease: чужой (перехваченный после
// истечения TTL) трогать нельзя.
func (l *PG) ReleaseLock(ctx context.Context, key string) error {
	_, err := l.pool.Exec(ctx,
		`DELETE FROM bot_symbol_locks WHERE key = $1 AND holder = $2`,
		key, l.holder,
	)
	if err != nil {
		return fmt.Errorf("locker.ReleaseLock: %w", err)
	}
	return nil
}
