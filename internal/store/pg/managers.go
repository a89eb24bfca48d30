package pg

import (
	"context"
	"fmt"
)

type Managers struct {
	db DB
}

// NewManagers instance
func NewManagers(db DB) *Managers {
	return &Managers{db: db}
}

// Heartbeat — upsert PingDate; первая строка создаётся первым же пингом.
func (s *Managers) Heartbeat(ctx context.Context, name string) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Managers.Heartbeat: %w", err)
		}
	}()

	_, err = s.db.Conn().Exec(ctx, `
		INSERT INTO bot_managers (name, ping_date) VALUES ($1, now())
		ON CONFLICT (name) DO UPDATE SET ping_date = now()`,
		name,
	)
	return err
}
