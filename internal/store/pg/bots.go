package pg

import (
	"context"
	"fmt"

	"lever_bot/internal/models"
	"lever_bot/internal/store"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
)

const botColumns = `id, user_id, name, exchange, exchange_id, telegram_chat_id,
	is_enabled, managed_by, leverage, stop_loss_strategy,
	stop_loss_margin_distance, take_profit_base, credentials, created_at, updated_at`

type Bots struct {
	db DB
}

// NewBots instance
func NewBots(db DB) *Bots {
	return &Bots{db: db}
}

func (s *Bots) Get(ctx context.Context, id string) (b *models.Bot, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Bots.Get: %w", err)
		}
	}()

	if id == "" {
		return nil, store.ErrInvalidArgument
	}

	row := s.db.Conn().QueryRow(ctx, `SELECT `+botColumns+` FROM bots WHERE id = $1`, id)
	return scanBot(row)
}

// ListOwned — боты, которые должен обслуживать данный воркер.
func (s *Bots) ListOwned(ctx context.Context, managedBy string) (out []*models.Bot, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Bots.ListOwned: %w", err)
		}
	}()

	rows, err := s.db.Conn().Query(ctx,
		`SELECT `+botColumns+` FROM bots WHERE is_enabled AND managed_by = $1`,
		managedBy,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		b, err := scanBot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBot(row pgx.Row) (*models.Bot, error) {
	b := &models.Bot{}
	var creds []byte
	err := row.Scan(
		&b.ID, &b.UserID, &b.Name, &b.Exchange, &b.ExchangeID, &b.TelegramChatID,
		&b.IsEnabled, &b.ManagedBy, &b.Leverage, &b.StopLossStrategy,
		&b.StopLossMarginDistance, &b.TakeProfitBase, &creds, &b.CreatedAt, &b.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(creds) > 0 {
		if err := sonic.Unmarshal(creds, &b.Credentials); err != nil {
			return nil, err
		}
	}
	return b, nil
}
