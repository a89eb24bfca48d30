package pg

import (
	"context"
	"fmt"
	"time"

	"lever_bot/internal/models"
	"lever_bot/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const positionColumns = `id, user_id, bot_id, exchange_id, symbol, type, status,
	entry_price, avg_entry_price, weighted_entry_price,
	quantity, current_quantity, leverage, created_at, updated_at, closed_at`

type Positions struct {
	db DB
}

// NewPositions instance
func NewPositions(db DB) *Positions {
	return &Positions{db: db}
}

func (s *Positions) AddRequested(
	ctx context.Context,
	bot *models.Bot,
	symbol string,
	t models.PositionType,
) (p *models.Position, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Positions.AddRequested: %w", err)
		}
	}()

	if bot == nil || bot.ID == "" {
		return nil, store.ErrInvalidArgument
	}

	now := time.Now()
	p = &models.Position{
		ID:         uuid.NewString(),
		UserID:     bot.UserID,
		BotID:      bot.ID,
		ExchangeID: bot.ExchangeID,
		Symbol:     symbol,
		Type:       t,
		Status:     models.PositionRequested,
		Leverage:   bot.Leverage,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err = s.db.Conn().Exec(ctx, `
		INSERT INTO positions (`+positionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		p.ID, p.UserID, p.BotID, p.ExchangeID, p.Symbol, p.Type, p.Status,
		p.EntryPrice, p.AvgEntryPrice, p.WeightedEntryPrice,
		p.Quantity, p.CurrentQuantity, p.Leverage, p.CreatedAt, p.UpdatedAt, nil,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Positions) Get(ctx context.Context, id string) (p *models.Position, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Positions.Get: %w", err)
		}
	}()

	if id == "" {
		return nil, store.ErrInvalidArgument
	}

	row := s.db.Conn().QueryRow(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE id = $1`, id)
	return scanPosition(row)
}

func (s *Positions) Expand(ctx context.Context, p *models.Position, qty, price float64, leverage int) error {
	p.Expand(qty, price, leverage)
	return s.update(ctx, p, "Expand")
}

func (s *Positions) Reduce(ctx context.Context, p *models.Position, qty float64) error {
	p.Reduce(qty)
	return s.update(ctx, p, "Reduce")
}

func (s *Positions) Close(ctx context.Context, p *models.Position) error {
	now := time.Now()
	p.Status = models.PositionClosed
	p.ClosedAt = &now
	p.UpdatedAt = now
	return s.update(ctx, p, "Close")
}

func (s *Positions) Reject(ctx context.Context, p *models.Position) error {
	// Requested с зафейленным открывающим ордером уходит в Rejected,
	// не побывав Open.
	p.Status = models.PositionRejected
	p.UpdatedAt = time.Now()
	return s.update(ctx, p, "Reject")
}

func (s *Positions) update(ctx context.Context, p *models.Position, op string) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Positions.%s: %w", op, err)
		}
	}()

	if p == nil || p.ID == "" {
		return store.ErrInvalidArgument
	}

	tag, err := s.db.Conn().Exec(ctx, `
		UPDATE positions SET
			status = $2, entry_price = $3, avg_entry_price = $4,
			weighted_entry_price = $5, quantity = $6, current_quantity = $7,
			leverage = $8, updated_at = $9, closed_at = $10
		WHERE id = $1`,
		p.ID, p.Status, p.EntryPrice, p.AvgEntryPrice,
		p.WeightedEntryPrice, p.Quantity, p.CurrentQuantity,
		p.Leverage, p.UpdatedAt, p.ClosedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanPosition(row pgx.Row) (*models.Position, error) {
	p := &models.Position{}
	err := row.Scan(
		&p.ID, &p.UserID, &p.BotID, &p.ExchangeID, &p.Symbol, &p.Type, &p.Status,
		&p.EntryPrice, &p.AvgEntryPrice, &p.WeightedEntryPrice,
		&p.Quantity, &p.CurrentQuantity, &p.Leverage,
		&p.CreatedAt, &p.UpdatedAt, &p.ClosedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
