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

const orderColumns = `id, position_id, bot_id, exchange_id, user_id, symbol,
	trigger_type, condition_type, trigger_price, quantity, quantity_type,
	filled_quantity, filled_price, realized_pnl, status, related_to,
	close_position, created_at, updated_at`

type Orders struct {
	db DB
}

// NewOrders instance
func NewOrders(db DB) *Orders {
	return &Orders{db: db}
}

func (s *Orders) Add(ctx context.Context, p *models.Position, params store.NewOrderParams) (o *models.Order, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Orders.Add: %w", err)
		}
	}()

	if p == nil || p.ID == "" {
		return nil, store.ErrInvalidArgument
	}

	now := time.Now()
	o = &models.Order{
		ID:            uuid.NewString(),
		PositionID:    p.ID,
		BotID:         p.BotID,
		ExchangeID:    p.ExchangeID,
		UserID:        p.UserID,
		Symbol:        p.Symbol,
		TriggerType:   params.TriggerType,
		ConditionType: params.ConditionType,
		TriggerPrice:  params.TriggerPrice,
		Quantity:      params.Quantity,
		QuantityType:  params.QuantityType,
		Status:        models.OrderOpen,
		RelatedTo:     params.RelatedTo,
		ClosePosition: params.ClosePosition,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err = s.db.Conn().Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		o.ID, o.PositionID, o.BotID, o.ExchangeID, o.UserID, o.Symbol,
		o.TriggerType, o.ConditionType, o.TriggerPrice, o.Quantity, o.QuantityType,
		o.FilledQuantity, o.FilledPrice, o.RealizedPnl, o.Status, o.RelatedTo,
		o.ClosePosition, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Orders) Get(ctx context.Context, id string) (o *models.Order, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Orders.Get: %w", err)
		}
	}()

	if id == "" {
		return nil, store.ErrInvalidArgument
	}

	row := s.db.Conn().QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (s *Orders) Update(ctx context.Context, o *models.Order) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Orders.Update: %w", err)
		}
	}()

	if o == nil || o.ID == "" {
		return store.ErrInvalidArgument
	}
	o.UpdatedAt = time.Now()

	tag, err := s.db.Conn().Exec(ctx, `
		UPDATE orders SET
			trigger_price = $2, filled_quantity = $3, filled_price = $4,
			realized_pnl = $5, status = $6, updated_at = $7
		WHERE id = $1`,
		o.ID, o.TriggerPrice, o.FilledQuantity, o.FilledPrice,
		o.RealizedPnl, o.Status, o.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// UpdateStatusIf — атомарная граница клейма триггера: переход случается
// только если статус всё ещё from.
func (s *Orders) UpdateStatusIf(ctx context.Context, id string, from, to models.OrderStatus) (ok bool, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Orders.UpdateStatusIf: %w", err)
		}
	}()

	if id == "" {
		return false, store.ErrInvalidArgument
	}

	tag, err := s.db.Conn().Exec(ctx,
		`UPDATE orders SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`,
		id, from, to,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Orders) ListOpenByTrigger(ctx context.Context, t models.TriggerType) (out []*models.Order, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Orders.ListOpenByTrigger: %w", err)
		}
	}()

	rows, err := s.db.Conn().Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status = $1 AND trigger_type = $2
		ORDER BY created_at`,
		models.OrderOpen, t,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Orders) OpenStopLoss(ctx context.Context, positionID string) (o *models.Order, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Orders.OpenStopLoss: %w", err)
		}
	}()

	if positionID == "" {
		return nil, store.ErrInvalidArgument
	}

	row := s.db.Conn().QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE position_id = $1 AND trigger_type = $2 AND status = $3
		ORDER BY created_at DESC
		LIMIT 1`,
		positionID, models.TriggerStopLoss, models.OrderOpen,
	)
	return scanOrder(row)
}

func (s *Orders) HasTriggeredCloser(ctx context.Context, positionID, excludeOrderID string) (found bool, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Orders.HasTriggeredCloser: %w", err)
		}
	}()

	err = s.db.Conn().QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM orders
			WHERE position_id = $1 AND id <> $2
			  AND close_position AND status = $3
		)`,
		positionID, excludeOrderID, models.OrderTriggered,
	).Scan(&found)
	return found, err
}

// CancelOpen — массовый перевод Open-ордеров позиции в Cancelled одной
// транзакцией, опционально вместе с закрытием позиции.
func (s *Orders) CancelOpen(ctx context.Context, p *models.Position, closePosition bool) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Orders.CancelOpen: %w", err)
		}
	}()

	if p == nil || p.ID == "" {
		return store.ErrInvalidArgument
	}

	return s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx,
			`UPDATE orders SET status = $2, updated_at = now() WHERE position_id = $1 AND status = $3`,
			p.ID, models.OrderCancelled, models.OrderOpen,
		)
		if err != nil {
			return err
		}
		if closePosition {
			now := time.Now()
			p.Status = models.PositionClosed
			p.ClosedAt = &now
			p.UpdatedAt = now
			_, err = tx.Exec(ctxTx,
				`UPDATE positions SET status = $2, closed_at = $3, updated_at = $3 WHERE id = $1`,
				p.ID, p.Status, now,
			)
		}
		return err
	})
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	o := &models.Order{}
	err := row.Scan(
		&o.ID, &o.PositionID, &o.BotID, &o.ExchangeID, &o.UserID, &o.Symbol,
		&o.TriggerType, &o.ConditionType, &o.TriggerPrice, &o.Quantity, &o.QuantityType,
		&o.FilledQuantity, &o.FilledPrice, &o.RealizedPnl, &o.Status, &o.RelatedTo,
		&o.ClosePosition, &o.CreatedAt, &o.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}
