package store

import (
	"context"
	"errors"

	"lever_bot/internal/models"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

type NewOrderParams struct {
	TriggerType   models.TriggerType
	ConditionType models.ConditionType
	TriggerPrice  float64
	Quantity      float64
	QuantityType  models.QuantityType
	ClosePosition bool
	RelatedTo     string
}

type Positions interface {
	AddRequested(ctx context.Context, bot *models.Bot, symbol string, t models.PositionType) (*models.Position, error)
	Get(ctx context.Context, id string) (*models.Position, error)
	Expand(ctx context.Context, p *models.Position, qty, price float64, leverage int) error
	Reduce(ctx context.Context, p *models.Position, qty float64) error
	Close(ctx context.Context, p *models.Position) error
	Reject(ctx context.Context, p *models.Position) error
}

type Orders interface {
	Add(ctx context.Context, p *models.Position, params NewOrderParams) (*models.Order, error)
	Get(ctx context.Context, id string) (*models.Order, error)
	Update(ctx context.Context, o *models.Order) error

	// UpdateStatusIf — условный переход from→to одним апдейтом; false, если
	// статус уже не from (гонку выиграл другой процесс).
	UpdateStatusIf(ctx context.Context, id string, from, to models.OrderStatus) (bool, error)

	ListOpenByTrigger(ctx context.Context, t models.TriggerType) ([]*models.Order, error)
	OpenStopLoss(ctx context.Context, positionID string) (*models.Order, error)
	HasTriggeredCloser(ctx context.Context, positionID, excludeOrderID string) (bool, error)

	// CancelOpen гасит все Open-ордера позиции; опционально закрывает её саму.
	CancelOpen(ctx context.Context, p *models.Position, closePosition bool) error
}

type Bots interface {
	Get(ctx context.Context, id string) (*models.Bot, error)
	ListOwned(ctx context.Context, managedBy string) ([]*models.Bot, error)
}

type Managers interface {
	Heartbeat(ctx context.Context, name string) error
}

type Audits interface {
	Add(ctx context.Context, entries ...*models.AuditEntry) error
}
