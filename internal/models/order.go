package models

import "time"

type TriggerType string

const (
	TriggerBuy        TriggerType = "buy"
	TriggerSell       TriggerType = "sell"
	TriggerStopLoss   TriggerType = "stop_loss"
	TriggerTakeProfit TriggerType = "take_profit"
	TriggerPyramiding TriggerType = "pyramiding"
)

// TriggerTypes — порядок сканов вотчера.
var TriggerTypes = []TriggerType{
	TriggerBuy,
	TriggerSell,
	TriggerStopLoss,
	TriggerTakeProfit,
	TriggerPyramiding,
}

type ConditionType string

const (
	ConditionImmediate  ConditionType = "immediate"
	ConditionIncreasing ConditionType = "increasing"
	ConditionDecreasing ConditionType = "decreasing"
)

type OrderStatus string

const (
	OrderOpen      OrderStatus = "open"
	OrderTriggered OrderStatus = "triggered"
	OrderFilled    OrderStatus = "filled"
	OrderRejected  OrderStatus = "rejected"
	OrderCancelled OrderStatus = "cancelled"
	OrderExpired   OrderStatus = "expired"
)

type QuantityType string

const (
	QuantityFixed   QuantityType = "fixed"   // Quantity is in base units
	QuantityPercent QuantityType = "percent" // Quantity is % of CurrentQuantity
)

// Order — инструкция, порождённая правилами позиции.
// Open → Triggered → {Filled, Rejected}; Open/Triggered → Cancelled.
type Order struct {
	ID         string
	PositionID string
	BotID      string
	ExchangeID string
	UserID     string

	Symbol        string
	TriggerType   TriggerType
	ConditionType ConditionType
	TriggerPrice  float64

	Quantity     float64
	QuantityType QuantityType

	FilledQuantity float64
	FilledPrice    float64
	RealizedPnl    float64

	Status        OrderStatus
	RelatedTo     string // prior order in the same chain (trailing TP reference)
	ClosePosition bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (o *Order) IsTerminal() bool {
	switch o.Status {
	case OrderFilled, OrderRejected, OrderCancelled, OrderExpired:
		return true
	}
	return false
}

// Expands reports whether a fill of this order grows the position
// (opening buy or a pyramiding scale-in) rather than reducing it.
func (o *Order) Expands() bool {
	return o.TriggerType == TriggerBuy || o.TriggerType == TriggerPyramiding
}

// FillQuantity resolves the effective base quantity against the position.
func (o *Order) FillQuantity(p *Position) float64 {
	if o.QuantityType == QuantityPercent {
		return p.CurrentQuantity * o.Quantity / 100
	}
	return o.Quantity
}
