package models

import "time"

type PositionType string

const (
	PositionLong  PositionType = "long"
	PositionShort PositionType = "short"
)

type PositionStatus string

const (
	PositionRequested PositionStatus = "requested"
	PositionOpen      PositionStatus = "open"
	PositionClosed    PositionStatus = "closed"
	PositionRejected  PositionStatus = "rejected"
)

// Position — направленная (long/short) экспозиция бота в символе.
// currentQuantity <= quantity всегда; EntryPrice фиксируется один раз при первом филле.
type Position struct {
	ID         string
	UserID     string
	BotID      string
	ExchangeID string

	Symbol string
	Type   PositionType
	Status PositionStatus

	EntryPrice         float64
	AvgEntryPrice      float64
	WeightedEntryPrice float64 // накапливается по объёму, но не участвует в расчётах (легаси)

	Quantity        float64 // total filled over the lifetime
	CurrentQuantity float64 // what is still held
	Leverage        int

	CreatedAt time.Time
	UpdatedAt time.Time
	ClosedAt  *time.Time
}

// Expand applies a fill that grows the position. On the first fill a Requested
// position becomes Open and EntryPrice is fixed; later fills never touch either.
// AvgEntryPrice is the running simple mean of fill prices (not quantity-weighted).
func (p *Position) Expand(qty, price float64, leverage int) {
	if p.Status == PositionRequested {
		p.Status = PositionOpen
		p.EntryPrice = price
	}

	if p.AvgEntryPrice == 0 {
		p.AvgEntryPrice = price
	} else {
		p.AvgEntryPrice = (p.AvgEntryPrice + price) / 2
	}

	prev := p.Quantity
	if prev+qty > 0 {
		p.WeightedEntryPrice = (p.WeightedEntryPrice*prev + price*qty) / (prev + qty)
	}

	p.Quantity += qty
	p.CurrentQuantity += qty
	if leverage > 0 {
		p.Leverage = leverage
	}
	p.UpdatedAt = time.Now()
}

// Reduce takes qty off the held amount.
func (p *Position) Reduce(qty float64) {
	p.CurrentQuantity -= qty
	if p.CurrentQuantity < 0 {
		p.CurrentQuantity = 0
	}
	p.UpdatedAt = time.Now()
}

// RealizedPnl for closing qty at exitPrice against the average entry.
func (p *Position) RealizedPnl(exitPrice, qty float64) float64 {
	if p.Type == PositionShort {
		return (p.AvgEntryPrice - exitPrice) * qty
	}
	return (exitPrice - p.AvgEntryPrice) * qty
}

func (p *Position) IsClosed() bool { return p.Status == PositionClosed }
