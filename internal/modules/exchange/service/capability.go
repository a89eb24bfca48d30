package service

import (
	"context"

	"lever_bot/internal/models"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderRequest — сгенерированная заявка на исполнение.
type OrderRequest struct {
	Symbol     string
	Side       Side
	Quantity   float64
	Leverage   int
	ReduceOnly bool
}

// Result. Success=false с заполненными Audits — нормальный отказ биржи;
// error — транспортная/программная проблема.
type Result struct {
	Success        bool
	FilledQuantity float64
	FilledPrice    float64
	CorrelationID  string
	Audits         []*models.AuditEntry
}

// Capability — то, что ядру нужно от биржи.
type Capability interface {
	ExecuteOrder(ctx context.Context, bot *models.Bot, req OrderRequest) (*Result, error)
}
