package service

import (
	"context"

	"lever_bot/internal/models"
	marketdata "lever_bot/internal/modules/marketdata/service"
	pricestore "lever_bot/internal/modules/pricestore/service"

	"github.com/google/uuid"
)

// Paper исполняет по стакану: buy снимает ask-уровень с отступом depthOffset
// от топа, sell — bid-уровень. Если книги по символу нет — по последней цене
// из прайс-стора. priceSource — тег биржи, чьим фидом кормится стор
// (paper-боты торгуют по чужим ценам).
type Paper struct {
	prices      *pricestore.Store
	priceSource string
	books       *marketdata.Books
	depthOffset int
}

func NewPaper(prices *pricestore.Store, priceSource string, books *marketdata.Books, depthOffset int) *Paper {
	return &Paper{prices: prices, priceSource: priceSource, books: books, depthOffset: depthOffset}
}

func (p *Paper) ExecuteOrder(_ context.Context, _ *models.Bot, req OrderRequest) (*Result, error) {
	corr := uuid.NewString()

	price, ok := p.fillPrice(req)
	if !ok {
		return &Result{
			CorrelationID: corr,
			Audits: []*models.AuditEntry{
				models.NewAudit(models.AuditPriceUnavailable, "paper fill impossible: no price").
					WithCorrelation(corr).WithMeta("symbol", req.Symbol),
			},
		}, nil
	}

	return &Result{
		Success:        true,
		FilledQuantity: req.Quantity,
		FilledPrice:    price,
		CorrelationID:  corr,
		Audits: []*models.AuditEntry{
			models.NewAudit(models.AuditOrderFilled, "paper fill").
				WithCorrelation(corr).
				WithMeta("symbol", req.Symbol).
				WithMeta("price", price),
		},
	}, nil
}

// fillPrice: уровень стакана в приоритете, last price — фолбэк.
func (p *Paper) fillPrice(req OrderRequest) (float64, bool) {
	if p.books != nil {
		if book, ok := p.books.Get(req.Symbol); ok {
			// buy бьёт по аскам, sell — по бидам
			side := models.PositionLong
			if req.Side == SideBuy {
				side = models.PositionShort
			}
			if lvl, ok := book.EntryPrice(side, p.depthOffset); ok {
				return lvl.InexactFloat64(), true
			}
		}
	}

	info, ok := p.prices.GetSymbolInfo(p.priceSource, req.Symbol)
	if !ok || info.LastPrice <= 0 {
		return 0, false
	}
	return info.LastPrice, true
}
