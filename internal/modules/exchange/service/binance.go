package service

import (
	"context"
	"strconv"

	"lever_bot/internal/models"
	pricestore "lever_bot/internal/modules/pricestore/service"
	"lever_bot/pkg/logger"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/google/uuid"
)

const (
	futuresAPIURL     = "https://fapi.binance.com"
	futuresTestnetURL = "https://testnet.binancefuture.com"
)

// Binance — USDT-M futures, только рыночные ордера: сюда приходит уже
// принятое решение, цену выбирает рынок.
type Binance struct {
	client *futures.Client
	prices *pricestore.Store
}

func NewBinance(creds models.Credentials, prices *pricestore.Store) *Binance {
	client := futures.NewClient(creds.APIKey, creds.APISecret)
	// endpoint всегда per-instance: futures.UseTestnet — глобалка, один
	// testnet-бот перещёлкнул бы всех собранных после него
	client.BaseURL = futuresAPIURL
	if creds.Testnet {
		client.BaseURL = futuresTestnetURL
	}
	return &Binance{
		client: client,
		prices: prices,
	}
}

func (b *Binance) ExecuteOrder(ctx context.Context, bot *models.Bot, req OrderRequest) (*Result, error) {
	corr := uuid.NewString()
	res := &Result{CorrelationID: corr}

	if req.Leverage > 0 {
		_, err := b.client.NewChangeLeverageService().
			Symbol(req.Symbol).
			Leverage(req.Leverage).
			Do(ctx)
		if err != nil {
			// не фатально: плечо может быть уже выставлено
			logger.Error("binance: change leverage %s x%d: %v", req.Symbol, req.Leverage, err)
		}
	}

	side := futures.SideTypeBuy
	if req.Side == SideSell {
		side = futures.SideTypeSell
	}

	svc := b.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(side).
		Type(futures.OrderTypeMarket).
		Quantity(b.formatQuantity(bot.Exchange, req.Symbol, req.Quantity))
	if req.ReduceOnly {
		svc = svc.ReduceOnly(true)
	}

	order, err := svc.Do(ctx)
	if err != nil {
		res.Audits = append(res.Audits,
			models.NewAudit(models.AuditOrderRejected, err.Error()).
				WithCorrelation(corr).WithMeta("symbol", req.Symbol))
		return res, nil
	}

	res.Success = true
	res.FilledQuantity = parseFloat(order.ExecutedQuantity)
	res.FilledPrice = parseFloat(order.AvgPrice)
	if res.FilledQuantity == 0 {
		res.FilledQuantity = req.Quantity
	}
	if res.FilledPrice == 0 {
		if info, ok := b.prices.GetSymbolInfo(bot.Exchange, req.Symbol); ok {
			res.FilledPrice = info.LastPrice
		}
	}
	res.Audits = append(res.Audits,
		models.NewAudit(models.AuditOrderFilled, "binance order accepted").
			WithCorrelation(corr).
			WithMeta("exchange_order_id", order.OrderID).
			WithMeta("symbol", req.Symbol).
			WithMeta("qty", res.FilledQuantity))
	return res, nil
}

func (b *Binance) formatQuantity(exchange, symbol string, qty float64) string {
	prec := 8
	if info, ok := b.prices.GetSymbolInfo(exchange, symbol); ok {
		prec = info.QuantityPrecision
	}
	return strconv.FormatFloat(qty, 'f', prec, 64)
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
