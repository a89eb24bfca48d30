package service

import (
	"context"
	"testing"

	"lever_bot/internal/models"
	marketdata "lever_bot/internal/modules/marketdata/service"
	pricestore "lever_bot/internal/modules/pricestore/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paperBooks(t *testing.T) *marketdata.Books {
	t.Helper()

	books := marketdata.NewBooks()
	book := books.GetOrCreate("BTCUSDT")
	book.ApplySnapshot(
		[]marketdata.Level{
			{Price: decimal.NewFromFloat(100.5), Quantity: decimal.NewFromInt(3)},
			{Price: decimal.NewFromFloat(101), Quantity: decimal.NewFromInt(1)},
		},
		[]marketdata.Level{
			{Price: decimal.NewFromFloat(100), Quantity: decimal.NewFromInt(2)},
			{Price: decimal.NewFromFloat(99.5), Quantity: decimal.NewFromInt(5)},
		},
		10,
	)
	return books
}

func TestPaperFillsFromBook(t *testing.T) {
	ctx := context.Background()
	prices := pricestore.New()
	// last price нарочно в стороне: заполнение должно идти по стакану
	prices.SetLastPrice("binance", "BTCUSDT", 42)

	p := NewPaper(prices, "binance", paperBooks(t), 0)

	res, err := p.ExecuteOrder(ctx, nil, OrderRequest{Symbol: "BTCUSDT", Side: SideBuy, Quantity: 1})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.InDelta(t, 100.5, res.FilledPrice, 1e-9) // buy бьёт по best ask

	res, err = p.ExecuteOrder(ctx, nil, OrderRequest{Symbol: "BTCUSDT", Side: SideSell, Quantity: 1})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.InDelta(t, 100, res.FilledPrice, 1e-9) // sell — по best bid
}

func TestPaperDepthOffsetPicksDeeperLevel(t *testing.T) {
	ctx := context.Background()
	prices := pricestore.New()

	p := NewPaper(prices, "binance", paperBooks(t), 1)

	res, err := p.ExecuteOrder(ctx, nil, OrderRequest{Symbol: "BTCUSDT", Side: SideBuy, Quantity: 1})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.InDelta(t, 101, res.FilledPrice, 1e-9)

	res, err = p.ExecuteOrder(ctx, nil, OrderRequest{Symbol: "BTCUSDT", Side: SideSell, Quantity: 1})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.InDelta(t, 99.5, res.FilledPrice, 1e-9)
}

func TestPaperFallsBackToLastPrice(t *testing.T) {
	ctx := context.Background()
	prices := pricestore.New()
	prices.SetLastPrice("binance", "ETHUSDT", 2500)

	// книги по символу нет
	p := NewPaper(prices, "binance", marketdata.NewBooks(), 0)

	res, err := p.ExecuteOrder(ctx, nil, OrderRequest{Symbol: "ETHUSDT", Side: SideBuy, Quantity: 2})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.InDelta(t, 2500, res.FilledPrice, 1e-9)
}

func TestPaperNoPriceRejects(t *testing.T) {
	ctx := context.Background()

	p := NewPaper(pricestore.New(), "binance", marketdata.NewBooks(), 0)

	res, err := p.ExecuteOrder(ctx, nil, OrderRequest{Symbol: "ETHUSDT", Side: SideBuy, Quantity: 1})
	require.NoError(t, err)
	assert.False(t, res.Success)
	require.Len(t, res.Audits, 1)
	assert.Equal(t, models.AuditPriceUnavailable, res.Audits[0].Code)
}
