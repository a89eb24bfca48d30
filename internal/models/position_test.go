package models_test

import (
	"testing"

	"lever_bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandFixesEntryOnce(t *testing.T) {
	p := &models.Position{
		Status: models.PositionRequested,
		Type:   models.PositionLong,
	}

	p.Expand(1, 100, 10)
	require.Equal(t, models.PositionOpen, p.Status)
	require.Equal(t, 100.0, p.EntryPrice)

	p.Expand(1, 110, 10)
	assert.Equal(t, models.PositionOpen, p.Status)
	assert.Equal(t, 100.0, p.EntryPrice, "entry is fixed on the first fill only")
}

func TestExpandAveragePriceIsSimpleMean(t *testing.T) {
	p := &models.Position{Status: models.PositionOpen, Type: models.PositionLong}

	p.Expand(1, 100, 10)
	p.Expand(1, 110, 10)

	assert.InDelta(t, 105.0, p.AvgEntryPrice, 1e-9)
	assert.Equal(t, 2.0, p.Quantity)
	assert.Equal(t, 2.0, p.CurrentQuantity)
}

func TestExpandWeightedPriceTracksVolume(t *testing.T) {
	p := &models.Position{Status: models.PositionOpen, Type: models.PositionLong}

	p.Expand(3, 100, 10)
	p.Expand(1, 120, 10)

	// (3*100 + 1*120) / 4 = 105, независимо от простого среднего
	assert.InDelta(t, 105.0, p.WeightedEntryPrice, 1e-9)
	assert.InDelta(t, 110.0, p.AvgEntryPrice, 1e-9)
}

func TestReduceNeverGoesNegative(t *testing.T) {
	p := &models.Position{Status: models.PositionOpen}
	p.Expand(2, 100, 5)

	p.Reduce(1)
	assert.Equal(t, 1.0, p.CurrentQuantity)
	assert.LessOrEqual(t, p.CurrentQuantity, p.Quantity)

	p.Reduce(5)
	assert.Equal(t, 0.0, p.CurrentQuantity)
}

func TestRealizedPnl(t *testing.T) {
	long := &models.Position{Status: models.PositionOpen, Type: models.PositionLong}
	long.Expand(2, 100, 5)
	assert.InDelta(t, 20.0, long.RealizedPnl(110, 2), 1e-9)

	short := &models.Position{Status: models.PositionOpen, Type: models.PositionShort}
	short.Expand(2, 100, 5)
	assert.InDelta(t, 20.0, short.RealizedPnl(90, 2), 1e-9)
}

func TestFillQuantityPercent(t *testing.T) {
	p := &models.Position{Status: models.PositionOpen}
	p.Expand(4, 100, 5)

	o := &models.Order{Quantity: 50, QuantityType: models.QuantityPercent}
	assert.InDelta(t, 2.0, o.FillQuantity(p), 1e-9)

	o = &models.Order{Quantity: 1.5, QuantityType: models.QuantityFixed}
	assert.InDelta(t, 1.5, o.FillQuantity(p), 1e-9)
}
