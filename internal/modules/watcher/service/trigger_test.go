package service

import (
	"testing"

	"lever_bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeedToTrigger(t *testing.T) {
	cases := []struct {
		name    string
		side    models.PositionType
		cond    models.ConditionType
		price   float64
		trigger float64
		want    bool
	}{
		{"immediate long", models.PositionLong, models.ConditionImmediate, 50, 100, true},
		{"immediate short", models.PositionShort, models.ConditionImmediate, 150, 100, true},

		{"increasing long above", models.PositionLong, models.ConditionIncreasing, 101, 100, true},
		{"increasing long below", models.PositionLong, models.ConditionIncreasing, 99, 100, false},
		{"increasing short below", models.PositionShort, models.ConditionIncreasing, 99, 100, true},
		{"increasing short above", models.PositionShort, models.ConditionIncreasing, 101, 100, false},

		{"decreasing long below", models.PositionLong, models.ConditionDecreasing, 99, 100, true},
		{"decreasing long above", models.PositionLong, models.ConditionDecreasing, 101, 100, false},
		{"decreasing short above", models.PositionShort, models.ConditionDecreasing, 101, 100, true},
		{"decreasing short below", models.PositionShort, models.ConditionDecreasing, 99, 100, false},

		// равенство не срабатывает никогда
		{"equality increasing long", models.PositionLong, models.ConditionIncreasing, 100, 100, false},
		{"equality decreasing long", models.PositionLong, models.ConditionDecreasing, 100, 100, false},
		{"equality increasing short", models.PositionShort, models.ConditionIncreasing, 100, 100, false},
		{"equality decreasing short", models.PositionShort, models.ConditionDecreasing, 100, 100, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NeedToTrigger(tc.side, tc.cond, tc.price, tc.trigger))
		})
	}
}

func TestTrailingActivation(t *testing.T) {
	assert.InDelta(t, 105, TrailingActivation(100, 5, models.PositionLong), 1e-9)
	assert.InDelta(t, 95, TrailingActivation(100, 5, models.PositionShort), 1e-9)
}

func trailingFixture() (*models.Order, *models.Position, *models.Bot) {
	o := &models.Order{TriggerType: models.TriggerStopLoss, TriggerPrice: 95}
	p := &models.Position{Type: models.PositionLong, EntryPrice: 100}
	b := &models.Bot{
		StopLossStrategy:       models.StopLossTrailing,
		StopLossMarginDistance: 5,
	}
	return o, p, b
}

func TestRatchetStopLossBeforeActivation(t *testing.T) {
	o, p, b := trailingFixture()

	// 104 < активации 105 — стоп стоит на месте
	got, moved := RatchetStopLoss(o, p, b, 104)
	assert.False(t, moved)
	assert.Equal(t, 95.0, got)
}

func TestRatchetStopLossMovesUp(t *testing.T) {
	o, p, b := trailingFixture()

	got, moved := RatchetStopLoss(o, p, b, 110)
	require.True(t, moved)
	assert.InDelta(t, 104.5, got, 1e-9)
}

func TestRatchetStopLossNeverMovesBack(t *testing.T) {
	o, p, b := trailingFixture()

	got, moved := RatchetStopLoss(o, p, b, 120)
	require.True(t, moved)
	o.TriggerPrice = got // 114

	// откат цены не опускает стоп
	_, moved = RatchetStopLoss(o, p, b, 110)
	assert.False(t, moved)
	assert.InDelta(t, 114, o.TriggerPrice, 1e-9)
}

func TestRatchetStopLossShort(t *testing.T) {
	o := &models.Order{TriggerType: models.TriggerStopLoss, TriggerPrice: 105}
	p := &models.Position{Type: models.PositionShort, EntryPrice: 100}
	b := &models.Bot{
		StopLossStrategy:       models.StopLossTrailing,
		StopLossMarginDistance: 5,
	}

	// шорт: активация 95, кандидат price*(1+5%)
	got, moved := RatchetStopLoss(o, p, b, 90)
	require.True(t, moved)
	assert.InDelta(t, 94.5, got, 1e-9)
	o.TriggerPrice = got

	_, moved = RatchetStopLoss(o, p, b, 96)
	assert.False(t, moved)
}

func TestRatchetStopLossFixedStrategy(t *testing.T) {
	o, p, b := trailingFixture()
	b.StopLossStrategy = models.StopLossFixed

	_, moved := RatchetStopLoss(o, p, b, 150)
	assert.False(t, moved)
}
