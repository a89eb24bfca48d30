package service

import (
	"context"
	"sync"
	"testing"

	"lever_bot/internal/models"
	pricestore "lever_bot/internal/modules/pricestore/service"
	"lever_bot/internal/store"
	"lever_bot/internal/store/memory"
	"lever_bot/pkg/queue"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu   sync.Mutex
	msgs []queue.OrderMessage
}

func (p *capturePublisher) Publish(_ context.Context, _ string, msg queue.OrderMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *capturePublisher) published() []queue.OrderMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.OrderMessage(nil), p.msgs...)
}

type watcherFixture struct {
	positions *memory.Positions
	orders    *memory.Orders
	bots      *memory.Bots
	audits    *memory.Audits
	prices    *pricestore.Store
	publisher *capturePublisher
	watcher   *Watcher
	bot       *models.Bot
}

func newWatcherFixture(t *testing.T) *watcherFixture {
	t.Helper()

	f := &watcherFixture{
		positions: memory.NewPositions(),
		bots:      memory.NewBots(),
		audits:    memory.NewAudits(),
		prices:    pricestore.New(),
		publisher: &capturePublisher{},
	}
	f.orders = memory.NewOrders(f.positions)
	f.watcher = NewWatcher(f.positions, f.orders, f.bots, f.audits, f.prices, f.publisher, 0, "watcher-test", "binance")

	f.bot = &models.Bot{
		ID:        uuid.NewString(),
		UserID:    uuid.NewString(),
		Name:      "test-bot",
		Exchange:  "binance",
		IsEnabled: true,
		Leverage:  5,
	}
	f.bots.Put(f.bot)
	return f
}

// openPosition создаёт позицию и сразу переводит её в Open.
func (f *watcherFixture) openPosition(t *testing.T, symbol string, side models.PositionType, qty, entry float64) *models.Position {
	t.Helper()
	ctx := context.Background()

	p, err := f.positions.AddRequested(ctx, f.bot, symbol, side)
	require.NoError(t, err)
	require.NoError(t, f.positions.Expand(ctx, p, qty, entry, f.bot.Leverage))
	return p
}

func TestTickTriggersAndPublishes(t *testing.T) {
	f := newWatcherFixture(t)
	ctx := context.Background()

	p := f.openPosition(t, "BTCUSDT", models.PositionLong, 1, 100)
	o, err := f.orders.Add(ctx, p, store.NewOrderParams{
		TriggerType:   models.TriggerSell,
		ConditionType: models.ConditionIncreasing,
		TriggerPrice:  110,
		Quantity:      1,
		QuantityType:  models.QuantityFixed,
	})
	require.NoError(t, err)

	f.prices.SetLastPrice("binance", "BTCUSDT", 111)
	f.watcher.Tick(ctx)

	got, err := f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderTriggered, got.Status)

	msgs := f.publisher.published()
	require.Len(t, msgs, 1)
	assert.Equal(t, o.ID, msgs[0].OrderID)
}

func TestPaperBotTriggersOffFeedPrices(t *testing.T) {
	f := newWatcherFixture(t)
	ctx := context.Background()

	// paper своих котировок в прайс-стор не пишет — смотрим фид
	f.bot.Exchange = "paper"
	f.bots.Put(f.bot)

	p := f.openPosition(t, "BTCUSDT", models.PositionLong, 1, 100)
	o, err := f.orders.Add(ctx, p, store.NewOrderParams{
		TriggerType:   models.TriggerSell,
		ConditionType: models.ConditionImmediate,
		Quantity:      1,
	})
	require.NoError(t, err)

	f.prices.SetLastPrice("binance", "BTCUSDT", 111)
	f.watcher.Tick(ctx)

	got, err := f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderTriggered, got.Status)
	assert.Empty(t, f.audits.ByCode(models.AuditPriceUnavailable))
	require.Len(t, f.publisher.published(), 1)
}

func TestTickDoesNotFireBelowTrigger(t *testing.T) {
	f := newWatcherFixture(t)
	ctx := context.Background()

	p := f.openPosition(t, "BTCUSDT", models.PositionLong, 1, 100)
	o, err := f.orders.Add(ctx, p, store.NewOrderParams{
		TriggerType:   models.TriggerSell,
		ConditionType: models.ConditionIncreasing,
		TriggerPrice:  110,
		Quantity:      1,
	})
	require.NoError(t, err)

	// ровно на триггере — не стреляет
	f.prices.SetLastPrice("binance", "BTCUSDT", 110)
	f.watcher.Tick(ctx)

	got, err := f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderOpen, got.Status)
	assert.Empty(t, f.publisher.published())
}

func TestOrphanOrderCancelled(t *testing.T) {
	f := newWatcherFixture(t)
	ctx := context.Background()

	ghost := &models.Position{
		ID:     uuid.NewString(),
		BotID:  f.bot.ID,
		UserID: f.bot.UserID,
		Symbol: "BTCUSDT",
		Type:   models.PositionLong,
		Status: models.PositionOpen,
	}
	o, err := f.orders.Add(ctx, ghost, store.NewOrderParams{
		TriggerType:   models.TriggerSell,
		ConditionType: models.ConditionImmediate,
		Quantity:      1,
	})
	require.NoError(t, err)

	f.watcher.Tick(ctx)

	got, err := f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, got.Status)
	assert.Empty(t, f.publisher.published())
}

func TestStaleOrderCancelledWhenPositionClosed(t *testing.T) {
	f := newWatcherFixture(t)
	ctx := context.Background()

	p := f.openPosition(t, "BTCUSDT", models.PositionLong, 1, 100)
	o, err := f.orders.Add(ctx, p, store.NewOrderParams{
		TriggerType:   models.TriggerTakeProfit,
		ConditionType: models.ConditionIncreasing,
		TriggerPrice:  120,
		Quantity:      1,
	})
	require.NoError(t, err)
	require.NoError(t, f.positions.Close(ctx, p))

	f.prices.SetLastPrice("binance", "BTCUSDT", 130)
	f.watcher.Tick(ctx)

	got, err := f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, got.Status)
	assert.Empty(t, f.publisher.published())
}

func TestMissingPriceAuditsAndRetries(t *testing.T) {
	f := newWatcherFixture(t)
	ctx := context.Background()

	p := f.openPosition(t, "BTCUSDT", models.PositionLong, 1, 100)
	o, err := f.orders.Add(ctx, p, store.NewOrderParams{
		TriggerType:   models.TriggerSell,
		ConditionType: models.ConditionImmediate,
		Quantity:      1,
	})
	require.NoError(t, err)

	// цены нет — запись в журнал, ордер остаётся Open
	f.watcher.Tick(ctx)

	got, err := f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderOpen, got.Status)
	assert.NotEmpty(t, f.audits.ByCode(models.AuditPriceUnavailable))

	// цена появилась — следующий тик стреляет
	f.prices.SetLastPrice("binance", "BTCUSDT", 50)
	f.watcher.Tick(ctx)

	got, err = f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderTriggered, got.Status)
}

func TestFixedStopLossFiresOnlyBelowTrigger(t *testing.T) {
	f := newWatcherFixture(t)
	ctx := context.Background()

	p := f.openPosition(t, "BTCUSDT", models.PositionLong, 1, 100)
	o, err := f.orders.Add(ctx, p, store.NewOrderParams{
		TriggerType:   models.TriggerStopLoss,
		ConditionType: models.ConditionDecreasing,
		TriggerPrice:  90,
		Quantity:      100,
		QuantityType:  models.QuantityPercent,
		ClosePosition: true,
	})
	require.NoError(t, err)

	for _, price := range []float64{95, 92} {
		f.prices.SetLastPrice("binance", "BTCUSDT", price)
		f.watcher.Tick(ctx)

		got, err := f.orders.Get(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OrderOpen, got.Status, "price %.0f must not fire", price)
	}

	f.prices.SetLastPrice("binance", "BTCUSDT", 89)
	f.watcher.Tick(ctx)

	got, err := f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderTriggered, got.Status)
	require.Len(t, f.publisher.published(), 1)
}

func TestTriggerClaimIsExclusive(t *testing.T) {
	f := newWatcherFixture(t)
	ctx := context.Background()

	p := f.openPosition(t, "BTCUSDT", models.PositionLong, 1, 100)
	o, err := f.orders.Add(ctx, p, store.NewOrderParams{
		TriggerType:   models.TriggerSell,
		ConditionType: models.ConditionImmediate,
		Quantity:      1,
	})
	require.NoError(t, err)

	won, err := f.orders.UpdateStatusIf(ctx, o.ID, models.OrderOpen, models.OrderTriggered)
	require.NoError(t, err)
	require.True(t, won)

	// второй клеймер проигрывает
	won, err = f.orders.UpdateStatusIf(ctx, o.ID, models.OrderOpen, models.OrderTriggered)
	require.NoError(t, err)
	assert.False(t, won)
}

func TestStopLossRatchetsOnTick(t *testing.T) {
	f := newWatcherFixture(t)
	ctx := context.Background()

	f.bot.StopLossStrategy = models.StopLossTrailing
	f.bot.StopLossMarginDistance = 5
	f.bots.Put(f.bot)

	p := f.openPosition(t, "BTCUSDT", models.PositionLong, 1, 100)
	o, err := f.orders.Add(ctx, p, store.NewOrderParams{
		TriggerType:   models.TriggerStopLoss,
		ConditionType: models.ConditionDecreasing,
		TriggerPrice:  95,
		Quantity:      100,
		QuantityType:  models.QuantityPercent,
		ClosePosition: true,
	})
	require.NoError(t, err)

	f.prices.SetLastPrice("binance", "BTCUSDT", 110)
	f.watcher.Tick(ctx)

	got, err := f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderOpen, got.Status)
	assert.InDelta(t, 104.5, got.TriggerPrice, 1e-9)
	assert.NotEmpty(t, f.audits.ByCode(models.AuditTrailingStopMoved))
	assert.Empty(t, f.publisher.published())

	// цена упала под подтянутый стоп — срабатывает
	f.prices.SetLastPrice("binance", "BTCUSDT", 104)
	f.watcher.Tick(ctx)

	got, err = f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderTriggered, got.Status)
	require.Len(t, f.publisher.published(), 1)
}
