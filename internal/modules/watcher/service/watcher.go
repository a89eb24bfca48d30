package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"lever_bot/internal/models"
	exchange "lever_bot/internal/modules/exchange/service"
	pricestore "lever_bot/internal/modules/pricestore/service"
	"lever_bot/internal/store"
	"lever_bot/pkg/logger"
	"lever_bot/pkg/queue"
)

type PriceSource interface {
	GetSymbolInfo(exchange, symbol string) (pricestore.SymbolInfo, bool)
}

// Watcher раз в тик сканирует Open-ордера пятью независимыми скан-группами
// (по TriggerType) и решает, кому стрелять. Следующий тик не начинается,
// пока не закончатся все сканы текущего.
type Watcher struct {
	positions store.Positions
	orders    store.Orders
	bots      store.Bots
	audits    store.Audits
	prices    PriceSource
	publisher queue.Publisher

	tick  time.Duration
	actor string
	feed  string // биржа-источник котировок для провайдеров без своего фида
}

func NewWatcher(
	positions store.Positions,
	orders store.Orders,
	bots store.Bots,
	audits store.Audits,
	prices PriceSource,
	publisher queue.Publisher,
	tick time.Duration,
	actor string,
	feed string,
) *Watcher {
	if tick <= 0 {
		tick = time.Second
	}
	return &Watcher{
		positions: positions,
		orders:    orders,
		bots:      bots,
		audits:    audits,
		prices:    prices,
		publisher: publisher,
		tick:      tick,
		actor:     actor,
		feed:      feed,
	}
}

// priceExchange переводит провайдера бота в ключ прайс-стора: paper своих
// котировок не пишет, он торгует по фиду из market_data.
func (w *Watcher) priceExchange(bot *models.Bot) string {
	if bot.Exchange == string(exchange.ProviderPaper) {
		return w.feed
	}
	return bot.Exchange
}

// Run блокируется до отмены ctx.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick запускает пять сканов конкурентно и ждёт их все.
func (w *Watcher) Tick(ctx context.Context) {
	var wg sync.WaitGroup
	for _, t := range models.TriggerTypes {
		wg.Add(1)
		go func(t models.TriggerType) {
			defer wg.Done()
			if err := w.scan(ctx, t); err != nil {
				// ошибка персистенса роняет скан; следующий тик повторит
				logger.Error("watcher: scan %s: %v", t, err)
			}
		}(t)
	}
	wg.Wait()
}

func (w *Watcher) scan(ctx context.Context, t models.TriggerType) error {
	orders, err := w.orders.ListOpenByTrigger(ctx, t)
	if err != nil {
		return err
	}

	for _, o := range orders {
		if err := w.evaluate(ctx, o); err != nil {
			return err
		}
	}
	return nil
}

func (w *Watcher) evaluate(ctx context.Context, o *models.Order) error {
	pos, err := w.positions.Get(ctx, o.PositionID)
	if errors.Is(err, store.ErrNotFound) {
		// позиции нет — ордер осиротел
		_, err = w.orders.UpdateStatusIf(ctx, o.ID, models.OrderOpen, models.OrderCancelled)
		return err
	}
	if err != nil {
		return err
	}

	// позиция уже закрыта чужим ордером — этот протух
	if pos.IsClosed() && !o.ClosePosition {
		won, err := w.orders.UpdateStatusIf(ctx, o.ID, models.OrderOpen, models.OrderCancelled)
		if err != nil {
			return err
		}
		if won {
			logger.Info("watcher: cancelled stale order %s (position %s closed)", o.ID, pos.ID)
		}
		return nil
	}

	bot, err := w.bots.Get(ctx, o.BotID)
	if err != nil {
		return err
	}

	feed := w.priceExchange(bot)
	info, ok := w.prices.GetSymbolInfo(feed, o.Symbol)
	if !ok || info.LastPrice <= 0 {
		// transient: цены нет — диагностика в журнал, ретрай следующим тиком
		return w.audits.Add(ctx, models.NewAudit(models.AuditPriceUnavailable,
			"no price for "+feed+":"+o.Symbol).
			WithTarget(o.ID).WithUser(o.UserID).WithActor(w.actor))
	}
	price := info.LastPrice

	if !NeedToTrigger(pos.Type, o.ConditionType, price, o.TriggerPrice) {
		if o.TriggerType == models.TriggerStopLoss {
			return w.ratchet(ctx, o, pos, bot, price)
		}
		return nil
	}

	// клейм триггера — атомарная граница: проигравший не публикует
	won, err := w.orders.UpdateStatusIf(ctx, o.ID, models.OrderOpen, models.OrderTriggered)
	if err != nil {
		return err
	}
	if !won {
		return nil
	}

	if err := w.publisher.Publish(ctx, o.BotID, queue.OrderMessage{OrderID: o.ID}); err != nil {
		return err
	}
	logger.Info("watcher: triggered %s %s %s @ %.8f", o.TriggerType, o.Symbol, o.ID, price)
	return nil
}

func (w *Watcher) ratchet(ctx context.Context, o *models.Order, pos *models.Position, bot *models.Bot, price float64) error {
	newTrigger, moved := RatchetStopLoss(o, pos, bot, price)
	if !moved {
		return nil
	}

	old := o.TriggerPrice
	o.TriggerPrice = newTrigger
	if err := w.orders.Update(ctx, o); err != nil {
		return err
	}

	return w.audits.Add(ctx, models.NewAudit(models.AuditTrailingStopMoved, "trailing stop ratcheted").
		WithTarget(o.ID).WithUser(o.UserID).WithActor(w.actor).
		WithMeta("from", old).WithMeta("to", newTrigger).WithMeta("price", price))
}
