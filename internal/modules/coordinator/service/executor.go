package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lever_bot/internal/models"
	exchange "lever_bot/internal/modules/exchange/service"
	"lever_bot/internal/notify"
	"lever_bot/internal/store"
	"lever_bot/pkg/locker"
	"lever_bot/pkg/logger"
	"lever_bot/pkg/queue"

	"github.com/opentracing/opentracing-go"
)

// CapabilityResolver — то, что экзекьютору нужно от реестра провайдеров.
type CapabilityResolver interface {
	Resolve(bot *models.Bot) (exchange.Capability, error)
}

// Executor обрабатывает сообщения очереди бота: один триггернутый ордер за
// раз. Любой исход одного ордера (включая панику провайдера) не должен
// ронять консьюмер-цикл.
type Executor struct {
	positions store.Positions
	orders    store.Orders
	bots      store.Bots
	audits    store.Audits
	locks     locker.Locker
	registry  CapabilityResolver
	notifier  notify.Notifier

	lockTTL time.Duration
	actor   string
}

func NewExecutor(
	positions store.Positions,
	orders store.Orders,
	bots store.Bots,
	audits store.Audits,
	locks locker.Locker,
	registry CapabilityResolver,
	notifier notify.Notifier,
	lockTTL time.Duration,
	actor string,
) *Executor {
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	if notifier == nil {
		notifier = notify.NewStdout()
	}
	return &Executor{
		positions: positions,
		orders:    orders,
		bots:      bots,
		audits:    audits,
		locks:     locks,
		registry:  registry,
		notifier:  notifier,
		lockTTL:   lockTTL,
		actor:     actor,
	}
}

func (e *Executor) Handle(ctx context.Context, msg queue.OrderMessage) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "execute_order")
	defer span.Finish()
	span.SetTag("order_id", msg.OrderID)

	o, err := e.orders.Get(ctx, msg.OrderID)
	if errors.Is(err, store.ErrNotFound) {
		logger.Error("executor: order %s missing, drop", msg.OrderID)
		return nil
	}
	if err != nil {
		return err
	}

	pos, err := e.positions.Get(ctx, o.PositionID)
	if errors.Is(err, store.ErrNotFound) {
		logger.Error("executor: position %s missing for order %s, drop", o.PositionID, o.ID)
		return nil
	}
	if err != nil {
		return err
	}

	bot, err := e.bots.Get(ctx, o.BotID)
	if errors.Is(err, store.ErrNotFound) {
		logger.Error("executor: bot %s missing for order %s, drop", o.BotID, o.ID)
		return nil
	}
	if err != nil {
		return err
	}

	// ордер успели погасить между триггером и диспатчем
	if o.Status == models.OrderCancelled {
		return e.reject(ctx, o, pos, bot, models.AuditOrderCancelledSkip, "order was cancelled before dispatch")
	}

	if !bot.IsEnabled {
		return e.reject(ctx, o, pos, bot, models.AuditBotDisabled, "bot is disabled")
	}

	// позицию уже закрывает другой триггернутый ордер — этот протух
	closing, err := e.orders.HasTriggeredCloser(ctx, pos.ID, o.ID)
	if err != nil {
		return err
	}
	if closing {
		return e.reject(ctx, o, pos, bot, models.AuditStalePosition, "position is already closing")
	}

	// лок (bot, symbol) держит другое исполнение — без ретраев,
	// нужен свежий триггер
	key := locker.Key(o.BotID, o.Symbol)
	locked, err := e.locks.IsLocked(ctx, key)
	if err != nil {
		return err
	}
	if locked {
		return e.reject(ctx, o, pos, bot, models.AuditSymbolLockContention, "symbol lock held by another execution")
	}

	capability, err := e.registry.Resolve(bot)
	if err != nil {
		return e.reject(ctx, o, pos, bot, models.AuditProviderMissing, err.Error())
	}

	// полный клоуз идёт под локом с TTL; снятие гарантировано defer'ом
	if o.ClosePosition {
		ok, err := e.locks.AcquireLock(ctx, key, e.lockTTL)
		if err != nil {
			return err
		}
		if !ok {
			return e.reject(ctx, o, pos, bot, models.AuditSymbolLockContention, "symbol lock lost to another execution")
		}
		defer func() {
			if err := e.locks.ReleaseLock(ctx, key); err != nil {
				logger.Error("executor: release lock %s: %v", key, err)
			}
		}()
	}

	res, err := e.invoke(ctx, capability, bot, e.buildRequest(o, pos, bot))
	if err != nil {
		e.audit(ctx, models.NewAudit(models.AuditUnhandledException, err.Error()).
			WithTarget(o.ID).WithUser(o.UserID).WithActor(e.actor))
		e.notifier.Sendf("⚠️ unhandled error on order %s (%s %s): %v", o.ID, bot.Name, o.Symbol, err)
		return e.reject(ctx, o, pos, bot, models.AuditOrderRejected, "dispatch failed: "+err.Error())
	}

	for _, a := range res.Audits {
		a.WithCorrelation(res.CorrelationID).WithUser(o.UserID).WithActor(e.actor).WithTarget(o.ID)
	}
	e.audit(ctx, res.Audits...)
	span.SetTag("correlation_id", res.CorrelationID)

	if !res.Success {
		return e.reject(ctx, o, pos, bot, models.AuditOrderRejected, "exchange rejected order")
	}

	return e.applyFill(ctx, o, pos, bot, res)
}

// invoke изолирует панику провайдера: она становится ошибкой этого ордера.
func (e *Executor) invoke(ctx context.Context, c exchange.Capability, bot *models.Bot, req exchange.OrderRequest) (res *exchange.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during dispatch: %v", r)
		}
	}()
	return c.ExecuteOrder(ctx, bot, req)
}

func (e *Executor) buildRequest(o *models.Order, pos *models.Position, bot *models.Bot) exchange.OrderRequest {
	qty := o.FillQuantity(pos)
	if o.ClosePosition {
		qty = pos.CurrentQuantity
	}
	if qty <= 0 && o.Expands() {
		qty = o.Quantity
	}

	// long: расширение покупает, сокращение продаёт; short — зеркально
	side := exchange.SideBuy
	if o.Expands() == (pos.Type == models.PositionShort) {
		side = exchange.SideSell
	}

	return exchange.OrderRequest{
		Symbol:     o.Symbol,
		Side:       side,
		Quantity:   qty,
		Leverage:   bot.Leverage,
		ReduceOnly: !o.Expands(),
	}
}

func (e *Executor) applyFill(ctx context.Context, o *models.Order, pos *models.Position, bot *models.Bot, res *exchange.Result) error {
	o.Status = models.OrderFilled
	o.FilledQuantity = res.FilledQuantity
	o.FilledPrice = res.FilledPrice

	if o.Expands() {
		if err := e.positions.Expand(ctx, pos, res.FilledQuantity, res.FilledPrice, bot.Leverage); err != nil {
			return err
		}
	} else {
		o.RealizedPnl = pos.RealizedPnl(res.FilledPrice, res.FilledQuantity)
		if err := e.positions.Reduce(ctx, pos, res.FilledQuantity); err != nil {
			return err
		}
		if o.ClosePosition || pos.CurrentQuantity <= 0 {
			// позиция кончилась — гасим её остальные Open-ордера
			if err := e.orders.CancelOpen(ctx, pos, true); err != nil {
				return err
			}
		}
	}

	if err := e.orders.Update(ctx, o); err != nil {
		return err
	}
	logger.Info("executor: filled %s %s qty=%.8f price=%.8f", o.TriggerType, o.Symbol, o.FilledQuantity, o.FilledPrice)

	// сработавший тейк подтягивает парный стоп к предыдущей цели
	if o.TriggerType == models.TriggerTakeProfit && pos.Status == models.PositionOpen && pos.CurrentQuantity > 0 {
		return e.ratchetStopAfterTakeProfit(ctx, o, pos, bot, res.CorrelationID)
	}
	return nil
}

// ratchetStopAfterTakeProfit — фиксация профита тянет стоп вверх (long):
// новый триггер — цель предыдущего тейка из цепочки relatedTo, либо
// entry/average по настройке бота. Только в защитную сторону.
func (e *Executor) ratchetStopAfterTakeProfit(ctx context.Context, o *models.Order, pos *models.Position, bot *models.Bot, corr string) error {
	sl, err := e.orders.OpenStopLoss(ctx, pos.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	ref := 0.0
	if o.RelatedTo != "" {
		if prev, err := e.orders.Get(ctx, o.RelatedTo); err == nil {
			ref = prev.TriggerPrice
		}
	}
	if ref == 0 {
		if bot.TakeProfitBase == models.TakeProfitBaseAverage {
			ref = pos.AvgEntryPrice
		} else {
			ref = pos.EntryPrice
		}
	}

	moved := false
	if pos.Type == models.PositionShort {
		if ref < sl.TriggerPrice {
			sl.TriggerPrice = ref
			moved = true
		}
	} else if ref > sl.TriggerPrice {
		sl.TriggerPrice = ref
		moved = true
	}
	if !moved {
		return nil
	}

	if err := e.orders.Update(ctx, sl); err != nil {
		return err
	}
	e.audit(ctx, models.NewAudit(models.AuditTakeProfitRatchet, "stop loss tightened after take profit").
		WithCorrelation(corr).WithTarget(sl.ID).WithUser(o.UserID).WithActor(e.actor).
		WithMeta("to", sl.TriggerPrice).WithMeta("take_profit_order", o.ID))
	return nil
}

// reject — терминальный отказ: статусы, журнал, алерт. Если отклонился
// открывающий ордер ещё Requested-позиции — позиция уходит в Rejected,
// не побывав Open. Ошибка персистенса возвращается наверх: доставка
// at-most-once, и молча оставить ордер в Triggered — значит потерять его.
func (e *Executor) reject(ctx context.Context, o *models.Order, pos *models.Position, bot *models.Bot, code models.AuditCode, msg string) error {
	o.Status = models.OrderRejected
	persistErr := e.orders.Update(ctx, o)

	if pos != nil && pos.Status == models.PositionRequested && o.TriggerType == models.TriggerBuy {
		if err := e.positions.Reject(ctx, pos); err != nil && persistErr == nil {
			persistErr = err
		}
	}

	e.audit(ctx, models.NewAudit(code, msg).
		WithTarget(o.ID).WithUser(o.UserID).WithActor(e.actor).
		WithMeta("symbol", o.Symbol).WithMeta("trigger_type", string(o.TriggerType)))

	if bot != nil {
		e.notifier.Sendf("❌ order %s rejected (%s %s): %s", o.ID, bot.Name, o.Symbol, msg)
	}

	if persistErr != nil {
		return fmt.Errorf("persist reject %s: %w", o.ID, persistErr)
	}
	return nil
}

func (e *Executor) audit(ctx context.Context, entries ...*models.AuditEntry) {
	if len(entries) == 0 {
		return
	}
	if err := e.audits.Add(ctx, entries...); err != nil {
		logger.Error("executor: audit: %v", err)
	}
}
