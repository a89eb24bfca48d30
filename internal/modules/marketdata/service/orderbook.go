package service

import (
	"sort"
	"sync"

	"lever_bot/internal/models"

	"github.com/shopspring/decimal"
)

// Level — уровень стакана.
type Level struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// DiffEvent — инкрементальное обновление стакана. Quantity == 0 удаляет уровень.
type DiffEvent struct {
	FirstUpdateID int64
	FinalUpdateID int64
	Asks          []Level
	Bids          []Level
}

const maxPendingDiffs = 1024

// Book восстанавливает консистентный bid/ask-вид символа из snapshot + diff.
// Дифы, пришедшие до первого снапшота, буферизуются; после снапшота буфер
// проигрывается по возрастанию updateId и буферизация выключается навсегда.
type Book struct {
	symbol string

	mu           sync.RWMutex
	asks         map[string]Level // key — строковая цена с биржи
	bids         map[string]Level
	lastUpdateID int64

	buffering bool
	pending   []DiffEvent
}

func NewBook(symbol string) *Book {
	return &Book{
		symbol:    symbol,
		asks:      make(map[string]Level),
		bids:      make(map[string]Level),
		buffering: true,
	}
}

func (b *Book) Symbol() string { return b.symbol }

// ApplySnapshot заменяет обе стороны целиком и проигрывает накопленный буфер.
func (b *Book) ApplySnapshot(asks, bids []Level, lastUpdateID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.asks = make(map[string]Level, len(asks))
	for _, l := range asks {
		b.asks[l.Price.String()] = l
	}
	b.bids = make(map[string]Level, len(bids))
	for _, l := range bids {
		b.bids[l.Price.String()] = l
	}
	b.lastUpdateID = lastUpdateID

	if b.buffering {
		pending := b.pending
		sort.Slice(pending, func(i, j int) bool {
			return pending[i].FinalUpdateID < pending[j].FinalUpdateID
		})
		for _, ev := range pending {
			b.applyDiffLocked(ev)
		}
		b.pending = nil
		b.buffering = false
	}
}

// ApplyDiff: stale-события (updateId <= текущего) — идемпотентный no-op.
func (b *Book) ApplyDiff(ev DiffEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.buffering {
		if len(b.pending) < maxPendingDiffs {
			b.pending = append(b.pending, ev)
		}
		return
	}
	b.applyDiffLocked(ev)
}

func (b *Book) applyDiffLocked(ev DiffEvent) {
	if ev.FinalUpdateID <= b.lastUpdateID {
		return
	}

	for _, l := range ev.Asks {
		if l.Quantity.IsZero() {
			delete(b.asks, l.Price.String())
		} else {
			b.asks[l.Price.String()] = l
		}
	}
	for _, l := range ev.Bids {
		if l.Quantity.IsZero() {
			delete(b.bids, l.Price.String())
		} else {
			b.bids[l.Price.String()] = l
		}
	}
	b.lastUpdateID = ev.FinalUpdateID
}

func (b *Book) LastUpdateID() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastUpdateID
}

// BestAsk — минимальная цена продажи.
func (b *Book) BestAsk() (Level, bool) { return b.NthAsk(0) }

// BestBid — максимальная цена покупки.
func (b *Book) BestBid() (Level, bool) { return b.NthBid(0) }

// NthAsk — n-й уровень аска (asks по возрастанию цены).
func (b *Book) NthAsk(n int) (Level, bool) {
	b.mu.RLock()
	levels := make([]Level, 0, len(b.asks))
	for _, l := range b.asks {
		levels = append(levels, l)
	}
	b.mu.RUnlock()

	sort.Slice(levels, func(i, j int) bool { return levels[i].Price.LessThan(levels[j].Price) })
	if n < 0 || n >= len(levels) {
		return Level{}, false
	}
	return levels[n], true
}

// NthBid — n-й уровень бида (bids по убыванию цены).
func (b *Book) NthBid(n int) (Level, bool) {
	b.mu.RLock()
	levels := make([]Level, 0, len(b.bids))
	for _, l := range b.bids {
		levels = append(levels, l)
	}
	b.mu.RUnlock()

	sort.Slice(levels, func(i, j int) bool { return levels[i].Price.GreaterThan(levels[j].Price) })
	if n < 0 || n >= len(levels) {
		return Level{}, false
	}
	return levels[n], true
}

// EntryPrice — уровень для лимитного входа с отступом depthOffset от топа.
// Long входит по бидам, short — по аскам.
func (b *Book) EntryPrice(side models.PositionType, depthOffset int) (decimal.Decimal, bool) {
	var l Level
	var ok bool
	if side == models.PositionShort {
		l, ok = b.NthAsk(depthOffset)
	} else {
		l, ok = b.NthBid(depthOffset)
	}
	if !ok {
		return decimal.Decimal{}, false
	}
	return l.Price, true
}
