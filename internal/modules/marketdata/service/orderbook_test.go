package service

import (
	"testing"

	"lever_bot/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lvl(price, qty string) Level {
	return Level{
		Price:    decimal.RequireFromString(price),
		Quantity: decimal.RequireFromString(qty),
	}
}

func seededBook() *Book {
	b := NewBook("BTCUSDT")
	b.ApplySnapshot(
		[]Level{lvl("101", "1"), lvl("102", "2"), lvl("103", "3")},
		[]Level{lvl("100", "1"), lvl("99", "2"), lvl("98", "3")},
		10,
	)
	return b
}

func TestBookBestLevels(t *testing.T) {
	b := seededBook()

	ask, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, "101", ask.Price.String())

	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, "100", bid.Price.String())

	second, ok := b.NthBid(1)
	require.True(t, ok)
	assert.Equal(t, "99", second.Price.String())

	_, ok = b.NthAsk(3)
	assert.False(t, ok)
}

func TestBookDiffUpsertAndDelete(t *testing.T) {
	b := seededBook()

	b.ApplyDiff(DiffEvent{
		FirstUpdateID: 11,
		FinalUpdateID: 12,
		Asks:          []Level{lvl("101", "0"), lvl("101.5", "4")},
		Bids:          []Level{lvl("100", "9")},
	})

	ask, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, "101.5", ask.Price.String())

	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, "9", bid.Quantity.String())
	assert.EqualValues(t, 12, b.LastUpdateID())
}

func TestBookStaleDiffIsNoop(t *testing.T) {
	b := seededBook()

	// updateId не новее текущего — идемпотентный no-op
	b.ApplyDiff(DiffEvent{FinalUpdateID: 10, Asks: []Level{lvl("50", "1")}})
	b.ApplyDiff(DiffEvent{FinalUpdateID: 7, Bids: []Level{lvl("100", "0")}})

	ask, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, "101", ask.Price.String())

	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, "100", bid.Price.String())
	assert.EqualValues(t, 10, b.LastUpdateID())
}

func TestBookBuffersDiffsUntilSnapshot(t *testing.T) {
	b := NewBook("BTCUSDT")

	// дифы до снапшота копятся, вид пустой
	b.ApplyDiff(DiffEvent{FinalUpdateID: 14, Asks: []Level{lvl("101", "0")}})
	b.ApplyDiff(DiffEvent{FinalUpdateID: 12, Asks: []Level{lvl("101", "5")}})
	b.ApplyDiff(DiffEvent{FinalUpdateID: 8, Asks: []Level{lvl("90", "1")}})
	_, ok := b.BestAsk()
	require.False(t, ok)

	// снапшот проигрывает буфер по возрастанию updateId: stale-диф (8)
	// отбрасывается, 12 ставит уровень, 14 его удаляет
	b.ApplySnapshot([]Level{lvl("102", "1")}, []Level{lvl("100", "1")}, 10)

	ask, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, "102", ask.Price.String())
	assert.EqualValues(t, 14, b.LastUpdateID())
}

func TestBookBufferingTurnsOffPermanently(t *testing.T) {
	b := seededBook()

	// после первого снапшота дифы применяются сразу, без буфера
	b.ApplyDiff(DiffEvent{FinalUpdateID: 11, Bids: []Level{lvl("100.5", "1")}})
	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, "100.5", bid.Price.String())

	// повторный снапшот заменяет вид целиком
	b.ApplySnapshot([]Level{lvl("200", "1")}, []Level{lvl("199", "1")}, 20)
	bid, ok = b.BestBid()
	require.True(t, ok)
	assert.Equal(t, "199", bid.Price.String())
}

func TestBookEntryPrice(t *testing.T) {
	b := seededBook()

	long, ok := b.EntryPrice(models.PositionLong, 1)
	require.True(t, ok)
	assert.Equal(t, "99", long.String())

	short, ok := b.EntryPrice(models.PositionShort, 0)
	require.True(t, ok)
	assert.Equal(t, "101", short.String())

	_, ok = b.EntryPrice(models.PositionLong, 10)
	assert.False(t, ok)
}
