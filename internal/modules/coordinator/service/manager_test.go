package service

import (
	"context"
	"testing"
	"time"

	"lever_bot/internal/models"
	exchange "lever_bot/internal/modules/exchange/service"
	"lever_bot/internal/notify"
	"lever_bot/internal/store"
	"lever_bot/internal/store/memory"
	"lever_bot/pkg/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type managerFixture struct {
	*executorFixture
	managers *memory.Managers
	bus      *queue.Memory
	manager  *Manager
	cancel   context.CancelFunc
	done     chan struct{}
}

func newManagerFixture(t *testing.T, identity string) *managerFixture {
	return newManagerFixtureEvery(t, identity, 20*time.Millisecond)
}

func newManagerFixtureEvery(t *testing.T, identity string, reconcileEvery time.Duration) *managerFixture {
	t.Helper()

	f := &managerFixture{
		executorFixture: newExecutorFixture(t),
		managers:        memory.NewManagers(),
		bus:             queue.NewMemory(),
		done:            make(chan struct{}),
	}
	f.manager = NewManager(
		identity, f.bots, f.managers, f.bus, f.executor,
		reconcileEvery, 20*time.Millisecond,
	)

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go func() {
		defer close(f.done)
		f.manager.Run(ctx)
	}()
	t.Cleanup(f.stop)
	return f
}

// own переставляет владельца бота копией: менеджер конкурентно читает
// запись стора.
func (f *managerFixture) own(managedBy string) {
	b := *f.bot
	b.ManagedBy = managedBy
	f.bot = &b
	f.bots.Put(f.bot)
}

func (f *managerFixture) stop() {
	f.cancel()
	select {
	case <-f.done:
	case <-time.After(2 * time.Second):
	}
}

func TestManagerConsumesOwnedBot(t *testing.T) {
	f := newManagerFixture(t, "mgr-a")
	ctx := context.Background()

	f.own("mgr-a")

	require.Eventually(t, func() bool {
		return len(f.manager.Running()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	p, err := f.positions.AddRequested(ctx, f.bot, "BTCUSDT", models.PositionLong)
	require.NoError(t, err)
	o := f.addTriggered(t, p, store.NewOrderParams{
		TriggerType:   models.TriggerBuy,
		ConditionType: models.ConditionImmediate,
		Quantity:      1,
	})

	require.NoError(t, f.bus.Publish(ctx, f.bot.ID, queue.OrderMessage{OrderID: o.ID}))

	require.Eventually(t, func() bool {
		got, err := f.orders.Get(ctx, o.ID)
		return err == nil && got.Status == models.OrderFilled
	}, 2*time.Second, 10*time.Millisecond)
}

func TestManagerIgnoresForeignBot(t *testing.T) {
	f := newManagerFixture(t, "mgr-a")

	f.own("mgr-b")

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, f.manager.Running())
}

func TestManagerReleasesMovedBot(t *testing.T) {
	f := newManagerFixture(t, "mgr-a")

	f.own("mgr-a")
	require.Eventually(t, func() bool {
		return len(f.manager.Running()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// бот переехал к другому менеджеру
	f.own("mgr-b")
	require.Eventually(t, func() bool {
		return len(f.manager.Running()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestManagerUnregisterBroadcast(t *testing.T) {
	// reconcile далеко — гасит именно широковещательный unregister
	f := newManagerFixtureEvery(t, "mgr-a", time.Hour)
	ctx := context.Background()

	f.own("mgr-a")
	require.Eventually(t, func() bool {
		_ = f.bus.Broadcast(ctx, queue.RegisterChannel("mgr-a"), queue.ControlMessage{BotID: f.bot.ID})
		return len(f.manager.Running()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		_ = f.bus.Broadcast(ctx, queue.ChannelUnregister, queue.ControlMessage{BotID: f.bot.ID})
		return len(f.manager.Running()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestManagerRegisterDirect(t *testing.T) {
	// reconcile далеко — подхватывает именно прямой register
	f := newManagerFixtureEvery(t, "mgr-a", time.Hour)
	ctx := context.Background()

	f.own("mgr-a")

	require.Eventually(t, func() bool {
		_ = f.bus.Broadcast(ctx, queue.RegisterChannel("mgr-a"), queue.ControlMessage{BotID: f.bot.ID})
		return len(f.manager.Running()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestManagerHeartbeat(t *testing.T) {
	f := newManagerFixture(t, "mgr-a")

	require.Eventually(t, func() bool {
		_, ok := f.managers.LastPing("mgr-a")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestManagerStopJoinsConsumers(t *testing.T) {
	f := newManagerFixture(t, "mgr-a")

	f.own("mgr-a")
	require.Eventually(t, func() bool {
		return len(f.manager.Running()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	f.cancel()
	select {
	case <-f.done:
	case <-time.After(2 * time.Second):
		t.Fatal("manager did not shut down")
	}
	assert.Empty(t, f.manager.Running())
}

var _ exchange.Capability = (*fakeCapability)(nil)
var _ notify.Notifier = (*notify.Stdout)(nil)
