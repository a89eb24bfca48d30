package service

import (
	"context"
	"sync"
	"time"

	"lever_bot/internal/store"
	"lever_bot/pkg/logger"
	"lever_bot/pkg/queue"
)

// Bus — очередь ордеров плюс контрольные каналы.
type Bus interface {
	queue.Consumer
	queue.ControlBus
}

// Manager управляет консьюмерами для разных ботов. Каждый enabled-бот с
// managedBy == identity получает ровно одну горутину-консьюмер своей
// очереди; reconcile-цикл сводит мапу к текущему владению.
type Manager struct {
	identity string
	bots     store.Bots
	managers store.Managers
	bus      Bus
	executor *Executor

	reconcileEvery time.Duration
	heartbeatEvery time.Duration

	mu        sync.Mutex
	consumers map[string]context.CancelFunc
	wg        sync.WaitGroup
}

func NewManager(
	identity string,
	bots store.Bots,
	managers store.Managers,
	bus Bus,
	executor *Executor,
	reconcileEvery, heartbeatEvery time.Duration,
) *Manager {
	if reconcileEvery <= 0 {
		reconcileEvery = 30 * time.Second
	}
	if heartbeatEvery <= 0 {
		heartbeatEvery = 5 * time.Minute
	}
	return &Manager{
		identity:       identity,
		bots:           bots,
		managers:       managers,
		bus:            bus,
		executor:       executor,
		reconcileEvery: reconcileEvery,
		heartbeatEvery: heartbeatEvery,
		consumers:      make(map[string]context.CancelFunc),
	}
}

// Run блокируется до отмены ctx. Держит четыре цикла: reconcile,
// heartbeat и два контрольных листенера (прямой register и
// широковещательный unregister).
func (m *Manager) Run(ctx context.Context) {
	logger.Info("coordinator: %s up", m.identity)

	var loops sync.WaitGroup

	loops.Add(1)
	go func() {
		defer loops.Done()
		m.heartbeatLoop(ctx)
	}()

	loops.Add(1)
	go func() {
		defer loops.Done()
		if err := m.bus.Listen(ctx, queue.RegisterChannel(m.identity), m.onRegister); err != nil && ctx.Err() == nil {
			logger.Error("coordinator: register listener: %v", err)
		}
	}()

	loops.Add(1)
	go func() {
		defer loops.Done()
		if err := m.bus.Listen(ctx, queue.ChannelUnregister, m.onUnregister); err != nil && ctx.Err() == nil {
			logger.Error("coordinator: unregister listener: %v", err)
		}
	}()

	m.reconcile(ctx)
	ticker := time.NewTicker(m.reconcileEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.stopAll()
			loops.Wait()
			m.wg.Wait()
			logger.Info("coordinator: %s down", m.identity)
			return
		case <-ticker.C:
			m.reconcile(ctx)
		}
	}
}

// reconcile сводит живые консьюмеры к ListOwned: чужих гасим, своих
// доезжаем. Переподхват после рестартов и переездов ботов.
func (m *Manager) reconcile(ctx context.Context) {
	owned, err := m.bots.ListOwned(ctx, m.identity)
	if err != nil {
		logger.Error("coordinator: reconcile: %v", err)
		return
	}

	want := make(map[string]struct{}, len(owned))
	for _, b := range owned {
		want[b.ID] = struct{}{}
		m.startConsumer(ctx, b.ID)
	}

	m.mu.Lock()
	var stale []string
	for botID := range m.consumers {
		if _, ok := want[botID]; !ok {
			stale = append(stale, botID)
		}
	}
	m.mu.Unlock()
	for _, botID := range stale {
		m.stopConsumer(botID)
	}
}

func (m *Manager) onRegister(ctx context.Context, msg queue.ControlMessage) {
	bot, err := m.bots.Get(ctx, msg.BotID)
	if err != nil {
		logger.Error("coordinator: register %s: %v", msg.BotID, err)
		return
	}
	if bot.ManagedBy != m.identity {
		return
	}
	m.startConsumer(ctx, bot.ID)
}

func (m *Manager) onUnregister(_ context.Context, msg queue.ControlMessage) {
	m.stopConsumer(msg.BotID)
}

// startConsumer стартует консьюмер очереди бота (если ещё не запущен).
func (m *Manager) startConsumer(ctx context.Context, botID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, running := m.consumers[botID]; running {
		return
	}

	cctx, cancel := context.WithCancel(ctx)
	m.consumers[botID] = cancel
	logger.Info("coordinator: consume bot %s", botID)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.bus.Consume(cctx, botID, m.executor.Handle); err != nil && cctx.Err() == nil {
			logger.Error("coordinator: consumer bot %s: %v", botID, err)
		}

		// консьюмер закончился — выпилим его из мапы
		m.mu.Lock()
		if c, ok := m.consumers[botID]; ok {
			c()
			delete(m.consumers, botID)
		}
		m.mu.Unlock()
	}()
}

func (m *Manager) stopConsumer(botID string) {
	m.mu.Lock()
	cancel, ok := m.consumers[botID]
	if ok {
		delete(m.consumers, botID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	// гасим вне мьютекса
	cancel()
	logger.Info("coordinator: released bot %s", botID)
}

func (m *Manager) stopAll() {
	m.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(m.consumers))
	for botID, cancel := range m.consumers {
		cancels = append(cancels, cancel)
		delete(m.consumers, botID)
	}
	m.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// Running — снапшот botID живых консьюмеров.
func (m *Manager) Running() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.consumers))
	for id := range m.consumers {
		ids = append(ids, id)
	}
	return ids
}

func (m *Manager) heartbeatLoop(ctx context.Context) {
	beat := func() {
		hctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := m.managers.Heartbeat(hctx, m.identity); err != nil {
			logger.Error("coordinator: heartbeat: %v", err)
		}
	}

	beat()
	ticker := time.NewTicker(m.heartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			beat()
		}
	}
}
