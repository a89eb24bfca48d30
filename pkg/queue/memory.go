package queue

import (
	"context"
	"sync"
)

// Memory — внутрипроцессная реализация для тестов и paper-режима.
type Memory struct {
	mu       sync.Mutex
	orders   map[string]chan OrderMessage
	channels map[string][]chan ControlMessage
}

func NewMemory() *Memory {
	return &Memory{
		orders:   make(map[string]chan OrderMessage),
		channels: make(map[string][]chan ControlMessage),
	}
}

func (m *Memory) botQueue(botID string) chan OrderMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.orders[botID]
	if !ok {
		ch = make(chan OrderMessage, 64)
		m.orders[botID] = ch
	}
	return ch
}

func (m *Memory) Publish(ctx context.Context, botID string, msg OrderMessage) error {
	select {
	case m.botQueue(botID) <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Memory) Consume(ctx context.Context, botID string, handler func(context.Context, OrderMessage) error) error {
	ch := m.botQueue(botID)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-ch:
			_ = handler(ctx, msg)
		}
	}
}

func (m *Memory) Broadcast(ctx context.Context, channel string, msg ControlMessage) error {
	m.mu.Lock()
	subs := append([]chan ControlMessage(nil), m.channels[channel]...)
	m.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- msg:
		default: // подписчик забит — дропаем, контрольные сообщения не durable
		}
	}
	return nil
}

func (m *Memory) Listen(ctx context.Context, channel string, handler func(context.Context, ControlMessage)) error {
	ch := make(chan ControlMessage, 16)
	m.mu.Lock()
	m.channels[channel] = append(m.channels[channel], ch)
	m.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-ch:
			handler(ctx, msg)
		}
	}
}
