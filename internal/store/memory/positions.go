// Package memory — сторы на мапах, та же семантика, что у pg. Используются
// в тестах и paper-режиме.
package memory

import (
	"context"
	"sync"
	"time"

	"lever_bot/internal/models"
	"lever_bot/internal/store"

	"github.com/google/uuid"
)

type Positions struct {
	mu   sync.RWMutex
	data map[string]*models.Position
}

func NewPositions() *Positions {
	return &Positions{data: make(map[string]*models.Position)}
}

func (s *Positions) AddRequested(_ context.Context, bot *models.Bot, symbol string, t models.PositionType) (*models.Position, error) {
	if bot == nil || bot.ID == "" {
		return nil, store.ErrInvalidArgument
	}

	now := time.Now()
	p := &models.Position{
		ID:         uuid.NewString(),
		UserID:     bot.UserID,
		BotID:      bot.ID,
		ExchangeID: bot.ExchangeID,
		Symbol:     symbol,
		Type:       t,
		Status:     models.PositionRequested,
		Leverage:   bot.Leverage,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[p.ID] = p
	return p, nil
}

func (s *Positions) Get(_ context.Context, id string) (*models.Position, error) {
	if id == "" {
		return nil, store.ErrInvalidArgument
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.data[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Positions) Expand(_ context.Context, p *models.Position, qty, price float64, leverage int) error {
	p.Expand(qty, price, leverage)
	return s.put(p)
}

func (s *Positions) Reduce(_ context.Context, p *models.Position, qty float64) error {
	p.Reduce(qty)
	return s.put(p)
}

func (s *Positions) Close(_ context.Context, p *models.Position) error {
	now := time.Now()
	p.Status = models.PositionClosed
	p.ClosedAt = &now
	p.UpdatedAt = now
	return s.put(p)
}

func (s *Positions) Reject(_ context.Context, p *models.Position) error {
	p.Status = models.PositionRejected
	p.UpdatedAt = time.Now()
	return s.put(p)
}

func (s *Positions) put(p *models.Position) error {
	if p == nil || p.ID == "" {
		return store.ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[p.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *p
	s.data[p.ID] = &cp
	return nil
}
