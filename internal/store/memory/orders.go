package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"lever_bot/internal/models"
	"lever_bot/internal/store"

	"github.com/google/uuid"
)

type Orders struct {
	mu        sync.Mutex
	data      map[string]*models.Order
	positions *Positions
}

func NewOrders(positions *Positions) *Orders {
	return &Orders{
		data:      make(map[string]*models.Order),
		positions: positions,
	}
}

func (s *Orders) Add(_ context.Context, p *models.Position, params store.NewOrderParams) (*models.Order, error) {
	if p == nil || p.ID == "" {
		return nil, store.ErrInvalidArgument
	}

	now := time.Now()
	o := &models.Order{
		ID:            uuid.NewString(),
		PositionID:    p.ID,
		BotID:         p.BotID,
		ExchangeID:    p.ExchangeID,
		UserID:        p.UserID,
		Symbol:        p.Symbol,
		TriggerType:   params.TriggerType,
		ConditionType: params.ConditionType,
		TriggerPrice:  params.TriggerPrice,
		Quantity:      params.Quantity,
		QuantityType:  params.QuantityType,
		Status:        models.OrderOpen,
		RelatedTo:     params.RelatedTo,
		ClosePosition: params.ClosePosition,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[o.ID] = o
	return o, nil
}

func (s *Orders) Get(_ context.Context, id string) (*models.Order, error) {
	if id == "" {
		return nil, store.ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.data[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *Orders) Update(_ context.Context, o *models.Order) error {
	if o == nil || o.ID == "" {
		return store.ErrInvalidArgument
	}
	o.UpdatedAt = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[o.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *o
	s.data[o.ID] = &cp
	return nil
}

func (s *Orders) UpdateStatusIf(_ context.Context, id string, from, to models.OrderStatus) (bool, error) {
	if id == "" {
		return false, store.ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.data[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	return true, nil
}

func (s *Orders) ListOpenByTrigger(_ context.Context, t models.TriggerType) ([]*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Order
	for _, o := range s.data {
		if o.Status == models.OrderOpen && o.TriggerType == t {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Orders) OpenStopLoss(_ context.Context, positionID string) (*models.Order, error) {
	if positionID == "" {
		return nil, store.ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var found *models.Order
	for _, o := range s.data {
		if o.PositionID == positionID && o.TriggerType == models.TriggerStopLoss && o.Status == models.OrderOpen {
			if found == nil || o.CreatedAt.After(found.CreatedAt) {
				found = o
			}
		}
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	cp := *found
	return &cp, nil
}

func (s *Orders) HasTriggeredCloser(_ context.Context, positionID, excludeOrderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.data {
		if o.PositionID == positionID && o.ID != excludeOrderID &&
			o.ClosePosition && o.Status == models.OrderTriggered {
			return true, nil
		}
	}
	return false, nil
}

func (s *Orders) CancelOpen(ctx context.Context, p *models.Position, closePosition bool) error {
	if p == nil || p.ID == "" {
		return store.ErrInvalidArgument
	}

	s.mu.Lock()
	for _, o := range s.data {
		if o.PositionID == p.ID && o.Status == models.OrderOpen {
			o.Status = models.OrderCancelled
			o.UpdatedAt = time.Now()
		}
	}
	s.mu.Unlock()

	if closePosition && s.positions != nil {
		return s.positions.Close(ctx, p)
	}
	return nil
}
