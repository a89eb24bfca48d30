package memory

import (
	"context"
	"sync"
	"time"

	"lever_bot/internal/models"
	"lever_bot/internal/store"
)

type Bots struct {
	mu   sync.RWMutex
	data map[string]*models.Bot
}

func NewBots() *Bots {
	return &Bots{data: make(map[string]*models.Bot)}
}

func (s *Bots) Put(b *models.Bot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[b.ID] = b
}

func (s *Bots) Get(_ context.Context, id string) (*models.Bot, error) {
	if id == "" {
		return nil, store.ErrInvalidArgument
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.data[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *Bots) ListOwned(_ context.Context, managedBy string) ([]*models.Bot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Bot
	for _, b := range s.data {
		if b.IsEnabled && b.ManagedBy == managedBy {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

type Managers struct {
	mu   sync.Mutex
	data map[string]time.Time
}

func NewManagers() *Managers {
	return &Managers{data: make(map[string]time.Time)}
}

func (s *Managers) Heartbeat(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = time.Now()
	return nil
}

func (s *Managers) LastPing(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.data[name]
	return t, ok
}

type Audits struct {
	mu   sync.Mutex
	data []*models.AuditEntry
}

func NewAudits() *Audits {
	return &Audits{}
}

func (s *Audits) Add(_ context.Context, entries ...*models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append(s.data, entries...)
	return nil
}

// ByCode — выборка для ассертов в тестах.
func (s *Audits) ByCode(code models.AuditCode) []*models.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.AuditEntry
	for _, e := range s.data {
		if e.Code == code {
			out = append(out, e)
		}
	}
	return out
}
