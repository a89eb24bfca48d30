package service

import "sync"

// SymbolInfo — последняя/марк цена и точности инструмента.
type SymbolInfo struct {
	LastPrice         float64
	MarkPrice         float64
	PricePrecision    int
	QuantityPrecision int
}

// Store — снимок рынка по exchange+symbol, пишется стримом маркет-даты,
// читается вотчером и исполнением. Отсутствие символа — не ошибка.
type Store struct {
	mu   sync.RWMutex
	data map[string]SymbolInfo
}

func New() *Store {
	return &Store{data: make(map[string]SymbolInfo)}
}

func key(exchange, symbol string) string { return exchange + ":" + symbol }

func (s *Store) GetSymbolInfo(exchange, symbol string) (SymbolInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.data[key(exchange, symbol)]
	return info, ok
}

func (s *Store) SetLastPrice(exchange, symbol string, price float64) {
	if price <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	info := s.data[key(exchange, symbol)]
	info.LastPrice = price
	s.data[key(exchange, symbol)] = info
}

func (s *Store) SetMarkPrice(exchange, symbol string, price float64) {
	if price <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	info := s.data[key(exchange, symbol)]
	info.MarkPrice = price
	s.data[key(exchange, symbol)] = info
}

func (s *Store) SetPrecision(exchange, symbol string, pricePrec, qtyPrec int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := s.data[key(exchange, symbol)]
	info.PricePrecision = pricePrec
	info.QuantityPrecision = qtyPrec
	s.data[key(exchange, symbol)] = info
}
