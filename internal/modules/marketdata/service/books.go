package service

import "sync"

// Books — реестр стаканов по символам. Кросс-бучных локов нет:
// каждая книга живёт своим RWMutex.
type Books struct {
	mu    sync.RWMutex
	books map[string]*Book
}

func NewBooks() *Books {
	return &Books{books: make(map[string]*Book)}
}

func (r *Books) Get(symbol string) (*Book, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.books[symbol]
	return b, ok
}

// GetOrCreate — новая книга стартует в режиме буферизации до снапшота.
func (r *Books) GetOrCreate(symbol string) *Book {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[symbol]
	if !ok {
		b = NewBook(symbol)
		r.books[symbol] = b
	}
	return b
}

func (r *Books) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.books))
	for s := range r.books {
		out = append(out, s)
	}
	return out
}
