package storage

import "sync"

// Memory is an in-memory domain.Repository keyed by an ID function. GetAll
// returns items in insertion order.
type Memory[T any] struct {
	mu    sync.RWMutex
	idOf  func(T) string
	items map[string]T
	order []string
}

// NewMemory creates a repository holding items.
func NewMemory[T any](idOf func(T) string, items ...T) *Memory[T] {
	m := &Memory[T]{
		idOf:  idOf,
		items: make(map[string]T, len(items)),
	}
	for _, item := range items {
		m.Put(item)
	}
	return m
}

// Put adds or replaces item. Replacing keeps the original position.
func (m *Memory[T]) Put(item T) {
	id := m.idOf(item)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		m.order = append(m.order, id)
	}
	m.items[id] = item
}

func (m *Memory[T]) GetByID(id string) (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	return item, ok
}

func (m *Memory[T]) GetAll() []T {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]T, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.items[id])
	}
	return out
}

func (m *Memory[T]) Exists(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.items[id]
	return ok
}

func (m *Memory[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
