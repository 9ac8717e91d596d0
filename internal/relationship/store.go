// Package relationship stores directional relationship values between
// characters. Values are clamped to [MinValue, MaxValue].
package relationship

import (
	"sort"
	"sync"

	"github.com/dotcommander/parley/internal/domain"
)

const (
	MinValue = 0.0
	MaxValue = 100.0
)

// Provider is the relationship contract consumed by conditions and scoring.
type Provider interface {
	domain.RelationshipReader
	SetRelationship(fromID, toID string, t domain.RelationshipType, value float64)
	ModifyRelationship(fromID, toID string, t domain.RelationshipType, delta float64) float64
}

// Key identifies one directional relationship axis.
type Key struct {
	From string
	To   string
	Type domain.RelationshipType
}

// Entry is a stored relationship value.
type Entry struct {
	Key
	Value float64
}

// Clamp limits v to [MinValue, MaxValue].
func Clamp(v float64) float64 {
	if v < MinValue {
		return MinValue
	}
	if v > MaxValue {
		return MaxValue
	}
	return v
}

// Store is an in-memory Provider. Reads run concurrently; writes take a
// single coarse lock.
type Store struct {
	mu           sync.RWMutex
	values       map[Key]float64
	defaultValue float64
}

// Option configures a Store.
type Option func(*Store)

// WithDefault sets the value reported for pairs that were never written.
func WithDefault(v float64) Option {
	return func(s *Store) {
		s.defaultValue = Clamp(v)
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{values: make(map[Key]float64)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetRelationship returns from->to for t, or the default when unset.
func (s *Store) GetRelationship(fromID, toID string, t domain.RelationshipType) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.values[Key{From: fromID, To: toID, Type: t}]; ok {
		return v
	}
	return s.defaultValue
}

// Lookup returns the stored value and whether one was ever written.
func (s *Store) Lookup(fromID, toID string, t domain.RelationshipType) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[Key{From: fromID, To: toID, Type: t}]
	return v, ok
}

// SetRelationship stores a clamped value.
func (s *Store) SetRelationship(fromID, toID string, t domain.RelationshipType, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[Key{From: fromID, To: toID, Type: t}] = Clamp(value)
}

// ModifyRelationship applies delta to the current value, clamps, stores and
// returns the result.
func (s *Store) ModifyRelationship(fromID, toID string, t domain.RelationshipType, delta float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := Key{From: fromID, To: toID, Type: t}
	current, ok := s.values[k]
	if !ok {
		current = s.defaultValue
	}
	next := Clamp(current + delta)
	s.values[k] = next
	return next
}

// Snapshot returns every stored entry sorted by from, to, type.
func (s *Store) Snapshot() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, 0, len(s.values))
	for k, v := range s.values {
		entries = append(entries, Entry{Key: k, Value: v})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].Key, entries[j].Key
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return a.Type < b.Type
	})
	return entries
}

// Reset removes every stored value.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[Key]float64)
}
