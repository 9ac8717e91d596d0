package saliency

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"sync"
)

const (
	DefaultRecencyWindow  = 3
	DefaultRecencyPenalty = 0.25
)

// Random is the uniform source strategies draw from. Float64 returns a value
// in [0, 1).
type Random interface {
	Float64() float64
}

// NewSeededRandom returns a deterministic Random for seed.
func NewSeededRandom(seed uint64) Random {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewSeed generates a high-entropy seed using crypto/rand.
func NewSeed() (uint64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// SelectionContext tracks which content was used recently so strategies can
// avoid repetition. It may outlive a single scene.
type SelectionContext struct {
	mu      sync.Mutex
	recent  []string
	next    int
	filled  int
	counts  map[string]int
	penalty float64
	random  Random
}

// SelectionOption configures a SelectionContext.
type SelectionOption func(*SelectionContext)

// WithRecencyWindow sets how many of the latest uses count as recent.
func WithRecencyWindow(n int) SelectionOption {
	return func(s *SelectionContext) {
		if n >= 0 {
			s.recent = make([]string, n)
		}
	}
}

// WithRecencyPenalty sets the weight multiplier applied to recent content.
func WithRecencyPenalty(p float64) SelectionOption {
	return func(s *SelectionContext) {
		if p >= 0 {
			s.penalty = p
		}
	}
}

// WithRandom injects the random source.
func WithRandom(r Random) SelectionOption {
	return func(s *SelectionContext) {
		if r != nil {
			s.random = r
		}
	}
}

// NewSelectionContext creates a context with the default window and penalty
// and a randomly seeded source.
func NewSelectionContext(opts ...SelectionOption) *SelectionContext {
	s := &SelectionContext{
		recent:  make([]string, DefaultRecencyWindow),
		counts:  make(map[string]int),
		penalty: DefaultRecencyPenalty,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.random == nil {
		seed, err := NewSeed()
		if err != nil {
			seed = rand.Uint64()
		}
		s.random = NewSeededRandom(seed)
	}
	return s
}

// MarkUsed records one use of id.
func (s *SelectionContext) MarkUsed(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts[id]++
	if len(s.recent) == 0 {
		return
	}
	s.recent[s.next] = id
	s.next = (s.next + 1) % len(s.recent)
	if s.filled < len(s.recent) {
		s.filled++
	}
}

// IsRecent reports whether id is among the last window uses.
func (s *SelectionContext) IsRecent(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < s.filled; i++ {
		if s.recent[i] == id {
			return true
		}
	}
	return false
}

// UseCount returns how many times id was marked used.
func (s *SelectionContext) UseCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[id]
}

// RecencyPenalty returns the multiplier applied to recent content.
func (s *SelectionContext) RecencyPenalty() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.penalty
}

// Float64 draws from the injected random source.
func (s *SelectionContext) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.random.Float64()
}

// Recent returns the recent IDs, newest first.
func (s *SelectionContext) Recent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, s.filled)
	for i := 1; i <= s.filled; i++ {
		idx := (s.next - i + len(s.recent)) % len(s.recent)
		out = append(out, s.recent[idx])
	}
	return out
}

// Reset forgets all usage history but keeps configuration.
func (s *SelectionContext) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recent = make([]string, len(s.recent))
	s.next = 0
	s.filled = 0
	s.counts = make(map[string]int)
}
