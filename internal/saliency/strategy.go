// Package saliency picks one dialogue fragment out of a scored candidate set.
package saliency

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dotcommander/parley/internal/domain"
)

// Candidate is a fragment paired with its score. Negative scores are invalid.
type Candidate struct {
	Fragment *domain.DialogueFragment
	Score    float64
}

// Strategy defines a selection policy.
type Strategy interface {
	// Name returns the strategy identifier.
	Name() string

	// Select returns the chosen fragment, or nil when no candidate has a
	// non-negative score.
	Select(candidates []Candidate, sel *SelectionContext) *domain.DialogueFragment

	// MarksUsage reports whether Select records its pick in sel.
	MarksUsage() bool
}

const (
	NameHighestScore   = "highest_score"
	NameWeightedRandom = "weighted_random"
	NameLeastRecent    = "least_recent"
)

func valid(candidates []Candidate) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Fragment != nil && c.Score >= 0 {
			out = append(out, c)
		}
	}
	return out
}

// HighestScore deterministically picks the best valid candidate; ties go to
// the earliest.
type HighestScore struct{}

func (HighestScore) Name() string     { return NameHighestScore }
func (HighestScore) MarksUsage() bool { return false }

func (HighestScore) Select(candidates []Candidate, _ *SelectionContext) *domain.DialogueFragment {
	var best *Candidate
	for i := range candidates {
		c := &candidates[i]
		if c.Fragment == nil || c.Score < 0 {
			continue
		}
		if best == nil || c.Score > best.Score {
			best = c
		}
	}
	if best == nil {
		return nil
	}
	return best.Fragment
}

// WeightedRandom draws proportionally to score, scaling recently used
// fragments by the recency penalty. It leaves usage tracking to the caller.
type WeightedRandom struct{}

func (WeightedRandom) Name() string     { return NameWeightedRandom }
func (WeightedRandom) MarksUsage() bool { return false }

func (WeightedRandom) Select(candidates []Candidate, sel *SelectionContext) *domain.DialogueFragment {
	pool := valid(candidates)
	if len(pool) == 0 {
		return nil
	}

	weights := make([]float64, len(pool))
	for i, c := range pool {
		w := c.Score
		if sel != nil && sel.IsRecent(c.Fragment.ID) {
			w *= sel.RecencyPenalty()
		}
		weights[i] = w
	}
	return weightedDraw(pool, weights, sel)
}

// LeastRecent prefers never-used fragments, then used-but-not-recent ones,
// then recent ones, drawing by score within the best non-empty tier. It marks
// its pick as used.
type LeastRecent struct{}

func (LeastRecent) Name() string     { return NameLeastRecent }
func (LeastRecent) MarksUsage() bool { return true }

func (LeastRecent) Select(candidates []Candidate, sel *SelectionContext) *domain.DialogueFragment {
	pool := valid(candidates)
	if len(pool) == 0 {
		return nil
	}

	tier := pool
	if sel != nil {
		var fresh, stale, recent []Candidate
		for _, c := range pool {
			switch {
			case sel.UseCount(c.Fragment.ID) == 0:
				fresh = append(fresh, c)
			case !sel.IsRecent(c.Fragment.ID):
				stale = append(stale, c)
			default:
				recent = append(recent, c)
			}
		}
		switch {
		case len(fresh) > 0:
			tier = fresh
		case len(stale) > 0:
			tier = stale
		default:
			tier = recent
		}
	}

	weights := make([]float64, len(tier))
	for i, c := range tier {
		weights[i] = c.Score
	}
	picked := weightedDraw(tier, weights, sel)
	if sel != nil && picked != nil {
		sel.MarkUsed(picked.ID)
	}
	return picked
}

// weightedDraw picks from pool with probability proportional to weights.
// Zero-weight entries are never drawn unless every weight is zero, in which
// case the first entry wins.
func weightedDraw(pool []Candidate, weights []float64, sel *SelectionContext) *domain.DialogueFragment {
	var total float64
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 || sel == nil {
		if total > 0 {
			return HighestScore{}.Select(pool, nil)
		}
		return pool[0].Fragment
	}

	draw := sel.Float64() * total
	var cumulative float64
	var last *domain.DialogueFragment
	for i, c := range pool {
		if weights[i] <= 0 {
			continue
		}
		cumulative += weights[i]
		last = c.Fragment
		if cumulative >= draw {
			return c.Fragment
		}
	}
	return last
}

// Registry resolves strategies by name.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry creates a registry holding the built-in strategies.
func NewRegistry() *Registry {
	r := &Registry{strategies: make(map[string]Strategy)}
	r.Register(HighestScore{})
	r.Register(WeightedRandom{})
	r.Register(LeastRecent{})
	return r
}

// Register adds or replaces a strategy.
func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.Name()] = s
}

// Get returns the named strategy.
func (r *Registry) Get(name string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("unknown saliency strategy %q", name)
	}
	return s, nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.strategies))
	for n := range r.strategies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
