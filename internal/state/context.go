// Package state holds the mutable, scene-scoped key/value store used by
// conditions and dialogue history.
package state

import (
	"sort"
	"strings"
	"sync"

	"github.com/dotcommander/parley/internal/domain"
)

// BeatVisit records that a beat was reached and what was said there.
type BeatVisit struct {
	BeatID        string
	FragmentID    string
	SpeakerRoleID string
	Order         int
}

// Key helpers for the mirrored beat history entries.
func BeatVisitedKey(beatID string) string  { return "beat." + beatID + ".visited" }
func BeatFragmentKey(beatID string) string { return "beat." + beatID + ".fragment" }
func BeatSpeakerKey(beatID string) string  { return "beat." + beatID + ".speaker" }

// SceneContext is a key/value store scoped to one active scene.
type SceneContext struct {
	mu     sync.RWMutex
	values map[string]domain.Value
	visits map[string]*BeatVisit
	order  []string
}

// NewSceneContext creates an empty context.
func NewSceneContext() *SceneContext {
	return &SceneContext{
		values: make(map[string]domain.Value),
		visits: make(map[string]*BeatVisit),
	}
}

// Set stores v under key. Setting an empty Value removes the key.
func (c *SceneContext) Set(key string, v domain.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v.IsZero() {
		delete(c.values, key)
		return
	}
	c.values[key] = v
}

func (c *SceneContext) SetBool(key string, b bool)     { c.Set(key, domain.Bool(b)) }
func (c *SceneContext) SetFloat(key string, f float64) { c.Set(key, domain.Float(f)) }
func (c *SceneContext) SetString(key string, s string) { c.Set(key, domain.String(s)) }

// Get returns the value under key.
func (c *SceneContext) Get(key string) (domain.Value, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.values[key]
	return v, ok
}

// GetBool returns key as a bool, or def when absent or not convertible.
func (c *SceneContext) GetBool(key string, def bool) bool {
	v, ok := c.Get(key)
	if !ok {
		return def
	}
	b, ok := v.AsBool()
	if !ok {
		return def
	}
	return b
}

// GetFloat returns key as a number, or def when absent or not numeric.
func (c *SceneContext) GetFloat(key string, def float64) float64 {
	v, ok := c.Get(key)
	if !ok {
		return def
	}
	f, ok := v.AsFloat()
	if !ok {
		return def
	}
	return f
}

// GetString returns key rendered as text, or def when absent.
func (c *SceneContext) GetString(key string, def string) string {
	v, ok := c.Get(key)
	if !ok {
		return def
	}
	return v.String()
}

// Has reports whether key is set.
func (c *SceneContext) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Remove deletes key and reports whether it existed.
func (c *SceneContext) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.values[key]
	delete(c.values, key)
	return ok
}

// KeysWithPrefix returns the sorted keys starting with prefix.
func (c *SceneContext) KeysWithPrefix(prefix string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var keys []string
	for k := range c.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Increment adds delta to the numeric value under key and returns the result.
// Missing or non-numeric values start from zero.
func (c *SceneContext) Increment(key string, delta float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := 0.0
	if v, ok := c.values[key]; ok {
		if f, ok := v.AsFloat(); ok {
			current = f
		}
	}
	next := current + delta
	c.values[key] = domain.Float(next)
	return next
}

// RecordBeatVisit marks beatID as visited. A non-empty fragmentID replaces
// the recorded fragment; an empty one keeps whatever was recorded before.
func (c *SceneContext) RecordBeatVisit(beatID, fragmentID, speakerRoleID string) {
	if beatID == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	visit, ok := c.visits[beatID]
	if !ok {
		visit = &BeatVisit{BeatID: beatID, Order: len(c.order)}
		c.visits[beatID] = visit
		c.order = append(c.order, beatID)
	}
	if fragmentID != "" {
		visit.FragmentID = fragmentID
		c.values[BeatFragmentKey(beatID)] = domain.String(fragmentID)
	}
	if speakerRoleID != "" {
		visit.SpeakerRoleID = speakerRoleID
		c.values[BeatSpeakerKey(beatID)] = domain.String(speakerRoleID)
	}
	c.values[BeatVisitedKey(beatID)] = domain.Bool(true)
}

// WasBeatVisited reports whether beatID has been recorded.
func (c *SceneContext) WasBeatVisited(beatID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.visits[beatID]
	return ok
}

// GetFragmentAtBeat returns the fragment recorded for beatID.
func (c *SceneContext) GetFragmentAtBeat(beatID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	visit, ok := c.visits[beatID]
	if !ok || visit.FragmentID == "" {
		return "", false
	}
	return visit.FragmentID, true
}

// VisitedBeats returns a copy of the visit log in first-visit order.
func (c *SceneContext) VisitedBeats() []BeatVisit {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]BeatVisit, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.visits[id])
	}
	return out
}

// Apply executes a fragment's context modifier against the store.
func (c *SceneContext) Apply(m domain.ContextModifier) {
	switch m.Op {
	case domain.ContextIncrement:
		delta := 1.0
		if v, ok := domain.ParseValue(m.Value).AsFloat(); ok {
			delta = v
		}
		c.Increment(m.Key, delta)
	case domain.ContextRemove:
		c.Remove(m.Key)
	default:
		c.Set(m.Key, domain.ParseValue(m.Value))
	}
}

// Clear drops all values and visits.
func (c *SceneContext) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.values = make(map[string]domain.Value)
	c.visits = make(map[string]*BeatVisit)
	c.order = nil
}
