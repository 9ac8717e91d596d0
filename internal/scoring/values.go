package scoring

import (
	"sort"
	"sync"

	"github.com/dotcommander/parley/internal/domain"
)

// Values is the extensible custom-data store carried by a scoring Context.
// Scalar entries are domain.Values; richer data goes into typed slots.
type Values struct {
	mu     sync.RWMutex
	scalar map[string]domain.Value
	slots  map[string]any
}

// NewValues creates an empty store.
func NewValues() *Values {
	return &Values{
		scalar: make(map[string]domain.Value),
		slots:  make(map[string]any),
	}
}

// Set stores a scalar value.
func (v *Values) Set(key string, val domain.Value) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.scalar[key] = val
}

// Get returns a scalar value. A nil store is empty.
func (v *Values) Get(key string) (domain.Value, bool) {
	if v == nil {
		return domain.Value{}, false
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	val, ok := v.scalar[key]
	return val, ok
}

// TagWeightKey is the scalar key holding the score weight for fragments
// tagged tag.
func TagWeightKey(tag string) string { return "tag." + tag }

// SetTagWeight adds w to the score of every fragment carrying tag.
func (v *Values) SetTagWeight(tag string, w float64) {
	v.Set(TagWeightKey(tag), domain.Float(w))
}

// TagWeight returns the numeric weight stored for tag.
func (v *Values) TagWeight(tag string) (float64, bool) {
	val, ok := v.Get(TagWeightKey(tag))
	if !ok {
		return 0, false
	}
	return val.AsFloat()
}

// Keys returns every scalar and slot key, sorted.
func (v *Values) Keys() []string {
	if v == nil {
		return nil
	}
	v.mu.RLock()
	defer v.mu.RUnlock()

	keys := make([]string, 0, len(v.scalar)+len(v.slots))
	for k := range v.scalar {
		keys = append(keys, k)
	}
	for k := range v.slots {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetTyped stores val in a typed slot.
func SetTyped[T any](v *Values, key string, val T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.slots[key] = val
}

// GetTyped returns the slot under key when it holds a T.
func GetTyped[T any](v *Values, key string) (T, bool) {
	var zero T
	if v == nil {
		return zero, false
	}
	v.mu.RLock()
	defer v.mu.RUnlock()

	raw, ok := v.slots[key]
	if !ok {
		return zero, false
	}
	typed, ok := raw.(T)
	return typed, ok
}
