// Package events provides a type-keyed, synchronous event bus. Each handler
// runs in isolation: an error or panic in one subscriber is logged and never
// prevents delivery to the others.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

var (
	ErrNilEvent      = errors.New("event cannot be nil")
	ErrNilHandler    = errors.New("handler cannot be nil")
	ErrNotSubscribed = errors.New("subscription not found")
	ErrBusStopped    = errors.New("event bus is not running")
)

// Handler processes one event of type T.
type Handler[T any] func(ctx context.Context, event T) error

// SubscriptionOptions configure how a subscription behaves.
type SubscriptionOptions struct {
	// Priority affects the order handlers are called (higher = earlier).
	// Equal priorities keep subscription order.
	Priority int

	// FilterFunc skips events it returns false for.
	FilterFunc func(event any) bool
}

// Subscription identifies a registered handler.
type Subscription struct {
	ID        string
	EventType reflect.Type
}

type subscription struct {
	Subscription
	seq     uint64
	handler func(ctx context.Context, event any) error
	options SubscriptionOptions
}

// Metrics tracks bus activity.
type Metrics struct {
	TotalPublished   int64
	TotalDelivered   int64
	TotalFailed      int64
	HandlerDurations map[string]time.Duration
	LastActivity     time.Time
}

// Bus fans events out to the handlers registered for their concrete type.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[reflect.Type][]*subscription
	seq           uint64
	running       bool
	logger        *slog.Logger

	// Stack traces of panicking handlers are sampled so a handler that
	// panics on every event does not flood the log.
	stackSample rate.Sometimes

	metricsMu sync.Mutex
	metrics   Metrics
}

// NewBus creates a running bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}

	return &Bus{
		subscriptions: make(map[reflect.Type][]*subscription),
		running:       true,
		logger:        logger.With("component", "event_bus"),
		stackSample:   rate.Sometimes{First: 3, Interval: time.Minute},
		metrics: Metrics{
			HandlerDurations: make(map[string]time.Duration),
			LastActivity:     time.Now(),
		},
	}
}

// Subscribe registers handler for events whose dynamic type is exactly T.
func Subscribe[T any](b *Bus, handler Handler[T], options ...SubscriptionOptions) (Subscription, error) {
	if handler == nil {
		return Subscription{}, ErrNilHandler
	}

	opts := SubscriptionOptions{}
	if len(options) > 0 {
		opts = options[0]
	}

	eventType := reflect.TypeFor[T]()
	wrapped := func(ctx context.Context, event any) error {
		typed, ok := event.(T)
		if !ok {
			return fmt.Errorf("event type mismatch: got %T", event)
		}
		return handler(ctx, typed)
	}

	b.mu.Lock()
	b.seq++
	sub := &subscription{
		Subscription: Subscription{ID: uuid.NewString(), EventType: eventType},
		seq:          b.seq,
		handler:      wrapped,
		options:      opts,
	}
	b.subscriptions[eventType] = append(b.subscriptions[eventType], sub)
	b.mu.Unlock()

	b.logger.Debug("Event subscription created",
		"subscription_id", sub.ID,
		"event_type", eventType.String(),
		"priority", opts.Priority,
	)

	return sub.Subscription, nil
}

// Unsubscribe removes a subscription.
func (b *Bus) Unsubscribe(sub Subscription) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscriptions[sub.EventType]
	for i, s := range subs {
		if s.ID == sub.ID {
			b.subscriptions[sub.EventType] = append(subs[:i:i], subs[i+1:]...)
			b.logger.Debug("Event subscription removed", "subscription_id", sub.ID)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotSubscribed, sub.ID)
}

// Publish delivers event synchronously to every handler registered for its
// dynamic type. Handler failures are logged and counted, never returned.
func (b *Bus) Publish(ctx context.Context, event any) error {
	if isNil(event) {
		return ErrNilEvent
	}

	b.mu.RLock()
	running := b.running
	matching := b.matching(event)
	b.mu.RUnlock()

	if !running {
		return ErrBusStopped
	}

	b.updateMetrics(func(m *Metrics) {
		m.TotalPublished++
		m.LastActivity = time.Now()
	})

	if len(matching) == 0 {
		b.logger.Debug("No subscriptions for event", "event_type", fmt.Sprintf("%T", event))
		return nil
	}

	for _, sub := range matching {
		start := time.Now()
		err := b.safeExecute(ctx, event, sub)
		duration := time.Since(start)

		if err != nil {
			b.logger.Error("Failed to deliver event to subscription",
				"event_type", fmt.Sprintf("%T", event),
				"subscription_id", sub.ID,
				"error", err,
			)
		}
		b.updateMetrics(func(m *Metrics) {
			m.HandlerDurations[sub.ID] = duration
			if err != nil {
				m.TotalFailed++
			} else {
				m.TotalDelivered++
			}
		})
	}

	return nil
}

// matching returns a priority-ordered copy of the subscriptions for event.
// Caller holds b.mu.
func (b *Bus) matching(event any) []*subscription {
	subs := b.subscriptions[reflect.TypeOf(event)]
	out := make([]*subscription, 0, len(subs))
	for _, s := range subs {
		if s.options.FilterFunc != nil && !s.options.FilterFunc(event) {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].options.Priority != out[j].options.Priority {
			return out[i].options.Priority > out[j].options.Priority
		}
		return out[i].seq < out[j].seq
	})
	return out
}

// safeExecute runs one handler with panic recovery.
func (b *Bus) safeExecute(ctx context.Context, event any, sub *subscription) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
			b.stackSample.Do(func() {
				b.logger.Error("Event handler panicked",
					"subscription_id", sub.ID,
					"panic", r,
					"stack", string(debug.Stack()),
				)
			})
		}
	}()

	return sub.handler(ctx, event)
}

// Stop rejects further publications.
func (b *Bus) Stop() {
	b.mu.Lock()
	b.running = false
	b.mu.Unlock()

	b.logger.Info("Event bus stopped")
}

// Metrics returns a copy of the bus counters.
func (b *Bus) Metrics() Metrics {
	b.metricsMu.Lock()
	defer b.metricsMu.Unlock()

	m := b.metrics
	m.HandlerDurations = make(map[string]time.Duration, len(b.metrics.HandlerDurations))
	for k, v := range b.metrics.HandlerDurations {
		m.HandlerDurations[k] = v
	}
	return m
}

// SubscriptionCount returns the number of handlers registered for T.
func SubscriptionCount[T any](b *Bus) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions[reflect.TypeFor[T]()])
}

func (b *Bus) updateMetrics(update func(*Metrics)) {
	b.metricsMu.Lock()
	defer b.metricsMu.Unlock()
	update(&b.metrics)
}

func isNil(event any) bool {
	if event == nil {
		return true
	}
	v := reflect.ValueOf(event)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}
