package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type linePrepared struct {
	Text string
}

type sceneEnded struct {
	SceneID string
}

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus(slog.Default())
	ctx := context.Background()

	var got []string
	_, err := Subscribe(bus, func(ctx context.Context, e linePrepared) error {
		got = append(got, e.Text)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, linePrepared{Text: "hello"}))
	require.NoError(t, bus.Publish(ctx, sceneEnded{SceneID: "x"}))

	assert.Equal(t, []string{"hello"}, got)

	m := bus.Metrics()
	assert.Equal(t, int64(2), m.TotalPublished)
	assert.Equal(t, int64(1), m.TotalDelivered)
	assert.Equal(t, int64(0), m.TotalFailed)
}

func TestBus_PointerAndValueTypesAreDistinct(t *testing.T) {
	bus := NewBus(nil)
	ctx := context.Background()

	var values, pointers int
	_, err := Subscribe(bus, func(ctx context.Context, e linePrepared) error { values++; return nil })
	require.NoError(t, err)
	_, err = Subscribe(bus, func(ctx context.Context, e *linePrepared) error { pointers++; return nil })
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, &linePrepared{Text: "p"}))
	assert.Equal(t, 0, values)
	assert.Equal(t, 1, pointers)
}

func TestBus_HandlerIsolation(t *testing.T) {
	bus := NewBus(nil)
	ctx := context.Background()

	var delivered []string
	_, err := Subscribe(bus, func(ctx context.Context, e linePrepared) error {
		return errors.New("boom")
	}, SubscriptionOptions{Priority: 3})
	require.NoError(t, err)
	_, err = Subscribe(bus, func(ctx context.Context, e linePrepared) error {
		panic("handler exploded")
	}, SubscriptionOptions{Priority: 2})
	require.NoError(t, err)
	_, err = Subscribe(bus, func(ctx context.Context, e linePrepared) error {
		delivered = append(delivered, e.Text)
		return nil
	}, SubscriptionOptions{Priority: 1})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, linePrepared{Text: "still here"}))
	assert.Equal(t, []string{"still here"}, delivered)

	m := bus.Metrics()
	assert.Equal(t, int64(2), m.TotalFailed)
	assert.Equal(t, int64(1), m.TotalDelivered)
	assert.Len(t, m.HandlerDurations, 3)
}

func TestBus_PriorityAndSubscriptionOrder(t *testing.T) {
	bus := NewBus(nil)
	ctx := context.Background()

	var order []string
	add := func(name string, priority int) {
		_, err := Subscribe(bus, func(ctx context.Context, e sceneEnded) error {
			order = append(order, name)
			return nil
		}, SubscriptionOptions{Priority: priority})
		require.NoError(t, err)
	}
	add("low-first", 0)
	add("high", 10)
	add("low-second", 0)

	require.NoError(t, bus.Publish(ctx, sceneEnded{}))
	assert.Equal(t, []string{"high", "low-first", "low-second"}, order)
}

func TestBus_Filter(t *testing.T) {
	bus := NewBus(nil)
	var got []string
	_, err := Subscribe(bus, func(ctx context.Context, e sceneEnded) error {
		got = append(got, e.SceneID)
		return nil
	}, SubscriptionOptions{FilterFunc: func(event any) bool {
		return event.(sceneEnded).SceneID == "keep"
	}})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, sceneEnded{SceneID: "drop"}))
	require.NoError(t, bus.Publish(ctx, sceneEnded{SceneID: "keep"}))
	assert.Equal(t, []string{"keep"}, got)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(nil)
	calls := 0
	sub, err := Subscribe(bus, func(ctx context.Context, e sceneEnded) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, SubscriptionCount[sceneEnded](bus))

	require.NoError(t, bus.Unsubscribe(sub))
	assert.Equal(t, 0, SubscriptionCount[sceneEnded](bus))
	assert.ErrorIs(t, bus.Unsubscribe(sub), ErrNotSubscribed)

	require.NoError(t, bus.Publish(context.Background(), sceneEnded{}))
	assert.Equal(t, 0, calls)
}

func TestBus_ContractViolations(t *testing.T) {
	bus := NewBus(nil)

	_, err := Subscribe[sceneEnded](bus, nil)
	assert.ErrorIs(t, err, ErrNilHandler)

	assert.ErrorIs(t, bus.Publish(context.Background(), nil), ErrNilEvent)
	var nilPtr *linePrepared
	assert.ErrorIs(t, bus.Publish(context.Background(), nilPtr), ErrNilEvent)

	bus.Stop()
	assert.ErrorIs(t, bus.Publish(context.Background(), sceneEnded{}), ErrBusStopped)
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus(nil)
	var mu sync.Mutex
	count := 0
	_, err := Subscribe(bus, func(ctx context.Context, e linePrepared) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = bus.Publish(context.Background(), linePrepared{Text: "x"})
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, count)
	assert.Equal(t, int64(20), bus.Metrics().TotalDelivered)
}
