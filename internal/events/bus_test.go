// internal/events/bus_test.go
package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	bus := NewBus(zap.NewNop(), 16)
	defer bus.Shutdown(context.Background())

	received := make(chan Event, 1)
	bus.SubscribeFunc(CandidateDetected, func(_ context.Context, ev Event) error {
		received <- ev
		return nil
	})

	require.NoError(t, bus.Publish(&CandidateDetectedEvent{
		BaseEvent: NewBase(CandidateDetected),
		TokenMint: "mintA",
		Signature: "sigA",
	}))

	select {
	case ev := <-received:
		detected := ev.(*CandidateDetectedEvent)
		assert.Equal(t, "mintA", detected.TokenMint)
		assert.Equal(t, CandidateDetected, detected.Type())
		assert.False(t, detected.Timestamp().IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestPublishSkipsOtherEventTypes(t *testing.T) {
	bus := NewBus(zap.NewNop(), 16)
	defer bus.Shutdown(context.Background())

	var calls atomic.Int64
	bus.SubscribeFunc(TradeClosed, func(context.Context, Event) error {
		calls.Add(1)
		return nil
	})

	require.NoError(t, bus.PublishSync(context.Background(), &CandidateDetectedEvent{
		BaseEvent: NewBase(CandidateDetected),
	}))

	assert.Equal(t, int64(0), calls.Load())
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(zap.NewNop(), 16)
	defer bus.Shutdown(context.Background())

	var calls atomic.Int64
	sub := bus.SubscribeFunc(PoolMilestone, func(context.Context, Event) error {
		calls.Add(1)
		return nil
	})

	ev := &PoolMilestoneEvent{BaseEvent: NewBase(PoolMilestone), Milestone: 1000}
	require.NoError(t, bus.PublishSync(context.Background(), ev))
	sub.Unsubscribe()
	require.NoError(t, bus.PublishSync(context.Background(), ev))

	assert.Equal(t, int64(1), calls.Load())
}

func TestPublishSyncCollectsHandlerErrors(t *testing.T) {
	bus := NewBus(zap.NewNop(), 16)
	defer bus.Shutdown(context.Background())

	bus.SubscribeFunc(TradeClosed, func(context.Context, Event) error {
		return errors.New("handler broke")
	})

	err := bus.PublishSync(context.Background(), &TradeClosedEvent{
		BaseEvent: NewBase(TradeClosed),
	})
	assert.Error(t, err)
}

func TestShutdownIsIdempotent(t *testing.T) {
	bus := NewBus(zap.NewNop(), 16)
	require.NoError(t, bus.Shutdown(context.Background()))
	require.NoError(t, bus.Shutdown(context.Background()))
}

func TestTypedHelpersBuildCompleteEvents(t *testing.T) {
	bus := NewBus(zap.NewNop(), 16)
	defer bus.Shutdown(context.Background())

	received := make(chan Event, 1)
	bus.SubscribeFunc(CandidateRejected, func(_ context.Context, ev Event) error {
		received <- ev
		return nil
	})

	bus.EmitCandidateRejected("mintA", "token authorities not renounced", 3)

	select {
	case ev := <-received:
		rejected := ev.(*CandidateRejectedEvent)
		assert.Equal(t, "mintA", rejected.TokenMint)
		assert.Equal(t, "token authorities not renounced", rejected.Reason)
		assert.Equal(t, 3, rejected.Attempts)
		assert.False(t, rejected.Timestamp().IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestNilBusSwallowsEverything(t *testing.T) {
	var bus *Bus

	assert.NoError(t, bus.Publish(&TradeClosedEvent{BaseEvent: NewBase(TradeClosed)}))
	assert.NoError(t, bus.PublishSync(context.Background(), &TradeClosedEvent{BaseEvent: NewBase(TradeClosed)}))
	bus.EmitMonitoringStopped("mintA", "trade closed")
}
