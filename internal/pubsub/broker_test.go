package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type runSummary struct {
	Source string
	Valid  bool
}

func receiveWithin[T any](t *testing.T, ch <-chan Event[T]) Event[T] {
	t.Helper()
	select {
	case event, ok := <-ch:
		require.True(t, ok, "channel closed")
		return event
	case <-time.After(time.Second):
		require.FailNow(t, "timeout waiting for event")
		return Event[T]{}
	}
}

func requireClosed[T any](t *testing.T, ch <-chan Event[T]) {
	t.Helper()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestBroker_DeliversPayloadAndTimestamp(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	broker := NewBroker[runSummary](WithClock(func() time.Time { return at }))
	defer broker.Close()

	ch := broker.Subscribe(context.Background())
	broker.Publish(ValidatedEvent, runSummary{Source: "docs", Valid: true})

	event := receiveWithin(t, ch)
	require.Equal(t, ValidatedEvent, event.Type)
	require.Equal(t, runSummary{Source: "docs", Valid: true}, event.Payload)
	require.Equal(t, at, event.Timestamp)
}

func TestBroker_EverySubscriberReceives(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	a := broker.Subscribe(context.Background())
	b := broker.Subscribe(context.Background())
	require.Equal(t, 2, broker.SubscriberCount())

	broker.Publish(CheckedEvent, "plan P1")

	require.Equal(t, "plan P1", receiveWithin(t, a).Payload)
	require.Equal(t, "plan P1", receiveWithin(t, b).Payload)
}

func TestBroker_TypeFilter(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	checked := broker.Subscribe(context.Background(), CheckedEvent)
	all := broker.Subscribe(context.Background())

	broker.Publish(ValidatedEvent, "batch")
	broker.Publish(CheckedEvent, "single")

	require.Equal(t, "single", receiveWithin(t, checked).Payload, "validated event is filtered out")
	require.Equal(t, "batch", receiveWithin(t, all).Payload)
	require.Equal(t, "single", receiveWithin(t, all).Payload)
	require.Zero(t, broker.Dropped(), "filtered events are not drops")
}

func TestBroker_FullSubscriberDropsWithoutBlocking(t *testing.T) {
	broker := NewBroker[int](WithBufferSize(2))
	defer broker.Close()

	ch := broker.Subscribe(context.Background())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			broker.Publish(CreatedEvent, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		require.FailNow(t, "publish blocked on a full subscriber")
	}

	require.Equal(t, uint64(3), broker.Dropped())
	require.Equal(t, 0, receiveWithin(t, ch).Payload)
	require.Equal(t, 1, receiveWithin(t, ch).Payload)
}

func TestBroker_ContextCancelClosesSubscription(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := broker.Subscribe(ctx)
	require.Equal(t, 1, broker.SubscriberCount())

	cancel()

	requireClosed(t, ch)
	require.Equal(t, 0, broker.SubscriberCount())
}

func TestBroker_CloseClosesSubscribersAndIsIdempotent(t *testing.T) {
	broker := NewBroker[string]()
	ch := broker.Subscribe(context.Background())

	broker.Close()
	broker.Close()

	requireClosed(t, ch)
	require.Equal(t, 0, broker.SubscriberCount())

	broker.Publish(CreatedEvent, "ignored")
	late := broker.Subscribe(context.Background())
	requireClosed(t, late)
}

func TestBroker_CancelAfterClose(t *testing.T) {
	broker := NewBroker[string]()
	ctx, cancel := context.WithCancel(context.Background())
	ch := broker.Subscribe(ctx)

	broker.Close()
	cancel()

	requireClosed(t, ch)
}

func TestReceive(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	t.Run("delivers", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		ch := broker.Subscribe(ctx)
		broker.Publish(CheckedEvent, "receipt R1")

		event, ok := Receive(ctx, ch)
		require.True(t, ok)
		require.Equal(t, "receipt R1", event.Payload)
	})

	t.Run("context cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		ch := broker.Subscribe(context.Background())
		cancel()

		_, ok := Receive(ctx, ch)
		require.False(t, ok)
	})

	t.Run("closed channel", func(t *testing.T) {
		ch := make(chan Event[string])
		close(ch)

		_, ok := Receive(context.Background(), ch)
		require.False(t, ok)
	})
}
