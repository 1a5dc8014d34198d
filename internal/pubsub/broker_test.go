package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func receive[T any](t *testing.T, ch <-chan Event[T]) Event[T] {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		require.FailNow(t, "no event delivered")
	}
	return Event[T]{}
}

func TestBroker_EverySubscriberSeesPublishOrder(t *testing.T) {
	b := NewBroker[int]()
	t.Cleanup(b.Close)
	first := b.Subscribe(context.Background())
	second := b.Subscribe(context.Background())

	for i := range 10 {
		b.Publish(StateEvent, i)
	}

	for _, ch := range []<-chan Event[int]{first, second} {
		for i := range 10 {
			ev := receive(t, ch)
			require.Equal(t, i, ev.Payload)
			require.Equal(t, StateEvent, ev.Type)
			require.False(t, ev.Timestamp.IsZero())
		}
	}
	require.Zero(t, b.Dropped())
}

func TestBroker_FullSubscriberMissesEvents(t *testing.T) {
	b := NewBrokerWithBuffer[string](2)
	t.Cleanup(b.Close)
	slow := b.Subscribe(context.Background())

	b.Publish(NoticeEvent, "a")
	b.Publish(NoticeEvent, "b")
	b.Publish(NoticeEvent, "c")

	require.Equal(t, int64(1), b.Dropped())
	require.Equal(t, "a", receive(t, slow).Payload)
	require.Equal(t, "b", receive(t, slow).Payload)
}

func TestBroker_BufferSizeFloor(t *testing.T) {
	b := NewBrokerWithBuffer[int](0)
	t.Cleanup(b.Close)
	ch := b.Subscribe(context.Background())

	b.Publish(StateEvent, 1)
	b.Publish(StateEvent, 2)

	require.Equal(t, 1, receive(t, ch).Payload)
	require.Equal(t, int64(1), b.Dropped())
}

func TestBroker_CancelledSubscriptionIsClosed(t *testing.T) {
	b := NewBroker[int]()
	t.Cleanup(b.Close)
	ctx, cancel := context.WithCancel(context.Background())
	ch := b.Subscribe(ctx)
	require.Equal(t, 1, b.SubscriberCount())

	cancel()

	require.Eventually(t, func() bool { return b.SubscriberCount() == 0 }, time.Second, 5*time.Millisecond)
	_, ok := <-ch
	require.False(t, ok)
	b.Publish(StateEvent, 1)
	require.Zero(t, b.Dropped())
}

func TestBroker_Close(t *testing.T) {
	b := NewBroker[int]()
	ch := b.Subscribe(context.Background())

	b.Close()
	b.Close()

	_, ok := <-ch
	require.False(t, ok)
	b.Publish(ConnectionEvent, 1)

	late := b.Subscribe(context.Background())
	_, ok = <-late
	require.False(t, ok, "subscribing after close yields a closed channel")
	require.Zero(t, b.SubscriberCount())
}

func TestBroker_DeliveredPlusDroppedEqualsPublished(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		size := rapid.IntRange(1, 16).Draw(t, "size")
		n := rapid.IntRange(0, 40).Draw(t, "published")

		b := NewBrokerWithBuffer[int](size)
		defer b.Close()
		ch := b.Subscribe(context.Background())
		for i := range n {
			b.Publish(StateEvent, i)
		}

		delivered := len(ch)
		if want := min(n, size); delivered != want {
			t.Fatalf("delivered %d, want %d", delivered, want)
		}
		if got := int(b.Dropped()); delivered+got != n {
			t.Fatalf("delivered %d + dropped %d != published %d", delivered, got, n)
		}
	})
}
