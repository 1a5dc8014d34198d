package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListenCmd(t *testing.T) {
	b := NewBroker[string]()
	t.Cleanup(b.Close)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ch := b.Subscribe(ctx)

	b.Publish(NoticeEvent, "Pipeline complete")

	ev, ok := ListenCmd(ctx, ch)().(Event[string])
	require.True(t, ok)
	require.Equal(t, NoticeEvent, ev.Type)
	require.Equal(t, "Pipeline complete", ev.Payload)
}

func TestListenCmd_EndsOnCancelOrClose(t *testing.T) {
	b := NewBroker[string]()
	ctx, cancel := context.WithCancel(context.Background())
	ch := b.Subscribe(context.Background())

	cancel()
	require.Nil(t, ListenCmd(ctx, ch)())

	b.Close()
	require.Nil(t, ListenCmd(context.Background(), ch)())
}

func TestContinuousListener_ReArms(t *testing.T) {
	b := NewBroker[int]()
	t.Cleanup(b.Close)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	l := NewContinuousListener[int](ctx, b)

	b.Publish(StateEvent, 1)
	b.Publish(ConnectionEvent, 2)

	first := l.Listen()().(Event[int])
	second := l.Listen()().(Event[int])
	require.Equal(t, 1, first.Payload)
	require.Equal(t, ConnectionEvent, second.Type)
	require.Equal(t, 2, second.Payload)
}

func TestContinuousListener_Nil(t *testing.T) {
	var l *ContinuousListener[int]
	require.Nil(t, l.Listen())
}
