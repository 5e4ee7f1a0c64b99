package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNext_ReceivesEvent(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := broker.Subscribe(ctx)
	broker.Publish(ChangedEvent, "tab opened")

	event, ok := Next(ctx, ch)
	require.True(t, ok)
	require.Equal(t, "tab opened", event.Payload)
	require.Equal(t, ChangedEvent, event.Type)
}

func TestNext_ContextCancelled(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := broker.Subscribe(ctx)

	cancel()
	time.Sleep(20 * time.Millisecond) // Wait for cleanup

	_, ok := Next(ctx, ch)
	require.False(t, ok, "should report false when context cancelled")
}

func TestNext_ChannelClosed(t *testing.T) {
	ch := make(chan Event[string])
	close(ch)

	_, ok := Next(context.Background(), ch)
	require.False(t, ok, "should report false when channel closed")
}

func TestContinuousListener_Next(t *testing.T) {
	broker := NewBroker[int]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listener := NewContinuousListener(ctx, broker)

	broker.Publish(LoggedEvent, 1)
	broker.Publish(ChangedEvent, 2)
	broker.Publish(RejectedEvent, 3)

	for _, want := range []struct {
		payload int
		typ     EventType
	}{{1, LoggedEvent}, {2, ChangedEvent}, {3, RejectedEvent}} {
		event, ok := listener.Next()
		require.True(t, ok)
		require.Equal(t, want.payload, event.Payload)
		require.Equal(t, want.typ, event.Type)
	}
}

func TestContinuousListener_RunStopsOnClose(t *testing.T) {
	broker := NewBroker[int]()

	listener := NewContinuousListener(context.Background(), broker)
	broker.Publish(ChangedEvent, 1)
	broker.Publish(ChangedEvent, 2)

	var got []int
	done := make(chan struct{})
	go func() {
		listener.Run(func(e Event[int]) { got = append(got, e.Payload) })
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	broker.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "Run did not return after broker close")
	}
	require.Equal(t, []int{1, 2}, got)
}
