package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, events <-chan Event, n int) []Event {
	t.Helper()
	out := make([]Event, 0, n)
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case event, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, event)
		case <-timeout:
			t.Fatalf("timed out waiting for events, got %d of %d", len(out), n)
		}
	}
	return out
}

func TestSessionBus(t *testing.T) {
	t.Run("Events arrive in publish order", func(t *testing.T) {
		b := New()
		defer b.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events, err := b.Subscribe(ctx, "s1")
		require.NoError(t, err)

		b.OpenTurn("s1")
		require.NoError(t, b.Publish("s1", Status("first")))
		require.NoError(t, b.Publish("s1", Tool("second")))
		require.NoError(t, b.Publish("s1", Done("third")))

		got := collect(t, events, 3)
		assert.Equal(t, "first", got[0].Message)
		assert.Equal(t, "second", got[1].Message)
		assert.Equal(t, "third", got[2].Answer)
	})

	t.Run("Terminal event closes the subscriber channel", func(t *testing.T) {
		b := New()
		defer b.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events, err := b.Subscribe(ctx, "s2")
		require.NoError(t, err)

		b.OpenTurn("s2")
		require.NoError(t, b.Publish("s2", Done("bye")))

		got := collect(t, events, 1)
		require.Len(t, got, 1)
		assert.True(t, got[0].Terminal())

		_, open := <-events
		assert.False(t, open)
	})

	t.Run("Publish after terminal is dropped", func(t *testing.T) {
		b := New()
		defer b.Close()

		b.OpenTurn("s3")
		require.NoError(t, b.Publish("s3", Error("fatal")))

		// Dropped silently, no error and no delivery.
		require.NoError(t, b.Publish("s3", Status("too late")))

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		events, err := b.Subscribe(ctx, "s3")
		require.NoError(t, err)

		select {
		case event, ok := <-events:
			if ok {
				t.Fatalf("unexpected event after close: %+v", event)
			}
		case <-time.After(300 * time.Millisecond):
		}
	})

	t.Run("OpenTurn re-arms a closed session", func(t *testing.T) {
		b := New()
		defer b.Close()

		b.OpenTurn("s4")
		require.NoError(t, b.Publish("s4", Done("turn one")))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		events, err := b.Subscribe(ctx, "s4")
		require.NoError(t, err)

		b.OpenTurn("s4")
		require.NoError(t, b.Publish("s4", Done("turn two")))

		got := collect(t, events, 1)
		assert.Equal(t, "turn two", got[0].Answer)
	})

	t.Run("MarkClosed drops publishes without a terminal event", func(t *testing.T) {
		b := New()
		defer b.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		events, err := b.Subscribe(ctx, "s5")
		require.NoError(t, err)

		b.OpenTurn("s5")
		require.NoError(t, b.Publish("s5", Status("seen")))
		b.MarkClosed("s5")
		require.NoError(t, b.Publish("s5", Status("unseen")))

		got := collect(t, events, 1)
		assert.Equal(t, "seen", got[0].Message)

		select {
		case event, ok := <-events:
			if ok {
				t.Fatalf("unexpected event after MarkClosed: %+v", event)
			}
		case <-time.After(300 * time.Millisecond):
		}
	})

	t.Run("Sessions are isolated", func(t *testing.T) {
		b := New()
		defer b.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		eventsA, err := b.Subscribe(ctx, "a")
		require.NoError(t, err)

		b.OpenTurn("a")
		b.OpenTurn("b")
		require.NoError(t, b.Publish("b", Status("for b only")))
		require.NoError(t, b.Publish("a", Done("for a")))

		got := collect(t, eventsA, 1)
		assert.Equal(t, "for a", got[0].Answer)
	})
}

func TestEventTerminal(t *testing.T) {
	assert.False(t, Status("x").Terminal())
	assert.False(t, Tool("x").Terminal())
	assert.True(t, Done("x").Terminal())
	assert.True(t, Error("x").Terminal())
}
