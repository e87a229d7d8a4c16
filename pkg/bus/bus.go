package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// SessionBus is the per-session progress channel between the orchestrator
// (single writer per session) and any number of stream subscribers.
//
// Built on watermill's in-process gochannel Pub/Sub: one topic per session,
// no replay, publish order preserved. A session stream is "open" from the
// start of a turn until the first terminal event; once closed, further
// publishes for that session are dropped silently so in-flight workers can
// finish after a client disconnect without anyone listening.
type SessionBus struct {
	pubSub *gochannel.GoChannel

	mu     sync.Mutex
	closed map[string]bool
}

func New() *SessionBus {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NewStdLogger(false, false),
	)
	return &SessionBus{
		pubSub: pubSub,
		closed: map[string]bool{},
	}
}

func topicFor(sessionID string) string {
	return "session." + sessionID
}

// OpenTurn re-arms the session stream for a new turn. Must be called before
// the first Publish of each turn; a previous terminal event leaves the
// stream closed otherwise.
func (b *SessionBus) OpenTurn(sessionID string) {
	b.mu.Lock()
	delete(b.closed, sessionID)
	b.mu.Unlock()
}

// Publish appends an event to the session's ordered log and wakes waiting
// subscribers. Publishing after the stream closed is a no-op. The first
// terminal event closes the stream.
func (b *SessionBus) Publish(sessionID string, event Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed[sessionID] {
		return nil
	}
	if event.Terminal() {
		b.closed[sessionID] = true
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	return b.pubSub.Publish(topicFor(sessionID), msg)
}

// MarkClosed drops all further publishes for the session without emitting a
// terminal event. Used when the client disconnects mid-stream.
func (b *SessionBus) MarkClosed(sessionID string) {
	b.mu.Lock()
	b.closed[sessionID] = true
	b.mu.Unlock()
}

// Subscribe returns a channel yielding events in publish order, starting
// from the moment of subscription. The channel is closed after the first
// terminal event has been yielded, or when ctx is cancelled.
func (b *SessionBus) Subscribe(ctx context.Context, sessionID string) (<-chan Event, error) {
	messages, err := b.pubSub.Subscribe(ctx, topicFor(sessionID))
	if err != nil {
		return nil, fmt.Errorf("subscribe session %s: %w", sessionID, err)
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		for msg := range messages {
			var event Event
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				// A corrupt payload on the in-process bus is a programming
				// error; skip it rather than wedging the stream.
				msg.Ack()
				continue
			}
			msg.Ack()

			select {
			case out <- event:
			case <-ctx.Done():
				return
			}

			if event.Terminal() {
				return
			}
		}
	}()

	return out, nil
}

// Close shuts the underlying pub/sub down. In-flight subscriber channels
// are closed.
func (b *SessionBus) Close() error {
	return b.pubSub.Close()
}
