package stream

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"research-assistant-be/pkg/bus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	t.Run("Round trip preserves events in order", func(t *testing.T) {
		var buf bytes.Buffer
		enc := NewEncoder(&buf)

		sent := []bus.Event{
			bus.Status("Warming up"),
			bus.Tool("rank_papers started"),
			bus.Done("All done"),
		}
		for _, event := range sent {
			require.NoError(t, enc.Encode(event))
		}

		dec := NewDecoder(&buf)
		for _, want := range sent {
			got, err := dec.Decode()
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
		_, err := dec.Decode()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("Frames end with a blank line", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewEncoder(&buf).Encode(bus.Status("hi")))
		assert.True(t, strings.HasPrefix(buf.String(), "data: "))
		assert.True(t, strings.HasSuffix(buf.String(), "\n\n"))
	})

	t.Run("Transport noise is skipped", func(t *testing.T) {
		raw := ": keepalive\n" +
			"event: message\n" +
			"\n" +
			"data: {\"type\":\"status\",\"message\":\"ok\"}\n\n"
		dec := NewDecoder(strings.NewReader(raw))

		event, err := dec.Decode()
		require.NoError(t, err)
		assert.Equal(t, bus.EventStatus, event.Type)
		assert.Equal(t, "ok", event.Message)
	})

	t.Run("Malformed frame invokes callback and is skipped", func(t *testing.T) {
		raw := "data: {not json}\n\n" +
			"data: {\"type\":\"done\",\"answer\":\"fine\"}\n\n"
		dec := NewDecoder(strings.NewReader(raw))

		var badLines []string
		dec.OnMalformed(func(line string, err error) {
			badLines = append(badLines, line)
			assert.Error(t, err)
		})

		event, err := dec.Decode()
		require.NoError(t, err)
		assert.Equal(t, bus.EventDone, event.Type)
		require.Len(t, badLines, 1)
		assert.Contains(t, badLines[0], "not json")
	})

	t.Run("Partial frame at EOF is dropped", func(t *testing.T) {
		dec := NewDecoder(strings.NewReader(`data: {"type":"sta`))
		_, err := dec.Decode()
		assert.ErrorIs(t, err, io.EOF)
	})
}

func TestDecodeAll(t *testing.T) {
	t.Run("Stops at the first terminal event", func(t *testing.T) {
		var buf bytes.Buffer
		enc := NewEncoder(&buf)
		require.NoError(t, enc.Encode(bus.Status("one")))
		require.NoError(t, enc.Encode(bus.Error("boom")))
		require.NoError(t, enc.Encode(bus.Status("never read")))

		events, err := NewDecoder(&buf).DecodeAll()
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, bus.EventError, events[1].Type)
	})

	t.Run("EOF without terminal returns what was read", func(t *testing.T) {
		var buf bytes.Buffer
		enc := NewEncoder(&buf)
		require.NoError(t, enc.Encode(bus.Status("only")))

		events, err := NewDecoder(&buf).DecodeAll()
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})
}
