// Package stream implements the wire encoding for session event streams:
// one JSON object per frame, carried as an SSE data line and terminated by
// a blank line, so a line-oriented transport can reassemble frames split
// across partial reads.
package stream

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"research-assistant-be/pkg/bus"
)

const framePrefix = "data: "

// Encoder writes events as wire frames.
type Encoder struct {
	w io.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes a single frame: "data: <json>\n\n".
func (e *Encoder) Encode(event bus.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if _, err := fmt.Fprintf(e.w, "%s%s\n\n", framePrefix, payload); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Decoder reads wire frames back into events. Lines without the frame
// prefix are transport noise (comments, keepalives, event-name lines) and
// are skipped. A frame that fails to parse is reported through the optional
// malformed callback and skipped; one bad frame never kills the stream.
type Decoder struct {
	r         *bufio.Reader
	malformed func(line string, err error)
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// OnMalformed installs a callback invoked for every skipped bad frame.
func (d *Decoder) OnMalformed(fn func(line string, err error)) {
	d.malformed = fn
}

// Decode returns the next event on the stream. It returns io.EOF once the
// underlying transport is exhausted.
func (d *Decoder) Decode() (bus.Event, error) {
	for {
		line, err := d.r.ReadString('\n')
		if err != nil {
			if err == io.EOF && strings.HasPrefix(line, framePrefix) {
				// Transport closed mid-frame; the partial line is dropped.
				return bus.Event{}, io.EOF
			}
			if err == io.EOF {
				return bus.Event{}, io.EOF
			}
			return bus.Event{}, fmt.Errorf("read frame: %w", err)
		}

		line = strings.TrimRight(line, "\r\n")
		if !strings.HasPrefix(line, framePrefix) {
			continue
		}

		var event bus.Event
		if err := json.Unmarshal([]byte(line[len(framePrefix):]), &event); err != nil {
			if d.malformed != nil {
				d.malformed(line, err)
			}
			continue
		}
		return event, nil
	}
}

// DecodeAll drains the stream until a terminal event or EOF, returning all
// decoded events in order.
func (d *Decoder) DecodeAll() ([]bus.Event, error) {
	var events []bus.Event
	for {
		event, err := d.Decode()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, event)
		if event.Terminal() {
			return events, nil
		}
	}
}
