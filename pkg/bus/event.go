package bus

// EventType identifies the kind of a stream event.
type EventType string

const (
	// EventTool reports that a tool invocation started or finished.
	EventTool EventType = "tool"
	// EventStatus carries informational progress for the frontend.
	EventStatus EventType = "status"
	// EventDone carries the final answer and terminates the stream.
	EventDone EventType = "done"
	// EventError carries a failure message and terminates the stream.
	EventError EventType = "error"
)

// Event is a single progress/status/answer frame for one session turn.
type Event struct {
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`
	Answer  string    `json:"answer,omitempty"`
}

// Terminal reports whether the event ends the stream for the current turn.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

func Tool(message string) Event {
	return Event{Type: EventTool, Message: message}
}

func Status(message string) Event {
	return Event{Type: EventStatus, Message: message}
}

func Done(answer string) Event {
	return Event{Type: EventDone, Answer: answer}
}

func Error(message string) Event {
	return Event{Type: EventError, Message: message}
}
