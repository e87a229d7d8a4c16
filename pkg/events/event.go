package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "RANKING_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent helps embed common logic if needed,
// strictly creating valid implementations is preferred though.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Event type codes published on the external bus.
const (
	TypeRankingCompleted = "ranking.completed"
	TypePapersIngested   = "papers.ingested"
)

// RankingCompleted is emitted after a date's ranking tiers are installed.
func RankingCompleted(date string, ranked, failed int) Event {
	return BaseEvent{
		Type: TypeRankingCompleted,
		Data: map[string]interface{}{
			"date":   date,
			"ranked": ranked,
			"failed": failed,
		},
		OccurredAt: time.Now(),
	}
}

// PapersIngested is emitted after paper metadata for a date is stored.
func PapersIngested(date string, count int) Event {
	return BaseEvent{
		Type: TypePapersIngested,
		Data: map[string]interface{}{
			"date":  date,
			"count": count,
		},
		OccurredAt: time.Now(),
	}
}
