package entity

import (
	"time"

	"github.com/google/uuid"

	"research-assistant-be/pkg/bus"
)

// ChatTurn is one half of a request/response pair. Assistant turns carry
// the exact progress events published while producing them; the events
// are copied out of the bus at completion, never referenced live.
type ChatTurn struct {
	Id             uuid.UUID
	ChatSessionId  uuid.UUID
	Role           string
	Content        string
	AttachedEvents []bus.Event
	CreatedAt      time.Time
}
