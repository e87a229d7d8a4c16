package entity

import (
	"time"

	"github.com/google/uuid"
)

// Artifact is an opaque key→blob record owned by a user: synthesized
// profiles, GitHub summaries, and similar collaborator outputs.
type Artifact struct {
	Id           uuid.UUID
	UserKey      string
	Key          string
	ArtifactType string
	Content      string
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}
