package entity

import (
	"time"

	"github.com/google/uuid"
)

// ChatSession is one long-lived conversation context. SessionKey is the
// client-supplied correlation key; creation with a known key is
// idempotent across frontend reloads.
type ChatSession struct {
	Id              uuid.UUID
	SessionKey      string
	UserKey         string
	ModelIdentifier string
	CreatedAt       time.Time
	UpdatedAt       *time.Time
	DeletedAt       *time.Time
}
