package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ByChatSessionID filters turns by their parent session
type ByChatSessionID struct {
	ChatSessionID uuid.UUID
}

func (s ByChatSessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("chat_session_id = ?", s.ChatSessionID)
}

// BySessionKey filters sessions by the client-supplied correlation key
type BySessionKey struct {
	SessionKey string
}

func (s BySessionKey) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("session_key = ?", s.SessionKey)
}

// ByUserKey filters by the owning user's key
type ByUserKey struct {
	UserKey string
}

func (s ByUserKey) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_key = ?", s.UserKey)
}
