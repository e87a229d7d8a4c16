package mapper

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"research-assistant-be/internal/entity"
	"research-assistant-be/internal/model"
	"research-assistant-be/pkg/bus"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

// Session Mappers

func (m *ChatMapper) ChatSessionToEntity(s *model.ChatSession) *entity.ChatSession {
	if s == nil {
		return nil
	}

	var deletedAt *time.Time
	if s.DeletedAt.Valid {
		t := s.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		updatedAt = &t
	}

	return &entity.ChatSession{
		Id:              s.Id,
		SessionKey:      s.SessionKey,
		UserKey:         s.UserKey,
		ModelIdentifier: s.ModelIdentifier,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       updatedAt,
		DeletedAt:       deletedAt,
	}
}

func (m *ChatMapper) ChatSessionToModel(s *entity.ChatSession) *model.ChatSession {
	if s == nil {
		return nil
	}

	out := &model.ChatSession{
		Id:              s.Id,
		SessionKey:      s.SessionKey,
		UserKey:         s.UserKey,
		ModelIdentifier: s.ModelIdentifier,
		CreatedAt:       s.CreatedAt,
	}
	if s.UpdatedAt != nil {
		out.UpdatedAt = *s.UpdatedAt
	}
	return out
}

// Turn Mappers

func (m *ChatMapper) ChatTurnToEntity(t *model.ChatTurn) *entity.ChatTurn {
	if t == nil {
		return nil
	}

	var events []bus.Event
	if len(t.AttachedEvents) > 0 {
		// Unreadable event logs must not hide the turn itself.
		_ = json.Unmarshal(t.AttachedEvents, &events)
	}

	return &entity.ChatTurn{
		Id:             t.Id,
		ChatSessionId:  t.ChatSessionId,
		Role:           t.Role,
		Content:        t.Content,
		AttachedEvents: events,
		CreatedAt:      t.CreatedAt,
	}
}

func (m *ChatMapper) ChatTurnToModel(t *entity.ChatTurn) *model.ChatTurn {
	if t == nil {
		return nil
	}

	var attached datatypes.JSON
	if len(t.AttachedEvents) > 0 {
		if raw, err := json.Marshal(t.AttachedEvents); err == nil {
			attached = raw
		}
	}

	return &model.ChatTurn{
		Id:             t.Id,
		ChatSessionId:  t.ChatSessionId,
		Role:           t.Role,
		Content:        t.Content,
		AttachedEvents: attached,
		CreatedAt:      t.CreatedAt,
	}
}

func (m *ChatMapper) ChatTurnsToEntities(models []*model.ChatTurn) []*entity.ChatTurn {
	entities := make([]*entity.ChatTurn, len(models))
	for i, t := range models {
		entities[i] = m.ChatTurnToEntity(t)
	}
	return entities
}
