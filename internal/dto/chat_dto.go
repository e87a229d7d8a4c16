package dto

import (
	"time"

	"research-assistant-be/pkg/bus"
)

type CreateSessionRequest struct {
	SessionId       string `json:"session_id" validate:"required,min=1,max=128"`
	UserId          string `json:"user_id,omitempty"`
	ModelIdentifier string `json:"model_identifier,omitempty"`
}

type CreateSessionResponse struct {
	SessionId string `json:"session_id"`
	Created   bool   `json:"created"` // false when the session already existed
}

type ClearSessionResponse struct {
	SessionId string `json:"session_id"`
	Cleared   bool   `json:"cleared"`
}

type SendChatRequest struct {
	SessionId string `json:"session_id" validate:"required,min=1,max=128"`
	Query     string `json:"query" validate:"required"`
}

type ChatTurnResponse struct {
	Id             string      `json:"id"`
	Role           string      `json:"role"`
	Content        string      `json:"content"`
	AttachedEvents []bus.Event `json:"attached_events,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

type GetChatHistoryResponse struct {
	SessionId string             `json:"session_id"`
	Turns     []ChatTurnResponse `json:"turns"`
}
