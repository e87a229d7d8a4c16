package model

import (
	"time"

	"github.com/google/uuid"
)

type Artifact struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserKey      string    `gorm:"type:text;not null;uniqueIndex:idx_artifact_user_key"`
	Key          string    `gorm:"type:text;not null;uniqueIndex:idx_artifact_user_key"`
	ArtifactType string    `gorm:"type:text;not null"`
	Content      string    `gorm:"type:text;not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (Artifact) TableName() string {
	return "artifacts"
}
