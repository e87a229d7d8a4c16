package mapper

import (
	"time"

	"research-assistant-be/internal/entity"
	"research-assistant-be/internal/model"
)

type ArtifactMapper struct{}

func NewArtifactMapper() *ArtifactMapper {
	return &ArtifactMapper{}
}

func (m *ArtifactMapper) ToEntity(a *model.Artifact) *entity.Artifact {
	if a == nil {
		return nil
	}

	var updatedAt *time.Time
	if !a.UpdatedAt.IsZero() {
		t := a.UpdatedAt
		updatedAt = &t
	}

	return &entity.Artifact{
		Id:           a.Id,
		UserKey:      a.UserKey,
		Key:          a.Key,
		ArtifactType: a.ArtifactType,
		Content:      a.Content,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    updatedAt,
	}
}

func (m *ArtifactMapper) ToModel(a *entity.Artifact) *model.Artifact {
	if a == nil {
		return nil
	}

	out := &model.Artifact{
		Id:           a.Id,
		UserKey:      a.UserKey,
		Key:          a.Key,
		ArtifactType: a.ArtifactType,
		Content:      a.Content,
		CreatedAt:    a.CreatedAt,
	}
	if a.UpdatedAt != nil {
		out.UpdatedAt = *a.UpdatedAt
	}
	return out
}
