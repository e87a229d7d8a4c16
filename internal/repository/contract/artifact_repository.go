package contract

import (
	"context"

	"research-assistant-be/internal/entity"
	"research-assistant-be/internal/repository/specification"
)

type ArtifactRepository interface {
	// Upsert writes an artifact blob, replacing any previous content for
	// the same (user, key) pair.
	Upsert(ctx context.Context, artifact *entity.Artifact) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Artifact, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Artifact, error)
}
