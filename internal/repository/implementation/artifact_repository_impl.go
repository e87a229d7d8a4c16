package implementation

import (
	"context"
	"errors"

	"research-assistant-be/internal/entity"
	"research-assistant-be/internal/mapper"
	"research-assistant-be/internal/model"
	"research-assistant-be/internal/repository/contract"
	"research-assistant-be/internal/repository/specification"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ArtifactRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ArtifactMapper
}

func NewArtifactRepository(db *gorm.DB) contract.ArtifactRepository {
	return &ArtifactRepositoryImpl{
		db:     db,
		mapper: mapper.NewArtifactMapper(),
	}
}

func (r *ArtifactRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ArtifactRepositoryImpl) Upsert(ctx context.Context, artifact *entity.Artifact) error {
	m := r.mapper.ToModel(artifact)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_key"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"artifact_type", "content", "updated_at"}),
	}).Create(m).Error
	if err != nil {
		return err
	}
	*artifact = *r.mapper.ToEntity(m)
	return nil
}

func (r *ArtifactRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Artifact, error) {
	var m model.Artifact
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *ArtifactRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Artifact, error) {
	var models []*model.Artifact
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.Artifact, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}
