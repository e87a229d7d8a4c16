package implementation

import (
	"context"

	"research-assistant-be/internal/entity"
	"research-assistant-be/internal/mapper"
	"research-assistant-be/internal/model"
	"research-assistant-be/internal/repository/contract"
	"research-assistant-be/internal/repository/specification"

	"gorm.io/gorm"
)

type PaperRankingRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.PaperMapper
}

func NewPaperRankingRepository(db *gorm.DB) contract.PaperRankingRepository {
	return &PaperRankingRepositoryImpl{
		db:     db,
		mapper: mapper.NewPaperMapper(),
	}
}

func (r *PaperRankingRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *PaperRankingRepositoryImpl) ReplaceForDate(ctx context.Context, date string, rankings []*entity.PaperRanking) error {
	models := make([]*model.PaperRanking, len(rankings))
	for i, rk := range rankings {
		models[i] = r.mapper.RankingToModel(rk)
	}
	db := r.db.WithContext(ctx)
	if err := db.Where("date = ?", date).Delete(&model.PaperRanking{}).Error; err != nil {
		return err
	}
	if len(models) == 0 {
		return nil
	}
	return db.Create(&models).Error
}

func (r *PaperRankingRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.PaperRanking, error) {
	var models []*model.PaperRanking
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.PaperRanking, len(models))
	for i, m := range models {
		entities[i] = r.mapper.RankingToEntity(m)
	}
	return entities, nil
}

func (r *PaperRankingRepositoryImpl) RankedDates(ctx context.Context) ([]string, error) {
	var dates []string
	err := r.db.WithContext(ctx).
		Model(&model.PaperRanking{}).
		Distinct("date").
		Order("date").
		Pluck("date", &dates).Error
	if err != nil {
		return nil, err
	}
	return dates, nil
}
