package implementation

import (
	"context"
	"time"

	"research-assistant-be/internal/entity"
	"research-assistant-be/internal/mapper"
	"research-assistant-be/internal/model"
	"research-assistant-be/internal/repository/contract"
	"research-assistant-be/internal/repository/specification"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaperRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.PaperMapper
}

func NewPaperRepository(db *gorm.DB) contract.PaperRepository {
	return &PaperRepositoryImpl{
		db:     db,
		mapper: mapper.NewPaperMapper(),
	}
}

func (r *PaperRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *PaperRepositoryImpl) UpsertBulk(ctx context.Context, papers []*entity.Paper) error {
	if len(papers) == 0 {
		return nil
	}
	models := make([]*model.Paper, len(papers))
	for i, p := range papers {
		models[i] = r.mapper.ToModel(p)
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "paper_key"}, {Name: "date"}},
		UpdateAll: true,
	}).Create(&models).Error
}

func (r *PaperRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Paper, error) {
	var models []*model.Paper
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *PaperRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.Paper{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *PaperRepositoryImpl) CountByDate(ctx context.Context, daysBack int) (map[string]int64, error) {
	type row struct {
		Date  string
		Total int64
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -daysBack).Format("2006-01-02")

	var rows []row
	err := r.db.WithContext(ctx).
		Model(&model.Paper{}).
		Select("date, count(*) as total").
		Where("date >= ?", cutoff).
		Group("date").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, rw := range rows {
		counts[rw.Date] = rw.Total
	}
	return counts, nil
}
