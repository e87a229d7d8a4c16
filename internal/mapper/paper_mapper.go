package mapper

import (
	"encoding/json"

	"research-assistant-be/internal/entity"
	"research-assistant-be/internal/model"
)

type PaperMapper struct{}

func NewPaperMapper() *PaperMapper {
	return &PaperMapper{}
}

func (m *PaperMapper) ToEntity(p *model.Paper) *entity.Paper {
	if p == nil {
		return nil
	}

	var authors []string
	if len(p.Authors) > 0 {
		_ = json.Unmarshal(p.Authors, &authors)
	}

	return &entity.Paper{
		PaperKey:    p.PaperKey,
		Date:        p.Date,
		Title:       p.Title,
		Summary:     p.Summary,
		Authors:     authors,
		PublishedAt: p.PublishedAt,
		Upvotes:     p.Upvotes,
		CreatedAt:   p.CreatedAt,
	}
}

func (m *PaperMapper) ToModel(p *entity.Paper) *model.Paper {
	if p == nil {
		return nil
	}

	authors, _ := json.Marshal(p.Authors)

	return &model.Paper{
		PaperKey:    p.PaperKey,
		Date:        p.Date,
		Title:       p.Title,
		Summary:     p.Summary,
		Authors:     authors,
		PublishedAt: p.PublishedAt,
		Upvotes:     p.Upvotes,
		CreatedAt:   p.CreatedAt,
	}
}

func (m *PaperMapper) ToEntities(models []*model.Paper) []*entity.Paper {
	entities := make([]*entity.Paper, len(models))
	for i, p := range models {
		entities[i] = m.ToEntity(p)
	}
	return entities
}

func (m *PaperMapper) RankingToEntity(r *model.PaperRanking) *entity.PaperRanking {
	if r == nil {
		return nil
	}
	return &entity.PaperRanking{
		Id:        r.Id,
		Date:      r.Date,
		PaperKey:  r.PaperKey,
		Title:     r.Title,
		Score:     r.Score,
		Reason:    r.Reason,
		Excerpt:   r.Excerpt,
		Position:  r.Position,
		CreatedAt: r.CreatedAt,
	}
}

func (m *PaperMapper) RankingToModel(r *entity.PaperRanking) *model.PaperRanking {
	if r == nil {
		return nil
	}
	return &model.PaperRanking{
		Id:        r.Id,
		Date:      r.Date,
		PaperKey:  r.PaperKey,
		Title:     r.Title,
		Score:     r.Score,
		Reason:    r.Reason,
		Excerpt:   r.Excerpt,
		Position:  r.Position,
		CreatedAt: r.CreatedAt,
	}
}
