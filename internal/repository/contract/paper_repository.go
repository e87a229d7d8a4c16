package contract

import (
	"context"

	"research-assistant-be/internal/entity"
	"research-assistant-be/internal/repository/specification"
)

type PaperRepository interface {
	// UpsertBulk inserts or refreshes metadata for one date's papers.
	UpsertBulk(ctx context.Context, papers []*entity.Paper) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Paper, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// CountByDate returns {date: paper count} for dates with stored papers.
	CountByDate(ctx context.Context, daysBack int) (map[string]int64, error)
}
