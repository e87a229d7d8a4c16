package contract

import (
	"context"

	"research-assistant-be/internal/entity"
	"research-assistant-be/internal/repository/specification"
)

type PaperRankingRepository interface {
	// ReplaceForDate deletes any previous run for the date and writes the
	// new records. Delete and create must land together, so callers scope
	// the call inside a unit-of-work transaction.
	ReplaceForDate(ctx context.Context, date string, rankings []*entity.PaperRanking) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.PaperRanking, error)
	// RankedDates lists dates that have a persisted ranking run.
	RankedDates(ctx context.Context) ([]string, error)
}
