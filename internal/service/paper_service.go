package service

import (
	"context"
	"fmt"
	"time"

	"research-assistant-be/internal/entity"
	"research-assistant-be/internal/pkg/logger"
	"research-assistant-be/internal/repository/specification"
	"research-assistant-be/internal/repository/unitofwork"
	"research-assistant-be/pkg/events"
	"research-assistant-be/pkg/nats"
	"research-assistant-be/pkg/papers"
	"research-assistant-be/pkg/ranking"
)

// IPaperService ingests and serves daily-paper metadata.
type IPaperService interface {
	// Ingest fetches one date's papers from the upstream source and
	// upserts them. Returns the stored count.
	Ingest(ctx context.Context, date string) (int, error)

	// EnsurePapers returns the papers for a date, ingesting on a miss.
	EnsurePapers(ctx context.Context, date string) ([]ranking.Paper, error)

	ListByDate(ctx context.Context, date string) ([]*entity.Paper, error)
}

type paperService struct {
	client     *papers.Client
	uowFactory unitofwork.RepositoryFactory
	publisher  *nats.Publisher
	logger     logger.ILogger
}

func NewPaperService(
	client *papers.Client,
	uowFactory unitofwork.RepositoryFactory,
	publisher *nats.Publisher,
	log logger.ILogger,
) IPaperService {
	return &paperService{
		client:     client,
		uowFactory: uowFactory,
		publisher:  publisher,
		logger:     log,
	}
}

func (s *paperService) Ingest(ctx context.Context, date string) (int, error) {
	fetched, err := s.client.FetchByDate(ctx, date)
	if err != nil {
		return 0, fmt.Errorf("fetch daily papers: %w", err)
	}

	entities := make([]*entity.Paper, len(fetched))
	for i, p := range fetched {
		entities[i] = &entity.Paper{
			PaperKey:    p.ID,
			Date:        date,
			Title:       p.Title,
			Summary:     p.Summary,
			Authors:     p.Authors,
			PublishedAt: p.PublishedAt,
			Upvotes:     p.Upvotes,
			CreatedAt:   time.Now(),
		}
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.PaperRepository().UpsertBulk(ctx, entities); err != nil {
		return 0, fmt.Errorf("store papers: %w", err)
	}

	s.logger.Info("PaperService", "Papers ingested", map[string]interface{}{
		"date": date, "count": len(entities),
	})

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.PapersIngested(date, len(entities))); err != nil {
			s.logger.Warn("PaperService", "Failed to publish ingest event", map[string]interface{}{
				"date": date, "error": err.Error(),
			})
		}
	}

	return len(entities), nil
}

func (s *paperService) EnsurePapers(ctx context.Context, date string) ([]ranking.Paper, error) {
	stored, err := s.ListByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		if _, err := s.Ingest(ctx, date); err != nil {
			return nil, err
		}
		stored, err = s.ListByDate(ctx, date)
		if err != nil {
			return nil, err
		}
	}

	result := make([]ranking.Paper, len(stored))
	for i, p := range stored {
		result[i] = ranking.Paper{
			ID:          p.PaperKey,
			Title:       p.Title,
			Summary:     p.Summary,
			Authors:     p.Authors,
			PublishedAt: p.PublishedAt,
			Upvotes:     p.Upvotes,
		}
	}
	return result, nil
}

func (s *paperService) ListByDate(ctx context.Context, date string) ([]*entity.Paper, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.PaperRepository().FindAll(ctx,
		specification.ByDate{Date: date},
		specification.OrderBy{Field: "upvotes", Desc: true},
	)
}
