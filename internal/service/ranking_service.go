package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"research-assistant-be/internal/constant"
	"research-assistant-be/internal/entity"
	"research-assistant-be/internal/pkg/logger"
	"research-assistant-be/internal/repository/specification"
	"research-assistant-be/internal/repository/unitofwork"
	"research-assistant-be/pkg/bus"
	"research-assistant-be/pkg/events"
	"research-assistant-be/pkg/llm"
	"research-assistant-be/pkg/nats"
	"research-assistant-be/pkg/ranking"

	"github.com/google/uuid"
)

// ErrNoPapers is returned when a ranking is requested for a date with no
// ingestable papers.
var ErrNoPapers = errors.New("no papers available for date")

const maxReasonChars = 100

// paperScorer adapts the LLM provider to the evaluator's Scorer contract.
// One call scores one paper; the reply must be a single JSON object.
type paperScorer struct {
	provider llm.LLMProvider
	model    string
}

func NewPaperScorer(provider llm.LLMProvider, model string) ranking.Scorer {
	return &paperScorer{provider: provider, model: model}
}

func (s *paperScorer) Score(ctx context.Context, paper ranking.Paper, profile string) (ranking.ScoreEntry, error) {
	user := fmt.Sprintf("USER PROFILE:\n%s\n\nPAPER TITLE: %s\n\nABSTRACT:\n%s", profile, paper.Title, paper.Summary)

	opts := []llm.Option{llm.WithJSONOutput(), llm.WithTemperature(0.1)}
	if s.model != "" {
		opts = append(opts, llm.WithModel(s.model))
	}

	reply, err := s.provider.Chat(ctx, []llm.Message{
		{Role: "system", Content: constant.ScoreSystemPromptV1},
		{Role: "user", Content: user},
	}, opts...)
	if err != nil {
		return ranking.ScoreEntry{}, fmt.Errorf("score call: %w", err)
	}

	var parsed struct {
		Score  int    `json:"score"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(reply), &parsed); err != nil {
		return ranking.ScoreEntry{}, fmt.Errorf("unparseable score reply: %w", err)
	}
	if len(parsed.Reason) > maxReasonChars {
		parsed.Reason = parsed.Reason[:maxReasonChars]
	}

	return ranking.ScoreEntry{
		PaperID: paper.ID,
		Title:   paper.Title,
		Score:   parsed.Score,
		Reason:  parsed.Reason,
		Excerpt: paper.Summary,
	}, nil
}

// IRankingService wraps the evaluator and the two-tier cache with
// persistence: completed runs are written to postgres and the cache is
// warmed back from those rows after a restart.
type IRankingService interface {
	IsRanked(ctx context.Context, date string) bool
	RankedDates(ctx context.Context) []string

	// RankDate runs the full batch for a date. progress (optional)
	// receives per-item events for the session stream.
	RankDate(ctx context.Context, date, profile string, progress func(bus.Event)) (ranking.Result, error)

	Index(ctx context.Context, date string) ([]ranking.IndexEntry, error)
	Details(ctx context.Context, date string, paperIDs []string) ([]ranking.ScoreEntry, error)
}

type rankingService struct {
	cache        *ranking.Cache
	evaluator    *ranking.Evaluator
	paperService IPaperService
	uowFactory   unitofwork.RepositoryFactory
	publisher    *nats.Publisher
	logger       logger.ILogger
}

func NewRankingService(
	cache *ranking.Cache,
	evaluator *ranking.Evaluator,
	paperService IPaperService,
	uowFactory unitofwork.RepositoryFactory,
	publisher *nats.Publisher,
	log logger.ILogger,
) IRankingService {
	return &rankingService{
		cache:        cache,
		evaluator:    evaluator,
		paperService: paperService,
		uowFactory:   uowFactory,
		publisher:    publisher,
		logger:       log,
	}
}

func (s *rankingService) IsRanked(ctx context.Context, date string) bool {
	if s.cache.IsRanked(date) {
		return true
	}
	// Cold cache after a restart: persisted rows still count as ranked.
	entries, err := s.loadPersisted(ctx, date)
	return err == nil && len(entries) > 0
}

func (s *rankingService) RankedDates(ctx context.Context) []string {
	seen := map[string]bool{}
	for _, d := range s.cache.RankedDates() {
		seen[d] = true
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	persisted, err := uow.PaperRankingRepository().RankedDates(ctx)
	if err != nil {
		s.logger.Warn("RankingService", "Persisted ranked dates unavailable", map[string]interface{}{
			"error": err.Error(),
		})
	}
	for _, d := range persisted {
		seen[d] = true
	}

	dates := make([]string, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	return dates
}

func (s *rankingService) RankDate(ctx context.Context, date, profile string, progress func(bus.Event)) (ranking.Result, error) {
	if progress == nil {
		progress = func(bus.Event) {}
	}

	if err := s.cache.Begin(date); err != nil {
		return ranking.Result{}, err
	}

	papers, err := s.paperService.EnsurePapers(ctx, date)
	if err != nil {
		s.cache.Abort(date)
		return ranking.Result{}, err
	}
	if len(papers) == 0 {
		s.cache.Abort(date)
		return ranking.Result{}, fmt.Errorf("%w: %s", ErrNoPapers, date)
	}

	progress(bus.Status(fmt.Sprintf("Scoring %d papers for %s", len(papers), date)))

	result, err := s.evaluator.Run(ctx, papers, profile, func(out ranking.ItemOutcome) {
		if out.Err != nil {
			progress(bus.Status(fmt.Sprintf("Skipped %q: %s", out.Paper.Title, out.Err)))
			return
		}
		progress(bus.Tool(fmt.Sprintf("Scored %q: %d/5", out.Paper.Title, out.Entry.Score)))
	})
	if err != nil {
		s.cache.Abort(date)
		return ranking.Result{}, fmt.Errorf("ranking batch: %w", err)
	}

	s.cache.Install(date, result.Entries)

	if err := s.persist(ctx, date, result.Entries); err != nil {
		// The in-memory tiers are live; losing persistence only costs the
		// warm start.
		s.logger.Error("RankingService", "Failed to persist ranking", map[string]interface{}{
			"date": date, "error": err.Error(),
		})
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.RankingCompleted(date, len(result.Entries), result.FailureCount())); err != nil {
			s.logger.Warn("RankingService", "Failed to publish ranking event", map[string]interface{}{
				"date": date, "error": err.Error(),
			})
		}
	}

	s.logger.Info("RankingService", "Ranking completed", map[string]interface{}{
		"date": date, "ranked": len(result.Entries), "failed": result.FailureCount(),
	})
	return result, nil
}

func (s *rankingService) Index(ctx context.Context, date string) ([]ranking.IndexEntry, error) {
	index, err := s.cache.Index(date)
	if err == nil {
		return index, nil
	}
	if !errors.Is(err, ranking.ErrNotRanked) {
		return nil, err
	}
	if err := s.warm(ctx, date); err != nil {
		return nil, err
	}
	return s.cache.Index(date)
}

func (s *rankingService) Details(ctx context.Context, date string, paperIDs []string) ([]ranking.ScoreEntry, error) {
	entries, err := s.cache.Details(date, paperIDs)
	if err == nil {
		return entries, nil
	}
	if !errors.Is(err, ranking.ErrNotRanked) {
		return nil, err
	}
	if err := s.warm(ctx, date); err != nil {
		return nil, err
	}
	return s.cache.Details(date, paperIDs)
}

// warm reinstalls both tiers for a date from the persisted rows.
func (s *rankingService) warm(ctx context.Context, date string) error {
	entries, err := s.loadPersisted(ctx, date)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("%w: %s", ranking.ErrNotRanked, date)
	}

	if err := s.cache.Begin(date); err != nil {
		// Another writer is mid-rank for this date; its Install will land.
		return fmt.Errorf("%w: %s", ranking.ErrNotRanked, date)
	}
	s.cache.Install(date, entries)
	s.logger.Info("RankingService", "Cache warmed from persisted ranking", map[string]interface{}{
		"date": date, "entries": len(entries),
	})
	return nil
}

func (s *rankingService) loadPersisted(ctx context.Context, date string) ([]ranking.ScoreEntry, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	rows, err := uow.PaperRankingRepository().FindAll(ctx,
		specification.ByDate{Date: date},
		specification.OrderBy{Field: "position"},
	)
	if err != nil {
		return nil, fmt.Errorf("load persisted ranking: %w", err)
	}

	entries := make([]ranking.ScoreEntry, len(rows))
	for i, r := range rows {
		entries[i] = ranking.ScoreEntry{
			PaperID: r.PaperKey,
			Title:   r.Title,
			Score:   r.Score,
			Reason:  r.Reason,
			Excerpt: r.Excerpt,
		}
	}
	return entries, nil
}

func (s *rankingService) persist(ctx context.Context, date string, entries []ranking.ScoreEntry) error {
	rows := make([]*entity.PaperRanking, len(entries))
	now := time.Now()
	for i, e := range entries {
		rows[i] = &entity.PaperRanking{
			Id:        uuid.New(),
			Date:      date,
			PaperKey:  e.PaperID,
			Title:     e.Title,
			Score:     e.Score,
			Reason:    e.Reason,
			Excerpt:   e.Excerpt,
			Position:  i,
			CreatedAt: now,
		}
	}

	// Delete and insert commit together; a failed replace leaves the
	// previous run's rows in place.
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	if err := uow.PaperRankingRepository().ReplaceForDate(ctx, date, rows); err != nil {
		if rbErr := uow.Rollback(); rbErr != nil {
			s.logger.Warn("RankingService", "Rollback failed", map[string]interface{}{
				"date": date, "error": rbErr.Error(),
			})
		}
		return err
	}
	return uow.Commit()
}
