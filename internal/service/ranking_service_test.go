package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"research-assistant-be/internal/entity"
	"research-assistant-be/internal/repository/contract"
	"research-assistant-be/internal/repository/specification"
	"research-assistant-be/internal/repository/unitofwork"
	"research-assistant-be/pkg/ranking"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// txRecorder backs the ranking fakes: it logs the transaction lifecycle
// calls in order and whether each write happened inside a transaction.
type txRecorder struct {
	calls      []string
	inTx       bool
	replaceErr error
	persisted  []*entity.PaperRanking
}

type recordingRankingRepo struct{ rec *txRecorder }

func (r *recordingRankingRepo) ReplaceForDate(ctx context.Context, date string, rows []*entity.PaperRanking) error {
	if r.rec.inTx {
		r.rec.calls = append(r.rec.calls, "replace(tx)")
	} else {
		r.rec.calls = append(r.rec.calls, "replace")
	}
	if r.rec.replaceErr != nil {
		return r.rec.replaceErr
	}
	r.rec.persisted = rows
	return nil
}

func (r *recordingRankingRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.PaperRanking, error) {
	return nil, nil
}

func (r *recordingRankingRepo) RankedDates(ctx context.Context) ([]string, error) {
	return nil, nil
}

type recordingUow struct{ rec *txRecorder }

func (u *recordingUow) Begin(ctx context.Context) error {
	u.rec.calls = append(u.rec.calls, "begin")
	u.rec.inTx = true
	return nil
}

func (u *recordingUow) Commit() error {
	u.rec.calls = append(u.rec.calls, "commit")
	u.rec.inTx = false
	return nil
}

func (u *recordingUow) Rollback() error {
	u.rec.calls = append(u.rec.calls, "rollback")
	u.rec.inTx = false
	return nil
}

func (u *recordingUow) ChatSessionRepository() contract.ChatSessionRepository { return nil }
func (u *recordingUow) ChatTurnRepository() contract.ChatTurnRepository       { return nil }
func (u *recordingUow) PaperRepository() contract.PaperRepository             { return nil }
func (u *recordingUow) PaperRankingRepository() contract.PaperRankingRepository {
	return &recordingRankingRepo{rec: u.rec}
}
func (u *recordingUow) ArtifactRepository() contract.ArtifactRepository { return nil }

type recordingFactory struct{ rec *txRecorder }

func (f *recordingFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &recordingUow{rec: f.rec}
}

type staticPaperService struct{ papers []ranking.Paper }

func (s *staticPaperService) Ingest(ctx context.Context, date string) (int, error) {
	return len(s.papers), nil
}

func (s *staticPaperService) EnsurePapers(ctx context.Context, date string) ([]ranking.Paper, error) {
	return s.papers, nil
}

func (s *staticPaperService) ListByDate(ctx context.Context, date string) ([]*entity.Paper, error) {
	return nil, nil
}

func newRankingHarness(rec *txRecorder) IRankingService {
	scorer := ranking.ScorerFunc(func(ctx context.Context, paper ranking.Paper, profile string) (ranking.ScoreEntry, error) {
		return ranking.ScoreEntry{
			PaperID: paper.ID,
			Title:   paper.Title,
			Score:   4,
			Reason:  "relevant",
			Excerpt: paper.Summary,
		}, nil
	})
	return NewRankingService(
		ranking.NewCache(),
		ranking.NewEvaluator(scorer, 2, time.Second),
		&staticPaperService{papers: []ranking.Paper{
			{ID: "p1", Title: "Alpha", Summary: "alpha abstract"},
			{ID: "p2", Title: "Beta", Summary: "beta abstract"},
		}},
		&recordingFactory{rec: rec},
		nil,
		nopLogger{},
	)
}

func TestRankingServicePersistence(t *testing.T) {
	t.Run("Completed run is written inside one transaction", func(t *testing.T) {
		rec := &txRecorder{}
		svc := newRankingHarness(rec)

		result, err := svc.RankDate(context.Background(), "2026-08-20", "systems researcher", nil)
		require.NoError(t, err)
		require.Len(t, result.Entries, 2)

		assert.Equal(t, []string{"begin", "replace(tx)", "commit"}, rec.calls)
		require.Len(t, rec.persisted, 2)
		assert.Equal(t, 0, rec.persisted[0].Position)
		assert.Equal(t, 1, rec.persisted[1].Position)
	})

	t.Run("Failed write rolls back and keeps the in-memory ranking", func(t *testing.T) {
		rec := &txRecorder{replaceErr: errors.New("disk full")}
		svc := newRankingHarness(rec)

		result, err := svc.RankDate(context.Background(), "2026-08-21", "systems researcher", nil)
		require.NoError(t, err)
		require.Len(t, result.Entries, 2)

		assert.Equal(t, []string{"begin", "replace(tx)", "rollback"}, rec.calls)

		// The live tiers survive the persistence failure.
		index, err := svc.Index(context.Background(), "2026-08-21")
		require.NoError(t, err)
		assert.Len(t, index, 2)
	})
}
