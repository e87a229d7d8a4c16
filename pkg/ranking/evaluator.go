package ranking

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Scorer evaluates a single paper against a user profile. Implementations
// wrap the external text-generation capability; the evaluator only cares
// about the narrow request/response shape.
type Scorer interface {
	Score(ctx context.Context, paper Paper, profile string) (ScoreEntry, error)
}

// ScorerFunc adapts a function to the Scorer interface.
type ScorerFunc func(ctx context.Context, paper Paper, profile string) (ScoreEntry, error)

func (f ScorerFunc) Score(ctx context.Context, paper Paper, profile string) (ScoreEntry, error) {
	return f(ctx, paper, profile)
}

// ItemOutcome is reported once per paper as it finishes, in completion
// order. Each outcome is self-contained so out-of-order delivery relative
// to other items is harmless.
type ItemOutcome struct {
	Paper Paper
	Entry ScoreEntry
	Err   error
}

// Evaluator runs one scoring call per paper with bounded parallelism and
// assembles a deterministic ranking.
type Evaluator struct {
	scorer      Scorer
	workers     int64
	itemTimeout time.Duration
}

// NewEvaluator builds an evaluator with a fixed worker budget. workers
// must be >= 1; itemTimeout bounds each scoring call (0 disables it).
func NewEvaluator(scorer Scorer, workers int, itemTimeout time.Duration) *Evaluator {
	if workers < 1 {
		workers = 1
	}
	return &Evaluator{scorer: scorer, workers: int64(workers), itemTimeout: itemTimeout}
}

// Run scores every paper and returns the completed batch: entries sorted
// by score descending, ties broken by original input position, plus one
// failure record per paper that could not be scored. The batch is done
// only when every item has an entry or a failure; onItem (optional) fires
// as each item completes.
func (e *Evaluator) Run(ctx context.Context, papers []Paper, profile string, onItem func(ItemOutcome)) (Result, error) {
	if len(papers) == 0 {
		return Result{}, nil
	}

	type slot struct {
		entry ScoreEntry
		err   error
	}
	slots := make([]slot, len(papers))

	sem := semaphore.NewWeighted(e.workers)
	var wg sync.WaitGroup
	var notifyMu sync.Mutex

	for i, paper := range papers {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled while waiting for a worker: the batch
			// cannot complete, nothing is published as final.
			wg.Wait()
			return Result{}, fmt.Errorf("acquire worker: %w", err)
		}

		wg.Add(1)
		go func(i int, paper Paper) {
			defer wg.Done()
			defer sem.Release(1)

			entry, err := e.scoreOne(ctx, paper, profile)
			slots[i] = slot{entry: entry, err: err}

			if onItem != nil {
				notifyMu.Lock()
				onItem(ItemOutcome{Paper: paper, Entry: entry, Err: err})
				notifyMu.Unlock()
			}
		}(i, paper)
	}

	wg.Wait()

	result := Result{}
	for i, s := range slots {
		if s.err != nil {
			result.Failures = append(result.Failures, ItemFailure{
				PaperID: papers[i].ID,
				Title:   papers[i].Title,
				Reason:  s.err.Error(),
			})
			continue
		}
		result.Entries = append(result.Entries, s.entry)
	}

	// Entries were appended in input order, so a stable sort on score
	// alone gives the documented tie-break.
	sort.SliceStable(result.Entries, func(a, b int) bool {
		return result.Entries[a].Score > result.Entries[b].Score
	})

	return result, nil
}

func (e *Evaluator) scoreOne(ctx context.Context, paper Paper, profile string) (ScoreEntry, error) {
	if e.itemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.itemTimeout)
		defer cancel()
	}

	entry, err := e.scorer.Score(ctx, paper, profile)
	if err != nil {
		return ScoreEntry{}, err
	}
	if entry.Score < 1 || entry.Score > 5 {
		return ScoreEntry{}, fmt.Errorf("score %d out of range 1..5", entry.Score)
	}
	if entry.PaperID == "" {
		entry.PaperID = paper.ID
	}
	if entry.Title == "" {
		entry.Title = paper.Title
	}
	return entry, nil
}
