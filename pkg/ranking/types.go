// Package ranking contains the batch paper evaluator and the two-tier
// ranking cache. Ranking a date is expensive (one model call per paper);
// the cache guarantees a date is ranked once and discussed many times
// without re-scoring.
package ranking

// Paper is the scoring input: metadata for one daily paper.
type Paper struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	Authors     []string `json:"authors"`
	PublishedAt string   `json:"published_at"`
	Upvotes     int      `json:"upvotes"`
}

// ScoreEntry is the full (detail-tier) result of scoring one paper.
type ScoreEntry struct {
	PaperID string `json:"paper_id"`
	Title   string `json:"title"`
	Score   int    `json:"score"` // 1..5
	Reason  string `json:"reason"`
	Excerpt string `json:"excerpt"`
}

// IndexEntry is the lightweight (index-tier) projection of a ScoreEntry:
// everything a follow-up discussion needs to pick papers, minus the heavy
// excerpt.
type IndexEntry struct {
	PaperID string `json:"paper_id"`
	Title   string `json:"title"`
	Score   int    `json:"score"`
	Reason  string `json:"reason"`
}

func (e ScoreEntry) IndexEntry() IndexEntry {
	return IndexEntry{PaperID: e.PaperID, Title: e.Title, Score: e.Score, Reason: e.Reason}
}

// ItemFailure records one paper that could not be scored. Failures never
// abort the batch; they are excluded from the ranking and counted.
type ItemFailure struct {
	PaperID string `json:"paper_id"`
	Title   string `json:"title"`
	Reason  string `json:"reason"`
}

// Result is the completed output of one batch run: every input paper is
// accounted for either in Entries (sorted) or in Failures.
type Result struct {
	Entries  []ScoreEntry  `json:"entries"`
	Failures []ItemFailure `json:"failures"`
}

// FailureCount reports how many items failed in the batch.
func (r Result) FailureCount() int {
	return len(r.Failures)
}
