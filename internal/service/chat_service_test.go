package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"research-assistant-be/internal/constant"
	"research-assistant-be/internal/dto"
	"research-assistant-be/internal/entity"
	"research-assistant-be/internal/repository/contract"
	"research-assistant-be/internal/repository/memory"
	"research-assistant-be/internal/repository/specification"
	"research-assistant-be/internal/repository/unitofwork"
	"research-assistant-be/pkg/bus"
	"research-assistant-be/pkg/llm"
	"research-assistant-be/pkg/ranking"
	"research-assistant-be/pkg/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- in-memory test doubles ----

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

// fakeStore backs the fake unit of work with plain slices.
type fakeStore struct {
	mu       sync.Mutex
	sessions []*entity.ChatSession
	turns    []*entity.ChatTurn
}

type fakeUow struct{ s *fakeStore }

func (u *fakeUow) Begin(ctx context.Context) error { return nil }
func (u *fakeUow) Commit() error                   { return nil }
func (u *fakeUow) Rollback() error                 { return nil }

func (u *fakeUow) ChatSessionRepository() contract.ChatSessionRepository { return &fakeSessionRepo{u.s} }
func (u *fakeUow) ChatTurnRepository() contract.ChatTurnRepository       { return &fakeTurnRepo{u.s} }
func (u *fakeUow) PaperRepository() contract.PaperRepository             { return nil }
func (u *fakeUow) PaperRankingRepository() contract.PaperRankingRepository {
	return nil
}
func (u *fakeUow) ArtifactRepository() contract.ArtifactRepository { return nil }

type fakeFactory struct{ s *fakeStore }

func (f *fakeFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &fakeUow{s: f.s}
}

type fakeSessionRepo struct{ s *fakeStore }

func (r *fakeSessionRepo) Create(ctx context.Context, session *entity.ChatSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.sessions = append(r.s.sessions, session)
	return nil
}

func (r *fakeSessionRepo) Update(ctx context.Context, session *entity.ChatSession) error { return nil }

func (r *fakeSessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.sessions[:0]
	for _, s := range r.s.sessions {
		if s.Id != id {
			kept = append(kept, s)
		}
	}
	r.s.sessions = kept
	return nil
}

func (r *fakeSessionRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, spec := range specs {
		if byKey, ok := spec.(specification.BySessionKey); ok {
			for _, s := range r.s.sessions {
				if s.SessionKey == byKey.SessionKey {
					return s, nil
				}
			}
		}
	}
	return nil, nil
}

func (r *fakeSessionRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]*entity.ChatSession(nil), r.s.sessions...), nil
}

func (r *fakeSessionRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	return int64(len(r.s.sessions)), nil
}

type fakeTurnRepo struct{ s *fakeStore }

func (r *fakeTurnRepo) Create(ctx context.Context, turn *entity.ChatTurn) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.turns = append(r.s.turns, turn)
	return nil
}

func (r *fakeTurnRepo) DeleteAllBySessionId(ctx context.Context, sessionId uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.turns[:0]
	for _, t := range r.s.turns {
		if t.ChatSessionId != sessionId {
			kept = append(kept, t)
		}
	}
	r.s.turns = kept
	return nil
}

func (r *fakeTurnRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatTurn, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var sessionId uuid.UUID
	desc := false
	limit := 0
	for _, spec := range specs {
		switch v := spec.(type) {
		case specification.ByChatSessionID:
			sessionId = v.ChatSessionID
		case specification.OrderBy:
			desc = v.Desc
		case specification.Pagination:
			limit = v.Limit
		}
	}

	var out []*entity.ChatTurn
	for _, t := range r.s.turns {
		if t.ChatSessionId == sessionId {
			out = append(out, t)
		}
	}
	// Turns are stored in insert order, which matches created_at.
	if desc {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeTurnRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	return int64(len(r.s.turns)), nil
}

// scriptedProvider replies with queued responses in order.
type scriptedProvider struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   [][]llm.Message
}

func (p *scriptedProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, history)
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		if err != nil {
			return "", err
		}
	}
	if len(p.replies) == 0 {
		return "", fmt.Errorf("scriptedProvider: no reply queued")
	}
	reply := p.replies[0]
	p.replies = p.replies[1:]
	return reply, nil
}

func (p *scriptedProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, options...)
}

type fakeProfileService struct {
	profile    string
	hasProfile bool
}

func (f *fakeProfileService) ReadSeedFile(ctx context.Context, sess *store.Session, filePath string) (string, error) {
	return "seed contents", nil
}

func (f *fakeProfileService) SummarizeGithub(ctx context.Context, sess *store.Session, profileURL string) (string, error) {
	return "github summary", nil
}

func (f *fakeProfileService) SynthesizeProfile(ctx context.Context, sess *store.Session, profilePath string) (string, error) {
	return "synthesized profile", nil
}

func (f *fakeProfileService) ResearchProfile(ctx context.Context, userKey string) (string, bool) {
	return f.profile, f.hasProfile
}

func (f *fakeProfileService) RestoreState(ctx context.Context, sess *store.Session) {}

type fakeRankingService struct {
	mu     sync.Mutex
	ranked map[string]bool
	result ranking.Result
	rankN  int
}

func (f *fakeRankingService) IsRanked(ctx context.Context, date string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ranked[date]
}

func (f *fakeRankingService) RankedDates(ctx context.Context) []string { return nil }

func (f *fakeRankingService) RankDate(ctx context.Context, date, profile string, progress func(bus.Event)) (ranking.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rankN++
	if f.ranked == nil {
		f.ranked = map[string]bool{}
	}
	f.ranked[date] = true
	if progress != nil {
		for _, e := range f.result.Entries {
			progress(bus.Tool(fmt.Sprintf("Scored %q: %d/5", e.Title, e.Score)))
		}
	}
	return f.result, nil
}

func (f *fakeRankingService) Index(ctx context.Context, date string) ([]ranking.IndexEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ranked[date] {
		return nil, ranking.ErrNotRanked
	}
	out := make([]ranking.IndexEntry, len(f.result.Entries))
	for i, e := range f.result.Entries {
		out[i] = e.IndexEntry()
	}
	return out, nil
}

func (f *fakeRankingService) Details(ctx context.Context, date string, paperIDs []string) ([]ranking.ScoreEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ranked[date] {
		return nil, ranking.ErrNotRanked
	}
	byID := map[string]ranking.ScoreEntry{}
	for _, e := range f.result.Entries {
		byID[e.PaperID] = e
	}
	out := make([]ranking.ScoreEntry, 0, len(paperIDs))
	for _, id := range paperIDs {
		e, ok := byID[id]
		if !ok {
			return nil, ranking.ErrUnknownItem
		}
		out = append(out, e)
	}
	return out, nil
}

// ---- harness ----

type chatHarness struct {
	svc      IChatService
	store    *fakeStore
	bus      *bus.SessionBus
	provider *scriptedProvider
	profiles *fakeProfileService
	rankings *fakeRankingService
}

func newChatHarness(t *testing.T) *chatHarness {
	t.Helper()
	h := &chatHarness{
		store:    &fakeStore{},
		bus:      bus.New(),
		provider: &scriptedProvider{},
		profiles: &fakeProfileService{},
		rankings: &fakeRankingService{},
	}
	t.Cleanup(func() { h.bus.Close() })

	h.svc = NewChatService(
		&fakeFactory{s: h.store},
		memory.NewSessionRepository(),
		h.provider,
		h.bus,
		nil,
		h.profiles,
		h.rankings,
		nopLogger{},
	)
	return h
}

// runTurn drives one full turn and returns every event up to the terminal.
func (h *chatHarness) runTurn(t *testing.T, sessionKey, query string) []bus.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h.bus.OpenTurn(sessionKey)
	events, err := h.bus.Subscribe(ctx, sessionKey)
	require.NoError(t, err)

	require.NoError(t, h.svc.RunTurn(context.Background(), sessionKey, query))

	// The turn is persisted before the terminal event is published, so
	// once the channel closes the stores are settled.
	var got []bus.Event
	for event := range events {
		got = append(got, event)
	}

	require.NotEmpty(t, got, "turn produced no events")
	require.True(t, got[len(got)-1].Terminal(), "last event must be terminal")
	return got
}

func (h *chatHarness) assistantTurns() []*entity.ChatTurn {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	var out []*entity.ChatTurn
	for _, turn := range h.store.turns {
		if turn.Role == constant.ChatTurnRoleAssistant {
			out = append(out, turn)
		}
	}
	return out
}

// ---- tests ----

func TestChatServiceSessions(t *testing.T) {
	t.Run("CreateSession is idempotent on key", func(t *testing.T) {
		h := newChatHarness(t)
		ctx := context.Background()

		first, err := h.svc.CreateSession(ctx, &dto.CreateSessionRequest{SessionId: "abc", UserId: "u1"})
		require.NoError(t, err)
		assert.True(t, first.Created)

		second, err := h.svc.CreateSession(ctx, &dto.CreateSessionRequest{SessionId: "abc", UserId: "u1"})
		require.NoError(t, err)
		assert.False(t, second.Created)
		assert.Len(t, h.store.sessions, 1)
	})

	t.Run("ClearSession wipes turns but keeps the session", func(t *testing.T) {
		h := newChatHarness(t)
		ctx := context.Background()

		_, err := h.svc.CreateSession(ctx, &dto.CreateSessionRequest{SessionId: "abc"})
		require.NoError(t, err)

		h.provider.replies = []string{"hello there"}
		h.runTurn(t, "abc", "hi")
		require.NotEmpty(t, h.store.turns)

		cleared, err := h.svc.ClearSession(ctx, "abc")
		require.NoError(t, err)
		assert.True(t, cleared.Cleared)
		assert.Empty(t, h.store.turns)
		assert.Len(t, h.store.sessions, 1)

		history, err := h.svc.GetChatHistory(ctx, "abc")
		require.NoError(t, err)
		assert.Empty(t, history.Turns)
	})

	t.Run("Clearing an unknown session reports Cleared=false", func(t *testing.T) {
		h := newChatHarness(t)
		cleared, err := h.svc.ClearSession(context.Background(), "ghost")
		require.NoError(t, err)
		assert.False(t, cleared.Cleared)
	})
}

func TestRunTurn(t *testing.T) {
	t.Run("Tool-free reply streams straight through", func(t *testing.T) {
		h := newChatHarness(t)
		h.provider.replies = []string{"Plain prose answer."}

		events := h.runTurn(t, "s1", "hello")
		require.Len(t, events, 1)
		assert.Equal(t, bus.EventDone, events[0].Type)
		assert.Equal(t, "Plain prose answer.", events[0].Answer)

		// Both turns persisted: the user query and the assistant answer.
		assert.Len(t, h.store.turns, 2)
	})

	t.Run("Unknown session auto-creates a row", func(t *testing.T) {
		h := newChatHarness(t)
		h.provider.replies = []string{"ok"}

		h.runTurn(t, "fresh", "hello")
		assert.Len(t, h.store.sessions, 1)
		assert.Equal(t, "fresh", h.store.sessions[0].SessionKey)
	})

	t.Run("Malformed tool block downgrades to plain text", func(t *testing.T) {
		h := newChatHarness(t)
		raw := `I will rank. <tools>rank_papers(date="2025-06-10")</tools>`
		h.provider.replies = []string{raw}

		events := h.runTurn(t, "s2", "rank please")
		last := events[len(events)-1]
		assert.Equal(t, bus.EventDone, last.Type)
		assert.Equal(t, raw, last.Answer)
		assert.Zero(t, h.rankings.rankN, "nothing must be dispatched")
	})

	t.Run("Transport failure ends in an error event and the session survives", func(t *testing.T) {
		h := newChatHarness(t)
		h.provider.errs = []error{fmt.Errorf("connection refused")}

		events := h.runTurn(t, "s3", "hello")
		last := events[len(events)-1]
		assert.Equal(t, bus.EventError, last.Type)
		assert.Contains(t, last.Message, "connection refused")

		turns := h.assistantTurns()
		require.Len(t, turns, 1)
		assert.Contains(t, turns[0].Content, "Error:")

		// The next turn on the same session works normally.
		h.provider.replies = []string{"recovered"}
		events = h.runTurn(t, "s3", "try again")
		assert.Equal(t, bus.EventDone, events[len(events)-1].Type)
	})

	t.Run("Rank dispatch requires a research profile", func(t *testing.T) {
		h := newChatHarness(t)
		h.profiles.hasProfile = false
		h.provider.replies = []string{"<tools>rank_papers(date='2025-06-10')</tools>"}

		events := h.runTurn(t, "s4", "rank today")
		last := events[len(events)-1]
		assert.Equal(t, bus.EventError, last.Type)
		assert.Contains(t, last.Message, "no research profile")
		assert.Zero(t, h.rankings.rankN)
	})

	t.Run("Ranking an already ranked date is a hard error", func(t *testing.T) {
		h := newChatHarness(t)
		h.profiles.hasProfile = true
		h.profiles.profile = "ML systems researcher"
		h.rankings.ranked = map[string]bool{"2025-06-10": true}
		h.provider.replies = []string{"<tools>rank_papers(date='2025-06-10')</tools>"}

		events := h.runTurn(t, "s5", "rank again")
		last := events[len(events)-1]
		assert.Equal(t, bus.EventError, last.Type)
		assert.Contains(t, last.Message, "already ranked")
		assert.Zero(t, h.rankings.rankN, "a ranked date must never be re-ranked")
	})

	t.Run("Discussing an unranked date is a hard error", func(t *testing.T) {
		h := newChatHarness(t)
		h.provider.replies = []string{"<tools>discuss_papers(date='2025-06-10')</tools>"}

		events := h.runTurn(t, "s6", "what do you think?")
		last := events[len(events)-1]
		assert.Equal(t, bus.EventError, last.Type)
		assert.Contains(t, last.Message, "not been ranked")
	})

	t.Run("Rank turn streams progress and persists attached events", func(t *testing.T) {
		h := newChatHarness(t)
		h.profiles.hasProfile = true
		h.profiles.profile = "ML systems researcher"
		h.rankings.result = ranking.Result{Entries: []ranking.ScoreEntry{
			{PaperID: "a", Title: "Alpha", Score: 5, Reason: "on topic"},
			{PaperID: "b", Title: "Beta", Score: 3, Reason: "adjacent"},
		}}
		h.provider.replies = []string{
			"<tools>rank_papers(date='2025-06-10')</tools>",
			"Here are the rankings for June 10.",
		}

		events := h.runTurn(t, "s7", "rank June 10")
		last := events[len(events)-1]
		assert.Equal(t, bus.EventDone, last.Type)
		assert.Equal(t, "Here are the rankings for June 10.", last.Answer)
		assert.Equal(t, 1, h.rankings.rankN)

		var toolEvents int
		for _, e := range events {
			if e.Type == bus.EventTool {
				toolEvents++
			}
		}
		assert.GreaterOrEqual(t, toolEvents, 3, "ranking start plus one event per scored paper")

		turns := h.assistantTurns()
		require.Len(t, turns, 1)
		assert.Equal(t, len(events), len(turns[0].AttachedEvents))
	})

	t.Run("Single discuss invocation answers directly", func(t *testing.T) {
		h := newChatHarness(t)
		h.rankings.ranked = map[string]bool{"2025-06-10": true}
		h.rankings.result = ranking.Result{Entries: []ranking.ScoreEntry{
			{PaperID: "a", Title: "Alpha", Score: 5, Reason: "on topic", Excerpt: "alpha abstract"},
		}}
		h.provider.replies = []string{
			"<tools>discuss_papers(date='2025-06-10')</tools>",
			"Alpha stands out because of its agents focus.",
		}

		events := h.runTurn(t, "s8", "discuss June 10")
		last := events[len(events)-1]
		assert.Equal(t, bus.EventDone, last.Type)
		assert.Equal(t, "Alpha stands out because of its agents focus.", last.Answer)

		// The discussion call receives the ranked entries, not the history.
		require.Len(t, h.provider.calls, 2)
		discussCall := h.provider.calls[1]
		require.Len(t, discussCall, 2)
		assert.Contains(t, discussCall[1].Content, "alpha abstract")
		assert.Contains(t, discussCall[1].Content, "discuss June 10")
	})

	t.Run("Stray tool block in the wrap-up is stripped", func(t *testing.T) {
		h := newChatHarness(t)
		h.provider.replies = []string{
			"<tools>read_file(file_path='/data/profile.md')</tools>",
			"Got your profile. <tools>read_file(file_path='/again')</tools>",
		}

		events := h.runTurn(t, "s9", "read my profile")
		last := events[len(events)-1]
		assert.Equal(t, bus.EventDone, last.Type)
		assert.Equal(t, "Got your profile.", last.Answer)
	})

	t.Run("Concurrent turn is rejected without touching the running stream", func(t *testing.T) {
		h := newChatHarness(t)

		release := make(chan struct{})
		blocking := &blockingProvider{start: make(chan struct{}), release: release}
		svc := NewChatService(
			&fakeFactory{s: h.store},
			memory.NewSessionRepository(),
			blocking,
			h.bus,
			nil,
			h.profiles,
			h.rankings,
			nopLogger{},
		)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		h.bus.OpenTurn("busy")
		events, err := h.bus.Subscribe(ctx, "busy")
		require.NoError(t, err)

		require.NoError(t, svc.RunTurn(context.Background(), "busy", "slow question"))
		<-blocking.start

		// The second request bounces off the per-session lock
		// synchronously; nothing is published for it.
		assert.ErrorIs(t, svc.RunTurn(context.Background(), "busy", "impatient question"), ErrTurnInProgress)

		close(release)

		// The first client still receives its own answer as the one and
		// only terminal event.
		var got []bus.Event
		for event := range events {
			got = append(got, event)
		}
		require.NotEmpty(t, got)
		last := got[len(got)-1]
		assert.Equal(t, bus.EventDone, last.Type)
		assert.Equal(t, "slow answer", last.Answer)
		for _, e := range got {
			assert.NotEqual(t, bus.EventError, e.Type)
		}

		// With the first turn finished, the session accepts work again.
		h.bus.OpenTurn("busy")
		require.NoError(t, svc.RunTurn(context.Background(), "busy", "next question"))
	})

	t.Run("History window feeds prior turns back oldest-first", func(t *testing.T) {
		h := newChatHarness(t)
		h.provider.replies = []string{"one", "two"}

		h.runTurn(t, "s10", "first question")
		h.runTurn(t, "s10", "second question")

		require.Len(t, h.provider.calls, 2)
		second := h.provider.calls[1]
		require.GreaterOrEqual(t, len(second), 4)
		assert.Equal(t, "system", second[0].Role)
		assert.Equal(t, "first question", second[1].Content)
		assert.Equal(t, "one", second[2].Content)
		assert.Equal(t, "second question", second[len(second)-1].Content)

		// The current query appears exactly once in the model input.
		var occurrences int
		for _, m := range second {
			if m.Content == "second question" {
				occurrences++
			}
		}
		assert.Equal(t, 1, occurrences)
	})
}

// blockingProvider parks the first Chat call until released.
type blockingProvider struct {
	once    sync.Once
	start   chan struct{}
	release chan struct{}
}

func (p *blockingProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	p.once.Do(func() { close(p.start) })
	<-p.release
	return "slow answer", nil
}

func (p *blockingProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, options...)
}
