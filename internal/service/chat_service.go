package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"research-assistant-be/internal/constant"
	"research-assistant-be/internal/dto"
	"research-assistant-be/internal/entity"
	"research-assistant-be/internal/pkg/logger"
	"research-assistant-be/internal/repository/memory"
	"research-assistant-be/internal/repository/specification"
	"research-assistant-be/internal/repository/unitofwork"
	"research-assistant-be/internal/websocket"
	"research-assistant-be/pkg/bus"
	"research-assistant-be/pkg/llm"
	"research-assistant-be/pkg/store"
	"research-assistant-be/pkg/toolcall"

	"github.com/google/uuid"
)

const (
	historyWindow   = 10 // turns fed back into the model
	discussTopN     = 10 // index entries handed to a discussion turn
	rankSummaryTopN = 10
)

// NewToolRegistry declares the closed set of operations the orchestrator
// dispatches. Anything outside this set is a parse-time error.
func NewToolRegistry() *toolcall.Registry {
	return toolcall.NewRegistry(
		toolcall.Spec{Name: constant.ToolReadFile, Required: []string{"file_path"}},
		toolcall.Spec{Name: constant.ToolSummarizeGithub, Required: []string{"profile_url"}},
		toolcall.Spec{Name: constant.ToolSynthesizeProfile, Required: []string{"profile_path"}},
		toolcall.Spec{Name: constant.ToolRankPapers, Required: []string{"date"}},
		toolcall.Spec{Name: constant.ToolDiscussPapers, Required: []string{"date"}},
	)
}

// ErrTurnInProgress rejects a turn while the session is still running a
// previous one. The rejection never reaches the session stream: the
// running turn keeps its one-terminal-event guarantee.
var ErrTurnInProgress = errors.New("another turn is already running for this session")

// IChatService is the session/turn orchestrator. A turn runs to exactly
// one terminal event on the session bus; everything published along the
// way is copied onto the persisted assistant turn.
type IChatService interface {
	CreateSession(ctx context.Context, request *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error)
	ClearSession(ctx context.Context, sessionKey string) (*dto.ClearSessionResponse, error)
	GetChatHistory(ctx context.Context, sessionKey string) (*dto.GetChatHistoryResponse, error)

	// RunTurn starts one turn in the background. It returns
	// ErrTurnInProgress, without publishing anything, when the session
	// already has an active turn; every other failure mode ends in a
	// terminal event on the bus. Callers subscribe first.
	RunTurn(ctx context.Context, sessionKey, query string) error
}

type chatService struct {
	uowFactory     unitofwork.RepositoryFactory
	sessionRepo    *memory.SessionRepository
	provider       llm.LLMProvider
	bus            *bus.SessionBus
	hub            *websocket.Hub
	registry       *toolcall.Registry
	profileService IProfileService
	rankingService IRankingService
	logger         logger.ILogger

	// One active turn per session.
	locks sync.Map // sessionKey -> *sync.Mutex
}

func NewChatService(
	uowFactory unitofwork.RepositoryFactory,
	sessionRepo *memory.SessionRepository,
	provider llm.LLMProvider,
	sessionBus *bus.SessionBus,
	hub *websocket.Hub,
	profileService IProfileService,
	rankingService IRankingService,
	log logger.ILogger,
) IChatService {
	return &chatService{
		uowFactory:     uowFactory,
		sessionRepo:    sessionRepo,
		provider:       provider,
		bus:            sessionBus,
		hub:            hub,
		registry:       NewToolRegistry(),
		profileService: profileService,
		rankingService: rankingService,
		logger:         log,
	}
}

// CreateSession is idempotent on the client-supplied key: re-creating a
// known session is a no-op that reports Created=false.
func (s *chatService) CreateSession(ctx context.Context, request *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	existing, err := uow.ChatSessionRepository().FindOne(ctx, specification.BySessionKey{SessionKey: request.SessionId})
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if existing != nil {
		return &dto.CreateSessionResponse{SessionId: request.SessionId, Created: false}, nil
	}

	session := &entity.ChatSession{
		Id:              uuid.New(),
		SessionKey:      request.SessionId,
		UserKey:         request.UserId,
		ModelIdentifier: request.ModelIdentifier,
		CreatedAt:       time.Now(),
	}
	if err := uow.ChatSessionRepository().Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.sessionRepo.Save(store.NewSession(request.SessionId, request.UserId, request.ModelIdentifier))
	s.logger.Info("ChatService", "Session created", map[string]interface{}{"session_key": request.SessionId})

	return &dto.CreateSessionResponse{SessionId: request.SessionId, Created: true}, nil
}

// ClearSession wipes the turn history and resets in-memory state. The
// session row survives so the key stays valid.
func (s *chatService) ClearSession(ctx context.Context, sessionKey string) (*dto.ClearSessionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.ChatSessionRepository().FindOne(ctx, specification.BySessionKey{SessionKey: sessionKey})
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if session == nil {
		return &dto.ClearSessionResponse{SessionId: sessionKey, Cleared: false}, nil
	}

	if err := uow.ChatTurnRepository().DeleteAllBySessionId(ctx, session.Id); err != nil {
		return nil, fmt.Errorf("clear turns: %w", err)
	}

	s.sessionRepo.Save(store.NewSession(sessionKey, session.UserKey, session.ModelIdentifier))
	s.logger.Info("ChatService", "Session cleared", map[string]interface{}{"session_key": sessionKey})

	return &dto.ClearSessionResponse{SessionId: sessionKey, Cleared: true}, nil
}

func (s *chatService) GetChatHistory(ctx context.Context, sessionKey string) (*dto.GetChatHistoryResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.ChatSessionRepository().FindOne(ctx, specification.BySessionKey{SessionKey: sessionKey})
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session %q not found", sessionKey)
	}

	turns, err := uow.ChatTurnRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: session.Id},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}

	response := &dto.GetChatHistoryResponse{
		SessionId: sessionKey,
		Turns:     make([]dto.ChatTurnResponse, len(turns)),
	}
	for i, t := range turns {
		response.Turns[i] = dto.ChatTurnResponse{
			Id:             t.Id.String(),
			Role:           t.Role,
			Content:        t.Content,
			AttachedEvents: t.AttachedEvents,
			CreatedAt:      t.CreatedAt,
		}
	}
	return response, nil
}

func (s *chatService) lockFor(sessionKey string) *sync.Mutex {
	actual, _ := s.locks.LoadOrStore(sessionKey, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

func (s *chatService) RunTurn(ctx context.Context, sessionKey, query string) error {
	lock := s.lockFor(sessionKey)
	if !lock.TryLock() {
		return ErrTurnInProgress
	}

	var once sync.Once
	release := func() { once.Do(lock.Unlock) }
	go func() {
		defer release()
		s.runTurn(ctx, sessionKey, query, release)
	}()
	return nil
}

// runTurn drives one turn to its single terminal event. release frees the
// per-session lock and runs before the terminal publish, so a client that
// saw its stream end can start the next turn immediately.
func (s *chatService) runTurn(ctx context.Context, sessionKey, query string, release func()) {
	// Every event published this turn is captured for the assistant turn
	// record. The slice is copied into the entity, never shared.
	var captured []bus.Event
	emit := func(e bus.Event) {
		captured = append(captured, e)
		s.publish(sessionKey, e)
	}

	session, sess, err := s.ensureSession(ctx, sessionKey)
	if err != nil {
		release()
		s.publish(sessionKey, bus.Error(fmt.Sprintf("session unavailable: %s", err)))
		return
	}
	sess.LastQuery = query

	// History is assembled before the user turn is persisted so the query
	// appears in the model input exactly once.
	history, err := s.buildHistory(ctx, session.Id, query)
	if err != nil {
		release()
		s.publish(sessionKey, bus.Error(fmt.Sprintf("history unavailable: %s", err)))
		return
	}
	s.saveTurn(ctx, session.Id, constant.ChatTurnRoleUser, query, nil)

	answer, err := s.produceAnswer(ctx, session, sess, history, query, emit)
	if err != nil {
		s.logger.Error("ChatService", "Turn failed", map[string]interface{}{
			"session_key": sessionKey, "error": err.Error(),
		})
		// The turn record is durable before the terminal event reaches
		// the client.
		errEvent := bus.Error(err.Error())
		captured = append(captured, errEvent)
		s.saveTurn(ctx, session.Id, constant.ChatTurnRoleAssistant, "Error: "+err.Error(), captured)
		s.sessionRepo.Save(sess)
		release()
		s.publish(sessionKey, errEvent)
		return
	}

	doneEvent := bus.Done(answer)
	captured = append(captured, doneEvent)
	s.saveTurn(ctx, session.Id, constant.ChatTurnRoleAssistant, answer, captured)
	s.sessionRepo.Save(sess)
	release()
	s.publish(sessionKey, doneEvent)
}

// publish mirrors every bus event onto the websocket hub so passive
// watchers see the same stream the SSE client does.
func (s *chatService) publish(sessionKey string, event bus.Event) {
	if err := s.bus.Publish(sessionKey, event); err != nil {
		s.logger.Warn("ChatService", "Bus publish failed", map[string]interface{}{
			"session_key": sessionKey, "error": err.Error(),
		})
	}
	if s.hub != nil {
		s.hub.Send(sessionKey, event)
	}
}

// ensureSession returns the persisted row and the in-memory state for a
// session, creating both when the key is new and rebuilding profile state
// from artifacts when the memory entry was evicted.
func (s *chatService) ensureSession(ctx context.Context, sessionKey string) (*entity.ChatSession, *store.Session, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.ChatSessionRepository().FindOne(ctx, specification.BySessionKey{SessionKey: sessionKey})
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		session = &entity.ChatSession{
			Id:         uuid.New(),
			SessionKey: sessionKey,
			CreatedAt:  time.Now(),
		}
		if err := uow.ChatSessionRepository().Create(ctx, session); err != nil {
			return nil, nil, err
		}
	}

	sess, ok := s.sessionRepo.Get(sessionKey)
	if !ok {
		sess = store.NewSession(sessionKey, session.UserKey, session.ModelIdentifier)
		s.profileService.RestoreState(ctx, sess)
		s.sessionRepo.Save(sess)
	}
	return session, sess, nil
}

func (s *chatService) saveTurn(ctx context.Context, sessionId uuid.UUID, role, content string, events []bus.Event) {
	copied := make([]bus.Event, len(events))
	copy(copied, events)

	uow := s.uowFactory.NewUnitOfWork(ctx)
	err := uow.ChatTurnRepository().Create(ctx, &entity.ChatTurn{
		Id:             uuid.New(),
		ChatSessionId:  sessionId,
		Role:           role,
		Content:        content,
		AttachedEvents: copied,
		CreatedAt:      time.Now(),
	})
	if err != nil {
		s.logger.Error("ChatService", "Failed to persist turn", map[string]interface{}{
			"session_id": sessionId, "role": role, "error": err.Error(),
		})
	}
}

func (s *chatService) produceAnswer(ctx context.Context, session *entity.ChatSession, sess *store.Session, history []llm.Message, query string, emit func(bus.Event)) (string, error) {
	var opts []llm.Option
	if session.ModelIdentifier != "" {
		opts = append(opts, llm.WithModel(session.ModelIdentifier))
	}

	text, err := s.provider.Chat(ctx, history, opts...)
	if err != nil {
		return "", fmt.Errorf("model transport: %w", err)
	}

	invocations, perr := toolcall.Parse(text, s.registry)
	if perr != nil {
		// A malformed block downgrades the turn to tool-free; the raw text
		// is still a valid answer.
		s.logger.Warn("ChatService", "Tool block rejected", map[string]interface{}{
			"session_key": sess.ID, "error": perr.Error(),
		})
		return text, nil
	}
	if len(invocations) == 0 {
		return text, nil
	}

	// A discussion invocation produces a complete answer by itself.
	if len(invocations) == 1 && invocations[0].Name == constant.ToolDiscussPapers {
		return s.dispatchDiscuss(ctx, invocations[0].Arguments["date"], query, emit)
	}

	results := make([]string, 0, len(invocations))
	for _, inv := range invocations {
		result, err := s.dispatch(ctx, sess, inv, query, emit)
		if err != nil {
			return "", err
		}
		results = append(results, fmt.Sprintf("%s -> %s", inv.Name, result))
	}

	return s.composeAnswer(ctx, history, text, results, opts)
}

func (s *chatService) dispatch(ctx context.Context, sess *store.Session, inv toolcall.Invocation, query string, emit func(bus.Event)) (string, error) {
	switch inv.Name {
	case constant.ToolReadFile:
		path := inv.Arguments["file_path"]
		emit(bus.Tool("Reading profile file " + path))
		content, err := s.profileService.ReadSeedFile(ctx, sess, path)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("read %d characters from %s:\n%s", len(content), path, content), nil

	case constant.ToolSummarizeGithub:
		url := inv.Arguments["profile_url"]
		emit(bus.Tool("Summarizing GitHub profile " + url))
		summary, err := s.profileService.SummarizeGithub(ctx, sess, url)
		if err != nil {
			return "", err
		}
		return summary, nil

	case constant.ToolSynthesizeProfile:
		path := inv.Arguments["profile_path"]
		emit(bus.Tool("Synthesizing research profile"))
		profile, err := s.profileService.SynthesizeProfile(ctx, sess, path)
		if err != nil {
			return "", err
		}
		return profile, nil

	case constant.ToolRankPapers:
		date := inv.Arguments["date"]
		return s.dispatchRank(ctx, sess, date, emit)

	case constant.ToolDiscussPapers:
		return s.dispatchDiscuss(ctx, inv.Arguments["date"], query, emit)
	}
	return "", fmt.Errorf("unsupported tool %q", inv.Name)
}

// dispatchRank enforces the rank-vs-discuss split: a date that is already
// ranked must be discussed, never silently re-ranked.
func (s *chatService) dispatchRank(ctx context.Context, sess *store.Session, date string, emit func(bus.Event)) (string, error) {
	if s.rankingService.IsRanked(ctx, date) {
		return "", fmt.Errorf("papers for %s are already ranked; ask to discuss them instead of re-ranking", date)
	}

	profile, ok := s.profileService.ResearchProfile(ctx, sess.UserID)
	if !ok {
		return "", fmt.Errorf("no research profile on record; share your profile file before ranking papers")
	}

	emit(bus.Tool("Ranking papers for " + date))
	result, err := s.rankingService.RankDate(ctx, date, profile, emit)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "ranked %d papers for %s (%d failed):\n", len(result.Entries), date, result.FailureCount())
	for i, e := range result.Entries {
		if i >= rankSummaryTopN {
			break
		}
		fmt.Fprintf(&sb, "%d. [%d/5] %s - %s\n", i+1, e.Score, e.Title, e.Reason)
	}
	return sb.String(), nil
}

// dispatchDiscuss enforces the other direction of the split: discussing a
// date that was never ranked is a hard error, not an implicit ranking.
func (s *chatService) dispatchDiscuss(ctx context.Context, date, query string, emit func(bus.Event)) (string, error) {
	if !s.rankingService.IsRanked(ctx, date) {
		return "", fmt.Errorf("papers for %s have not been ranked yet; ask to rank them first", date)
	}

	emit(bus.Tool("Loading ranked papers for " + date))

	index, err := s.rankingService.Index(ctx, date)
	if err != nil {
		return "", err
	}

	top := index
	if len(top) > discussTopN {
		top = top[:discussTopN]
	}
	ids := make([]string, len(top))
	for i, e := range top {
		ids[i] = e.PaperID
	}

	details, err := s.rankingService.Details(ctx, date, ids)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(details)
	if err != nil {
		return "", fmt.Errorf("encode entries: %w", err)
	}

	emit(bus.Status(fmt.Sprintf("Discussing %d ranked papers for %s", len(details), date)))

	answer, err := s.provider.Chat(ctx, []llm.Message{
		{Role: "system", Content: constant.DiscussSystemPromptV1},
		{Role: "user", Content: fmt.Sprintf("RANKED ENTRIES:\n%s\n\nQUESTION: %s", payload, query)},
	})
	if err != nil {
		return "", fmt.Errorf("model transport: %w", err)
	}
	return answer, nil
}

// composeAnswer feeds the tool results back to the model for the final
// user-facing reply.
func (s *chatService) composeAnswer(ctx context.Context, history []llm.Message, toolText string, results []string, opts []llm.Option) (string, error) {
	followup := append(history,
		llm.Message{Role: "assistant", Content: toolText},
		llm.Message{Role: "user", Content: "TOOL RESULTS:\n" + strings.Join(results, "\n\n") +
			"\n\nUsing these results, answer the original request. Do not emit any more tool calls."},
	)

	answer, err := s.provider.Chat(ctx, followup, opts...)
	if err != nil {
		return "", fmt.Errorf("model transport: %w", err)
	}
	// A stray tool block in the wrap-up is dropped, never dispatched.
	if cleaned := stripToolBlocks(answer); cleaned != "" {
		return cleaned, nil
	}
	return answer, nil
}

func (s *chatService) buildHistory(ctx context.Context, sessionId uuid.UUID, query string) ([]llm.Message, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	recent, err := uow.ChatTurnRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: historyWindow},
	)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	history := make([]llm.Message, 0, len(recent)+2)
	history = append(history, llm.Message{Role: "system", Content: constant.ChatSystemPromptV1})
	// Turns arrive newest-first; replay them oldest-first.
	for i := len(recent) - 1; i >= 0; i-- {
		history = append(history, llm.Message{Role: recent[i].Role, Content: recent[i].Content})
	}
	history = append(history, llm.Message{Role: "user", Content: query})
	return history, nil
}

func stripToolBlocks(text string) string {
	for {
		start := strings.Index(text, "<tools>")
		if start < 0 {
			return strings.TrimSpace(text)
		}
		end := strings.Index(text[start:], "</tools>")
		if end < 0 {
			return strings.TrimSpace(text[:start])
		}
		text = text[:start] + text[start+end+len("</tools>"):]
	}
}
