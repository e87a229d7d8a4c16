package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"research-assistant-be/internal/constant"
	"research-assistant-be/internal/entity"
	"research-assistant-be/internal/pkg/logger"
	"research-assistant-be/internal/repository/specification"
	"research-assistant-be/internal/repository/unitofwork"
	"research-assistant-be/pkg/llm"
	"research-assistant-be/pkg/store"

	"github.com/google/uuid"
)

// GithubSummarizer is the external collaborator that turns a GitHub
// profile URL into a text summary of the user's public work.
type GithubSummarizer interface {
	Summarize(ctx context.Context, profileURL string) (string, error)
}

// llmGithubSummarizer asks the chat model for the summary. It stands in
// for a dedicated crawler collaborator behind the same interface.
type llmGithubSummarizer struct {
	provider llm.LLMProvider
}

func NewLLMGithubSummarizer(provider llm.LLMProvider) GithubSummarizer {
	return &llmGithubSummarizer{provider: provider}
}

func (s *llmGithubSummarizer) Summarize(ctx context.Context, profileURL string) (string, error) {
	prompt := fmt.Sprintf(
		"Summarize the research and engineering focus suggested by the GitHub profile %s. "+
			"If you cannot know specifics, describe what the URL and username imply. Under 200 words.",
		profileURL,
	)
	return s.provider.Generate(ctx, prompt)
}

// IProfileService owns profile onboarding: reading the seed document,
// collecting the GitHub summary, and synthesizing the enriched research
// profile. State transitions are driven by stored artifacts, so the
// machine survives restarts.
type IProfileService interface {
	ReadSeedFile(ctx context.Context, sess *store.Session, filePath string) (string, error)
	SummarizeGithub(ctx context.Context, sess *store.Session, profileURL string) (string, error)
	SynthesizeProfile(ctx context.Context, sess *store.Session, profilePath string) (string, error)

	// ResearchProfile returns the best available profile text for a user:
	// the synthesized profile when present, the raw seed otherwise. The
	// second return reports whether any profile exists at all.
	ResearchProfile(ctx context.Context, userKey string) (string, bool)

	// RestoreState rebuilds a session's profile state from stored
	// artifacts, used when the in-memory session was evicted.
	RestoreState(ctx context.Context, sess *store.Session)
}

type profileService struct {
	uowFactory unitofwork.RepositoryFactory
	provider   llm.LLMProvider
	summarizer GithubSummarizer
	logger     logger.ILogger
}

func NewProfileService(
	uowFactory unitofwork.RepositoryFactory,
	provider llm.LLMProvider,
	summarizer GithubSummarizer,
	log logger.ILogger,
) IProfileService {
	return &profileService{
		uowFactory: uowFactory,
		provider:   provider,
		summarizer: summarizer,
		logger:     log,
	}
}

func (s *profileService) ReadSeedFile(ctx context.Context, sess *store.Session, filePath string) (string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("read profile file: %w", err)
	}

	if err := s.saveArtifact(ctx, sess.UserID, constant.ArtifactKeySeedProfile, string(content)); err != nil {
		return "", err
	}

	sess.SeedProfilePath = filePath
	sess.ProfileState = store.ProfileStateRead
	s.logger.Info("ProfileService", "Seed profile read", map[string]interface{}{
		"user_key": sess.UserID, "path": filePath, "bytes": len(content),
	})
	return string(content), nil
}

func (s *profileService) SummarizeGithub(ctx context.Context, sess *store.Session, profileURL string) (string, error) {
	sess.ProfileState = store.ProfileStateGithub

	summary, err := s.summarizer.Summarize(ctx, profileURL)
	if err != nil {
		return "", fmt.Errorf("summarize github: %w", err)
	}

	if err := s.saveArtifact(ctx, sess.UserID, constant.ArtifactKeyGithubSummary, summary); err != nil {
		return "", err
	}

	s.logger.Info("ProfileService", "GitHub profile summarized", map[string]interface{}{
		"user_key": sess.UserID, "url": profileURL,
	})
	return summary, nil
}

func (s *profileService) SynthesizeProfile(ctx context.Context, sess *store.Session, profilePath string) (string, error) {
	seed, ok := s.loadArtifact(ctx, sess.UserID, constant.ArtifactKeySeedProfile)
	if !ok {
		// The seed may not have gone through read_file yet; fall back to
		// the path given in the call.
		content, err := os.ReadFile(profilePath)
		if err != nil {
			return "", fmt.Errorf("no seed profile on record and %q unreadable: %w", profilePath, err)
		}
		seed = string(content)
		if err := s.saveArtifact(ctx, sess.UserID, constant.ArtifactKeySeedProfile, seed); err != nil {
			return "", err
		}
	}

	github, _ := s.loadArtifact(ctx, sess.UserID, constant.ArtifactKeyGithubSummary)

	material := "SEED PROFILE:\n" + seed
	if github != "" {
		material += "\n\nGITHUB SUMMARY:\n" + github
	}

	profile, err := s.provider.Chat(ctx, []llm.Message{
		{Role: "system", Content: constant.SynthesizePromptV1},
		{Role: "user", Content: material},
	})
	if err != nil {
		return "", fmt.Errorf("synthesize profile: %w", err)
	}

	if err := s.saveArtifact(ctx, sess.UserID, constant.ArtifactKeyResearchProfile, profile); err != nil {
		return "", err
	}

	sess.ProfileState = store.ProfileStateSynthesized
	s.logger.Info("ProfileService", "Research profile synthesized", map[string]interface{}{
		"user_key": sess.UserID, "chars": len(profile),
	})
	return profile, nil
}

func (s *profileService) ResearchProfile(ctx context.Context, userKey string) (string, bool) {
	if profile, ok := s.loadArtifact(ctx, userKey, constant.ArtifactKeyResearchProfile); ok {
		return profile, true
	}
	if seed, ok := s.loadArtifact(ctx, userKey, constant.ArtifactKeySeedProfile); ok {
		return seed, true
	}
	return "", false
}

func (s *profileService) RestoreState(ctx context.Context, sess *store.Session) {
	if _, ok := s.loadArtifact(ctx, sess.UserID, constant.ArtifactKeyResearchProfile); ok {
		sess.ProfileState = store.ProfileStateSynthesized
		return
	}
	if _, ok := s.loadArtifact(ctx, sess.UserID, constant.ArtifactKeySeedProfile); ok {
		sess.ProfileState = store.ProfileStateRead
		return
	}
	sess.ProfileState = store.ProfileStateNone
}

func (s *profileService) saveArtifact(ctx context.Context, userKey, key, content string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	now := time.Now()
	err := uow.ArtifactRepository().Upsert(ctx, &entity.Artifact{
		Id:           uuid.New(),
		UserKey:      userKey,
		Key:          key,
		ArtifactType: constant.ArtifactTypeProfile,
		Content:      content,
		CreatedAt:    now,
		UpdatedAt:    &now,
	})
	if err != nil {
		return fmt.Errorf("store artifact %s: %w", key, err)
	}
	return nil
}

func (s *profileService) loadArtifact(ctx context.Context, userKey, key string) (string, bool) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	artifact, err := uow.ArtifactRepository().FindOne(ctx,
		specification.ByUserKey{UserKey: userKey},
		specification.ByArtifactKey{Key: key},
	)
	if err != nil {
		s.logger.Warn("ProfileService", "Artifact lookup failed", map[string]interface{}{
			"user_key": userKey, "key": key, "error": err.Error(),
		})
		return "", false
	}
	if artifact == nil {
		return "", false
	}
	return artifact.Content, true
}
