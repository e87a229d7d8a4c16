package unitofwork

import (
	"context"

	"research-assistant-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ChatSessionRepository() contract.ChatSessionRepository
	ChatTurnRepository() contract.ChatTurnRepository
	PaperRepository() contract.PaperRepository
	PaperRankingRepository() contract.PaperRankingRepository
	ArtifactRepository() contract.ArtifactRepository
}
