package integration

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"research-assistant-be/internal/entity"
	"research-assistant-be/internal/repository/specification"
	"research-assistant-be/internal/repository/unitofwork"
	"research-assistant-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormConnection(t *testing.T) {
	// Load .env from root
	err := godotenv.Load("../../.env")
	if err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}

	// Verify Wiring
	uowFactory := unitofwork.NewRepositoryFactory(gormDB)
	uow := uowFactory.NewUnitOfWork(context.Background())

	assert.NotNil(t, uow.ChatSessionRepository())
	assert.NotNil(t, uow.PaperRankingRepository())

	// Basic Ping
	sqlDB, _ := gormDB.DB()
	err = sqlDB.Ping()
	assert.NoError(t, err)
	t.Log("Successfully connected to DB and initialized UnitOfWork Factory")

	t.Run("Session and turn round trip", func(t *testing.T) {
		ctx := context.Background()
		key := "it-" + uuid.NewString()

		session := &entity.ChatSession{
			Id:         uuid.New(),
			SessionKey: key,
			CreatedAt:  time.Now(),
		}
		require.NoError(t, uow.ChatSessionRepository().Create(ctx, session))

		found, err := uow.ChatSessionRepository().FindOne(ctx, specification.BySessionKey{SessionKey: key})
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, session.Id, found.Id)

		require.NoError(t, uow.ChatTurnRepository().Create(ctx, &entity.ChatTurn{
			Id:            uuid.New(),
			ChatSessionId: session.Id,
			Role:          "user",
			Content:       "hello",
			CreatedAt:     time.Now(),
		}))

		turns, err := uow.ChatTurnRepository().FindAll(ctx, specification.ByChatSessionID{ChatSessionID: session.Id})
		require.NoError(t, err)
		assert.Len(t, turns, 1)

		// Cleanup
		assert.NoError(t, uow.ChatTurnRepository().DeleteAllBySessionId(ctx, session.Id))
		assert.NoError(t, uow.ChatSessionRepository().Delete(ctx, session.Id))
	})

	t.Run("Ranking replace is idempotent per date", func(t *testing.T) {
		ctx := context.Background()
		date := "1999-01-01"

		replace := func(rows []*entity.PaperRanking) {
			t.Helper()
			u := uowFactory.NewUnitOfWork(ctx)
			require.NoError(t, u.Begin(ctx))
			if err := u.PaperRankingRepository().ReplaceForDate(ctx, date, rows); err != nil {
				_ = u.Rollback()
				t.Fatalf("ReplaceForDate: %v", err)
			}
			require.NoError(t, u.Commit())
		}

		replace([]*entity.PaperRanking{
			{Id: uuid.New(), Date: date, PaperKey: "x.1", Title: "A", Score: 5, Position: 0, CreatedAt: time.Now()},
			{Id: uuid.New(), Date: date, PaperKey: "x.2", Title: "B", Score: 3, Position: 1, CreatedAt: time.Now()},
		})

		replace([]*entity.PaperRanking{
			{Id: uuid.New(), Date: date, PaperKey: "x.3", Title: "C", Score: 4, Position: 0, CreatedAt: time.Now()},
		})

		stored, err := uow.PaperRankingRepository().FindAll(ctx, specification.ByDate{Date: date})
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, "x.3", stored[0].PaperKey)

		// Cleanup
		replace(nil)
	})
}
