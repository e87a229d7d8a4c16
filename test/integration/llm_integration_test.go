package integration

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"research-assistant-be/pkg/llm"
	"research-assistant-be/pkg/llm/factory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Exercises the real provider behind LLM_* env vars. Skipped unless a
// backend is reachable.
func TestProviderChat(t *testing.T) {
	baseURL := os.Getenv("LLM_BASE_URL")
	if baseURL == "" {
		t.Skip("Skipping integration test: LLM_BASE_URL not set")
	}

	providerType := os.Getenv("LLM_PROVIDER")
	if providerType == "" {
		providerType = "ollama"
	}
	model := os.Getenv("LLM_MODEL")
	if model == "" {
		model = "llama3"
	}

	provider, err := factory.NewLLMProvider(providerType, model, baseURL, os.Getenv("LLM_API_KEY"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	t.Run("Plain chat", func(t *testing.T) {
		reply, err := provider.Chat(ctx, []llm.Message{
			{Role: "user", Content: "Reply with the single word: pong"},
		}, llm.WithTemperature(0))
		require.NoError(t, err)
		assert.NotEmpty(t, reply)
	})

	t.Run("JSON output mode", func(t *testing.T) {
		reply, err := provider.Chat(ctx, []llm.Message{
			{Role: "system", Content: `Reply with a single JSON object: {"score": <integer 1-5>, "reason": "<short>"}`},
			{Role: "user", Content: "Score this paper a 3."},
		}, llm.WithJSONOutput(), llm.WithTemperature(0))
		require.NoError(t, err)

		var parsed struct {
			Score  int    `json:"score"`
			Reason string `json:"reason"`
		}
		require.NoError(t, json.Unmarshal([]byte(reply), &parsed))
		assert.GreaterOrEqual(t, parsed.Score, 1)
		assert.LessOrEqual(t, parsed.Score, 5)
	})
}
