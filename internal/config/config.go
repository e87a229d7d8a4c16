package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Ai        AIConfig
	Evaluator EvaluatorConfig
	Papers    PapersConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	APIKey             string // Static bearer key; empty disables auth (local dev)
	KeepaliveSeconds   int    // SSE keepalive while the orchestrator is busy
}

type DatabaseConfig struct {
	Connection string
}

type AIConfig struct {
	LLMProvider   string // "ollama" or "openai" (any OpenAI-compatible server)
	LLMModel      string // e.g. "llama3", "qwen2.5"
	LLMBaseURL    string
	LLMAPIKey     string
	ScorerModel   string // Override model for paper scoring; defaults to LLMModel
	RankerTimeout int    // Seconds per scoring call
}

type EvaluatorConfig struct {
	Workers int // Fixed worker budget for batch scoring
}

type PapersConfig struct {
	DailyPapersURL string // HuggingFace daily papers endpoint
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			APIKey:             getEnv("API_KEY", ""),
			KeepaliveSeconds:   getEnvAsInt("STREAM_KEEPALIVE_SECONDS", 5),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Ai: AIConfig{
			LLMProvider:   getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:      getEnv("LLM_MODEL", "llama3"),
			LLMBaseURL:    getEnv("LLM_BASE_URL", ""),
			LLMAPIKey:     getEnv("LLM_API_KEY", ""),
			ScorerModel:   getEnv("SCORER_MODEL", ""),
			RankerTimeout: getEnvAsInt("SCORER_TIMEOUT_SECONDS", 60),
		},
		Evaluator: EvaluatorConfig{
			Workers: getEnvAsInt("EVALUATOR_WORKERS", 4),
		},
		Papers: PapersConfig{
			DailyPapersURL: getEnv("DAILY_PAPERS_URL", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}
