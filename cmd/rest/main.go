package main

import (
	"context"
	"log"

	"research-assistant-be/internal/bootstrap"
	"research-assistant-be/internal/config"
	"research-assistant-be/internal/server"
	"research-assistant-be/internal/tracer"
	"research-assistant-be/pkg/database"

	"github.com/fatih/color"
)

func main() {
	// 0. Initialize Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)
	defer func() {
		container.SessionBus.Close()
		if container.NatsPub != nil {
			container.NatsPub.Close()
		}
		if container.NatsSub != nil {
			container.NatsSub.Close()
		}
		container.Logger.Sync()
	}()

	// 4. Start Background Services
	go func() {
		log.Println("Background: Starting Consumer Service...")
		if err := container.ConsumerService.Consume(context.Background()); err != nil {
			log.Printf("Background Consumer Error: %v", err)
		}
	}()

	color.Cyan("Research Assistant Backend")
	color.Green("env=%s port=%s llm=%s/%s", cfg.App.Environment, cfg.App.Port, cfg.Ai.LLMProvider, cfg.Ai.LLMModel)
	if cfg.App.APIKey == "" {
		color.Yellow("API key auth disabled (API_KEY empty)")
	}

	// 5. Initialize Server
	srv := server.New(cfg, container)

	// 6. Run Server
	log.Fatal(srv.Run())
}
