package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ai-knowledgebase-be/internal/bootstrap"
	"ai-knowledgebase-be/internal/config"
	"ai-knowledgebase-be/internal/model"
	"ai-knowledgebase-be/internal/server"
	"ai-knowledgebase-be/internal/tracer"
	"ai-knowledgebase-be/pkg/database"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 0. Initialize Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer(cfg.Tracing)
	defer shutdownTracer(context.Background())

	// 2. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection, cfg.Database.Verbose)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}
	if err := database.Migrate(gormDB, model.All()...); err != nil {
		log.Panicf("Unable to migrate knowledgebase tables: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Start Background Services
	if err := container.OrphanService.Consume(ctx); err != nil {
		log.Printf("Background Orphan Consumer Error: %v", err)
	}
	go container.JanitorService.Run(ctx)

	// 5. Initialize Server
	srv := server.New(cfg, container)

	go func() {
		<-ctx.Done()
		log.Println("Shutting down server...")
		if err := srv.Shutdown(); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// 6. Run Server
	if err := srv.Run(); err != nil {
		log.Printf("Server stopped: %v", err)
	}
}
