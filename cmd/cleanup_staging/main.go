package main

import (
	"flag"
	"log"
	"time"

	"ai-knowledgebase-be/internal/config"
	"ai-knowledgebase-be/internal/pkg/logger"
	"ai-knowledgebase-be/internal/service"
	"ai-knowledgebase-be/pkg/chunkstore"
)

func main() {
	cfg := config.Load()

	ttl := flag.Duration("ttl", cfg.Upload.StagingTTL, "remove staging directories untouched for longer than this")
	flag.Parse()

	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	defer sysLogger.Sync()

	janitor := service.NewJanitorService(chunkstore.New(cfg.Upload.RootDir), *ttl, 0, sysLogger)

	log.Printf("Sweeping %s (ttl %s)...", cfg.Upload.RootDir, *ttl)
	removed, err := janitor.SweepOnce(time.Now())
	if err != nil {
		log.Fatalf("Error: sweep failed: %v", err)
	}

	for _, fingerprint := range removed {
		log.Printf("  removed %s", fingerprint)
	}
	log.Printf("✅ Done: %d abandoned uploads removed", len(removed))
}
