package main

import (
	"context"
	"flag"
	"log"
	"os"

	"ai-knowledgebase-be/internal/bootstrap"
	"ai-knowledgebase-be/internal/config"
	"ai-knowledgebase-be/internal/pkg/logger"
	"ai-knowledgebase-be/internal/repository/implementation"
	"ai-knowledgebase-be/internal/repository/unitofwork"
	"ai-knowledgebase-be/internal/service"
	"ai-knowledgebase-be/pkg/database"

	"github.com/fatih/color"
)

func main() {
	collection := flag.String("collection", "", "collection to scan (default: every collection)")
	fix := flag.Bool("fix", false, "delete parent records no child references")
	grace := flag.Duration("grace", 0, "skip unreferenced parents written within this window (default: INDEX_ORPHAN_GRACE)")
	flag.Parse()

	cfg := config.Load()
	if *grace <= 0 {
		*grace = cfg.Index.OrphanGrace
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, false)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}
	rdb := bootstrap.NewRedisClient(cfg.App.RedisURL)
	defer rdb.Close()

	svc := service.NewIntegrityService(
		unitofwork.NewRepositoryFactory(db),
		implementation.NewRedisParentStore(rdb),
		*grace,
		logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction()),
	)

	ctx := context.Background()
	collections := []string{*collection}
	if *collection == "" {
		collections, err = svc.Collections(ctx)
		if err != nil {
			log.Fatal("Error: Failed to list collections:", err)
		}
	}

	color.Cyan("🔍 INDEX INTEGRITY CHECK (%d collections)\n", len(collections))

	healthy := true
	for _, name := range collections {
		report, err := svc.Check(ctx, name, *fix)
		if err != nil {
			color.Red("[%s] check failed: %v", name, err)
			healthy = false
			continue
		}

		color.Yellow("\n[%s] %d children, %d parents", name, report.Children, report.Parents)
		if report.Healthy() {
			color.Green("    dangling children: 0")
		} else {
			healthy = false
			color.Red("    dangling children: %d (sources: %v)", len(report.Dangling), report.DanglingSources)
			for _, id := range report.Dangling {
				color.Red("      - %s", id)
			}
		}

		if len(report.Pending) > 0 {
			color.Cyan("    unreferenced within grace window: %d", len(report.Pending))
		}
		if len(report.Orphans) == 0 {
			color.Green("    orphaned parents: 0")
			continue
		}
		color.Yellow("    orphaned parents: %d", len(report.Orphans))
		if *fix {
			color.Green("    reclaimed: %d", report.Reclaimed)
		} else {
			color.Yellow("    run with -fix to reclaim them")
		}
	}

	if !healthy {
		os.Exit(1)
	}
}
