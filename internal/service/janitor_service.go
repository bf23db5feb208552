// FILE: internal/service/janitor_service.go
package service

import (
	"context"
	"time"

	"ai-knowledgebase-be/internal/pkg/logger"
	"ai-knowledgebase-be/pkg/chunkstore"
)

const janitorModule = "janitor"

// IJanitorService garbage-collects staging directories of abandoned uploads.
type IJanitorService interface {
	SweepOnce(now time.Time) ([]string, error)
	Run(ctx context.Context)
}

type janitorService struct {
	store    *chunkstore.Store
	ttl      time.Duration
	interval time.Duration
	logger   logger.ILogger
}

func NewJanitorService(store *chunkstore.Store, ttl, interval time.Duration, log logger.ILogger) IJanitorService {
	return &janitorService{
		store:    store,
		ttl:      ttl,
		interval: interval,
		logger:   log,
	}
}

func (s *janitorService) SweepOnce(now time.Time) ([]string, error) {
	removed, err := s.store.Sweep(s.ttl, now)
	if err != nil {
		s.logger.Error(janitorModule, "Staging sweep failed", map[string]interface{}{
			"error": err.Error(),
		})
		return removed, err
	}
	if len(removed) > 0 {
		s.logger.Info(janitorModule, "Abandoned uploads removed", map[string]interface{}{
			"fingerprints": removed,
		})
	}
	return removed, nil
}

// Run sweeps every interval until ctx is cancelled.
func (s *janitorService) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.SweepOnce(now)
		}
	}
}
