package bootstrap

import (
	"context"
	"log"
	"time"

	"ai-knowledgebase-be/internal/config"
	"ai-knowledgebase-be/internal/controller"
	"ai-knowledgebase-be/internal/pkg/logger"
	"ai-knowledgebase-be/internal/repository/contract"
	"ai-knowledgebase-be/internal/repository/implementation"
	"ai-knowledgebase-be/internal/repository/memory"
	"ai-knowledgebase-be/internal/repository/unitofwork"
	"ai-knowledgebase-be/internal/service"
	"ai-knowledgebase-be/pkg/chunkstore"
	"ai-knowledgebase-be/pkg/embedding"
	"ai-knowledgebase-be/pkg/loader"
	"ai-knowledgebase-be/pkg/merge"

	pktNats "ai-knowledgebase-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const orphanRetryDelay = 5 * time.Second

type Container struct {
	// Controllers
	KnowledgebaseController controller.IKnowledgebaseController

	// Background Services (Exposed for main.go to run)
	OrphanService  service.IOrphanService
	JanitorService service.IJanitorService

	Logger      *logger.ZapLogger
	ParentStore contract.ParentStore

	closers []func()
}

// NewRedisClient accepts either a redis:// URL or a bare host:port.
func NewRedisClient(redisURL string) *redis.Client {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: redisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}
	return rdb
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	orphanLogger := logger.NewIsolatedLogger(cfg.App.OrphanLogFilePath)

	// 2. Stores
	rdb := NewRedisClient(cfg.App.RedisURL)
	parentStore := implementation.NewRedisParentStore(rdb)
	chunkStore := chunkstore.New(cfg.Upload.RootDir)
	collectionCache := memory.NewCollectionCache(cfg.Index.CacheTTL)

	// 3. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	var publisherService service.IPublisherService = service.NewNopPublisherService()
	closers := []func(){func() { pubSub.Close() }, func() { rdb.Close() }}
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		}
		if natsPub != nil {
			publisherService = natsPub
			closers = append(closers, natsPub.Close)
		}
	}

	// 4. Embedding Provider
	embeddingProvider, err := embedding.NewProvider(embedding.ProviderConfig{
		Provider: cfg.Ai.EmbeddingProvider,
		BaseURL:  cfg.Ai.EmbeddingBaseURL,
		Model:    cfg.Ai.EmbeddingModel,
		ApiKey:   cfg.Ai.EmbeddingApiKey,
		Retry: embedding.RetryConfig{
			Attempts: cfg.Ai.RetryAttempts,
			Delay:    cfg.Ai.RetryDelay,
			MaxDelay: cfg.Ai.RetryMaxDelay,
		},
	})
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize Embedding Provider: %v", err)
	}
	log.Printf("[INFO] Using Embedding Provider: %s", cfg.Ai.EmbeddingProvider)

	// 5. Services
	orphanService := service.NewOrphanService(pubSub, pubSub, parentStore, orphanLogger, orphanRetryDelay)
	indexerService := service.NewIndexerService(
		uowFactory,
		parentStore,
		embeddingProvider,
		orphanService,
		publisherService,
		collectionCache,
		sysLogger,
		cfg.Index,
	)
	ingestionService := service.NewIngestionService(loader.New(sysLogger), indexerService, sysLogger)
	uploadService := service.NewUploadService(
		chunkStore,
		merge.NewEngine(chunkStore, sysLogger),
		ingestionService,
		sysLogger,
		cfg.Upload,
		cfg.Index.DefaultCollection,
	)
	knowledgebaseService := service.NewKnowledgebaseService(
		uowFactory,
		parentStore,
		indexerService,
		publisherService,
		collectionCache,
		sysLogger,
	)
	janitorService := service.NewJanitorService(chunkStore, cfg.Upload.StagingTTL, cfg.Upload.JanitorInterval, sysLogger)

	// 6. Controllers
	return &Container{
		KnowledgebaseController: controller.NewKnowledgebaseController(uploadService, knowledgebaseService),
		OrphanService:           orphanService,
		JanitorService:          janitorService,
		Logger:                  sysLogger,
		ParentStore:             parentStore,
		closers:                 closers,
	}
}

// Close releases broker and store connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.Logger.Sync()
}
