package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Index    IndexConfig
	Ai       AIConfig
	Auth     AuthConfig
	Tracing  TracingConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	OrphanLogFilePath  string
	CorsAllowedOrigins string
	NatsURL            string // empty disables lifecycle events
	RedisURL           string
	BodyLimit          int // bytes
}

type DatabaseConfig struct {
	Connection string
	Verbose    bool
}

type UploadConfig struct {
	RootDir         string
	MaxFiles        int
	MaxFileSize     int64
	StagingTTL      time.Duration
	JanitorInterval time.Duration
}

type IndexConfig struct {
	DefaultCollection string
	ParentChunkSize   int
	ParentOverlap     int
	ChildChunkSize    int
	ChildOverlap      int
	ChildK            int
	ParentK           int
	EmbedConcurrency  int
	CacheTTL          time.Duration
	// OrphanGrace keeps freshly written parents out of orphan reclamation.
	OrphanGrace       time.Duration
}

type AIConfig struct {
	EmbeddingProvider string // "ollama", "gemini" or "openai"
	EmbeddingBaseURL  string
	EmbeddingModel    string
	EmbeddingApiKey   string
	RetryAttempts     uint
	RetryDelay        time.Duration
	RetryMaxDelay     time.Duration
}

type AuthConfig struct {
	JwtSecret string // empty leaves the API open
}

type TracingConfig struct {
	Enabled     bool
	ServiceName string
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			OrphanLogFilePath:  getEnv("ORPHAN_LOG_FILE_PATH", "logs/orphans.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			BodyLimit:          getEnvAsInt("APP_BODY_LIMIT", 60*1024*1024),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
			Verbose:    getEnvAsBool("DB_VERBOSE", false),
		},
		Upload: UploadConfig{
			RootDir:         getEnv("UPLOAD_ROOT_DIR", "uploads"),
			MaxFiles:        getEnvAsInt("UPLOAD_MAX_FILES", 10),
			MaxFileSize:     int64(getEnvAsInt("UPLOAD_MAX_FILE_SIZE", 5*1024*1024)),
			StagingTTL:      getEnvAsDuration("UPLOAD_STAGING_TTL", 24*time.Hour),
			JanitorInterval: getEnvAsDuration("UPLOAD_JANITOR_INTERVAL", time.Hour),
		},
		Index: IndexConfig{
			DefaultCollection: getEnv("INDEX_DEFAULT_COLLECTION", "default"),
			ParentChunkSize:   getEnvAsInt("INDEX_PARENT_CHUNK_SIZE", 1000),
			ParentOverlap:     getEnvAsInt("INDEX_PARENT_OVERLAP", 200),
			ChildChunkSize:    getEnvAsInt("INDEX_CHILD_CHUNK_SIZE", 200),
			ChildOverlap:      getEnvAsInt("INDEX_CHILD_OVERLAP", 50),
			ChildK:            getEnvAsInt("INDEX_CHILD_K", 20),
			ParentK:           getEnvAsInt("INDEX_PARENT_K", 10),
			EmbedConcurrency:  getEnvAsInt("INDEX_EMBED_CONCURRENCY", 4),
			CacheTTL:          getEnvAsDuration("INDEX_CACHE_TTL", 5*time.Minute),
			OrphanGrace:       getEnvAsDuration("INDEX_ORPHAN_GRACE", 15*time.Minute),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			EmbeddingBaseURL:  getEnv("EMBEDDING_BASE_URL", ""),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", ""),
			EmbeddingApiKey:   getEnv("EMBEDDING_API_KEY", getEnv("GOOGLE_GEMINI_API_KEY", "")),
			RetryAttempts:     uint(getEnvAsInt("EMBEDDING_RETRY_ATTEMPTS", 3)),
			RetryDelay:        getEnvAsDuration("EMBEDDING_RETRY_DELAY", 200*time.Millisecond),
			RetryMaxDelay:     getEnvAsDuration("EMBEDDING_RETRY_MAX_DELAY", 2*time.Second),
		},
		Auth: AuthConfig{
			JwtSecret: getEnv("JWT_SECRET", ""),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "ai-knowledgebase-be"),
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

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
