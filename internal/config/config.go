package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Snapshot store backends
const (
	SnapshotStoreFile     = "file"
	SnapshotStoreS3       = "s3"
	SnapshotStorePostgres = "postgres"
	SnapshotStoreNone     = "none"
)

type Config struct {
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`

	DatabaseURL string `envconfig:"DATABASE_URL"`
	RedisURL    string `envconfig:"REDIS_URL"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL       string `envconfig:"OPENAI_BASE_URL"`
	ChatModel           string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`

	LLMRequestsPerSecond float64       `envconfig:"LLM_REQUESTS_PER_SECOND" default:"5"`
	LLMBurst             int           `envconfig:"LLM_BURST" default:"5"`
	BreakerMaxFailures   uint32        `envconfig:"BREAKER_MAX_FAILURES" default:"3"`
	BreakerTimeout       time.Duration `envconfig:"BREAKER_TIMEOUT" default:"30s"`

	ConfidenceThreshold float64       `envconfig:"CONFIDENCE_THRESHOLD" default:"0.70"`
	RetrievalK          int           `envconfig:"RETRIEVAL_K" default:"3"`
	RetrievalThreshold  float32       `envconfig:"RETRIEVAL_THRESHOLD" default:"1.2"`
	ClassifyTimeout     time.Duration `envconfig:"CLASSIFY_TIMEOUT" default:"20s"`
	GenerateTimeout     time.Duration `envconfig:"GENERATE_TIMEOUT" default:"30s"`

	CorpusPath           string        `envconfig:"CORPUS_PATH" default:"knowledge_base.yaml"`
	SnapshotStore        string        `envconfig:"SNAPSHOT_STORE" default:"file"`
	SnapshotPath         string        `envconfig:"SNAPSHOT_PATH" default:".supportiq"`
	IndexRefreshInterval time.Duration `envconfig:"INDEX_REFRESH_INTERVAL" default:"0"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"supportiq-index"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Prefix    string `envconfig:"S3_PREFIX"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("SUPPORTIQ", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate checks ranges and cross-field requirements
func (c *Config) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be within [0,1], got %v", c.ConfidenceThreshold)
	}
	if c.RetrievalK <= 0 {
		return fmt.Errorf("RETRIEVAL_K must be positive, got %d", c.RetrievalK)
	}
	if c.RetrievalThreshold < 0 {
		return fmt.Errorf("RETRIEVAL_THRESHOLD must not be negative, got %v", c.RetrievalThreshold)
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be positive, got %d", c.EmbeddingDimensions)
	}
	if c.ClassifyTimeout <= 0 || c.GenerateTimeout <= 0 {
		return fmt.Errorf("CLASSIFY_TIMEOUT and GENERATE_TIMEOUT must be positive")
	}
	if c.IndexRefreshInterval < 0 {
		return fmt.Errorf("INDEX_REFRESH_INTERVAL must not be negative")
	}

	switch c.SnapshotStore {
	case SnapshotStoreFile, SnapshotStoreNone:
	case SnapshotStoreS3:
		if !c.HasS3() {
			return fmt.Errorf("SNAPSHOT_STORE=s3 requires S3_ENDPOINT, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY")
		}
	case SnapshotStorePostgres:
		if !c.HasDatabase() {
			return fmt.Errorf("SNAPSHOT_STORE=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown SNAPSHOT_STORE %q", c.SnapshotStore)
	}

	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

func (c *Config) HasRedis() bool {
	return c.RedisURL != ""
}
