package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"pdfsearcher"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"pdfsearcher"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	EnableAPI            bool   `envconfig:"ENABLE_API" default:"true"`
	EnableEmbedderWorker bool   `envconfig:"ENABLE_EMBEDDER_WORKER" default:"false"`
	MigrationPath        string `envconfig:"MIGRATION_PATH" default:"file://migrations"`
	GeminiAPIKey         string `envconfig:"GEMINI_API_KEY"`

	// Server
	ServerPort int `envconfig:"SERVER_PORT" default:"8081"`

	// Similarity pipeline defaults. Callers may override per request.
	Stage0TopK           int     `envconfig:"STAGE0_TOP_K" default:"600"`
	Stage1TopK           int     `envconfig:"STAGE1_TOP_K" default:"250"`
	Stage2Workers        int     `envconfig:"STAGE2_WORKERS" default:"2"`
	CosineThreshold      float64 `envconfig:"COSINE_THRESHOLD" default:"0.90"`
	JaccardThreshold     float64 `envconfig:"JACCARD_THRESHOLD" default:"0.60"`
	MinScore             float64 `envconfig:"MIN_SCORE" default:"0"`
	SearchTimeoutSeconds int     `envconfig:"SEARCH_TIMEOUT_SECONDS" default:"120"`

	// Vector cleanup retry policy.
	CleanupMaxAttempts      int `envconfig:"CLEANUP_MAX_ATTEMPTS" default:"5"`
	CleanupBaseDelaySeconds int `envconfig:"CLEANUP_BASE_DELAY_SECONDS" default:"2"`
	CleanupMaxDelaySeconds  int `envconfig:"CLEANUP_MAX_DELAY_SECONDS" default:"300"`
	CleanupFailureHistory   int `envconfig:"CLEANUP_FAILURE_HISTORY" default:"50"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Try loading .env from current dir and repo root.
	// Ignore errors, as env vars might be set in the shell.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.Stage0TopK <= 0 || c.Stage1TopK <= 0 {
		return fmt.Errorf("%w: stage topK values must be positive", ErrMissingRequired)
	}
	if c.Stage2Workers <= 0 {
		return fmt.Errorf("%w: STAGE2_WORKERS must be positive", ErrMissingRequired)
	}
	if c.CosineThreshold < 0 || c.CosineThreshold > 1 {
		return fmt.Errorf("%w: COSINE_THRESHOLD must be within [0,1]", ErrMissingRequired)
	}
	return nil
}
