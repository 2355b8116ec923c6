package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Port            string   `env:"PORT" envDefault:"8080"`
	Env             string   `env:"ENV" envDefault:"dev"`
	LogLevel        string   `env:"LOG_LEVEL" envDefault:"info"`
	CORSAllowOrigin []string `env:"CORS_ALLOW_ORIGINS" envDefault:"*" envSeparator:","`
	DatabaseURL     string   `env:"DATABASE_URL"`
	RedisURL        string   `env:"REDIS_URL"`
	SQSQueueURL     string   `env:"RA_SQS_QUEUE_URL"`
	BootstrapAPIKey string   `env:"BOOTSTRAP_API_KEY"`

	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`
	DefaultMaxBulkSize int `env:"DEFAULT_MAX_BULK_SIZE" envDefault:"10"`
	DefaultMonthlyCap  int `env:"DEFAULT_MAX_PDFS_PER_MONTH" envDefault:"100"`

	Storage  StorageConfig
	Pipeline PipelineConfig
	Renderer RendererConfig
	Email    EmailConfig

	WebhookTimeout time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"10s"`
}

// StorageConfig selects and configures the object store for generated PDFs.
type StorageConfig struct {
	ObjectStoreType string        `env:"OBJECT_STORE" envDefault:"local"`
	LocalStoreDir   string        `env:"LOCAL_STORE_DIR" envDefault:"./data"`
	PublicBaseURL   string        `env:"PUBLIC_BASE_URL"`
	AWSRegion       string        `env:"AWS_REGION"`
	S3Bucket        string        `env:"S3_BUCKET"`
	S3Prefix        string        `env:"S3_PREFIX"`
	S3Endpoint      string        `env:"S3_ENDPOINT"`
	SSEKMSKeyID     string        `env:"SSE_KMS_KEY_ID"`
	S3AccessKeyID   string        `env:"S3_ACCESS_KEY_ID"`
	S3SecretKey     string        `env:"S3_SECRET_ACCESS_KEY"`
	URLExpiry       time.Duration `env:"S3_URL_EXPIRY" envDefault:"168h"`
}

// PipelineConfig tunes the generation run engine.
type PipelineConfig struct {
	MaxAttempts       int           `env:"PIPELINE_MAX_ATTEMPTS" envDefault:"3"`
	RenderConcurrency int           `env:"PIPELINE_RENDER_CONCURRENCY" envDefault:"10"`
	RetryDelay        time.Duration `env:"PIPELINE_RETRY_DELAY" envDefault:"1s"`
	RecoveryGrace     time.Duration `env:"PIPELINE_RECOVERY_GRACE" envDefault:"2m"`
}

// RendererConfig sizes the headless browser pool.
type RendererConfig struct {
	PoolSize   int           `env:"RENDERER_POOL_SIZE" envDefault:"2"`
	Timeout    time.Duration `env:"RENDERER_TIMEOUT" envDefault:"60s"`
	ChromePath string        `env:"CHROME_PATH"`
}

// EmailConfig configures SMTP delivery of completion emails.
type EmailConfig struct {
	Concurrency int    `env:"EMAIL_CONCURRENCY" envDefault:"5"`
	SMTPHost    string `env:"SMTP_HOST"`
	SMTPPort    int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser    string `env:"SMTP_USER"`
	SMTPPass    string `env:"SMTP_PASS"`
	From        string `env:"EMAIL_FROM" envDefault:"noreply@resume-pdf.local"`
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	// Best-effort load of local env files for dev convenience.
	for _, path := range []string{".env", "cmd/.env"} {
		if err := godotenv.Load(path); err != nil {
			var pathErr *os.PathError
			if !errors.As(err, &pathErr) {
				return Config{}, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.sanitize()
	return cfg, nil
}

// IsProduction reports whether the service runs in production.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) sanitize() {
	c.Env = normalizeEnv(c.Env)
	c.Storage.ObjectStoreType = normalizeStoreType(c.Storage.ObjectStoreType)
	c.CORSAllowOrigin = trimAll(c.CORSAllowOrigin)

	if c.RateLimitPerMinute <= 0 {
		c.RateLimitPerMinute = 60
	}
	if c.DefaultMaxBulkSize <= 0 {
		c.DefaultMaxBulkSize = 10
	}
	if c.DefaultMonthlyCap <= 0 {
		c.DefaultMonthlyCap = 100
	}
	if c.Pipeline.MaxAttempts <= 0 {
		c.Pipeline.MaxAttempts = 3
	}
	if c.Pipeline.RenderConcurrency <= 0 {
		c.Pipeline.RenderConcurrency = 10
	}
	if c.Pipeline.RetryDelay < 0 {
		c.Pipeline.RetryDelay = 0
	}
	if c.Renderer.PoolSize <= 0 {
		c.Renderer.PoolSize = 1
	}
	if c.Renderer.Timeout <= 0 {
		c.Renderer.Timeout = 60 * time.Second
	}
	if c.Email.Concurrency <= 0 {
		c.Email.Concurrency = 5
	}
	if c.Storage.URLExpiry <= 0 || c.Storage.URLExpiry > 7*24*time.Hour {
		c.Storage.URLExpiry = 7 * 24 * time.Hour
	}
	if c.WebhookTimeout <= 0 {
		c.WebhookTimeout = 10 * time.Second
	}
}

func trimAll(values []string) []string {
	var out []string
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}
