package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	unsetEnv(t, "ENV", "OBJECT_STORE", "PORT", "PIPELINE_MAX_ATTEMPTS", "PIPELINE_RENDER_CONCURRENCY",
		"EMAIL_CONCURRENCY", "WEBHOOK_TIMEOUT", "DEFAULT_MAX_BULK_SIZE")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %q", cfg.Port)
	}
	if cfg.Env != "dev" {
		t.Fatalf("expected dev env, got %q", cfg.Env)
	}
	if cfg.Pipeline.MaxAttempts != 3 || cfg.Pipeline.RenderConcurrency != 10 {
		t.Fatalf("unexpected pipeline defaults: %+v", cfg.Pipeline)
	}
	if cfg.Email.Concurrency != 5 {
		t.Fatalf("expected email concurrency 5, got %d", cfg.Email.Concurrency)
	}
	if cfg.WebhookTimeout != 10*time.Second {
		t.Fatalf("expected webhook timeout 10s, got %s", cfg.WebhookTimeout)
	}
	if cfg.DefaultMaxBulkSize != 10 {
		t.Fatalf("expected bulk size 10, got %d", cfg.DefaultMaxBulkSize)
	}
	if cfg.Storage.ObjectStoreType != "local" {
		t.Fatalf("expected local store, got %q", cfg.Storage.ObjectStoreType)
	}
}

func TestLoadOverridesAndSanitizes(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENV", "prod")
	t.Setenv("OBJECT_STORE", "S3")
	t.Setenv("PIPELINE_MAX_ATTEMPTS", "0")
	t.Setenv("PIPELINE_RENDER_CONCURRENCY", "4")
	t.Setenv("CORS_ALLOW_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.IsProduction() {
		t.Fatalf("expected production, got %q", cfg.Env)
	}
	if cfg.Storage.ObjectStoreType != "s3" {
		t.Fatalf("expected s3, got %q", cfg.Storage.ObjectStoreType)
	}
	if cfg.Pipeline.MaxAttempts != 3 {
		t.Fatalf("expected sanitized attempts 3, got %d", cfg.Pipeline.MaxAttempts)
	}
	if cfg.Pipeline.RenderConcurrency != 4 {
		t.Fatalf("expected concurrency 4, got %d", cfg.Pipeline.RenderConcurrency)
	}
	if len(cfg.CORSAllowOrigin) != 2 || cfg.CORSAllowOrigin[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %v", cfg.CORSAllowOrigin)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := writeFile(dir+"/.env", "PORT=9191\n"); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	unsetEnv(t, "PORT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9191" {
		t.Fatalf("expected port from .env, got %q", cfg.Port)
	}
}
