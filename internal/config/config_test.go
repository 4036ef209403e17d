package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("STATE_BACKEND", "")
	t.Setenv("BOOKING_COMMIT_MAX_ATTEMPTS", "")
	t.Setenv("EXTRACTOR_TIMEOUT", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.StateBackend != "redis" {
		t.Fatalf("expected redis state backend by default, got %s", cfg.StateBackend)
	}
	if cfg.BookingCommitMaxAttempts != 3 {
		t.Fatalf("expected 3 commit attempts by default, got %d", cfg.BookingCommitMaxAttempts)
	}
	if cfg.ExtractorTimeout != 8*time.Second {
		t.Fatalf("expected default extractor timeout, got %s", cfg.ExtractorTimeout)
	}
	if cfg.DialogueStateTTL != 7*24*time.Hour {
		t.Fatalf("expected default state ttl, got %s", cfg.DialogueStateTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("STATE_BACKEND", " DynamoDB ")
	t.Setenv("LLM_PROVIDER", "Bedrock")
	t.Setenv("EXTRACTOR_TIMEOUT", "3s")
	t.Setenv("BOOKING_COMMIT_MAX_ATTEMPTS", "5")
	t.Setenv("USE_MEMORY_STORES", "true")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Fatalf("expected env override, got %s", cfg.Env)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.StateBackend != "dynamodb" {
		t.Fatalf("expected normalized state backend, got %q", cfg.StateBackend)
	}
	if cfg.LLMProvider != "bedrock" {
		t.Fatalf("expected normalized llm provider, got %q", cfg.LLMProvider)
	}
	if cfg.ExtractorTimeout != 3*time.Second {
		t.Fatalf("expected extractor timeout override, got %s", cfg.ExtractorTimeout)
	}
	if cfg.BookingCommitMaxAttempts != 5 {
		t.Fatalf("expected commit attempts override, got %d", cfg.BookingCommitMaxAttempts)
	}
	if !cfg.UseMemoryStores {
		t.Fatalf("expected memory stores enabled")
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Fatalf("expected rate limit override, got %v", cfg.RateLimitRPS)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("WORKER_COUNT", "many")
	t.Setenv("DIALOGUE_STATE_TTL", "forever")
	cfg := Load()
	if cfg.WorkerCount != 2 {
		t.Fatalf("expected fallback worker count, got %d", cfg.WorkerCount)
	}
	if cfg.DialogueStateTTL != 7*24*time.Hour {
		t.Fatalf("expected fallback ttl, got %s", cfg.DialogueStateTTL)
	}
}
