package config

import (
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_DSN", "host=localhost user=test password=test dbname=test port=5432 sslmode=disable")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", cfg.APIPort)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}
	if cfg.RateLimitPerSec != 100 {
		t.Errorf("RateLimitPerSec = %d, want 100", cfg.RateLimitPerSec)
	}
	if cfg.BroadcastConcurrency != 8 {
		t.Errorf("BroadcastConcurrency = %d, want 8", cfg.BroadcastConcurrency)
	}
	if cfg.SendTimeoutSeconds != 15 {
		t.Errorf("SendTimeoutSeconds = %d, want 15", cfg.SendTimeoutSeconds)
	}
	if cfg.MetaGraphBaseURL != "https://graph.facebook.com/v19.0" {
		t.Errorf("MetaGraphBaseURL = %s, want the pinned Graph API base", cfg.MetaGraphBaseURL)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("API_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("RATE_LIMIT_PER_SEC", "250")
	t.Setenv("BROADCAST_CONCURRENCY", "32")
	t.Setenv("SEND_TIMEOUT_SECONDS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIPort != 9090 {
		t.Errorf("APIPort = %d, want 9090", cfg.APIPort)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}
	if cfg.RateLimitPerSec != 250 {
		t.Errorf("RateLimitPerSec = %d, want 250", cfg.RateLimitPerSec)
	}
	if cfg.BroadcastConcurrency != 32 {
		t.Errorf("BroadcastConcurrency = %d, want 32", cfg.BroadcastConcurrency)
	}
	if cfg.SendTimeoutSeconds != 5 {
		t.Errorf("SendTimeoutSeconds = %d, want 5", cfg.SendTimeoutSeconds)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_DSN", "host=localhost")

	_, err := Load()
	if err == nil {
		t.Fatal("expected an error when REDIS_URL is missing")
	}
}
