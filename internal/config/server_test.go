package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoadServerDefaults(t *testing.T) {
	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if cfg.ListenAddr != ":4000" {
		t.Fatalf("ListenAddr = %q, want :4000", cfg.ListenAddr)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.StoreBackend != StoreFile {
		t.Fatalf("StoreBackend = %q, want file", cfg.StoreBackend)
	}
	if !cfg.StartingBalance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("StartingBalance = %s, want 100", cfg.StartingBalance)
	}
	if !cfg.BigWinThreshold.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("BigWinThreshold = %s, want 100", cfg.BigWinThreshold)
	}
	if !cfg.PotPlayerCreate || !cfg.WSEnabled || !cfg.MCPEnabled {
		t.Fatalf("unexpected feature flags: %+v", cfg)
	}
}

func TestLoadServerOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("STARTING_BALANCE", "250.50")
	t.Setenv("POT_SCHEDULE", "0 * * * *")
	t.Setenv("POT_SCHEDULE_DURATION", "30m")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if !cfg.StartingBalance.Equal(decimal.RequireFromString("250.5")) {
		t.Fatalf("StartingBalance = %s, want 250.5", cfg.StartingBalance)
	}
	if cfg.PotSchedule != "0 * * * *" || cfg.PotScheduleDuration != 30*time.Minute {
		t.Fatalf("unexpected pot schedule: %+v", cfg)
	}
}

func TestLoadServerRequiresBackendSettings(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgres")
	if _, err := LoadServer(); err == nil {
		t.Fatal("expected error without POSTGRES_DSN")
	}

	t.Setenv("STORE_BACKEND", "mongo")
	if _, err := LoadServer(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestLoadServerRejectsBadBalance(t *testing.T) {
	t.Setenv("STARTING_BALANCE", "lots")
	if _, err := LoadServer(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadServerEventPush(t *testing.T) {
	t.Setenv("EVENT_PUSH_ENABLED", "true")
	t.Setenv("EVENT_PUSH_RETRY_BASE", "250ms")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if !cfg.EventPushEnabled || cfg.EventPushWorkers != 2 || cfg.EventPushRetryBase != 250*time.Millisecond {
		t.Fatalf("unexpected event push config: %+v", cfg)
	}
}
