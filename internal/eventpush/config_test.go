package eventpush

import (
	"os"
	"path/filepath"
	"testing"

	"relay-lounge/internal/config"
)

func TestConfigFromServerFiltersTargets(t *testing.T) {
	cfg, err := ConfigFromServer(config.ServerConfig{
		EventPushEnabled:  true,
		EventPushWorkers:  2,
		EventPushRetryMax: -1,
		EventPushTargetsJSON: `[
		  {"platform":"Discord","endpoint":" https://a ","enabled":true,"event_allowlist":[" BIG_WIN "]},
		  {"platform":"webhook","endpoint":"","enabled":true},
		  {"platform":"slack","endpoint":"https://b","enabled":true},
		  {"platform":"webhook","endpoint":"https://c","enabled":false}
		]`,
	})
	if err != nil {
		t.Fatalf("config parse failed: %v", err)
	}
	if len(cfg.Targets) != 1 {
		t.Fatalf("expected 1 target, got %d", len(cfg.Targets))
	}
	got := cfg.Targets[0]
	if got.Platform != "discord" || got.Endpoint != "https://a" || got.EventAllowlist[0] != "big_win" {
		t.Fatalf("unexpected target: %+v", got)
	}
	if cfg.RetryMax != 0 {
		t.Fatalf("RetryMax = %d, want 0", cfg.RetryMax)
	}
}

func TestConfigFromServerUsesConfigPathFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.json")
	if err := os.WriteFile(path, []byte(`[{"platform":"webhook","endpoint":"https://from-file","enabled":true}]`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := ConfigFromServer(config.ServerConfig{
		EventPushEnabled:     true,
		EventPushConfigPath:  path,
		EventPushTargetsJSON: `[{"platform":"webhook","endpoint":"https://from-env","enabled":true}]`,
	})
	if err != nil {
		t.Fatalf("config parse failed: %v", err)
	}
	if len(cfg.Targets) != 1 || cfg.Targets[0].Endpoint != "https://from-file" {
		t.Fatalf("unexpected targets: %+v", cfg.Targets)
	}
}

func TestConfigFromServerDisabledSkipsParsing(t *testing.T) {
	cfg, err := ConfigFromServer(config.ServerConfig{EventPushTargetsJSON: "not json"})
	if err != nil {
		t.Fatalf("disabled config should not parse targets: %v", err)
	}
	if cfg.Enabled || len(cfg.Targets) != 0 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestConfigFromServerBadJSON(t *testing.T) {
	if _, err := ConfigFromServer(config.ServerConfig{EventPushEnabled: true, EventPushTargetsJSON: "{"}); err == nil {
		t.Fatal("expected parse error")
	}
}
