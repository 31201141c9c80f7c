package eventpush

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"relay-lounge/internal/config"
	"relay-lounge/internal/eventpush/platforms"
)

func ConfigFromServer(cfg config.ServerConfig) (Config, error) {
	out := Config{
		Enabled:             cfg.EventPushEnabled,
		ConfigPath:          strings.TrimSpace(cfg.EventPushConfigPath),
		ConfigReload:        cfg.EventPushReload,
		Workers:             cfg.EventPushWorkers,
		RetryMax:            cfg.EventPushRetryMax,
		RetryBase:           cfg.EventPushRetryBase,
		FailureThreshold:    3,
		CircuitOpenDuration: 30 * time.Second,
		RequestTimeout:      5 * time.Second,
		DispatchBuffer:      1024,
	}
	if !out.Enabled {
		return out, nil
	}
	if out.RetryMax < 0 {
		out.RetryMax = 0
	}

	raw, err := loadTargetsJSON(cfg)
	if err != nil {
		return Config{}, err
	}
	if raw == "" {
		return out, nil
	}
	targets, err := parseTargetsJSON(raw)
	if err != nil {
		return Config{}, err
	}
	out.Targets = targets
	return out, nil
}

// The file wins over the inline JSON so it can be hot-reloaded.
func loadTargetsJSON(cfg config.ServerConfig) (string, error) {
	path := strings.TrimSpace(cfg.EventPushConfigPath)
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read event push config %q: %w", path, err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
	return strings.TrimSpace(cfg.EventPushTargetsJSON), nil
}

func parseTargetsJSON(raw string) ([]Target, error) {
	var targets []Target
	if err := json.Unmarshal([]byte(raw), &targets); err != nil {
		return nil, fmt.Errorf("parse event push targets: %w", err)
	}
	filtered := make([]Target, 0, len(targets))
	for _, target := range targets {
		target.Platform = strings.ToLower(strings.TrimSpace(target.Platform))
		if target.Platform != platforms.Discord && target.Platform != platforms.Webhook {
			continue
		}
		target.Endpoint = strings.TrimSpace(target.Endpoint)
		if target.Endpoint == "" || !target.Enabled {
			continue
		}
		for i := range target.EventAllowlist {
			target.EventAllowlist[i] = strings.ToLower(strings.TrimSpace(target.EventAllowlist[i]))
		}
		filtered = append(filtered, target)
	}
	return filtered, nil
}
