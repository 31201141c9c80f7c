package eventpush

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"relay-lounge/internal/gambling"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestPublishDeliversToMatchingTargets(t *testing.T) {
	cfg := Config{
		Enabled: true,
		Workers: 1,
		Targets: []Target{
			{Platform: "rec", Endpoint: "https://all", Enabled: true},
			{Platform: "rec", Endpoint: "https://wins", Enabled: true, EventAllowlist: []string{"big_win"}},
		},
	}
	adapter := &recordingAdapter{}
	m := startTestManager(t, cfg, adapter)

	m.Publish(gambling.Event{Type: gambling.EventPotCreated, PotID: "1", PotName: "daily"})
	waitFor(t, func() bool { return adapter.Calls() == 1 })

	m.Publish(gambling.Event{Type: gambling.EventBigWin, Username: "alice", Game: "dice", Amount: decimal.NewFromInt(600)})
	waitFor(t, func() bool { return adapter.Calls() == 3 })

	adapter.mu.Lock()
	last := adapter.last
	adapter.mu.Unlock()
	if last.EventType != "big_win" {
		t.Fatalf("unexpected last event: %+v", last)
	}
	if ev, ok := last.Data.(gambling.Event); !ok || ev.Username != "alice" {
		t.Fatalf("unexpected payload: %#v", last.Data)
	}
}

func TestPublishDisabledIsNoop(t *testing.T) {
	m := New(Config{Targets: []Target{{Platform: "rec", Endpoint: "https://all", Enabled: true}}})
	m.Publish(gambling.Event{Type: gambling.EventBigWin})
	if got := len(m.dispatchCh); got != 0 {
		t.Fatalf("expected empty queue, got %d", got)
	}
}

func TestPublishAfterStopDrops(t *testing.T) {
	m := New(Config{Enabled: true, Targets: []Target{{Platform: "rec", Endpoint: "https://all", Enabled: true}}})
	m.Stop()
	m.Publish(gambling.Event{Type: gambling.EventPotCreated, PotID: "1"})
	if got := len(m.dispatchCh); got != 0 {
		t.Fatalf("expected empty queue, got %d", got)
	}
}

func TestConfigReloadReplacesTargets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.json")
	if err := os.WriteFile(path, []byte(`[]`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	m := New(Config{Enabled: true, Workers: 1, ConfigPath: path, ConfigReload: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		m.Stop()
	}()
	m.Start(ctx)

	if err := os.WriteFile(path, []byte(`[{"platform":"webhook","endpoint":"https://new","enabled":true}]`), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	waitFor(t, func() bool {
		targets := m.currentTargets()
		return len(targets) == 1 && targets[0].Endpoint == "https://new"
	})
}
