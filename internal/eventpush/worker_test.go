package eventpush

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"relay-lounge/internal/eventpush/platforms"
)

type recordingAdapter struct {
	mu    sync.Mutex
	calls int
	fail  bool
	last  platforms.Message
}

func (a *recordingAdapter) Name() string { return "rec" }

func (a *recordingAdapter) Send(_ context.Context, _ string, _ string, msg platforms.Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.last = msg
	if a.fail {
		return errors.New("failed")
	}
	return nil
}

func (a *recordingAdapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func startTestManager(t *testing.T, cfg Config, adapter platforms.Adapter) *Manager {
	t.Helper()
	m := New(cfg)
	m.adapters = map[string]platforms.Adapter{"rec": adapter}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		m.Stop()
	})
	m.Start(ctx)
	return m
}

func TestRetryStopsAtMaxAttempts(t *testing.T) {
	cfg := Config{
		Enabled:   true,
		Targets:   []Target{{Platform: "rec", Endpoint: "https://example.com", Enabled: true}},
		Workers:   1,
		RetryMax:  1,
		RetryBase: 5 * time.Millisecond,
	}
	adapter := &recordingAdapter{fail: true}
	m := startTestManager(t, cfg, adapter)

	if !m.enqueue(pushJob{Target: cfg.Targets[0], Formatted: FormattedMessage{Title: "x"}}) {
		t.Fatal("enqueue failed")
	}
	time.Sleep(120 * time.Millisecond)
	if got := adapter.Calls(); got != 2 {
		t.Fatalf("expected 2 calls (initial + 1 retry), got %d", got)
	}
}

func TestCircuitOpenSkipsSubsequentSends(t *testing.T) {
	cfg := Config{
		Enabled:             true,
		Targets:             []Target{{Platform: "rec", Endpoint: "https://example.com", Enabled: true}},
		Workers:             1,
		RetryBase:           5 * time.Millisecond,
		FailureThreshold:    1,
		CircuitOpenDuration: 500 * time.Millisecond,
	}
	adapter := &recordingAdapter{fail: true}
	m := startTestManager(t, cfg, adapter)

	job := pushJob{Target: cfg.Targets[0], Formatted: FormattedMessage{Title: "x"}}
	if !m.enqueue(job) {
		t.Fatal("enqueue first failed")
	}
	time.Sleep(40 * time.Millisecond)
	if !m.enqueue(job) {
		t.Fatal("enqueue second failed")
	}
	time.Sleep(80 * time.Millisecond)

	if got := adapter.Calls(); got != 1 {
		t.Fatalf("expected 1 call due to circuit open, got %d", got)
	}
}

func TestUnknownPlatformIsDropped(t *testing.T) {
	cfg := Config{Enabled: true, Workers: 1}
	adapter := &recordingAdapter{}
	m := startTestManager(t, cfg, adapter)

	if !m.enqueue(pushJob{Target: Target{Platform: "nope", Endpoint: "https://x", Enabled: true}}) {
		t.Fatal("enqueue failed")
	}
	time.Sleep(40 * time.Millisecond)
	if got := adapter.Calls(); got != 0 {
		t.Fatalf("expected no calls, got %d", got)
	}
}
