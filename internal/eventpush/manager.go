package eventpush

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"relay-lounge/internal/eventpush/platforms"
	"relay-lounge/internal/gambling"
)

type breakerState struct {
	consecutiveFailures int
	openUntil           time.Time
}

// Manager fans gambling events out to webhook targets. It satisfies
// gambling.EventSink; Publish never blocks the engine.
type Manager struct {
	cfg      Config
	adapters map[string]platforms.Adapter

	dispatchCh chan pushJob
	retryQ     *retryQueue
	done       chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup

	mu           sync.Mutex
	started      bool
	breakerByKey map[string]breakerState
}

func New(cfg Config) *Manager {
	client := platforms.NewHTTPClient(cfg.RequestTimeout)
	if cfg.DispatchBuffer <= 0 {
		cfg.DispatchBuffer = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.CircuitOpenDuration <= 0 {
		cfg.CircuitOpenDuration = 30 * time.Second
	}

	m := &Manager{
		cfg: cfg,
		adapters: map[string]platforms.Adapter{
			platforms.Discord: platforms.NewDiscordAdapter(client),
			platforms.Webhook: platforms.NewWebhookAdapter(client),
		},
		dispatchCh:   make(chan pushJob, cfg.DispatchBuffer),
		done:         make(chan struct{}),
		breakerByKey: map[string]breakerState{},
	}
	m.retryQ = newRetryQueue(m.dispatchCh, m.done)
	return m
}

func (m *Manager) Start(ctx context.Context) {
	if !m.cfg.Enabled {
		return
	}
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	for range m.cfg.Workers {
		m.wg.Add(1)
		go m.worker(ctx)
	}
	if m.cfg.ConfigPath != "" {
		m.wg.Add(1)
		go m.watchConfigLoop(ctx)
	}
	go func() {
		select {
		case <-ctx.Done():
			m.Stop()
		case <-m.done:
		}
	}()
	log.Info().Int("targets", len(m.currentTargets())).Int("workers", m.cfg.Workers).Msg("event push started")
}

// Stop abandons queued jobs and waits for in-flight sends to finish.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.done) })
	m.wg.Wait()
}

func (m *Manager) Publish(ev gambling.Event) {
	if !m.cfg.Enabled {
		return
	}
	targets := matchTargets(m.currentTargets(), string(ev.Type))
	if len(targets) == 0 {
		return
	}
	formatted, ok := FormatMessage(ev)
	if !ok {
		return
	}
	for _, target := range targets {
		if !m.enqueue(pushJob{Target: target, EventType: string(ev.Type), Payload: ev, Formatted: formatted}) {
			metricPushDroppedTotal.Add(1)
		}
	}
}

func (m *Manager) enqueue(job pushJob) bool {
	select {
	case <-m.done:
		return false
	default:
	}
	select {
	case m.dispatchCh <- job:
		metricPushQueuedTotal.Add(1)
		metricPushQueueLen.Set(int64(len(m.dispatchCh)))
		return true
	default:
		return false
	}
}

func (m *Manager) currentTargets() []Target {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Target, len(m.cfg.Targets))
	copy(out, m.cfg.Targets)
	return out
}

func (m *Manager) watchConfigLoop(ctx context.Context) {
	defer m.wg.Done()
	interval := m.cfg.ConfigReload
	if interval <= 0 {
		interval = 5 * time.Second
	}
	lastRaw := ""
	if raw, err := os.ReadFile(m.cfg.ConfigPath); err == nil {
		lastRaw = strings.TrimSpace(string(raw))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.C:
			raw, err := os.ReadFile(m.cfg.ConfigPath)
			if err != nil {
				metricPushConfigReloadError.Add(1)
				continue
			}
			nextRaw := strings.TrimSpace(string(raw))
			if nextRaw == lastRaw {
				continue
			}
			targets, err := parseTargetsJSON(nextRaw)
			if err != nil {
				metricPushConfigReloadError.Add(1)
				log.Warn().Err(err).Str("path", m.cfg.ConfigPath).Msg("event push config reload failed")
				continue
			}
			m.mu.Lock()
			m.cfg.Targets = targets
			m.mu.Unlock()
			lastRaw = nextRaw
			metricPushConfigReloadTotal.Add(1)
			log.Info().Int("targets", len(targets)).Msg("event push targets reloaded")
		}
	}
}
