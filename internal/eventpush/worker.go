package eventpush

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"relay-lounge/internal/eventpush/platforms"
)

var errCircuitOpen = errors.New("circuit_open")

func (m *Manager) worker(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case job := <-m.dispatchCh:
			metricPushQueueLen.Set(int64(len(m.dispatchCh)))
			m.processJob(ctx, job)
		}
	}
}

func (m *Manager) processJob(ctx context.Context, job pushJob) {
	adapter := m.adapters[job.Target.Platform]
	if adapter == nil {
		metricPushDroppedTotal.Add(1)
		return
	}

	if err := m.beforeSend(job.key(), time.Now()); err != nil {
		metricPushCircuitOpenTotal.Add(1)
		m.retryOrDrop(job, err)
		return
	}

	err := adapter.Send(ctx, job.Target.Endpoint, job.Target.Secret, toPlatformMessage(job))
	if err != nil {
		metricPushFailedTotal.Add(1)
		m.afterFailure(job.key(), time.Now())
		m.retryOrDrop(job, err)
		return
	}

	metricPushSentTotal.Add(1)
	m.afterSuccess(job.key())
}

// retryOrDrop schedules the job again with exponential backoff until
// RetryMax attempts have been spent.
func (m *Manager) retryOrDrop(job pushJob, err error) bool {
	if job.Attempt >= m.cfg.RetryMax {
		metricPushRetryDroppedTotal.Add(1)
		log.Warn().Err(err).Str("platform", job.Target.Platform).Str("event", job.EventType).Int("attempts", job.Attempt+1).Msg("event push dropped")
		return false
	}
	job.Attempt++
	metricPushRetryTotal.Add(1)
	m.retryQ.Enqueue(job, m.cfg.RetryBase*time.Duration(1<<(job.Attempt-1)))
	return true
}

func (m *Manager) beforeSend(key string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.breakerByKey[key]
	if !state.openUntil.IsZero() && now.Before(state.openUntil) {
		return errCircuitOpen
	}
	return nil
}

func (m *Manager) afterFailure(key string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.breakerByKey[key]
	state.consecutiveFailures++
	if state.consecutiveFailures >= m.cfg.FailureThreshold {
		state.openUntil = now.Add(m.cfg.CircuitOpenDuration)
		state.consecutiveFailures = 0
	}
	m.breakerByKey[key] = state
}

func (m *Manager) afterSuccess(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.breakerByKey, key)
}

func toPlatformMessage(job pushJob) platforms.Message {
	msg := job.Formatted
	fields := make([]platforms.Field, 0, len(msg.Fields))
	for _, f := range msg.Fields {
		fields = append(fields, platforms.Field{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return platforms.Message{
		EventType:   job.EventType,
		Title:       msg.Title,
		Content:     msg.Content,
		Description: msg.Description,
		Color:       msg.Color,
		Timestamp:   msg.Timestamp,
		Footer:      msg.Footer,
		Fields:      fields,
		Data:        job.Payload,
	}
}
