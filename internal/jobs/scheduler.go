// Package jobs runs cron-driven background work: recurring house pots and
// periodic snapshots.
package jobs

import (
	"context"
	"fmt"
	"time"

	"relay-lounge/internal/gambling"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// HouseAccount is recorded as the creator of scheduled pots.
const HouseAccount = "house"

type PotOpener interface {
	CreatePot(ctx context.Context, name, description, createdBy string, d time.Duration) (gambling.PotView, error)
}

type Scheduler struct {
	cron *cron.Cron
	now  func() time.Time
}

func NewScheduler() *Scheduler {
	return &Scheduler{cron: cron.New(cron.WithLocation(time.UTC)), now: time.Now}
}

// AddHousePots opens a pot lasting d on every tick of spec.
func (s *Scheduler) AddHousePots(ctx context.Context, spec string, d time.Duration, opener PotOpener) error {
	_, err := s.cron.AddFunc(spec, func() {
		name := "House pot " + s.now().UTC().Format("Jan 2 15:04")
		pot, err := opener.CreatePot(ctx, name, "Scheduled by the house.", HouseAccount, d)
		if err != nil {
			log.Error().Err(err).Str("spec", spec).Msg("[CRON] house pot failed")
			return
		}
		log.Info().Str("pot_id", pot.ID).Msg("[CRON] house pot opened")
	})
	if err != nil {
		return fmt.Errorf("pot schedule %q: %w", spec, err)
	}
	return nil
}

// AddSnapshot runs every flush function on each tick of spec.
func (s *Scheduler) AddSnapshot(ctx context.Context, spec string, flushes ...func(context.Context)) error {
	_, err := s.cron.AddFunc(spec, func() {
		start := s.now()
		for _, flush := range flushes {
			flush(ctx)
		}
		log.Debug().Dur("took", time.Since(start)).Msg("[CRON] snapshot written")
	})
	if err != nil {
		return fmt.Errorf("snapshot schedule %q: %w", spec, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().Int("jobs", len(s.cron.Entries())).Msg("scheduler started")
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("scheduler stopped")
}
