// Package scheduler runs the periodic maintenance jobs: counter resets,
// stats and segment sweeps, and the scheduled-campaign starter.
package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"whatsapp-dispatch/internal/campaign"
	"whatsapp-dispatch/internal/ratelimit"
	"whatsapp-dispatch/internal/stats"
)

type Scheduler struct {
	cron         *cron.Cron
	limiter      *ratelimit.Limiter
	stats        *stats.Aggregator
	orchestrator *campaign.Orchestrator
}

func New(limiter *ratelimit.Limiter, aggregator *stats.Aggregator, orchestrator *campaign.Orchestrator) *Scheduler {
	return &Scheduler{
		cron:         cron.New(),
		limiter:      limiter,
		stats:        aggregator,
		orchestrator: orchestrator,
	}
}

// Start registers all jobs and launches the cron loop.
func (s *Scheduler) Start() error {
	jobs := []struct {
		spec string
		name string
		run  func(ctx context.Context)
	}{
		{"0 0 * * *", "reset daily counters", func(ctx context.Context) {
			if err := s.limiter.ResetDaily(ctx); err != nil {
				log.Error().Err(err).Msg("resetting daily counters")
				return
			}
			log.Info().Msg("daily message counters reset")
		}},
		{"0 0 1 * *", "reset monthly counters", func(ctx context.Context) {
			if err := s.limiter.ResetMonthly(ctx); err != nil {
				log.Error().Err(err).Msg("resetting monthly counters")
				return
			}
			log.Info().Msg("monthly message counters reset")
		}},
		{"*/5 * * * *", "campaign stats sweep", s.stats.SweepCampaigns},
		{"*/15 * * * *", "segment refresh sweep", s.stats.SweepSegments},
		{"* * * * *", "scheduled campaign starter", s.orchestrator.StartDue},
	}

	for _, job := range jobs {
		run := job.run
		if _, err := s.cron.AddFunc(job.spec, func() {
			run(context.Background())
		}); err != nil {
			return err
		}
		log.Debug().Str("job", job.name).Str("spec", job.spec).Msg("cron job registered")
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}
