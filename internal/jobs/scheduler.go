package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/engageflow/backend/internal/engine/limiter"
	"github.com/engageflow/backend/internal/logger"
	"github.com/engageflow/backend/internal/services"
)

// Scheduler runs the periodic maintenance sweeps: rule expiry and
// rate-limit counter eviction.
type Scheduler struct {
	services *services.Container
	cron     *cron.Cron
}

func NewScheduler(svc *services.Container) *Scheduler {
	return &Scheduler{
		services: svc,
		cron:     cron.New(),
	}
}

func (s *Scheduler) Start() error {
	log := logger.Get()

	// Expired rules must stop matching promptly, so sweep every minute.
	if _, err := s.cron.AddFunc("* * * * *", s.expireSweep); err != nil {
		return err
	}

	// Counters are keyed by local day and roll over on their own; the
	// nightly sweep only bounds memory on the in-process limiter.
	if _, err := s.cron.AddFunc("30 3 * * *", s.counterSweep); err != nil {
		return err
	}

	s.cron.Start()
	log.Info().Msg("Maintenance scheduler started")
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Get().Info().Msg("Maintenance scheduler stopped")
}

func (s *Scheduler) expireSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	expired, err := s.services.Rule.ExpireSweep(ctx, time.Now())
	if err != nil {
		logger.Error().Err(err).Msg("Rule expiry sweep failed")
		return
	}
	if expired > 0 {
		logger.Get().Info().Int("expired", expired).Msg("Deactivated expired rules")
	}
}

func (s *Scheduler) counterSweep() {
	mem, ok := s.services.Limiter.(*limiter.Memory)
	if !ok {
		// Redis counters expire by TTL.
		return
	}

	retention := time.Duration(s.services.Config.CounterRetention) * 24 * time.Hour
	if removed := mem.Sweep(retention); removed > 0 {
		logger.Get().Info().Int("removed", removed).Msg("Swept stale rate-limit counters")
	}
}
