package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const jobTimeout = 30 * time.Second

// Scheduler runs the provider's periodic work: refreshing sessions that are
// about to expire and reconciling with changes made by other processes.
type Scheduler struct {
	cron     *cron.Cron
	provider *Provider
	logger   zerolog.Logger
}

// NewScheduler creates a scheduler for p. refreshSpec and watchSpec are cron
// expressions or descriptors such as "@every 30s"; an empty spec disables
// that job.
func NewScheduler(p *Provider, refreshSpec, watchSpec string, logger zerolog.Logger) (*Scheduler, error) {
	logger = logger.With().Str("component", "scheduler").Logger()
	cronLog := cronLogger{logger: logger}

	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		provider: p,
		logger:   logger,
	}

	if refreshSpec != "" {
		if _, err := s.cron.AddFunc(refreshSpec, s.refreshJob); err != nil {
			return nil, fmt.Errorf("invalid refresh schedule %q: %w", refreshSpec, err)
		}
	}
	if watchSpec != "" {
		if _, err := s.cron.AddFunc(watchSpec, s.watchJob); err != nil {
			return nil, fmt.Errorf("invalid watch schedule %q: %w", watchSpec, err)
		}
	}

	return s, nil
}

// Start runs the jobs in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Debug().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")
}

// Stop stops scheduling and waits for running jobs to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) refreshJob() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	refreshed, err := s.provider.RefreshIfExpiring(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Scheduled session refresh failed")
		return
	}
	if refreshed {
		s.logger.Info().Msg("Session refreshed ahead of expiry")
	}
}

func (s *Scheduler) watchJob() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := s.provider.Reconcile(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to reconcile stored session")
	}
}

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
