package crontab

import (
	"context"
	"time"

	"github.com/mileusna/crontab"
	"github.com/rs/zerolog"

	"line-dify-bridge/internal/domain/workflow"
)

const (
	RecoverSchedule = "* * * * *"
	PurgeSchedule   = "17 * * * *"
	CronJobTimeout  = 2 * time.Minute
)

// Config sets the workflow housekeeping parameters.
type Config struct {
	MaxAttempts int
	Retention   time.Duration
}

// Crontab runs workflow housekeeping: expired leases are recovered every
// minute and finished instances older than the retention are purged hourly.
type Crontab struct {
	ctab *crontab.Crontab
	repo workflow.Repository
	cfg  Config
	now  func() time.Time
	log  zerolog.Logger
}

func NewCrontab(repo workflow.Repository, cfg Config, log zerolog.Logger) *Crontab {
	return &Crontab{
		ctab: crontab.New(),
		repo: repo,
		cfg:  cfg,
		now:  time.Now,
		log:  log.With().Str("component", "crontab").Logger(),
	}
}

// Run schedules the jobs and blocks until ctx ends.
func (c *Crontab) Run(ctx context.Context) error {
	// execute once on server start
	c.RecoverStale(ctx)

	if err := c.ctab.AddJob(RecoverSchedule, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), CronJobTimeout)
		defer cancel()
		c.RecoverStale(jobCtx)
	}); err != nil {
		return err
	}

	if c.cfg.Retention > 0 {
		if err := c.ctab.AddJob(PurgeSchedule, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), CronJobTimeout)
			defer cancel()
			c.PurgeFinished(jobCtx)
		}); err != nil {
			return err
		}
		c.log.Info().Dur("retention", c.cfg.Retention).Msg("workflow purge scheduled")
	}

	<-ctx.Done()
	c.ctab.Shutdown()
	return nil
}

// RecoverStale releases instances whose lease expired and fails the exhausted ones.
func (c *Crontab) RecoverStale(ctx context.Context) {
	released, failed, err := c.repo.RecoverStale(ctx, c.cfg.MaxAttempts)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to recover stale workflow instances")
		return
	}
	if released > 0 || failed > 0 {
		c.log.Warn().Int64("released", released).Int64("failed", failed).Msg("recovered stale workflow instances")
	}
}

func (c *Crontab) PurgeFinished(ctx context.Context) {
	cutoff := c.now().Add(-c.cfg.Retention)
	purged, err := c.repo.PurgeFinished(ctx, cutoff)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to purge finished workflow instances")
		return
	}
	c.log.Info().Int64("purged", purged).Time("cutoff", cutoff).Msg("purged finished workflow instances")
}
