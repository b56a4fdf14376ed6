// Package jobs runs the scheduled maintenance tasks: history retention and
// alert log retention.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/fuomag9/webstatus/internal/store"
)

// Retention windows, in days.
const (
	HistoryRetentionDays = 30
	AlertRetentionDays   = 90
)

const jobTimeout = 5 * time.Minute

// Scheduler manages the background maintenance jobs.
type Scheduler struct {
	cron  *cron.Cron
	store *store.Store
	log   zerolog.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(st *store.Store, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:  cron.New(),
		store: st,
		log:   log.With().Str("component", "scheduler").Logger(),
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() {
	// Check history retention daily at 3:14 AM.
	s.cron.AddFunc("14 3 * * *", s.cleanupHistory)

	// Alert log retention daily at 3:30 AM.
	s.cron.AddFunc("30 3 * * *", s.cleanupAlerts)

	s.cron.Start()
	s.log.Info().
		Int("history_retention_days", HistoryRetentionDays).
		Int("alert_retention_days", AlertRetentionDays).
		Msg("job scheduler started")
}

// Stop stops the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("job scheduler stopped")
}

// RunCleanupNow runs both retention jobs immediately.
func (s *Scheduler) RunCleanupNow() {
	s.cleanupHistory()
	s.cleanupAlerts()
}

func (s *Scheduler) cleanupHistory() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	removed, err := s.store.CleanupOldHistory(ctx, HistoryRetentionDays)
	if err != nil {
		s.log.Error().Err(err).Msg("check history cleanup failed")
		return
	}
	s.log.Info().Int64("removed", removed).Msg("check history cleanup done")
}

func (s *Scheduler) cleanupAlerts() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	removed, err := s.store.CleanupOldAlerts(ctx, AlertRetentionDays)
	if err != nil {
		s.log.Error().Err(err).Msg("alert log cleanup failed")
		return
	}
	s.log.Info().Int64("removed", removed).Msg("alert log cleanup done")
}
