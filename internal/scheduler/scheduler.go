// Package scheduler runs the background jobs: the event status sweep and
// rate limiter housekeeping.
//
// Jobs are robfig/cron entries. SkipIfStillRunning makes sure a slow sweep
// is never overlapped by the next tick, and Recover turns a panicking job
// into a logged error instead of a dead process.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/greenpath/greenpath/internal/metrics"
)

// Job names, also used as the metrics label.
const (
	JobEventSweep     = "event-sweep"
	JobLimiterCleanup = "limiter-cleanup"
)

// sweepTimeout bounds one sweep so a stuck store cannot pile up goroutines.
const sweepTimeout = 30 * time.Second

// EventSweeper moves events through upcoming → ongoing → completed as
// their time comes. service.EventService implements it.
type EventSweeper interface {
	AdvanceStatuses(ctx context.Context, now time.Time, duration time.Duration) (int, error)
}

// LimiterCleaner forgets idle rate limiter clients. middleware.RateLimiter
// implements it.
type LimiterCleaner interface {
	Cleanup(maxIdle time.Duration) int
}

type Scheduler struct {
	cron    *cron.Cron
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func New(m *metrics.Metrics, logger *slog.Logger) *Scheduler {
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cl),
			cron.SkipIfStillRunning(cl),
		)),
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// AddEventSweep schedules the event status sweep. duration is how long an
// event lasts once started.
func (s *Scheduler) AddEventSweep(schedule string, sweeper EventSweeper, duration time.Duration) error {
	if _, err := s.cron.AddFunc(schedule, s.eventSweep(sweeper, duration)); err != nil {
		return fmt.Errorf("scheduler: %s schedule %q: %w", JobEventSweep, schedule, err)
	}
	return nil
}

// AddLimiterCleanup schedules removal of clients idle for maxIdle.
func (s *Scheduler) AddLimiterCleanup(schedule string, cleaner LimiterCleaner, maxIdle time.Duration) error {
	if _, err := s.cron.AddFunc(schedule, s.limiterCleanup(cleaner, maxIdle)); err != nil {
		return fmt.Errorf("scheduler: %s schedule %q: %w", JobLimiterCleanup, schedule, err)
	}
	return nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.logger.Info("scheduler started", slog.Int("jobs", len(s.cron.Entries())))
	s.cron.Start()
}

// Stop prevents new runs and waits, up to ctx, for running jobs to finish.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out with jobs still running")
	}
}

func (s *Scheduler) eventSweep(sweeper EventSweeper, duration time.Duration) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()

		changed, err := sweeper.AdvanceStatuses(ctx, s.now(), duration)
		s.metrics.JobRun(JobEventSweep, err)
		if err != nil {
			s.logger.Error("event sweep failed", slog.String("error", err.Error()))
			return
		}
		if changed > 0 {
			s.logger.Info("event sweep advanced events", slog.Int("changed", changed))
		}
	}
}

func (s *Scheduler) limiterCleanup(cleaner LimiterCleaner, maxIdle time.Duration) func() {
	return func() {
		removed := cleaner.Cleanup(maxIdle)
		s.metrics.JobRun(JobLimiterCleanup, nil)
		if removed > 0 {
			s.logger.Debug("rate limiter clients forgotten", slog.Int("removed", removed))
		}
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{slog.String("error", err.Error())}, keysAndValues...)...)
}
