package usage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ResetExpired starts a new period for every user whose current period has
// elapsed. It returns the number of users reset.
func (s *Service) ResetExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `
UPDATE users SET period_usage = 0, period_started_at = now(), updated_at = now()
WHERE period_started_at + make_interval(secs => $1) <= now()`, s.period.Seconds())
	if err != nil {
		return 0, fmt.Errorf("reset expired periods: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PruneEvents deletes ledger rows older than retention. Request ids older
// than that can no longer be deduplicated.
func (s *Service) PruneEvents(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, fmt.Errorf("retention must be positive")
	}
	cutoff := s.now().Add(-retention)
	tag, err := s.db.Exec(ctx, `DELETE FROM usage_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune usage events: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Maintainer is the part of Service the scheduler drives.
type Maintainer interface {
	ResetExpired(ctx context.Context) (int64, error)
	PruneEvents(ctx context.Context, retention time.Duration) (int64, error)
}

// Scheduler runs usage maintenance on a cron schedule.
type Scheduler struct {
	cron      *cron.Cron
	target    Maintainer
	retention time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

// NewScheduler validates spec (standard five-field cron or a descriptor such
// as "@hourly") and registers the maintenance job.
func NewScheduler(log *slog.Logger, target Maintainer, spec string, retention time.Duration) (*Scheduler, error) {
	logger := log.With(slog.String("service", "usage_scheduler"))
	cl := cronLogger{logger: logger}
	s := &Scheduler{
		cron:      cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		target:    target,
		retention: retention,
		timeout:   5 * time.Minute,
		logger:    logger,
	}
	if _, err := s.cron.AddFunc(spec, s.RunOnce); err != nil {
		return nil, fmt.Errorf("invalid maintenance schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the schedule and waits for a running job, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// RunOnce performs one maintenance pass.
func (s *Scheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	reset, err := s.target.ResetExpired(ctx)
	if err != nil {
		s.logger.Error("reset expired periods failed", slog.Any("error", err))
	} else if reset > 0 {
		s.logger.Info("usage periods reset", slog.Int64("users", reset))
	}

	if s.retention <= 0 {
		return
	}
	pruned, err := s.target.PruneEvents(ctx, s.retention)
	if err != nil {
		s.logger.Error("prune usage events failed", slog.Any("error", err))
		return
	}
	if pruned > 0 {
		s.logger.Info("usage events pruned", slog.Int64("rows", pruned))
	}
}

// cronLogger routes cron's logr-style calls to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{slog.Any("error", err)}, keysAndValues...)...)
}
