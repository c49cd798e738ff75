package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chatforge/chatforge/internal/db"
)

var (
	// ErrLimitExceeded matches any *LimitExceededError via errors.Is.
	ErrLimitExceeded = errors.New("Usage limit exceeded")
	// ErrCheckFailed indicates the usage state could not be read.
	ErrCheckFailed = errors.New("usage check failed")
	// ErrUserUnavailable indicates the user does not exist or was deactivated.
	ErrUserUnavailable = errors.New("user not found or inactive")
)

// LimitExceededError reports a user at or over the limit for the current period.
type LimitExceededError struct {
	Limit int
	Used  int
	Reset time.Time
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("Usage limit exceeded: %d of %d requests used, resets at %s",
		e.Used, e.Limit, e.Reset.UTC().Format(time.RFC3339))
}

func (e *LimitExceededError) Is(target error) bool { return target == ErrLimitExceeded }

// Status is a snapshot of a user's quota in the current period. Limit 0 means unlimited.
type Status struct {
	Limit           int       `json:"limit"`
	Used            int       `json:"used"`
	Remaining       int       `json:"remaining"`
	Unlimited       bool      `json:"unlimited"`
	Total           int64     `json:"total"`
	PeriodStartedAt time.Time `json:"period_started_at"`
	PeriodEndsAt    time.Time `json:"period_ends_at"`
}

// Service enforces per-user request quotas backed by the users table and
// the usage_events ledger.
type Service struct {
	db     db.DBTX
	logger *slog.Logger
	period time.Duration
	now    func() time.Time
}

func NewService(log *slog.Logger, conn db.DBTX, period time.Duration) *Service {
	if period <= 0 {
		period = 30 * 24 * time.Hour
	}
	return &Service{
		db:     conn,
		logger: log.With(slog.String("service", "usage")),
		period: period,
		now:    time.Now,
	}
}

// Status reads the quota state of an active user.
func (s *Service) Status(ctx context.Context, userID int64) (Status, error) {
	var (
		limit, used int
		total       int64
		started     time.Time
		active      bool
	)
	err := s.db.QueryRow(ctx,
		`SELECT usage_limit, period_usage, total_usage, period_started_at, is_active FROM users WHERE id = $1`,
		userID).Scan(&limit, &used, &total, &started, &active)
	if err != nil {
		if db.IsNotFound(err) {
			return Status{}, fmt.Errorf("%w: id %d", ErrUserUnavailable, userID)
		}
		return Status{}, fmt.Errorf("read usage for user %d: %w", userID, err)
	}
	if !active {
		return Status{}, fmt.Errorf("%w: id %d", ErrUserUnavailable, userID)
	}
	now := s.now()
	ends := started.Add(s.period)
	if !now.Before(ends) {
		used = 0
		started = now
		ends = now.Add(s.period)
	}
	st := Status{
		Limit:           limit,
		Used:            used,
		Unlimited:       limit <= 0,
		Total:           total,
		PeriodStartedAt: started,
		PeriodEndsAt:    ends,
	}
	if !st.Unlimited {
		st.Remaining = max(limit-used, 0)
	}
	return st, nil
}

// Check returns nil when the user may make another request. It never writes.
func (s *Service) Check(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("%w: no current user", ErrUserUnavailable)
	}
	st, err := s.Status(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrCheckFailed, err)
	}
	if !st.Unlimited && st.Used >= st.Limit {
		return &LimitExceededError{Limit: st.Limit, Used: st.Used, Reset: st.PeriodEndsAt}
	}
	return nil
}

// Record charges amount units to the user. Repeated calls with the same
// requestID charge once.
func (s *Service) Record(ctx context.Context, userID int64, requestID string, amount int) error {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return errors.New("request id is required")
	}
	if amount <= 0 {
		return errors.New("amount must be positive")
	}
	tag, err := s.db.Exec(ctx, `
WITH ins AS (
  INSERT INTO usage_events (request_id, user_id, amount)
  VALUES ($1, $2, $3)
  ON CONFLICT (request_id) DO NOTHING
  RETURNING user_id, amount
)
UPDATE users u SET
  period_usage = CASE WHEN u.period_started_at + make_interval(secs => $4) <= now()
                      THEN ins.amount ELSE u.period_usage + ins.amount END,
  period_started_at = CASE WHEN u.period_started_at + make_interval(secs => $4) <= now()
                           THEN now() ELSE u.period_started_at END,
  total_usage = u.total_usage + ins.amount,
  updated_at = now()
FROM ins
WHERE u.id = ins.user_id`, requestID, userID, amount, s.period.Seconds())
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		s.logger.Debug("usage already recorded", slog.String("request_id", requestID), slog.Int64("user_id", userID))
	}
	return nil
}
