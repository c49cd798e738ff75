package dbchecker

import (
	"context"
	"log/slog"
	"time"

	"github.com/chatforge/chatforge/internal/healthcheck"
)

const (
	checkTypeDB         = "db.connection"
	defaultCheckTimeout = 3 * time.Second
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Checker struct {
	logger  *slog.Logger
	pinger  Pinger
	timeout time.Duration
}

func NewChecker(log *slog.Logger, pinger Pinger) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{
		logger:  log.With(slog.String("checker", "healthcheck_db")),
		pinger:  pinger,
		timeout: defaultCheckTimeout,
	}
}

func (c *Checker) ListChecks(ctx context.Context) []healthcheck.CheckResult {
	item := healthcheck.CheckResult{
		ID:      checkTypeDB,
		Type:    checkTypeDB,
		Subject: "postgres",
	}
	if c.pinger == nil {
		item.Status = healthcheck.StatusError
		item.Summary = "Database is not configured."
		return []healthcheck.CheckResult{item}
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	started := time.Now()
	if err := c.pinger.Ping(probeCtx); err != nil {
		c.logger.Warn("db healthcheck failed", slog.Any("error", err))
		item.Status = healthcheck.StatusError
		item.Summary = "Database is not reachable."
		item.Detail = err.Error()
		return []healthcheck.CheckResult{item}
	}
	item.Status = healthcheck.StatusOK
	item.Summary = "Database is reachable."
	item.Metadata = map[string]any{"latency_ms": time.Since(started).Milliseconds()}
	return []healthcheck.CheckResult{item}
}
