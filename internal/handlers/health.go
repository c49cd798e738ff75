package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chatforge/chatforge/internal/auth"
	"github.com/chatforge/chatforge/internal/healthcheck"
)

// HealthHandler runs the dependency checks for operators.
type HealthHandler struct {
	checkers []healthcheck.Checker
	logger   *slog.Logger
}

func NewHealthHandler(log *slog.Logger, checkers []healthcheck.Checker) *HealthHandler {
	return &HealthHandler{
		checkers: checkers,
		logger:   log.With(slog.String("handler", "health")),
	}
}

func (h *HealthHandler) Register(e *echo.Echo) {
	e.GET("/health/checks", h.Checks, auth.RequireAdmin)
}

// Checks godoc
// @Summary Run dependency checks
// @Description Ping the database and start every MCP tool binding. Responds 503 when any check errors.
// @Tags system
// @Produce json
// @Success 200 {object} healthcheck.Report
// @Failure 403 {object} ErrorResponse
// @Failure 503 {object} healthcheck.Report
// @Router /health/checks [get]
func (h *HealthHandler) Checks(c echo.Context) error {
	report := healthcheck.Run(c.Request().Context(), h.checkers...)
	status := http.StatusOK
	if report.Status == healthcheck.StatusError {
		h.logger.Warn("health checks failing", slog.Int("checks", len(report.Checks)))
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, report)
}
