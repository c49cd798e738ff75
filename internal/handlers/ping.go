package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type PingHandler struct {
	logger    *slog.Logger
	startedAt time.Time
}

type PingResponse struct {
	Status        string `json:"status"`
	Service       string `json:"service"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func NewPingHandler(log *slog.Logger) *PingHandler {
	return &PingHandler{
		logger:    log.With(slog.String("handler", "ping")),
		startedAt: time.Now(),
	}
}

func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.Ping)
	e.HEAD("/health", h.Alive)
}

// Ping godoc
// @Summary Liveness probe with process uptime
// @Tags system
// @Produce json
// @Success 200 {object} PingResponse
// @Router /ping [get]
func (h *PingHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, PingResponse{
		Status:        "ok",
		Service:       "chatforge",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
	})
}

// Alive answers load balancer probes without a body.
func (h *PingHandler) Alive(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}
