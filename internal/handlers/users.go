package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chatforge/chatforge/internal/accounts"
	"github.com/chatforge/chatforge/internal/auth"
	"github.com/chatforge/chatforge/internal/usage"
)

type UserReader interface {
	GetByID(ctx context.Context, id int64) (accounts.User, error)
}

type UsageReporter interface {
	Status(ctx context.Context, userID int64) (usage.Status, error)
}

// UsersHandler serves the current user's profile and quota.
type UsersHandler struct {
	accounts UserReader
	usage    UsageReporter
	logger   *slog.Logger
}

func NewUsersHandler(log *slog.Logger, accounts UserReader, usage UsageReporter) *UsersHandler {
	return &UsersHandler{
		accounts: accounts,
		usage:    usage,
		logger:   log.With(slog.String("handler", "users")),
	}
}

func (h *UsersHandler) Register(e *echo.Echo) {
	group := e.Group("/users")
	group.GET("/me", h.GetMe)
	group.GET("/me/usage", h.GetMyUsage)
}

// GetMe godoc
// @Summary Get current user
// @Tags users
// @Produce json
// @Success 200 {object} accounts.User
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /users/me [get]
func (h *UsersHandler) GetMe(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}
	user, err := h.accounts.GetByID(c.Request().Context(), userID)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// GetMyUsage godoc
// @Summary Get current user's quota
// @Tags users
// @Produce json
// @Success 200 {object} usage.Status
// @Failure 401 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /users/me/usage [get]
func (h *UsersHandler) GetMyUsage(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}
	status, err := h.usage.Status(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, usage.ErrUserUnavailable) {
			return echo.NewHTTPError(http.StatusUnauthorized, usage.ErrUserUnavailable.Error())
		}
		h.logger.Error("usage status failed", slog.Int64("user_id", userID), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusServiceUnavailable, usage.ErrCheckFailed.Error())
	}
	return c.JSON(http.StatusOK, status)
}
