package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chatforge/chatforge/internal/auth"
	"github.com/chatforge/chatforge/internal/history"
)

type HistoryStore interface {
	List(ctx context.Context, userID int64) ([]history.Conversation, error)
	Get(ctx context.Context, userID, id int64) (history.Conversation, error)
	Delete(ctx context.Context, userID, id int64) error
}

type HistoryHandler struct {
	service HistoryStore
	logger  *slog.Logger
}

func NewHistoryHandler(log *slog.Logger, service HistoryStore) *HistoryHandler {
	return &HistoryHandler{
		service: service,
		logger:  log.With(slog.String("handler", "history")),
	}
}

func (h *HistoryHandler) Register(e *echo.Echo) {
	group := e.Group("/history")
	group.GET("", h.List)
	group.GET("/:id", h.Get)
	group.DELETE("/:id", h.Delete)
}

// List godoc
// @Summary List saved conversations
// @Description List the current user's conversations, newest first, without transcripts
// @Tags history
// @Produce json
// @Success 200 {array} history.Conversation
// @Failure 401 {object} ErrorResponse
// @Router /history [get]
func (h *HistoryHandler) List(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}
	items, err := h.service.List(c.Request().Context(), userID)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, items)
}

// Get godoc
// @Summary Get a saved conversation
// @Tags history
// @Produce json
// @Param id path int true "Conversation ID"
// @Success 200 {object} history.Conversation
// @Failure 404 {object} ErrorResponse
// @Router /history/{id} [get]
func (h *HistoryHandler) Get(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	item, err := h.service.Get(c.Request().Context(), userID, id)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, item)
}

// Delete godoc
// @Summary Delete a saved conversation
// @Tags history
// @Param id path int true "Conversation ID"
// @Success 200 {object} deleteResponse
// @Failure 404 {object} ErrorResponse
// @Router /history/{id} [delete]
func (h *HistoryHandler) Delete(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.Request().Context(), userID, id); err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, deleteResponse{Message: "History deleted successfully"})
}
