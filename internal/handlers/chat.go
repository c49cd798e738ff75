package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/chatforge/chatforge/internal/auth"
	"github.com/chatforge/chatforge/internal/chat"
	"github.com/chatforge/chatforge/internal/usage"
)

// Chatter runs one chat turn.
type Chatter interface {
	CreateChat(ctx context.Context, userID int64, fields url.Values, image *chat.Image) (chat.Result, error)
}

type ChatHandler struct {
	chat   Chatter
	logger *slog.Logger
}

func NewChatHandler(log *slog.Logger, service Chatter) *ChatHandler {
	return &ChatHandler{
		chat:   service,
		logger: log.With(slog.String("handler", "chat")),
	}
}

func (h *ChatHandler) Register(e *echo.Echo) {
	e.POST("/chat", h.Chat)
}

// Chat godoc
// @Summary Chat with a model
// @Description Run one chat turn against the selected model. The reply is merged into the returned transcript.
// @Tags chat
// @Accept multipart/form-data
// @Produce json
// @Param model formData string true "Model api name or id"
// @Param persona formData string true "Persona id"
// @Param outputFormat formData string true "Output format id"
// @Param prompt formData string true "User prompt"
// @Param maxTokens formData integer false "Max output tokens"
// @Param budgetTokens formData integer false "Thinking budget"
// @Param mcpTool formData integer false "Tool binding id"
// @Param history formData string false "Prior transcript as JSON"
// @Param save formData boolean false "Persist the conversation"
// @Param image formData file false "Image for vision models"
// @Success 200 {object} chat.Result
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /chat [post]
func (h *ChatHandler) Chat(c echo.Context) error {
	fields, err := c.FormParams()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var image *chat.Image
	if fh, err := c.FormFile("image"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		defer f.Close()
		image = &chat.Image{Filename: fh.Filename, Body: f}
	} else if !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	// A missing token yields 0, which the service rejects as unauthenticated.
	userID, _ := auth.UserIDFromContext(c)

	result, err := h.chat.CreateChat(c.Request().Context(), userID, fields, image)
	if err != nil {
		return h.chatError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// chatError maps service errors to HTTP errors. Unclassified errors are
// logged and answered with a generic message.
func (h *ChatHandler) chatError(err error) error {
	var validationErr *chat.ValidationError
	var dispatchErr *chat.DispatchError
	switch {
	case errors.As(err, &validationErr):
		return echo.NewHTTPError(http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, chat.ErrModelNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, chat.ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, chat.ErrUnauthenticated.Error())
	case errors.Is(err, usage.ErrLimitExceeded):
		return echo.NewHTTPError(http.StatusTooManyRequests, err.Error())
	case errors.Is(err, chat.ErrUsageCheckFailed):
		return echo.NewHTTPError(http.StatusServiceUnavailable, chat.ErrUsageCheckFailed.Error())
	case errors.As(err, &dispatchErr):
		return echo.NewHTTPError(http.StatusBadGateway, dispatchErr.Error())
	default:
		h.logger.Error("chat failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
