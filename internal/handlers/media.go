package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/chatforge/chatforge/internal/media"
)

type MediaOpener interface {
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
}

type MediaHandler struct {
	service MediaOpener
	logger  *slog.Logger
}

func NewMediaHandler(log *slog.Logger, service MediaOpener) *MediaHandler {
	return &MediaHandler{
		service: service,
		logger:  log.With(slog.String("handler", "media")),
	}
}

func (h *MediaHandler) Register(e *echo.Echo) {
	e.GET("/media/*", h.Serve)
}

// Serve godoc
// @Summary Serve an uploaded image
// @Tags media
// @Produce octet-stream
// @Param key path string true "Storage key"
// @Success 200 {file} binary
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /media/{key} [get]
func (h *MediaHandler) Serve(c echo.Context) error {
	key, ok := cleanMediaKey(c.Param("*"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid media key")
	}
	rc, contentType, err := h.service.Open(c.Request().Context(), key)
	if err != nil {
		if errors.Is(err, media.ErrAssetNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, media.ErrAssetNotFound.Error())
		}
		h.logger.Error("open media failed", slog.String("key", key), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "open media failed")
	}
	defer rc.Close()
	c.Response().Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	return c.Stream(http.StatusOK, contentType, rc)
}

func cleanMediaKey(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.Contains(raw, "..") || strings.HasPrefix(raw, "/") {
		return "", false
	}
	cleaned := path.Clean(raw)
	if cleaned == "." || cleaned != raw {
		return "", false
	}
	return cleaned, true
}
