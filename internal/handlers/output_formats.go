package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chatforge/chatforge/internal/auth"
	"github.com/chatforge/chatforge/internal/outputformats"
)

type OutputFormatStore interface {
	Get(ctx context.Context, id int64) (outputformats.OutputFormat, error)
	List(ctx context.Context) ([]outputformats.OutputFormat, error)
	Create(ctx context.Context, req outputformats.CreateRequest) (outputformats.OutputFormat, error)
	Update(ctx context.Context, id int64, req outputformats.UpdateRequest) (outputformats.OutputFormat, error)
	Delete(ctx context.Context, id int64) error
	ListRenderTypes(ctx context.Context) ([]outputformats.RenderType, error)
}

type OutputFormatsHandler struct {
	service OutputFormatStore
	logger  *slog.Logger
}

func NewOutputFormatsHandler(log *slog.Logger, service OutputFormatStore) *OutputFormatsHandler {
	return &OutputFormatsHandler{
		service: service,
		logger:  log.With(slog.String("handler", "output_formats")),
	}
}

func (h *OutputFormatsHandler) Register(e *echo.Echo) {
	group := e.Group("/output-formats")
	group.GET("", h.List)
	group.GET("/:id", h.Get)
	group.POST("", h.Create, auth.RequireAdmin)
	group.PUT("/:id", h.Update, auth.RequireAdmin)
	group.DELETE("/:id", h.Delete, auth.RequireAdmin)

	e.GET("/render-types", h.ListRenderTypes)
}

// List godoc
// @Summary List output formats
// @Tags output-formats
// @Produce json
// @Success 200 {array} outputformats.OutputFormat
// @Router /output-formats [get]
func (h *OutputFormatsHandler) List(c echo.Context) error {
	items, err := h.service.List(c.Request().Context())
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, items)
}

// Get godoc
// @Summary Get an output format
// @Tags output-formats
// @Produce json
// @Param id path int true "Output format ID"
// @Success 200 {object} outputformats.OutputFormat
// @Failure 404 {object} ErrorResponse
// @Router /output-formats/{id} [get]
func (h *OutputFormatsHandler) Get(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	item, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, item)
}

// Create godoc
// @Summary Create an output format
// @Tags output-formats
// @Accept json
// @Produce json
// @Param request body outputformats.CreateRequest true "Output format"
// @Success 201 {object} outputformats.OutputFormat
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /output-formats [post]
func (h *OutputFormatsHandler) Create(c echo.Context) error {
	var req outputformats.CreateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	item, err := h.service.Create(c.Request().Context(), req)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusCreated, item)
}

// Update godoc
// @Summary Update an output format
// @Tags output-formats
// @Accept json
// @Produce json
// @Param id path int true "Output format ID"
// @Param request body outputformats.UpdateRequest true "Fields to change"
// @Success 200 {object} outputformats.OutputFormat
// @Failure 404 {object} ErrorResponse
// @Router /output-formats/{id} [put]
func (h *OutputFormatsHandler) Update(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	var req outputformats.UpdateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	item, err := h.service.Update(c.Request().Context(), id, req)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, item)
}

// Delete godoc
// @Summary Delete an output format
// @Tags output-formats
// @Param id path int true "Output format ID"
// @Success 204
// @Router /output-formats/{id} [delete]
func (h *OutputFormatsHandler) Delete(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.Request().Context(), id); err != nil {
		return storeError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListRenderTypes godoc
// @Summary List render types
// @Tags output-formats
// @Produce json
// @Success 200 {array} outputformats.RenderType
// @Router /render-types [get]
func (h *OutputFormatsHandler) ListRenderTypes(c echo.Context) error {
	items, err := h.service.ListRenderTypes(c.Request().Context())
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, items)
}
