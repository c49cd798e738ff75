package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chatforge/chatforge/internal/auth"
	"github.com/chatforge/chatforge/internal/tools"
)

type ToolStore interface {
	Get(ctx context.Context, id int64) (tools.Binding, error)
	List(ctx context.Context) ([]tools.Binding, error)
	Create(ctx context.Context, req tools.CreateRequest) (tools.Binding, error)
	Update(ctx context.Context, id int64, req tools.UpdateRequest) (tools.Binding, error)
	Delete(ctx context.Context, id int64) error
}

// ToolsHandler manages MCP server bindings. Bindings carry environment
// secrets, so every route requires an admin token.
type ToolsHandler struct {
	service ToolStore
	logger  *slog.Logger
}

func NewToolsHandler(log *slog.Logger, service ToolStore) *ToolsHandler {
	return &ToolsHandler{
		service: service,
		logger:  log.With(slog.String("handler", "tools")),
	}
}

func (h *ToolsHandler) Register(e *echo.Echo) {
	group := e.Group("/tools", auth.RequireAdmin)
	group.GET("", h.List)
	group.GET("/:id", h.Get)
	group.POST("", h.Create)
	group.PUT("/:id", h.Update)
	group.DELETE("/:id", h.Delete)
}

// List godoc
// @Summary List tool bindings
// @Tags tools
// @Produce json
// @Success 200 {array} tools.Binding
// @Failure 403 {object} ErrorResponse
// @Router /tools [get]
func (h *ToolsHandler) List(c echo.Context) error {
	items, err := h.service.List(c.Request().Context())
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, items)
}

// Get godoc
// @Summary Get a tool binding
// @Tags tools
// @Produce json
// @Param id path int true "Tool ID"
// @Success 200 {object} tools.Binding
// @Failure 404 {object} ErrorResponse
// @Router /tools/{id} [get]
func (h *ToolsHandler) Get(c echo.Context) error {
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
// @Summary Create a tool binding
// @Tags tools
// @Accept json
// @Produce json
// @Param request body tools.CreateRequest true "Tool binding"
// @Success 201 {object} tools.Binding
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /tools [post]
func (h *ToolsHandler) Create(c echo.Context) error {
	var req tools.CreateRequest
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
// @Summary Update a tool binding
// @Tags tools
// @Accept json
// @Produce json
// @Param id path int true "Tool ID"
// @Param request body tools.UpdateRequest true "Fields to change"
// @Success 200 {object} tools.Binding
// @Failure 404 {object} ErrorResponse
// @Router /tools/{id} [put]
func (h *ToolsHandler) Update(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	var req tools.UpdateRequest
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
// @Summary Delete a tool binding
// @Tags tools
// @Param id path int true "Tool ID"
// @Success 204
// @Router /tools/{id} [delete]
func (h *ToolsHandler) Delete(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.Request().Context(), id); err != nil {
		return storeError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
