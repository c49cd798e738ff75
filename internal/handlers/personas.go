package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chatforge/chatforge/internal/auth"
	"github.com/chatforge/chatforge/internal/personas"
)

type PersonaStore interface {
	Get(ctx context.Context, id int64) (personas.Persona, error)
	List(ctx context.Context) ([]personas.Persona, error)
	Create(ctx context.Context, req personas.CreateRequest) (personas.Persona, error)
	Update(ctx context.Context, id int64, req personas.UpdateRequest) (personas.Persona, error)
	Delete(ctx context.Context, id int64) error
}

type PersonasHandler struct {
	service PersonaStore
	logger  *slog.Logger
}

func NewPersonasHandler(log *slog.Logger, service PersonaStore) *PersonasHandler {
	return &PersonasHandler{
		service: service,
		logger:  log.With(slog.String("handler", "personas")),
	}
}

func (h *PersonasHandler) Register(e *echo.Echo) {
	group := e.Group("/personas")
	group.GET("", h.List)
	group.GET("/:id", h.Get)
	group.POST("", h.Create, auth.RequireAdmin)
	group.PUT("/:id", h.Update, auth.RequireAdmin)
	group.DELETE("/:id", h.Delete, auth.RequireAdmin)
}

// List godoc
// @Summary List personas
// @Tags personas
// @Produce json
// @Success 200 {array} personas.Persona
// @Failure 500 {object} ErrorResponse
// @Router /personas [get]
func (h *PersonasHandler) List(c echo.Context) error {
	items, err := h.service.List(c.Request().Context())
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, items)
}

// Get godoc
// @Summary Get a persona
// @Tags personas
// @Produce json
// @Param id path int true "Persona ID"
// @Success 200 {object} personas.Persona
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /personas/{id} [get]
func (h *PersonasHandler) Get(c echo.Context) error {
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
// @Summary Create a persona
// @Tags personas
// @Accept json
// @Produce json
// @Param request body personas.CreateRequest true "Persona"
// @Success 201 {object} personas.Persona
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /personas [post]
func (h *PersonasHandler) Create(c echo.Context) error {
	var req personas.CreateRequest
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
// @Summary Update a persona
// @Tags personas
// @Accept json
// @Produce json
// @Param id path int true "Persona ID"
// @Param request body personas.UpdateRequest true "Fields to change"
// @Success 200 {object} personas.Persona
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /personas/{id} [put]
func (h *PersonasHandler) Update(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	var req personas.UpdateRequest
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
// @Summary Delete a persona
// @Tags personas
// @Param id path int true "Persona ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /personas/{id} [delete]
func (h *PersonasHandler) Delete(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.Request().Context(), id); err != nil {
		return storeError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
