package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/chatforge/chatforge/internal/auth"
	"github.com/chatforge/chatforge/internal/models"
	"github.com/chatforge/chatforge/internal/vendors"
)

type ModelStore interface {
	GetByID(ctx context.Context, id int64) (models.Descriptor, error)
	List(ctx context.Context, vendor models.Vendor) ([]models.Descriptor, error)
	Create(ctx context.Context, req models.CreateRequest) (models.Descriptor, error)
	Update(ctx context.Context, id int64, req models.UpdateRequest) (models.Descriptor, error)
	Delete(ctx context.Context, id int64) error
}

// VendorCatalog reports which adapters are wired.
type VendorCatalog interface {
	Vendors() []models.Vendor
	ImageGenerator(vendor models.Vendor) (vendors.ImageGenerator, bool)
	ToolGenerator(vendor models.Vendor) (vendors.ToolGenerator, bool)
}

type VendorInfo struct {
	Name            models.Vendor `json:"name"`
	Configured      bool          `json:"configured"`
	ImageGeneration bool          `json:"image_generation"`
	Tools           bool          `json:"tools"`
}

type ModelsHandler struct {
	service  ModelStore
	adapters VendorCatalog
	logger   *slog.Logger
}

func NewModelsHandler(log *slog.Logger, service ModelStore, adapters VendorCatalog) *ModelsHandler {
	return &ModelsHandler{
		service:  service,
		adapters: adapters,
		logger:   log.With(slog.String("handler", "models")),
	}
}

func (h *ModelsHandler) Register(e *echo.Echo) {
	group := e.Group("/models")
	group.GET("", h.List)
	group.GET("/:id", h.Get)
	group.POST("", h.Create, auth.RequireAdmin)
	group.PUT("/:id", h.Update, auth.RequireAdmin)
	group.DELETE("/:id", h.Delete, auth.RequireAdmin)

	e.GET("/vendors", h.ListVendors)
}

// List godoc
// @Summary List models
// @Description List catalog models, optionally filtered by vendor
// @Tags models
// @Produce json
// @Param vendor query string false "Vendor filter (openai, anthropic, google, openrouter)"
// @Success 200 {array} models.Descriptor
// @Failure 400 {object} ErrorResponse
// @Router /models [get]
func (h *ModelsHandler) List(c echo.Context) error {
	vendor := models.Vendor(strings.TrimSpace(c.QueryParam("vendor")))
	if vendor != "" && !vendor.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid vendor: "+string(vendor))
	}
	items, err := h.service.List(c.Request().Context(), vendor)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, items)
}

// Get godoc
// @Summary Get a model
// @Tags models
// @Produce json
// @Param id path int true "Model ID"
// @Success 200 {object} models.Descriptor
// @Failure 404 {object} ErrorResponse
// @Router /models/{id} [get]
func (h *ModelsHandler) Get(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	item, err := h.service.GetByID(c.Request().Context(), id)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, item)
}

// Create godoc
// @Summary Create a model
// @Tags models
// @Accept json
// @Produce json
// @Param request body models.CreateRequest true "Model"
// @Success 201 {object} models.Descriptor
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /models [post]
func (h *ModelsHandler) Create(c echo.Context) error {
	var req models.CreateRequest
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
// @Summary Update a model
// @Tags models
// @Accept json
// @Produce json
// @Param id path int true "Model ID"
// @Param request body models.UpdateRequest true "Model"
// @Success 200 {object} models.Descriptor
// @Failure 404 {object} ErrorResponse
// @Router /models/{id} [put]
func (h *ModelsHandler) Update(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	var req models.UpdateRequest
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
// @Summary Delete a model
// @Tags models
// @Param id path int true "Model ID"
// @Success 200 {object} models.DeleteResponse
// @Failure 404 {object} ErrorResponse
// @Router /models/{id} [delete]
func (h *ModelsHandler) Delete(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.Request().Context(), id); err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, models.DeleteResponse{Message: "Model deleted successfully"})
}

// ListVendors godoc
// @Summary List vendors
// @Description List supported vendors and whether an adapter is configured for each
// @Tags models
// @Produce json
// @Success 200 {array} VendorInfo
// @Router /vendors [get]
func (h *ModelsHandler) ListVendors(c echo.Context) error {
	configured := map[models.Vendor]bool{}
	if h.adapters != nil {
		for _, v := range h.adapters.Vendors() {
			configured[v] = true
		}
	}
	out := make([]VendorInfo, 0, len(models.Vendors()))
	for _, v := range models.Vendors() {
		info := VendorInfo{Name: v, Configured: configured[v]}
		if info.Configured {
			_, info.ImageGeneration = h.adapters.ImageGenerator(v)
			_, info.Tools = h.adapters.ToolGenerator(v)
		}
		out = append(out, info)
	}
	return c.JSON(http.StatusOK, out)
}
