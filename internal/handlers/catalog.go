package handlers

import (
	"encoding/json"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/laurel/internal/services/catalog"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/utils"
)

// CatalogHandler handles the published property and banner endpoints
type CatalogHandler struct {
	service *catalog.Service
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(service *catalog.Service) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// UpsertEntityRequest represents an admin direct-write request body
type UpsertEntityRequest struct {
	Data json.RawMessage `json:"data" validate:"required"`
}

// CreateEmployeeRequest represents the employee registration request body
type CreateEmployeeRequest struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Department string `json:"department" validate:"required"`
}

// RegisterRoutes registers catalog routes
func (h *CatalogHandler) RegisterRoutes(g *echo.Group) {
	properties := g.Group("/properties")
	properties.GET("", h.ListProperties)
	properties.GET("/:id", h.GetProperty)
	properties.POST("", h.CreateProperty)
	properties.PUT("/:id", h.UpdateProperty)
	properties.DELETE("/:id", h.DeleteProperty)

	banners := g.Group("/banners")
	banners.GET("", h.ListBanners)
	banners.GET("/:id", h.GetBanner)
	banners.POST("", h.CreateBanner)
	banners.PUT("/:id", h.UpdateBanner)
	banners.DELETE("/:id", h.DeleteBanner)

	g.POST("/employees", h.CreateEmployee)
}

// ListProperties handles GET /properties
func (h *CatalogHandler) ListProperties(c echo.Context) error {
	ctx := c.Request().Context()

	properties, err := h.service.ListProperties(ctx, intQueryParam(c, "limit", 50), intQueryParam(c, "offset", 0))
	if err != nil {
		return err
	}

	return SuccessResponse(c, properties)
}

// GetProperty handles GET /properties/:id
func (h *CatalogHandler) GetProperty(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	property, err := h.service.GetProperty(ctx, id.String())
	if err != nil {
		return err
	}

	return SuccessResponse(c, property)
}

// CreateProperty handles POST /properties
func (h *CatalogHandler) CreateProperty(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[UpsertEntityRequest](c)
	if err != nil {
		return err
	}

	id, err := h.service.UpsertProperty(ctx, actor.ID, actor.Role, "", req.Data)
	if err != nil {
		return err
	}

	return CreatedResponse(c, map[string]string{"id": id})
}

// UpdateProperty handles PUT /properties/:id
func (h *CatalogHandler) UpdateProperty(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[UpsertEntityRequest](c)
	if err != nil {
		return err
	}

	if _, err := h.service.UpsertProperty(ctx, actor.ID, actor.Role, id.String(), req.Data); err != nil {
		return err
	}

	return SuccessResponse(c, map[string]string{"id": id.String()})
}

// DeleteProperty handles DELETE /properties/:id
func (h *CatalogHandler) DeleteProperty(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.service.DeleteProperty(ctx, actor.ID, actor.Role, id.String()); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// ListBanners handles GET /banners
func (h *CatalogHandler) ListBanners(c echo.Context) error {
	ctx := c.Request().Context()

	banners, err := h.service.ListBanners(ctx, intQueryParam(c, "limit", 50), intQueryParam(c, "offset", 0))
	if err != nil {
		return err
	}

	return SuccessResponse(c, banners)
}

// GetBanner handles GET /banners/:id
func (h *CatalogHandler) GetBanner(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	banner, err := h.service.GetBanner(ctx, id.String())
	if err != nil {
		return err
	}

	return SuccessResponse(c, banner)
}

// CreateBanner handles POST /banners
func (h *CatalogHandler) CreateBanner(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[UpsertEntityRequest](c)
	if err != nil {
		return err
	}

	id, err := h.service.UpsertBanner(ctx, actor.ID, actor.Role, "", req.Data)
	if err != nil {
		return err
	}

	return CreatedResponse(c, map[string]string{"id": id})
}

// UpdateBanner handles PUT /banners/:id
func (h *CatalogHandler) UpdateBanner(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[UpsertEntityRequest](c)
	if err != nil {
		return err
	}

	if _, err := h.service.UpsertBanner(ctx, actor.ID, actor.Role, id.String(), req.Data); err != nil {
		return err
	}

	return SuccessResponse(c, map[string]string{"id": id.String()})
}

// DeleteBanner handles DELETE /banners/:id
func (h *CatalogHandler) DeleteBanner(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.service.DeleteBanner(ctx, actor.ID, actor.Role, id.String()); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// CreateEmployee handles POST /employees
func (h *CatalogHandler) CreateEmployee(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[CreateEmployeeRequest](c)
	if err != nil {
		return err
	}

	emp, err := h.service.CreateEmployee(ctx, actor.ID, actor.Role, models.Employee{
		ID:         req.ID,
		Name:       req.Name,
		Email:      req.Email,
		Department: req.Department,
		IsActive:   true,
	})
	if err != nil {
		return err
	}

	return CreatedResponse(c, emp)
}
