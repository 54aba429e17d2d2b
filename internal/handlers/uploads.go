package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/laurel/internal/services/upload"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/utils"
)

// UploadHandler handles upload reservation API endpoints
type UploadHandler struct {
	service *upload.Service
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(service *upload.Service) *UploadHandler {
	return &UploadHandler{service: service}
}

// CreateUploadRequest represents the upload reservation request body
type CreateUploadRequest struct {
	Purpose       string  `json:"purpose" validate:"required"`
	ContentType   string  `json:"content_type" validate:"required"`
	CorrelationID *string `json:"correlation_id,omitempty"`
}

// ConfirmUploadRequest represents the upload confirmation request body
type ConfirmUploadRequest struct {
	SizeBytes int64 `json:"size_bytes" validate:"gte=0"`
}

// RegisterRoutes registers upload routes
func (h *UploadHandler) RegisterRoutes(g *echo.Group) {
	uploads := g.Group("/uploads")
	uploads.POST("", h.Create)
	uploads.GET("", h.ListMine)
	uploads.GET("/:id", h.GetByID)
	uploads.POST("/:id/confirm", h.Confirm)
}

// Create handles POST /uploads
func (h *UploadHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[CreateUploadRequest](c)
	if err != nil {
		return err
	}

	ticket, err := h.service.Create(ctx, upload.CreateInput{
		OwnerID:       actor.ID,
		Purpose:       models.UploadPurpose(req.Purpose),
		ContentType:   req.ContentType,
		CorrelationID: req.CorrelationID,
	})
	if err != nil {
		return err
	}

	return CreatedResponse(c, ticket)
}

// ListMine handles GET /uploads
func (h *UploadHandler) ListMine(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	uploads, err := h.service.ListMine(ctx, actor.ID, intQueryParam(c, "limit", 50), intQueryParam(c, "offset", 0))
	if err != nil {
		return err
	}

	return SuccessResponse(c, uploads)
}

// GetByID handles GET /uploads/:id
func (h *UploadHandler) GetByID(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	u, err := h.service.Get(ctx, id.String(), actor.ID, actor.Role)
	if err != nil {
		return err
	}

	return SuccessResponse(c, u)
}

// Confirm handles POST /uploads/:id/confirm
func (h *UploadHandler) Confirm(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[ConfirmUploadRequest](c)
	if err != nil {
		return err
	}

	u, err := h.service.Confirm(ctx, id.String(), actor.ID, req.SizeBytes)
	if err != nil {
		return err
	}

	return SuccessResponse(c, u)
}
