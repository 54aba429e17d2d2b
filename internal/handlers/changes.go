package handlers

import (
	"encoding/json"

	"github.com/labstack/echo/v4"

	repo "github.com/Ramsey-B/laurel/internal/repositories/pendingchange"
	"github.com/Ramsey-B/laurel/internal/services/pendingchange"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/utils"
)

// ChangeHandler handles pending change API endpoints
type ChangeHandler struct {
	service *pendingchange.Service
}

// NewChangeHandler creates a new pending change handler
func NewChangeHandler(service *pendingchange.Service) *ChangeHandler {
	return &ChangeHandler{service: service}
}

// SubmitChangeRequest represents the change submission request body
type SubmitChangeRequest struct {
	EntityKind     string          `json:"entity_kind" validate:"required"`
	TargetID       *string         `json:"target_id,omitempty"`
	Payload        json.RawMessage `json:"payload" validate:"required"`
	DiffSummary    *string         `json:"diff_summary,omitempty"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty"`
	AsDraft        bool            `json:"as_draft"`
	UploadIDs      []string        `json:"upload_ids,omitempty"`
}

// UpdateChangeRequest represents the payload replacement request body
type UpdateChangeRequest struct {
	Payload     json.RawMessage `json:"payload" validate:"required"`
	DiffSummary *string         `json:"diff_summary,omitempty"`
}

// ReviewRequest represents a reject or revision request body
type ReviewRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// WithdrawRequest represents the withdraw request body. MoveToDraft keeps the
// change around as a draft instead of deleting it.
type WithdrawRequest struct {
	MoveToDraft bool `json:"move_to_draft"`
}

// ApproveRequest represents the optional approve request body. A non-nil
// payload is applied in place of the proposal as submitted.
type ApproveRequest struct {
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RegisterRoutes registers pending change routes
func (h *ChangeHandler) RegisterRoutes(g *echo.Group) {
	changes := g.Group("/changes")
	changes.POST("", h.Submit)
	changes.GET("", h.List)
	changes.GET("/:id", h.GetByID)
	changes.PUT("/:id", h.Update)
	changes.POST("/:id/submit", h.SubmitDraft)
	changes.POST("/:id/withdraw", h.Withdraw)
	changes.DELETE("/:id", h.Discard)
	changes.POST("/:id/approve", h.Approve)
	changes.POST("/:id/reject", h.Reject)
	changes.POST("/:id/request-revision", h.RequestRevision)
}

// Submit handles POST /changes
func (h *ChangeHandler) Submit(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[SubmitChangeRequest](c)
	if err != nil {
		return err
	}

	result, err := h.service.Submit(ctx, pendingchange.SubmitInput{
		EntityKind:     models.EntityKind(req.EntityKind),
		TargetID:       req.TargetID,
		ProposerID:     actor.ID,
		ProposerRole:   actor.Role,
		Payload:        req.Payload,
		DiffSummary:    req.DiffSummary,
		IdempotencyKey: req.IdempotencyKey,
		AsDraft:        req.AsDraft,
		UploadIDs:      req.UploadIDs,
	})
	if err != nil {
		return err
	}

	if result.Idempotent {
		return SuccessResponse(c, result)
	}
	return CreatedResponse(c, result)
}

// List handles GET /changes
func (h *ChangeHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	filter := repo.ListFilter{
		Status:     models.ChangeStatus(c.QueryParam("status")),
		EntityKind: models.EntityKind(c.QueryParam("entity_kind")),
		TargetID:   c.QueryParam("target_id"),
		Limit:      intQueryParam(c, "limit", 50),
		Offset:     intQueryParam(c, "offset", 0),
	}

	changes, err := h.service.List(ctx, filter, actor.ID, actor.Role)
	if err != nil {
		return err
	}

	return SuccessResponse(c, changes)
}

// GetByID handles GET /changes/:id
func (h *ChangeHandler) GetByID(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	change, err := h.service.GetChange(ctx, id.String(), actor.ID, actor.Role)
	if err != nil {
		return err
	}

	return SuccessResponse(c, change)
}

// Update handles PUT /changes/:id
func (h *ChangeHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[UpdateChangeRequest](c)
	if err != nil {
		return err
	}

	change, err := h.service.UpdatePayload(ctx, id.String(), actor.ID, req.Payload, req.DiffSummary)
	if err != nil {
		return err
	}

	return SuccessResponse(c, change)
}

// SubmitDraft handles POST /changes/:id/submit
func (h *ChangeHandler) SubmitDraft(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	change, err := h.service.SubmitDraft(ctx, id.String(), actor.ID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, change)
}

// Withdraw handles POST /changes/:id/withdraw
func (h *ChangeHandler) Withdraw(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[WithdrawRequest](c)
	if err != nil {
		return err
	}

	change, err := h.service.Withdraw(ctx, id.String(), actor.ID, req.MoveToDraft)
	if err != nil {
		return err
	}

	if !req.MoveToDraft {
		return NoContentResponse(c)
	}
	return SuccessResponse(c, change)
}

// Discard handles DELETE /changes/:id
func (h *ChangeHandler) Discard(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.service.Discard(ctx, id.String(), actor.ID); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// Approve handles POST /changes/:id/approve
func (h *ChangeHandler) Approve(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[ApproveRequest](c)
	if err != nil {
		return err
	}

	change, err := h.service.Approve(ctx, id.String(), actor.ID, actor.Role, req.Payload)
	if err != nil {
		return err
	}

	return SuccessResponse(c, change)
}

// Reject handles POST /changes/:id/reject
func (h *ChangeHandler) Reject(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[ReviewRequest](c)
	if err != nil {
		return err
	}

	change, err := h.service.Reject(ctx, id.String(), actor.ID, actor.Role, req.Reason)
	if err != nil {
		return err
	}

	return SuccessResponse(c, change)
}

// RequestRevision handles POST /changes/:id/request-revision
func (h *ChangeHandler) RequestRevision(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[ReviewRequest](c)
	if err != nil {
		return err
	}

	change, err := h.service.RequestRevision(ctx, id.String(), actor.ID, actor.Role, req.Reason)
	if err != nil {
		return err
	}

	return SuccessResponse(c, change)
}
