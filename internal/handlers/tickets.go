package handlers

import (
	"github.com/labstack/echo/v4"

	repo "github.com/Ramsey-B/laurel/internal/repositories/loanticket"
	"github.com/Ramsey-B/laurel/internal/services/loanticket"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/utils"
)

// TicketHandler handles loan ticket API endpoints
type TicketHandler struct {
	service *loanticket.Service
}

// NewTicketHandler creates a new loan ticket handler
func NewTicketHandler(service *loanticket.Service) *TicketHandler {
	return &TicketHandler{service: service}
}

// CreateTicketRequest represents the loan inquiry request body
type CreateTicketRequest struct {
	RequesterName     string  `json:"requester_name" validate:"required"`
	RequesterEmail    string  `json:"requester_email" validate:"required,email"`
	RequesterPhone    string  `json:"requester_phone" validate:"required"`
	RequesterLocation string  `json:"requester_location"`
	LoanType          string  `json:"loan_type" validate:"required"`
	LoanCategory      string  `json:"loan_category"`
	PropertyValue     float64 `json:"property_value" validate:"required,gt=0"`
	LoanAmountNeeded  float64 `json:"loan_amount_needed" validate:"required,gt=0"`
	TenureMonths      int     `json:"tenure_months" validate:"required,gt=0"`
	MonthlyIncome     float64 `json:"monthly_income" validate:"gte=0"`
	Priority          string  `json:"priority"`
}

// ReassignRequest represents the reassignment request body. A nil assignee
// asks the server to auto-assign.
type ReassignRequest struct {
	AssigneeID      *string `json:"assignee_id,omitempty"`
	ExpectedVersion int     `json:"expected_version" validate:"required,gt=0"`
}

// ChangeStatusRequest represents the status transition request body
type ChangeStatusRequest struct {
	Status          string `json:"status" validate:"required"`
	Comment         string `json:"comment"`
	ExpectedVersion int    `json:"expected_version" validate:"required,gt=0"`
}

// EscalateRequest represents the escalation request body
type EscalateRequest struct {
	Reason          string `json:"reason" validate:"required"`
	ExpectedVersion int    `json:"expected_version" validate:"required,gt=0"`
}

// CommentRequest represents the comment request body
type CommentRequest struct {
	Body     string `json:"body" validate:"required"`
	IsPublic bool   `json:"is_public"`
}

// BulkReassignRequest represents the bulk reassignment request body
type BulkReassignRequest struct {
	TicketIDs  []string `json:"ticket_ids" validate:"required,min=1"`
	AssigneeID string   `json:"assignee_id" validate:"required"`
}

// BulkEscalateRequest represents the bulk escalation request body
type BulkEscalateRequest struct {
	TicketIDs []string `json:"ticket_ids" validate:"required,min=1"`
	Reason    string   `json:"reason" validate:"required"`
}

// RegisterRoutes registers loan ticket routes
func (h *TicketHandler) RegisterRoutes(g *echo.Group) {
	tickets := g.Group("/tickets")
	tickets.POST("", h.Create)
	tickets.GET("", h.List)
	tickets.GET("/:id", h.GetByID)
	tickets.DELETE("/:id", h.Delete)
	tickets.POST("/:id/take", h.Take)
	tickets.POST("/:id/reassign", h.Reassign)
	tickets.POST("/:id/status", h.ChangeStatus)
	tickets.POST("/:id/escalate", h.Escalate)
	tickets.POST("/:id/comments", h.AddComment)
	tickets.GET("/:id/comments", h.ListComments)
	tickets.GET("/:id/history", h.History)
	tickets.POST("/bulk/reassign", h.BulkReassign)
	tickets.POST("/bulk/escalate", h.BulkEscalate)
}

// Create handles POST /tickets
func (h *TicketHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[CreateTicketRequest](c)
	if err != nil {
		return err
	}

	ticket, err := h.service.Create(ctx, loanticket.CreateInput{
		RequesterID:       actor.ID,
		RequesterName:     req.RequesterName,
		RequesterEmail:    req.RequesterEmail,
		RequesterPhone:    req.RequesterPhone,
		RequesterLocation: req.RequesterLocation,
		LoanType:          req.LoanType,
		LoanCategory:      req.LoanCategory,
		PropertyValue:     req.PropertyValue,
		LoanAmountNeeded:  req.LoanAmountNeeded,
		TenureMonths:      req.TenureMonths,
		MonthlyIncome:     req.MonthlyIncome,
		Priority:          models.TicketPriority(req.Priority),
	})
	if err != nil {
		return err
	}

	return CreatedResponse(c, ticket)
}

// List handles GET /tickets
func (h *TicketHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	filter := repo.TicketFilter{
		Status:     models.TicketStatus(c.QueryParam("status")),
		AssigneeID: c.QueryParam("assignee_id"),
		Limit:      intQueryParam(c, "limit", 50),
		Offset:     intQueryParam(c, "offset", 0),
	}
	if raw := c.QueryParam("escalated"); raw != "" {
		escalated := raw == "true"
		filter.Escalated = &escalated
	}

	tickets, err := h.service.List(ctx, filter, actor.ID, actor.Role)
	if err != nil {
		return err
	}

	return SuccessResponse(c, tickets)
}

// GetByID handles GET /tickets/:id
func (h *TicketHandler) GetByID(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	ticket, err := h.service.Get(ctx, id.String(), actor.ID, actor.Role)
	if err != nil {
		return err
	}

	return SuccessResponse(c, ticket)
}

// Delete handles DELETE /tickets/:id
func (h *TicketHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.service.Delete(ctx, id.String(), actor.Role); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// Take handles POST /tickets/:id/take
func (h *TicketHandler) Take(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	ticket, err := h.service.Take(ctx, id.String(), actor.ID, actor.Role)
	if err != nil {
		return err
	}

	return SuccessResponse(c, ticket)
}

// Reassign handles POST /tickets/:id/reassign
func (h *TicketHandler) Reassign(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[ReassignRequest](c)
	if err != nil {
		return err
	}

	ticket, err := h.service.Reassign(ctx, id.String(), actor.ID, actor.Role, req.AssigneeID, req.ExpectedVersion)
	if err != nil {
		return err
	}

	return SuccessResponse(c, ticket)
}

// ChangeStatus handles POST /tickets/:id/status
func (h *TicketHandler) ChangeStatus(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[ChangeStatusRequest](c)
	if err != nil {
		return err
	}

	ticket, err := h.service.ChangeStatus(ctx, id.String(), actor.ID, actor.Role, models.TicketStatus(req.Status), req.Comment, req.ExpectedVersion)
	if err != nil {
		return err
	}

	return SuccessResponse(c, ticket)
}

// Escalate handles POST /tickets/:id/escalate
func (h *TicketHandler) Escalate(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[EscalateRequest](c)
	if err != nil {
		return err
	}

	ticket, err := h.service.Escalate(ctx, id.String(), actor.ID, actor.Role, req.Reason, req.ExpectedVersion)
	if err != nil {
		return err
	}

	return SuccessResponse(c, ticket)
}

// AddComment handles POST /tickets/:id/comments
func (h *TicketHandler) AddComment(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[CommentRequest](c)
	if err != nil {
		return err
	}

	comment, err := h.service.AddComment(ctx, id.String(), actor.ID, req.Body, req.IsPublic)
	if err != nil {
		return err
	}

	return CreatedResponse(c, comment)
}

// ListComments handles GET /tickets/:id/comments
func (h *TicketHandler) ListComments(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	comments, err := h.service.ListComments(ctx, id.String(), actor.ID, actor.Role)
	if err != nil {
		return err
	}

	return SuccessResponse(c, comments)
}

// History handles GET /tickets/:id/history
func (h *TicketHandler) History(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	entries, err := h.service.History(ctx, id.String(), actor.Role)
	if err != nil {
		return err
	}

	return SuccessResponse(c, entries)
}

// BulkReassign handles POST /tickets/bulk/reassign
func (h *TicketHandler) BulkReassign(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[BulkReassignRequest](c)
	if err != nil {
		return err
	}

	result, err := h.service.BulkReassign(ctx, actor.ID, actor.Role, req.TicketIDs, req.AssigneeID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, result)
}

// BulkEscalate handles POST /tickets/bulk/escalate
func (h *TicketHandler) BulkEscalate(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[BulkEscalateRequest](c)
	if err != nil {
		return err
	}

	result, err := h.service.BulkEscalate(ctx, actor.ID, actor.Role, req.TicketIDs, req.Reason)
	if err != nil {
		return err
	}

	return SuccessResponse(c, result)
}
