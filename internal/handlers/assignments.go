package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/laurel/internal/services/assignment"
	"github.com/Ramsey-B/laurel/pkg/utils"
)

// AssignmentHandler handles assignment graph API endpoints
type AssignmentHandler struct {
	service *assignment.Service
}

// NewAssignmentHandler creates a new assignment handler
func NewAssignmentHandler(service *assignment.Service) *AssignmentHandler {
	return &AssignmentHandler{service: service}
}

// SetAssignmentsRequest carries the full desired property set.
type SetAssignmentsRequest struct {
	PropertyIDs []string `json:"property_ids"`
}

// RegisterRoutes registers assignment routes
func (h *AssignmentHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/employees/:id/assignments", h.ListEmployeeAssignments)
	g.PUT("/employees/:id/assignments", h.SetEmployeeAssignments)
	g.GET("/agents/:id/assignments", h.ListAgentAssignments)
	g.PUT("/agents/:id/assignments", h.SetAgentAssignments)
}

// ListEmployeeAssignments handles GET /employees/:id/assignments
func (h *AssignmentHandler) ListEmployeeAssignments(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := GetActor(c); err != nil {
		return err
	}

	assignments, err := h.service.ListEmployeeAssignments(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return SuccessResponse(c, assignments)
}

// SetEmployeeAssignments handles PUT /employees/:id/assignments
func (h *AssignmentHandler) SetEmployeeAssignments(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[SetAssignmentsRequest](c)
	if err != nil {
		return err
	}

	result, err := h.service.SetEmployeeAssignments(ctx, actor.ID, actor.Role, c.Param("id"), req.PropertyIDs)
	if err != nil {
		return err
	}

	return SuccessResponse(c, result)
}

// ListAgentAssignments handles GET /agents/:id/assignments
func (h *AssignmentHandler) ListAgentAssignments(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := GetActor(c); err != nil {
		return err
	}

	assignments, err := h.service.ListAgentAssignments(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return SuccessResponse(c, assignments)
}

// SetAgentAssignments handles PUT /agents/:id/assignments
func (h *AssignmentHandler) SetAgentAssignments(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[SetAssignmentsRequest](c)
	if err != nil {
		return err
	}

	result, err := h.service.SetAgentAssignments(ctx, actor.ID, actor.Role, c.Param("id"), req.PropertyIDs)
	if err != nil {
		return err
	}

	return SuccessResponse(c, result)
}
