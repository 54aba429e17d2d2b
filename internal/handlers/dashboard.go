package handlers

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/laurel/internal/services/dashboard"
	"github.com/Ramsey-B/laurel/pkg/models"
)

// DashboardHandler handles the back-office rollup endpoint
type DashboardHandler struct {
	service *dashboard.Service
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(service *dashboard.Service) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// RegisterRoutes registers dashboard routes
func (h *DashboardHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/dashboard/stats", h.Stats)
}

// Stats handles GET /dashboard/stats
func (h *DashboardHandler) Stats(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := GetActor(c)
	if err != nil {
		return err
	}
	if actor.Role == models.RoleCustomer {
		return httperror.NewHTTPError(http.StatusForbidden, "customers cannot read the dashboard")
	}

	stats, err := h.service.Stats(ctx)
	if err != nil {
		return err
	}

	return SuccessResponse(c, stats)
}
