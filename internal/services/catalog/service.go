// Package catalog exposes the read surface of the published catalogs plus
// the admin-only direct write path that bypasses the review queue.
package catalog

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/laurel/internal/repositories/catalog"
	"github.com/Ramsey-B/laurel/internal/repositories/employee"
	"github.com/Ramsey-B/laurel/pkg/audit"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

type Service struct {
	properties catalog.PropertyRepository
	banners    catalog.BannerRepository
	employees  employee.EmployeeRepository
	audit      audit.Sink
	logger     ectologger.Logger
}

// NewService creates a new catalog service
func NewService(
	properties catalog.PropertyRepository,
	banners catalog.BannerRepository,
	employees employee.EmployeeRepository,
	auditSink audit.Sink,
	logger ectologger.Logger,
) *Service {
	return &Service{
		properties: properties,
		banners:    banners,
		employees:  employees,
		audit:      auditSink,
		logger:     logger,
	}
}

func (s *Service) GetProperty(ctx context.Context, id string) (models.Property, error) {
	ctx, span := tracing.StartSpan(ctx, "catalog.GetProperty")
	defer span.End()

	return s.properties.GetByID(ctx, id)
}

func (s *Service) ListProperties(ctx context.Context, limit, offset int) ([]models.Property, error) {
	ctx, span := tracing.StartSpan(ctx, "catalog.ListProperties")
	defer span.End()

	return s.properties.List(ctx, limit, offset)
}

// UpsertProperty is the admin direct-write path. It skips the pending-change
// queue entirely, which is why it is gated to admins alone.
func (s *Service) UpsertProperty(ctx context.Context, actorID string, role models.Role, id string, data json.RawMessage) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "catalog.UpsertProperty")
	defer span.End()

	if role != models.RoleAdmin {
		return "", httperror.NewHTTPError(http.StatusForbidden, "only admins may write the catalog directly")
	}
	if len(data) == 0 {
		return "", httperror.NewHTTPError(http.StatusBadRequest, "property data is required")
	}
	if id == "" {
		id = uuid.New().String()
	}

	if err := s.properties.Apply(ctx, id, data, actorID, role); err != nil {
		return "", err
	}

	s.audit.Append(ctx, actorID, "property.admin_write", "property", id, nil)
	return id, nil
}

func (s *Service) DeleteProperty(ctx context.Context, actorID string, role models.Role, id string) error {
	ctx, span := tracing.StartSpan(ctx, "catalog.DeleteProperty")
	defer span.End()

	if role != models.RoleAdmin {
		return httperror.NewHTTPError(http.StatusForbidden, "only admins may delete properties")
	}

	if err := s.properties.SoftDelete(ctx, id, actorID); err != nil {
		return err
	}

	s.audit.Append(ctx, actorID, "property.deleted", "property", id, nil)
	return nil
}

func (s *Service) GetBanner(ctx context.Context, id string) (models.Banner, error) {
	ctx, span := tracing.StartSpan(ctx, "catalog.GetBanner")
	defer span.End()

	return s.banners.GetByID(ctx, id)
}

func (s *Service) ListBanners(ctx context.Context, limit, offset int) ([]models.Banner, error) {
	ctx, span := tracing.StartSpan(ctx, "catalog.ListBanners")
	defer span.End()

	return s.banners.List(ctx, limit, offset)
}

func (s *Service) UpsertBanner(ctx context.Context, actorID string, role models.Role, id string, data json.RawMessage) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "catalog.UpsertBanner")
	defer span.End()

	if role != models.RoleAdmin {
		return "", httperror.NewHTTPError(http.StatusForbidden, "only admins may write the catalog directly")
	}
	if len(data) == 0 {
		return "", httperror.NewHTTPError(http.StatusBadRequest, "banner data is required")
	}
	if id == "" {
		id = uuid.New().String()
	}

	if err := s.banners.Apply(ctx, id, data, actorID, role); err != nil {
		return "", err
	}

	s.audit.Append(ctx, actorID, "banner.admin_write", "banner", id, nil)
	return id, nil
}

func (s *Service) DeleteBanner(ctx context.Context, actorID string, role models.Role, id string) error {
	ctx, span := tracing.StartSpan(ctx, "catalog.DeleteBanner")
	defer span.End()

	if role != models.RoleAdmin {
		return httperror.NewHTTPError(http.StatusForbidden, "only admins may delete banners")
	}

	if err := s.banners.SoftDelete(ctx, id, actorID); err != nil {
		return err
	}

	s.audit.Append(ctx, actorID, "banner.deleted", "banner", id, nil)
	return nil
}

// CreateEmployee registers a staff directory entry. Admin only.
func (s *Service) CreateEmployee(ctx context.Context, actorID string, role models.Role, emp models.Employee) (models.Employee, error) {
	ctx, span := tracing.StartSpan(ctx, "catalog.CreateEmployee")
	defer span.End()

	if role != models.RoleAdmin {
		return models.Employee{}, httperror.NewHTTPError(http.StatusForbidden, "only admins may register employees")
	}
	if emp.ID == "" {
		emp.ID = uuid.New().String()
	}
	if emp.Department == "" {
		return models.Employee{}, httperror.NewHTTPError(http.StatusBadRequest, "department is required")
	}

	if err := s.employees.Create(ctx, emp); err != nil {
		return models.Employee{}, err
	}

	s.audit.Append(ctx, actorID, "employee.created", "employee", emp.ID, nil)
	return emp, nil
}
