// Package assignment maintains the employee->property and agent->property
// graph behind a desired-state API: callers send the full property list and
// the service reconciles edges to match.
package assignment

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/laurel/internal/repositories/assignment"
	"github.com/Ramsey-B/laurel/internal/repositories/catalog"
	"github.com/Ramsey-B/laurel/internal/repositories/employee"
	"github.com/Ramsey-B/laurel/pkg/audit"
	"github.com/Ramsey-B/laurel/pkg/events"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

type Service struct {
	assignments assignment.AssignmentRepository
	employees   employee.EmployeeRepository
	properties  catalog.PropertyRepository
	notifier    events.Notifier
	audit       audit.Sink
	logger      ectologger.Logger
}

// NewService creates a new assignment graph service
func NewService(
	assignments assignment.AssignmentRepository,
	employees employee.EmployeeRepository,
	properties catalog.PropertyRepository,
	notifier events.Notifier,
	auditSink audit.Sink,
	logger ectologger.Logger,
) *Service {
	return &Service{
		assignments: assignments,
		employees:   employees,
		properties:  properties,
		notifier:    notifier,
		audit:       auditSink,
		logger:      logger,
	}
}

// SetEmployeeAssignments reconciles an employee's property set to the
// desired list. Admin only. Every property must exist and appear at most
// once before any edge is touched.
func (s *Service) SetEmployeeAssignments(ctx context.Context, actorID string, role models.Role, employeeID string, propertyIDs []string) (models.ReconcileResult, error) {
	ctx, span := tracing.StartSpan(ctx, "assignment.SetEmployeeAssignments")
	defer span.End()

	if role != models.RoleAdmin {
		return models.ReconcileResult{}, httperror.NewHTTPError(http.StatusForbidden, "only admins may set employee assignments")
	}

	if _, err := s.employees.GetByID(ctx, employeeID); err != nil {
		return models.ReconcileResult{}, err
	}
	if err := rejectDuplicates(propertyIDs); err != nil {
		return models.ReconcileResult{}, err
	}
	if err := s.validateProperties(ctx, propertyIDs); err != nil {
		return models.ReconcileResult{}, err
	}

	result, err := s.assignments.ReplaceEmployeeAssignments(ctx, employeeID, actorID, propertyIDs)
	if err != nil {
		return models.ReconcileResult{}, err
	}

	s.audit.Append(ctx, actorID, "assignments.employee_set", "employee", employeeID, map[string]any{
		"added":   result.Added,
		"removed": result.Removed,
	})

	return result, nil
}

// SetAgentAssignments reconciles an agent's property set scoped under the
// calling employee. Every requested property must be assigned to that
// employee; one bad id rejects the whole request, naming the offender.
func (s *Service) SetAgentAssignments(ctx context.Context, employeeID string, role models.Role, agentID string, propertyIDs []string) (models.ReconcileResult, error) {
	ctx, span := tracing.StartSpan(ctx, "assignment.SetAgentAssignments")
	defer span.End()

	if role != models.RoleEmployee && role != models.RoleAdmin {
		return models.ReconcileResult{}, httperror.NewHTTPError(http.StatusForbidden, "only employees may set agent assignments")
	}

	if err := rejectDuplicates(propertyIDs); err != nil {
		return models.ReconcileResult{}, err
	}

	for _, propertyID := range propertyIDs {
		assigned, err := s.assignments.IsEmployeeAssigned(ctx, employeeID, propertyID)
		if err != nil {
			return models.ReconcileResult{}, err
		}
		if !assigned {
			return models.ReconcileResult{}, httperror.NewHTTPError(http.StatusForbidden, "property is not assigned to the requesting employee").
				AddMetaValue("property_id", propertyID)
		}
	}

	result, err := s.assignments.ReplaceAgentAssignments(ctx, agentID, employeeID, propertyIDs)
	if err != nil {
		return models.ReconcileResult{}, err
	}

	s.audit.Append(ctx, employeeID, "assignments.agent_set", "agent", agentID, map[string]any{
		"added":   result.Added,
		"removed": result.Removed,
	})
	if len(result.Added) > 0 || len(result.Removed) > 0 {
		s.notifier.AssignmentsChanged(ctx, agentID, result)
	}

	return result, nil
}

// ListEmployeeAssignments returns the employee's current edges.
func (s *Service) ListEmployeeAssignments(ctx context.Context, employeeID string) ([]models.EmployeePropertyAssignment, error) {
	ctx, span := tracing.StartSpan(ctx, "assignment.ListEmployeeAssignments")
	defer span.End()

	return s.assignments.ListEmployeeAssignments(ctx, employeeID)
}

// ListAgentAssignments returns the agent's current edges.
func (s *Service) ListAgentAssignments(ctx context.Context, agentID string) ([]models.AgentPropertyAssignment, error) {
	ctx, span := tracing.StartSpan(ctx, "assignment.ListAgentAssignments")
	defer span.End()

	return s.assignments.ListAgentAssignments(ctx, agentID)
}

// rejectDuplicates fails the whole request when a property id appears more
// than once in the desired list, naming the offender.
func rejectDuplicates(propertyIDs []string) error {
	seen := make(map[string]bool, len(propertyIDs))
	for _, propertyID := range propertyIDs {
		if seen[propertyID] {
			return httperror.NewHTTPError(http.StatusBadRequest, "duplicate property in desired assignment set").
				AddMetaValue("property_id", propertyID)
		}
		seen[propertyID] = true
	}
	return nil
}

func (s *Service) validateProperties(ctx context.Context, propertyIDs []string) error {
	for _, propertyID := range propertyIDs {
		if _, err := s.properties.GetByID(ctx, propertyID); err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "unknown property in desired assignment set").
				AddMetaValue("property_id", propertyID)
		}
	}
	return nil
}
