// Package assignment persists the employee->property and agent->property
// edges. Reconciliations run inside a single transaction so concurrent
// desired-state writes never interleave partial edge sets.
package assignment

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/laurel/pkg/database"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

type AssignmentRepository interface {
	ListEmployeeAssignments(ctx context.Context, employeeID string) ([]models.EmployeePropertyAssignment, error)
	ReplaceEmployeeAssignments(ctx context.Context, employeeID, assignedBy string, propertyIDs []string) (models.ReconcileResult, error)
	ListAgentAssignments(ctx context.Context, agentID string) ([]models.AgentPropertyAssignment, error)
	ReplaceAgentAssignments(ctx context.Context, agentID, employeeID string, propertyIDs []string) (models.ReconcileResult, error)
	IsEmployeeAssigned(ctx context.Context, employeeID, propertyID string) (bool, error)
	IsAgentAuthorized(ctx context.Context, agentID, propertyID string) (bool, error)
}

type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new assignment graph repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) ListEmployeeAssignments(ctx context.Context, employeeID string) ([]models.EmployeePropertyAssignment, error) {
	ctx, span := tracing.StartSpan(ctx, "AssignmentRepository.ListEmployeeAssignments")
	defer span.End()

	sb := employeeAssignmentStruct.SelectFrom(employeeAssignmentTable)
	sb.Where(sb.Equal("employee_id", employeeID))
	sb.OrderBy("property_id").Asc()

	query, args := sb.Build()

	var rows []EmployeeAssignmentRow
	err := r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("employee_id", employeeID).Error("error listing employee assignments")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "error listing employee assignments")
	}

	assignments := make([]models.EmployeePropertyAssignment, 0, len(rows))
	for i := range rows {
		assignments = append(assignments, ToEmployeeAssignment(&rows[i]))
	}

	return assignments, nil
}

// ReplaceEmployeeAssignments reconciles the employee's edge set to the
// desired property list. Removing an employee edge also drops any agent
// edges that were scoped under it.
func (r *Repository) ReplaceEmployeeAssignments(ctx context.Context, employeeID, assignedBy string, propertyIDs []string) (models.ReconcileResult, error) {
	ctx, span := tracing.StartSpan(ctx, "AssignmentRepository.ReplaceEmployeeAssignments")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return models.ReconcileResult{}, err
	}
	defer tx.Rollback(ctx)

	var current []string
	err = tx.SelectContext(ctx, &current, "SELECT property_id FROM employee_property_assignments WHERE employee_id = $1 FOR UPDATE", employeeID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("employee_id", employeeID).Error("error reading current employee assignments")
		return models.ReconcileResult{}, httperror.NewHTTPError(http.StatusInternalServerError, "error reconciling employee assignments")
	}

	result := diff(current, propertyIDs)

	for _, propertyID := range result.Removed {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM agent_property_assignments WHERE employee_id = $1 AND property_id = $2",
			employeeID, propertyID,
		); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"employee_id": employeeID,
				"property_id": propertyID,
			}).Error("error cascading agent assignment removal")
			return models.ReconcileResult{}, httperror.NewHTTPError(http.StatusInternalServerError, "error reconciling employee assignments")
		}

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM employee_property_assignments WHERE employee_id = $1 AND property_id = $2",
			employeeID, propertyID,
		); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"employee_id": employeeID,
				"property_id": propertyID,
			}).Error("error removing employee assignment")
			return models.ReconcileResult{}, httperror.NewHTTPError(http.StatusInternalServerError, "error reconciling employee assignments")
		}
	}

	now := time.Now().UTC()
	for _, propertyID := range result.Added {
		ib := database.NewInsertBuilder()
		ib.InsertInto(employeeAssignmentTable)
		ib.Cols("employee_id", "property_id", "assigned_by", "created_at")
		ib.Values(employeeID, propertyID, assignedBy, now)
		ib.OnConflictDoNothing()

		query, args := ib.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"employee_id": employeeID,
				"property_id": propertyID,
			}).Error("error adding employee assignment")
			return models.ReconcileResult{}, httperror.NewHTTPError(http.StatusInternalServerError, "error reconciling employee assignments")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return models.ReconcileResult{}, err
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"employee_id": employeeID,
		"added":       len(result.Added),
		"removed":     len(result.Removed),
	}).Info("Reconciled employee assignments")

	return result, nil
}

func (r *Repository) ListAgentAssignments(ctx context.Context, agentID string) ([]models.AgentPropertyAssignment, error) {
	ctx, span := tracing.StartSpan(ctx, "AssignmentRepository.ListAgentAssignments")
	defer span.End()

	sb := agentAssignmentStruct.SelectFrom(agentAssignmentTable)
	sb.Where(sb.Equal("agent_id", agentID))
	sb.OrderBy("property_id").Asc()

	query, args := sb.Build()

	var rows []AgentAssignmentRow
	err := r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("agent_id", agentID).Error("error listing agent assignments")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "error listing agent assignments")
	}

	assignments := make([]models.AgentPropertyAssignment, 0, len(rows))
	for i := range rows {
		assignments = append(assignments, ToAgentAssignment(&rows[i]))
	}

	return assignments, nil
}

// ReplaceAgentAssignments reconciles the agent's edges scoped under one
// supervising employee. Edges under other employees are untouched.
func (r *Repository) ReplaceAgentAssignments(ctx context.Context, agentID, employeeID string, propertyIDs []string) (models.ReconcileResult, error) {
	ctx, span := tracing.StartSpan(ctx, "AssignmentRepository.ReplaceAgentAssignments")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return models.ReconcileResult{}, err
	}
	defer tx.Rollback(ctx)

	var current []string
	err = tx.SelectContext(ctx, &current,
		"SELECT property_id FROM agent_property_assignments WHERE agent_id = $1 AND employee_id = $2 FOR UPDATE",
		agentID, employeeID,
	)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"agent_id":    agentID,
			"employee_id": employeeID,
		}).Error("error reading current agent assignments")
		return models.ReconcileResult{}, httperror.NewHTTPError(http.StatusInternalServerError, "error reconciling agent assignments")
	}

	result := diff(current, propertyIDs)

	now := time.Now().UTC()
	for _, propertyID := range result.Removed {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM agent_property_assignments WHERE agent_id = $1 AND employee_id = $2 AND property_id = $3",
			agentID, employeeID, propertyID,
		); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"agent_id":    agentID,
				"property_id": propertyID,
			}).Error("error removing agent assignment")
			return models.ReconcileResult{}, httperror.NewHTTPError(http.StatusInternalServerError, "error reconciling agent assignments")
		}

		// A property whose primary agent just lost its edge must not keep
		// pointing at them.
		if _, err := tx.ExecContext(ctx,
			"UPDATE properties SET primary_agent_id = NULL, updated_at = $1 WHERE id = $2 AND primary_agent_id = $3",
			now, propertyID, agentID,
		); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"agent_id":    agentID,
				"property_id": propertyID,
			}).Error("error clearing primary agent pointer")
			return models.ReconcileResult{}, httperror.NewHTTPError(http.StatusInternalServerError, "error reconciling agent assignments")
		}
	}

	for _, propertyID := range result.Added {
		ib := database.NewInsertBuilder()
		ib.InsertInto(agentAssignmentTable)
		ib.Cols("agent_id", "property_id", "employee_id", "created_at")
		ib.Values(agentID, propertyID, employeeID, now)
		ib.OnConflictDoNothing()

		query, args := ib.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"agent_id":    agentID,
				"property_id": propertyID,
			}).Error("error adding agent assignment")
			return models.ReconcileResult{}, httperror.NewHTTPError(http.StatusInternalServerError, "error reconciling agent assignments")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return models.ReconcileResult{}, err
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"agent_id":    agentID,
		"employee_id": employeeID,
		"added":       len(result.Added),
		"removed":     len(result.Removed),
	}).Info("Reconciled agent assignments")

	return result, nil
}

func (r *Repository) IsEmployeeAssigned(ctx context.Context, employeeID, propertyID string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "AssignmentRepository.IsEmployeeAssigned")
	defer span.End()

	var count int
	err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM employee_property_assignments WHERE employee_id = $1 AND property_id = $2",
		employeeID, propertyID,
	)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"employee_id": employeeID,
			"property_id": propertyID,
		}).Error("error checking employee assignment")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "error checking employee assignment")
	}

	return count > 0, nil
}

// IsAgentAuthorized requires both the agent's edge and the supervising
// employee's edge to be intact: an agent edge whose employee lost the
// property no longer authorizes anything.
func (r *Repository) IsAgentAuthorized(ctx context.Context, agentID, propertyID string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "AssignmentRepository.IsAgentAuthorized")
	defer span.End()

	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*)
		FROM agent_property_assignments apa
		JOIN employee_property_assignments epa
			ON epa.employee_id = apa.employee_id
			AND epa.property_id = apa.property_id
		WHERE apa.agent_id = $1 AND apa.property_id = $2`,
		agentID, propertyID,
	)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"agent_id":    agentID,
			"property_id": propertyID,
		}).Error("error checking agent authorization")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "error checking agent authorization")
	}

	return count > 0, nil
}

// diff compares the current edge set to the desired one. Callers reject
// duplicate desired ids before reconciling, so each id appears once here.
func diff(current, desired []string) models.ReconcileResult {
	currentSet := make(map[string]bool, len(current))
	for _, id := range current {
		currentSet[id] = true
	}

	desiredSet := make(map[string]bool, len(desired))
	result := models.ReconcileResult{Added: []string{}, Removed: []string{}}
	for _, id := range desired {
		desiredSet[id] = true
		if !currentSet[id] {
			result.Added = append(result.Added, id)
		}
	}

	for _, id := range current {
		if !desiredSet[id] {
			result.Removed = append(result.Removed, id)
		}
	}

	return result
}
