package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/laurel/pkg/database"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

type PropertyRepository interface {
	Store
	GetByID(ctx context.Context, id string) (models.Property, error)
	List(ctx context.Context, limit, offset int) ([]models.Property, error)
	SoftDelete(ctx context.Context, id, actorID string) error
	CountActive(ctx context.Context) (int, error)
	CountDeleted(ctx context.Context) (int, error)
}

type Properties struct {
	db     database.DB
	logger ectologger.Logger
}

// NewProperties creates a new property catalog repository
func NewProperties(db database.DB, logger ectologger.Logger) *Properties {
	return &Properties{
		db:     db,
		logger: logger,
	}
}

func (r *Properties) GetByID(ctx context.Context, id string) (models.Property, error) {
	ctx, span := tracing.StartSpan(ctx, "PropertyRepository.GetByID")
	defer span.End()

	sb := propertyStruct.SelectFrom(propertyTable)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("is_deleted", false),
	)

	query, args := sb.Build()

	var row PropertyRow
	err := r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			r.logger.WithContext(ctx).WithField("id", id).Warn("Property not found")
			return models.Property{}, httperror.NewHTTPError(http.StatusNotFound, "property not found")
		}

		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("error getting property")
		return models.Property{}, httperror.NewHTTPError(http.StatusInternalServerError, "error getting property")
	}

	return ToProperty(&row), nil
}

// Exists reports whether a live property row holds the id.
func (r *Properties) Exists(ctx context.Context, id string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "PropertyRepository.Exists")
	defer span.End()

	var count int
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM properties WHERE id = $1 AND is_deleted = false", id)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("error checking property existence")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "error checking property existence")
	}

	return count > 0, nil
}

// Snapshot captures the row's current state before an approval writes to it.
func (r *Properties) Snapshot(ctx context.Context, id string) (models.CanonicalSnapshot, error) {
	ctx, span := tracing.StartSpan(ctx, "PropertyRepository.Snapshot")
	defer span.End()

	sb := propertyStruct.SelectFrom(propertyTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()

	var row PropertyRow
	err := r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return models.CanonicalSnapshot{Existed: false}, nil
		}

		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("error snapshotting property")
		return models.CanonicalSnapshot{}, httperror.NewHTTPError(http.StatusInternalServerError, "error snapshotting property")
	}

	property := ToProperty(&row)
	return models.CanonicalSnapshot{
		Existed:             true,
		Data:                property.Data,
		AssignedEmployeeID:  property.AssignedEmployeeID,
		CreatedByEmployeeID: property.CreatedByEmployeeID,
		PrimaryAgentID:      property.PrimaryAgentID,
		UpdatedAt:           property.UpdatedAt,
	}, nil
}

// Apply writes the approved payload into the property's published data. For
// an existing row the payload fields are merged onto the current data; a
// fresh insert records the proposer as the assigned employee, and as creator
// or primary agent depending on their role.
func (r *Properties) Apply(ctx context.Context, id string, payload json.RawMessage, proposerID string, proposerRole models.Role) error {
	ctx, span := tracing.StartSpan(ctx, "PropertyRepository.Apply")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":          id,
		"proposer_id": proposerID,
	}).Info("Applying approved payload to property")

	now := time.Now().UTC()

	sb := propertyStruct.SelectFrom(propertyTable)
	sb.Where(sb.Equal("id", id))
	query, args := sb.Build()

	var existing PropertyRow
	err = tx.GetContext(ctx, &existing, query+" FOR UPDATE", args...)
	if err != nil && err.Error() != "sql: no rows in result set" {
		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("error reading property for apply")
		return httperror.NewHTTPError(http.StatusInternalServerError, "error applying payload to property")
	}

	if err == nil {
		merged, mergeErr := mergePayload(existing.Data.Data, payload)
		if mergeErr != nil {
			r.logger.WithContext(ctx).WithError(mergeErr).WithField("id", id).Error("error merging payload into property")
			return httperror.NewHTTPError(http.StatusInternalServerError, "error applying payload to property")
		}

		ub := database.NewUpdateBuilder()
		ub.Update(propertyTable)
		ub.Set(
			ub.Assign("data", database.JSONB[json.RawMessage]{Data: merged}),
			ub.Assign("updated_at", now),
		)
		ub.Where(ub.Equal("id", id))

		query, args = ub.Build()
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("error applying payload to property")
			return httperror.NewHTTPError(http.StatusInternalServerError, "error applying payload to property")
		}

		return tx.Commit(ctx)
	}

	row := FromProperty(newPropertyFromApproval(id, payload, proposerID, proposerRole, now))
	ib := propertyStruct.InsertInto(propertyTable, row)
	query, args = ib.Build()

	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("error inserting property")
		return httperror.NewHTTPError(http.StatusInternalServerError, "error applying payload to property")
	}

	return tx.Commit(ctx)
}

// Restore puts the row back to its pre-approval state.
func (r *Properties) Restore(ctx context.Context, id string, snapshot models.CanonicalSnapshot) error {
	ctx, span := tracing.StartSpan(ctx, "PropertyRepository.Restore")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if !snapshot.Existed {
		db := propertyStruct.DeleteFrom(propertyTable)
		db.Where(db.Equal("id", id))
		query, args := db.Build()

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("error removing property during restore")
			return httperror.NewHTTPError(http.StatusInternalServerError, "error restoring property")
		}
		return tx.Commit(ctx)
	}

	ub := database.NewUpdateBuilder()
	ub.Update(propertyTable)
	assignments := []string{
		ub.Assign("data", database.JSONB[json.RawMessage]{Data: snapshot.Data}),
		ub.Assign("updated_at", snapshot.UpdatedAt),
		ub.Assign("assigned_employee_id", nullableString(snapshot.AssignedEmployeeID)),
		ub.Assign("created_by_employee_id", nullableString(snapshot.CreatedByEmployeeID)),
		ub.Assign("primary_agent_id", nullableString(snapshot.PrimaryAgentID)),
	}
	ub.Set(assignments...)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("error restoring property")
		return httperror.NewHTTPError(http.StatusInternalServerError, "error restoring property")
	}

	return tx.Commit(ctx)
}

func (r *Properties) List(ctx context.Context, limit, offset int) ([]models.Property, error) {
	ctx, span := tracing.StartSpan(ctx, "PropertyRepository.List")
	defer span.End()

	sb := propertyStruct.SelectFrom(propertyTable)
	sb.Where(sb.Equal("is_deleted", false))
	sb.OrderBy("created_at").Desc()
	if limit > 0 {
		sb.Limit(limit)
	}
	if offset > 0 {
		sb.Offset(offset)
	}

	query, args := sb.Build()

	var rows []PropertyRow
	err := r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("error listing properties")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "error listing properties")
	}

	properties := make([]models.Property, 0, len(rows))
	for i := range rows {
		properties = append(properties, ToProperty(&rows[i]))
	}

	return properties, nil
}

func (r *Properties) SoftDelete(ctx context.Context, id, actorID string) error {
	ctx, span := tracing.StartSpan(ctx, "PropertyRepository.SoftDelete")
	defer span.End()

	now := time.Now().UTC()
	ub := database.NewUpdateBuilder()
	ub.Update(propertyTable)
	ub.Set(
		ub.Assign("is_deleted", true),
		ub.Assign("deleted_by", actorID),
		ub.Assign("deleted_at", now),
		ub.Assign("updated_at", now),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("is_deleted", false),
	)

	query, args := ub.Build()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("error deleting property")
		return httperror.NewHTTPError(http.StatusInternalServerError, "error deleting property")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, "property not found")
	}

	return tx.Commit(ctx)
}

func (r *Properties) CountActive(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "PropertyRepository.CountActive")
	defer span.End()

	var count int
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM properties WHERE is_deleted = false")
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("error counting properties")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "error counting properties")
	}

	return count, nil
}

func (r *Properties) CountDeleted(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "PropertyRepository.CountDeleted")
	defer span.End()

	var count int
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM properties WHERE is_deleted = true")
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("error counting deleted properties")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "error counting properties")
	}

	return count, nil
}

// newPropertyFromApproval builds the row an approved creation proposal
// inserts. The proposer becomes the assigned employee, and additionally the
// creator or primary agent depending on their role.
func newPropertyFromApproval(id string, payload json.RawMessage, proposerID string, proposerRole models.Role, now time.Time) models.Property {
	property := models.Property{
		ID:                 id,
		Data:               payload,
		AssignedEmployeeID: &proposerID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if proposerRole == models.RoleEmployee {
		property.CreatedByEmployeeID = &proposerID
	}
	if proposerRole == models.RoleAgent {
		property.PrimaryAgentID = &proposerID
	}
	return property
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
