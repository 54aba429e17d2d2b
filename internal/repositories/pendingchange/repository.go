package pendingchange

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/lib/pq"

	"github.com/Ramsey-B/laurel/pkg/database"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

// uniqueViolation is the Postgres error code raised by the partial unique
// index guarding the one-live-pending rule.
const uniqueViolation = "23505"

// ErrDuplicateLivePending signals that the partial unique index rejected an
// insert or submit because a live pending change already exists.
var ErrDuplicateLivePending = httperror.NewHTTPError(http.StatusConflict, "a pending change already exists for this target")

// ListFilter narrows List results. Zero values mean no constraint.
type ListFilter struct {
	Status     models.ChangeStatus
	EntityKind models.EntityKind
	ProposerID string
	TargetID   string
	Limit      int
	Offset     int
}

type PendingChangeRepository interface {
	Create(ctx context.Context, change models.PendingChange) error
	GetByID(ctx context.Context, id string) (models.PendingChange, error)
	Update(ctx context.Context, change models.PendingChange) error
	Delete(ctx context.Context, id string) error
	FindLivePending(ctx context.Context, kind models.EntityKind, targetID *string, proposerID string) (models.PendingChange, bool, error)
	List(ctx context.Context, filter ListFilter) ([]models.PendingChange, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}

type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new pending change repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) Create(ctx context.Context, change models.PendingChange) error {
	ctx, span := tracing.StartSpan(ctx, "PendingChangeRepository.Create")
	defer span.End()

	row := FromPendingChange(change)
	ib := pendingChangeStruct.InsertInto(pendingChangeTable, row)
	sql, args := ib.Build()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":          change.ID,
		"entity_kind": change.EntityKind,
		"proposer_id": change.ProposerID,
		"status":      change.Status,
	}).Info("Creating pending change")

	_, err = tx.ExecContext(ctx, sql, args...)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return ErrDuplicateLivePending
		}
		r.logger.WithContext(ctx).WithError(err).WithField("id", change.ID).Error("error creating pending change")
		return httperror.NewHTTPError(http.StatusInternalServerError, "error creating pending change")
	}

	return tx.Commit(ctx)
}

func (r *Repository) GetByID(ctx context.Context, id string) (models.PendingChange, error) {
	ctx, span := tracing.StartSpan(ctx, "PendingChangeRepository.GetByID")
	defer span.End()

	sb := pendingChangeStruct.SelectFrom(pendingChangeTable)
	sb.Where(sb.Equal("id", id))

	sql, args := sb.Build()

	var row PendingChangeRow
	err := r.db.GetContext(ctx, &row, sql, args...)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			r.logger.WithContext(ctx).WithField("id", id).Warn("Pending change not found")
			return models.PendingChange{}, httperror.NewHTTPError(http.StatusNotFound, "pending change not found")
		}

		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("error getting pending change")
		return models.PendingChange{}, httperror.NewHTTPError(http.StatusInternalServerError, "error getting pending change")
	}

	return ToPendingChange(&row), nil
}

func (r *Repository) Update(ctx context.Context, change models.PendingChange) error {
	ctx, span := tracing.StartSpan(ctx, "PendingChangeRepository.Update")
	defer span.End()

	change.UpdatedAt = time.Now().UTC()
	row := FromPendingChange(change)

	ub := pendingChangeStruct.Update(pendingChangeTable, row)
	ub.Where(ub.Equal("id", change.ID))

	sql, args := ub.Build()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":     change.ID,
		"status": change.Status,
	}).Info("Updating pending change")

	_, err = tx.ExecContext(ctx, sql, args...)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return ErrDuplicateLivePending
		}
		r.logger.WithContext(ctx).WithError(err).WithField("id", change.ID).Error("error updating pending change")
		return httperror.NewHTTPError(http.StatusInternalServerError, "error updating pending change")
	}

	return tx.Commit(ctx)
}

// Delete removes the change row outright. Withdrawn and discarded proposals
// leave no record behind.
func (r *Repository) Delete(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "PendingChangeRepository.Delete")
	defer span.End()

	db := pendingChangeStruct.DeleteFrom(pendingChangeTable)
	db.Where(db.Equal("id", id))

	sql, args := db.Build()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	r.logger.WithContext(ctx).WithField("id", id).Info("Deleting pending change")

	result, err := tx.ExecContext(ctx, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("error deleting pending change")
		return httperror.NewHTTPError(http.StatusInternalServerError, "error deleting pending change")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, "pending change not found")
	}

	return tx.Commit(ctx)
}

func (r *Repository) FindLivePending(ctx context.Context, kind models.EntityKind, targetID *string, proposerID string) (models.PendingChange, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "PendingChangeRepository.FindLivePending")
	defer span.End()

	sb := pendingChangeStruct.SelectFrom(pendingChangeTable)
	conds := []string{
		sb.Equal("entity_kind", string(kind)),
		sb.Equal("proposer_id", proposerID),
		sb.Equal("status", string(models.ChangeStatusPending)),
		sb.Equal("is_draft", false),
	}
	if targetID != nil {
		conds = append(conds, sb.Equal("target_id", *targetID))
	} else {
		conds = append(conds, sb.IsNull("target_id"))
	}
	sb.Where(conds...)
	sb.Limit(1)

	sql, args := sb.Build()

	var row PendingChangeRow
	err := r.db.GetContext(ctx, &row, sql, args...)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return models.PendingChange{}, false, nil
		}

		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"entity_kind": kind,
			"proposer_id": proposerID,
		}).Error("error finding live pending change")
		return models.PendingChange{}, false, httperror.NewHTTPError(http.StatusInternalServerError, "error finding live pending change")
	}

	return ToPendingChange(&row), true, nil
}

func (r *Repository) List(ctx context.Context, filter ListFilter) ([]models.PendingChange, error) {
	ctx, span := tracing.StartSpan(ctx, "PendingChangeRepository.List")
	defer span.End()

	sb := pendingChangeStruct.SelectFrom(pendingChangeTable)
	if filter.Status != "" {
		sb.Where(sb.Equal("status", string(filter.Status)))
	}
	if filter.EntityKind != "" {
		sb.Where(sb.Equal("entity_kind", string(filter.EntityKind)))
	}
	if filter.ProposerID != "" {
		sb.Where(sb.Equal("proposer_id", filter.ProposerID))
	}
	if filter.TargetID != "" {
		sb.Where(sb.Equal("target_id", filter.TargetID))
	}
	sb.OrderBy("created_at").Desc()
	if filter.Limit > 0 {
		sb.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		sb.Offset(filter.Offset)
	}

	sql, args := sb.Build()

	var rows []PendingChangeRow
	err := r.db.SelectContext(ctx, &rows, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("error listing pending changes")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "error listing pending changes")
	}

	changes := make([]models.PendingChange, 0, len(rows))
	for i := range rows {
		changes = append(changes, ToPendingChange(&rows[i]))
	}

	return changes, nil
}

func (r *Repository) CountByStatus(ctx context.Context) (map[string]int, error) {
	ctx, span := tracing.StartSpan(ctx, "PendingChangeRepository.CountByStatus")
	defer span.End()

	type statusCount struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}

	var rows []statusCount
	query := "SELECT status, COUNT(*) AS count FROM pending_changes GROUP BY status"
	err := r.db.SelectContext(ctx, &rows, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("error counting pending changes by status")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "error counting pending changes")
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}

	return counts, nil
}
