package upload

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

type UploadRepository interface {
	Create(ctx context.Context, upload models.Upload) error
	GetByID(ctx context.Context, id string) (models.Upload, error)
	MarkUploaded(ctx context.Context, id string, sizeBytes int64) (bool, error)
	MarkReferenced(ctx context.Context, id, changeID string) (bool, error)
	ReleaseByChange(ctx context.Context, changeID string) error
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.Upload, error)
}

type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new upload reservation repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) Create(ctx context.Context, upload models.Upload) error {
	ctx, span := tracing.StartSpan(ctx, "UploadRepository.Create")
	defer span.End()

	row := FromUpload(upload)
	ib := uploadStruct.InsertInto(uploadTable, row)
	query, args := ib.Build()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":       upload.ID,
		"owner_id": upload.OwnerID,
		"purpose":  upload.Purpose,
	}).Info("Reserving upload")

	_, err = tx.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", upload.ID).Error("error reserving upload")
		return httperror.NewHTTPError(http.StatusInternalServerError, "error reserving upload")
	}

	return tx.Commit(ctx)
}

func (r *Repository) GetByID(ctx context.Context, id string) (models.Upload, error) {
	ctx, span := tracing.StartSpan(ctx, "UploadRepository.GetByID")
	defer span.End()

	sb := uploadStruct.SelectFrom(uploadTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()

	var row UploadRow
	err := r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			r.logger.WithContext(ctx).WithField("id", id).Warn("Upload not found")
			return models.Upload{}, httperror.NewHTTPError(http.StatusNotFound, "upload not found")
		}

		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("error getting upload")
		return models.Upload{}, httperror.NewHTTPError(http.StatusInternalServerError, "error getting upload")
	}

	return ToUpload(&row), nil
}

// MarkUploaded advances created -> uploaded. It returns false when the row
// was not in the created state, so confirmation replays stay harmless.
func (r *Repository) MarkUploaded(ctx context.Context, id string, sizeBytes int64) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "UploadRepository.MarkUploaded")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(uploadTable)
	ub.Set(
		ub.Assign("status", string(models.UploadStatusUploaded)),
		ub.Assign("size_bytes", sizeBytes),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("status", string(models.UploadStatusCreated)),
	)

	query, args := ub.Build()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("error confirming upload")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "error confirming upload")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}

	return affected > 0, nil
}

// MarkReferenced advances uploaded -> referenced and binds the change. The
// conditional WHERE keeps an upload bound to at most one change.
func (r *Repository) MarkReferenced(ctx context.Context, id, changeID string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "UploadRepository.MarkReferenced")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(uploadTable)
	ub.Set(
		ub.Assign("status", string(models.UploadStatusReferenced)),
		ub.Assign("change_id", changeID),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("status", string(models.UploadStatusUploaded)),
		ub.IsNull("change_id"),
	)

	query, args := ub.Build()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":        id,
			"change_id": changeID,
		}).Error("error referencing upload")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "error referencing upload")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}

	return affected > 0, nil
}

// ReleaseByChange unbinds all uploads held by a discarded or rejected change
// so the owner can reference them from a fresh submission.
func (r *Repository) ReleaseByChange(ctx context.Context, changeID string) error {
	ctx, span := tracing.StartSpan(ctx, "UploadRepository.ReleaseByChange")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(uploadTable)
	ub.Set(
		ub.Assign("status", string(models.UploadStatusUploaded)),
		ub.Assign("change_id", nil),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(
		ub.Equal("change_id", changeID),
		ub.Equal("status", string(models.UploadStatusReferenced)),
	)

	query, args := ub.Build()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("change_id", changeID).Error("error releasing uploads")
		return httperror.NewHTTPError(http.StatusInternalServerError, "error releasing uploads")
	}

	return tx.Commit(ctx)
}

func (r *Repository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.Upload, error) {
	ctx, span := tracing.StartSpan(ctx, "UploadRepository.ListByOwner")
	defer span.End()

	sb := uploadStruct.SelectFrom(uploadTable)
	sb.Where(sb.Equal("owner_id", ownerID))
	sb.OrderBy("created_at").Desc()
	if limit > 0 {
		sb.Limit(limit)
	}
	if offset > 0 {
		sb.Offset(offset)
	}

	query, args := sb.Build()

	var rows []UploadRow
	err := r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("owner_id", ownerID).Error("error listing uploads")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "error listing uploads")
	}

	uploads := make([]models.Upload, 0, len(rows))
	for i := range rows {
		uploads = append(uploads, ToUpload(&rows[i]))
	}

	return uploads, nil
}
