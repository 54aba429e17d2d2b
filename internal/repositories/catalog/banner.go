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

type BannerRepository interface {
	Store
	GetByID(ctx context.Context, id string) (models.Banner, error)
	List(ctx context.Context, limit, offset int) ([]models.Banner, error)
	SoftDelete(ctx context.Context, id, actorID string) error
	CountActive(ctx context.Context) (int, error)
	CountDeleted(ctx context.Context) (int, error)
}

type Banners struct {
	db     database.DB
	logger ectologger.Logger
}

// NewBanners creates a new banner catalog repository
func NewBanners(db database.DB, logger ectologger.Logger) *Banners {
	return &Banners{
		db:     db,
		logger: logger,
	}
}

func (r *Banners) GetByID(ctx context.Context, id string) (models.Banner, error) {
	ctx, span := tracing.StartSpan(ctx, "BannerRepository.GetByID")
	defer span.End()

	sb := bannerStruct.SelectFrom(bannerTable)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("is_deleted", false),
	)

	query, args := sb.Build()

	var row BannerRow
	err := r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			r.logger.WithContext(ctx).WithField("id", id).Warn("Banner not found")
			return models.Banner{}, httperror.NewHTTPError(http.StatusNotFound, "banner not found")
		}

		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("error getting banner")
		return models.Banner{}, httperror.NewHTTPError(http.StatusInternalServerError, "error getting banner")
	}

	return ToBanner(&row), nil
}

// Exists reports whether a live banner row holds the id.
func (r *Banners) Exists(ctx context.Context, id string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "BannerRepository.Exists")
	defer span.End()

	var count int
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM banners WHERE id = $1 AND is_deleted = false", id)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("error checking banner existence")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "error checking banner existence")
	}

	return count > 0, nil
}

func (r *Banners) Snapshot(ctx context.Context, id string) (models.CanonicalSnapshot, error) {
	ctx, span := tracing.StartSpan(ctx, "BannerRepository.Snapshot")
	defer span.End()

	sb := bannerStruct.SelectFrom(bannerTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()

	var row BannerRow
	err := r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return models.CanonicalSnapshot{Existed: false}, nil
		}

		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("error snapshotting banner")
		return models.CanonicalSnapshot{}, httperror.NewHTTPError(http.StatusInternalServerError, "error snapshotting banner")
	}

	banner := ToBanner(&row)
	return models.CanonicalSnapshot{
		Existed:   true,
		Data:      banner.Data,
		UpdatedAt: banner.UpdatedAt,
	}, nil
}

// Apply writes the approved payload into the banner's published data. For an
// existing row the payload fields are merged onto the current data.
func (r *Banners) Apply(ctx context.Context, id string, payload json.RawMessage, proposerID string, proposerRole models.Role) error {
	ctx, span := tracing.StartSpan(ctx, "BannerRepository.Apply")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":          id,
		"proposer_id": proposerID,
	}).Info("Applying approved payload to banner")

	now := time.Now().UTC()

	sb := bannerStruct.SelectFrom(bannerTable)
	sb.Where(sb.Equal("id", id))
	query, args := sb.Build()

	var existing BannerRow
	err = tx.GetContext(ctx, &existing, query+" FOR UPDATE", args...)
	if err != nil && err.Error() != "sql: no rows in result set" {
		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("error reading banner for apply")
		return httperror.NewHTTPError(http.StatusInternalServerError, "error applying payload to banner")
	}

	if err == nil {
		merged, mergeErr := mergePayload(existing.Data.Data, payload)
		if mergeErr != nil {
			r.logger.WithContext(ctx).WithError(mergeErr).WithField("id", id).Error("error merging payload into banner")
			return httperror.NewHTTPError(http.StatusInternalServerError, "error applying payload to banner")
		}

		ub := database.NewUpdateBuilder()
		ub.Update(bannerTable)
		ub.Set(
			ub.Assign("data", database.JSONB[json.RawMessage]{Data: merged}),
			ub.Assign("updated_at", now),
		)
		ub.Where(ub.Equal("id", id))

		query, args = ub.Build()
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("error applying payload to banner")
			return httperror.NewHTTPError(http.StatusInternalServerError, "error applying payload to banner")
		}

		return tx.Commit(ctx)
	}

	row := FromBanner(models.Banner{
		ID:        id,
		Data:      payload,
		CreatedAt: now,
		UpdatedAt: now,
	})

	ib := bannerStruct.InsertInto(bannerTable, row)
	query, args = ib.Build()

	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("error inserting banner")
		return httperror.NewHTTPError(http.StatusInternalServerError, "error applying payload to banner")
	}

	return tx.Commit(ctx)
}

func (r *Banners) Restore(ctx context.Context, id string, snapshot models.CanonicalSnapshot) error {
	ctx, span := tracing.StartSpan(ctx, "BannerRepository.Restore")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if !snapshot.Existed {
		db := bannerStruct.DeleteFrom(bannerTable)
		db.Where(db.Equal("id", id))
		query, args := db.Build()

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("error removing banner during restore")
			return httperror.NewHTTPError(http.StatusInternalServerError, "error restoring banner")
		}
		return tx.Commit(ctx)
	}

	ub := database.NewUpdateBuilder()
	ub.Update(bannerTable)
	ub.Set(
		ub.Assign("data", database.JSONB[json.RawMessage]{Data: snapshot.Data}),
		ub.Assign("updated_at", snapshot.UpdatedAt),
	)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("error restoring banner")
		return httperror.NewHTTPError(http.StatusInternalServerError, "error restoring banner")
	}

	return tx.Commit(ctx)
}

func (r *Banners) List(ctx context.Context, limit, offset int) ([]models.Banner, error) {
	ctx, span := tracing.StartSpan(ctx, "BannerRepository.List")
	defer span.End()

	sb := bannerStruct.SelectFrom(bannerTable)
	sb.Where(sb.Equal("is_deleted", false))
	sb.OrderBy("created_at").Desc()
	if limit > 0 {
		sb.Limit(limit)
	}
	if offset > 0 {
		sb.Offset(offset)
	}

	query, args := sb.Build()

	var rows []BannerRow
	err := r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("error listing banners")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "error listing banners")
	}

	banners := make([]models.Banner, 0, len(rows))
	for i := range rows {
		banners = append(banners, ToBanner(&rows[i]))
	}

	return banners, nil
}

func (r *Banners) SoftDelete(ctx context.Context, id, actorID string) error {
	ctx, span := tracing.StartSpan(ctx, "BannerRepository.SoftDelete")
	defer span.End()

	now := time.Now().UTC()
	ub := database.NewUpdateBuilder()
	ub.Update(bannerTable)
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
		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("error deleting banner")
		return httperror.NewHTTPError(http.StatusInternalServerError, "error deleting banner")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, "banner not found")
	}

	return tx.Commit(ctx)
}

func (r *Banners) CountActive(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "BannerRepository.CountActive")
	defer span.End()

	var count int
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM banners WHERE is_deleted = false")
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("error counting banners")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "error counting banners")
	}

	return count, nil
}

func (r *Banners) CountDeleted(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "BannerRepository.CountDeleted")
	defer span.End()

	var count int
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM banners WHERE is_deleted = true")
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("error counting deleted banners")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "error counting banners")
	}

	return count, nil
}
