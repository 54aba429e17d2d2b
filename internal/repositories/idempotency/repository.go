// Package idempotency persists the submission key ledger. Records are never
// expired: a replayed key must return the original outcome regardless of age.
package idempotency

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/laurel/pkg/database"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

type IdempotencyRow struct {
	Key       sql.NullString `db:"key"`
	ChangeID  sql.NullString `db:"change_id"`
	CreatedAt sql.NullTime   `db:"created_at"`
}

const idempotencyTable = "idempotency_keys"

var idempotencyStruct = database.NewStruct(new(IdempotencyRow))

type IdempotencyRepository interface {
	Get(ctx context.Context, key string) (models.IdempotencyRecord, bool, error)
	Put(ctx context.Context, record models.IdempotencyRecord) (bool, error)
}

type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new idempotency ledger repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) Get(ctx context.Context, key string) (models.IdempotencyRecord, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "IdempotencyRepository.Get")
	defer span.End()

	sb := idempotencyStruct.SelectFrom(idempotencyTable)
	sb.Where(sb.Equal("key", key))

	query, args := sb.Build()

	var row IdempotencyRow
	err := r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return models.IdempotencyRecord{}, false, nil
		}

		r.logger.WithContext(ctx).WithError(err).WithField("key", key).Error("error reading idempotency record")
		return models.IdempotencyRecord{}, false, httperror.NewHTTPError(http.StatusInternalServerError, "error reading idempotency record")
	}

	return models.IdempotencyRecord{
		Key:       row.Key.String,
		ChangeID:  row.ChangeID.String,
		CreatedAt: row.CreatedAt.Time,
	}, true, nil
}

// Put records the key. It returns false when another request already claimed
// the key; the caller must then re-read and serve the original outcome.
func (r *Repository) Put(ctx context.Context, record models.IdempotencyRecord) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "IdempotencyRepository.Put")
	defer span.End()

	if record.CreatedAt == (time.Time{}) {
		record.CreatedAt = time.Now().UTC()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(idempotencyTable)
	ib.Cols("key", "change_id", "created_at")
	ib.Values(record.Key, record.ChangeID, record.CreatedAt)
	ib.OnConflictDoNothing()

	query, args := ib.Build()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("key", record.Key).Error("error writing idempotency record")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "error writing idempotency record")
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
