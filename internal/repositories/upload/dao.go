package upload

import (
	"database/sql"
	"time"

	"github.com/Ramsey-B/laurel/pkg/database"
	"github.com/Ramsey-B/laurel/pkg/models"
)

type UploadRow struct {
	ID            sql.NullString `db:"id"`
	StorageKey    sql.NullString `db:"storage_key"`
	OwnerID       sql.NullString `db:"owner_id"`
	Purpose       sql.NullString `db:"purpose"`
	CorrelationID sql.NullString `db:"correlation_id"`
	Status        sql.NullString `db:"status"`
	SizeBytes     sql.NullInt64  `db:"size_bytes"`
	ContentType   sql.NullString `db:"content_type"`
	ChangeID      sql.NullString `db:"change_id"`
	CreatedAt     sql.NullTime   `db:"created_at"`
	UpdatedAt     sql.NullTime   `db:"updated_at"`
}

const uploadTable = "uploads"

var uploadStruct = database.NewStruct(new(UploadRow))

func FromUpload(upload models.Upload) *UploadRow {
	row := &UploadRow{
		ID:          sql.NullString{String: upload.ID, Valid: upload.ID != ""},
		StorageKey:  sql.NullString{String: upload.StorageKey, Valid: upload.StorageKey != ""},
		OwnerID:     sql.NullString{String: upload.OwnerID, Valid: upload.OwnerID != ""},
		Purpose:     sql.NullString{String: string(upload.Purpose), Valid: upload.Purpose != ""},
		Status:      sql.NullString{String: string(upload.Status), Valid: upload.Status != ""},
		SizeBytes:   sql.NullInt64{Int64: upload.SizeBytes, Valid: true},
		ContentType: sql.NullString{String: upload.ContentType, Valid: upload.ContentType != ""},
		CreatedAt:   sql.NullTime{Time: upload.CreatedAt, Valid: upload.CreatedAt != time.Time{}},
		UpdatedAt:   sql.NullTime{Time: upload.UpdatedAt, Valid: upload.UpdatedAt != time.Time{}},
	}
	if upload.CorrelationID != nil {
		row.CorrelationID = sql.NullString{String: *upload.CorrelationID, Valid: true}
	}
	if upload.ChangeID != nil {
		row.ChangeID = sql.NullString{String: *upload.ChangeID, Valid: true}
	}
	return row
}

func ToUpload(row *UploadRow) models.Upload {
	upload := models.Upload{
		ID:          row.ID.String,
		StorageKey:  row.StorageKey.String,
		OwnerID:     row.OwnerID.String,
		Purpose:     models.UploadPurpose(row.Purpose.String),
		Status:      models.UploadStatus(row.Status.String),
		SizeBytes:   row.SizeBytes.Int64,
		ContentType: row.ContentType.String,
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}
	if row.CorrelationID.Valid {
		upload.CorrelationID = &row.CorrelationID.String
	}
	if row.ChangeID.Valid {
		upload.ChangeID = &row.ChangeID.String
	}
	return upload
}
