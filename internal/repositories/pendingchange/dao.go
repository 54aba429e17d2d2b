package pendingchange

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/Ramsey-B/laurel/pkg/database"
	"github.com/Ramsey-B/laurel/pkg/models"
)

type PendingChangeRow struct {
	ID           sql.NullString                  `db:"id"`
	EntityKind   sql.NullString                  `db:"entity_kind"`
	TargetID     sql.NullString                  `db:"target_id"`
	ProposerID   sql.NullString                  `db:"proposer_id"`
	ProposerRole sql.NullString                  `db:"proposer_role"`
	Payload      database.JSONB[json.RawMessage] `db:"payload"`
	DiffSummary  sql.NullString                  `db:"diff_summary"`
	Status       sql.NullString                  `db:"status"`
	IsDraft      sql.NullBool                    `db:"is_draft"`
	Reason       sql.NullString                  `db:"reason"`
	ReviewerID   sql.NullString                  `db:"reviewer_id"`
	ReviewedAt   sql.NullTime                    `db:"reviewed_at"`
	CreatedAt    sql.NullTime                    `db:"created_at"`
	UpdatedAt    sql.NullTime                    `db:"updated_at"`
}

const pendingChangeTable = "pending_changes"

var pendingChangeStruct = database.NewStruct(new(PendingChangeRow))

func FromPendingChange(change models.PendingChange) *PendingChangeRow {
	row := &PendingChangeRow{
		ID:           sql.NullString{String: change.ID, Valid: change.ID != ""},
		EntityKind:   sql.NullString{String: string(change.EntityKind), Valid: change.EntityKind != ""},
		ProposerID:   sql.NullString{String: change.ProposerID, Valid: change.ProposerID != ""},
		ProposerRole: sql.NullString{String: string(change.ProposerRole), Valid: change.ProposerRole != ""},
		Payload:      database.JSONB[json.RawMessage]{Data: change.Payload},
		Status:       sql.NullString{String: string(change.Status), Valid: change.Status != ""},
		IsDraft:      sql.NullBool{Bool: change.IsDraft, Valid: true},
		CreatedAt:    sql.NullTime{Time: change.CreatedAt, Valid: change.CreatedAt != time.Time{}},
		UpdatedAt:    sql.NullTime{Time: change.UpdatedAt, Valid: change.UpdatedAt != time.Time{}},
	}
	if change.TargetID != nil {
		row.TargetID = sql.NullString{String: *change.TargetID, Valid: true}
	}
	if change.DiffSummary != nil {
		row.DiffSummary = sql.NullString{String: *change.DiffSummary, Valid: true}
	}
	if change.Reason != nil {
		row.Reason = sql.NullString{String: *change.Reason, Valid: true}
	}
	if change.ReviewerID != nil {
		row.ReviewerID = sql.NullString{String: *change.ReviewerID, Valid: true}
	}
	if change.ReviewedAt != nil {
		row.ReviewedAt = sql.NullTime{Time: *change.ReviewedAt, Valid: true}
	}
	return row
}

func ToPendingChange(row *PendingChangeRow) models.PendingChange {
	change := models.PendingChange{
		ID:           row.ID.String,
		EntityKind:   models.EntityKind(row.EntityKind.String),
		ProposerID:   row.ProposerID.String,
		ProposerRole: models.Role(row.ProposerRole.String),
		Payload:      row.Payload.Data,
		Status:       models.ChangeStatus(row.Status.String),
		IsDraft:      row.IsDraft.Bool,
		CreatedAt:    row.CreatedAt.Time,
		UpdatedAt:    row.UpdatedAt.Time,
	}
	if row.TargetID.Valid {
		change.TargetID = &row.TargetID.String
	}
	if row.DiffSummary.Valid {
		change.DiffSummary = &row.DiffSummary.String
	}
	if row.Reason.Valid {
		change.Reason = &row.Reason.String
	}
	if row.ReviewerID.Valid {
		change.ReviewerID = &row.ReviewerID.String
	}
	if row.ReviewedAt.Valid {
		change.ReviewedAt = &row.ReviewedAt.Time
	}
	return change
}
