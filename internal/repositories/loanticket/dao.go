package loanticket

import (
	"database/sql"
	"time"

	"github.com/Ramsey-B/laurel/pkg/database"
	"github.com/Ramsey-B/laurel/pkg/models"
)

type LoanTicketRow struct {
	ID                sql.NullString  `db:"id"`
	RequesterID       sql.NullString  `db:"requester_id"`
	RequesterName     sql.NullString  `db:"requester_name"`
	RequesterEmail    sql.NullString  `db:"requester_email"`
	RequesterPhone    sql.NullString  `db:"requester_phone"`
	RequesterLocation sql.NullString  `db:"requester_location"`
	LoanType          sql.NullString  `db:"loan_type"`
	LoanCategory      sql.NullString  `db:"loan_category"`
	PropertyValue     sql.NullFloat64 `db:"property_value"`
	LoanAmountNeeded  sql.NullFloat64 `db:"loan_amount_needed"`
	TenureMonths      sql.NullInt64   `db:"tenure_months"`
	MonthlyIncome     sql.NullFloat64 `db:"monthly_income"`
	Status            sql.NullString  `db:"status"`
	AssigneeID        sql.NullString  `db:"assignee_id"`
	Version           sql.NullInt64   `db:"version"`
	Priority          sql.NullString  `db:"priority"`
	SLADueAt          sql.NullTime    `db:"sla_due_at"`
	IsEscalated       sql.NullBool    `db:"is_escalated"`
	EscalationReason  sql.NullString  `db:"escalation_reason"`
	LastActivityAt    sql.NullTime    `db:"last_activity_at"`
	CreatedAt         sql.NullTime    `db:"created_at"`
	UpdatedAt         sql.NullTime    `db:"updated_at"`
	DeletedAt         sql.NullTime    `db:"deleted_at"`
}

const ticketTable = "loan_tickets"

var ticketStruct = database.NewStruct(new(LoanTicketRow))

func FromLoanTicket(ticket models.LoanTicket) *LoanTicketRow {
	row := &LoanTicketRow{
		ID:                sql.NullString{String: ticket.ID, Valid: ticket.ID != ""},
		RequesterID:       sql.NullString{String: ticket.RequesterID, Valid: ticket.RequesterID != ""},
		RequesterName:     sql.NullString{String: ticket.RequesterName, Valid: ticket.RequesterName != ""},
		RequesterEmail:    sql.NullString{String: ticket.RequesterEmail, Valid: ticket.RequesterEmail != ""},
		RequesterPhone:    sql.NullString{String: ticket.RequesterPhone, Valid: ticket.RequesterPhone != ""},
		RequesterLocation: sql.NullString{String: ticket.RequesterLocation, Valid: ticket.RequesterLocation != ""},
		LoanType:          sql.NullString{String: ticket.LoanType, Valid: ticket.LoanType != ""},
		LoanCategory:      sql.NullString{String: ticket.LoanCategory, Valid: ticket.LoanCategory != ""},
		PropertyValue:     sql.NullFloat64{Float64: ticket.PropertyValue, Valid: true},
		LoanAmountNeeded:  sql.NullFloat64{Float64: ticket.LoanAmountNeeded, Valid: true},
		TenureMonths:      sql.NullInt64{Int64: int64(ticket.TenureMonths), Valid: true},
		MonthlyIncome:     sql.NullFloat64{Float64: ticket.MonthlyIncome, Valid: true},
		Status:            sql.NullString{String: string(ticket.Status), Valid: ticket.Status != ""},
		Version:           sql.NullInt64{Int64: int64(ticket.Version), Valid: true},
		Priority:          sql.NullString{String: string(ticket.Priority), Valid: ticket.Priority != ""},
		SLADueAt:          sql.NullTime{Time: ticket.SLADueAt, Valid: ticket.SLADueAt != time.Time{}},
		IsEscalated:       sql.NullBool{Bool: ticket.IsEscalated, Valid: true},
		LastActivityAt:    sql.NullTime{Time: ticket.LastActivityAt, Valid: ticket.LastActivityAt != time.Time{}},
		CreatedAt:         sql.NullTime{Time: ticket.CreatedAt, Valid: ticket.CreatedAt != time.Time{}},
		UpdatedAt:         sql.NullTime{Time: ticket.UpdatedAt, Valid: ticket.UpdatedAt != time.Time{}},
	}
	if ticket.AssigneeID != nil {
		row.AssigneeID = sql.NullString{String: *ticket.AssigneeID, Valid: true}
	}
	if ticket.EscalationReason != nil {
		row.EscalationReason = sql.NullString{String: *ticket.EscalationReason, Valid: true}
	}
	if ticket.DeletedAt != nil {
		row.DeletedAt = sql.NullTime{Time: *ticket.DeletedAt, Valid: true}
	}
	return row
}

func ToLoanTicket(row *LoanTicketRow) models.LoanTicket {
	ticket := models.LoanTicket{
		ID:                row.ID.String,
		RequesterID:       row.RequesterID.String,
		RequesterName:     row.RequesterName.String,
		RequesterEmail:    row.RequesterEmail.String,
		RequesterPhone:    row.RequesterPhone.String,
		RequesterLocation: row.RequesterLocation.String,
		LoanType:          row.LoanType.String,
		LoanCategory:      row.LoanCategory.String,
		PropertyValue:     row.PropertyValue.Float64,
		LoanAmountNeeded:  row.LoanAmountNeeded.Float64,
		TenureMonths:      int(row.TenureMonths.Int64),
		MonthlyIncome:     row.MonthlyIncome.Float64,
		Status:            models.TicketStatus(row.Status.String),
		Version:           int(row.Version.Int64),
		Priority:          models.TicketPriority(row.Priority.String),
		SLADueAt:          row.SLADueAt.Time,
		IsEscalated:       row.IsEscalated.Bool,
		LastActivityAt:    row.LastActivityAt.Time,
		CreatedAt:         row.CreatedAt.Time,
		UpdatedAt:         row.UpdatedAt.Time,
	}
	if row.AssigneeID.Valid {
		ticket.AssigneeID = &row.AssigneeID.String
	}
	if row.EscalationReason.Valid {
		ticket.EscalationReason = &row.EscalationReason.String
	}
	if row.DeletedAt.Valid {
		ticket.DeletedAt = &row.DeletedAt.Time
	}
	return ticket
}

type TicketCommentRow struct {
	ID        sql.NullString `db:"id"`
	TicketID  sql.NullString `db:"ticket_id"`
	AuthorID  sql.NullString `db:"author_id"`
	Body      sql.NullString `db:"body"`
	IsPublic  sql.NullBool   `db:"is_public"`
	CreatedAt sql.NullTime   `db:"created_at"`
}

const commentTable = "ticket_comments"

var commentStruct = database.NewStruct(new(TicketCommentRow))

func ToTicketComment(row *TicketCommentRow) models.TicketComment {
	return models.TicketComment{
		ID:        row.ID.String,
		TicketID:  row.TicketID.String,
		AuthorID:  row.AuthorID.String,
		Body:      row.Body.String,
		IsPublic:  row.IsPublic.Bool,
		CreatedAt: row.CreatedAt.Time,
	}
}

type TicketAuditRow struct {
	ID        sql.NullString `db:"id"`
	TicketID  sql.NullString `db:"ticket_id"`
	ActorID   sql.NullString `db:"actor_id"`
	Action    sql.NullString `db:"action"`
	OldValue  sql.NullString `db:"old_value"`
	NewValue  sql.NullString `db:"new_value"`
	Comment   sql.NullString `db:"comment"`
	CreatedAt sql.NullTime   `db:"created_at"`
}

const ticketAuditTable = "ticket_audit_entries"

var ticketAuditStruct = database.NewStruct(new(TicketAuditRow))

func ToTicketAuditEntry(row *TicketAuditRow) models.TicketAuditEntry {
	entry := models.TicketAuditEntry{
		ID:        row.ID.String,
		TicketID:  row.TicketID.String,
		ActorID:   row.ActorID.String,
		Action:    row.Action.String,
		CreatedAt: row.CreatedAt.Time,
	}
	if row.OldValue.Valid {
		entry.OldValue = &row.OldValue.String
	}
	if row.NewValue.Valid {
		entry.NewValue = &row.NewValue.String
	}
	if row.Comment.Valid {
		entry.Comment = &row.Comment.String
	}
	return entry
}

const ticketAssignmentTable = "ticket_assignments"
