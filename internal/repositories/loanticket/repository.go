package loanticket

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Ramsey-B/laurel/pkg/database"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

// TicketFilter narrows List results. Zero values mean no constraint.
type TicketFilter struct {
	Status     models.TicketStatus
	AssigneeID string
	Escalated  *bool
	Limit      int
	Offset     int
}

type LoanTicketRepository interface {
	Create(ctx context.Context, ticket models.LoanTicket) error
	GetByID(ctx context.Context, id string) (models.LoanTicket, error)
	UpdateVersioned(ctx context.Context, ticket models.LoanTicket, expectedVersion int) (bool, error)
	List(ctx context.Context, filter TicketFilter) ([]models.LoanTicket, error)
	BulkUpdateAssignee(ctx context.Context, ticketIDs []string, assigneeID string) ([]string, error)
	BulkUpdateEscalation(ctx context.Context, ticketIDs []string, reason string) ([]string, error)
	SoftDelete(ctx context.Context, id string) error
	InsertComment(ctx context.Context, comment models.TicketComment) error
	ListComments(ctx context.Context, ticketID string) ([]models.TicketComment, error)
	InsertAssignment(ctx context.Context, assignment models.TicketAssignment) error
	InsertAuditEntry(ctx context.Context, entry models.TicketAuditEntry) error
	ListAuditEntries(ctx context.Context, ticketID string) ([]models.TicketAuditEntry, error)
	CountOpenByAssignee(ctx context.Context, employeeIDs []string) (map[string]int, error)
	Stats(ctx context.Context, now time.Time) (models.TicketStats, error)
}

type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new loan ticket repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) Create(ctx context.Context, ticket models.LoanTicket) error {
	ctx, span := tracing.StartSpan(ctx, "LoanTicketRepository.Create")
	defer span.End()

	row := FromLoanTicket(ticket)
	ib := ticketStruct.InsertInto(ticketTable, row)
	query, args := ib.Build()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":           ticket.ID,
		"requester_id": ticket.RequesterID,
		"loan_type":    ticket.LoanType,
	}).Info("Creating loan ticket")

	_, err = tx.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", ticket.ID).Error("error creating loan ticket")
		return httperror.NewHTTPError(http.StatusInternalServerError, "error creating loan ticket")
	}

	return tx.Commit(ctx)
}

func (r *Repository) GetByID(ctx context.Context, id string) (models.LoanTicket, error) {
	ctx, span := tracing.StartSpan(ctx, "LoanTicketRepository.GetByID")
	defer span.End()

	sb := ticketStruct.SelectFrom(ticketTable)
	sb.Where(
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()

	var row LoanTicketRow
	err := r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			r.logger.WithContext(ctx).WithField("id", id).Warn("Loan ticket not found")
			return models.LoanTicket{}, httperror.NewHTTPError(http.StatusNotFound, "loan ticket not found")
		}

		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("error getting loan ticket")
		return models.LoanTicket{}, httperror.NewHTTPError(http.StatusInternalServerError, "error getting loan ticket")
	}

	return ToLoanTicket(&row), nil
}

// UpdateVersioned writes the ticket only when the stored version still
// matches expectedVersion, bumping it by one. A false return means another
// writer got there first.
func (r *Repository) UpdateVersioned(ctx context.Context, ticket models.LoanTicket, expectedVersion int) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "LoanTicketRepository.UpdateVersioned")
	defer span.End()

	now := time.Now().UTC()
	ub := database.NewUpdateBuilder()
	ub.Update(ticketTable)
	ub.Set(
		ub.Assign("status", string(ticket.Status)),
		ub.Assign("assignee_id", nullableString(ticket.AssigneeID)),
		ub.Assign("priority", string(ticket.Priority)),
		ub.Assign("is_escalated", ticket.IsEscalated),
		ub.Assign("escalation_reason", nullableString(ticket.EscalationReason)),
		ub.Assign("version", expectedVersion+1),
		ub.Assign("last_activity_at", now),
		ub.Assign("updated_at", now),
	)
	ub.Where(
		ub.Equal("id", ticket.ID),
		ub.Equal("version", expectedVersion),
		ub.IsNull("deleted_at"),
	)

	query, args := ub.Build()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", ticket.ID).Error("error updating loan ticket")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "error updating loan ticket")
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

func (r *Repository) List(ctx context.Context, filter TicketFilter) ([]models.LoanTicket, error) {
	ctx, span := tracing.StartSpan(ctx, "LoanTicketRepository.List")
	defer span.End()

	sb := ticketStruct.SelectFrom(ticketTable)
	sb.Where(sb.IsNull("deleted_at"))
	if filter.Status != "" {
		sb.Where(sb.Equal("status", string(filter.Status)))
	}
	if filter.AssigneeID != "" {
		sb.Where(sb.Equal("assignee_id", filter.AssigneeID))
	}
	if filter.Escalated != nil {
		sb.Where(sb.Equal("is_escalated", *filter.Escalated))
	}
	sb.OrderBy("created_at").Desc()
	if filter.Limit > 0 {
		sb.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		sb.Offset(filter.Offset)
	}

	query, args := sb.Build()

	var rows []LoanTicketRow
	err := r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("error listing loan tickets")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "error listing loan tickets")
	}

	tickets := make([]models.LoanTicket, 0, len(rows))
	for i := range rows {
		tickets = append(tickets, ToLoanTicket(&rows[i]))
	}

	return tickets, nil
}

// BulkUpdateAssignee points every named open ticket at the assignee in one
// unconditional write, skipping terminal and deleted rows. Version bumps are
// applied in the statement itself rather than checked per row. Returns the
// ids actually updated.
func (r *Repository) BulkUpdateAssignee(ctx context.Context, ticketIDs []string, assigneeID string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "LoanTicketRepository.BulkUpdateAssignee")
	defer span.End()

	if len(ticketIDs) == 0 {
		return nil, nil
	}

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	var updated []string
	err = tx.SelectContext(ctx, &updated,
		`UPDATE loan_tickets
		SET assignee_id = $1, version = version + 1, last_activity_at = $2, updated_at = $2
		WHERE id = ANY($3) AND deleted_at IS NULL AND status NOT IN ($4, $5)
		RETURNING id`,
		assigneeID, now, pq.Array(ticketIDs),
		string(models.TicketStatusClosed), string(models.TicketStatusRejected))
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("assignee_id", assigneeID).Error("error bulk reassigning tickets")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "error bulk reassigning tickets")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return updated, nil
}

// BulkUpdateEscalation escalates every named open ticket in one unconditional
// write, raising its priority to high. Returns the ids actually updated.
func (r *Repository) BulkUpdateEscalation(ctx context.Context, ticketIDs []string, reason string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "LoanTicketRepository.BulkUpdateEscalation")
	defer span.End()

	if len(ticketIDs) == 0 {
		return nil, nil
	}

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	var updated []string
	err = tx.SelectContext(ctx, &updated,
		`UPDATE loan_tickets
		SET is_escalated = true, escalation_reason = $1, priority = $2, version = version + 1, last_activity_at = $3, updated_at = $3
		WHERE id = ANY($4) AND deleted_at IS NULL AND status NOT IN ($5, $6)
		RETURNING id`,
		reason, string(models.TicketPriorityHigh), now, pq.Array(ticketIDs),
		string(models.TicketStatusClosed), string(models.TicketStatusRejected))
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("error bulk escalating tickets")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "error bulk escalating tickets")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return updated, nil
}

func (r *Repository) SoftDelete(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "LoanTicketRepository.SoftDelete")
	defer span.End()

	now := time.Now().UTC()
	ub := database.NewUpdateBuilder()
	ub.Update(ticketTable)
	ub.Set(
		ub.Assign("deleted_at", now),
		ub.Assign("updated_at", now),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.IsNull("deleted_at"),
	)

	query, args := ub.Build()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("error deleting loan ticket")
		return httperror.NewHTTPError(http.StatusInternalServerError, "error deleting loan ticket")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, "loan ticket not found")
	}

	return tx.Commit(ctx)
}

// InsertComment appends a comment and refreshes the ticket's activity
// timestamp without touching its version.
func (r *Repository) InsertComment(ctx context.Context, comment models.TicketComment) error {
	ctx, span := tracing.StartSpan(ctx, "LoanTicketRepository.InsertComment")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	ib := database.NewInsertBuilder()
	ib.InsertInto(commentTable)
	ib.Cols("id", "ticket_id", "author_id", "body", "is_public", "created_at")
	ib.Values(comment.ID, comment.TicketID, comment.AuthorID, comment.Body, comment.IsPublic, comment.CreatedAt)

	query, args := ib.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("ticket_id", comment.TicketID).Error("error inserting ticket comment")
		return httperror.NewHTTPError(http.StatusInternalServerError, "error inserting ticket comment")
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE loan_tickets SET last_activity_at = $1 WHERE id = $2",
		time.Now().UTC(), comment.TicketID,
	); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("ticket_id", comment.TicketID).Error("error touching ticket activity")
		return httperror.NewHTTPError(http.StatusInternalServerError, "error inserting ticket comment")
	}

	return tx.Commit(ctx)
}

func (r *Repository) ListComments(ctx context.Context, ticketID string) ([]models.TicketComment, error) {
	ctx, span := tracing.StartSpan(ctx, "LoanTicketRepository.ListComments")
	defer span.End()

	sb := commentStruct.SelectFrom(commentTable)
	sb.Where(sb.Equal("ticket_id", ticketID))
	sb.OrderBy("created_at").Asc()

	query, args := sb.Build()

	var rows []TicketCommentRow
	err := r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("ticket_id", ticketID).Error("error listing ticket comments")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "error listing ticket comments")
	}

	comments := make([]models.TicketComment, 0, len(rows))
	for i := range rows {
		comments = append(comments, ToTicketComment(&rows[i]))
	}

	return comments, nil
}

func (r *Repository) InsertAssignment(ctx context.Context, assignment models.TicketAssignment) error {
	ctx, span := tracing.StartSpan(ctx, "LoanTicketRepository.InsertAssignment")
	defer span.End()

	if assignment.ID == "" {
		assignment.ID = uuid.New().String()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(ticketAssignmentTable)
	ib.Cols("id", "ticket_id", "assignee_id", "assigned_by", "created_at")
	ib.Values(assignment.ID, assignment.TicketID, assignment.AssigneeID, assignment.AssignedBy, assignment.CreatedAt)

	query, args := ib.Build()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("ticket_id", assignment.TicketID).Error("error recording ticket assignment")
		return httperror.NewHTTPError(http.StatusInternalServerError, "error recording ticket assignment")
	}

	return tx.Commit(ctx)
}

func (r *Repository) InsertAuditEntry(ctx context.Context, entry models.TicketAuditEntry) error {
	ctx, span := tracing.StartSpan(ctx, "LoanTicketRepository.InsertAuditEntry")
	defer span.End()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(ticketAuditTable)
	ib.Cols("id", "ticket_id", "actor_id", "action", "old_value", "new_value", "comment", "created_at")
	ib.Values(
		entry.ID,
		entry.TicketID,
		entry.ActorID,
		entry.Action,
		nullableString(entry.OldValue),
		nullableString(entry.NewValue),
		nullableString(entry.Comment),
		entry.CreatedAt,
	)

	query, args := ib.Build()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"ticket_id": entry.TicketID,
			"action":    entry.Action,
		}).Error("error recording ticket audit entry")
		return httperror.NewHTTPError(http.StatusInternalServerError, "error recording ticket audit entry")
	}

	return tx.Commit(ctx)
}

func (r *Repository) ListAuditEntries(ctx context.Context, ticketID string) ([]models.TicketAuditEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "LoanTicketRepository.ListAuditEntries")
	defer span.End()

	sb := ticketAuditStruct.SelectFrom(ticketAuditTable)
	sb.Where(sb.Equal("ticket_id", ticketID))
	sb.OrderBy("created_at").Asc()

	query, args := sb.Build()

	var rows []TicketAuditRow
	err := r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("ticket_id", ticketID).Error("error listing ticket audit entries")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "error listing ticket audit entries")
	}

	entries := make([]models.TicketAuditEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, ToTicketAuditEntry(&rows[i]))
	}

	return entries, nil
}

// CountOpenByAssignee returns the open (non-terminal) ticket count for each
// candidate. Candidates with no open tickets appear with a zero count, which
// auto-assignment needs to pick them up.
func (r *Repository) CountOpenByAssignee(ctx context.Context, employeeIDs []string) (map[string]int, error) {
	ctx, span := tracing.StartSpan(ctx, "LoanTicketRepository.CountOpenByAssignee")
	defer span.End()

	counts := make(map[string]int, len(employeeIDs))
	for _, id := range employeeIDs {
		counts[id] = 0
	}
	if len(employeeIDs) == 0 {
		return counts, nil
	}

	sb := database.NewSelectBuilder()
	sb.Select("assignee_id", "COUNT(*) AS count")
	sb.From(ticketTable)
	ids := make([]any, 0, len(employeeIDs))
	for _, id := range employeeIDs {
		ids = append(ids, id)
	}
	sb.Where(
		sb.In("assignee_id", ids...),
		sb.NotIn("status", string(models.TicketStatusClosed), string(models.TicketStatusRejected)),
		sb.IsNull("deleted_at"),
	)
	sb.GroupBy("assignee_id")

	query, args := sb.Build()

	type assigneeCount struct {
		AssigneeID string `db:"assignee_id"`
		Count      int    `db:"count"`
	}

	var rows []assigneeCount
	err := r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("error counting open tickets by assignee")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "error counting open tickets")
	}

	for _, row := range rows {
		counts[row.AssigneeID] = row.Count
	}

	return counts, nil
}

// Stats aggregates the ticket counts the dashboard reports.
func (r *Repository) Stats(ctx context.Context, now time.Time) (models.TicketStats, error) {
	ctx, span := tracing.StartSpan(ctx, "LoanTicketRepository.Stats")
	defer span.End()

	stats := models.TicketStats{ByStatus: map[string]int{}}

	type statusCount struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}

	var rows []statusCount
	err := r.db.SelectContext(ctx, &rows,
		"SELECT status, COUNT(*) AS count FROM loan_tickets WHERE deleted_at IS NULL GROUP BY status")
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("error counting tickets by status")
		return models.TicketStats{}, httperror.NewHTTPError(http.StatusInternalServerError, "error aggregating ticket stats")
	}

	for _, row := range rows {
		stats.ByStatus[row.Status] = row.Count
		status := models.TicketStatus(row.Status)
		if !status.IsTerminal() {
			stats.Open += row.Count
		}
	}

	err = r.db.GetContext(ctx, &stats.Escalated,
		"SELECT COUNT(*) FROM loan_tickets WHERE deleted_at IS NULL AND is_escalated = true AND status NOT IN ($1, $2)",
		string(models.TicketStatusClosed), string(models.TicketStatusRejected))
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("error counting escalated tickets")
		return models.TicketStats{}, httperror.NewHTTPError(http.StatusInternalServerError, "error aggregating ticket stats")
	}

	err = r.db.GetContext(ctx, &stats.OverdueSLA,
		"SELECT COUNT(*) FROM loan_tickets WHERE deleted_at IS NULL AND sla_due_at < $1 AND status NOT IN ($2, $3)",
		now, string(models.TicketStatusClosed), string(models.TicketStatusRejected))
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("error counting overdue tickets")
		return models.TicketStats{}, httperror.NewHTTPError(http.StatusInternalServerError, "error aggregating ticket stats")
	}

	return stats, nil
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
