// Package loanticket implements the finance ticket workflow: a closed status
// graph, optimistic concurrency on every guarded write, and least-loaded
// auto-assignment across the finance desk.
package loanticket

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/laurel/internal/repositories/employee"
	"github.com/Ramsey-B/laurel/internal/repositories/loanticket"
	"github.com/Ramsey-B/laurel/pkg/audit"
	"github.com/Ramsey-B/laurel/pkg/events"
	"github.com/Ramsey-B/laurel/pkg/metrics"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

// CreateInput carries a customer's financing inquiry.
type CreateInput struct {
	RequesterID       string
	RequesterName     string
	RequesterEmail    string
	RequesterPhone    string
	RequesterLocation string
	LoanType          string
	LoanCategory      string
	PropertyValue     float64
	LoanAmountNeeded  float64
	TenureMonths      int
	MonthlyIncome     float64
	Priority          models.TicketPriority
}

// BulkResult reports per-ticket outcomes of a bulk operation.
type BulkResult struct {
	Updated []string `json:"updated"`
	Failed  []string `json:"failed"`
}

type Service struct {
	tickets   loanticket.LoanTicketRepository
	employees employee.EmployeeRepository
	notifier  events.Notifier
	audit     audit.Sink
	logger    ectologger.Logger
	slaWindow time.Duration
}

// NewService creates a new loan ticket service
func NewService(
	tickets loanticket.LoanTicketRepository,
	employees employee.EmployeeRepository,
	notifier events.Notifier,
	auditSink audit.Sink,
	slaWindow time.Duration,
	logger ectologger.Logger,
) *Service {
	return &Service{
		tickets:   tickets,
		employees: employees,
		notifier:  notifier,
		audit:     auditSink,
		logger:    logger,
		slaWindow: slaWindow,
	}
}

// Create validates and stores a new inquiry. The requester identity fields
// are snapshotted onto the row so later profile edits never rewrite history.
func (s *Service) Create(ctx context.Context, input CreateInput) (models.LoanTicket, error) {
	ctx, span := tracing.StartSpan(ctx, "loanticket.Create")
	defer span.End()

	if input.LoanAmountNeeded <= 0 {
		return models.LoanTicket{}, httperror.NewHTTPError(http.StatusBadRequest, "loan amount must be positive")
	}
	if input.PropertyValue <= 0 {
		return models.LoanTicket{}, httperror.NewHTTPError(http.StatusBadRequest, "property value must be positive")
	}
	if input.LoanAmountNeeded > input.PropertyValue {
		return models.LoanTicket{}, httperror.NewHTTPError(http.StatusBadRequest, "loan amount cannot exceed the property value")
	}
	if input.TenureMonths <= 0 {
		return models.LoanTicket{}, httperror.NewHTTPError(http.StatusBadRequest, "tenure must be positive")
	}

	priority := input.Priority
	if priority == "" {
		priority = models.TicketPriorityNormal
	}

	now := time.Now().UTC()
	ticket := models.LoanTicket{
		ID:                uuid.New().String(),
		RequesterID:       input.RequesterID,
		RequesterName:     input.RequesterName,
		RequesterEmail:    input.RequesterEmail,
		RequesterPhone:    input.RequesterPhone,
		RequesterLocation: input.RequesterLocation,
		LoanType:          input.LoanType,
		LoanCategory:      input.LoanCategory,
		PropertyValue:     input.PropertyValue,
		LoanAmountNeeded:  input.LoanAmountNeeded,
		TenureMonths:      input.TenureMonths,
		MonthlyIncome:     input.MonthlyIncome,
		Status:            models.TicketStatusReceived,
		Version:           1,
		Priority:          priority,
		SLADueAt:          now.Add(s.slaWindow),
		LastActivityAt:    now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return models.LoanTicket{}, err
	}

	s.audit.Append(ctx, input.RequesterID, "ticket.created", "loan_ticket", ticket.ID, map[string]any{
		"loan_type": ticket.LoanType,
		"amount":    ticket.LoanAmountNeeded,
	})

	return ticket, nil
}

// Get returns the ticket. Customers only see their own tickets.
func (s *Service) Get(ctx context.Context, id, actorID string, role models.Role) (models.LoanTicket, error) {
	ctx, span := tracing.StartSpan(ctx, "loanticket.Get")
	defer span.End()

	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return models.LoanTicket{}, err
	}
	if role == models.RoleCustomer && ticket.RequesterID != actorID {
		return models.LoanTicket{}, httperror.NewHTTPError(http.StatusNotFound, "loan ticket not found")
	}

	return ticket, nil
}

// List returns tickets matching the filter.
func (s *Service) List(ctx context.Context, filter loanticket.TicketFilter, actorID string, role models.Role) ([]models.LoanTicket, error) {
	ctx, span := tracing.StartSpan(ctx, "loanticket.List")
	defer span.End()

	if role == models.RoleCustomer {
		return nil, httperror.NewHTTPError(http.StatusForbidden, "customers cannot list the ticket queue")
	}

	return s.tickets.List(ctx, filter)
}

// Take claims an unassigned ticket for the caller and moves a freshly
// received ticket into review. When another employee already holds it, the
// conflict names them and carries the fresh row.
func (s *Service) Take(ctx context.Context, id, actorID string, role models.Role) (models.LoanTicket, error) {
	ctx, span := tracing.StartSpan(ctx, "loanticket.Take")
	defer span.End()

	if role != models.RoleFinance && role != models.RoleAdmin {
		return models.LoanTicket{}, httperror.NewHTTPError(http.StatusForbidden, "only finance staff may take tickets")
	}

	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return models.LoanTicket{}, err
	}
	if ticket.Status.IsTerminal() {
		return models.LoanTicket{}, httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("ticket in status %q cannot be taken", ticket.Status))
	}
	if ticket.AssigneeID != nil {
		if *ticket.AssigneeID == actorID {
			return ticket, nil
		}
		return models.LoanTicket{}, s.assignmentConflict(ticket)
	}

	expected := ticket.Version
	from := ticket.Status
	ticket.AssigneeID = &actorID
	if ticket.Status == models.TicketStatusReceived {
		ticket.Status = models.TicketStatusUnderReview
	}
	updated, err := s.tickets.UpdateVersioned(ctx, ticket, expected)
	if err != nil {
		return models.LoanTicket{}, err
	}
	if !updated {
		metrics.TicketVersionConflictsTotal.Inc()
		fresh, err := s.tickets.GetByID(ctx, id)
		if err != nil {
			return models.LoanTicket{}, err
		}
		return models.LoanTicket{}, s.assignmentConflict(fresh)
	}
	ticket.Version = expected + 1

	s.recordAssignment(ctx, ticket, actorID)
	if ticket.Status != from {
		oldValue := string(from)
		newValue := string(ticket.Status)
		s.appendTicketAudit(ctx, models.TicketAuditEntry{
			TicketID: ticket.ID,
			ActorID:  actorID,
			Action:   "status_changed",
			OldValue: &oldValue,
			NewValue: &newValue,
		})
		metrics.TicketTransitionsTotal.WithLabelValues(oldValue, newValue).Inc()
	}
	return ticket, nil
}

// Reassign hands the ticket to the named employee, or to the least-loaded
// active finance employee when assigneeID is nil. Admin only. expectedVersion
// is the caller's view of the row; a mismatch returns a conflict carrying the
// current row.
func (s *Service) Reassign(ctx context.Context, id, actorID string, role models.Role, assigneeID *string, expectedVersion int) (models.LoanTicket, error) {
	ctx, span := tracing.StartSpan(ctx, "loanticket.Reassign")
	defer span.End()

	if role != models.RoleAdmin {
		return models.LoanTicket{}, httperror.NewHTTPError(http.StatusForbidden, "only admins may reassign tickets")
	}

	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return models.LoanTicket{}, err
	}
	if ticket.Status.IsTerminal() {
		return models.LoanTicket{}, httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("ticket in status %q cannot be reassigned", ticket.Status))
	}

	target := ""
	if assigneeID != nil {
		target = *assigneeID
		emp, err := s.employees.GetByID(ctx, target)
		if err != nil {
			return models.LoanTicket{}, err
		}
		if !emp.IsActive || emp.Department != models.DepartmentFinance {
			return models.LoanTicket{}, httperror.NewHTTPError(http.StatusBadRequest, "assignee must be an active finance employee")
		}
	} else {
		target, err = s.pickLeastLoaded(ctx)
		if err != nil {
			return models.LoanTicket{}, err
		}
	}

	ticket.AssigneeID = &target
	updated, err := s.tickets.UpdateVersioned(ctx, ticket, expectedVersion)
	if err != nil {
		return models.LoanTicket{}, err
	}
	if !updated {
		return models.LoanTicket{}, s.versionConflict(ctx, id)
	}
	ticket.Version = expectedVersion + 1

	s.recordAssignment(ctx, ticket, actorID)
	return ticket, nil
}

// ChangeStatus moves the ticket along the status graph. Illegal transitions
// echo the allowed set back; terminal transitions require a comment.
func (s *Service) ChangeStatus(ctx context.Context, id, actorID string, role models.Role, to models.TicketStatus, comment string, expectedVersion int) (models.LoanTicket, error) {
	ctx, span := tracing.StartSpan(ctx, "loanticket.ChangeStatus")
	defer span.End()

	if role != models.RoleFinance && role != models.RoleAdmin {
		return models.LoanTicket{}, httperror.NewHTTPError(http.StatusForbidden, "only finance staff may change ticket status")
	}

	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return models.LoanTicket{}, err
	}

	from := ticket.Status
	if !models.CanTransition(from, to) {
		allowed := make([]string, 0, len(models.TicketTransitions[from]))
		for _, status := range models.TicketTransitions[from] {
			allowed = append(allowed, string(status))
		}
		return models.LoanTicket{}, httperror.NewHTTPError(http.StatusConflict,
			fmt.Sprintf("cannot move ticket from %q to %q; allowed: %s", from, to, strings.Join(allowed, ", "))).
			AddMetaValue("allowed_transitions", allowed)
	}
	if to.RequiresComment() && comment == "" {
		return models.LoanTicket{}, httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("a comment is required to move a ticket to %q", to))
	}

	ticket.Status = to
	updated, err := s.tickets.UpdateVersioned(ctx, ticket, expectedVersion)
	if err != nil {
		return models.LoanTicket{}, err
	}
	if !updated {
		return models.LoanTicket{}, s.versionConflict(ctx, id)
	}
	ticket.Version = expectedVersion + 1

	if comment != "" {
		if err := s.tickets.InsertComment(ctx, models.TicketComment{
			ID:        uuid.New().String(),
			TicketID:  ticket.ID,
			AuthorID:  actorID,
			Body:      comment,
			IsPublic:  true,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			s.logger.WithContext(ctx).WithError(err).WithField("ticket_id", ticket.ID).Warn("Failed to record transition comment")
		}
	}

	oldValue := string(from)
	newValue := string(to)
	s.appendTicketAudit(ctx, models.TicketAuditEntry{
		TicketID: ticket.ID,
		ActorID:  actorID,
		Action:   "status_changed",
		OldValue: &oldValue,
		NewValue: &newValue,
	})
	s.notifier.TicketStatusChanged(ctx, &ticket, actorID, from)
	metrics.TicketTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()

	return ticket, nil
}

// Escalate flags the ticket and raises its priority to high. Escalating an
// already-escalated ticket only updates the reason.
func (s *Service) Escalate(ctx context.Context, id, actorID string, role models.Role, reason string, expectedVersion int) (models.LoanTicket, error) {
	ctx, span := tracing.StartSpan(ctx, "loanticket.Escalate")
	defer span.End()

	if role != models.RoleFinance && role != models.RoleAdmin {
		return models.LoanTicket{}, httperror.NewHTTPError(http.StatusForbidden, "only finance staff may escalate tickets")
	}
	if reason == "" {
		return models.LoanTicket{}, httperror.NewHTTPError(http.StatusBadRequest, "an escalation reason is required")
	}

	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return models.LoanTicket{}, err
	}
	if ticket.Status.IsTerminal() {
		return models.LoanTicket{}, httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("ticket in status %q cannot be escalated", ticket.Status))
	}

	ticket.IsEscalated = true
	ticket.EscalationReason = &reason
	ticket.Priority = models.TicketPriorityHigh
	updated, err := s.tickets.UpdateVersioned(ctx, ticket, expectedVersion)
	if err != nil {
		return models.LoanTicket{}, err
	}
	if !updated {
		return models.LoanTicket{}, s.versionConflict(ctx, id)
	}
	ticket.Version = expectedVersion + 1

	s.appendTicketAudit(ctx, models.TicketAuditEntry{
		TicketID: ticket.ID,
		ActorID:  actorID,
		Action:   "escalated",
		Comment:  &reason,
	})

	return ticket, nil
}

// AddComment appends a note without bumping the ticket version.
func (s *Service) AddComment(ctx context.Context, id, authorID, body string, isPublic bool) (models.TicketComment, error) {
	ctx, span := tracing.StartSpan(ctx, "loanticket.AddComment")
	defer span.End()

	if body == "" {
		return models.TicketComment{}, httperror.NewHTTPError(http.StatusBadRequest, "comment body is required")
	}
	if _, err := s.tickets.GetByID(ctx, id); err != nil {
		return models.TicketComment{}, err
	}

	comment := models.TicketComment{
		ID:        uuid.New().String(),
		TicketID:  id,
		AuthorID:  authorID,
		Body:      body,
		IsPublic:  isPublic,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.tickets.InsertComment(ctx, comment); err != nil {
		return models.TicketComment{}, err
	}

	return comment, nil
}

// ListComments returns the ticket's comments. Customers only see public ones
// on their own tickets.
func (s *Service) ListComments(ctx context.Context, id, actorID string, role models.Role) ([]models.TicketComment, error) {
	ctx, span := tracing.StartSpan(ctx, "loanticket.ListComments")
	defer span.End()

	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	comments, err := s.tickets.ListComments(ctx, id)
	if err != nil {
		return nil, err
	}

	if role == models.RoleCustomer {
		if ticket.RequesterID != actorID {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "loan ticket not found")
		}
		public := make([]models.TicketComment, 0, len(comments))
		for _, comment := range comments {
			if comment.IsPublic {
				public = append(public, comment)
			}
		}
		return public, nil
	}

	return comments, nil
}

// History returns the ticket's audit trail.
func (s *Service) History(ctx context.Context, id string, role models.Role) ([]models.TicketAuditEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "loanticket.History")
	defer span.End()

	if role == models.RoleCustomer {
		return nil, httperror.NewHTTPError(http.StatusForbidden, "customers cannot read ticket history")
	}
	if _, err := s.tickets.GetByID(ctx, id); err != nil {
		return nil, err
	}

	return s.tickets.ListAuditEntries(ctx, id)
}

// BulkReassign moves a batch of tickets to one assignee in a single
// unconditional write: no per-row version check, version bumps happen in the
// statement itself. Tickets the statement skipped (terminal, deleted, or
// unknown) come back in Failed; each updated ticket gets its own audit entry.
func (s *Service) BulkReassign(ctx context.Context, actorID string, role models.Role, ticketIDs []string, assigneeID string) (BulkResult, error) {
	ctx, span := tracing.StartSpan(ctx, "loanticket.BulkReassign")
	defer span.End()

	if role != models.RoleAdmin {
		return BulkResult{}, httperror.NewHTTPError(http.StatusForbidden, "only admins may bulk reassign tickets")
	}

	emp, err := s.employees.GetByID(ctx, assigneeID)
	if err != nil {
		return BulkResult{}, err
	}
	if !emp.IsActive || emp.Department != models.DepartmentFinance {
		return BulkResult{}, httperror.NewHTTPError(http.StatusBadRequest, "assignee must be an active finance employee")
	}

	updated, err := s.tickets.BulkUpdateAssignee(ctx, ticketIDs, assigneeID)
	if err != nil {
		return BulkResult{}, err
	}

	result := splitBulkOutcome(ticketIDs, updated)
	for _, id := range result.Updated {
		s.appendTicketAudit(ctx, models.TicketAuditEntry{
			TicketID: id,
			ActorID:  actorID,
			Action:   "bulk_reassigned",
			NewValue: &assigneeID,
		})
	}

	return result, nil
}

// BulkEscalate flags a batch of tickets with one reason in a single
// unconditional write, raising each to high priority.
func (s *Service) BulkEscalate(ctx context.Context, actorID string, role models.Role, ticketIDs []string, reason string) (BulkResult, error) {
	ctx, span := tracing.StartSpan(ctx, "loanticket.BulkEscalate")
	defer span.End()

	if role != models.RoleAdmin {
		return BulkResult{}, httperror.NewHTTPError(http.StatusForbidden, "only admins may bulk escalate tickets")
	}
	if reason == "" {
		return BulkResult{}, httperror.NewHTTPError(http.StatusBadRequest, "an escalation reason is required")
	}

	updated, err := s.tickets.BulkUpdateEscalation(ctx, ticketIDs, reason)
	if err != nil {
		return BulkResult{}, err
	}

	result := splitBulkOutcome(ticketIDs, updated)
	for _, id := range result.Updated {
		s.appendTicketAudit(ctx, models.TicketAuditEntry{
			TicketID: id,
			ActorID:  actorID,
			Action:   "bulk_escalated",
			Comment:  &reason,
		})
	}

	return result, nil
}

// Delete soft-deletes a ticket. Admin only, and only once the ticket reached
// a terminal status.
func (s *Service) Delete(ctx context.Context, id string, role models.Role) error {
	ctx, span := tracing.StartSpan(ctx, "loanticket.Delete")
	defer span.End()

	if role != models.RoleAdmin {
		return httperror.NewHTTPError(http.StatusForbidden, "only admins may delete tickets")
	}

	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !ticket.Status.IsTerminal() {
		return httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("ticket in status %q cannot be deleted", ticket.Status))
	}

	return s.tickets.SoftDelete(ctx, id)
}

// splitBulkOutcome partitions the requested ids by whether the batch write
// touched them, preserving request order.
func splitBulkOutcome(requested, updated []string) BulkResult {
	updatedSet := make(map[string]bool, len(updated))
	for _, id := range updated {
		updatedSet[id] = true
	}

	result := BulkResult{Updated: []string{}, Failed: []string{}}
	for _, id := range requested {
		if updatedSet[id] {
			result.Updated = append(result.Updated, id)
		} else {
			result.Failed = append(result.Failed, id)
		}
	}

	return result
}

// pickLeastLoaded selects the active finance employee with the fewest open
// tickets. Ties break on the lowest employee id so repeated runs with equal
// load produce the same pick.
func (s *Service) pickLeastLoaded(ctx context.Context) (string, error) {
	candidates, err := s.employees.ListActiveByDepartment(ctx, models.DepartmentFinance)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", httperror.NewHTTPError(http.StatusConflict, "no active finance employees available for assignment")
	}

	ids := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		ids = append(ids, candidate.ID)
	}

	counts, err := s.tickets.CountOpenByAssignee(ctx, ids)
	if err != nil {
		return "", err
	}

	best := ""
	bestCount := -1
	for _, id := range ids {
		count := counts[id]
		if bestCount == -1 || count < bestCount || (count == bestCount && id < best) {
			best = id
			bestCount = count
		}
	}

	return best, nil
}

func (s *Service) assignmentConflict(ticket models.LoanTicket) error {
	assignee := ""
	if ticket.AssigneeID != nil {
		assignee = *ticket.AssigneeID
	}
	return httperror.NewHTTPError(http.StatusConflict, "ticket is already assigned").
		AddMetaValue("assignee_id", assignee).
		AddMetaValue("current", ticket)
}

// versionConflict builds the 409 for a stale expectedVersion, carrying the
// fresh row so the caller can rebase without another read.
func (s *Service) versionConflict(ctx context.Context, id string) error {
	metrics.TicketVersionConflictsTotal.Inc()

	fresh, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return err
	}

	return httperror.NewHTTPError(http.StatusConflict, "ticket was modified by another request").
		AddMetaValue("current", fresh)
}

func (s *Service) recordAssignment(ctx context.Context, ticket models.LoanTicket, actorID string) {
	assignee := ""
	if ticket.AssigneeID != nil {
		assignee = *ticket.AssigneeID
	}

	if err := s.tickets.InsertAssignment(ctx, models.TicketAssignment{
		TicketID:   ticket.ID,
		AssigneeID: assignee,
		AssignedBy: actorID,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("ticket_id", ticket.ID).Warn("Failed to record ticket assignment")
	}

	s.appendTicketAudit(ctx, models.TicketAuditEntry{
		TicketID: ticket.ID,
		ActorID:  actorID,
		Action:   "assigned",
		NewValue: &assignee,
	})
	s.notifier.TicketAssigned(ctx, &ticket, actorID)
}

func (s *Service) appendTicketAudit(ctx context.Context, entry models.TicketAuditEntry) {
	entry.CreatedAt = time.Now().UTC()
	if err := s.tickets.InsertAuditEntry(ctx, entry); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("ticket_id", entry.TicketID).Warn("Failed to record ticket audit entry")
	}
}
