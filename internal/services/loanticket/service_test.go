package loanticket

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/laurel/internal/repositories/loanticket"
	"github.com/Ramsey-B/laurel/pkg/audit"
	"github.com/Ramsey-B/laurel/pkg/events"
	"github.com/Ramsey-B/laurel/pkg/models"
)

type fakeTicketRepo struct {
	tickets     map[string]models.LoanTicket
	comments    []models.TicketComment
	assignments []models.TicketAssignment
	auditTrail  []models.TicketAuditEntry
	openCounts  map[string]int
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{
		tickets:    map[string]models.LoanTicket{},
		openCounts: map[string]int{},
	}
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket models.LoanTicket) error {
	r.tickets[ticket.ID] = ticket
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (models.LoanTicket, error) {
	ticket, ok := r.tickets[id]
	if !ok || ticket.DeletedAt != nil {
		return models.LoanTicket{}, httperror.NewHTTPError(http.StatusNotFound, "loan ticket not found")
	}
	return ticket, nil
}

func (r *fakeTicketRepo) UpdateVersioned(_ context.Context, ticket models.LoanTicket, expectedVersion int) (bool, error) {
	current, ok := r.tickets[ticket.ID]
	if !ok || current.DeletedAt != nil || current.Version != expectedVersion {
		return false, nil
	}
	ticket.Version = expectedVersion + 1
	r.tickets[ticket.ID] = ticket
	return true, nil
}

func (r *fakeTicketRepo) List(_ context.Context, _ loanticket.TicketFilter) ([]models.LoanTicket, error) {
	out := []models.LoanTicket{}
	for _, ticket := range r.tickets {
		out = append(out, ticket)
	}
	return out, nil
}

func (r *fakeTicketRepo) BulkUpdateAssignee(_ context.Context, ticketIDs []string, assigneeID string) ([]string, error) {
	updated := []string{}
	for _, id := range ticketIDs {
		ticket, ok := r.tickets[id]
		if !ok || ticket.DeletedAt != nil || ticket.Status.IsTerminal() {
			continue
		}
		ticket.AssigneeID = &assigneeID
		ticket.Version++
		r.tickets[id] = ticket
		updated = append(updated, id)
	}
	return updated, nil
}

func (r *fakeTicketRepo) BulkUpdateEscalation(_ context.Context, ticketIDs []string, reason string) ([]string, error) {
	updated := []string{}
	for _, id := range ticketIDs {
		ticket, ok := r.tickets[id]
		if !ok || ticket.DeletedAt != nil || ticket.Status.IsTerminal() {
			continue
		}
		ticket.IsEscalated = true
		ticket.EscalationReason = &reason
		ticket.Priority = models.TicketPriorityHigh
		ticket.Version++
		r.tickets[id] = ticket
		updated = append(updated, id)
	}
	return updated, nil
}

func (r *fakeTicketRepo) SoftDelete(_ context.Context, id string) error {
	ticket, ok := r.tickets[id]
	if !ok {
		return httperror.NewHTTPError(http.StatusNotFound, "loan ticket not found")
	}
	now := time.Now().UTC()
	ticket.DeletedAt = &now
	r.tickets[id] = ticket
	return nil
}

func (r *fakeTicketRepo) InsertComment(_ context.Context, comment models.TicketComment) error {
	r.comments = append(r.comments, comment)
	return nil
}

func (r *fakeTicketRepo) ListComments(_ context.Context, ticketID string) ([]models.TicketComment, error) {
	out := []models.TicketComment{}
	for _, comment := range r.comments {
		if comment.TicketID == ticketID {
			out = append(out, comment)
		}
	}
	return out, nil
}

func (r *fakeTicketRepo) InsertAssignment(_ context.Context, assignment models.TicketAssignment) error {
	r.assignments = append(r.assignments, assignment)
	return nil
}

func (r *fakeTicketRepo) InsertAuditEntry(_ context.Context, entry models.TicketAuditEntry) error {
	r.auditTrail = append(r.auditTrail, entry)
	return nil
}

func (r *fakeTicketRepo) ListAuditEntries(_ context.Context, ticketID string) ([]models.TicketAuditEntry, error) {
	out := []models.TicketAuditEntry{}
	for _, entry := range r.auditTrail {
		if entry.TicketID == ticketID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (r *fakeTicketRepo) CountOpenByAssignee(_ context.Context, employeeIDs []string) (map[string]int, error) {
	counts := map[string]int{}
	for _, id := range employeeIDs {
		counts[id] = r.openCounts[id]
	}
	return counts, nil
}

func (r *fakeTicketRepo) Stats(context.Context, time.Time) (models.TicketStats, error) {
	return models.TicketStats{}, nil
}

type fakeEmployeeRepo struct {
	employees map[string]models.Employee
}

func newFakeEmployeeRepo() *fakeEmployeeRepo {
	return &fakeEmployeeRepo{employees: map[string]models.Employee{}}
}

func (r *fakeEmployeeRepo) Create(_ context.Context, employee models.Employee) error {
	r.employees[employee.ID] = employee
	return nil
}

func (r *fakeEmployeeRepo) GetByID(_ context.Context, id string) (models.Employee, error) {
	employee, ok := r.employees[id]
	if !ok {
		return models.Employee{}, httperror.NewHTTPError(http.StatusNotFound, "employee not found")
	}
	return employee, nil
}

func (r *fakeEmployeeRepo) ListActiveByDepartment(_ context.Context, department string) ([]models.Employee, error) {
	out := []models.Employee{}
	for _, employee := range r.employees {
		if employee.Department == department && employee.IsActive {
			out = append(out, employee)
		}
	}
	return out, nil
}

type ticketFixture struct {
	service   *Service
	tickets   *fakeTicketRepo
	employees *fakeEmployeeRepo
}

func newTicketFixture() *ticketFixture {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	f := &ticketFixture{
		tickets:   newFakeTicketRepo(),
		employees: newFakeEmployeeRepo(),
	}
	f.service = NewService(f.tickets, f.employees, events.NopNotifier{}, audit.NopSink{}, 24*time.Hour, logger)
	return f
}

func (f *ticketFixture) seedTicket(id string, status models.TicketStatus, version int, assigneeID *string) {
	f.tickets.tickets[id] = models.LoanTicket{
		ID:               id,
		RequesterID:      "cust-1",
		Status:           status,
		AssigneeID:       assigneeID,
		Version:          version,
		LoanAmountNeeded: 100000,
		PropertyValue:    200000,
	}
}

func (f *ticketFixture) seedFinance(id string) {
	f.employees.employees[id] = models.Employee{
		ID:         id,
		Department: models.DepartmentFinance,
		IsActive:   true,
	}
}

func validCreateInput() CreateInput {
	return CreateInput{
		RequesterID:      "cust-1",
		RequesterName:    "Asha Rao",
		RequesterEmail:   "asha@example.com",
		RequesterPhone:   "555-0100",
		LoanType:         "home",
		PropertyValue:    500000,
		LoanAmountNeeded: 350000,
		TenureMonths:     240,
	}
}

func TestCreate_SetsInitialWorkflowState(t *testing.T) {
	f := newTicketFixture()

	ticket, err := f.service.Create(context.Background(), validCreateInput())

	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusReceived, ticket.Status)
	assert.Equal(t, 1, ticket.Version)
	assert.Equal(t, models.TicketPriorityNormal, ticket.Priority)
	assert.WithinDuration(t, time.Now().UTC().Add(24*time.Hour), ticket.SLADueAt, time.Minute)
}

func TestCreate_RejectsLoanAbovePropertyValue(t *testing.T) {
	f := newTicketFixture()
	input := validCreateInput()
	input.LoanAmountNeeded = 600000

	_, err := f.service.Create(context.Background(), input)

	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	assert.Contains(t, err.Error(), "cannot exceed the property value")
}

func TestTake_ClaimsUnassignedTicket(t *testing.T) {
	f := newTicketFixture()
	f.seedTicket("t-1", models.TicketStatusReceived, 1, nil)

	ticket, err := f.service.Take(context.Background(), "t-1", "fin-1", models.RoleFinance)

	require.NoError(t, err)
	require.NotNil(t, ticket.AssigneeID)
	assert.Equal(t, "fin-1", *ticket.AssigneeID)
	assert.Equal(t, models.TicketStatusUnderReview, ticket.Status, "taking a received ticket moves it into review")
	assert.Equal(t, 2, ticket.Version)
	require.Len(t, f.tickets.assignments, 1)
	assert.Equal(t, "fin-1", f.tickets.assignments[0].AssigneeID)

	actions := make([]string, 0, len(f.tickets.auditTrail))
	for _, entry := range f.tickets.auditTrail {
		actions = append(actions, entry.Action)
	}
	assert.Equal(t, []string{"assigned", "status_changed"}, actions)
}

func TestTake_KeepsStatusWhenAlreadyUnderReview(t *testing.T) {
	f := newTicketFixture()
	f.seedTicket("t-1", models.TicketStatusContacted, 1, nil)

	ticket, err := f.service.Take(context.Background(), "t-1", "fin-1", models.RoleFinance)

	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusContacted, ticket.Status)
	actions := make([]string, 0, len(f.tickets.auditTrail))
	for _, entry := range f.tickets.auditTrail {
		actions = append(actions, entry.Action)
	}
	assert.Equal(t, []string{"assigned"}, actions)
}

func TestTake_IsIdempotentForCurrentAssignee(t *testing.T) {
	f := newTicketFixture()
	assignee := "fin-1"
	f.seedTicket("t-1", models.TicketStatusReceived, 3, &assignee)

	ticket, err := f.service.Take(context.Background(), "t-1", "fin-1", models.RoleFinance)

	require.NoError(t, err)
	assert.Equal(t, 3, ticket.Version, "a repeated take must not bump the version")
	assert.Empty(t, f.tickets.assignments)
}

func TestTake_ConflictNamesCurrentAssignee(t *testing.T) {
	f := newTicketFixture()
	assignee := "fin-1"
	f.seedTicket("t-1", models.TicketStatusReceived, 1, &assignee)

	_, err := f.service.Take(context.Background(), "t-1", "fin-2", models.RoleFinance)

	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
	httperr := httperror.ToHTTPError(err)
	assert.Equal(t, "fin-1", httperr.Meta["assignee_id"])
	current, ok := httperr.Meta["current"].(models.LoanTicket)
	require.True(t, ok)
	assert.Equal(t, "t-1", current.ID)
}

func TestChangeStatus_RejectsIllegalTransition(t *testing.T) {
	f := newTicketFixture()
	f.seedTicket("t-1", models.TicketStatusReceived, 1, nil)

	_, err := f.service.ChangeStatus(context.Background(), "t-1", "fin-1", models.RoleFinance, models.TicketStatusClosed, "", 1)

	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
	httperr := httperror.ToHTTPError(err)
	assert.Equal(t, []string{"under_review", "rejected"}, httperr.Meta["allowed_transitions"])
}

func TestChangeStatus_TerminalStatusRequiresComment(t *testing.T) {
	f := newTicketFixture()
	f.seedTicket("t-1", models.TicketStatusContacted, 1, nil)

	_, err := f.service.ChangeStatus(context.Background(), "t-1", "fin-1", models.RoleFinance, models.TicketStatusClosed, "", 1)

	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestChangeStatus_StaleVersionCarriesFreshRow(t *testing.T) {
	f := newTicketFixture()
	f.seedTicket("t-1", models.TicketStatusReceived, 4, nil)

	_, err := f.service.ChangeStatus(context.Background(), "t-1", "fin-1", models.RoleFinance, models.TicketStatusUnderReview, "", 1)

	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
	httperr := httperror.ToHTTPError(err)
	current, ok := httperr.Meta["current"].(models.LoanTicket)
	require.True(t, ok)
	assert.Equal(t, 4, current.Version)
}

func TestChangeStatus_RecordsCommentAndAudit(t *testing.T) {
	f := newTicketFixture()
	f.seedTicket("t-1", models.TicketStatusContacted, 1, nil)

	ticket, err := f.service.ChangeStatus(context.Background(), "t-1", "fin-1", models.RoleFinance, models.TicketStatusClosed, "funded via partner bank", 1)

	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusClosed, ticket.Status)
	require.Len(t, f.tickets.comments, 1)
	assert.Equal(t, "funded via partner bank", f.tickets.comments[0].Body)
	require.Len(t, f.tickets.auditTrail, 1)
	assert.Equal(t, "status_changed", f.tickets.auditTrail[0].Action)
}

func TestReassign_AdminOnly(t *testing.T) {
	f := newTicketFixture()
	f.seedTicket("t-1", models.TicketStatusReceived, 1, nil)
	f.seedFinance("fin-2")
	assignee := "fin-2"

	_, err := f.service.Reassign(context.Background(), "t-1", "fin-1", models.RoleFinance, &assignee, 1)

	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
	assert.Nil(t, f.tickets.tickets["t-1"].AssigneeID)
}

func TestReassign_AutoAssignPicksLeastLoaded(t *testing.T) {
	f := newTicketFixture()
	f.seedTicket("t-1", models.TicketStatusReceived, 1, nil)
	f.seedFinance("fin-1")
	f.seedFinance("fin-2")
	f.seedFinance("fin-3")
	f.tickets.openCounts = map[string]int{"fin-1": 5, "fin-2": 2, "fin-3": 2}

	ticket, err := f.service.Reassign(context.Background(), "t-1", "admin-1", models.RoleAdmin, nil, 1)

	require.NoError(t, err)
	require.NotNil(t, ticket.AssigneeID)
	assert.Equal(t, "fin-2", *ticket.AssigneeID, "ties break on the lowest employee id")
}

func TestReassign_RejectsInactiveAssignee(t *testing.T) {
	f := newTicketFixture()
	f.seedTicket("t-1", models.TicketStatusReceived, 1, nil)
	f.employees.employees["fin-1"] = models.Employee{
		ID:         "fin-1",
		Department: models.DepartmentFinance,
		IsActive:   false,
	}
	assignee := "fin-1"

	_, err := f.service.Reassign(context.Background(), "t-1", "admin-1", models.RoleAdmin, &assignee, 1)

	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestEscalate_FlagsTicketAndRaisesPriority(t *testing.T) {
	f := newTicketFixture()
	f.seedTicket("t-1", models.TicketStatusUnderReview, 1, nil)

	ticket, err := f.service.Escalate(context.Background(), "t-1", "fin-1", models.RoleFinance, "no response in 48h", 1)

	require.NoError(t, err)
	assert.True(t, ticket.IsEscalated)
	require.NotNil(t, ticket.EscalationReason)
	assert.Equal(t, "no response in 48h", *ticket.EscalationReason)
	assert.Equal(t, models.TicketPriorityHigh, ticket.Priority)
	assert.Equal(t, models.TicketPriorityHigh, f.tickets.tickets["t-1"].Priority)
}

func TestBulkReassign_ReportsPerTicketOutcomes(t *testing.T) {
	f := newTicketFixture()
	f.seedFinance("fin-1")
	f.seedTicket("t-1", models.TicketStatusReceived, 1, nil)
	f.seedTicket("t-2", models.TicketStatusClosed, 1, nil)

	result, err := f.service.BulkReassign(context.Background(), "admin-1", models.RoleAdmin, []string{"t-1", "t-2", "t-missing"}, "fin-1")

	require.NoError(t, err)
	assert.Equal(t, []string{"t-1"}, result.Updated)
	assert.ElementsMatch(t, []string{"t-2", "t-missing"}, result.Failed)
}

func TestBulkEscalate_AdminOnly(t *testing.T) {
	f := newTicketFixture()

	_, err := f.service.BulkEscalate(context.Background(), "fin-1", models.RoleFinance, []string{"t-1"}, "stale")

	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
}

func TestBulkEscalate_RaisesPriorityWithoutVersionCheck(t *testing.T) {
	f := newTicketFixture()
	f.seedTicket("t-1", models.TicketStatusReceived, 7, nil)
	f.seedTicket("t-2", models.TicketStatusUnderReview, 3, nil)

	result, err := f.service.BulkEscalate(context.Background(), "admin-1", models.RoleAdmin, []string{"t-1", "t-2"}, "stale queue")

	require.NoError(t, err)
	assert.Equal(t, []string{"t-1", "t-2"}, result.Updated)
	assert.Empty(t, result.Failed)
	for _, id := range []string{"t-1", "t-2"} {
		ticket := f.tickets.tickets[id]
		assert.True(t, ticket.IsEscalated)
		assert.Equal(t, models.TicketPriorityHigh, ticket.Priority)
	}
	assert.Equal(t, 8, f.tickets.tickets["t-1"].Version)
	require.Len(t, f.tickets.auditTrail, 2)
	assert.Equal(t, "bulk_escalated", f.tickets.auditTrail[0].Action)
}

func TestDelete_RequiresTerminalStatus(t *testing.T) {
	f := newTicketFixture()
	f.seedTicket("t-1", models.TicketStatusUnderReview, 1, nil)

	err := f.service.Delete(context.Background(), "t-1", models.RoleAdmin)

	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
	assert.Nil(t, f.tickets.tickets["t-1"].DeletedAt)
}

func TestDelete_SoftDeletesClosedTicket(t *testing.T) {
	f := newTicketFixture()
	f.seedTicket("t-1", models.TicketStatusClosed, 1, nil)

	err := f.service.Delete(context.Background(), "t-1", models.RoleAdmin)

	require.NoError(t, err)
	assert.NotNil(t, f.tickets.tickets["t-1"].DeletedAt)
}

func TestListComments_CustomersOnlySeePublicOnOwnTickets(t *testing.T) {
	f := newTicketFixture()
	f.seedTicket("t-1", models.TicketStatusReceived, 1, nil)
	f.tickets.comments = []models.TicketComment{
		{ID: "c-1", TicketID: "t-1", Body: "internal note", IsPublic: false},
		{ID: "c-2", TicketID: "t-1", Body: "we will call you", IsPublic: true},
	}

	comments, err := f.service.ListComments(context.Background(), "t-1", "cust-1", models.RoleCustomer)

	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "c-2", comments[0].ID)

	_, err = f.service.ListComments(context.Background(), "t-1", "cust-2", models.RoleCustomer)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}

func TestGet_CustomerCannotReadForeignTicket(t *testing.T) {
	f := newTicketFixture()
	f.seedTicket("t-1", models.TicketStatusReceived, 1, nil)

	_, err := f.service.Get(context.Background(), "t-1", "cust-2", models.RoleCustomer)

	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}
