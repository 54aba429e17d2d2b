package assignment

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/laurel/pkg/audit"
	"github.com/Ramsey-B/laurel/pkg/models"
)

type fakeAssignmentRepo struct {
	employeeEdges map[string]bool // "employeeID/propertyID"
	lastResult    models.ReconcileResult
}

func newFakeAssignmentRepo() *fakeAssignmentRepo {
	return &fakeAssignmentRepo{employeeEdges: map[string]bool{}}
}

func (r *fakeAssignmentRepo) ListEmployeeAssignments(context.Context, string) ([]models.EmployeePropertyAssignment, error) {
	return nil, nil
}

func (r *fakeAssignmentRepo) ReplaceEmployeeAssignments(_ context.Context, employeeID, _ string, propertyIDs []string) (models.ReconcileResult, error) {
	result := models.ReconcileResult{Added: []string{}, Removed: []string{}}
	for _, propertyID := range propertyIDs {
		key := employeeID + "/" + propertyID
		if !r.employeeEdges[key] {
			r.employeeEdges[key] = true
			result.Added = append(result.Added, propertyID)
		}
	}
	r.lastResult = result
	return result, nil
}

func (r *fakeAssignmentRepo) ListAgentAssignments(context.Context, string) ([]models.AgentPropertyAssignment, error) {
	return nil, nil
}

func (r *fakeAssignmentRepo) ReplaceAgentAssignments(_ context.Context, _, _ string, propertyIDs []string) (models.ReconcileResult, error) {
	result := models.ReconcileResult{Added: propertyIDs, Removed: []string{}}
	r.lastResult = result
	return result, nil
}

func (r *fakeAssignmentRepo) IsEmployeeAssigned(_ context.Context, employeeID, propertyID string) (bool, error) {
	return r.employeeEdges[employeeID+"/"+propertyID], nil
}

func (r *fakeAssignmentRepo) IsAgentAuthorized(context.Context, string, string) (bool, error) {
	return false, nil
}

type fakeEmployeeRepo struct {
	employees map[string]models.Employee
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

func (r *fakeEmployeeRepo) ListActiveByDepartment(context.Context, string) ([]models.Employee, error) {
	return nil, nil
}

type fakePropertyRepo struct {
	rows map[string]models.Property
}

func (r *fakePropertyRepo) Exists(_ context.Context, id string) (bool, error) {
	row, ok := r.rows[id]
	return ok && !row.IsDeleted, nil
}

func (r *fakePropertyRepo) Snapshot(context.Context, string) (models.CanonicalSnapshot, error) {
	return models.CanonicalSnapshot{}, nil
}

func (r *fakePropertyRepo) Apply(context.Context, string, json.RawMessage, string, models.Role) error {
	return nil
}

func (r *fakePropertyRepo) Restore(context.Context, string, models.CanonicalSnapshot) error {
	return nil
}

func (r *fakePropertyRepo) GetByID(_ context.Context, id string) (models.Property, error) {
	row, ok := r.rows[id]
	if !ok {
		return models.Property{}, httperror.NewHTTPError(http.StatusNotFound, "property not found")
	}
	return row, nil
}

func (r *fakePropertyRepo) List(context.Context, int, int) ([]models.Property, error) { return nil, nil }
func (r *fakePropertyRepo) SoftDelete(context.Context, string, string) error          { return nil }
func (r *fakePropertyRepo) CountActive(context.Context) (int, error)                  { return 0, nil }
func (r *fakePropertyRepo) CountDeleted(context.Context) (int, error)                 { return 0, nil }

type recordingNotifier struct {
	agentID string
	result  models.ReconcileResult
	called  bool
}

func (n *recordingNotifier) ChangeSubmitted(context.Context, *models.PendingChange) {}
func (n *recordingNotifier) ChangeReviewed(context.Context, *models.PendingChange)  {}
func (n *recordingNotifier) TicketAssigned(context.Context, *models.LoanTicket, string) {
}
func (n *recordingNotifier) TicketStatusChanged(context.Context, *models.LoanTicket, string, models.TicketStatus) {
}

func (n *recordingNotifier) AssignmentsChanged(_ context.Context, agentID string, result models.ReconcileResult) {
	n.called = true
	n.agentID = agentID
	n.result = result
}

type assignmentFixture struct {
	service     *Service
	assignments *fakeAssignmentRepo
	employees   *fakeEmployeeRepo
	properties  *fakePropertyRepo
	notifier    *recordingNotifier
}

func newAssignmentFixture() *assignmentFixture {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	f := &assignmentFixture{
		assignments: newFakeAssignmentRepo(),
		employees:   &fakeEmployeeRepo{employees: map[string]models.Employee{}},
		properties:  &fakePropertyRepo{rows: map[string]models.Property{}},
		notifier:    &recordingNotifier{},
	}
	f.service = NewService(f.assignments, f.employees, f.properties, f.notifier, audit.NopSink{}, logger)
	return f
}

func TestSetEmployeeAssignments_AdminOnly(t *testing.T) {
	f := newAssignmentFixture()

	_, err := f.service.SetEmployeeAssignments(context.Background(), "emp-1", models.RoleEmployee, "emp-2", []string{"prop-1"})

	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
}

func TestSetEmployeeAssignments_RejectsUnknownProperty(t *testing.T) {
	f := newAssignmentFixture()
	f.employees.employees["emp-1"] = models.Employee{ID: "emp-1"}
	f.properties.rows["prop-1"] = models.Property{ID: "prop-1"}

	_, err := f.service.SetEmployeeAssignments(context.Background(), "admin-1", models.RoleAdmin, "emp-1", []string{"prop-1", "prop-missing"})

	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	httperr := httperror.ToHTTPError(err)
	assert.Equal(t, "prop-missing", httperr.Meta["property_id"])
}

func TestSetEmployeeAssignments_ReconcilesDesiredSet(t *testing.T) {
	f := newAssignmentFixture()
	f.employees.employees["emp-1"] = models.Employee{ID: "emp-1"}
	f.properties.rows["prop-1"] = models.Property{ID: "prop-1"}
	f.properties.rows["prop-2"] = models.Property{ID: "prop-2"}

	result, err := f.service.SetEmployeeAssignments(context.Background(), "admin-1", models.RoleAdmin, "emp-1", []string{"prop-1", "prop-2"})

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"prop-1", "prop-2"}, result.Added)
}

func TestSetEmployeeAssignments_RejectsDuplicateProperty(t *testing.T) {
	f := newAssignmentFixture()
	f.employees.employees["emp-1"] = models.Employee{ID: "emp-1"}
	f.properties.rows["prop-1"] = models.Property{ID: "prop-1"}

	_, err := f.service.SetEmployeeAssignments(context.Background(), "admin-1", models.RoleAdmin, "emp-1", []string{"prop-1", "prop-1"})

	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	httperr := httperror.ToHTTPError(err)
	assert.Equal(t, "prop-1", httperr.Meta["property_id"])
	assert.Empty(t, f.assignments.employeeEdges, "no edge may be written when the desired set repeats an id")
}

func TestSetAgentAssignments_RejectsDuplicateProperty(t *testing.T) {
	f := newAssignmentFixture()
	f.assignments.employeeEdges["emp-1/prop-1"] = true

	_, err := f.service.SetAgentAssignments(context.Background(), "emp-1", models.RoleEmployee, "agent-1", []string{"prop-1", "prop-1"})

	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	httperr := httperror.ToHTTPError(err)
	assert.Equal(t, "prop-1", httperr.Meta["property_id"])
	assert.False(t, f.notifier.called)
}

func TestSetAgentAssignments_RejectsForeignProperty(t *testing.T) {
	f := newAssignmentFixture()
	f.assignments.employeeEdges["emp-1/prop-1"] = true

	_, err := f.service.SetAgentAssignments(context.Background(), "emp-1", models.RoleEmployee, "agent-1", []string{"prop-1", "prop-foreign"})

	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
	httperr := httperror.ToHTTPError(err)
	assert.Equal(t, "prop-foreign", httperr.Meta["property_id"])
}

func TestSetAgentAssignments_NotifiesAgentOnChange(t *testing.T) {
	f := newAssignmentFixture()
	f.assignments.employeeEdges["emp-1/prop-1"] = true

	result, err := f.service.SetAgentAssignments(context.Background(), "emp-1", models.RoleEmployee, "agent-1", []string{"prop-1"})

	require.NoError(t, err)
	assert.Equal(t, []string{"prop-1"}, result.Added)
	assert.True(t, f.notifier.called)
	assert.Equal(t, "agent-1", f.notifier.agentID)
}

func TestSetAgentAssignments_EmptyReconcileSkipsNotification(t *testing.T) {
	f := newAssignmentFixture()

	result, err := f.service.SetAgentAssignments(context.Background(), "emp-1", models.RoleEmployee, "agent-1", nil)

	require.NoError(t, err)
	assert.Empty(t, result.Added)
	assert.False(t, f.notifier.called)
}
