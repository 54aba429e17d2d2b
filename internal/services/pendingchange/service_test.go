package pendingchange

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/laurel/internal/repositories/pendingchange"
	"github.com/Ramsey-B/laurel/pkg/audit"
	"github.com/Ramsey-B/laurel/pkg/cache"
	"github.com/Ramsey-B/laurel/pkg/events"
	"github.com/Ramsey-B/laurel/pkg/models"
)

type fakeChangeRepo struct {
	changes   map[string]models.PendingChange
	createErr error
	updateErr error
}

func newFakeChangeRepo() *fakeChangeRepo {
	return &fakeChangeRepo{changes: map[string]models.PendingChange{}}
}

func (r *fakeChangeRepo) Create(_ context.Context, change models.PendingChange) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.changes[change.ID] = change
	return nil
}

func (r *fakeChangeRepo) GetByID(_ context.Context, id string) (models.PendingChange, error) {
	change, ok := r.changes[id]
	if !ok {
		return models.PendingChange{}, httperror.NewHTTPError(http.StatusNotFound, "pending change not found")
	}
	return change, nil
}

func (r *fakeChangeRepo) Update(_ context.Context, change models.PendingChange) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.changes[change.ID] = change
	return nil
}

func (r *fakeChangeRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.changes[id]; !ok {
		return httperror.NewHTTPError(http.StatusNotFound, "pending change not found")
	}
	delete(r.changes, id)
	return nil
}

func (r *fakeChangeRepo) FindLivePending(_ context.Context, kind models.EntityKind, targetID *string, proposerID string) (models.PendingChange, bool, error) {
	for _, change := range r.changes {
		if change.EntityKind != kind || change.ProposerID != proposerID {
			continue
		}
		if change.Status != models.ChangeStatusPending || change.IsDraft {
			continue
		}
		if targetID == nil && change.TargetID == nil {
			return change, true, nil
		}
		if targetID != nil && change.TargetID != nil && *targetID == *change.TargetID {
			return change, true, nil
		}
	}
	return models.PendingChange{}, false, nil
}

func (r *fakeChangeRepo) List(_ context.Context, filter pendingchange.ListFilter) ([]models.PendingChange, error) {
	out := []models.PendingChange{}
	for _, change := range r.changes {
		if filter.ProposerID != "" && change.ProposerID != filter.ProposerID {
			continue
		}
		out = append(out, change)
	}
	return out, nil
}

func (r *fakeChangeRepo) CountByStatus(_ context.Context) (map[string]int, error) {
	counts := map[string]int{}
	for _, change := range r.changes {
		counts[string(change.Status)]++
	}
	return counts, nil
}

type fakeLedger struct {
	records map[string]models.IdempotencyRecord
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: map[string]models.IdempotencyRecord{}}
}

func (l *fakeLedger) Get(_ context.Context, key string) (models.IdempotencyRecord, bool, error) {
	record, ok := l.records[key]
	return record, ok, nil
}

func (l *fakeLedger) Put(_ context.Context, record models.IdempotencyRecord) (bool, error) {
	if _, ok := l.records[record.Key]; ok {
		return false, nil
	}
	l.records[record.Key] = record
	return true, nil
}

type fakePropertyStore struct {
	rows        map[string]models.Property
	applied     map[string]json.RawMessage
	restored    []string
	snapshotErr error
	applyErr    error
}

func newFakePropertyStore() *fakePropertyStore {
	return &fakePropertyStore{
		rows:    map[string]models.Property{},
		applied: map[string]json.RawMessage{},
	}
}

func (s *fakePropertyStore) Exists(_ context.Context, id string) (bool, error) {
	row, ok := s.rows[id]
	return ok && !row.IsDeleted, nil
}

func (s *fakePropertyStore) Snapshot(_ context.Context, id string) (models.CanonicalSnapshot, error) {
	if s.snapshotErr != nil {
		return models.CanonicalSnapshot{}, s.snapshotErr
	}
	row, ok := s.rows[id]
	if !ok {
		return models.CanonicalSnapshot{Existed: false}, nil
	}
	return models.CanonicalSnapshot{Existed: true, Data: row.Data, UpdatedAt: row.UpdatedAt}, nil
}

func (s *fakePropertyStore) Apply(_ context.Context, id string, payload json.RawMessage, _ string, _ models.Role) error {
	if s.applyErr != nil {
		return s.applyErr
	}
	s.applied[id] = payload
	row := s.rows[id]
	row.ID = id
	row.Data = payload
	s.rows[id] = row
	return nil
}

func (s *fakePropertyStore) Restore(_ context.Context, id string, snapshot models.CanonicalSnapshot) error {
	s.restored = append(s.restored, id)
	if !snapshot.Existed {
		delete(s.rows, id)
		return nil
	}
	row := s.rows[id]
	row.Data = snapshot.Data
	s.rows[id] = row
	return nil
}

func (s *fakePropertyStore) GetByID(_ context.Context, id string) (models.Property, error) {
	row, ok := s.rows[id]
	if !ok {
		return models.Property{}, httperror.NewHTTPError(http.StatusNotFound, "property not found")
	}
	return row, nil
}

func (s *fakePropertyStore) List(context.Context, int, int) ([]models.Property, error) {
	return nil, nil
}

func (s *fakePropertyStore) SoftDelete(context.Context, string, string) error { return nil }
func (s *fakePropertyStore) CountActive(context.Context) (int, error)         { return len(s.rows), nil }
func (s *fakePropertyStore) CountDeleted(context.Context) (int, error)        { return 0, nil }

type fakeBannerStore struct {
	rows map[string]models.Banner
}

func newFakeBannerStore() *fakeBannerStore {
	return &fakeBannerStore{rows: map[string]models.Banner{}}
}

func (s *fakeBannerStore) Exists(_ context.Context, id string) (bool, error) {
	row, ok := s.rows[id]
	return ok && !row.IsDeleted, nil
}

func (s *fakeBannerStore) Snapshot(_ context.Context, id string) (models.CanonicalSnapshot, error) {
	row, ok := s.rows[id]
	if !ok {
		return models.CanonicalSnapshot{Existed: false}, nil
	}
	return models.CanonicalSnapshot{Existed: true, Data: row.Data}, nil
}

func (s *fakeBannerStore) Apply(_ context.Context, id string, payload json.RawMessage, _ string, _ models.Role) error {
	s.rows[id] = models.Banner{ID: id, Data: payload}
	return nil
}

func (s *fakeBannerStore) Restore(_ context.Context, id string, snapshot models.CanonicalSnapshot) error {
	if !snapshot.Existed {
		delete(s.rows, id)
	}
	return nil
}

func (s *fakeBannerStore) GetByID(_ context.Context, id string) (models.Banner, error) {
	row, ok := s.rows[id]
	if !ok {
		return models.Banner{}, httperror.NewHTTPError(http.StatusNotFound, "banner not found")
	}
	return row, nil
}

func (s *fakeBannerStore) List(context.Context, int, int) ([]models.Banner, error) { return nil, nil }
func (s *fakeBannerStore) SoftDelete(context.Context, string, string) error        { return nil }
func (s *fakeBannerStore) CountActive(context.Context) (int, error)                { return len(s.rows), nil }
func (s *fakeBannerStore) CountDeleted(context.Context) (int, error)               { return 0, nil }

type fakeUploadRepo struct {
	uploads map[string]models.Upload
}

func newFakeUploadRepo() *fakeUploadRepo {
	return &fakeUploadRepo{uploads: map[string]models.Upload{}}
}

func (r *fakeUploadRepo) Create(_ context.Context, u models.Upload) error {
	r.uploads[u.ID] = u
	return nil
}

func (r *fakeUploadRepo) GetByID(_ context.Context, id string) (models.Upload, error) {
	u, ok := r.uploads[id]
	if !ok {
		return models.Upload{}, httperror.NewHTTPError(http.StatusNotFound, "upload not found")
	}
	return u, nil
}

func (r *fakeUploadRepo) MarkUploaded(_ context.Context, id string, sizeBytes int64) (bool, error) {
	u, ok := r.uploads[id]
	if !ok || u.Status != models.UploadStatusCreated {
		return false, nil
	}
	u.Status = models.UploadStatusUploaded
	u.SizeBytes = sizeBytes
	r.uploads[id] = u
	return true, nil
}

func (r *fakeUploadRepo) MarkReferenced(_ context.Context, id, changeID string) (bool, error) {
	u, ok := r.uploads[id]
	if !ok || u.Status != models.UploadStatusUploaded || u.ChangeID != nil {
		return false, nil
	}
	u.Status = models.UploadStatusReferenced
	u.ChangeID = &changeID
	r.uploads[id] = u
	return true, nil
}

func (r *fakeUploadRepo) ReleaseByChange(_ context.Context, changeID string) error {
	for id, u := range r.uploads {
		if u.ChangeID != nil && *u.ChangeID == changeID {
			u.ChangeID = nil
			u.Status = models.UploadStatusUploaded
			r.uploads[id] = u
		}
	}
	return nil
}

func (r *fakeUploadRepo) ListByOwner(context.Context, string, int, int) ([]models.Upload, error) {
	return nil, nil
}

type fakeAssignmentRepo struct {
	employeeEdges map[string]bool // "employeeID/propertyID"
	agentEdges    map[string]bool // "agentID/propertyID"
}

func newFakeAssignmentRepo() *fakeAssignmentRepo {
	return &fakeAssignmentRepo{employeeEdges: map[string]bool{}, agentEdges: map[string]bool{}}
}

func (r *fakeAssignmentRepo) ListEmployeeAssignments(context.Context, string) ([]models.EmployeePropertyAssignment, error) {
	return nil, nil
}

func (r *fakeAssignmentRepo) ReplaceEmployeeAssignments(context.Context, string, string, []string) (models.ReconcileResult, error) {
	return models.ReconcileResult{}, nil
}

func (r *fakeAssignmentRepo) ListAgentAssignments(context.Context, string) ([]models.AgentPropertyAssignment, error) {
	return nil, nil
}

func (r *fakeAssignmentRepo) ReplaceAgentAssignments(context.Context, string, string, []string) (models.ReconcileResult, error) {
	return models.ReconcileResult{}, nil
}

func (r *fakeAssignmentRepo) IsEmployeeAssigned(_ context.Context, employeeID, propertyID string) (bool, error) {
	return r.employeeEdges[employeeID+"/"+propertyID], nil
}

func (r *fakeAssignmentRepo) IsAgentAuthorized(_ context.Context, agentID, propertyID string) (bool, error) {
	return r.agentEdges[agentID+"/"+propertyID], nil
}

type serviceFixture struct {
	service     *Service
	changes     *fakeChangeRepo
	ledger      *fakeLedger
	properties  *fakePropertyStore
	banners     *fakeBannerStore
	uploads     *fakeUploadRepo
	assignments *fakeAssignmentRepo
}

func newServiceFixture() *serviceFixture {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	f := &serviceFixture{
		changes:     newFakeChangeRepo(),
		ledger:      newFakeLedger(),
		properties:  newFakePropertyStore(),
		banners:     newFakeBannerStore(),
		uploads:     newFakeUploadRepo(),
		assignments: newFakeAssignmentRepo(),
	}
	f.service = NewService(f.changes, f.ledger, f.properties, f.banners, f.uploads, f.assignments, events.NopNotifier{}, audit.NopSink{}, cache.NewMemoryCache(nil), logger)
	return f
}

func strptr(s string) *string { return &s }

func TestSubmit_RejectsUnknownPayloadFields(t *testing.T) {
	f := newServiceFixture()

	_, err := f.service.Submit(context.Background(), SubmitInput{
		EntityKind:   models.EntityKindProperty,
		ProposerID:   "emp-1",
		ProposerRole: models.RoleEmployee,
		Payload:      json.RawMessage(`{"title": "Villa", "nonsense": 1}`),
	})

	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	httperr := httperror.ToHTTPError(err)
	assert.Equal(t, []string{"nonsense"}, httperr.Meta["unknown_fields"])
	assert.Empty(t, f.changes.changes, "no row should be written for an invalid payload")
}

func TestSubmit_ReplaysIdempotencyKey(t *testing.T) {
	f := newServiceFixture()

	original := models.PendingChange{
		ID:           "change-1",
		EntityKind:   models.EntityKindProperty,
		ProposerID:   "emp-1",
		ProposerRole: models.RoleEmployee,
		Payload:      json.RawMessage(`{"title": "Villa"}`),
		Status:       models.ChangeStatusPending,
	}
	f.changes.changes[original.ID] = original
	f.ledger.records["key-1"] = models.IdempotencyRecord{Key: "key-1", ChangeID: original.ID}

	result, err := f.service.Submit(context.Background(), SubmitInput{
		EntityKind:     models.EntityKindProperty,
		ProposerID:     "emp-1",
		ProposerRole:   models.RoleEmployee,
		Payload:        json.RawMessage(`{"title": "Villa"}`),
		IdempotencyKey: strptr("key-1"),
	})

	require.NoError(t, err)
	assert.True(t, result.Idempotent)
	assert.Equal(t, original.ID, result.ChangeID)
	assert.Len(t, f.changes.changes, 1, "a replay must not create a second row")
}

func TestSubmit_RejectsSecondLivePending(t *testing.T) {
	f := newServiceFixture()
	targetID := "prop-1"
	f.properties.rows[targetID] = models.Property{ID: targetID}
	f.assignments.employeeEdges["emp-1/prop-1"] = true

	existing := models.PendingChange{
		ID:           "change-1",
		EntityKind:   models.EntityKindProperty,
		TargetID:     &targetID,
		ProposerID:   "emp-1",
		ProposerRole: models.RoleEmployee,
		Payload:      json.RawMessage(`{"title": "Lakeside Villa"}`),
		Status:       models.ChangeStatusPending,
	}
	f.changes.changes[existing.ID] = existing

	_, err := f.service.Submit(context.Background(), SubmitInput{
		EntityKind:   models.EntityKindProperty,
		TargetID:     &targetID,
		ProposerID:   "emp-1",
		ProposerRole: models.RoleEmployee,
		Payload:      json.RawMessage(`{"price": 100}`),
	})

	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
	assert.Contains(t, err.Error(), "Lakeside Villa")
	httperr := httperror.ToHTTPError(err)
	assert.Equal(t, existing.ID, httperr.Meta["conflicting_change_id"])
	assert.Len(t, f.changes.changes, 1)
}

func TestSubmit_DraftSkipsLivePendingCheck(t *testing.T) {
	f := newServiceFixture()
	targetID := "prop-1"
	f.properties.rows[targetID] = models.Property{ID: targetID}
	f.assignments.employeeEdges["emp-1/prop-1"] = true

	existing := models.PendingChange{
		ID:           "change-1",
		EntityKind:   models.EntityKindProperty,
		TargetID:     &targetID,
		ProposerID:   "emp-1",
		ProposerRole: models.RoleEmployee,
		Payload:      json.RawMessage(`{"title": "Lakeside Villa"}`),
		Status:       models.ChangeStatusPending,
	}
	f.changes.changes[existing.ID] = existing

	result, err := f.service.Submit(context.Background(), SubmitInput{
		EntityKind:   models.EntityKindProperty,
		TargetID:     &targetID,
		ProposerID:   "emp-1",
		ProposerRole: models.RoleEmployee,
		Payload:      json.RawMessage(`{"price": 100}`),
		AsDraft:      true,
	})

	require.NoError(t, err)
	assert.Equal(t, models.ChangeStatusDraft, result.Status)
	assert.Len(t, f.changes.changes, 2)
}

func TestSubmit_ForeignUploadFailsBeforeAnyWrite(t *testing.T) {
	f := newServiceFixture()
	f.uploads.uploads["up-1"] = models.Upload{
		ID:      "up-1",
		OwnerID: "someone-else",
		Status:  models.UploadStatusUploaded,
	}

	_, err := f.service.Submit(context.Background(), SubmitInput{
		EntityKind:   models.EntityKindProperty,
		ProposerID:   "emp-1",
		ProposerRole: models.RoleEmployee,
		Payload:      json.RawMessage(`{"title": "Villa"}`),
		UploadIDs:    []string{"up-1"},
	})

	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
	httperr := httperror.ToHTTPError(err)
	assert.Equal(t, "up-1", httperr.Meta["upload_id"])
	assert.Empty(t, f.changes.changes, "the change row must not exist after a failed asset check")
}

func TestSubmit_ReferencesUploads(t *testing.T) {
	f := newServiceFixture()
	f.uploads.uploads["up-1"] = models.Upload{
		ID:      "up-1",
		OwnerID: "emp-1",
		Status:  models.UploadStatusUploaded,
	}

	result, err := f.service.Submit(context.Background(), SubmitInput{
		EntityKind:   models.EntityKindProperty,
		ProposerID:   "emp-1",
		ProposerRole: models.RoleEmployee,
		Payload:      json.RawMessage(`{"title": "Villa"}`),
		UploadIDs:    []string{"up-1"},
	})

	require.NoError(t, err)
	u := f.uploads.uploads["up-1"]
	assert.Equal(t, models.UploadStatusReferenced, u.Status)
	require.NotNil(t, u.ChangeID)
	assert.Equal(t, result.ChangeID, *u.ChangeID)
}

func TestSubmit_CustomerCannotPropose(t *testing.T) {
	f := newServiceFixture()

	_, err := f.service.Submit(context.Background(), SubmitInput{
		EntityKind:   models.EntityKindProperty,
		ProposerID:   "cust-1",
		ProposerRole: models.RoleCustomer,
		Payload:      json.RawMessage(`{"title": "Villa"}`),
	})

	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
}

func TestApprove_AppliesPayloadToCatalog(t *testing.T) {
	f := newServiceFixture()
	targetID := "prop-1"
	f.properties.rows[targetID] = models.Property{ID: targetID, Data: json.RawMessage(`{"title": "Old"}`)}
	f.changes.changes["change-1"] = models.PendingChange{
		ID:           "change-1",
		EntityKind:   models.EntityKindProperty,
		TargetID:     &targetID,
		ProposerID:   "emp-1",
		ProposerRole: models.RoleEmployee,
		Payload:      json.RawMessage(`{"title": "New"}`),
		Status:       models.ChangeStatusPending,
	}

	change, err := f.service.Approve(context.Background(), "change-1", "admin-1", models.RoleAdmin, nil)

	require.NoError(t, err)
	assert.Equal(t, models.ChangeStatusApproved, change.Status)
	assert.JSONEq(t, `{"title": "New"}`, string(f.properties.applied[targetID]))
	require.NotNil(t, change.ReviewerID)
	assert.Equal(t, "admin-1", *change.ReviewerID)
}

func TestApprove_MintsTargetForCreationProposal(t *testing.T) {
	f := newServiceFixture()
	f.changes.changes["change-1"] = models.PendingChange{
		ID:           "change-1",
		EntityKind:   models.EntityKindProperty,
		ProposerID:   "emp-1",
		ProposerRole: models.RoleEmployee,
		Payload:      json.RawMessage(`{"title": "Brand New"}`),
		Status:       models.ChangeStatusPending,
	}

	change, err := f.service.Approve(context.Background(), "change-1", "admin-1", models.RoleAdmin, nil)

	require.NoError(t, err)
	require.NotNil(t, change.TargetID)
	assert.Contains(t, f.properties.applied, *change.TargetID)
}

func TestApprove_RestoresCatalogWhenFinalizeFails(t *testing.T) {
	f := newServiceFixture()
	targetID := "prop-1"
	f.properties.rows[targetID] = models.Property{ID: targetID, Data: json.RawMessage(`{"title": "Old"}`)}
	f.changes.changes["change-1"] = models.PendingChange{
		ID:           "change-1",
		EntityKind:   models.EntityKindProperty,
		TargetID:     &targetID,
		ProposerID:   "emp-1",
		ProposerRole: models.RoleEmployee,
		Payload:      json.RawMessage(`{"title": "New"}`),
		Status:       models.ChangeStatusPending,
	}
	f.changes.updateErr = httperror.NewHTTPError(http.StatusInternalServerError, "db went away")

	_, err := f.service.Approve(context.Background(), "change-1", "admin-1", models.RoleAdmin, nil)

	require.Error(t, err)
	assert.Equal(t, []string{targetID}, f.properties.restored)
	assert.JSONEq(t, `{"title": "Old"}`, string(f.properties.rows[targetID].Data))
	assert.Equal(t, models.ChangeStatusPending, f.changes.changes["change-1"].Status)
}

func TestReject_RequiresReason(t *testing.T) {
	f := newServiceFixture()
	f.changes.changes["change-1"] = models.PendingChange{
		ID:     "change-1",
		Status: models.ChangeStatusPending,
	}

	_, err := f.service.Reject(context.Background(), "change-1", "admin-1", models.RoleAdmin, "")

	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestReject_ReleasesUploads(t *testing.T) {
	f := newServiceFixture()
	changeID := "change-1"
	f.changes.changes[changeID] = models.PendingChange{
		ID:         changeID,
		EntityKind: models.EntityKindProperty,
		Status:     models.ChangeStatusPending,
	}
	f.uploads.uploads["up-1"] = models.Upload{
		ID:       "up-1",
		OwnerID:  "emp-1",
		Status:   models.UploadStatusReferenced,
		ChangeID: &changeID,
	}

	_, err := f.service.Reject(context.Background(), changeID, "admin-1", models.RoleAdmin, "blurry photos")

	require.NoError(t, err)
	u := f.uploads.uploads["up-1"]
	assert.Equal(t, models.UploadStatusUploaded, u.Status)
	assert.Nil(t, u.ChangeID)
}

func TestWithdraw_ReturnsChangeToDraft(t *testing.T) {
	f := newServiceFixture()
	f.changes.changes["change-1"] = models.PendingChange{
		ID:         "change-1",
		ProposerID: "emp-1",
		Status:     models.ChangeStatusPending,
	}

	change, err := f.service.Withdraw(context.Background(), "change-1", "emp-1", true)

	require.NoError(t, err)
	assert.Equal(t, models.ChangeStatusDraft, change.Status)
	assert.True(t, change.IsDraft)
}

func TestWithdraw_DeletesChangeAndReleasesUploads(t *testing.T) {
	f := newServiceFixture()
	changeID := "change-1"
	f.changes.changes[changeID] = models.PendingChange{
		ID:         changeID,
		EntityKind: models.EntityKindProperty,
		ProposerID: "emp-1",
		Status:     models.ChangeStatusPending,
	}
	f.uploads.uploads["up-1"] = models.Upload{
		ID:       "up-1",
		OwnerID:  "emp-1",
		Status:   models.UploadStatusReferenced,
		ChangeID: &changeID,
	}

	_, err := f.service.Withdraw(context.Background(), changeID, "emp-1", false)

	require.NoError(t, err)
	assert.NotContains(t, f.changes.changes, changeID, "a withdrawn change must leave no row behind")
	u := f.uploads.uploads["up-1"]
	assert.Equal(t, models.UploadStatusUploaded, u.Status)
	assert.Nil(t, u.ChangeID)
}

func TestDiscard_DeletesDraft(t *testing.T) {
	f := newServiceFixture()
	changeID := "change-1"
	f.changes.changes[changeID] = models.PendingChange{
		ID:         changeID,
		EntityKind: models.EntityKindProperty,
		ProposerID: "emp-1",
		Status:     models.ChangeStatusDraft,
		IsDraft:    true,
	}
	f.uploads.uploads["up-1"] = models.Upload{
		ID:       "up-1",
		OwnerID:  "emp-1",
		Status:   models.UploadStatusReferenced,
		ChangeID: &changeID,
	}

	err := f.service.Discard(context.Background(), changeID, "emp-1")

	require.NoError(t, err)
	assert.NotContains(t, f.changes.changes, changeID)
	assert.Equal(t, models.UploadStatusUploaded, f.uploads.uploads["up-1"].Status)
}

func TestDiscard_RejectsNonDraft(t *testing.T) {
	f := newServiceFixture()
	f.changes.changes["change-1"] = models.PendingChange{
		ID:         "change-1",
		ProposerID: "emp-1",
		Status:     models.ChangeStatusPending,
	}

	err := f.service.Discard(context.Background(), "change-1", "emp-1")

	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
	assert.Contains(t, f.changes.changes, "change-1")
}

func TestSubmit_RejectsMissingTarget(t *testing.T) {
	f := newServiceFixture()
	targetID := "prop-gone"
	f.assignments.employeeEdges["emp-1/prop-gone"] = true

	_, err := f.service.Submit(context.Background(), SubmitInput{
		EntityKind:   models.EntityKindProperty,
		TargetID:     &targetID,
		ProposerID:   "emp-1",
		ProposerRole: models.RoleEmployee,
		Payload:      json.RawMessage(`{"title": "Villa"}`),
	})

	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
	httperr := httperror.ToHTTPError(err)
	assert.Equal(t, targetID, httperr.Meta["target_id"])
	assert.Empty(t, f.changes.changes)
}

func TestSubmit_RejectsSoftDeletedBannerTarget(t *testing.T) {
	f := newServiceFixture()
	targetID := "ban-1"
	f.banners.rows[targetID] = models.Banner{ID: targetID, IsDeleted: true}

	_, err := f.service.Submit(context.Background(), SubmitInput{
		EntityKind:   models.EntityKindBanner,
		TargetID:     &targetID,
		ProposerID:   "emp-1",
		ProposerRole: models.RoleEmployee,
		Payload:      json.RawMessage(`{"title": "Sale"}`),
	})

	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
	assert.Empty(t, f.changes.changes)
}

func TestApprove_AppliesReviewerMergedPayload(t *testing.T) {
	f := newServiceFixture()
	targetID := "prop-1"
	f.properties.rows[targetID] = models.Property{ID: targetID, Data: json.RawMessage(`{"title": "Old"}`)}
	f.changes.changes["change-1"] = models.PendingChange{
		ID:           "change-1",
		EntityKind:   models.EntityKindProperty,
		TargetID:     &targetID,
		ProposerID:   "emp-1",
		ProposerRole: models.RoleEmployee,
		Payload:      json.RawMessage(`{"title": "Proposed"}`),
		Status:       models.ChangeStatusPending,
	}

	merged := json.RawMessage(`{"title": "Reviewer Edit"}`)
	change, err := f.service.Approve(context.Background(), "change-1", "admin-1", models.RoleAdmin, merged)

	require.NoError(t, err)
	assert.Equal(t, models.ChangeStatusApproved, change.Status)
	assert.JSONEq(t, `{"title": "Reviewer Edit"}`, string(f.properties.applied[targetID]))
}

func TestApprove_RejectsInvalidMergedPayload(t *testing.T) {
	f := newServiceFixture()
	targetID := "prop-1"
	f.properties.rows[targetID] = models.Property{ID: targetID}
	f.changes.changes["change-1"] = models.PendingChange{
		ID:           "change-1",
		EntityKind:   models.EntityKindProperty,
		TargetID:     &targetID,
		ProposerID:   "emp-1",
		ProposerRole: models.RoleEmployee,
		Payload:      json.RawMessage(`{"title": "Proposed"}`),
		Status:       models.ChangeStatusPending,
	}

	merged := json.RawMessage(`{"title": "Edit", "nonsense": 1}`)
	_, err := f.service.Approve(context.Background(), "change-1", "admin-1", models.RoleAdmin, merged)

	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	assert.Empty(t, f.properties.applied, "an invalid merged payload must not reach the catalog")
	assert.Equal(t, models.ChangeStatusPending, f.changes.changes["change-1"].Status)
}

func TestGetChange_HidesForeignChangesFromProposers(t *testing.T) {
	f := newServiceFixture()
	f.changes.changes["change-1"] = models.PendingChange{
		ID:         "change-1",
		ProposerID: "emp-1",
		Status:     models.ChangeStatusPending,
	}

	_, err := f.service.GetChange(context.Background(), "change-1", "emp-2", models.RoleEmployee)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))

	change, err := f.service.GetChange(context.Background(), "change-1", "admin-1", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "change-1", change.ID)
}
