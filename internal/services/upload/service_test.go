package upload

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/laurel/pkg/models"
)

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
	if !ok || u.Status != models.UploadStatusUploaded {
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

func (r *fakeUploadRepo) ListByOwner(_ context.Context, ownerID string, _, _ int) ([]models.Upload, error) {
	var out []models.Upload
	for _, u := range r.uploads {
		if u.OwnerID == ownerID {
			out = append(out, u)
		}
	}
	return out, nil
}

type fakeBackend struct {
	signErr     error
	exists      bool
	existsErr   error
	existsCalls int
}

func (b *fakeBackend) SignedPutURL(_ context.Context, key, _ string) (string, time.Time, error) {
	if b.signErr != nil {
		return "", time.Time{}, b.signErr
	}
	return "https://storage.test/" + key, time.Now().UTC().Add(15 * time.Minute), nil
}

func (b *fakeBackend) ObjectExists(context.Context, string) (bool, error) {
	b.existsCalls++
	return b.exists, b.existsErr
}

type uploadFixture struct {
	service *Service
	repo    *fakeUploadRepo
	backend *fakeBackend
}

func newUploadFixture() *uploadFixture {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	f := &uploadFixture{
		repo:    newFakeUploadRepo(),
		backend: &fakeBackend{exists: true},
	}
	f.service = NewService(f.repo, f.backend, logger)
	return f
}

func (f *uploadFixture) seed(id, ownerID string, status models.UploadStatus) models.Upload {
	u := models.Upload{
		ID:         id,
		StorageKey: "property_image/" + ownerID + "/" + id,
		OwnerID:    ownerID,
		Purpose:    models.UploadPurposePropertyImage,
		Status:     status,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	f.repo.uploads[id] = u
	return u
}

func TestCreate_ReservesSlotWithSignedURL(t *testing.T) {
	f := newUploadFixture()

	ticket, err := f.service.Create(context.Background(), CreateInput{
		OwnerID:     "agent-1",
		Purpose:     models.UploadPurposePropertyImage,
		ContentType: "image/jpeg",
	})

	require.NoError(t, err)
	assert.Equal(t, models.UploadStatusCreated, ticket.Upload.Status)
	assert.Equal(t, "property_image/agent-1/"+ticket.Upload.ID, ticket.Upload.StorageKey)
	assert.True(t, strings.HasSuffix(ticket.SignedURL, ticket.Upload.StorageKey))
	assert.Contains(t, f.repo.uploads, ticket.Upload.ID)
}

func TestCreate_RejectsUnknownPurpose(t *testing.T) {
	f := newUploadFixture()

	_, err := f.service.Create(context.Background(), CreateInput{
		OwnerID:     "agent-1",
		Purpose:     models.UploadPurpose("tax_return"),
		ContentType: "application/pdf",
	})

	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestCreate_RequiresContentType(t *testing.T) {
	f := newUploadFixture()

	_, err := f.service.Create(context.Background(), CreateInput{
		OwnerID: "agent-1",
		Purpose: models.UploadPurposePropertyImage,
	})

	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestCreate_SignerFailureLeavesNoRow(t *testing.T) {
	f := newUploadFixture()
	f.backend.signErr = errors.New("minio unreachable")

	_, err := f.service.Create(context.Background(), CreateInput{
		OwnerID:     "agent-1",
		Purpose:     models.UploadPurposePropertyImage,
		ContentType: "image/jpeg",
	})

	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, httperror.GetStatusCode(err))
	assert.Empty(t, f.repo.uploads)
}

func TestConfirm_AdvancesToUploaded(t *testing.T) {
	f := newUploadFixture()
	f.seed("up-1", "agent-1", models.UploadStatusCreated)

	u, err := f.service.Confirm(context.Background(), "up-1", "agent-1", 2048)

	require.NoError(t, err)
	assert.Equal(t, models.UploadStatusUploaded, u.Status)
	assert.Equal(t, int64(2048), u.SizeBytes)
}

func TestConfirm_MissingObjectConflicts(t *testing.T) {
	f := newUploadFixture()
	f.backend.exists = false
	f.seed("up-1", "agent-1", models.UploadStatusCreated)

	_, err := f.service.Confirm(context.Background(), "up-1", "agent-1", 2048)

	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
	assert.Equal(t, models.UploadStatusCreated, f.repo.uploads["up-1"].Status)
}

func TestConfirm_AlreadyUploadedIsNoOp(t *testing.T) {
	f := newUploadFixture()
	f.seed("up-1", "agent-1", models.UploadStatusUploaded)

	u, err := f.service.Confirm(context.Background(), "up-1", "agent-1", 2048)

	require.NoError(t, err)
	assert.Equal(t, models.UploadStatusUploaded, u.Status)
	assert.Zero(t, f.backend.existsCalls)
}

func TestConfirm_ForeignOwnerForbidden(t *testing.T) {
	f := newUploadFixture()
	f.seed("up-1", "agent-1", models.UploadStatusCreated)

	_, err := f.service.Confirm(context.Background(), "up-1", "agent-2", 2048)

	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
}

func TestGet_OwnerAndAdminOnly(t *testing.T) {
	f := newUploadFixture()
	f.seed("up-1", "agent-1", models.UploadStatusUploaded)

	_, err := f.service.Get(context.Background(), "up-1", "agent-1", models.RoleAgent)
	require.NoError(t, err)

	_, err = f.service.Get(context.Background(), "up-1", "admin-1", models.RoleAdmin)
	require.NoError(t, err)

	_, err = f.service.Get(context.Background(), "up-1", "agent-2", models.RoleAgent)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}
