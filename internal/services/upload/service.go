// Package upload tracks reserved storage objects through their lifecycle:
// created -> uploaded -> referenced. Ownership checks fail closed; an upload
// the service cannot account for is never referenced.
package upload

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/laurel/internal/repositories/upload"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/storage"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

// CreateInput describes a new upload reservation.
type CreateInput struct {
	OwnerID       string
	Purpose       models.UploadPurpose
	ContentType   string
	CorrelationID *string
}

type Service struct {
	uploads upload.UploadRepository
	backend storage.Backend
	logger  ectologger.Logger
}

// NewService creates a new upload service
func NewService(uploads upload.UploadRepository, backend storage.Backend, logger ectologger.Logger) *Service {
	return &Service{
		uploads: uploads,
		backend: backend,
		logger:  logger,
	}
}

// Create reserves an upload slot and returns a signed PUT URL for it.
func (s *Service) Create(ctx context.Context, input CreateInput) (models.UploadTicket, error) {
	ctx, span := tracing.StartSpan(ctx, "upload.Create")
	defer span.End()

	if !input.Purpose.Valid() {
		return models.UploadTicket{}, httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown upload purpose %q", input.Purpose))
	}
	if input.ContentType == "" {
		return models.UploadTicket{}, httperror.NewHTTPError(http.StatusBadRequest, "content_type is required")
	}

	now := time.Now().UTC()
	id := uuid.New().String()
	u := models.Upload{
		ID:            id,
		StorageKey:    fmt.Sprintf("%s/%s/%s", input.Purpose, input.OwnerID, id),
		OwnerID:       input.OwnerID,
		Purpose:       input.Purpose,
		CorrelationID: input.CorrelationID,
		Status:        models.UploadStatusCreated,
		ContentType:   input.ContentType,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	signedURL, expiresAt, err := s.backend.SignedPutURL(ctx, u.StorageKey, input.ContentType)
	if err != nil {
		return models.UploadTicket{}, httperror.NewHTTPError(http.StatusBadGateway, "failed to issue signed upload URL")
	}

	if err := s.uploads.Create(ctx, u); err != nil {
		return models.UploadTicket{}, err
	}

	return models.UploadTicket{
		Upload:    u,
		SignedURL: signedURL,
		ExpiresAt: expiresAt,
	}, nil
}

// Confirm verifies the object actually landed in storage and advances the
// reservation to uploaded. Confirming an already-uploaded reservation is a
// no-op success.
func (s *Service) Confirm(ctx context.Context, id, actorID string, sizeBytes int64) (models.Upload, error) {
	ctx, span := tracing.StartSpan(ctx, "upload.Confirm")
	defer span.End()

	u, err := s.uploads.GetByID(ctx, id)
	if err != nil {
		return models.Upload{}, err
	}
	if u.OwnerID != actorID {
		return models.Upload{}, httperror.NewHTTPError(http.StatusForbidden, "upload does not belong to the caller")
	}
	if u.Status == models.UploadStatusUploaded || u.Status == models.UploadStatusReferenced {
		return u, nil
	}

	exists, err := s.backend.ObjectExists(ctx, u.StorageKey)
	if err != nil {
		return models.Upload{}, httperror.NewHTTPError(http.StatusBadGateway, "failed to verify uploaded object")
	}
	if !exists {
		return models.Upload{}, httperror.NewHTTPError(http.StatusConflict, "no object found at the reserved storage key")
	}

	advanced, err := s.uploads.MarkUploaded(ctx, id, sizeBytes)
	if err != nil {
		return models.Upload{}, err
	}
	if !advanced {
		// Lost a confirmation race; the row is already past created.
		return s.uploads.GetByID(ctx, id)
	}

	return s.uploads.GetByID(ctx, id)
}

// Get returns the reservation, owner only.
func (s *Service) Get(ctx context.Context, id, actorID string, role models.Role) (models.Upload, error) {
	ctx, span := tracing.StartSpan(ctx, "upload.Get")
	defer span.End()

	u, err := s.uploads.GetByID(ctx, id)
	if err != nil {
		return models.Upload{}, err
	}
	if u.OwnerID != actorID && role != models.RoleAdmin {
		return models.Upload{}, httperror.NewHTTPError(http.StatusNotFound, "upload not found")
	}

	return u, nil
}

// ListMine returns the caller's reservations.
func (s *Service) ListMine(ctx context.Context, actorID string, limit, offset int) ([]models.Upload, error) {
	ctx, span := tracing.StartSpan(ctx, "upload.ListMine")
	defer span.End()

	return s.uploads.ListByOwner(ctx, actorID, limit, offset)
}
