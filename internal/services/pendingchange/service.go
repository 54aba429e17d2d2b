// Package pendingchange implements the moderated mutation protocol for the
// published catalogs. Nothing here writes canonical rows except Approve.
package pendingchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/laurel/internal/repositories/assignment"
	"github.com/Ramsey-B/laurel/internal/repositories/catalog"
	"github.com/Ramsey-B/laurel/internal/repositories/idempotency"
	"github.com/Ramsey-B/laurel/internal/repositories/pendingchange"
	"github.com/Ramsey-B/laurel/internal/repositories/upload"
	"github.com/Ramsey-B/laurel/pkg/audit"
	"github.com/Ramsey-B/laurel/pkg/cache"
	"github.com/Ramsey-B/laurel/pkg/events"
	"github.com/Ramsey-B/laurel/pkg/metrics"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

// DashboardCacheKey is invalidated whenever an operation changes a rollup
// input, so the dashboard never serves counts older than its TTL after a
// write lands.
const DashboardCacheKey = "laurel:dashboard:stats"

// SubmitInput carries everything a proposer sends with a new change.
type SubmitInput struct {
	EntityKind     models.EntityKind
	TargetID       *string
	ProposerID     string
	ProposerRole   models.Role
	Payload        json.RawMessage
	DiffSummary    *string
	IdempotencyKey *string
	AsDraft        bool
	UploadIDs      []string
}

type Service struct {
	changes     pendingchange.PendingChangeRepository
	ledger      idempotency.IdempotencyRepository
	stores      map[models.EntityKind]catalog.Store
	uploads     upload.UploadRepository
	assignments assignment.AssignmentRepository
	notifier    events.Notifier
	audit       audit.Sink
	cache       cache.Cache
	logger      ectologger.Logger
}

// NewService creates a new pending change service
func NewService(
	changes pendingchange.PendingChangeRepository,
	ledger idempotency.IdempotencyRepository,
	properties catalog.PropertyRepository,
	banners catalog.BannerRepository,
	uploads upload.UploadRepository,
	assignments assignment.AssignmentRepository,
	notifier events.Notifier,
	auditSink audit.Sink,
	cacheClient cache.Cache,
	logger ectologger.Logger,
) *Service {
	return &Service{
		changes: changes,
		ledger:  ledger,
		stores: map[models.EntityKind]catalog.Store{
			models.EntityKindProperty: properties,
			models.EntityKindBanner:   banners,
		},
		uploads:     uploads,
		assignments: assignments,
		notifier:    notifier,
		audit:       auditSink,
		cache:       cacheClient,
		logger:      logger,
	}
}

// Submit runs the full submission protocol: idempotency replay, payload
// allow-list, authorization, asset ownership, then the one-live-pending
// check before any row is written.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (models.ChangeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "pendingchange.Submit")
	defer span.End()

	if !input.EntityKind.Valid() {
		return models.ChangeResult{}, httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown entity kind %q", input.EntityKind))
	}
	if !input.ProposerRole.CanPropose() {
		metrics.ChangeSubmissionsTotal.WithLabelValues(string(input.EntityKind), "forbidden").Inc()
		return models.ChangeResult{}, httperror.NewHTTPError(http.StatusForbidden, "role is not allowed to propose changes")
	}

	if input.IdempotencyKey != nil {
		record, found, err := s.ledger.Get(ctx, *input.IdempotencyKey)
		if err != nil {
			return models.ChangeResult{}, err
		}
		if found {
			return s.replay(ctx, record)
		}
	}

	if err := validatePayload(input.EntityKind, input.Payload); err != nil {
		metrics.ChangeSubmissionsTotal.WithLabelValues(string(input.EntityKind), "invalid").Inc()
		return models.ChangeResult{}, err
	}

	if err := s.authorizeProposal(ctx, input); err != nil {
		metrics.ChangeSubmissionsTotal.WithLabelValues(string(input.EntityKind), "forbidden").Inc()
		return models.ChangeResult{}, err
	}

	// Asset ownership is validated before any row exists. A single bad
	// upload id fails the whole submission.
	if err := s.validateUploads(ctx, input.ProposerID, input.UploadIDs); err != nil {
		metrics.ChangeSubmissionsTotal.WithLabelValues(string(input.EntityKind), "invalid").Inc()
		return models.ChangeResult{}, err
	}

	if !input.AsDraft {
		if err := s.checkLivePending(ctx, input.EntityKind, input.TargetID, input.ProposerID); err != nil {
			metrics.ChangeSubmissionsTotal.WithLabelValues(string(input.EntityKind), "conflict").Inc()
			return models.ChangeResult{}, err
		}
	}

	now := time.Now().UTC()
	status := models.ChangeStatusPending
	if input.AsDraft {
		status = models.ChangeStatusDraft
	}
	change := models.PendingChange{
		ID:           uuid.New().String(),
		EntityKind:   input.EntityKind,
		TargetID:     input.TargetID,
		ProposerID:   input.ProposerID,
		ProposerRole: input.ProposerRole,
		Payload:      input.Payload,
		DiffSummary:  input.DiffSummary,
		Status:       status,
		IsDraft:      input.AsDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.changes.Create(ctx, change); err != nil {
		// The partial unique index is the backstop for concurrent submits
		// that both passed the live query.
		if err == pendingchange.ErrDuplicateLivePending {
			metrics.ChangeSubmissionsTotal.WithLabelValues(string(input.EntityKind), "conflict").Inc()
			if conflictErr := s.checkLivePending(ctx, input.EntityKind, input.TargetID, input.ProposerID); conflictErr != nil {
				return models.ChangeResult{}, conflictErr
			}
			return models.ChangeResult{}, err
		}
		return models.ChangeResult{}, err
	}

	for _, uploadID := range input.UploadIDs {
		referenced, err := s.uploads.MarkReferenced(ctx, uploadID, change.ID)
		if err != nil {
			return models.ChangeResult{}, err
		}
		if !referenced {
			return models.ChangeResult{}, httperror.NewHTTPError(http.StatusConflict, "upload is already referenced by another change").
				AddMetaValue("upload_id", uploadID)
		}
	}

	if input.IdempotencyKey != nil {
		claimed, err := s.ledger.Put(ctx, models.IdempotencyRecord{
			Key:       *input.IdempotencyKey,
			ChangeID:  change.ID,
			CreatedAt: now,
		})
		if err != nil {
			return models.ChangeResult{}, err
		}
		if !claimed {
			// A concurrent request with the same key won; serve its outcome.
			record, found, err := s.ledger.Get(ctx, *input.IdempotencyKey)
			if err != nil {
				return models.ChangeResult{}, err
			}
			if found && record.ChangeID != change.ID {
				return s.replay(ctx, record)
			}
		}
	}

	s.audit.Append(ctx, input.ProposerID, "change.submitted", string(input.EntityKind), change.ID, map[string]any{
		"status":   change.Status,
		"is_draft": change.IsDraft,
	})
	if !input.AsDraft {
		s.notifier.ChangeSubmitted(ctx, &change)
	}
	s.invalidateDashboard(ctx)
	metrics.ChangeSubmissionsTotal.WithLabelValues(string(input.EntityKind), "accepted").Inc()

	return models.ChangeResult{
		ChangeID:  change.ID,
		Status:    change.Status,
		CreatedAt: change.CreatedAt,
	}, nil
}

// GetChange returns a change visible to the actor: proposers see their own,
// reviewers see everything.
func (s *Service) GetChange(ctx context.Context, id, actorID string, role models.Role) (models.PendingChange, error) {
	ctx, span := tracing.StartSpan(ctx, "pendingchange.GetChange")
	defer span.End()

	change, err := s.changes.GetByID(ctx, id)
	if err != nil {
		return models.PendingChange{}, err
	}
	if !role.CanReview() && change.ProposerID != actorID {
		return models.PendingChange{}, httperror.NewHTTPError(http.StatusNotFound, "pending change not found")
	}

	return change, nil
}

// List returns changes scoped to the actor's visibility.
func (s *Service) List(ctx context.Context, filter pendingchange.ListFilter, actorID string, role models.Role) ([]models.PendingChange, error) {
	ctx, span := tracing.StartSpan(ctx, "pendingchange.List")
	defer span.End()

	if !role.CanReview() {
		filter.ProposerID = actorID
	}

	return s.changes.List(ctx, filter)
}

// UpdatePayload replaces the payload of a change the proposer can still edit.
func (s *Service) UpdatePayload(ctx context.Context, id, actorID string, payload json.RawMessage, diffSummary *string) (models.PendingChange, error) {
	ctx, span := tracing.StartSpan(ctx, "pendingchange.UpdatePayload")
	defer span.End()

	change, err := s.changes.GetByID(ctx, id)
	if err != nil {
		return models.PendingChange{}, err
	}
	if change.ProposerID != actorID {
		return models.PendingChange{}, httperror.NewHTTPError(http.StatusForbidden, "only the proposer may edit a change")
	}
	if !change.Status.Editable() {
		return models.PendingChange{}, httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("change in status %q cannot be edited", change.Status))
	}
	if err := validatePayload(change.EntityKind, payload); err != nil {
		return models.PendingChange{}, err
	}

	change.Payload = payload
	change.DiffSummary = diffSummary
	if err := s.changes.Update(ctx, change); err != nil {
		return models.PendingChange{}, err
	}

	s.audit.Append(ctx, actorID, "change.updated", string(change.EntityKind), change.ID, nil)
	return change, nil
}

// SubmitDraft promotes a draft or revised change into the review queue.
func (s *Service) SubmitDraft(ctx context.Context, id, actorID string) (models.PendingChange, error) {
	ctx, span := tracing.StartSpan(ctx, "pendingchange.SubmitDraft")
	defer span.End()

	change, err := s.changes.GetByID(ctx, id)
	if err != nil {
		return models.PendingChange{}, err
	}
	if change.ProposerID != actorID {
		return models.PendingChange{}, httperror.NewHTTPError(http.StatusForbidden, "only the proposer may submit a change")
	}
	if change.Status != models.ChangeStatusDraft && change.Status != models.ChangeStatusNeedsRevision {
		return models.PendingChange{}, httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("change in status %q cannot be submitted", change.Status))
	}

	if err := s.checkLivePending(ctx, change.EntityKind, change.TargetID, change.ProposerID); err != nil {
		return models.PendingChange{}, err
	}

	change.Status = models.ChangeStatusPending
	change.IsDraft = false
	if err := s.changes.Update(ctx, change); err != nil {
		if err == pendingchange.ErrDuplicateLivePending {
			if conflictErr := s.checkLivePending(ctx, change.EntityKind, change.TargetID, change.ProposerID); conflictErr != nil {
				return models.PendingChange{}, conflictErr
			}
		}
		return models.PendingChange{}, err
	}

	s.audit.Append(ctx, actorID, "change.submitted", string(change.EntityKind), change.ID, nil)
	s.notifier.ChangeSubmitted(ctx, &change)
	s.invalidateDashboard(ctx)
	return change, nil
}

// Withdraw takes a draft or pending change out of play. With moveToDraft the
// change returns to draft and keeps its payload; otherwise the row is deleted
// outright and its uploads are released.
func (s *Service) Withdraw(ctx context.Context, id, actorID string, moveToDraft bool) (models.PendingChange, error) {
	ctx, span := tracing.StartSpan(ctx, "pendingchange.Withdraw")
	defer span.End()

	change, err := s.changes.GetByID(ctx, id)
	if err != nil {
		return models.PendingChange{}, err
	}
	if change.ProposerID != actorID {
		return models.PendingChange{}, httperror.NewHTTPError(http.StatusForbidden, "only the proposer may withdraw a change")
	}
	if change.Status != models.ChangeStatusPending && change.Status != models.ChangeStatusDraft {
		return models.PendingChange{}, httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("change in status %q cannot be withdrawn", change.Status))
	}

	if !moveToDraft {
		if err := s.changes.Delete(ctx, id); err != nil {
			return models.PendingChange{}, err
		}

		if err := s.uploads.ReleaseByChange(ctx, change.ID); err != nil {
			s.logger.WithContext(ctx).WithError(err).WithField("change_id", change.ID).Warn("Failed to release uploads for withdrawn change")
		}

		s.audit.Append(ctx, actorID, "change.withdrawn", string(change.EntityKind), change.ID, map[string]any{
			"deleted": true,
		})
		s.invalidateDashboard(ctx)
		return change, nil
	}

	change.Status = models.ChangeStatusDraft
	change.IsDraft = true
	if err := s.changes.Update(ctx, change); err != nil {
		return models.PendingChange{}, err
	}

	s.audit.Append(ctx, actorID, "change.withdrawn", string(change.EntityKind), change.ID, nil)
	s.invalidateDashboard(ctx)
	return change, nil
}

// Discard deletes a draft outright and releases any uploads it held. Only
// drafts can be discarded; live changes go through Withdraw.
func (s *Service) Discard(ctx context.Context, id, actorID string) error {
	ctx, span := tracing.StartSpan(ctx, "pendingchange.Discard")
	defer span.End()

	change, err := s.changes.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if change.ProposerID != actorID {
		return httperror.NewHTTPError(http.StatusForbidden, "only the proposer may discard a change")
	}
	if change.Status != models.ChangeStatusDraft {
		return httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("change in status %q cannot be discarded", change.Status))
	}

	if err := s.changes.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.uploads.ReleaseByChange(ctx, change.ID); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("change_id", change.ID).Warn("Failed to release uploads for discarded change")
	}

	s.audit.Append(ctx, actorID, "change.discarded", string(change.EntityKind), change.ID, nil)
	return nil
}

// Approve applies the change to the canonical catalog. A non-nil
// mergedPayload lets the reviewer apply an edited version of the proposal
// instead of the payload as submitted; it passes the same allow-list the
// proposal did. The write sequence is snapshot, apply, finalize; a failed
// finalize restores the snapshot so the catalog never reflects a change
// whose row still says pending.
func (s *Service) Approve(ctx context.Context, id, reviewerID string, role models.Role, mergedPayload json.RawMessage) (models.PendingChange, error) {
	ctx, span := tracing.StartSpan(ctx, "pendingchange.Approve")
	defer span.End()

	if !role.CanReview() {
		return models.PendingChange{}, httperror.NewHTTPError(http.StatusForbidden, "role is not allowed to review changes")
	}

	change, err := s.changes.GetByID(ctx, id)
	if err != nil {
		return models.PendingChange{}, err
	}
	if !change.Status.Reviewable() {
		return models.PendingChange{}, httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("change in status %q cannot be approved", change.Status))
	}

	applied := change.Payload
	if mergedPayload != nil {
		if err := validatePayload(change.EntityKind, mergedPayload); err != nil {
			return models.PendingChange{}, err
		}
		applied = mergedPayload
	}

	store, ok := s.stores[change.EntityKind]
	if !ok {
		return models.PendingChange{}, httperror.NewHTTPError(http.StatusInternalServerError, "no canonical store for entity kind")
	}

	targetID := ""
	if change.TargetID != nil {
		targetID = *change.TargetID
	} else {
		// Creation proposal: the entity id is minted at approval time.
		targetID = uuid.New().String()
		change.TargetID = &targetID
	}

	snapshot, err := store.Snapshot(ctx, targetID)
	if err != nil {
		return models.PendingChange{}, err
	}

	if err := store.Apply(ctx, targetID, applied, change.ProposerID, change.ProposerRole); err != nil {
		return models.PendingChange{}, err
	}

	now := time.Now().UTC()
	change.Status = models.ChangeStatusApproved
	change.ReviewerID = &reviewerID
	change.ReviewedAt = &now
	if err := s.changes.Update(ctx, change); err != nil {
		// Finalize failed after the canonical write landed. Roll the
		// catalog back so the two stores stay consistent.
		if restoreErr := store.Restore(ctx, targetID, snapshot); restoreErr != nil {
			metrics.ApproveRollbacksTotal.WithLabelValues(string(change.EntityKind), "failed").Inc()
			s.logger.WithContext(ctx).WithError(restoreErr).WithFields(map[string]any{
				"change_id": change.ID,
				"target_id": targetID,
			}).Error("Rollback of canonical write failed; manual reconciliation required")
		} else {
			metrics.ApproveRollbacksTotal.WithLabelValues(string(change.EntityKind), "restored").Inc()
		}
		return models.PendingChange{}, err
	}

	s.audit.Append(ctx, reviewerID, "change.approved", string(change.EntityKind), change.ID, map[string]any{
		"target_id": targetID,
	})
	s.notifier.ChangeReviewed(ctx, &change)
	s.invalidateDashboard(ctx)
	metrics.ChangeReviewsTotal.WithLabelValues(string(change.EntityKind), "approved").Inc()

	return change, nil
}

// Reject terminates the change without touching the catalog. A reason is
// required so the proposer knows what to fix next time.
func (s *Service) Reject(ctx context.Context, id, reviewerID string, role models.Role, reason string) (models.PendingChange, error) {
	ctx, span := tracing.StartSpan(ctx, "pendingchange.Reject")
	defer span.End()

	if !role.CanReview() {
		return models.PendingChange{}, httperror.NewHTTPError(http.StatusForbidden, "role is not allowed to review changes")
	}
	if reason == "" {
		return models.PendingChange{}, httperror.NewHTTPError(http.StatusBadRequest, "a rejection reason is required")
	}

	change, err := s.changes.GetByID(ctx, id)
	if err != nil {
		return models.PendingChange{}, err
	}
	if !change.Status.Reviewable() {
		return models.PendingChange{}, httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("change in status %q cannot be rejected", change.Status))
	}

	now := time.Now().UTC()
	change.Status = models.ChangeStatusRejected
	change.Reason = &reason
	change.ReviewerID = &reviewerID
	change.ReviewedAt = &now
	if err := s.changes.Update(ctx, change); err != nil {
		return models.PendingChange{}, err
	}

	if err := s.uploads.ReleaseByChange(ctx, change.ID); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("change_id", change.ID).Warn("Failed to release uploads for rejected change")
	}

	s.audit.Append(ctx, reviewerID, "change.rejected", string(change.EntityKind), change.ID, map[string]any{
		"reason": reason,
	})
	s.notifier.ChangeReviewed(ctx, &change)
	s.invalidateDashboard(ctx)
	metrics.ChangeReviewsTotal.WithLabelValues(string(change.EntityKind), "rejected").Inc()

	return change, nil
}

// RequestRevision sends the change back to the proposer without terminating
// it. The change keeps its live slot until withdrawn or resubmitted.
func (s *Service) RequestRevision(ctx context.Context, id, reviewerID string, role models.Role, reason string) (models.PendingChange, error) {
	ctx, span := tracing.StartSpan(ctx, "pendingchange.RequestRevision")
	defer span.End()

	if !role.CanReview() {
		return models.PendingChange{}, httperror.NewHTTPError(http.StatusForbidden, "role is not allowed to review changes")
	}
	if reason == "" {
		return models.PendingChange{}, httperror.NewHTTPError(http.StatusBadRequest, "a revision reason is required")
	}

	change, err := s.changes.GetByID(ctx, id)
	if err != nil {
		return models.PendingChange{}, err
	}
	if change.Status != models.ChangeStatusPending {
		return models.PendingChange{}, httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("change in status %q cannot be sent back for revision", change.Status))
	}

	change.Status = models.ChangeStatusNeedsRevision
	change.Reason = &reason
	change.ReviewerID = &reviewerID
	if err := s.changes.Update(ctx, change); err != nil {
		return models.PendingChange{}, err
	}

	s.audit.Append(ctx, reviewerID, "change.revision_requested", string(change.EntityKind), change.ID, map[string]any{
		"reason": reason,
	})
	s.notifier.ChangeReviewed(ctx, &change)
	metrics.ChangeReviewsTotal.WithLabelValues(string(change.EntityKind), "revision_requested").Inc()

	return change, nil
}

func (s *Service) replay(ctx context.Context, record models.IdempotencyRecord) (models.ChangeResult, error) {
	change, err := s.changes.GetByID(ctx, record.ChangeID)
	if err != nil {
		return models.ChangeResult{}, err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"key":       record.Key,
		"change_id": record.ChangeID,
	}).Info("Replaying idempotent submission")

	return models.ChangeResult{
		ChangeID:   change.ID,
		Status:     change.Status,
		CreatedAt:  change.CreatedAt,
		Idempotent: true,
	}, nil
}

// authorizeProposal verifies the target row is live, then enforces the
// assignment graph for property targets. Creation proposals only require a
// proposing role.
func (s *Service) authorizeProposal(ctx context.Context, input SubmitInput) error {
	if input.TargetID == nil {
		return nil
	}

	store, ok := s.stores[input.EntityKind]
	if !ok {
		return httperror.NewHTTPError(http.StatusInternalServerError, "no canonical store for entity kind")
	}
	exists, err := store.Exists(ctx, *input.TargetID)
	if err != nil {
		return err
	}
	if !exists {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("%s not found", input.EntityKind)).
			AddMetaValue("target_id", *input.TargetID)
	}

	if input.EntityKind != models.EntityKindProperty {
		return nil
	}

	switch input.ProposerRole {
	case models.RoleEmployee:
		assigned, err := s.assignments.IsEmployeeAssigned(ctx, input.ProposerID, *input.TargetID)
		if err != nil {
			return err
		}
		if !assigned {
			return httperror.NewHTTPError(http.StatusForbidden, "employee is not assigned to this property")
		}
	case models.RoleAgent:
		authorized, err := s.assignments.IsAgentAuthorized(ctx, input.ProposerID, *input.TargetID)
		if err != nil {
			return err
		}
		if !authorized {
			return httperror.NewHTTPError(http.StatusForbidden, "agent is not authorized for this property")
		}
	}

	return nil
}

func (s *Service) validateUploads(ctx context.Context, proposerID string, uploadIDs []string) error {
	for _, uploadID := range uploadIDs {
		u, err := s.uploads.GetByID(ctx, uploadID)
		if err != nil {
			return err
		}
		if u.OwnerID != proposerID {
			return httperror.NewHTTPError(http.StatusForbidden, "upload does not belong to the proposer").
				AddMetaValue("upload_id", uploadID)
		}
		if u.Status != models.UploadStatusUploaded {
			return httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("upload is in status %q and cannot be referenced", u.Status)).
				AddMetaValue("upload_id", uploadID)
		}
	}
	return nil
}

// checkLivePending returns the 409 the submission protocol promises,
// naming the change already holding the slot.
func (s *Service) checkLivePending(ctx context.Context, kind models.EntityKind, targetID *string, proposerID string) error {
	existing, found, err := s.changes.FindLivePending(ctx, kind, targetID, proposerID)
	if err != nil {
		return err
	}
	if found {
		return httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("a pending change %q is already awaiting review", existing.DisplayTitle())).
			AddMetaValue("conflicting_change_id", existing.ID)
	}
	return nil
}

func (s *Service) invalidateDashboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, DashboardCacheKey); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to invalidate dashboard cache")
	}
}
