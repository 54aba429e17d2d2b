package models

import (
	"encoding/json"
	"time"
)

// ChangeStatus is the lifecycle state of a pending change.
type ChangeStatus string

const (
	ChangeStatusDraft         ChangeStatus = "draft"
	ChangeStatusPending       ChangeStatus = "pending"
	ChangeStatusNeedsRevision ChangeStatus = "needs_revision"
	ChangeStatusApproved      ChangeStatus = "approved"
	ChangeStatusRejected      ChangeStatus = "rejected"
)

// IsTerminal reports whether no further transitions are allowed.
func (s ChangeStatus) IsTerminal() bool {
	return s == ChangeStatusApproved || s == ChangeStatusRejected
}

// Editable reports whether the proposer may still replace the payload.
func (s ChangeStatus) Editable() bool {
	return s == ChangeStatusDraft || s == ChangeStatusNeedsRevision
}

// Reviewable reports whether a reviewer may act on the change.
func (s ChangeStatus) Reviewable() bool {
	return s == ChangeStatusPending || s == ChangeStatusNeedsRevision
}

// PendingChange is a proposed mutation to a canonical entity. A nil TargetID
// means the change proposes creating a new entity; approval then performs an
// insert instead of an update.
type PendingChange struct {
	ID           string          `json:"id" db:"id"`
	EntityKind   EntityKind      `json:"entity_kind" db:"entity_kind"`
	TargetID     *string         `json:"target_id,omitempty" db:"target_id"`
	ProposerID   string          `json:"proposer_id" db:"proposer_id"`
	ProposerRole Role            `json:"proposer_role" db:"proposer_role"`
	Payload      json.RawMessage `json:"payload" db:"payload"`
	DiffSummary  *string         `json:"diff_summary,omitempty" db:"diff_summary"`
	Status       ChangeStatus    `json:"status" db:"status"`
	IsDraft      bool            `json:"is_draft" db:"is_draft"`
	Reason       *string         `json:"reason,omitempty" db:"reason"`
	ReviewerID   *string         `json:"reviewer_id,omitempty" db:"reviewer_id"`
	ReviewedAt   *time.Time      `json:"reviewed_at,omitempty" db:"reviewed_at"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// DisplayTitle returns a human-readable handle for conflict messages: the
// payload's title field when present, otherwise the change id.
func (c *PendingChange) DisplayTitle() string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(c.Payload, &fields); err == nil {
		if raw, ok := fields["title"]; ok {
			var title string
			if err := json.Unmarshal(raw, &title); err == nil && title != "" {
				return title
			}
		}
	}
	return c.ID
}

// ChangeResult is returned by submission operations. Idempotent is true when
// the result was served from the idempotency ledger rather than a new row.
type ChangeResult struct {
	ChangeID   string       `json:"change_id"`
	Status     ChangeStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	Idempotent bool         `json:"idempotent"`
}

// IdempotencyRecord maps a caller-supplied key to the change it produced.
type IdempotencyRecord struct {
	Key       string    `json:"key" db:"key"`
	ChangeID  string    `json:"change_id" db:"change_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
