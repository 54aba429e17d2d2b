package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole_NormalizesCasingAndWhitespace(t *testing.T) {
	role, err := ParseRole(" Agent ")
	require.NoError(t, err)
	assert.Equal(t, RoleAgent, role)

	role, err = ParseRole("ADMIN")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)
}

func TestParseRole_RejectsUnknownRole(t *testing.T) {
	_, err := ParseRole("superuser")
	require.Error(t, err)
}

func TestRole_Capabilities(t *testing.T) {
	assert.True(t, RoleEmployee.CanPropose())
	assert.True(t, RoleAgent.CanPropose())
	assert.False(t, RoleCustomer.CanPropose())
	assert.False(t, RoleAdmin.CanPropose())

	assert.True(t, RoleAdmin.CanReview())
	assert.False(t, RoleEmployee.CanReview())
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(TicketStatusReceived, TicketStatusUnderReview))
	assert.True(t, CanTransition(TicketStatusReceived, TicketStatusRejected))
	assert.True(t, CanTransition(TicketStatusContacted, TicketStatusClosed))

	assert.False(t, CanTransition(TicketStatusReceived, TicketStatusClosed))
	assert.False(t, CanTransition(TicketStatusClosed, TicketStatusReceived))
	assert.False(t, CanTransition(TicketStatusRejected, TicketStatusUnderReview))
}

func TestTicketStatus_TerminalAndComment(t *testing.T) {
	assert.True(t, TicketStatusClosed.IsTerminal())
	assert.True(t, TicketStatusRejected.IsTerminal())
	assert.False(t, TicketStatusContacted.IsTerminal())

	assert.True(t, TicketStatusClosed.RequiresComment())
	assert.True(t, TicketStatusRejected.RequiresComment())
	assert.False(t, TicketStatusUnderReview.RequiresComment())
}

func TestChangeStatus_Lifecycle(t *testing.T) {
	assert.True(t, ChangeStatusDraft.Editable())
	assert.True(t, ChangeStatusNeedsRevision.Editable())
	assert.False(t, ChangeStatusPending.Editable())

	assert.True(t, ChangeStatusPending.Reviewable())
	assert.True(t, ChangeStatusNeedsRevision.Reviewable())
	assert.False(t, ChangeStatusDraft.Reviewable())

	assert.True(t, ChangeStatusApproved.IsTerminal())
	assert.True(t, ChangeStatusRejected.IsTerminal())
	assert.False(t, ChangeStatusNeedsRevision.IsTerminal())
}

func TestPendingChange_DisplayTitle(t *testing.T) {
	change := PendingChange{
		ID:      "chg-1",
		Payload: json.RawMessage(`{"title": "Lakeside Villa", "price": 100}`),
	}
	assert.Equal(t, "Lakeside Villa", change.DisplayTitle())

	change.Payload = json.RawMessage(`{"price": 100}`)
	assert.Equal(t, "chg-1", change.DisplayTitle())

	change.Payload = json.RawMessage(`{"title": ""}`)
	assert.Equal(t, "chg-1", change.DisplayTitle())

	change.Payload = json.RawMessage(`not json`)
	assert.Equal(t, "chg-1", change.DisplayTitle())
}

func TestUploadPurpose_Valid(t *testing.T) {
	assert.True(t, UploadPurposePropertyImage.Valid())
	assert.True(t, UploadPurposeBanner.Valid())
	assert.False(t, UploadPurpose("tax_return").Valid())
	assert.False(t, UploadPurpose("").Valid())
}
