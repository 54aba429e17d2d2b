package catalog

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/laurel/pkg/models"
)

func TestMergePayload_KeepsFieldsAbsentFromPayload(t *testing.T) {
	existing := json.RawMessage(`{"title": "Lakeside Duplex", "price": 420000, "city": "Boise"}`)
	payload := json.RawMessage(`{"price": 399000}`)

	merged, err := mergePayload(existing, payload)

	require.NoError(t, err)
	assert.JSONEq(t, `{"title": "Lakeside Duplex", "price": 399000, "city": "Boise"}`, string(merged))
}

func TestMergePayload_AddsNewFields(t *testing.T) {
	existing := json.RawMessage(`{"title": "Lakeside Duplex"}`)
	payload := json.RawMessage(`{"sqft": 2100}`)

	merged, err := mergePayload(existing, payload)

	require.NoError(t, err)
	assert.JSONEq(t, `{"title": "Lakeside Duplex", "sqft": 2100}`, string(merged))
}

func TestMergePayload_EmptyExisting(t *testing.T) {
	merged, err := mergePayload(nil, json.RawMessage(`{"title": "New Listing"}`))

	require.NoError(t, err)
	assert.JSONEq(t, `{"title": "New Listing"}`, string(merged))
}

func TestMergePayload_InvalidPayload(t *testing.T) {
	_, err := mergePayload(json.RawMessage(`{"title": "ok"}`), json.RawMessage(`not json`))

	assert.Error(t, err)
}

func TestNewPropertyFromApproval_EmployeeProposer(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	property := newPropertyFromApproval("prop-1", json.RawMessage(`{"title": "t"}`), "emp-1", models.RoleEmployee, now)

	require.NotNil(t, property.AssignedEmployeeID)
	assert.Equal(t, "emp-1", *property.AssignedEmployeeID)
	require.NotNil(t, property.CreatedByEmployeeID)
	assert.Equal(t, "emp-1", *property.CreatedByEmployeeID)
	assert.Nil(t, property.PrimaryAgentID)
	assert.Equal(t, now, property.CreatedAt)
}

func TestNewPropertyFromApproval_AgentProposer(t *testing.T) {
	now := time.Now().UTC()

	property := newPropertyFromApproval("prop-2", json.RawMessage(`{"title": "t"}`), "agent-1", models.RoleAgent, now)

	require.NotNil(t, property.AssignedEmployeeID)
	assert.Equal(t, "agent-1", *property.AssignedEmployeeID)
	require.NotNil(t, property.PrimaryAgentID)
	assert.Equal(t, "agent-1", *property.PrimaryAgentID)
	assert.Nil(t, property.CreatedByEmployeeID)
}
