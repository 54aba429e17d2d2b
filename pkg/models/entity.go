package models

import (
	"encoding/json"
	"time"
)

// EntityKind identifies which canonical catalog a change targets.
type EntityKind string

const (
	EntityKindProperty EntityKind = "property"
	EntityKindBanner   EntityKind = "banner"
)

func (k EntityKind) Valid() bool {
	return k == EntityKindProperty || k == EntityKindBanner
}

// Property is a published catalog record. It is only mutated through a direct
// admin write or through pending-change approval; employees and agents never
// write it directly.
type Property struct {
	ID                  string          `json:"id" db:"id"`
	Data                json.RawMessage `json:"data" db:"data"`
	AssignedEmployeeID  *string         `json:"assigned_employee_id,omitempty" db:"assigned_employee_id"`
	CreatedByEmployeeID *string         `json:"created_by_employee_id,omitempty" db:"created_by_employee_id"`
	PrimaryAgentID      *string         `json:"primary_agent_id,omitempty" db:"primary_agent_id"`
	IsDeleted           bool            `json:"is_deleted" db:"is_deleted"`
	DeletedBy           *string         `json:"deleted_by,omitempty" db:"deleted_by"`
	DeletedAt           *time.Time      `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at" db:"updated_at"`
}

// Banner is a published marketing banner, following the same moderated
// mutation protocol as properties.
type Banner struct {
	ID        string          `json:"id" db:"id"`
	Data      json.RawMessage `json:"data" db:"data"`
	IsDeleted bool            `json:"is_deleted" db:"is_deleted"`
	DeletedBy *string         `json:"deleted_by,omitempty" db:"deleted_by"`
	DeletedAt *time.Time      `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// CanonicalSnapshot captures an entity's state before an approval writes to
// it, so a failed finalize can restore the pre-write state.
type CanonicalSnapshot struct {
	Existed             bool
	Data                json.RawMessage
	AssignedEmployeeID  *string
	CreatedByEmployeeID *string
	PrimaryAgentID      *string
	UpdatedAt           time.Time
}
