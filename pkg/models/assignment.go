package models

import "time"

// EmployeePropertyAssignment links an employee to a property they manage.
type EmployeePropertyAssignment struct {
	EmployeeID string    `json:"employee_id" db:"employee_id"`
	PropertyID string    `json:"property_id" db:"property_id"`
	AssignedBy string    `json:"assigned_by" db:"assigned_by"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// AgentPropertyAssignment links an agent to a property, scoped under the
// agent's supervising employee. The agent's authorization for the property is
// only valid while the employee's own assignment edge remains intact.
type AgentPropertyAssignment struct {
	AgentID    string    `json:"agent_id" db:"agent_id"`
	PropertyID string    `json:"property_id" db:"property_id"`
	EmployeeID string    `json:"employee_id" db:"employee_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// ReconcileResult reports what a desired-state reconciliation changed.
type ReconcileResult struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}
