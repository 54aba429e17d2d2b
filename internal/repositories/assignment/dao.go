package assignment

import (
	"database/sql"

	"github.com/Ramsey-B/laurel/pkg/database"
	"github.com/Ramsey-B/laurel/pkg/models"
)

type EmployeeAssignmentRow struct {
	EmployeeID sql.NullString `db:"employee_id"`
	PropertyID sql.NullString `db:"property_id"`
	AssignedBy sql.NullString `db:"assigned_by"`
	CreatedAt  sql.NullTime   `db:"created_at"`
}

type AgentAssignmentRow struct {
	AgentID    sql.NullString `db:"agent_id"`
	PropertyID sql.NullString `db:"property_id"`
	EmployeeID sql.NullString `db:"employee_id"`
	CreatedAt  sql.NullTime   `db:"created_at"`
}

const (
	employeeAssignmentTable = "employee_property_assignments"
	agentAssignmentTable    = "agent_property_assignments"
)

var (
	employeeAssignmentStruct = database.NewStruct(new(EmployeeAssignmentRow))
	agentAssignmentStruct    = database.NewStruct(new(AgentAssignmentRow))
)

func ToEmployeeAssignment(row *EmployeeAssignmentRow) models.EmployeePropertyAssignment {
	return models.EmployeePropertyAssignment{
		EmployeeID: row.EmployeeID.String,
		PropertyID: row.PropertyID.String,
		AssignedBy: row.AssignedBy.String,
		CreatedAt:  row.CreatedAt.Time,
	}
}

func ToAgentAssignment(row *AgentAssignmentRow) models.AgentPropertyAssignment {
	return models.AgentPropertyAssignment{
		AgentID:    row.AgentID.String,
		PropertyID: row.PropertyID.String,
		EmployeeID: row.EmployeeID.String,
		CreatedAt:  row.CreatedAt.Time,
	}
}
